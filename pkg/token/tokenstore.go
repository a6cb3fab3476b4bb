package tokenstore

import "sync"

// in-memory jti revocation store; logout revokes the token's jti until the
// process restarts. For multi-instance deployments use Redis or DB.
var (
	mu      sync.RWMutex
	revoked = map[string]struct{}{}
)

func Revoke(jti string) {
	if jti == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	revoked[jti] = struct{}{}
}

func IsRevoked(jti string) bool {
	if jti == "" {
		return false
	}
	mu.RLock()
	defer mu.RUnlock()
	_, ok := revoked[jti]
	return ok
}
