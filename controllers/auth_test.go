package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/R-Krishnananda/leaf-disease-predictor/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Chat{}, &models.ChatMessage{}))
	return db
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func authRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/register", Register(db))
	r.POST("/login", Login(db))
	return r
}

func TestRegisterThenLogin(t *testing.T) {
	db := newTestDB(t)
	r := authRouter(db)

	w := postJSON(t, r, "/register", gin.H{"email": "Farmer@Example.com", "password": "s3cret"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// plaintext is never stored
	var user models.User
	require.NoError(t, db.Where("email = ?", "farmer@example.com").First(&user).Error)
	assert.NotEqual(t, "s3cret", user.PasswordHash)
	assert.NotEmpty(t, user.PasswordHash)

	w = postJSON(t, r, "/login", gin.H{"email": "farmer@example.com", "password": "s3cret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "farmer@example.com", resp.Email)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	r := authRouter(db)

	w := postJSON(t, r, "/register", gin.H{"email": "farmer@example.com", "password": "s3cret"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(t, r, "/register", gin.H{"email": "farmer@example.com", "password": "other"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "no second record on duplicate register")
}

func TestLoginWrongPassword(t *testing.T) {
	db := newTestDB(t)
	r := authRouter(db)

	postJSON(t, r, "/register", gin.H{"email": "farmer@example.com", "password": "s3cret"})

	w := postJSON(t, r, "/login", gin.H{"email": "farmer@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	db := newTestDB(t)
	r := authRouter(db)

	w := postJSON(t, r, "/login", gin.H{"email": "nobody@example.com", "password": "s3cret"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterMissingFields(t *testing.T) {
	db := newTestDB(t)
	r := authRouter(db)

	w := postJSON(t, r, "/register", gin.H{"email": "", "password": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
