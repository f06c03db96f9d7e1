package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/orionai/orion/internal/config"
	"github.com/orionai/orion/internal/models"
)

func newAuthTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	h := &Handler{DB: db, Cfg: config.Config{JWTSecret: "test-secret"}}

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	return r
}

type envelope struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) (int, envelope) {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
	return w.Code, env
}

func TestRegisterThenLogin(t *testing.T) {
	r := newAuthTestRouter(t)

	status, env := postJSON(t, r, "/auth/register", gin.H{"username": "  Alice ", "password": "pw123"})
	if status != http.StatusOK || env.Code != 0 {
		t.Fatalf("register: status=%d env=%+v", status, env)
	}
	if env.Data["username"] != "alice" {
		t.Fatalf("username not normalized: %v", env.Data["username"])
	}
	if tok, _ := env.Data["token"].(string); tok == "" {
		t.Fatalf("register did not auto-login")
	}

	status, env = postJSON(t, r, "/auth/login", gin.H{"username": "ALICE", "password": "pw123"})
	if status != http.StatusOK || env.Code != 0 {
		t.Fatalf("login: status=%d env=%+v", status, env)
	}
	if tok, _ := env.Data["token"].(string); tok == "" {
		t.Fatalf("login returned no token")
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	r := newAuthTestRouter(t)

	if status, _ := postJSON(t, r, "/auth/register", gin.H{"username": "bob", "password": "pw"}); status != http.StatusOK {
		t.Fatalf("first register: status=%d", status)
	}
	status, env := postJSON(t, r, "/auth/register", gin.H{"username": "BOB", "password": "other"})
	if status != http.StatusConflict {
		t.Fatalf("duplicate register: status=%d", status)
	}
	if env.Code != 40901 {
		t.Fatalf("duplicate register: code=%d", env.Code)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	r := newAuthTestRouter(t)

	if status, _ := postJSON(t, r, "/auth/register", gin.H{"username": "carol", "password": "right"}); status != http.StatusOK {
		t.Fatalf("register: status=%d", status)
	}

	status, env := postJSON(t, r, "/auth/login", gin.H{"username": "carol", "password": "wrong"})
	if status != http.StatusUnauthorized || env.Code != 40102 {
		t.Fatalf("wrong password: status=%d code=%d", status, env.Code)
	}

	status, env = postJSON(t, r, "/auth/login", gin.H{"username": "nobody", "password": "x"})
	if status != http.StatusUnauthorized || env.Code != 40102 {
		t.Fatalf("unknown user: status=%d code=%d", status, env.Code)
	}
}

func TestRegisterEmptyFields(t *testing.T) {
	r := newAuthTestRouter(t)

	status, env := postJSON(t, r, "/auth/register", gin.H{"username": "   ", "password": "pw"})
	if status != http.StatusBadRequest || env.Code != 10002 {
		t.Fatalf("blank username: status=%d code=%d", status, env.Code)
	}
	status, env = postJSON(t, r, "/auth/register", gin.H{"username": "dave", "password": ""})
	if status != http.StatusBadRequest || env.Code != 10002 {
		t.Fatalf("blank password: status=%d code=%d", status, env.Code)
	}
}
