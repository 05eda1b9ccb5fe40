package middlewares

// NOTE: These tests are intentionally DB-free. With no redis client
// configured the session lookup reports the token as unknown, which is the
// same path a logged-out token takes.

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/grupovitrine/painel_backend/utils"
)

func newSessionRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SessionMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestSessionMiddleware_NoTokenPassesThrough(t *testing.T) {
	r := newSessionRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestSessionMiddleware_RejectsMalformedToken(t *testing.T) {
	r := newSessionRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("token", "not-a-jwt")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestSessionMiddleware_RejectsExpiredToken(t *testing.T) {
	t.Setenv("TOKEN_HOUR_LIFESPAN", "-1")
	token, err := utils.JwtGenerate(7, "vendedor")
	if err != nil {
		t.Fatal(err)
	}

	r := newSessionRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("token", token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestSessionMiddleware_RejectsValidJwtWithoutSession(t *testing.T) {
	token, err := utils.JwtGenerate(7, "vendedor")
	if err != nil {
		t.Fatal(err)
	}

	r := newSessionRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("token", token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
