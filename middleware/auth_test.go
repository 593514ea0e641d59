package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testJWTSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func authTestRouter(adminOnly bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/")
	group.Use(AuthRequired(testJWTSecret))
	if adminOnly {
		group.Use(AdminOnly())
	}
	group.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt64("user_id")})
	})
	return router
}

func doRequest(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	router := authTestRouter(false)

	valid := signToken(t, testJWTSecret, jwt.MapClaims{
		"sub": "7", "role": "customer", "exp": time.Now().Add(time.Hour).Unix(),
	})
	expired := signToken(t, testJWTSecret, jwt.MapClaims{
		"sub": "7", "role": "customer", "exp": time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := signToken(t, "other-secret", jwt.MapClaims{
		"sub": "7", "role": "customer", "exp": time.Now().Add(time.Hour).Unix(),
	})

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{"valid token", valid, http.StatusOK},
		{"missing token", "", http.StatusUnauthorized},
		{"expired token", expired, http.StatusUnauthorized},
		{"wrong key", wrongKey, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := doRequest(router, tc.token).Code; got != tc.want {
				t.Errorf("status = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	router := authTestRouter(true)

	admin := signToken(t, testJWTSecret, jwt.MapClaims{
		"sub": "1", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	})
	customer := signToken(t, testJWTSecret, jwt.MapClaims{
		"sub": "7", "role": "customer", "exp": time.Now().Add(time.Hour).Unix(),
	})

	if got := doRequest(router, admin).Code; got != http.StatusOK {
		t.Errorf("admin status = %d, want 200", got)
	}
	if got := doRequest(router, customer).Code; got != http.StatusForbidden {
		t.Errorf("customer status = %d, want 403", got)
	}
}
