package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-chat-gateway/internal/access"
)

var authSecret = []byte("test-secret-please-rotate")

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func authRouter(resolve UserResolver) (*gin.Engine, *access.Scope, *string) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var gotScope access.Scope
	var gotSubject string
	r.GET("/ping", AuthJWT(authSecret, resolve), func(c *gin.Context) {
		if s, err := access.FromContext(c.Request.Context()); err == nil {
			gotScope = s
		}
		gotSubject = c.GetString("subject")
		c.String(http.StatusOK, "pong")
	})
	return r, &gotScope, &gotSubject
}

func staticResolver(scope access.Scope, err error) UserResolver {
	return func(context.Context, string) (access.Scope, error) {
		return scope, err
	}
}

func TestAuthJWT_Success(t *testing.T) {
	want := access.Scope{UserID: "u1", Subject: "alice", Roles: []string{"support"}}
	var resolvedSubject string
	r, gotScope, gotSubject := authRouter(func(_ context.Context, subject string) (access.Scope, error) {
		resolvedSubject = subject
		return want, nil
	})

	tok := signToken(t, authSecret, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if resolvedSubject != "alice" {
		t.Fatalf("resolved subject = %q", resolvedSubject)
	}
	if gotScope.UserID != "u1" || !gotScope.HasRole("support") {
		t.Fatalf("scope = %+v", *gotScope)
	}
	if *gotSubject != "alice" {
		t.Fatalf("gin subject = %q", *gotSubject)
	}
}

func TestAuthJWT_Rejections(t *testing.T) {
	r, _, _ := authRouter(staticResolver(access.Scope{UserID: "u1"}, nil))

	expired := signToken(t, authSecret, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := signToken(t, []byte("other-secret"), jwt.MapClaims{"sub": "alice"})
	noSubject := signToken(t, authSecret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("build unsigned token: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty bearer", "Bearer   "},
		{"garbage token", "Bearer not.a.jwt"},
		{"expired", "Bearer " + expired},
		{"wrong key", "Bearer " + wrongKey},
		{"no subject", "Bearer " + noSubject},
		{"alg none", "Bearer " + unsigned},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d", w.Code)
			}
			if w.Header().Get("WWW-Authenticate") == "" {
				t.Fatal("missing WWW-Authenticate header")
			}
		})
	}
}

func TestAuthJWT_UnknownUser(t *testing.T) {
	r, _, _ := authRouter(staticResolver(access.Scope{}, errors.New("no such user")))
	tok := signToken(t, authSecret, jwt.MapClaims{"sub": "ghost"})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}
