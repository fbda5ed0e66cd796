package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignParseRoundTrip(t *testing.T) {
	a := New("test-secret")

	token, err := a.Sign("user-123", "alice")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	userID, username, err := a.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if userID != "user-123" || username != "alice" {
		t.Fatalf("parsed identity = (%q, %q)", userID, username)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := New("secret-a").Sign("user-123", "alice")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, _, err := New("secret-b").Parse(token); err == nil {
		t.Fatal("token signed with a different secret was accepted")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	a := New("test-secret")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   "user-123",
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	token, err := expired.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, _, err := a.Parse(token); err == nil {
		t.Fatal("expired token was accepted")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, _, err := New("test-secret").Parse("not.a.token"); err == nil {
		t.Fatal("garbage token was accepted")
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	if got := BearerToken(r); got != "abc123" {
		t.Fatalf("header token = %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws?token=query456", nil)
	if got := BearerToken(r); got != "query456" {
		t.Fatalf("query token = %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	if got := BearerToken(r); got != "" {
		t.Fatalf("missing token = %q, want empty", got)
	}
}

func TestMiddleware(t *testing.T) {
	a := New("test-secret")
	token, _ := a.Sign("user-123", "alice")

	var gotID, gotName string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = UserID(r.Context())
		gotName = Username(r.Context())
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	a.Middleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotID != "user-123" || gotName != "alice" {
		t.Fatalf("context identity = (%q, %q)", gotID, gotName)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	a.Middleware(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	a.Middleware(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", rec.Code)
	}
}
