package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/muraselchat/murasel-backend/internal/auth"
	"github.com/muraselchat/murasel-backend/internal/models"
	"github.com/muraselchat/murasel-backend/pkg/apperr"
	"github.com/muraselchat/murasel-backend/pkg/utils"
)

type stubUsers struct {
	byID       map[string]*models.User
	byUsername map[string]*models.User
	created    []*models.User
	fcmTokens  map[string][]string
}

func newStubUsers() *stubUsers {
	return &stubUsers{
		byID:       make(map[string]*models.User),
		byUsername: make(map[string]*models.User),
		fcmTokens:  make(map[string][]string),
	}
}

func (s *stubUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "user %s not found", id)
	}
	return u, nil
}

func (s *stubUsers) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	u, ok := s.byUsername[username]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "user %s not found", username)
	}
	return u, nil
}

func (s *stubUsers) CreateUser(_ context.Context, u *models.User) error {
	u.ID = primitive.NewObjectID()
	s.byID[u.ID.Hex()] = u
	s.byUsername[u.Username] = u
	s.created = append(s.created, u)
	return nil
}

func (s *stubUsers) SetPresence(context.Context, string, string, time.Time) error { return nil }
func (s *stubUsers) GetFriendIDs(context.Context, string) ([]string, error)       { return nil, nil }
func (s *stubUsers) IsBlocked(context.Context, string, string) (bool, error)      { return false, nil }
func (s *stubUsers) IncrementMessagesSent(context.Context, string) error          { return nil }

func (s *stubUsers) AddFCMToken(_ context.Context, id, token, _ string) error {
	s.fcmTokens[id] = append(s.fcmTokens[id], token)
	return nil
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	users := newStubUsers()
	a := auth.New("test-secret")
	h := NewAuthHandler(users, a)

	body := `{"username":"  Alice ","full_name":"Alice A","password":"supersecret"}`
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(users.created) != 1 || users.created[0].Username != "alice" {
		t.Fatalf("created = %+v, want normalized username alice", users.created)
	}
	if users.created[0].Password == "supersecret" {
		t.Fatal("password stored in plaintext")
	}
	if !utils.CheckPassword("supersecret", users.created[0].Password) {
		t.Fatal("stored hash does not verify")
	}

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	token, _ := data["token"].(string)
	userID, _, err := a.Parse(token)
	if err != nil || userID != users.created[0].ID.Hex() {
		t.Fatalf("issued token invalid: %v", err)
	}

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"alice","password":"supersecret"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"alice","password":"wrong"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"nobody","password":"whatever"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: status = %d, want 401", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	h := NewAuthHandler(newStubUsers(), auth.New("test-secret"))

	for _, body := range []string{
		`{"username":"","password":"longenough"}`,
		`{"username":"bob","password":"short"}`,
		`not json`,
	} {
		rec := httptest.NewRecorder()
		h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.New(apperr.NotFound, "missing"), http.StatusNotFound},
		{apperr.New(apperr.Forbidden, "nope"), http.StatusForbidden},
		{apperr.New(apperr.InvalidState, "wrong state"), http.StatusConflict},
		{apperr.New(apperr.Expired, "too late"), http.StatusGone},
		{apperr.New(apperr.Transient, "try again"), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		respondError(rec, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
		if resp := decodeResponse(t, rec); resp.Success {
			t.Fatalf("%v: success flag set on an error response", tc.err)
		}
	}
}
