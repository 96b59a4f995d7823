package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nurdaulet-ab/account-service/internal/domain"
)

var testJWTKey = []byte("0123456789abcdef0123456789abcdef")

type fakeUsers struct {
	register   func(ctx context.Context, email, name string) (*domain.User, error)
	getByEmail func(ctx context.Context, email string) (domain.UserCache, error)
}

func (f *fakeUsers) Register(ctx context.Context, email, name string) (*domain.User, error) {
	return f.register(ctx, email, name)
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (domain.UserCache, error) {
	return f.getByEmail(ctx, email)
}

type fakeCodes struct {
	generate func(ctx context.Context, userID string) (string, error)
	validate func(ctx context.Context, userID, input string) error
}

func (f *fakeCodes) Generate(ctx context.Context, userID string) (string, error) {
	if f.generate == nil {
		return "0000", nil
	}
	return f.generate(ctx, userID)
}

func (f *fakeCodes) Validate(ctx context.Context, userID, input string) error {
	return f.validate(ctx, userID, input)
}

func knownUser(email string) func(ctx context.Context, email string) (domain.UserCache, error) {
	return func(_ context.Context, got string) (domain.UserCache, error) {
		if got != email {
			return domain.UserCache{}, domain.ErrUserNotFound
		}
		return domain.UserCache{ID: "u1", Email: email, Role: domain.RoleUser}, nil
	}
}

func newAuthRouter(users *fakeUsers, codes *fakeCodes) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(users, codes, testJWTKey, slog.Default())
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/code", h.RequestCode)
	r.POST("/auth/verify", h.Verify)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegister_CreatedAndCodeSent(t *testing.T) {
	generated := false
	users := &fakeUsers{
		register: func(_ context.Context, email, name string) (*domain.User, error) {
			return &domain.User{ID: "u1", Email: email, Name: name}, nil
		},
	}
	codes := &fakeCodes{
		generate: func(_ context.Context, userID string) (string, error) {
			generated = true
			if userID != "u1" {
				t.Fatalf("code generated for %s", userID)
			}
			return "1234", nil
		},
	}
	r := newAuthRouter(users, codes)

	w := postJSON(t, r, "/auth/register", gin.H{"email": "bob@test.local", "name": "Bob"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !generated {
		t.Fatal("first verification code not generated")
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	users := &fakeUsers{
		register: func(_ context.Context, _, _ string) (*domain.User, error) {
			return nil, domain.ErrDuplicateEmail
		},
	}
	r := newAuthRouter(users, &fakeCodes{})

	w := postJSON(t, r, "/auth/register", gin.H{"email": "bob@test.local", "name": "Bob"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestRegister_CodeFailureStillCreates(t *testing.T) {
	users := &fakeUsers{
		register: func(_ context.Context, email, name string) (*domain.User, error) {
			return &domain.User{ID: "u1", Email: email, Name: name}, nil
		},
	}
	codes := &fakeCodes{
		generate: func(_ context.Context, _ string) (string, error) {
			return "", errors.New("store down")
		},
	}
	r := newAuthRouter(users, codes)

	w := postJSON(t, r, "/auth/register", gin.H{"email": "bob@test.local", "name": "Bob"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 despite code failure, got %d", w.Code)
	}
}

func TestRequestCode_DoesNotRevealExistence(t *testing.T) {
	generated := 0
	users := &fakeUsers{getByEmail: knownUser("alice@test.local")}
	codes := &fakeCodes{
		generate: func(_ context.Context, _ string) (string, error) {
			generated++
			return "1234", nil
		},
	}
	r := newAuthRouter(users, codes)

	// Known and unknown emails are indistinguishable from outside.
	for _, email := range []string{"alice@test.local", "ghost@test.local"} {
		w := postJSON(t, r, "/auth/code", gin.H{"email": email})
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", email, w.Code)
		}
	}
	if generated != 1 {
		t.Fatalf("expected 1 code generated, got %d", generated)
	}
}

func TestVerify_ReturnsSignedToken(t *testing.T) {
	users := &fakeUsers{getByEmail: knownUser("alice@test.local")}
	codes := &fakeCodes{
		validate: func(_ context.Context, userID, input string) error {
			if userID != "u1" || input != "1234" {
				return domain.ErrCodeInvalid
			}
			return nil
		},
	}
	r := newAuthRouter(users, codes)

	w := postJSON(t, r, "/auth/verify", gin.H{"email": "alice@test.local", "code": "1234"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	token, err := jwt.Parse(resp.Token, func(_ *jwt.Token) (any, error) { return testJWTKey, nil })
	if err != nil || !token.Valid {
		t.Fatalf("returned token does not verify: %v", err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["sub"] != "u1" || claims["role"] != "user" {
		t.Fatalf("unexpected claims: %v", claims)
	}
}

func TestVerify_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"expired", domain.ErrCodeExpired, http.StatusUnauthorized, errCodeExpired},
		{"invalid", domain.ErrCodeInvalid, http.StatusUnauthorized, errCodeInvalid},
		{"no code", domain.ErrCodeNotFound, http.StatusUnauthorized, errCodeInvalid},
		{"store failure", errors.New("connection refused"), http.StatusInternalServerError, errInternalServer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			users := &fakeUsers{getByEmail: knownUser("alice@test.local")}
			codes := &fakeCodes{
				validate: func(_ context.Context, _, _ string) error { return tc.err },
			}
			r := newAuthRouter(users, codes)

			w := postJSON(t, r, "/auth/verify", gin.H{"email": "alice@test.local", "code": "1234"})
			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, w.Code)
			}
			if !bytes.Contains(w.Body.Bytes(), []byte(tc.wantBody)) {
				t.Fatalf("expected body %q, got %s", tc.wantBody, w.Body.String())
			}
		})
	}
}

func TestVerify_UnknownEmail(t *testing.T) {
	users := &fakeUsers{getByEmail: knownUser("alice@test.local")}
	r := newAuthRouter(users, &fakeCodes{
		validate: func(_ context.Context, _, _ string) error {
			t.Fatal("validate must not run for unknown users")
			return nil
		},
	})

	w := postJSON(t, r, "/auth/verify", gin.H{"email": "ghost@test.local", "code": "1234"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestVerify_RejectsMalformedCode(t *testing.T) {
	r := newAuthRouter(&fakeUsers{}, &fakeCodes{})

	for _, code := range []string{"", "123", "12345"} {
		w := postJSON(t, r, "/auth/verify", gin.H{"email": "alice@test.local", "code": code})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("code %q: expected 400, got %d", code, w.Code)
		}
	}
}
