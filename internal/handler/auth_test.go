package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gospel5/gospel5/internal/auth"
	"github.com/gospel5/gospel5/internal/middleware"
	"github.com/gospel5/gospel5/internal/model"
	"github.com/gospel5/gospel5/internal/store"
)

type authFixture struct {
	h        *AuthHandler
	users    *store.UserStore
	sessions *store.SessionStore
	mailer   *fakeMailer
}

func setupAuthHandler(t *testing.T) authFixture {
	t.Helper()
	db := setupTestDB(t)
	us := store.NewUserStore(db)
	ss := store.NewSessionStore(db, time.Hour)
	mailer := &fakeMailer{}
	h := NewAuthHandler(us, ss, store.NewLoginCodeStore(db), mailer, "https://gospel5.test", discardLogger())
	return authFixture{h: h, users: us, sessions: ss, mailer: mailer}
}

func TestRegister(t *testing.T) {
	f := setupAuthHandler(t)

	rec := httptest.NewRecorder()
	f.h.Register(rec, newRequest("POST", "/api/register", map[string]string{
		"email": "alice@example.com", "first_name": "Alice", "last_name": "Smith",
	}, 0))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}
	u := decode[model.User](t, rec)
	if u.Email != "alice@example.com" || u.FirstName != "Alice" || u.LastName != "Smith" {
		t.Errorf("user = %+v", u)
	}

	sent := f.mailer.lastCode(t)
	if sent.to != "alice@example.com" || sent.purpose != "register" || len(sent.code) != 6 {
		t.Errorf("sent = %+v", sent)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := setupAuthHandler(t)

	for _, body := range []map[string]string{
		{"email": "not-an-email", "first_name": "Alice"},
		{"email": "alice@example.com", "first_name": "  "},
	} {
		rec := httptest.NewRecorder()
		f.h.Register(rec, newRequest("POST", "/api/register", body, 0))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %v: status = %d, want %d", body, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestRegisterDuplicate(t *testing.T) {
	f := setupAuthHandler(t)
	createUser(t, f.users, "alice@example.com", "Alice")

	rec := httptest.NewRecorder()
	f.h.Register(rec, newRequest("POST", "/api/register", map[string]string{
		"email": "alice@example.com", "first_name": "Alice",
	}, 0))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	f := setupAuthHandler(t)

	rec := httptest.NewRecorder()
	f.h.Login(rec, newRequest("POST", "/api/login", map[string]string{"email": "nobody@example.com"}, 0))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if len(f.mailer.codes) != 0 {
		t.Error("expected no code for unknown email")
	}
}

func TestLoginAndVerify(t *testing.T) {
	f := setupAuthHandler(t)
	userID := createUser(t, f.users, "alice@example.com", "Alice")

	rec := httptest.NewRecorder()
	f.h.Login(rec, newRequest("POST", "/api/login", map[string]string{"email": "alice@example.com"}, 0))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("login status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	sent := f.mailer.lastCode(t)
	if sent.purpose != "login" {
		t.Errorf("purpose = %q, want login", sent.purpose)
	}

	wrong := "000000"
	if sent.code == wrong {
		wrong = "111111"
	}
	rec = httptest.NewRecorder()
	f.h.Verify(rec, newRequest("POST", "/api/login/verify", map[string]string{"email": "alice@example.com", "code": wrong}, 0))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong code: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = httptest.NewRecorder()
	f.h.Verify(rec, newRequest("POST", "/api/login/verify", map[string]string{"email": "alice@example.com", "code": sent.code}, 0))
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected session cookie")
	}
	if !cookie.HttpOnly || !cookie.Secure {
		t.Errorf("cookie HttpOnly=%v Secure=%v, want both true", cookie.HttpOnly, cookie.Secure)
	}

	sess, err := f.sessions.GetByToken(cookie.Value)
	if err != nil || sess == nil {
		t.Fatalf("session lookup: %v %v", sess, err)
	}
	if sess.UserID != userID {
		t.Errorf("session user = %d, want %d", sess.UserID, userID)
	}

	// Codes are single use.
	rec = httptest.NewRecorder()
	f.h.Verify(rec, newRequest("POST", "/api/login/verify", map[string]string{"email": "alice@example.com", "code": sent.code}, 0))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("reused code: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestVerifyUnknownEmail(t *testing.T) {
	f := setupAuthHandler(t)

	rec := httptest.NewRecorder()
	f.h.Verify(rec, newRequest("POST", "/api/login/verify", map[string]string{"email": "nobody@example.com", "code": "123456"}, 0))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLoginWithEmailDisabled(t *testing.T) {
	f := setupAuthHandler(t)
	f.mailer.disabled = true
	createUser(t, f.users, "alice@example.com", "Alice")

	rec := httptest.NewRecorder()
	f.h.Login(rec, newRequest("POST", "/api/login", map[string]string{"email": "alice@example.com"}, 0))
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if len(f.mailer.codes) != 0 {
		t.Error("expected no email when mailer is disabled")
	}
}

func TestLogout(t *testing.T) {
	f := setupAuthHandler(t)
	userID := createUser(t, f.users, "alice@example.com", "Alice")
	sess, _ := f.sessions.Create(userID)

	req := newRequest("POST", "/api/logout", nil, 0)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: userID, SessionID: sess.ID}))
	rec := httptest.NewRecorder()
	f.h.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if got, _ := f.sessions.GetByToken(sess.Token); got != nil {
		t.Error("expected session to be deleted")
	}
}
