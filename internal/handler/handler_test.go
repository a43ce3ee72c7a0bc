package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gospel5/gospel5/internal/auth"
	"github.com/gospel5/gospel5/internal/database"
	"github.com/gospel5/gospel5/internal/store"
)

type sentCode struct {
	to, code, purpose string
}

type sentNotice struct {
	to, requester string
}

type fakeMailer struct {
	mu       sync.Mutex
	disabled bool
	codes    []sentCode
	notices  []sentNotice
}

func (m *fakeMailer) Configured() bool { return !m.disabled }

func (m *fakeMailer) SendLoginCode(to, code, purpose string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, sentCode{to, code, purpose})
	return nil
}

func (m *fakeMailer) SendFriendRequestNotice(to, requester string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, sentNotice{to, requester})
	return nil
}

func (m *fakeMailer) lastCode(t *testing.T) sentCode {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.codes) == 0 {
		t.Fatal("no login code sent")
	}
	return m.codes[len(m.codes)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, us *store.UserStore, email, first string) int64 {
	t.Helper()
	u, err := us.Create(email, first, "")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u.ID
}

// newRequest builds a request acting as userID; 0 means anonymous.
func newRequest(method, target string, body any, userID int64) *http.Request {
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	if userID != 0 {
		req = req.WithContext(auth.WithAuth(context.Background(), auth.AuthContext{UserID: userID}))
	}
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}
