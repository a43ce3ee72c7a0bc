package email

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, status int, received *postmarkEmail, gotToken *string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotToken != nil {
			*gotToken = r.Header.Get("X-Postmark-Server-Token")
		}
		if received != nil {
			json.NewDecoder(r.Body).Decode(received)
		}
		w.WriteHeader(status)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSendLoginCode(t *testing.T) {
	var received postmarkEmail
	var gotToken string
	server := newTestServer(t, http.StatusOK, &received, &gotToken)

	client := NewClient("test-token", "noreply@example.com", "https://gospel5.test", WithAPIURL(server.URL))

	if err := client.SendLoginCode("alice@example.com", "123456", "login"); err != nil {
		t.Fatalf("send login code: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", received.To, "alice@example.com")
	}
	if received.From != "noreply@example.com" {
		t.Errorf("From = %q, want %q", received.From, "noreply@example.com")
	}
	if !strings.Contains(received.TextBody, "123456") {
		t.Errorf("TextBody %q missing code", received.TextBody)
	}
	if received.Subject != "Your Gospel in 5 Minutes sign-in code" {
		t.Errorf("Subject = %q", received.Subject)
	}
}

func TestSendLoginCodeRegister(t *testing.T) {
	var received postmarkEmail
	server := newTestServer(t, http.StatusOK, &received, nil)

	client := NewClient("test-token", "noreply@example.com", "https://gospel5.test", WithAPIURL(server.URL))
	if err := client.SendLoginCode("bob@example.com", "654321", "register"); err != nil {
		t.Fatalf("send login code: %v", err)
	}
	if received.Subject != "Welcome to Gospel in 5 Minutes" {
		t.Errorf("Subject = %q, want welcome subject", received.Subject)
	}
}

func TestSendFriendRequestNotice(t *testing.T) {
	var received postmarkEmail
	server := newTestServer(t, http.StatusOK, &received, nil)

	client := NewClient("test-token", "noreply@example.com", "https://gospel5.test", WithAPIURL(server.URL))
	if err := client.SendFriendRequestNotice("bob@example.com", "Alice <A>"); err != nil {
		t.Fatalf("send notice: %v", err)
	}

	if received.Subject != "Alice <A> sent you a friend request" {
		t.Errorf("Subject = %q", received.Subject)
	}
	if !strings.Contains(received.HtmlBody, "Alice &lt;A&gt;") {
		t.Errorf("HtmlBody %q should escape requester name", received.HtmlBody)
	}
	if !strings.Contains(received.TextBody, "https://gospel5.test/friends/requests") {
		t.Errorf("TextBody %q missing link", received.TextBody)
	}
}

func TestSendNotConfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com", "https://gospel5.test")
	if client.Configured() {
		t.Error("expected Configured() = false")
	}
	if err := client.SendLoginCode("alice@example.com", "123456", "login"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSendAPIError(t *testing.T) {
	server := newTestServer(t, http.StatusUnprocessableEntity, nil, nil)

	client := NewClient("test-token", "noreply@example.com", "https://gospel5.test", WithAPIURL(server.URL))
	if err := client.SendLoginCode("alice@example.com", "123456", "login"); err == nil {
		t.Error("expected error for 422 response")
	}
}
