package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	value := Sign("abc123", "server-secret")
	id, err := Verify(value, "server-secret")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("id = %q, want abc123", id)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	value := Sign("abc123", "server-secret")
	if _, err := Verify(value, "different-secret"); err != ErrInvalidSignature {
		t.Fatalf("Verify with wrong secret = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyRejectsTamperedSessionId(t *testing.T) {
	value := Sign("abc123", "server-secret")
	tampered := "s:xyz999" + value[len("s:abc123"):]
	if _, err := Verify(tampered, "server-secret"); err != ErrInvalidSignature {
		t.Fatalf("Verify(tampered) = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyRejectsMissingPrefix(t *testing.T) {
	if _, err := Verify("abc123.somesignature", "secret"); err != ErrInvalidSignature {
		t.Fatalf("Verify(no prefix) = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyRejectsMissingSeparator(t *testing.T) {
	if _, err := Verify("s:abc123", "secret"); err != ErrInvalidSignature {
		t.Fatalf("Verify(no separator) = %v, want ErrInvalidSignature", err)
	}
}

func TestExtractSessionIdMissingCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/realtime/?noteId=abc", nil)
	if _, err := ExtractSessionId(req, "HEDGEDOC_SESSION", "secret"); err != ErrMissingCookie {
		t.Fatalf("ExtractSessionId(no cookie) = %v, want ErrMissingCookie", err)
	}
}

func TestExtractSessionIdEmptyValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/realtime/?noteId=abc", nil)
	req.AddCookie(&http.Cookie{Name: "HEDGEDOC_SESSION", Value: ""})
	if _, err := ExtractSessionId(req, "HEDGEDOC_SESSION", "secret"); err != ErrMissingCookie {
		t.Fatalf("ExtractSessionId(empty value) = %v, want ErrMissingCookie", err)
	}
}

func TestExtractSessionIdUnknownCookieName(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/realtime/?noteId=abc", nil)
	req.AddCookie(&http.Cookie{Name: "OTHER_COOKIE", Value: Sign("abc", "secret")})
	if _, err := ExtractSessionId(req, "HEDGEDOC_SESSION", "secret"); err != ErrMissingCookie {
		t.Fatalf("ExtractSessionId(unknown name) = %v, want ErrMissingCookie", err)
	}
}

func TestExtractSessionIdValidCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/realtime/?noteId=abc", nil)
	req.AddCookie(&http.Cookie{Name: "HEDGEDOC_SESSION", Value: Sign("sess-1", "secret")})

	id, err := ExtractSessionId(req, "HEDGEDOC_SESSION", "secret")
	if err != nil {
		t.Fatalf("ExtractSessionId: %v", err)
	}
	if id != "sess-1" {
		t.Fatalf("id = %q, want sess-1", id)
	}
}
