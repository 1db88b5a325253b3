// Package session parses and verifies the signed session cookie the
// upgrade request carries. The format (`s:<sessionId>.<signature>`,
// base64 HMAC-SHA256 without padding) is Express's cookie-signature
// scheme; no library in the reference pack speaks it, so this binds
// directly to crypto/hmac and crypto/sha256.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

// ErrMissingCookie is returned when the request has no cookie header, or
// no cookie with the configured name.
var ErrMissingCookie = errors.New("session: missing cookie")

// ErrInvalidSignature is returned when the cookie value cannot be parsed
// as a signed cookie, or its signature does not verify.
var ErrInvalidSignature = errors.New("session: invalid cookie signature")

const signedPrefix = "s:"

// ExtractSessionId pulls the session id out of the named cookie on req,
// verifying its HMAC-SHA256 signature against secret. An unverifiable or
// malformed signature is treated identically to an unknown session id by
// callers (spec §9: this implementer chose to verify, the spec's SHOULD).
func ExtractSessionId(req *http.Request, cookieName, secret string) (string, error) {
	cookie, err := req.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrMissingCookie
	}
	return Verify(cookie.Value, secret)
}

// Verify parses a raw cookie value of the form `s:<sessionId>.<signature>`
// and checks the signature. It returns the bare session id on success.
func Verify(value, secret string) (string, error) {
	if !strings.HasPrefix(value, signedPrefix) {
		return "", ErrInvalidSignature
	}
	signed := value[len(signedPrefix):]

	idx := strings.LastIndex(signed, ".")
	if idx < 0 {
		return "", ErrInvalidSignature
	}
	sessionId, signature := signed[:idx], signed[idx+1:]

	expected := sign(sessionId, secret)
	given, err := base64.RawStdEncoding.DecodeString(signature)
	if err != nil {
		return "", ErrInvalidSignature
	}
	if !hmac.Equal(given, expected) {
		return "", ErrInvalidSignature
	}
	return sessionId, nil
}

// Sign produces the signed cookie value for sessionId, for tests and
// fixtures that need to construct a valid cookie.
func Sign(sessionId, secret string) string {
	mac := sign(sessionId, secret)
	return signedPrefix + sessionId + "." + base64.RawStdEncoding.EncodeToString(mac)
}

func sign(sessionId, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(sessionId))
	return h.Sum(nil)
}
