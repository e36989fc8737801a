package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeAuthCode builds an opaque authorization code from the login nonce and
// the authenticated username. The code is a pure function of its inputs; its
// validity is derived at redemption time from whether the embedded username
// still resolves to a user.
func EncodeAuthCode(nonce, username string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(nonce + ":" + username))
}

// DecodeAuthCode reverses EncodeAuthCode.
func DecodeAuthCode(code string) (nonce, username string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(code, "="))
	if err != nil {
		return "", "", fmt.Errorf("decode authorization code: %w", err)
	}
	nonce, username, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", fmt.Errorf("malformed authorization code")
	}
	return nonce, username, nil
}

// EncodeRefreshToken serializes the issuance context into an opaque refresh
// token. The token is not a JWT and is not tracked server-side.
func EncodeRefreshToken(p RefreshTokenPayload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeRefreshToken reverses EncodeRefreshToken.
func DecodeRefreshToken(token string) (RefreshTokenPayload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return RefreshTokenPayload{}, fmt.Errorf("decode refresh token: %w", err)
	}
	var p RefreshTokenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return RefreshTokenPayload{}, fmt.Errorf("decode refresh token: %w", err)
	}
	return p, nil
}
