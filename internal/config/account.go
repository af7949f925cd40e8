package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/snapetech/xtreamcat/internal/catalog"
)

// Account is a decoded client configuration: one backend plus credentials.
type Account struct {
	BaseURL  string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// DecodeToken turns an opaque client token into an Account. Tokens are
// URL-safe base64 of the account JSON (padding optional). Any decode or
// validation failure is a catalog.ErrConfig: fatal, never retried.
func DecodeToken(token string) (Account, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Account{}, fmt.Errorf("%w: empty token", catalog.ErrConfig)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return Account{}, fmt.Errorf("%w: token decode: %v", catalog.ErrConfig, err)
	}
	var a Account
	if err := json.Unmarshal(raw, &a); err != nil {
		return Account{}, fmt.Errorf("%w: token payload: %v", catalog.ErrConfig, err)
	}
	if err := a.Validate(); err != nil {
		return Account{}, err
	}
	a.BaseURL = strings.TrimSuffix(a.BaseURL, "/")
	return a, nil
}

// EncodeToken is the inverse of DecodeToken, used by the CLI to mint tokens.
func EncodeToken(a Account) string {
	raw, _ := json.Marshal(a)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Validate checks that the account is complete enough to reach a backend.
func (a Account) Validate() error {
	if a.BaseURL == "" || a.Username == "" || a.Password == "" {
		return fmt.Errorf("%w: url, username and password are all required", catalog.ErrConfig)
	}
	u, err := url.Parse(a.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be http(s)", catalog.ErrConfig)
	}
	return nil
}

// Redacted returns the base URL with userinfo and credential query
// parameters stripped, safe for logging.
func Redacted(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "(unparseable url)"
	}
	u.User = nil
	q := u.Query()
	for _, k := range []string{"username", "password"} {
		if q.Has(k) {
			q.Set(k, "redacted")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
