package oauth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tournevent/storefront/pkg/fault"
)

// SourceConfig holds configuration for an HTTP token endpoint.
type SourceConfig struct {
	Service      string
	TokenURL     string
	RevokeURL    string
	ClientID     string
	ClientSecret string
	Scope        string
	Timeout      time.Duration
}

// HTTPSource requests tokens from an OAuth2 token endpoint using JSON bodies.
type HTTPSource struct {
	cfg        SourceConfig
	httpClient *http.Client
	now        func() time.Time
}

// NewHTTPSource creates a token source for production use.
func NewHTTPSource(cfg SourceConfig) *HTTPSource {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &HTTPSource{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Scope        string `json:"scope,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type tokenResponse struct {
	AccessToken           string `json:"access_token"`
	TokenType             string `json:"token_type"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
	Scope                 string `json:"scope"`
}

type revokeRequest struct {
	Token         string `json:"token"`
	TokenTypeHint string `json:"token_type_hint"`
}

// ClientCredentials requests a new token with the client-credentials grant.
func (s *HTTPSource) ClientCredentials(ctx context.Context) (*Token, error) {
	if err := s.checkCredentials(); err != nil {
		return nil, err
	}
	return s.grant(ctx, tokenRequest{
		GrantType:    "client_credentials",
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		Scope:        s.cfg.Scope,
	})
}

// Refresh exchanges a refresh token for a new access token.
func (s *HTTPSource) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if err := s.checkCredentials(); err != nil {
		return nil, err
	}
	return s.grant(ctx, tokenRequest{
		GrantType:    "refresh_token",
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		Scope:        s.cfg.Scope,
		RefreshToken: refreshToken,
	})
}

// Revoke revokes an access token using HTTP Basic client authentication.
func (s *HTTPSource) Revoke(ctx context.Context, token string) error {
	if s.cfg.RevokeURL == "" || token == "" {
		return nil
	}

	body, err := json.Marshal(revokeRequest{Token: token, TokenTypeHint: "access_token"})
	if err != nil {
		return fmt.Errorf("failed to marshal revoke request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.RevokeURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(s.cfg.ClientID + ":" + s.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fault.Transport(s.cfg.Service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return s.parseError(resp)
	}
	return nil
}

func (s *HTTPSource) checkCredentials() error {
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return fault.New(fault.KindAuth, s.cfg.Service, fault.CodeMissingCredentials,
			"OAuth credentials not configured")
	}
	return nil
}

func (s *HTTPSource) grant(ctx context.Context, tr tokenRequest) (*Token, error) {
	body, err := json.Marshal(tr)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fault.Transport(s.cfg.Service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.parseError(resp)
	}

	var result tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.AccessToken == "" {
		return nil, fault.New(fault.KindAuth, s.cfg.Service, fault.CodeRejected, "token response has no access_token")
	}

	now := s.now()
	expiresIn := result.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	tok := &Token{
		AccessToken:  result.AccessToken,
		TokenType:    result.TokenType,
		ExpiresAt:    now.Add(time.Duration(expiresIn) * time.Second),
		RefreshToken: result.RefreshToken,
		Scope:        result.Scope,
	}
	if result.RefreshToken != "" && result.RefreshTokenExpiresIn > 0 {
		tok.RefreshExpiresAt = now.Add(time.Duration(result.RefreshTokenExpiresIn) * time.Second)
	}
	return tok, nil
}

// parseError maps a token endpoint failure. Rate limiting and 5xx answers are outages, not
// credential problems; everything else is an auth error, with scope problems under their own code.
func (s *HTTPSource) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var oauthErr struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	_ = json.Unmarshal(body, &oauthErr)

	msg := oauthErr.Description
	if msg == "" {
		msg = oauthErr.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	if fault.IsUnavailable(resp.StatusCode) {
		return fault.Unavailable(s.cfg.Service, resp.StatusCode, "token endpoint unavailable: "+msg)
	}

	code := fmt.Sprintf("HTTP_%d", resp.StatusCode)
	switch {
	case oauthErr.Error == "invalid_scope" || strings.Contains(strings.ToLower(msg), "scope"):
		code = fault.CodeInsufficientScope
	case resp.StatusCode == http.StatusUnauthorized || oauthErr.Error == "invalid_client":
		code = fault.CodeRejected
	}

	return fault.New(fault.KindAuth, s.cfg.Service, code, msg).WithStatusCode(resp.StatusCode)
}
