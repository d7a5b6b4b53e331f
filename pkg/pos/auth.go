package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tournevent/storefront/pkg/fallback"
	"github.com/tournevent/storefront/pkg/fault"
	"github.com/tournevent/storefront/pkg/oauth"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var errRefreshUnsupported = errors.New("pos: refresh grant not supported")

// loginShape is one accepted layout of the login payload.
type loginShape int

const (
	scopeString loginShape = iota
	scopeList
	scopeOmitted
)

func (s loginShape) String() string {
	switch s {
	case scopeString:
		return "scope-string"
	case scopeList:
		return "scope-list"
	default:
		return "no-scope"
	}
}

var loginShapes = []loginShape{scopeString, scopeList, scopeOmitted}

type loginBody struct {
	ClientID       string      `json:"clientId"`
	ClientSecret   string      `json:"clientSecret"`
	UserAccessType string      `json:"userAccessType"`
	Scope          interface{} `json:"scope,omitempty"`
}

type loginResponse struct {
	Token *struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int64  `json:"expiresIn"`
	} `json:"token"`
	AccessToken      string `json:"accessToken"`
	AccessTokenSnake string `json:"access_token"`
	ExpiresIn        int64  `json:"expiresIn"`
}

// authSource logs in against an ordered list of endpoint and payload combinations.
// It satisfies oauth.Source so the login result is cached by oauth.Cache.
type authSource struct {
	endpoints    []string
	clientID     string
	clientSecret string
	scope        string
	httpClient   *http.Client
	logger       *otelzap.Logger
	now          func() time.Time
}

// ClientCredentials tries every endpoint with every payload shape. A 404 or a network
// failure moves on to the next attempt; a 401 or any other status stops immediately.
// Outages surface as transport errors so they are not mistaken for bad credentials.
func (s *authSource) ClientCredentials(ctx context.Context) (*oauth.Token, error) {
	if s.clientID == "" || s.clientSecret == "" {
		return nil, fault.New(fault.KindAuth, serviceName, fault.CodeMissingCredentials,
			"POS credentials not configured")
	}

	chain := fallback.Chain[*oauth.Token]{
		Attempts: s.attempts(),
		Continue: continueLogin,
		OnSkip: func(name string, err error) {
			s.logger.Warn("POS login attempt failed, trying next", zap.String("attempt", name), zap.Error(err))
		},
	}

	tok, err := chain.Do(ctx)
	if err != nil {
		switch fault.KindOf(err) {
		case fault.KindAuth, fault.KindTransport:
			return nil, err
		}
		return nil, fault.New(fault.KindAuth, serviceName, fault.CodeUnavailable,
			"no authentication endpoint accepted the login").WithCause(err)
	}
	return tok, nil
}

// Refresh is not offered by the POS; the cache falls through to a new login.
func (s *authSource) Refresh(ctx context.Context, refreshToken string) (*oauth.Token, error) {
	return nil, errRefreshUnsupported
}

func (s *authSource) attempts() []fallback.Attempt[*oauth.Token] {
	attempts := make([]fallback.Attempt[*oauth.Token], 0, len(s.endpoints)*len(loginShapes))
	for _, endpoint := range s.endpoints {
		for _, shape := range loginShapes {
			endpoint, shape := endpoint, shape
			attempts = append(attempts, fallback.Attempt[*oauth.Token]{
				Name: fmt.Sprintf("%s (%s)", endpoint, shape),
				Run: func(ctx context.Context) (*oauth.Token, error) {
					return s.login(ctx, endpoint, shape)
				},
			})
		}
	}
	return attempts
}

func (s *authSource) body(shape loginShape) loginBody {
	b := loginBody{
		ClientID:       s.clientID,
		ClientSecret:   s.clientSecret,
		UserAccessType: "TOAST_MACHINE_CLIENT",
	}
	switch shape {
	case scopeString:
		if s.scope != "" {
			b.Scope = s.scope
		}
	case scopeList:
		if s.scope != "" {
			b.Scope = strings.Fields(s.scope)
		}
	}
	return b
}

func (s *authSource) login(ctx context.Context, endpoint string, shape loginShape) (*oauth.Token, error) {
	payload, err := json.Marshal(s.body(shape))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fault.Transport(serviceName, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return s.parseLogin(body)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fault.New(fault.KindAuth, serviceName, fault.CodeRejected,
			"POS rejected client credentials").WithStatusCode(resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, &APIError{StatusCode: resp.StatusCode, Code: "HTTP_404", Message: "login endpoint not found"}
	case fault.IsUnavailable(resp.StatusCode):
		return nil, fault.Unavailable(serviceName, resp.StatusCode, "POS login unavailable")
	default:
		return nil, fault.New(fault.KindAuth, serviceName, fmt.Sprintf("HTTP_%d", resp.StatusCode),
			strings.TrimSpace(string(body))).WithStatusCode(resp.StatusCode)
	}
}

func (s *authSource) parseLogin(body []byte) (*oauth.Token, error) {
	var accessToken string
	var expiresIn int64

	var raw string
	if err := json.Unmarshal(body, &raw); err == nil {
		accessToken = raw
	} else {
		var lr loginResponse
		if err := json.Unmarshal(body, &lr); err != nil {
			return nil, fmt.Errorf("failed to decode login response: %w", err)
		}
		switch {
		case lr.Token != nil && lr.Token.AccessToken != "":
			accessToken, expiresIn = lr.Token.AccessToken, lr.Token.ExpiresIn
		case lr.AccessToken != "":
			accessToken, expiresIn = lr.AccessToken, lr.ExpiresIn
		default:
			accessToken, expiresIn = lr.AccessTokenSnake, lr.ExpiresIn
		}
	}

	if accessToken == "" {
		return nil, fault.New(fault.KindAuth, serviceName, fault.CodeRejected, "login response has no access token")
	}
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return &oauth.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresAt:   s.now().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

func continueLogin(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return fault.IsTransport(err)
}
