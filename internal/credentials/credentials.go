// Package credentials builds the bearer token source handed to the
// provider client. The client never sees how the token was obtained.
package credentials

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	internalerrors "github.com/jjgriff93/ai-contact-centre/internal/errors"
	"github.com/jjgriff93/ai-contact-centre/pkg/transport"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Settings selects a credential. AccessToken wins when set.
type Settings struct {
	AccessToken   string
	TenantID      string
	ClientID      string
	ClientSecret  string
	AuthorityHost string
	Scope         string
	// HTTPClient is used for token requests; nil means a DNS-cached client
	// with Timeout.
	HTTPClient *http.Client
	Timeout    time.Duration
}

// TokenSource returns a caching token source for s. ctx scopes token
// requests made by the client-credentials flow.
func TokenSource(ctx context.Context, s Settings) (oauth2.TokenSource, error) {
	if token := strings.TrimSpace(s.AccessToken); token != "" {
		log.Debug().Msg("Using static bearer token")
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}), nil
	}

	var missing []string
	if s.TenantID == "" {
		missing = append(missing, "tenant id")
	}
	if s.ClientID == "" {
		missing = append(missing, "client id")
	}
	if s.ClientSecret == "" {
		missing = append(missing, "client secret")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: no access token and client credentials incomplete: missing %s",
			internalerrors.ErrInvalidInput, strings.Join(missing, ", "))
	}
	if s.Scope == "" {
		return nil, fmt.Errorf("%w: token scope is required", internalerrors.ErrInvalidInput)
	}

	authority := strings.TrimSuffix(strings.TrimSpace(s.AuthorityHost), "/")
	if authority == "" {
		authority = "https://login.microsoftonline.com"
	}

	httpClient := s.HTTPClient
	if httpClient == nil {
		httpClient = transport.NewHTTPClient(s.Timeout)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	cc := &clientcredentials.Config{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		TokenURL:     TokenURL(authority, s.TenantID),
		Scopes:       []string{s.Scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	log.Debug().
		Str("tenant", s.TenantID).
		Str("client_id", s.ClientID).
		Msg("Using client credentials")
	return cc.TokenSource(ctx), nil
}

// TokenURL is the Entra ID v2 token endpoint for tenant.
func TokenURL(authority, tenant string) string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimSuffix(authority, "/"), tenant)
}
