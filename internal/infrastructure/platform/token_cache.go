package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jhoicas/Cumplimiento-api/internal/application/ports"
	"github.com/jhoicas/Cumplimiento-api/pkg/clock"
	"github.com/jhoicas/Cumplimiento-api/pkg/jwt"
	"github.com/jhoicas/Cumplimiento-api/pkg/resilience"
)

const (
	defaultTokenTTL = 5 * time.Minute
	tokenSkew       = 30 * time.Second
)

// TokenSource obtiene tokens OAuth2 client-credentials y los guarda por empresa y plataforma.
type TokenSource struct {
	httpClient *http.Client
	cache      ports.Cache
	clock      clock.Clock
	log        zerolog.Logger
}

// NewTokenSource cache es obligatoria (memoria o Redis).
func NewTokenSource(httpClient *http.Client, cache ports.Cache, clk clock.Clock, log zerolog.Logger) *TokenSource {
	if clk == nil {
		clk = clock.System{}
	}
	return &TokenSource{httpClient: httpClient, cache: cache, clock: clk, log: log}
}

func tokenKey(companyID, platform string) string { return "token|" + companyID + "|" + platform }

// Token devuelve el token en caché o pide uno nuevo con el flujo client-credentials.
func (s *TokenSource) Token(ctx context.Context, companyID, platform string, c Credentials) (string, error) {
	key := tokenKey(companyID, platform)
	if tok, found, err := s.cache.Get(ctx, key); err == nil && found {
		return tok, nil
	} else if err != nil {
		s.log.Warn().Err(err).Str("platform", platform).Msg("caché de tokens no disponible")
	}

	tokenURL := c.TokenURL
	if tokenURL == "" {
		tokenURL = strings.TrimRight(c.BaseURL, "/") + "/oauth/token"
	}
	cc := clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, s.httpClient))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return "", &resilience.StatusError{StatusCode: re.Response.StatusCode, Body: string(re.Body)}
		}
		return "", fmt.Errorf("token: %w", err)
	}

	if ttl := s.ttl(tok); ttl > 0 {
		if err := s.cache.Set(ctx, key, tok.AccessToken, ttl); err != nil {
			s.log.Warn().Err(err).Str("platform", platform).Msg("no se pudo cachear el token")
		}
	}
	return tok.AccessToken, nil
}

// Invalidate descarta el token tras un 401.
func (s *TokenSource) Invalidate(ctx context.Context, companyID, platform string) {
	_ = s.cache.Delete(ctx, tokenKey(companyID, platform))
}

// ttl vigencia restante según Expiry (lo fija oauth2 con el reloj del sistema), o el exp
// del JWT si la plataforma no envía expires_in, menos un margen.
func (s *TokenSource) ttl(tok *oauth2.Token) time.Duration {
	ttl := defaultTokenTTL
	if !tok.Expiry.IsZero() {
		ttl = time.Until(tok.Expiry)
	} else if exp, err := jwt.ExpiresAtUnverified(tok.AccessToken); err == nil {
		ttl = exp.Sub(s.clock.Now())
	}
	return ttl - tokenSkew
}
