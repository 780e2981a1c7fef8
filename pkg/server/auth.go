package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/rhuss/workbridge/pkg/api"
	"github.com/rhuss/workbridge/pkg/config"
	"github.com/rhuss/workbridge/pkg/observability"
)

// Decision is the vote of one authenticator.
type Decision int

const (
	// Yes admits the caller and stops the chain.
	Yes Decision = iota
	// No rejects the caller and stops the chain.
	No
	// Abstain passes to the next authenticator.
	Abstain
)

// ErrUnauthenticated is returned for missing or invalid credentials.
var ErrUnauthenticated = errors.New("authentication required")

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	Decision Decision
	Subject  string
	Err      error
}

// Authenticator inspects request credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// AuthChain evaluates authenticators in order and stops on the first Yes
// or No. When all abstain the caller is rejected.
type AuthChain []Authenticator

// Authenticate runs the chain.
func (c AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, a := range c {
		if res := a.Authenticate(ctx, r); res.Decision != Abstain {
			return res
		}
	}
	return AuthResult{Decision: No, Err: ErrUnauthenticated}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(h, "Bearer "), true
}

// APIKeyAuthenticator validates bearer tokens against static keys. Keys
// are kept as SHA-256 hashes and compared in constant time.
type APIKeyAuthenticator struct {
	hashes [][32]byte
}

// NewAPIKeyAuthenticator hashes keys and drops the plaintext.
func NewAPIKeyAuthenticator(keys []string) *APIKeyAuthenticator {
	a := &APIKeyAuthenticator{}
	for _, k := range keys {
		a.hashes = append(a.hashes, sha256.Sum256([]byte(k)))
	}
	return a
}

// Authenticate abstains for tokens that look like JWTs so a JWT
// authenticator later in the chain can judge them.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, r *http.Request) AuthResult {
	token, ok := bearerToken(r)
	if !ok {
		return AuthResult{Decision: Abstain}
	}
	sum := sha256.Sum256([]byte(token))
	for i, h := range a.hashes {
		if subtle.ConstantTimeCompare(sum[:], h[:]) == 1 {
			return AuthResult{Decision: Yes, Subject: fmt.Sprintf("api-key-%d", i)}
		}
	}
	if strings.Count(token, ".") == 2 {
		return AuthResult{Decision: Abstain}
	}
	return AuthResult{Decision: No, Err: ErrUnauthenticated}
}

// JWTAuthenticator validates HS256 bearer tokens.
type JWTAuthenticator struct {
	secret []byte
	parser *jwtlib.Parser
}

// NewJWTAuthenticator creates an authenticator. Empty issuer or audience
// are not checked.
func NewJWTAuthenticator(secret, issuer, audience string) *JWTAuthenticator {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithLeeway(30 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwtlib.WithAudience(audience))
	}
	return &JWTAuthenticator{secret: []byte(secret), parser: jwtlib.NewParser(opts...)}
}

// Authenticate validates the token signature and registered claims.
func (a *JWTAuthenticator) Authenticate(_ context.Context, r *http.Request) AuthResult {
	token, ok := bearerToken(r)
	if !ok {
		return AuthResult{Decision: Abstain}
	}
	claims := &jwtlib.RegisteredClaims{}
	if _, err := a.parser.ParseWithClaims(token, claims, func(*jwtlib.Token) (any, error) {
		return a.secret, nil
	}); err != nil {
		return AuthResult{Decision: No, Err: fmt.Errorf("%w: %v", ErrUnauthenticated, err)}
	}
	if claims.Subject == "" {
		return AuthResult{Decision: No, Err: fmt.Errorf("%w: token has no subject", ErrUnauthenticated)}
	}
	return AuthResult{Decision: Yes, Subject: claims.Subject}
}

// NewAuthChain builds the chain for cfg. It returns nil when no
// credential is configured.
func NewAuthChain(cfg config.ServerAuthConfig) AuthChain {
	var chain AuthChain
	if len(cfg.APIKeys) > 0 {
		chain = append(chain, NewAPIKeyAuthenticator(cfg.APIKeys))
	}
	if cfg.JWTSecret != "" {
		chain = append(chain, NewJWTAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience))
	}
	return chain
}

// limiters hands out one token bucket per caller. Idle callers are evicted.
type limiters struct {
	mu    sync.Mutex
	rpm   int
	cache *expirable.LRU[string, *rate.Limiter]
}

func newLimiters(rpm int) *limiters {
	return &limiters{rpm: rpm, cache: expirable.NewLRU[string, *rate.Limiter](4096, nil, 10*time.Minute)}
}

func (l *limiters) allow(subject string) bool {
	l.mu.Lock()
	lim, ok := l.cache.Get(subject)
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(l.rpm)/60), l.rpm)
		l.cache.Add(subject, lim)
	}
	l.mu.Unlock()
	return lim.Allow()
}

type subjectKey struct{}

// SubjectFromContext returns the authenticated caller, or "".
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

// authMiddleware authenticates every request except those to bypass
// paths and applies the per-caller limit. A nil chain admits everyone as
// "anonymous".
func authMiddleware(chain AuthChain, rpm int, bypass []string, logger *slog.Logger) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(bypass))
	for _, p := range bypass {
		skip[p] = true
	}
	var lim *limiters
	if rpm > 0 {
		lim = newLimiters(rpm)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			subject := "anonymous"
			if chain != nil {
				res := chain.Authenticate(r.Context(), r)
				if res.Decision != Yes {
					logger.Warn("authentication failed",
						"path", r.URL.Path,
						"remote_addr", r.RemoteAddr,
						"error", res.Err,
					)
					observability.AuthRejectedTotal.WithLabelValues("unauthenticated").Inc()
					writeError(w, &api.ErrorInfo{Type: api.ErrorTypeValidation, Message: ErrUnauthenticated.Error()}, http.StatusUnauthorized)
					return
				}
				subject = res.Subject
			}

			if lim != nil && !lim.allow(subject) {
				logger.Warn("rate limit exceeded", "subject", subject)
				observability.AuthRejectedTotal.WithLabelValues("rate_limited").Inc()
				w.Header().Set("Retry-After", "60")
				writeError(w, &api.ErrorInfo{Type: api.ErrorTypeValidation, Message: "rate limit exceeded"}, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, subject)))
		})
	}
}
