package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"djbooking/internal/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	clientKeyUnknown      = "unknown"

	PermReadVenues    = "read:venues"
	PermWriteVenues   = "write:venues"
	PermReadBookings  = "read:bookings"
	PermWriteBookings = "write:bookings"
	PermPresence      = "presence"
	PermReadHealth    = "read:health"
)

var (
	errMissingCredentials = errors.New("missing api key headers")
	errInvalidAPIKey      = errors.New("invalid api key")
	errInvalidExtra       = errors.New("invalid extra header")
	errPermissionDenied   = errors.New("permission denied")
	errRateLimited        = errors.New("rate limit exceeded")
)

// authenticator checks API key pairs and permissions. It is shared by the HTTP and gRPC fronts.
type authenticator struct {
	cfg          config.APIConfig
	apiKeyHeader string
	extraHeader  string
	clients      map[string]config.APIClientKey
	limiter      *rateLimiter
}

func newAuthenticator(cfg config.APIConfig) *authenticator {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}

	apiKeyHeader := strings.ToLower(strings.TrimSpace(cfg.Auth.HeaderAPIKey))
	if apiKeyHeader == "" {
		apiKeyHeader = apiKeyHeaderDefault
	}
	extraHeader := strings.ToLower(strings.TrimSpace(cfg.Auth.HeaderExtra))
	if extraHeader == "" {
		extraHeader = apiExtraHeaderDefault
	}

	return &authenticator{
		cfg:          cfg,
		apiKeyHeader: apiKeyHeader,
		extraHeader:  extraHeader,
		clients:      m,
		limiter:      newRateLimiter(cfg.RateLimit),
	}
}

// check validates the key pair and that the client holds required ("" means none needed).
func (a *authenticator) check(apiKey, extra, required string) error {
	apiKey, extra = strings.TrimSpace(apiKey), strings.TrimSpace(extra)
	if apiKey == "" || extra == "" {
		return errMissingCredentials
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return errInvalidAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return errInvalidExtra
	}
	return checkPermissions(client, required)
}

func checkPermissions(client config.APIClientKey, required string) error {
	if required == "" {
		return nil
	}
	// An empty permission list is allow-all.
	if len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

// HTTPAuth wraps handlers with API-key auth and per-key rate limiting.
type HTTPAuth struct {
	*authenticator
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{authenticator: newAuthenticator(cfg)}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Auth.Enabled {
			err := a.check(r.Header.Get(a.apiKeyHeader), r.Header.Get(a.extraHeader), requiredPermissionHTTP(r))
			if err != nil {
				statusCode := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if !a.limiter.allow(a.httpClientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errRateLimited.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) httpClientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.apiKeyHeader)); apiKey != "" {
		return apiKey
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func requiredPermissionHTTP(r *http.Request) string {
	path := r.URL.Path
	read := r.Method == http.MethodGet || r.Method == http.MethodHead
	switch {
	case strings.HasPrefix(path, "/api/v1/presence"):
		return PermPresence
	case strings.HasPrefix(path, "/api/v1/bookings"):
		if read {
			return PermReadBookings
		}
		return PermWriteBookings
	case strings.HasPrefix(path, "/api/v1/venues"):
		if read {
			return PermReadVenues
		}
		return PermWriteVenues
	case strings.HasPrefix(path, "/api/v1/week-of-month"):
		return PermReadVenues
	default:
		return ""
	}
}

// AuthInterceptor applies the same checks to unary gRPC calls using metadata.
type AuthInterceptor struct {
	*authenticator
}

func NewAuthInterceptor(cfg config.APIConfig) *AuthInterceptor {
	return &AuthInterceptor{authenticator: newAuthenticator(cfg)}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if a.cfg.Auth.Enabled {
			md, ok := metadata.FromIncomingContext(ctx)
			if !ok {
				return nil, status.Error(codes.Unauthenticated, "missing metadata")
			}
			err := a.check(first(md.Get(a.apiKeyHeader)), first(md.Get(a.extraHeader)), requiredPermission(info.FullMethod))
			if errors.Is(err, errPermissionDenied) {
				return nil, status.Error(codes.PermissionDenied, err.Error())
			}
			if err != nil {
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}
		}

		if !a.limiter.allow(a.grpcClientKey(ctx)) {
			return nil, status.Error(codes.ResourceExhausted, errRateLimited.Error())
		}
		return handler(ctx, req)
	}
}

func requiredPermission(fullMethod string) string {
	if strings.HasPrefix(fullMethod, "/grpc.health.v1.Health/") {
		return PermReadHealth
	}
	return ""
}

func (a *AuthInterceptor) grpcClientKey(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if apiKey := first(md.Get(a.apiKeyHeader)); apiKey != "" {
		return apiKey
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
