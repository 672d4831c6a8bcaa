package oauth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tokengate/nft-oauth/security"
)

const tokenTypeBearer = "Bearer"

// Handler exposes the token service over HTTP. It is a thin JSON adapter:
// all flow semantics live in Server.
type Handler struct {
	server *Server
	logger *slog.Logger
}

// NewHandler creates an HTTP handler backed by the given server.
func NewHandler(server *Server) *Handler {
	return &Handler{
		server: server,
		logger: server.logger,
	}
}

// RegisterRoutes registers all endpoints on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /oauth/authorize", h.instrument("/oauth/authorize", h.ServeAuthorize))
	mux.Handle("POST /oauth/token", h.instrument("/oauth/token", h.ServeToken))
	mux.Handle("POST /oauth/verify", h.instrument("/oauth/verify", h.ServeVerify))
	mux.Handle("POST /oauth/revoke", h.instrument("/oauth/revoke", h.ServeRevoke))
	mux.Handle("GET /oauth/user/tokens/{address}", h.instrument("/oauth/user/tokens", h.ServeUserTokens))
	mux.Handle("GET /health", h.instrument("/health", h.ServeHealth))
}

// Routes returns a ready-to-serve handler with all endpoints registered and
// request ID propagation enabled.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return security.RequestIDMiddleware(mux)
}

// ServeAuthorize handles POST /oauth/authorize
func (h *Handler) ServeAuthorize(w http.ResponseWriter, r *http.Request) {
	clientIP := h.clientIP(r)
	if h.rateLimited(w, r, clientIP) {
		return
	}

	var req AuthorizeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.server.Authorize(r.Context(), &req, clientIP)
	if err != nil {
		h.writeOAuthError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ServeToken handles POST /oauth/token
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	clientIP := h.clientIP(r)
	if h.rateLimited(w, r, clientIP) {
		return
	}

	var req TokenRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.server.ExchangeAuthorizationCode(r.Context(), &req, clientIP)
	if err != nil {
		h.writeOAuthError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ServeVerify handles POST /oauth/verify. The bearer token is taken from
// the JSON body, falling back to the Authorization header.
func (h *Handler) ServeVerify(w http.ResponseWriter, r *http.Request) {
	clientIP := h.clientIP(r)
	if h.rateLimited(w, r, clientIP) {
		return
	}

	var req VerifyRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	bearer := req.Token
	if bearer == "" {
		bearer = extractBearerToken(r)
	}
	if bearer == "" {
		h.writeError(w, ErrorCodeInvalidRequest, "token is required", http.StatusBadRequest)
		return
	}

	resp, err := h.server.VerifyToken(r.Context(), bearer, clientIP)
	if err != nil {
		h.writeOAuthError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ServeRevoke handles POST /oauth/revoke
func (h *Handler) ServeRevoke(w http.ResponseWriter, r *http.Request) {
	clientIP := h.clientIP(r)
	if h.rateLimited(w, r, clientIP) {
		return
	}

	var req RevokeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	bearer := req.Token
	if bearer == "" {
		bearer = extractBearerToken(r)
	}
	if bearer == "" {
		h.writeError(w, ErrorCodeInvalidRequest, "token is required", http.StatusBadRequest)
		return
	}

	resp, err := h.server.RevokeToken(r.Context(), bearer, clientIP)
	if err != nil {
		h.writeOAuthError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ServeUserTokens handles GET /oauth/user/tokens/{address}
func (h *Handler) ServeUserTokens(w http.ResponseWriter, r *http.Request) {
	clientIP := h.clientIP(r)
	if h.rateLimited(w, r, clientIP) {
		return
	}

	resp, err := h.server.ListUserTokens(r.Context(), r.PathValue("address"))
	if err != nil {
		h.writeOAuthError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ServeHealth handles GET /health
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.server.HealthCheck(r.Context()); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) clientIP(r *http.Request) string {
	return security.GetClientIP(r, h.server.config.Security.TrustProxy, h.server.config.Security.TrustedProxyCount)
}

// rateLimited applies per-IP rate limiting. Returns true when the request
// was rejected and a response already written.
func (h *Handler) rateLimited(w http.ResponseWriter, r *http.Request, clientIP string) bool {
	if h.server.rateLimiter == nil {
		return false
	}
	if h.server.rateLimiter.Allow(clientIP) {
		return false
	}

	h.server.auditor.LogRateLimitExceeded(clientIP, "")
	if h.server.inst != nil {
		h.server.inst.Metrics().RecordRateLimitExceeded(r.Context(), "ip")
	}
	h.writeError(w, ErrorCodeRateLimitExceeded, "too many requests", http.StatusTooManyRequests)
	return true
}

// decodeJSON decodes the request body into v. On failure it writes an
// invalid_request error and returns false.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		h.writeError(w, ErrorCodeInvalidRequest, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	security.SetSecurityHeaders(w, h.server.config.Issuer)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeOAuthError maps an error from the server to an OAuth error response.
func (h *Handler) writeOAuthError(w http.ResponseWriter, err error) {
	var oauthErr *OAuthError
	if errors.As(err, &oauthErr) {
		h.writeError(w, oauthErr.Code, oauthErr.Description, oauthErr.Status)
		return
	}
	h.writeError(w, ErrorCodeServerError, "internal server error", http.StatusInternalServerError)
}

func (h *Handler) writeError(w http.ResponseWriter, code, description string, status int) {
	security.SetSecurityHeaders(w, h.server.config.Issuer)

	// RFC 6750: 401 responses carry a WWW-Authenticate challenge
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", tokenTypeBearer)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

// extractBearerToken pulls a bearer token from the Authorization header.
// Returns "" if the header is absent or not a Bearer scheme.
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], tokenTypeBearer) {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// instrument wraps an endpoint with HTTP request metrics.
func (h *Handler) instrument(endpoint string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(sr, r)

		if h.server.inst != nil {
			durationMs := time.Since(start).Seconds() * 1000
			h.server.inst.Metrics().RecordHTTPRequest(r.Context(), r.Method, endpoint, sr.status, durationMs)
		}
	})
}
