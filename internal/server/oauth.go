package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
)

// AuthResult reports the outcome of one OAuth callback.
type AuthResult struct {
	Service models.ServiceType
	err     error
}

func (a *AuthResult) Error() error {
	return a.err
}

// AppleTokenSetter accepts Apple Music tokens obtained outside an OAuth redirect.
type AppleTokenSetter interface {
	SetDeveloperToken(ctx context.Context, developerToken string) error
	SetTokens(ctx context.Context, developerToken, musicUserToken string) error
}

// AuthHandler starts and completes service authorization.
//
// Spotify and YouTube Music use an OAuth redirect; Apple Music tokens are posted directly.
type AuthHandler struct {
	connectors services.Connectors
	logger     *log.Logger
	resultChan chan AuthResult
	once       sync.Once
}

func NewAuthHandler(connectors services.Connectors, logger *log.Logger) *AuthHandler {
	return &AuthHandler{
		connectors: connectors,
		logger:     logger,
		resultChan: make(chan AuthResult, 1),
	}
}

// Register adds the auth routes to router.
func (h *AuthHandler) Register(router *BasicRouter) {
	router.HandleFunc(http.MethodGet, "/auth/{service}/start", h.start)
	router.HandleFunc(http.MethodGet, "/auth/{service}/callback", h.callback)
	router.HandleFunc(http.MethodPost, "/api/apple/developer-token", h.appleDeveloperToken)
	router.HandleFunc(http.MethodPost, "/api/apple/token", h.appleToken)
}

// oauthConnector resolves the path's service, writing the error response itself when it cannot.
func (h *AuthHandler) oauthConnector(w http.ResponseWriter, r *http.Request) (services.OAuthConnector, bool) {
	service, err := models.ParseServiceType(r.PathValue("service"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown service")
		return nil, false
	}
	conn, err := h.connectors.Get(service)
	if err != nil || !conn.IsConfigured() {
		writeError(w, http.StatusBadRequest, "connector not configured")
		return nil, false
	}
	oauth, ok := conn.(services.OAuthConnector)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s does not use an OAuth redirect; post tokens to /api/apple/token", service.DisplayName()))
		return nil, false
	}
	return oauth, true
}

func (h *AuthHandler) start(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.oauthConnector(w, r)
	if !ok {
		return
	}
	url, err := conn.AuthURL(r.Context())
	if err != nil {
		h.logger.Error("Failed to build auth URL", "service", conn.Service(), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start authorization")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// callback validates state, exchanges the code for a token and reports the outcome on [AuthHandler.Result].
func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.oauthConnector(w, r)
	if !ok {
		return
	}

	if err := conn.CompleteAuth(r.Context(), r.URL.Query()); err != nil {
		h.logger.Warn("Authorization failed", "service", conn.Service(), "error", err)
		h.Send(AuthResult{Service: conn.Service(), err: err})
		status := http.StatusBadRequest
		if !isClientAuthError(err) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}

	h.logger.Info("Authorization complete", "service", conn.Service())
	h.Send(AuthResult{Service: conn.Service()})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, successPage, html.EscapeString(conn.Service().DisplayName()))
}

func isClientAuthError(err error) bool {
	return errors.Is(err, shared.ErrInvalidState) ||
		errors.Is(err, shared.ErrInvalidInput) ||
		errors.Is(err, shared.ErrNotAuthenticated)
}

func (h *AuthHandler) appleSetter(w http.ResponseWriter) (AppleTokenSetter, bool) {
	conn, err := h.connectors.Get(models.AppleMusic)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Apple Music connector unavailable")
		return nil, false
	}
	setter, ok := conn.(AppleTokenSetter)
	if !ok {
		writeError(w, http.StatusBadRequest, "Apple Music connector unavailable")
		return nil, false
	}
	return setter, true
}

func (h *AuthHandler) appleDeveloperToken(w http.ResponseWriter, r *http.Request) {
	setter, ok := h.appleSetter(w)
	if !ok {
		return
	}
	var req struct {
		DeveloperToken string `json:"developer_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DeveloperToken == "" {
		writeError(w, http.StatusBadRequest, "developer_token missing")
		return
	}
	if err := setter.SetDeveloperToken(r.Context(), req.DeveloperToken); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) appleToken(w http.ResponseWriter, r *http.Request) {
	setter, ok := h.appleSetter(w)
	if !ok {
		return
	}
	var req struct {
		DeveloperToken string `json:"developer_token"`
		MusicUserToken string `json:"music_user_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := setter.SetTokens(r.Context(), req.DeveloperToken, req.MusicUserToken); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.Send(AuthResult{Service: models.AppleMusic})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Send delivers the first result to [AuthHandler.Result]; later results are dropped.
func (h *AuthHandler) Send(result AuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the channel receiving the first authorization outcome.
//
// Channel will receive exactly one result and then be closed.
func (h *AuthHandler) Result() <-chan AuthResult {
	return h.resultChan
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ %s connected</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
