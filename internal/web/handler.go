package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/keystrand/keystrand/internal/auth/service"
	"github.com/keystrand/keystrand/internal/auth/session"
	"github.com/keystrand/keystrand/internal/auth/user"
	"github.com/keystrand/keystrand/internal/passkey"
	apperrors "github.com/keystrand/keystrand/internal/platform/errors"
)

// maxBodyBytes caps request bodies; ceremony payloads are small.
const maxBodyBytes = 64 * 1024

// Handler serves the JSON auth API.
type Handler struct {
	auth          *service.Service
	origin        string
	sessionKey    []byte
	secureCookies bool
}

// HandlerConfig defines the inputs for the API handler.
type HandlerConfig struct {
	Auth *service.Service

	// Origin is the browser origin allowed to call state-changing routes.
	Origin string

	// SessionKey signs the session cookie.
	SessionKey []byte

	SecureCookies bool
}

// NewHandler builds the HTTP handler for the auth API.
func NewHandler(cfg HandlerConfig) (http.Handler, error) {
	if cfg.Auth == nil {
		return nil, errors.New("auth service is required")
	}
	if cfg.Origin == "" {
		return nil, errors.New("origin is required")
	}
	if len(cfg.SessionKey) == 0 {
		return nil, errors.New("session key is required")
	}

	h := &Handler{
		auth:          cfg.Auth,
		origin:        cfg.Origin,
		sessionKey:    cfg.SessionKey,
		secureCookies: cfg.SecureCookies,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/challenge", h.handleChallenge)
	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", h.handleLogout)
	mux.HandleFunc("GET /api/auth/session", h.handleSession)

	return h.checkOrigin(mux), nil
}

// checkOrigin rejects state-changing requests from foreign origins. GET
// requests pass through; browsers do not attach bodies to them and the API
// never mutates on GET.
func (h *Handler) checkOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			origin := r.Header.Get("Origin")
			if origin != h.origin {
				writeError(w, http.StatusForbidden, "forbidden origin")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type challengeResponse struct {
	ChallengeID string `json:"challengeId"`
	Challenge   string `json:"challenge"`
}

func (h *Handler) handleChallenge(w http.ResponseWriter, r *http.Request) {
	issued, err := h.auth.Challenge(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challengeResponse{
		ChallengeID: issued.ID,
		Challenge:   passkey.Encode(issued.Bytes),
	})
}

type registerRequest struct {
	ChallengeID       string `json:"challengeId"`
	Email             string `json:"email"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	CredentialID      string `json:"credentialId"`
	PublicKey         string `json:"publicKey"`
	Algorithm         int64  `json:"algorithm"`
	ClientData        string `json:"clientData"`
	AuthenticatorData string `json:"authenticatorData"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

func toUserResponse(u user.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, sess, err := h.auth.Register(r.Context(), service.RegisterInput{
		ChallengeID:              req.ChallengeID,
		Email:                    req.Email,
		FirstName:                req.FirstName,
		LastName:                 req.LastName,
		CredentialID:             req.CredentialID,
		EncodedPublicKey:         req.PublicKey,
		Algorithm:                req.Algorithm,
		EncodedClientData:        req.ClientData,
		EncodedAuthenticatorData: req.AuthenticatorData,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if err := h.setSessionCookie(w, sess.ID, sess.ExpiresAt); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(created))
}

type loginRequest struct {
	ChallengeID       string `json:"challengeId"`
	CredentialID      string `json:"credentialId"`
	ClientData        string `json:"clientData"`
	AuthenticatorData string `json:"authenticatorData"`
	Signature         string `json:"signature"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	owner, sess, err := h.auth.Login(r.Context(), service.LoginInput{
		ChallengeID:              req.ChallengeID,
		CredentialID:             req.CredentialID,
		EncodedClientData:        req.ClientData,
		EncodedAuthenticatorData: req.AuthenticatorData,
		EncodedSignature:         req.Signature,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if err := h.setSessionCookie(w, sess.ID, sess.ExpiresAt); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(owner))
}

// handleLogout revokes every session of the cookie's user, so a logout from
// one browser invalidates stolen copies of the session everywhere.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	owner, _, err := h.auth.Session(r.Context(), h.sessionIDFromRequest(r))
	if err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			h.clearSessionCookie(w)
		}
		h.writeServiceError(w, r, err)
		return
	}

	if err := h.auth.LogoutAll(r.Context(), owner.ID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type sessionInfo struct {
	ExpiresAt time.Time `json:"expiresAt"`
	Fresh     bool      `json:"fresh"`
}

type sessionResponse struct {
	User    *userResponse `json:"user"`
	Session *sessionInfo  `json:"session"`
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionIDFromRequest(r)
	owner, sess, err := h.auth.Session(r.Context(), sessionID)
	if err != nil {
		// An unauthenticated check is a normal state, not an error: the
		// client gets nulls and any dead cookie is cleared.
		if errors.Is(err, session.ErrNotAuthenticated) {
			h.clearSessionCookie(w)
			writeJSON(w, http.StatusOK, sessionResponse{})
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	// A renewed session gets its cookie reissued with the pushed-out expiry.
	if sess.Fresh {
		if err := h.setSessionCookie(w, sess.ID, sess.ExpiresAt); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}
	userPayload := toUserResponse(owner)
	writeJSON(w, http.StatusOK, sessionResponse{
		User:    &userPayload,
		Session: &sessionInfo{ExpiresAt: sess.ExpiresAt, Fresh: sess.Fresh},
	})
}

// writeServiceError maps a service error to an HTTP response. Verification
// failure details stay in the server log; the client sees one generic message
// so responses cannot be used to probe why a ceremony failed.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	message := err.Error()
	if code.Sensitive() {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		message = "verification failed"
		status = http.StatusBadRequest
	} else if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		message = "internal error"
	}
	writeError(w, status, message)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}
