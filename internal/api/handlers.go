package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/meridianbank/support-assistant/internal/auth"
	"github.com/meridianbank/support-assistant/internal/core"
)

const maxUploadBytes = 10 << 20 // 10 MiB document cap

type ctxKey int

const sessionCtxKey ctxKey = iota

type APIHandler struct {
	sessions   *core.Sessions
	controller *core.Controller
	tokens     *auth.TokenIssuer
}

func NewAPIHandler(sessions *core.Sessions, controller *core.Controller, tokens *auth.TokenIssuer) *APIHandler {
	return &APIHandler{sessions: sessions, controller: controller, tokens: tokens}
}

// SessionAuthMiddleware validates the bearer token and checks it was issued
// for the session named in the path, so one client cannot drive another's
// conversation.
func (h *APIHandler) SessionAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		sessionID, err := h.tokens.ValidateSessionToken(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		if chi.URLParam(r, "sessionID") != sessionID {
			http.Error(w, "Token does not match session", http.StatusForbidden)
			return
		}

		sess, err := h.sessions.Get(sessionID)
		if err != nil {
			if errors.Is(err, core.ErrSessionNotFound) {
				http.Error(w, "Session not found", http.StatusNotFound)
				return
			}
			log.Error().Err(err).Str("session", sessionID).Msg("failed to load session")
			http.Error(w, "Failed to load session", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), sessionCtxKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) *core.Session {
	return ctx.Value(sessionCtxKey).(*core.Session)
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	Greeting  string `json:"greeting"`
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Create()
	greeting := h.controller.Open(sess)

	token, err := h.tokens.GenerateSessionToken(sess.ID)
	if err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("failed to sign session token")
		h.sessions.Delete(sess.ID)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateSessionResponse{
		SessionID: sess.ID,
		Token:     token,
		Greeting:  greeting,
	})
}

type TranscriptResponse struct {
	SessionID string      `json:"session_id"`
	Phase     string      `json:"phase"`
	Turns     []core.Turn `json:"turns"`
}

func (h *APIHandler) GetTranscriptHandler(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	json.NewEncoder(w).Encode(TranscriptResponse{
		SessionID: sess.ID,
		Phase:     string(sess.Phase()),
		Turns:     sess.Transcript(),
	})
}

type PostMessageRequest struct {
	Content string `json:"content"`
}

type PostMessageResponse struct {
	Reply string `json:"reply"`
	Phase string `json:"phase"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		http.Error(w, "Message content cannot be empty", http.StatusBadRequest)
		return
	}

	sess := sessionFromContext(r.Context())
	reply := h.controller.HandleMessage(r.Context(), sess, req.Content)

	json.NewEncoder(w).Encode(PostMessageResponse{
		Reply: reply,
		Phase: string(sess.Phase()),
	})
}

type UploadDocumentResponse struct {
	Status string `json:"status"`
	Phase  string `json:"phase"`
}

func (h *APIHandler) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid or oversized upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A file field named 'file' is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Error().Err(err).Msg("failed to read uploaded file")
		http.Error(w, "Failed to read upload", http.StatusInternalServerError)
		return
	}

	sess := sessionFromContext(r.Context())
	status := h.controller.HandleUpload(r.Context(), sess, header.Filename, data)

	json.NewEncoder(w).Encode(UploadDocumentResponse{
		Status: status,
		Phase:  string(sess.Phase()),
	})
}
