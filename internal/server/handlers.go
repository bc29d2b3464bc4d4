package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"ShapeBoard/internal/api"
	"ShapeBoard/internal/document"
	"ShapeBoard/internal/errors"
	"ShapeBoard/internal/storage"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		s.logger.Error("storage unreachable", "err", err)
		api.Success(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	api.Success(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var creds api.Credentials
	if !s.decode(w, r, &creds) {
		s.metrics.auth("register", false)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.bcryptCost)
	if err != nil {
		s.internalError(w, "hash password", err)
		return
	}

	err = s.repo.CreateUser(r.Context(), storage.User{
		Username:     creds.Username,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	})
	if errors.Is(err, errors.CodeConflict) {
		s.metrics.auth("register", false)
		api.Error(w, http.StatusConflict, "Username already taken")
		return
	}
	if err != nil {
		s.internalError(w, "create user", err)
		return
	}

	s.metrics.auth("register", true)
	s.logger.Info("registered", "user", creds.Username)
	s.respondWithToken(w, http.StatusCreated, creds.Username)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds api.Credentials
	if !s.decode(w, r, &creds) {
		s.metrics.auth("login", false)
		return
	}

	user, err := s.repo.GetUser(r.Context(), creds.Username)
	if err != nil && !errors.Is(err, errors.CodeNotFound) {
		s.internalError(w, "get user", err)
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)) != nil {
		s.metrics.auth("login", false)
		api.Error(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	s.metrics.auth("login", true)
	s.respondWithToken(w, http.StatusOK, user.Username)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var req api.LogoutRequest
	if !s.decode(w, r, &req) {
		s.metrics.auth("logout", false)
		return
	}

	claims, err := s.tokens.Parse(req.Token)
	if err != nil || claims.Subject != req.Username {
		s.metrics.auth("logout", false)
		api.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := s.repo.RevokeToken(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		s.internalError(w, "revoke token", err)
		return
	}

	s.metrics.auth("logout", true)
	s.logger.Info("signed out", "user", req.Username)
	api.Success(w, http.StatusNoContent, nil)
}

func (s *Server) putDrawing(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var env api.DrawingEnvelope
	if !s.decode(w, r, &env) {
		return
	}
	if _, err := document.Decode([]byte(env.Drawing)); err != nil {
		api.Error(w, http.StatusBadRequest, fmt.Sprintf("Invalid drawing: %s", detail(err)))
		return
	}

	now := s.now().UTC()
	err := s.repo.PutDrawing(r.Context(), user, storage.StoredDrawing{
		Document:  env.Drawing,
		UpdatedAt: now,
	})
	if err != nil {
		s.internalError(w, "store drawing", err)
		return
	}

	s.metrics.drawingsSaved.Inc()
	s.logger.Debug("drawing saved", "user", user, "bytes", len(env.Drawing))
	s.hub.Broadcast(user, api.Event{
		Type:      api.EventDrawingUpdated,
		UpdatedAt: now.Format(time.RFC3339Nano),
	})
	api.Success(w, http.StatusNoContent, nil)
}

func (s *Server) getDrawing(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	stored, err := s.repo.GetDrawing(r.Context(), user)
	if errors.Is(err, errors.CodeNotFound) {
		api.Error(w, http.StatusNotFound, "No drawing saved yet")
		return
	}
	if err != nil {
		s.internalError(w, "get drawing", err)
		return
	}
	api.Success(w, http.StatusOK, api.DrawingEnvelope{Drawing: stored.Document})
}

func (s *Server) drawingEvents(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	if err := s.hub.Serve(w, r, user); err != nil {
		// the upgrader has already answered the request
		s.logger.Warn("websocket upgrade failed", "user", user, "err", err)
	}
}

func (s *Server) respondWithToken(w http.ResponseWriter, status int, username string) {
	token, err := s.tokens.Issue(username)
	if err != nil {
		s.internalError(w, "issue token", err)
		return
	}
	api.Success(w, status, api.AuthResponse{Username: username, Token: token})
}

// decode reads a size-limited JSON body into v and validates it, answering
// the request itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		api.Error(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		api.Error(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "alphanum":
		return fmt.Sprintf("%s must contain only letters and digits", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", field)
}

func detail(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op, "err", err)
	api.Error(w, http.StatusInternalServerError, "Internal server error")
}
