// Package api holds the wire types of the drawing API and the response
// helpers the server writes them with.
package api

import (
	"encoding/json"
	"net/http"
)

// Routes served by the drawing API.
const (
	PathDrawing       = "/api/drawing"
	PathDrawingEvents = "/api/drawing/events"
	PathRegister      = "/api/auth/register"
	PathLogin         = "/api/auth/login"
	PathLogout        = "/api/auth/logout"
)

// DrawingEnvelope carries a drawing document encoded as a JSON string.
type DrawingEnvelope struct {
	Drawing string `json:"drawing"`
}

// Credentials is the body of register and login requests.
type Credentials struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// LogoutRequest is the body of a logout request.
type LogoutRequest struct {
	Username string `json:"username" validate:"required"`
	Token    string `json:"token" validate:"required"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Message string `json:"message"`
}

// Event is pushed over the drawing events websocket.
type Event struct {
	Type      string `json:"type"`
	UpdatedAt string `json:"updated_at"`
}

// EventDrawingUpdated is sent after a successful PUT of the user's drawing.
const EventDrawingUpdated = "drawing_updated"

// Success writes data as a JSON response. A nil data writes no body.
func Success(w http.ResponseWriter, statusCode int, data any) {
	if data == nil {
		w.WriteHeader(statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// Error writes an ErrorResponse.
func Error(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Message: message})
}
