package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/knotline/knot/internal/model"
)

// Stable wire error codes carried in the {"errcode","error"} envelope.
const (
	errcodeNotFound        = "NOT_FOUND"
	errcodeInvalidRelation = "INVALID_RELATION"
	errcodeInvalidCursor   = "INVALID_CURSOR"
	errcodeInvalidParam    = "INVALID_PARAM"
	errcodeForbidden       = "FORBIDDEN"
	errcodeUnauthorized    = "UNAUTHORIZED"
	errcodeInternal        = "INTERNAL"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *KnotServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("POST /v1/rooms/{roomID}/send/{eventType}", s.handleSendEvent)
	mux.HandleFunc("POST /v1/rooms/{roomID}/state/{eventType}/{stateKey}", s.handleSendStateEvent)
	mux.HandleFunc("PUT /v1/rooms/{roomID}/send_relation/{eventID}/{relType}/{eventType}", s.handleSendRelation)
	mux.HandleFunc("GET /v1/rooms/{roomID}/event/{eventID}", s.handleGetEvent)
	mux.HandleFunc("GET /v1/rooms/{roomID}/relations/{eventID}", s.handleListRelations)
	mux.HandleFunc("GET /v1/rooms/{roomID}/relations/{eventID}/{relType}", s.handleListRelations)
	mux.HandleFunc("GET /v1/rooms/{roomID}/relations/{eventID}/{relType}/{eventType}", s.handleListRelations)
	mux.HandleFunc("GET /v1/rooms/{roomID}/aggregations/{eventID}", s.handleListAggregations)
	mux.HandleFunc("GET /v1/rooms/{roomID}/aggregations/{eventID}/{relType}", s.handleListAggregations)
	mux.HandleFunc("GET /v1/rooms/{roomID}/aggregations/{eventID}/{relType}/{eventType}", s.handleListAggregations)
	mux.HandleFunc("GET /v1/rooms/{roomID}/aggregations/{eventID}/{relType}/{eventType}/{key...}", s.handleListGroupEvents)
	mux.HandleFunc("POST /v1/rooms/{roomID}/redact/{eventID}", s.handleRedactEvent)
	mux.HandleFunc("GET /v1/presence", s.handlePresence)
	mux.HandleFunc("GET /v1/journal", s.handleJournal)
	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *KnotServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the JSON error envelope.
func writeError(w http.ResponseWriter, status int, errcode, message string) {
	writeJSON(w, status, map[string]string{
		"errcode": errcode,
		"error":   message,
	})
}

// writeOpError maps an operation error to its wire status and errcode.
func writeOpError(w http.ResponseWriter, err error) {
	var (
		notFound   model.NotFoundError
		invalidRel model.InvalidRelationError
		invalidCur model.InvalidCursorError
		permission model.PermissionError
		input      inputError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, errcodeNotFound, notFound.Error())
	case errors.As(err, &invalidRel):
		writeError(w, http.StatusBadRequest, errcodeInvalidRelation, invalidRel.Error())
	case errors.As(err, &invalidCur):
		writeError(w, http.StatusBadRequest, errcodeInvalidCursor, invalidCur.Error())
	case errors.As(err, &permission):
		writeError(w, http.StatusForbidden, errcodeForbidden, permission.Error())
	case errors.As(err, &input):
		writeError(w, http.StatusBadRequest, errcodeInvalidParam, input.Error())
	default:
		writeError(w, http.StatusInternalServerError, errcodeInternal, err.Error())
	}
}

// AuthMiddleware wraps an http.Handler and checks the Authorization header for
// a valid Bearer token. When token is empty, auth is disabled and all requests
// pass through. GET /v1/health is always exempt.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Exempt health check.
		if r.Method == http.MethodGet && r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, errcodeUnauthorized, "missing authorization header")
			return
		}

		if !strings.HasPrefix(auth, "Bearer ") {
			writeError(w, http.StatusUnauthorized, errcodeUnauthorized, "invalid authorization scheme")
			return
		}

		provided := strings.TrimPrefix(auth, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			writeError(w, http.StatusUnauthorized, errcodeUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
