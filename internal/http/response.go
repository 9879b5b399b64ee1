package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"groupspend/internal/core"
	"groupspend/internal/log"
	"groupspend/internal/preferences"
	"groupspend/internal/services"
	"groupspend/internal/storage"
)

// errBadRequest marks malformed input detected by the HTTP layer itself.
var errBadRequest = errors.New("bad request")

// errUnauthenticated is returned when no acting user is supplied.
var errUnauthenticated = errors.New("missing or invalid X-User-ID header")

// JSONResponse builds a JSON reply with a fluent API.
type JSONResponse struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a 200 response with no body.
func NewJSONResponse() *JSONResponse {
	return &JSONResponse{statusCode: http.StatusOK, headers: make(map[string]string)}
}

// Status sets the HTTP status code.
func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

// Header adds a response header.
func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Body sets the value to encode.
func (b *JSONResponse) Body(v any) *JSONResponse {
	b.body = v
	return b
}

// Write sends the response.
func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponse {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}

// writeError maps err to a status code. Server-side failures are logged and
// their details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case status == http.StatusGatewayTimeout:
		msg = "report timed out"
	case status >= 500:
		msg = "internal error"
	}
	if status >= 500 {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path, log.FieldStatusCode, status, log.FieldError, err)
	}
	ErrorResponse(status, msg).Write(w)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, errBadRequest),
		errors.Is(err, storage.ErrInvalidQuery),
		errors.Is(err, services.ErrCategoryGroupMismatch),
		errors.Is(err, services.ErrNoGroup),
		isValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotMember),
		errors.Is(err, services.ErrInsufficientRole),
		errors.Is(err, preferences.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateEmail),
		errors.Is(err, storage.ErrDuplicateMember),
		errors.Is(err, storage.ErrDuplicateCategory):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidCurrency,
	core.ErrInvalidDate,
	core.ErrInvalidRange,
	core.ErrInvalidRole,
	core.ErrNoteTooLong,
	core.ErrEmptyName,
	core.ErrNameTooLong,
	core.ErrEmptyEmail,
	core.ErrMissingGroup,
	core.ErrMissingUser,
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
