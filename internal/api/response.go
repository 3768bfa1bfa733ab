package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/marketbook/internal/model"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

type errorResponse struct {
	Error  string             `json:"error"`
	Errors []model.FieldError `json:"errors,omitempty"`
	Detail string             `json:"detail,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Warn("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorResponse{Error: message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(target)
}

// writeError maps an error from the service layer to a status code.
// Unexpected errors are logged and hidden unless detail is set.
func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		resp := errorResponse{Error: verr.Error(), Errors: verr.Errors}
		if len(verr.Errors) > 0 {
			resp.Error = verr.Errors[0].Message
		}
		jsonResponse(w, http.StatusBadRequest, resp)
	case errors.Is(err, model.ErrValidation):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrUnauthorized):
		jsonError(w, http.StatusUnauthorized, publicMessage(err, model.ErrUnauthorized, "Not authorized"))
	case errors.Is(err, model.ErrForbidden):
		jsonError(w, http.StatusForbidden, publicMessage(err, model.ErrForbidden, "Access denied"))
	case errors.Is(err, model.ErrNotFound):
		jsonError(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, model.ErrConflict):
		jsonError(w, http.StatusConflict, publicMessage(err, model.ErrConflict, "Resource already exists"))
	default:
		rt.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
		resp := errorResponse{Error: "Internal server error"}
		if rt.development {
			resp.Detail = err.Error()
		}
		jsonResponse(w, http.StatusInternalServerError, resp)
	}
}

// publicMessage strips the sentinel prefix from errors built as
// fmt.Errorf("%w: message", sentinel).
func publicMessage(err, sentinel error, fallback string) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return fallback
}
