package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

func writeJSON(w http.ResponseWriter, v any) {
	WriteJSON(w, http.StatusOK, v)
}

func methodMux(m map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := m[r.Method]; ok {
			h(w, r)
			return
		}
		WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// decodeBody reads a JSON body into dst and runs its validate tags. It writes the
// error response itself and reports whether the handler should continue.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			WriteJSON(w, http.StatusBadRequest, validationResponse(r, ve))
			return false
		}
		WriteError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

type fieldErrors struct {
	APIError
	Fields map[string]string `json:"fields"`
}

func validationResponse(r *http.Request, ve validator.ValidationErrors) fieldErrors {
	var out fieldErrors
	out.Error.Code = "validation_failed"
	out.Error.Message = "request validation failed"
	out.Error.RequestID = RequestIDFrom(r.Context())
	out.Fields = make(map[string]string, len(ve))
	for _, fe := range ve {
		out.Fields[fe.Field()] = fe.Tag()
	}
	return out
}
