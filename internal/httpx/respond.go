package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-retail-orders/internal/apperr"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, code int, extra map[string]any) {
	body := map[string]any{"Status": true}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, code, body)
}

type failure struct {
	Status bool   `json:"Status"`
	Errors string `json:"Errors"`
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict, apperr.CodeInvalidState:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError maps err onto a status code. Internal errors are logged and
// reported without detail.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	writeFailure(w, log, err, nil)
}

// writeFailure is writeError with extra fields merged into the body.
func writeFailure(w http.ResponseWriter, log *zap.Logger, err error, extra map[string]any) {
	code := apperr.CodeOf(err)
	status := statusFor(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	if len(extra) == 0 {
		writeJSON(w, status, failure{Status: false, Errors: msg})
		return
	}
	body := map[string]any{"Status": false, "Errors": msg}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("all necessary arguments are not specified")
		}
		return apperr.Validation("invalid request format: %v", err)
	}
	return nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, apperr.Validation("invalid %s value %q", name, raw)
	}
	return n, nil
}
