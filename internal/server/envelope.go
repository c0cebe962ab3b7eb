package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var errEmptyBody = &validationError{msg: "request body is required"}

// envelope is the body of every JSON response.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
	Code       string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{StatusCode: status, Success: true, Message: message, Data: data})
}

// errorWriter turns service errors into envelopes and logs unexpected ones.
type errorWriter struct {
	logger *zap.Logger
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	ae := mapError(err)
	if ae.Status >= http.StatusInternalServerError {
		e.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ae.Status),
			zap.Error(err),
		)
	}
	writeJSON(w, ae.Status, envelope{StatusCode: ae.Status, Success: false, Message: ae.Message, Code: ae.Code})
}

// decodeJSON reads a JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return invalidf("malformed JSON body")
	}
	return nil
}
