package server

import (
	"net/http"
	"strings"

	"storyloom/backend/internal/devotp"
)

type devOTPResponse struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	OTP     string `json:"otp"`
}

type devOTPHandler struct {
	store devotp.Store
	errs  errorWriter
}

// get returns the last captured code for ?email=&purpose=. Only routed in dev OTP mode.
func (h *devOTPHandler) get(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email")))
	purpose := r.URL.Query().Get("purpose")
	if err := firstError(validateEmail(email), validatePurpose(purpose)); err != nil {
		h.errs.write(w, r, err)
		return
	}
	code, ok := h.store.Get(r.Context(), email, purpose)
	if !ok {
		writeJSON(w, http.StatusNotFound, envelope{
			StatusCode: http.StatusNotFound,
			Message:    "No OTP captured for this email and purpose",
			Code:       CodeNotFound,
		})
		return
	}
	writeSuccess(w, http.StatusOK, "OTP fetched", devOTPResponse{Email: email, Purpose: purpose, OTP: code})
}
