package middleware

import (
	"encoding/json"
	"net/http"
)

// Status is the body of every error response.
type Status struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func WriteJSONError(w http.ResponseWriter, code int, reason string, message string) {
	status := Status{
		Code:    code,
		Message: message,
		Reason:  reason,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
