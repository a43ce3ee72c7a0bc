package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Mailer sends the transactional emails handlers trigger.
type Mailer interface {
	Configured() bool
	SendLoginCode(toEmail, code, purpose string) error
	SendFriendRequestNotice(toEmail, requesterName string) error
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
