package handler

import (
	"net/http"
	"time"
)

// Health answers liveness probes without touching auth or upstream state.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
