package handler

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
)

// HealthHandler provides liveness and readiness endpoints.
type HealthHandler struct {
	dataDir  string
	lockPath string
}

func NewHealthHandler(dataDir, lockPath string) *HealthHandler {
	return &HealthHandler{dataDir: dataDir, lockPath: lockPath}
}

// Health reports process liveness.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the data directory is usable. Commits go through
// temp files in the same directory, so a write probe covers the whole
// persistence path.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	probe := filepath.Join(h.dataDir, ".ready-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "data directory not writable",
		})
		return
	}
	_ = os.Remove(probe)

	// An absent lock record is normal; an unreadable one is not.
	if _, err := os.ReadFile(h.lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "lock record not readable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
