package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/provision"
	"github.com/muurk/wifiprov/internal/version"
)

// Status is the body of GET /api/v1/status.
type Status struct {
	Phase            provision.Phase `json:"phase"`
	PendingRequestID uint64          `json:"pending_request_id,omitempty"`
	PendingOperation string          `json:"pending_operation,omitempty"`
	LastRequestID    uint64          `json:"last_request_id"`
	Clients          int             `json:"clients"`
	Link             *LinkStatus     `json:"link,omitempty"`
	Version          string          `json:"version"`
}

// LinkStatus is the link section of Status.
type LinkStatus struct {
	Mode  string    `json:"mode"`
	SSID  string    `json:"ssid,omitempty"`
	IP    string    `json:"ip,omitempty"`
	Since time.Time `json:"since"`
}

func (s *Server) status() Status {
	snap := s.session.Snapshot()
	st := Status{
		Phase:            snap.Phase,
		PendingRequestID: snap.PendingID,
		PendingOperation: snap.PendingOp,
		LastRequestID:    snap.LastRequestID,
		Clients:          s.hub.ClientCount(),
		Version:          version.Version,
	}
	if s.link != nil {
		cur := s.link.Current()
		st.Link = &LinkStatus{
			Mode:  string(cur.Mode),
			SSID:  cur.SSID,
			IP:    cur.IP,
			Since: cur.Since,
		}
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}
