package status

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ringlink/noded/internal/overlay"
	"github.com/ringlink/noded/internal/tunnel"
)

// ServiceLister reports the service names this node has configured, for
// the GET /v1/services view.
type ServiceLister interface {
	TCPServiceNames() []string
	HTTPServiceNames() []string
}

// TunnelLister reports the live tunnels this node is bridging, for the
// GET /v1/tunnels view.
type TunnelLister interface {
	Snapshots() []tunnel.Snapshot
}

// Server serves the node's read-only admin API.
type Server struct {
	self     overlay.Did
	services ServiceLister
	tunnels  TunnelLister
	logger   *slog.Logger
}

// New creates a Server reporting on self, services, and tunnels.
func New(self overlay.Did, services ServiceLister, tunnels TunnelLister, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		self:     self,
		services: services,
		tunnels:  tunnels,
		logger:   logger.With(slog.String("component", "status")),
	}
}

// Handler builds the wrapped http.Handler this Server serves on. Callers
// wrap it in h2c for cleartext HTTP/2, or serve it directly over HTTP/1.1.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)
	mux.HandleFunc("GET /v1/services", s.handleServices)
	mux.HandleFunc("GET /v1/tunnels", s.handleTunnels)

	return chain(mux, LoggingMiddleware(s.logger), RecoveryMiddleware(s.logger))
}

type healthzResponse struct {
	Status string `json:"status"`
	DID    string `json:"did"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthzResponse{Status: "ok", DID: string(s.self)})
}

type servicesResponse struct {
	TCP  []string `json:"tcp"`
	HTTP []string `json:"http"`
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, servicesResponse{
		TCP:  s.services.TCPServiceNames(),
		HTTP: s.services.HTTPServiceNames(),
	})
}

type tunnelView struct {
	Tid   string `json:"tid"`
	Peer  string `json:"peer"`
	State string `json:"state"`
}

func (s *Server) handleTunnels(w http.ResponseWriter, r *http.Request) {
	snaps := s.tunnels.Snapshots()
	views := make([]tunnelView, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, tunnelView{
			Tid:   snap.Tid.String(),
			Peer:  string(snap.Peer),
			State: snap.State.String(),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
