package server

import "net/http"

// RegisterInfo mounts the service-info and health routes.
func (s *Server) RegisterInfo(version string) {
	s.Router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"service": "noterer",
			"version": version,
		})
	})
	s.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
