package server

import "net/http"

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	for _, p := range s.pingers {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.WithError(err).Error("health check dependency failed")
			s.respondError(w, http.StatusServiceUnavailable, "dependency unavailable")
			return
		}
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
