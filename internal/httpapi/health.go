package httpapi

import "net/http"

// handleHealth is the general-purpose status endpoint: DB reachability
// plus static service info.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.Store.Ping(r.Context()) == nil
	status := "ok"
	code := http.StatusOK
	if !dbOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{"status": status, "database": dbOK})
}

// handleHealthLive answers "is the process alive" without touching any
// dependency, so a wedged DB connection never fails a liveness probe.
func (s *Server) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// handleHealthReady answers "can this instance serve traffic" by
// verifying the database connection.
func (s *Server) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
}
