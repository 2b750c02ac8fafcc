package api

import (
	"errors"
	"net/http"

	"wb-seller-stats/cache"
	"wb-seller-stats/tenants"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetTenants(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"tenants": s.runner.Tenants()})
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")

	runID, err := s.runner.Start(s.ctx, tenant)
	switch {
	case errors.Is(err, tenants.ErrUnknownTenant):
		s.respondWithError(w, http.StatusNotFound, "unknown tenant", err)
		return
	case errors.Is(err, cache.ErrLocked):
		s.respondWithError(w, http.StatusConflict, "a run for this tenant is already in progress", err)
		return
	case err != nil:
		s.respondWithError(w, http.StatusInternalServerError, "failed to start run", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"tenant": tenant,
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")

	rep, ok, err := s.runner.LatestReport(r.Context(), tenant)
	switch {
	case errors.Is(err, tenants.ErrUnknownTenant):
		s.respondWithError(w, http.StatusNotFound, "unknown tenant", err)
		return
	case err != nil:
		s.respondWithError(w, http.StatusInternalServerError, "failed to load report", err)
		return
	case !ok:
		s.respondWithError(w, http.StatusNotFound, "no report produced yet", nil)
		return
	}

	respondJSON(w, http.StatusOK, rep)
}
