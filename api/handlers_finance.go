package api

import (
	"errors"
	"net/http"

	"wb-seller-stats/tenants"
	"wb-seller-stats/wbapi"
)

// handleFinanceReport fetches the tenant's finance report for the period,
// writes it to the finance sheet and returns the rows
func (s *Server) handleFinanceReport(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tenantFromQuery(w, r)
	if !ok {
		return
	}
	period, err := s.getPeriodParams(r)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	rows, written, err := s.finance.WriteFinanceReport(r.Context(), t.Name, period)
	if err != nil {
		s.log.WithFields(logFields(t.Name, period)).WithError(err).Warn("Finance report failed")
		switch {
		case errors.Is(err, tenants.ErrUnknownTenant):
			s.respondWithError(w, http.StatusNotFound, "unknown tenant", err)
		case wbapi.IsUnauthorized(err):
			code, msg := providerErrorStatus(err)
			s.respondWithError(w, code, msg, err)
		default:
			s.respondWithError(w, http.StatusBadGateway, "finance report failed", err)
		}
		return
	}
	if rows == nil {
		rows = []wbapi.FinanceRow{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tenant":  t.Name,
		"period":  period,
		"written": written,
		"rows":    rows,
	})
}
