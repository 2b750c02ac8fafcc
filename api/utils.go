package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"wb-seller-stats/helpers"
	"wb-seller-stats/wbapi"
)

// defaultStatsDays is the window of the stats endpoints when no dates are given
const defaultStatsDays = 7

// respondJSON writes v as a JSON body with the given status
func respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// respondWithError logs the error and sends a JSON error response
// Use this to avoid exposing internal errors while still logging them
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, err error) {
	entry := s.log.WithField("status", code)
	if err != nil {
		entry = entry.WithError(err)
	}
	if code >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Debug(message)
	}
	respondJSON(w, code, map[string]string{"error": message})
}

// getPeriodParams reads start/end (YYYY-MM-DD). Missing values default to
// the last defaultStatsDays full days.
func (s *Server) getPeriodParams(r *http.Request) (wbapi.Period, error) {
	today := helpers.Day(s.now().In(s.loc))
	period := wbapi.Period{
		Start: helpers.AddDays(today, -defaultStatsDays),
		End:   helpers.AddDays(today, -1),
	}

	parse := func(key string, dst *time.Time) error {
		v := r.URL.Query().Get(key)
		if v == "" {
			return nil
		}
		d, err := time.Parse(helpers.DayLayout, v)
		if err != nil {
			return fmt.Errorf("invalid %s %q, expected YYYY-MM-DD", key, v)
		}
		*dst = d
		return nil
	}
	if err := parse("start", &period.Start); err != nil {
		return period, err
	}
	if err := parse("end", &period.End); err != nil {
		return period, err
	}
	if period.End.Before(period.Start) {
		return period, fmt.Errorf("end %s is before start %s", helpers.FormatDay(period.End), helpers.FormatDay(period.Start))
	}
	return period, nil
}

// providerErrorStatus maps a provider failure to the status the client sees
func providerErrorStatus(err error) (int, string) {
	if wbapi.IsUnauthorized(err) {
		return http.StatusUnauthorized, "provider rejected the tenant token"
	}
	return http.StatusBadGateway, "provider request failed"
}

func logFields(tenant string, p wbapi.Period) logrus.Fields {
	return logrus.Fields{
		"tenant": tenant,
		"start":  helpers.FormatDay(p.Start),
		"end":    helpers.FormatDay(p.End),
	}
}
