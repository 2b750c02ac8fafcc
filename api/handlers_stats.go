package api

import (
	"net/http"

	"wb-seller-stats/models"
	"wb-seller-stats/tenants"
	"wb-seller-stats/wbapi"
)

type funnelRow struct {
	wbapi.FunnelProduct
	CTR   float64 `json:"ctr"`
	Stock int     `json:"stock"`
}

func (s *Server) tenantFromQuery(w http.ResponseWriter, r *http.Request) (tenants.Tenant, bool) {
	name := r.URL.Query().Get("tenant")
	if name == "" {
		s.respondWithError(w, http.StatusBadRequest, "tenant is required", nil)
		return tenants.Tenant{}, false
	}
	t, ok := s.tenants.Get(name)
	if !ok {
		s.respondWithError(w, http.StatusNotFound, "unknown tenant", nil)
		return t, false
	}
	return t, true
}

// handleFunnelStats returns per-product funnel metrics for the tenant's
// tracked articles. legacy=1 queries the page-numbered card report instead.
func (s *Server) handleFunnelStats(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tenantFromQuery(w, r)
	if !ok {
		return
	}
	period, err := s.getPeriodParams(r)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ids := make([]int64, len(t.Articles))
	for i, a := range t.Articles {
		ids[i] = a.Article
	}

	fetch := s.stats.FunnelProducts
	if r.URL.Query().Get("legacy") == "1" {
		fetch = s.stats.LegacyFunnelCards
	}
	products, err := fetch(r.Context(), t.Token, ids, period)
	if err != nil {
		code, msg := providerErrorStatus(err)
		s.log.WithFields(logFields(t.Name, period)).WithError(err).Warn("Funnel stats request failed")
		s.respondWithError(w, code, msg, err)
		return
	}

	known := articleIndex(t.Articles)
	rows := make([]funnelRow, 0, len(products))
	for _, p := range products {
		if a, ok := known[p.Article]; ok {
			if p.SellerArticle == "" {
				p.SellerArticle = a.SellerArticle
			}
			if p.Brand == "" {
				p.Brand = a.Brand
			}
		}
		rows = append(rows, funnelRow{FunnelProduct: p, CTR: p.CTR(), Stock: p.Stock()})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tenant":   t.Name,
		"period":   period,
		"products": rows,
	})
}

// handleRegionSales returns provider region rows, labelled with the
// tracked article's seller code and brand where known
func (s *Server) handleRegionSales(w http.ResponseWriter, r *http.Request) {
	t, ok := s.tenantFromQuery(w, r)
	if !ok {
		return
	}
	period, err := s.getPeriodParams(r)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	rows, err := s.stats.RegionSales(r.Context(), t.Token, period)
	if err != nil {
		code, msg := providerErrorStatus(err)
		s.log.WithFields(logFields(t.Name, period)).WithError(err).Warn("Region sales request failed")
		s.respondWithError(w, code, msg, err)
		return
	}

	known := articleIndex(t.Articles)
	for i := range rows {
		if a, ok := known[rows[i].Article]; ok {
			rows[i].SellerArticle = a.SellerArticle
			rows[i].Brand = a.Brand
		}
	}
	if rows == nil {
		rows = []wbapi.RegionSale{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tenant": t.Name,
		"period": period,
		"rows":   rows,
	})
}

func articleIndex(articles []models.TrackedArticle) map[int64]models.TrackedArticle {
	idx := make(map[int64]models.TrackedArticle, len(articles))
	for _, a := range articles {
		idx[a.Article] = a
	}
	return idx
}
