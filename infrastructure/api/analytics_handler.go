package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/purplekit/backend/services/analytics/domain/repository"
	"github.com/purplekit/backend/services/analytics/infrastructure/cache"
	"github.com/purplekit/backend/services/analytics/usecase"
)

// defaultWindowDays is the range served when the caller supplies no dates.
const defaultWindowDays = 90

// AnalyticsHandler serves the dashboard aggregation endpoint.
type AnalyticsHandler struct {
	analytics *usecase.AnalyticsUseCase
	cache     *cache.ResponseCache
	logger    *logrus.Logger
}

// NewAnalyticsHandler creates a new analytics handler. The cache may be nil
// when caching is disabled; every request then reads through to the database.
func NewAnalyticsHandler(analytics *usecase.AnalyticsUseCase, responseCache *cache.ResponseCache, logger *logrus.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		cache:     responseCache,
		logger:    logger,
	}
}

// RegisterRoutes registers the analytics routes
func (h *AnalyticsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/analytics", h.handleGetAnalytics).Methods("GET")
}

func (h *AnalyticsHandler) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing tenant identity")
		return
	}

	window, engagementID, errMsg := parseAnalyticsQuery(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", errMsg)
		return
	}

	// Range validation happens here, before the orchestrator runs.
	if window.End.Before(window.Start) {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "endDate precedes startDate")
		return
	}
	if window.Days() > repository.MaxWindowDays {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", "date range exceeds 365 days")
		return
	}

	key := cache.Key(tenantID, window.Start, window.End, engagementID)
	if cached := h.cache.Get(r.Context(), key); cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	resp, err := h.analytics.Generate(r.Context(), usecase.AnalyticsRequest{
		TenantID:     tenantID,
		Window:       window,
		EngagementID: engagementID,
	})
	if err != nil {
		h.logger.WithError(err).WithField("tenant_id", tenantID).Error("Analytics request failed")
		writeError(w, http.StatusInternalServerError, "AGGREGATION_FAILED", "failed to generate analytics")
		return
	}

	h.cache.Set(r.Context(), key, resp)
	writeJSON(w, http.StatusOK, resp)
}

// parseAnalyticsQuery extracts and normalizes the query parameters. Dates
// accept RFC 3339 timestamps or plain YYYY-MM-DD; a date-only endDate is
// widened to the end of that day so the range stays inclusive.
func parseAnalyticsQuery(r *http.Request) (repository.TimeWindow, *uuid.UUID, string) {
	q := r.URL.Query()

	now := time.Now().UTC()
	window := repository.TimeWindow{
		Start: now.AddDate(0, 0, -defaultWindowDays),
		End:   now,
	}

	if raw := q.Get("startDate"); raw != "" {
		t, _, err := parseDate(raw)
		if err != nil {
			return window, nil, "invalid startDate: expected RFC 3339 or YYYY-MM-DD"
		}
		window.Start = t
	}

	if raw := q.Get("endDate"); raw != "" {
		t, dateOnly, err := parseDate(raw)
		if err != nil {
			return window, nil, "invalid endDate: expected RFC 3339 or YYYY-MM-DD"
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Second)
		}
		window.End = t
	}

	var engagementID *uuid.UUID
	if raw := q.Get("engagementId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return window, nil, "invalid engagementId: expected UUID"
		}
		engagementID = &id
	}

	return window, engagementID, ""
}

func parseDate(raw string) (t time.Time, dateOnly bool, err error) {
	if t, err = time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	if t, err = time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), true, nil
	}
	return time.Time{}, false, err
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
