package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purplekit/backend/services/analytics/domain/entity"
	"github.com/purplekit/backend/services/analytics/domain/repository"
	"github.com/purplekit/backend/services/analytics/usecase"
)

// stubRepository returns fixed rows regardless of filter.
type stubRepository struct {
	engagements []*entity.Engagement
	actions     []*entity.Action
	findings    []*entity.Finding
	err         error
}

func (s *stubRepository) ListEngagements(context.Context, uuid.UUID, repository.ReadFilter) ([]*entity.Engagement, error) {
	return s.engagements, s.err
}

func (s *stubRepository) ListActions(context.Context, uuid.UUID, repository.ReadFilter) ([]*entity.Action, error) {
	return s.actions, s.err
}

func (s *stubRepository) ListFindings(context.Context, uuid.UUID, repository.ReadFilter) ([]*entity.Finding, error) {
	return s.findings, s.err
}

func (s *stubRepository) Ping(context.Context) error {
	return s.err
}

func newTestRouter(repo repository.AnalyticsRepository) *mux.Router {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	handler := NewAnalyticsHandler(usecase.NewAnalyticsUseCase(repo, logger), nil, logger)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func getAnalytics(t *testing.T, router *mux.Router, tenantID uuid.UUID, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/analytics"+query, nil)
	req = req.WithContext(WithTenant(req.Context(), tenantID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleGetAnalyticsSuccess(t *testing.T) {
	router := newTestRouter(&stubRepository{})
	rec := getAnalytics(t, router, uuid.New(), "?startDate=2024-03-01&endDate=2024-03-30")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "kpis")
	assert.Contains(t, body, "charts")
	assert.Contains(t, body, "generatedAt")
}

func TestHandleGetAnalyticsDefaultsToLastNinetyDays(t *testing.T) {
	router := newTestRouter(&stubRepository{})
	rec := getAnalytics(t, router, uuid.New(), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleGetAnalyticsInclusiveDateOnlyEnd(t *testing.T) {
	eng := uuid.New()
	// Executed late on the endDate day; a date-only endDate must include it.
	executed := time.Date(2024, 3, 30, 22, 15, 0, 0, time.UTC)
	repo := &stubRepository{
		actions: []*entity.Action{{
			ID:           uuid.New(),
			EngagementID: eng,
			ExecutedAt:   executed,
		}},
	}

	router := newTestRouter(repo)
	rec := getAnalytics(t, router, uuid.New(), "?startDate=2024-03-01&endDate=2024-03-30")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp usecase.AnalyticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	total := 0
	for _, p := range resp.Charts.ActionsOverTime {
		total += p.Count
	}
	assert.Equal(t, 1, total)
}

func TestHandleGetAnalyticsRejectsInvertedRange(t *testing.T) {
	router := newTestRouter(&stubRepository{})
	rec := getAnalytics(t, router, uuid.New(), "?startDate=2024-03-30&endDate=2024-03-01")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_QUERY")
}

func TestHandleGetAnalyticsRejectsOverwideRange(t *testing.T) {
	router := newTestRouter(&stubRepository{})
	rec := getAnalytics(t, router, uuid.New(), "?startDate=2023-01-01&endDate=2024-06-01")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "365")
}

func TestHandleGetAnalyticsRejectsMalformedDates(t *testing.T) {
	router := newTestRouter(&stubRepository{})

	rec := getAnalytics(t, router, uuid.New(), "?startDate=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = getAnalytics(t, router, uuid.New(), "?endDate=03%2F30%2F2024")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetAnalyticsRejectsMalformedEngagementID(t *testing.T) {
	router := newTestRouter(&stubRepository{})
	rec := getAnalytics(t, router, uuid.New(), "?engagementId=not-a-uuid")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "engagementId")
}

func TestHandleGetAnalyticsRequiresTenant(t *testing.T) {
	router := newTestRouter(&stubRepository{})
	req := httptest.NewRequest(http.MethodGet, "/analytics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleGetAnalyticsRepositoryFailureIsServerError(t *testing.T) {
	router := newTestRouter(&stubRepository{err: errors.New("connection refused")})
	rec := getAnalytics(t, router, uuid.New(), "?startDate=2024-03-01&endDate=2024-03-30")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "AGGREGATION_FAILED")
}

func TestHandleGetAnalyticsAcceptsRFC3339Timestamps(t *testing.T) {
	router := newTestRouter(&stubRepository{})
	rec := getAnalytics(t, router, uuid.New(),
		"?startDate=2024-03-01T00%3A00%3A00Z&endDate=2024-03-30T23%3A59%3A59Z")
	assert.Equal(t, http.StatusOK, rec.Code)
}
