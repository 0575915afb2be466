package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"placement-engine/internal/catalog"
	"placement-engine/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, q catalog.SearchQuery) ([]catalog.Document, error) {
	args := m.Called(ctx, q)
	docs, _ := args.Get(0).([]catalog.Document)
	return docs, args.Error(1)
}

func serve(t *testing.T, mux *http.ServeMux, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func readyOK(context.Context) error { return nil }

// ==========================
// Health & readiness
// ==========================

func TestServeMux_Health(t *testing.T) {
	mux := newServeMux(readyOK, nil, func() time.Time { return fixedNow }, logger.NewTestLogger(t))

	rec := serve(t, mux, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "2025-03-10T09:30:00Z", body["time"])
}

func TestServeMux_Ready(t *testing.T) {
	tests := []struct {
		name       string
		ready      func(context.Context) error
		wantStatus int
		wantBody   string
	}{
		{"broker reachable", readyOK, http.StatusOK, "ready"},
		{"broker down", func(context.Context) error { return errors.New("topology timeout") }, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newServeMux(tt.ready, nil, func() time.Time { return fixedNow }, logger.NewTestLogger(t))
			rec := serve(t, mux, "/ready")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body["status"])
		})
	}
}

func TestServeMux_Metrics(t *testing.T) {
	mux := newServeMux(readyOK, nil, time.Now, logger.NewTestLogger(t))
	rec := serve(t, mux, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ==========================
// Catalog search
// ==========================

func TestServeMux_CatalogDisabled(t *testing.T) {
	mux := newServeMux(readyOK, nil, time.Now, logger.NewTestLogger(t))
	rec := serve(t, mux, "/catalog/opportunities")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeMux_CatalogSearch(t *testing.T) {
	searcher := &MockSearcher{}
	searcher.On("Search", mock.Anything, catalog.SearchQuery{
		Keywords: "backend", Level: "basic", On: fixedNow, From: 20, Size: 10,
	}).Return([]catalog.Document{{ID: "opp-1", Title: "Backend Intern", RemainingSlots: 2}}, nil)

	mux := newServeMux(readyOK, searcher, func() time.Time { return fixedNow }, logger.NewTestLogger(t))
	rec := serve(t, mux, "/catalog/opportunities?q=backend&level=basic&from=20&size=10")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Total         int                `json:"total"`
		Opportunities []catalog.Document `json:"opportunities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "opp-1", body.Opportunities[0].ID)
	searcher.AssertExpectations(t)
}

func TestServeMux_CatalogSearchErrors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		searchErr  error
		wantStatus int
	}{
		{"bad size", "/catalog/opportunities?size=500", nil, http.StatusBadRequest},
		{"bad from", "/catalog/opportunities?from=-1", nil, http.StatusBadRequest},
		{"backend failure", "/catalog/opportunities", errors.New("connection refused"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &MockSearcher{}
			searcher.On("Search", mock.Anything, mock.Anything).Return(nil, tt.searchErr)

			mux := newServeMux(readyOK, searcher, func() time.Time { return fixedNow }, logger.NewTestLogger(t))
			rec := serve(t, mux, tt.target)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
