package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raine/auto-inspect-bot/internal/fetch"
	"github.com/raine/auto-inspect-bot/internal/inspect"
	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/raine/auto-inspect-bot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	analyzeFunc func(url string) (*listing.AnalysisReport, error)
	listingFunc func(id string) (*listing.AdRecord, error)
	similarFunc func(id string, limit int) (*listing.AdRecord, listing.ComparableSet, error)
}

func (f *fakeInspector) AnalyzeURL(_ context.Context, url string) (*listing.AnalysisReport, error) {
	return f.analyzeFunc(url)
}

func (f *fakeInspector) Listing(_ context.Context, id string) (*listing.AdRecord, error) {
	return f.listingFunc(id)
}

func (f *fakeInspector) Similar(_ context.Context, id string, limit int) (*listing.AdRecord, listing.ComparableSet, error) {
	return f.similarFunc(id, limit)
}

func setupTestRouter(t *testing.T, inspector Inspector) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := New("0", inspector)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return s.Router()
}

func do(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := setupTestRouter(t, &fakeInspector{})

	w := do(router, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "auto-inspect-bot", resp["service"])
	assert.Equal(t, "2024-06-01T12:00:00Z", resp["timestamp"])
}

func TestAnalyze_Success(t *testing.T) {
	var gotURL string
	router := setupTestRouter(t, &fakeInspector{
		analyzeFunc: func(url string) (*listing.AnalysisReport, error) {
			gotURL = url
			return &listing.AnalysisReport{AdID: "autoru_1", OverallScore: 74}, nil
		},
	})

	w := do(router, http.MethodPost, "/api/v1/analyze", map[string]string{"url": "https://auto.ru/cars/used/sale/1/"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://auto.ru/cars/used/sale/1/", gotURL)
	var report listing.AnalysisReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "autoru_1", report.AdID)
	assert.Equal(t, 74, report.OverallScore)
}

func TestAnalyze_BadRequests(t *testing.T) {
	router := setupTestRouter(t, &fakeInspector{
		analyzeFunc: func(string) (*listing.AnalysisReport, error) {
			t.Fatal("analyzer should not be called")
			return nil, nil
		},
	})

	for _, body := range []any{map[string]string{}, map[string]string{"url": "auto.ru/cars/1"}, map[string]string{"url": "ftp://auto.ru/x"}} {
		w := do(router, http.MethodPost, "/api/v1/analyze", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %v", body)
	}
}

func TestAnalyze_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("x: %w: %w", listing.ErrInputUnavailable, fetch.ErrGone), http.StatusGone},
		{fmt.Errorf("x: %w: status 503", listing.ErrInputUnavailable), http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		router := setupTestRouter(t, &fakeInspector{
			analyzeFunc: func(string) (*listing.AnalysisReport, error) { return nil, tc.err },
		})
		w := do(router, http.MethodPost, "/api/v1/analyze", map[string]string{"url": "https://www.drom.ru/auto/1.html"})
		assert.Equal(t, tc.code, w.Code, tc.err.Error())
	}
}

func TestGetAd(t *testing.T) {
	router := setupTestRouter(t, &fakeInspector{
		listingFunc: func(id string) (*listing.AdRecord, error) {
			switch id {
			case "g1":
				return &listing.AdRecord{ID: "g1", Title: "Volkswagen Golf"}, nil
			case "broken":
				return nil, fmt.Errorf("failed to get: %w", listing.ErrStoreUnavailable)
			}
			return nil, inspect.ErrNotFound
		},
	})

	w := do(router, http.MethodGet, "/api/v1/ads/g1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Volkswagen Golf"`)

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/v1/ads/missing", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(router, http.MethodGet, "/api/v1/ads/broken", nil).Code)
}

func TestSimilar(t *testing.T) {
	var gotLimit int
	router := setupTestRouter(t, &fakeInspector{
		similarFunc: func(id string, limit int) (*listing.AdRecord, listing.ComparableSet, error) {
			gotLimit = limit
			if id != "g1" {
				return nil, listing.ComparableSet{}, inspect.ErrNotFound
			}
			return &listing.AdRecord{ID: "g1"}, listing.ComparableSet{
				Records: []listing.AdRecord{{ID: "g2"}, {ID: "g3"}},
			}, nil
		},
	})

	w := do(router, http.MethodGet, "/api/v1/ads/g1/similar?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, gotLimit)

	var resp similarResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "g1", resp.Target.ID)
	assert.Equal(t, 2, resp.Count)

	w = do(router, http.MethodGet, "/api/v1/ads/g1/similar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, gotLimit)

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/api/v1/ads/g1/similar?limit=abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/api/v1/ads/g1/similar?limit=100", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/v1/ads/nope/similar", nil).Code)
}

// TestAnalyze_EndToEnd runs the real pipeline against a fake listing site.
func TestAnalyze_EndToEnd(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/listing") {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<html><head><meta property="product:price:amount" content="450000"></head>
				<body><h1>Volkswagen Golf 2018</h1></body></html>`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer site.Close()

	store := storage.NewMemoryStore()
	client := fetch.NewClient(fetch.ClientOpts{Retries: 0})
	svc := inspect.NewService(inspect.ServiceOpts{
		Store:     store,
		Documents: client,
		Images:    client.FetchImage,
	})
	router := setupTestRouter(t, svc)

	w := do(router, http.MethodPost, "/api/v1/analyze", map[string]string{"url": site.URL + "/listing/1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report listing.AnalysisReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "Volkswagen Golf 2018", report.Facts.Title)
	assert.Equal(t, 450000, report.Facts.Price)
	assert.True(t, report.Condition.InsufficientData)

	w = do(router, http.MethodGet, "/api/v1/ads/"+report.AdID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodPost, "/api/v1/analyze", map[string]string{"url": site.URL + "/removed"})
	assert.Equal(t, http.StatusGone, w.Code)
}
