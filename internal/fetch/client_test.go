package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchDocument_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><title>Lada Vesta</title></html>"))
	}))
	defer ts.Close()

	client := NewClient(ClientOpts{})
	body, err := client.FetchDocument(context.Background(), ts.URL)

	require.NoError(t, err)
	assert.Contains(t, string(body), "Lada Vesta")
}

func TestFetchDocument_Gone(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		client := NewClient(ClientOpts{Retries: 2})
		_, err := client.FetchDocument(context.Background(), ts.URL)
		ts.Close()

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrGone), "status %d", status)
		assert.True(t, errors.Is(err, listing.ErrInputUnavailable))
	}
}

func TestFetchDocument_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer ts.Close()

	client := NewClient(ClientOpts{Retries: 3})
	body, err := client.FetchDocument(context.Background(), ts.URL)

	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchDocument_ServerErrorIsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ClientOpts{Retries: 0})
	_, err := client.FetchDocument(context.Background(), ts.URL)

	require.Error(t, err)
	assert.True(t, errors.Is(err, listing.ErrInputUnavailable))
	assert.False(t, errors.Is(err, ErrGone))
}

func TestFetchDocument_EmptyBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	_, err := NewClient(ClientOpts{}).FetchDocument(context.Background(), ts.URL)

	assert.True(t, errors.Is(err, listing.ErrInputUnavailable))
}

func TestFetchImage_Success(t *testing.T) {
	imageData := []byte{0x89, 0x50, 0x4E, 0x47} // PNG magic bytes
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(imageData)
	}))
	defer ts.Close()

	data, err := NewClient(ClientOpts{}).FetchImage(context.Background(), ts.URL)

	require.NoError(t, err)
	assert.Equal(t, imageData, data)
}

func TestFetchImage_InvalidContentType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer ts.Close()

	_, err := NewClient(ClientOpts{}).FetchImage(context.Background(), ts.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid content type")
}

func TestFetchImage_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := NewClient(ClientOpts{}).FetchImage(context.Background(), ts.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestFetchImage_TooLarge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte(strings.Repeat("x", 200)))
	}))
	defer ts.Close()

	_, err := NewClient(ClientOpts{MaxImageSize: 100}).FetchImage(context.Background(), ts.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestFetchImage_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(ClientOpts{}).FetchImage(ctx, ts.URL)

	assert.Error(t, err)
}

func TestClient_Throttles(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	}))
	defer ts.Close()

	client := NewClient(ClientOpts{Delay: 100 * time.Millisecond})
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.FetchDocument(context.Background(), ts.URL)
		require.NoError(t, err)
	}

	assert.GreaterOrEqual(t, time.Since(start), 190*time.Millisecond)
}
