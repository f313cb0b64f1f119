package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadDocument(t *testing.T) {
	var handlerCalled bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page.html" {
			handlerCalled = true
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><h1>Lada Vesta</h1></html>"))
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	getFileDirectUrl := func(fileId string) (string, error) {
		return fmt.Sprintf("%s/%s.html", ts.URL, fileId), nil
	}

	doc := &tgbotapi.Document{FileID: "page", FileName: "page.html", MimeType: "text/html", FileSize: 1024}
	body, err := downloadDocument(context.Background(), getFileDirectUrl, doc)
	require.NoError(t, err)
	assert.Equal(t, "<html><h1>Lada Vesta</h1></html>", string(body))
	assert.True(t, handlerCalled)

	_, err = downloadDocument(context.Background(), getFileDirectUrl,
		&tgbotapi.Document{FileID: "missing", FileName: "missing.html"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestDownloadDocument_Rejects(t *testing.T) {
	getFileDirectUrl := func(fileId string) (string, error) {
		t.Fatal("should not resolve file url")
		return "", nil
	}

	_, err := downloadDocument(context.Background(), getFileDirectUrl,
		&tgbotapi.Document{FileID: "x", FileName: "photo.jpg", MimeType: "image/jpeg"})
	assert.ErrorIs(t, err, errDocumentNotHTML)

	_, err = downloadDocument(context.Background(), getFileDirectUrl,
		&tgbotapi.Document{FileID: "x", FileName: "page.htm", FileSize: 50 << 20})
	assert.ErrorIs(t, err, errDocumentTooLarge)
}

func TestIsHTMLDocument(t *testing.T) {
	assert.True(t, isHTMLDocument(&tgbotapi.Document{MimeType: "text/html; charset=utf-8"}))
	assert.True(t, isHTMLDocument(&tgbotapi.Document{MimeType: "application/octet-stream", FileName: "Объявление.HTML"}))
	assert.False(t, isHTMLDocument(&tgbotapi.Document{MimeType: "application/pdf", FileName: "report.pdf"}))
}
