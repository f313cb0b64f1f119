package bot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// maxDocumentMB caps saved listing pages sent as files.
const maxDocumentMB = 20

var (
	errDocumentTooLarge = errors.New("document too large")
	errDocumentNotHTML  = errors.New("document is not html")
)

// httpClient is reused for file downloads to avoid creating new clients per request
var httpClient = resty.New().SetDebug(false).SetTimeout(30 * time.Second)

// isHTMLDocument accepts saved pages by MIME type or file extension, since
// clients often send them as application/octet-stream.
func isHTMLDocument(doc *tgbotapi.Document) bool {
	if strings.HasPrefix(doc.MimeType, "text/html") || doc.MimeType == "application/xhtml+xml" {
		return true
	}
	switch strings.ToLower(filepath.Ext(doc.FileName)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return false
}

// downloadDocument fetches a saved listing page uploaded to the chat.
func downloadDocument(
	ctx context.Context,
	getFileDirectURL func(fileId string) (string, error),
	doc *tgbotapi.Document,
) ([]byte, error) {
	if !isHTMLDocument(doc) {
		return nil, errDocumentNotHTML
	}
	if doc.FileSize > maxDocumentMB<<20 {
		return nil, errDocumentTooLarge
	}

	log.Info().Str("fileID", doc.FileID).Str("name", doc.FileName).Msg("downloading document")
	url, err := getFileDirectURL(doc.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file url: %w", err)
	}
	res, err := httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("request failed: status %d", res.StatusCode())
	}
	if len(res.Body()) > maxDocumentMB<<20 {
		return nil, errDocumentTooLarge
	}

	return res.Body(), nil
}
