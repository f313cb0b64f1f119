// Command analyze-file runs the analysis pipeline on a saved listing page and
// prints the JSON report. Local photos given as arguments stand in for the
// page's photos, in page order.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/raine/auto-inspect-bot/internal/condition"
	"github.com/raine/auto-inspect-bot/internal/config"
	"github.com/raine/auto-inspect-bot/internal/extract"
	"github.com/raine/auto-inspect-bot/internal/fetch"
	"github.com/raine/auto-inspect-bot/internal/inspect"
	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/raine/auto-inspect-bot/internal/normalize"
	"github.com/raine/auto-inspect-bot/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var htmlPath, sourceURL string
	var offline, verbose bool

	flag.StringVar(&htmlPath, "html", "", "Saved listing page (HTML)")
	flag.StringVar(&sourceURL, "url", "", "URL the page was saved from")
	flag.BoolVar(&offline, "offline", false, "Never download photos; only use local files")
	flag.BoolVar(&verbose, "v", false, "Log pipeline progress to stderr")
	flag.Parse()

	if htmlPath == "" || sourceURL == "" {
		fmt.Fprintf(os.Stderr, "Usage: analyze-file -html page.html -url <source url> [photo1.jpg ...]\n")
		os.Exit(1)
	}

	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	raw, err := os.ReadFile(htmlPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", htmlPath, err)
		os.Exit(1)
	}

	config.LoadEnvFile()
	cfg := config.Load()

	photos, err := localPhotos(sourceURL, raw, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var remote inspect.ImageFetcher
	if !offline {
		remote = fetch.NewClient(fetch.ClientOpts{
			Timeout: cfg.RequestTimeout,
			Retries: cfg.MaxRetries,
			Delay:   cfg.ParsingDelay,
		}).FetchImage
	}

	images := func(ctx context.Context, url string) ([]byte, error) {
		if path, ok := photos[url]; ok {
			return os.ReadFile(path)
		}
		if remote == nil {
			return nil, fmt.Errorf("no local photo for %s", url)
		}
		return remote(ctx, url)
	}

	svc := inspect.NewService(inspect.ServiceOpts{
		Store:           storage.NewMemoryStore(),
		Analyzer:        newAnalyzer(cfg),
		ComparableLimit: cfg.ComparableLimit,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := svc.Analyze(ctx, sourceURL, raw, images)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error analyzing page: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding report: %v\n", err)
		os.Exit(1)
	}
}

// newAnalyzer builds the photo analyzer with the configured image cap.
func newAnalyzer(cfg config.Config) *condition.Analyzer {
	return condition.NewAnalyzer(condition.PixelExtractor{}, cfg.MaxImagesToAnalyze)
}

// localPhotos pairs the page's photo URLs with local files by position.
func localPhotos(sourceURL string, raw []byte, files []string) (map[string]string, error) {
	photos := make(map[string]string, len(files))
	if len(files) == 0 {
		return photos, nil
	}

	doc, err := extract.NewRawDocument(sourceURL, raw)
	if err != nil {
		return nil, err
	}
	facts := normalize.Normalize(extract.Extract(doc, listing.DetectDialect(sourceURL)), time.Now())
	if len(facts.ImageURLs) < len(files) {
		fmt.Fprintf(os.Stderr, "Warning: page lists %d photos, ignoring %d extra files\n",
			len(facts.ImageURLs), len(files)-len(facts.ImageURLs))
	}
	for i, url := range facts.ImageURLs {
		if i >= len(files) {
			break
		}
		photos[url] = files[i]
	}
	return photos, nil
}
