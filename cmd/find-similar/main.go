// Command find-similar prints the comparable listings and price judgement of a
// stored listing.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/raine/auto-inspect-bot/internal/config"
	"github.com/raine/auto-inspect-bot/internal/inspect"
	"github.com/raine/auto-inspect-bot/internal/listing"
	"github.com/raine/auto-inspect-bot/internal/scoring"
	"github.com/raine/auto-inspect-bot/internal/storage"
	"github.com/rs/zerolog"
)

type result struct {
	Target       listing.AdRecord      `json:"target"`
	Comparable   listing.ComparableSet `json:"comparable"`
	PriceVerdict listing.PriceAnalysis `json:"price"`
}

func main() {
	var adID string
	var limit int

	flag.StringVar(&adID, "id", "", "Stored listing ID")
	flag.IntVar(&limit, "limit", inspect.DefaultComparableLimit, "Maximum number of comparable listings")
	flag.Parse()

	// Accept ad ID as positional argument
	if adID == "" && flag.NArg() > 0 {
		adID = flag.Arg(0)
	}

	if adID == "" {
		fmt.Fprintf(os.Stderr, "Usage: find-similar -id <ad_id> [-limit n]\n")
		fmt.Fprintf(os.Stderr, "       find-similar <ad_id>\n")
		os.Exit(1)
	}

	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	config.LoadEnvFile()
	cfg := config.Load()

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening listing store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	svc := inspect.NewService(inspect.ServiceOpts{Store: store})
	rec, set, err := svc.Similar(ctx, adID, limit)
	if errors.Is(err, inspect.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Listing %s not found\n", adID)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding similar listings: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result{
		Target:       *rec,
		Comparable:   set,
		PriceVerdict: scoring.ComparePrice(rec.Price, set.Records),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
		os.Exit(1)
	}
}
