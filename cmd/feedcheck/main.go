// Command feedcheck fetches one or all upstream feeds once, runs them through
// the normalizer, and prints the resulting events plus a per-source summary.
// It exercises the exact fetch and parse paths the service uses, so it doubles
// as an upstream-schema canary when a provider changes its format.
//
// Usage:
//
//	go run ./cmd/feedcheck -source all -timeout 15s
//	go run ./cmd/feedcheck -source krdae -json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/seismoguard/quake-ingest/internal/adapter/feed"
	"github.com/seismoguard/quake-ingest/internal/config"
	"github.com/seismoguard/quake-ingest/internal/domain"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "feedcheck:", err)
		os.Exit(1)
	}
}

func run() error {
	sourceFlag := flag.String("source", "all", "source to check: usgs, emsc, afad, kandilli, krdae, or all")
	timeout := flag.Duration("timeout", 15*time.Second, "per-request timeout")
	asJSON := flag.Bool("json", false, "print normalized events as JSON instead of a table")
	limit := flag.Int("limit", 10, "max events to print per source (0 = all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	all := []feed.Endpoint{
		{Source: domain.SourceUSGS, URL: cfg.USGSURL},
		{Source: domain.SourceEMSC, URL: cfg.EMSCURL},
		{Source: domain.SourceAFAD, URL: cfg.AFADURL},
		{Source: domain.SourceKandilli, URL: cfg.KandilliURL},
		{Source: domain.SourceKRDAE, URL: cfg.KRDAEURL, ExtractPre: true},
	}

	var endpoints []feed.Endpoint
	if *sourceFlag == "all" {
		endpoints = all
	} else {
		want := domain.Source(strings.ToUpper(*sourceFlag))
		for _, ep := range all {
			if ep.Source == want {
				endpoints = append(endpoints, ep)
			}
		}
		if len(endpoints) == 0 {
			return fmt.Errorf("unknown source %q", *sourceFlag)
		}
	}

	client := feed.NewClient(*timeout, cfg.SourceRateRPS)
	ctx := context.Background()

	for _, ep := range endpoints {
		fetchCtx, cancel := context.WithTimeout(ctx, *timeout)
		payload, err := client.Fetch(fetchCtx, ep)
		cancel()
		if err != nil {
			fmt.Printf("%-8s FETCH FAILED: %v\n", ep.Source, err)
			continue
		}

		events, report, err := domain.Normalize(payload, ep.Source)
		if err != nil {
			fmt.Printf("%-8s NORMALIZE FAILED: %v\n", ep.Source, err)
			continue
		}

		fmt.Printf("%-8s parsed=%d dropped=%d\n", ep.Source, report.Parsed, len(report.Dropped))
		for _, re := range report.Dropped {
			fmt.Printf("         dropped record %d: %v\n", re.Index, re.Err)
		}

		n := len(events)
		if *limit > 0 && n > *limit {
			n = *limit
		}
		if *asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(events[:n]); err != nil {
				return err
			}
			continue
		}
		for _, ev := range events[:n] {
			fmt.Printf("         %-28s M%.1f %7.1fkm  %s  %s\n",
				ev.ID, ev.Magnitude, ev.DepthKm, ev.DisplayTime, ev.Place)
		}
	}
	return nil
}
