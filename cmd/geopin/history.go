package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/nlzhang/geopin/internal/core/domain"
)

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	addr := fs.String("addr", daemonAddr(), "daemon address")
	del := fs.String("delete", "", "delete the entry with this id")
	clearAll := fs.Bool("clear", false, "delete every entry")
	export := fs.String("export", "", "write entries to this file instead of listing")
	format := fs.String("format", "", "export format: csv or geojson (default: by file extension)")
	asJSON := fs.Bool("json", false, "print raw entries")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: geopin history [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  geopin history\n")
		fmt.Fprintf(os.Stderr, "  geopin history -delete 9f3a1c0b5d2e4a87\n")
		fmt.Fprintf(os.Stderr, "  geopin history -export searches.csv\n")
		fmt.Fprintf(os.Stderr, "  geopin history -export searches.geojson\n")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := newClient(*addr)

	switch {
	case *del != "":
		if err := client.del("/v1/history/" + *del); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	case *clearAll:
		if err := client.del("/v1/history"); err != nil {
			return err
		}
		fmt.Println("history cleared")
		return nil
	}

	// The ring holds at most domain.HistoryCapacity entries, so one
	// request fetches everything.
	var page struct {
		Data []domain.QueryHistoryEntry `json:"data"`
	}
	if err := client.get("/v1/history", &page); err != nil {
		return err
	}
	entries := page.Data

	if *export != "" {
		return exportHistory(entries, *export, *format)
	}

	if *asJSON {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(entries) == 0 {
		fmt.Println("no history")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %s  %11.6f, %11.6f  %s\n",
			e.ID,
			e.RecordedAt.Local().Format("2006-01-02 15:04"),
			e.Lat, e.Lon,
			e.Query)
	}
	return nil
}

func exportHistory(entries []domain.QueryHistoryEntry, outputPath, format string) error {
	if format == "" {
		switch strings.ToLower(filepath.Ext(outputPath)) {
		case ".geojson", ".json":
			format = "geojson"
		default:
			format = "csv"
		}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer f.Close()

	switch format {
	case "csv":
		w := csv.NewWriter(f)
		defer w.Flush()

		w.Write([]string{"id", "query", "lat", "lon", "recorded_at"})
		for _, e := range entries {
			w.Write([]string{
				e.ID,
				e.Query,
				fmt.Sprintf("%.6f", e.Lat),
				fmt.Sprintf("%.6f", e.Lon),
				e.RecordedAt.UTC().Format(time.RFC3339),
			})
		}
		if err := w.Error(); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
	case "geojson":
		fc := geojson.NewFeatureCollection()
		for _, e := range entries {
			feat := geojson.NewFeature(orb.Point{e.Lon, e.Lat})
			feat.Properties["id"] = e.ID
			feat.Properties["query"] = e.Query
			feat.Properties["recorded_at"] = e.RecordedAt.UTC().Format(time.RFC3339)
			fc.Append(feat)
		}
		data, err := json.MarshalIndent(fc, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding geojson: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("writing geojson: %w", err)
		}
	default:
		return fmt.Errorf("unsupported format: %s (csv or geojson)", format)
	}

	fmt.Fprintf(os.Stderr, "Exported %d entries to %s\n", len(entries), outputPath)
	return nil
}
