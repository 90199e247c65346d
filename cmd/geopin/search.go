package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/nlzhang/geopin/internal/core/domain"
)

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	addr := fs.String("addr", daemonAddr(), "daemon address")
	limit := fs.Int("limit", 10, "maximum matches")
	sel := fs.Int("select", 0, "stage match N as the selection and record it")
	asJSON := fs.Bool("json", false, "print raw matches")
	if err := fs.Parse(args); err != nil {
		return err
	}

	query := strings.Join(fs.Args(), " ")
	if query == "" {
		return fmt.Errorf("usage: geopin search [flags] TEXT")
	}

	client := newClient(*addr)
	var matches []domain.PlaceMatch
	path := fmt.Sprintf("/v1/search?q=%s&limit=%d", url.QueryEscape(query), *limit)
	if err := client.get(path, &matches); err != nil {
		return err
	}

	if *asJSON {
		data, err := json.MarshalIndent(matches, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else if len(matches) == 0 {
		fmt.Println("no matches")
	} else {
		for i, m := range matches {
			kind := ""
			if m.Kind != "" {
				kind = " (" + m.Kind + ")"
			}
			fmt.Printf("%2d. %s%s\n    %.6f, %.6f\n", i+1, m.Label, kind, m.Lat, m.Lon)
		}
	}

	if *sel <= 0 {
		return nil
	}
	if *sel > len(matches) {
		return fmt.Errorf("match %d does not exist, got %d matches", *sel, len(matches))
	}

	m := matches[*sel-1]

	// Picking a hit records the search and stages the point. Geocoder
	// results are true-space coordinates.
	var entry domain.QueryHistoryEntry
	if err := client.post("/v1/history", map[string]interface{}{
		"query": query, "lat": m.Lat, "lon": m.Lon,
	}, &entry); err != nil {
		return fmt.Errorf("record search: %w", err)
	}

	var snap domain.SessionSnapshot
	if err := client.post("/v1/session/select", pointBody{
		Lat: m.Lat, Lon: m.Lon, Space: "true", Label: m.Label,
	}, &snap); err != nil {
		return reportSessionError(err, *asJSON)
	}
	fmt.Println()
	return printSnapshot(snap, *asJSON)
}

func runTransform(args []string) error {
	fs := flag.NewFlagSet("transform", flag.ExitOnError)
	addr := fs.String("addr", daemonAddr(), "daemon address")
	lat := fs.Float64("lat", math.NaN(), "latitude (required)")
	lon := fs.Float64("lon", math.NaN(), "longitude (required)")
	to := fs.String("to", "true", "target space: display or true")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if math.IsNaN(*lat) || math.IsNaN(*lon) {
		return fmt.Errorf("-lat and -lon are required")
	}

	var out struct {
		Lat   float64 `json:"lat"`
		Lon   float64 `json:"lon"`
		Space string  `json:"space"`
	}
	path := fmt.Sprintf("/v1/transform?lat=%.10f&lon=%.10f&to=%s", *lat, *lon, url.QueryEscape(*to))
	if err := newClient(*addr).get(path, &out); err != nil {
		return err
	}
	fmt.Printf("%.6f, %.6f (%s)\n", out.Lat, out.Lon, out.Space)
	return nil
}
