package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"time"

	"github.com/nlzhang/geopin/internal/core/domain"
)

// pointBody is the request body for select and start.
type pointBody struct {
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Space    string   `json:"space,omitempty"`
	Altitude *float64 `json:"altitude,omitempty"`
	Label    string   `json:"label,omitempty"`
	Note     string   `json:"note,omitempty"`
}

func printSnapshot(snap domain.SessionSnapshot, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("state:    %s\n", snap.State)
	if snap.DisplayPoint != nil {
		fmt.Printf("display:  %.6f, %.6f\n", snap.DisplayPoint.Lat, snap.DisplayPoint.Lon)
	}
	if snap.TruePoint != nil {
		fmt.Printf("true:     %.6f, %.6f\n", snap.TruePoint.Lat, snap.TruePoint.Lon)
	}
	if snap.Selected != nil {
		suffix := ""
		if snap.Selected.Point.Label != "" {
			suffix = "  " + snap.Selected.Point.Label
		}
		fmt.Printf("selected: %.6f, %.6f (%s)%s\n",
			snap.Selected.Point.Lat, snap.Selected.Point.Lon, snap.Selected.Space, suffix)
	}
	if snap.LastError != nil {
		fmt.Printf("error:    [%s] %s\n", snap.LastError.Kind, snap.LastError.Message)
	}
	fmt.Printf("changed:  %s\n", snap.ChangedAt.Format(time.RFC3339))
	return nil
}

// reportSessionError prints the embedded snapshot alongside API errors so
// the user sees what state the daemon landed in.
func reportSessionError(err error, asJSON bool) error {
	var ae *apiError
	if errors.As(err, &ae) && ae.Session != nil {
		printSnapshot(*ae.Session, asJSON)
	}
	return err
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	addr := fs.String("addr", daemonAddr(), "daemon address")
	asJSON := fs.Bool("json", false, "print the raw snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var snap domain.SessionSnapshot
	if err := newClient(*addr).get("/v1/session", &snap); err != nil {
		return err
	}
	return printSnapshot(snap, *asJSON)
}

func runSelect(args []string) error {
	fs := flag.NewFlagSet("select", flag.ExitOnError)
	addr := fs.String("addr", daemonAddr(), "daemon address")
	lat := fs.Float64("lat", math.NaN(), "latitude (required)")
	lon := fs.Float64("lon", math.NaN(), "longitude (required)")
	space := fs.String("space", "display", "coordinate space: display or true")
	alt := fs.Float64("alt", math.NaN(), "altitude in meters")
	label := fs.String("label", "", "name for the point")
	note := fs.String("note", "", "free-form note")
	asJSON := fs.Bool("json", false, "print the raw snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if math.IsNaN(*lat) || math.IsNaN(*lon) {
		return fmt.Errorf("-lat and -lon are required")
	}

	body := pointBody{Lat: *lat, Lon: *lon, Space: *space, Label: *label, Note: *note}
	if !math.IsNaN(*alt) {
		body.Altitude = alt
	}

	var snap domain.SessionSnapshot
	if err := newClient(*addr).post("/v1/session/select", body, &snap); err != nil {
		return reportSessionError(err, *asJSON)
	}
	return printSnapshot(snap, *asJSON)
}

func runStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	addr := fs.String("addr", daemonAddr(), "daemon address")
	lat := fs.Float64("lat", math.NaN(), "latitude (omit to start the staged point)")
	lon := fs.Float64("lon", math.NaN(), "longitude")
	space := fs.String("space", "display", "coordinate space: display or true")
	alt := fs.Float64("alt", math.NaN(), "altitude in meters")
	label := fs.String("label", "", "name for the point")
	asJSON := fs.Bool("json", false, "print the raw snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var body interface{}
	if !math.IsNaN(*lat) || !math.IsNaN(*lon) {
		if math.IsNaN(*lat) || math.IsNaN(*lon) {
			return fmt.Errorf("-lat and -lon go together")
		}
		pb := pointBody{Lat: *lat, Lon: *lon, Space: *space, Label: *label}
		if !math.IsNaN(*alt) {
			pb.Altitude = alt
		}
		body = pb
	}

	var snap domain.SessionSnapshot
	if err := newClient(*addr).post("/v1/session/start", body, &snap); err != nil {
		return reportSessionError(err, *asJSON)
	}
	return printSnapshot(snap, *asJSON)
}

func runStop(args []string) error {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	addr := fs.String("addr", daemonAddr(), "daemon address")
	asJSON := fs.Bool("json", false, "print the raw snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var snap domain.SessionSnapshot
	if err := newClient(*addr).post("/v1/session/stop", nil, &snap); err != nil {
		return reportSessionError(err, *asJSON)
	}
	return printSnapshot(snap, *asJSON)
}

func runRestore(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	addr := fs.String("addr", daemonAddr(), "daemon address")
	asJSON := fs.Bool("json", false, "print the raw snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var snap domain.SessionSnapshot
	if err := newClient(*addr).post("/v1/session/restore", nil, &snap); err != nil {
		return reportSessionError(err, *asJSON)
	}
	return printSnapshot(snap, *asJSON)
}
