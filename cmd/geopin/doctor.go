package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"sort"
	"time"
)

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	addr := fs.String("addr", daemonAddr(), "daemon address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// The ready endpoint answers 503 with a useful body, so this command
	// reads responses directly instead of going through the API client's
	// error mapping.
	hc := &http.Client{Timeout: 5 * time.Second}

	var health struct {
		Status  string `json:"status"`
		Uptime  string `json:"uptime"`
		Version string `json:"version"`
	}
	if _, err := fetchJSON(hc, *addr+"/v1/health", &health); err != nil {
		return fmt.Errorf("daemon unreachable, is geopind running at %s? %w", *addr, err)
	}
	fmt.Printf("daemon   %s, up %s\n", health.Status, health.Uptime)

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	code, err := fetchJSON(hc, *addr+"/v1/ready", &ready)
	if err != nil {
		return fmt.Errorf("ready check: %w", err)
	}

	names := make([]string, 0, len(ready.Checks))
	for name := range ready.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-8s %s\n", name, ready.Checks[name])
	}

	if code != http.StatusOK {
		return fmt.Errorf("%s", ready.Status)
	}
	fmt.Println("\nready")
	return nil
}

func fetchJSON(hc *http.Client, url string, out interface{}) (int, error) {
	resp, err := hc.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}
