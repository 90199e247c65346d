package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nlzhang/geopin/internal/core/domain"
)

const defaultAddr = "http://127.0.0.1:8417"

// daemonAddr returns the default daemon address, honoring GEOPIN_ADDR.
func daemonAddr() string {
	if addr := os.Getenv("GEOPIN_ADDR"); addr != "" {
		return addr
	}
	return defaultAddr
}

// apiClient talks to the local daemon's REST API.
type apiClient struct {
	base string
	hc   *http.Client
}

func newClient(addr string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(addr, "/"),
		hc:   &http.Client{Timeout: 15 * time.Second},
	}
}

// apiError mirrors the daemon's error body.
type apiError struct {
	Status  int                     `json:"status"`
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Session *domain.SessionSnapshot `json:"session,omitempty"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (c *apiClient) do(method, path string, body, out interface{}) error {
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.base+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running at %s? %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var ae apiError
		if json.NewDecoder(resp.Body).Decode(&ae) == nil && ae.Code != "" {
			ae.Status = resp.StatusCode
			return &ae
		}
		return fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}

	if out != nil && resp.StatusCode != 204 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *apiClient) get(path string, out interface{}) error {
	return c.do("GET", path, nil, out)
}

func (c *apiClient) post(path string, body, out interface{}) error {
	return c.do("POST", path, body, out)
}

func (c *apiClient) del(path string) error {
	return c.do("DELETE", path, nil, nil)
}
