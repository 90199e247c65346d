// helperstub is a development stand-in for the privileged location helper.
// It speaks the helper protocol on a unix socket and logs every override it
// would feed to the OS, without touching location services.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nlzhang/geopin/internal/pkg/helperproto"
	"github.com/nlzhang/geopin/internal/pkg/logging"
)

// stubHelper enforces the real helper's one-override-at-a-time contract:
// a second begin without an end in between is refused.
type stubHelper struct {
	mu     sync.Mutex
	active *helperproto.OverrideParams
}

func (h *stubHelper) BeginOverride(params helperproto.OverrideParams) *helperproto.WireError {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active != nil {
		return &helperproto.WireError{
			Code:    helperproto.CodeAlreadyActive,
			Message: "an override is already active; end it first",
		}
	}
	h.active = &params
	slog.Info("override begun",
		"lat", params.Latitude,
		"lon", params.Longitude,
		"alt", params.Altitude,
		"h_acc", params.HorizontalAccuracy,
		"v_acc", params.VerticalAccuracy,
		"at", helperproto.TimeFromEpoch(params.Timestamp).Format(time.RFC3339),
	)
	return nil
}

func (h *stubHelper) EndOverride() *helperproto.WireError {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == nil {
		slog.Debug("end with no active override")
	} else {
		slog.Info("override ended", "lat", h.active.Latitude, "lon", h.active.Longitude)
	}
	h.active = nil
	return nil
}

func main() {
	socket := flag.String("socket", "/tmp/geopin-helper.sock", "unix socket to listen on")
	logLevel := flag.String("log-level", "info", "debug, info, warn, or error")
	flag.Parse()

	logging.SetupWriter(*logLevel, "text", os.Stderr)

	// A previous run may have left its socket file behind.
	if err := os.Remove(*socket); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("remove stale socket: %v", err)
	}

	l, err := net.Listen("unix", *socket)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- helperproto.Serve(l, &stubHelper{})
	}()

	slog.Info("helper stub listening", "socket", *socket)
	fmt.Printf("helper stub ready on %s\n", *socket)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-done:
		if err != nil {
			slog.Error("serve failed", "error", err)
		}
	}

	l.Close()
	os.Remove(*socket)
}
