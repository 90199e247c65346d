package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/nlzhang/geopin/internal/adapters/nats"
	"github.com/nlzhang/geopin/internal/core/domain"
)

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	natsURL := fs.String("nats", defaultNATSURL(), "NATS server URL")
	sessionOnly := fs.Bool("session", false, "only session state changes")
	historyOnly := fs.Bool("history", false, "only history changes")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: geopin watch [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Tails the daemon's event stream. The daemon must run with\n")
		fmt.Fprintf(os.Stderr, "nats.enabled set, on the same NATS server.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	sub, err := natsadapter.NewSubscriber(*natsURL)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", *natsURL, err)
	}
	defer sub.Close()

	wantSession := !*historyOnly
	wantHistory := !*sessionOnly
	if *sessionOnly && *historyOnly {
		wantSession, wantHistory = true, true
	}

	if wantSession {
		if err := sub.SubscribeSession(func(snap domain.SessionSnapshot) {
			fmt.Printf("%s  session  %s\n", time.Now().Format("15:04:05"), sessionLine(snap))
		}); err != nil {
			return fmt.Errorf("subscribe session: %w", err)
		}
	}
	if wantHistory {
		if err := sub.SubscribeHistory(func(entries []domain.QueryHistoryEntry) {
			newest := ""
			if len(entries) > 0 {
				newest = fmt.Sprintf(", newest %q", entries[0].Query)
			}
			fmt.Printf("%s  history  %d entries%s\n", time.Now().Format("15:04:05"), len(entries), newest)
		}); err != nil {
			return fmt.Errorf("subscribe history: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "watching %s, ctrl-c to stop\n", *natsURL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	return nil
}

func sessionLine(snap domain.SessionSnapshot) string {
	switch {
	case snap.Running() && snap.DisplayPoint != nil:
		return fmt.Sprintf("running  %.6f, %.6f (display)", snap.DisplayPoint.Lat, snap.DisplayPoint.Lon)
	case snap.LastError != nil:
		return fmt.Sprintf("%s  [%s] %s", snap.State, snap.LastError.Kind, snap.LastError.Message)
	default:
		return string(snap.State)
	}
}

func defaultNATSURL() string {
	if v := os.Getenv("GEOPIN_NATS_URL"); v != "" {
		return v
	}
	return "nats://localhost:4222"
}
