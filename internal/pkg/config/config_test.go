package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 8417, ReadTimeout: 10, WriteTimeout: 10},
		Helper: HelperConfig{Socket: "/tmp/geopin-helper.sock", CallTimeoutMS: 3000},
		Store:  StoreConfig{Path: "/tmp/state.db"},
		Spoof:  SpoofConfig{HorizontalAccuracyM: 5, VerticalAccuracyM: 10},
		NATS:   NATSConfig{Enabled: false},
		Valkey: ValkeyConfig{Enabled: false},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_BadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "server.port") {
		t.Fatalf("expected server.port error, got %v", err)
	}
}

func TestValidate_MissingHelperSocket(t *testing.T) {
	cfg := validConfig()
	cfg.Helper.Socket = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "helper.socket") {
		t.Fatalf("expected helper.socket error, got %v", err)
	}
}

func TestValidate_EnabledExtrasNeedAddresses(t *testing.T) {
	cfg := validConfig()
	cfg.NATS.Enabled = true
	cfg.NATS.URL = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "nats.url") {
		t.Fatalf("expected nats.url error, got %v", err)
	}

	cfg = validConfig()
	cfg.Valkey.Enabled = true
	cfg.Valkey.Addr = ""
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "valkey.addr") {
		t.Fatalf("expected valkey.addr error, got %v", err)
	}

	// Disabled extras skip their address checks.
	cfg = validConfig()
	cfg.NATS.URL = ""
	cfg.Valkey.Addr = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled extras should not require addresses, got %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = -1
	cfg.Helper.Socket = ""
	cfg.Spoof.HorizontalAccuracyM = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"server.port", "helper.socket", "horizontal_accuracy_m"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s in error, got %v", want, err)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("geopin-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected loopback default host, got %s", cfg.Server.Host)
	}
	if cfg.Helper.CallTimeoutMS != 3000 {
		t.Errorf("expected 3000ms default call timeout, got %d", cfg.Helper.CallTimeoutMS)
	}
	if cfg.Store.Path == "" {
		t.Error("expected a default store path")
	}
	if cfg.Telemetry.ServiceName != "geopin-test" {
		t.Errorf("expected service name geopin-test, got %s", cfg.Telemetry.ServiceName)
	}
	if cfg.NATS.Enabled || cfg.Valkey.Enabled {
		t.Error("extras should default to disabled")
	}
}
