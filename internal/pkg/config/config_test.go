package config_test

import (
	"strings"
	"testing"

	"github.com/samirrijal/parkfinder/internal/pkg/config"
)

func validConfig() config.Config {
	return config.Config{
		Server:    config.ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10},
		NATS:      config.NATSConfig{URL: "nats://localhost:4222", Enabled: true},
		Valkey:    config.ValkeyConfig{Addr: "localhost:6379", Enabled: true},
		Source:    config.SourceConfig{Kind: "mosapi", BaseURL: "http://localhost:3847", Timeout: 10},
		Proximity: config.ProximityConfig{RadiusMeters: 200, Limit: 5},
		Map:       config.MapConfig{Width: 1024, Height: 768, MaxZoom: 16},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("parkfinder-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Proximity.RadiusMeters != 200 || cfg.Proximity.Limit != 5 {
		t.Errorf("unexpected proximity defaults %+v", cfg.Proximity)
	}
	if cfg.Map.MaxZoom != 16 {
		t.Errorf("expected max zoom 16, got %v", cfg.Map.MaxZoom)
	}
	if cfg.Temporal.RefreshInterval != 15 || cfg.Realtime.PollInterval != 60 {
		t.Errorf("unexpected background defaults %+v %+v", cfg.Temporal, cfg.Realtime)
	}
	if cfg.Telemetry.ServiceName != "parkfinder-test" {
		t.Errorf("expected service name default, got %s", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PARKFINDER_SOURCE_KIND", "memory")
	t.Setenv("PARKFINDER_PROXIMITY_RADIUS_METERS", "350")

	cfg, err := config.Load("api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Source.Kind != "memory" {
		t.Errorf("expected memory source, got %s", cfg.Source.Kind)
	}
	if cfg.Proximity.RadiusMeters != 350 {
		t.Errorf("expected radius 350, got %d", cfg.Proximity.RadiusMeters)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{"valid", func(c *config.Config) {}, ""},
		{"bad port", func(c *config.Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown source", func(c *config.Config) { c.Source.Kind = "ftp" }, "source.kind"},
		{"mosapi without url", func(c *config.Config) { c.Source.BaseURL = "" }, "source.base_url"},
		{"postgres without host", func(c *config.Config) { c.Source.Kind = "postgres" }, "database.host"},
		{"zero radius", func(c *config.Config) { c.Proximity.RadiusMeters = 0 }, "proximity.radius_meters"},
		{"nats disabled needs no url", func(c *config.Config) { c.NATS.Enabled = false; c.NATS.URL = "" }, ""},
		{"empty viewport", func(c *config.Config) { c.Map.Width = 0 }, "map.width"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}
