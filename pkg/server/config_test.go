package server

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParseConfigYAML(t *testing.T) {
	cfg := DefaultConfig()
	data := []byte(`
addr: ":9000"
websocket_addr: "127.0.0.1:9001"
write_timeout: 2s
rate_limit:
  per_second: 5
rooms: [general, random]
log:
  level: debug
`)
	if err := ParseConfigYAML(data, &cfg); err != nil {
		t.Fatalf("ParseConfigYAML: %v", err)
	}

	want := DefaultConfig()
	want.Addr = ":9000"
	want.WebSocketAddr = "127.0.0.1:9001"
	want.WriteTimeout = 2 * time.Second
	want.RateLimit.PerSecond = 5
	want.Rooms = []string{"general", "random"}
	want.Log.Level = "debug"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rooms = []string{"general"}
	data, err := cfg.YAML()
	if err != nil {
		t.Fatalf("YAML: %v", err)
	}
	var got Config
	if err := ParseConfigYAML(data, &got); err != nil {
		t.Fatalf("ParseConfigYAML: %v", err)
	}
	if diff := cmp.Diff(cfg, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

func TestApplyEnvFrom(t *testing.T) {
	cfg := DefaultConfig()
	err := ApplyEnvFrom(&cfg, map[string]string{
		"CHATRELAY_ADDR":                 ":7100",
		"CHATRELAY_IDENTIFY_TIMEOUT":     "10s",
		"CHATRELAY_FANOUT_WORKERS":       "4",
		"CHATRELAY_RATE_LIMIT_BURST":     "7",
		"CHATRELAY_ALLOWED_ORIGINS":      "https://a.example,https://b.example",
		"CHATRELAY_LOG_FORMAT":           "json",
		"UNRELATED_FANOUT_WORKERS":       "99",
		"CHATRELAY_METRICS_LOG_INTERVAL": "0s",
	})
	if err != nil {
		t.Fatalf("ApplyEnvFrom: %v", err)
	}

	want := DefaultConfig()
	want.Addr = ":7100"
	want.IdentifyTimeout = 10 * time.Second
	want.FanoutWorkers = 4
	want.RateLimit.Burst = 7
	want.AllowedOrigins = []string{"https://a.example", "https://b.example"}
	want.Log.Format = "json"
	want.MetricsLogInterval = 0
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
}

func TestApplyEnvFromBadValue(t *testing.T) {
	cfg := DefaultConfig()
	if err := ApplyEnvFrom(&cfg, map[string]string{"CHATRELAY_WRITE_TIMEOUT": "soon"}); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty addr", func(c *Config) { c.Addr = "" }, "addr must not be empty"},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }, "write_timeout"},
		{"negative identify timeout", func(c *Config) { c.IdentifyTimeout = -time.Second }, "identify_timeout"},
		{"no workers", func(c *Config) { c.FanoutWorkers = 0 }, "fanout_workers"},
		{"zero burst", func(c *Config) { c.RateLimit = RateLimitConfig{PerSecond: 5} }, "rate_limit.burst"},
		{"zero burst without limiting", func(c *Config) { c.RateLimit = RateLimitConfig{} }, ""},
		{"bad room", func(c *Config) { c.Rooms = []string{"this-name-is-too-long"} }, "rooms"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "unknown log level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "unknown log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate: got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateReportsAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = ""
	cfg.FanoutWorkers = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"addr", "fanout_workers"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
