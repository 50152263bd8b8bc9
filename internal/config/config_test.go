package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewManager(path)
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, `
server:
  addr: ":8080"
  cors_origins:
    - "http://localhost:3000"
  rate_per_sec: 10
logging:
  level: debug
  console: true
  file:
    enabled: true
    path: ./x.log
workday:
  start_hour: 8
  end_hour: 18
scheduler:
  auto_run: "0 7 * * *"
  horizon_days: 14
storage:
  driver: sqlite
  path: ./data.db
  busy_timeout: 5s
`)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.RatePerSec != 10 {
		t.Fatalf("server: %+v", cfg.Server)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.File.Enabled {
		t.Fatalf("logging: %+v", cfg.Logging)
	}
	if s, e := cfg.Workday.Hours(); s != 8 || e != 18 {
		t.Fatalf("workday: %d..%d", s, e)
	}
	if cfg.Scheduler.AutoRun != "0 7 * * *" || cfg.Scheduler.HorizonDays != 14 {
		t.Fatalf("scheduler: %+v", cfg.Scheduler)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage: %+v", cfg.Storage)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, `
server:
  addr: ":8080"
  max_conns: 10
`)
	if _, err := m.Load(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestWorkdayDefaults(t *testing.T) {
	t.Parallel()
	var w WorkdayConfig
	if s, e := w.Hours(); s != 9 || e != 17 {
		t.Fatalf("defaults: %d..%d", s, e)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"empty config", func(c *Config) {}, true},
		{"inverted workday", func(c *Config) { c.Workday = WorkdayConfig{StartHour: 18, EndHour: 9} }, false},
		{"start out of range", func(c *Config) { c.Workday = WorkdayConfig{StartHour: -1, EndHour: 17} }, false},
		{"end out of range", func(c *Config) { c.Workday = WorkdayConfig{StartHour: 9, EndHour: 25} }, false},
		{"negative horizon", func(c *Config) { c.Scheduler.HorizonDays = -1 }, false},
		{"bad cron", func(c *Config) { c.Scheduler.AutoRun = "every day at 7" }, false},
		{"descriptor cron", func(c *Config) { c.Scheduler.AutoRun = "@hourly" }, true},
		{"six field cron", func(c *Config) { c.Scheduler.AutoRun = "0 0 7 * * *" }, true},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, false},
		{"bad driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "bolt"} }, false},
		{"bad duration", func(c *Config) { c.Server.ReadTimeout = "fast" }, false},
		{"negative rate", func(c *Config) { c.Server.RatePerSec = -1 }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{}
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", "1m30s"); err != nil || d != 90e9 {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative accepted")
	}
	if _, err := ParseDurationField("x", "soon"); err == nil {
		t.Fatal("garbage accepted")
	}
}
