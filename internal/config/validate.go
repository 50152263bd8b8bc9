package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts both 5-field and 6-field (with seconds) specs plus
// descriptors like "@hourly" and "@every 30m".
var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks cross-field constraints. It does not mutate cfg;
// defaulting happens at the point of use.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	start, end := cfg.Workday.Hours()
	if start < 0 || start > 23 {
		return fmt.Errorf("workday.start_hour: must be in 0..23, got %d", start)
	}
	if end < 1 || end > 24 {
		return fmt.Errorf("workday.end_hour: must be in 1..24, got %d", end)
	}
	if start >= end {
		return fmt.Errorf("workday: start_hour %d must be before end_hour %d", start, end)
	}

	if cfg.Scheduler.HorizonDays < 0 {
		return fmt.Errorf("scheduler.horizon_days: must be >= 0")
	}
	if spec := strings.TrimSpace(cfg.Scheduler.AutoRun); spec != "" {
		if _, err := cronParser.Parse(spec); err != nil {
			return fmt.Errorf("scheduler.auto_run: invalid cron spec %q: %w", spec, err)
		}
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	}

	if cfg.Storage != nil {
		switch d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)); d {
		case "", "none", "memory", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", d)
		}
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
	}

	for _, f := range []struct{ path, raw string }{
		{"server.read_timeout", cfg.Server.ReadTimeout},
		{"server.write_timeout", cfg.Server.WriteTimeout},
		{"server.idle_timeout", cfg.Server.IdleTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if cfg.Server.RatePerSec < 0 || cfg.Server.RateBurst < 0 {
		return fmt.Errorf("server: rate_per_sec and rate_burst must be >= 0")
	}

	return nil
}

// Hours returns the configured workday bounds with defaults applied.
func (w WorkdayConfig) Hours() (start, end int) {
	start, end = w.StartHour, w.EndHour
	if start == 0 && end == 0 {
		return 9, 17
	}
	return start, end
}
