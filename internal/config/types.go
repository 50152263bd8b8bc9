package config

type Config struct {
	Server  ServerConfig  `json:"server"`
	Logging LoggingConfig `json:"logging"`

	// Workday bounds the window the scheduling engine may place work in.
	// Hours are local wall-clock hours; defaults are 9 and 17.
	Workday WorkdayConfig `json:"workday"`

	// Scheduler controls the scheduling engine and its optional auto-run trigger.
	Scheduler SchedulerConfig `json:"scheduler"`

	Storage  *StorageConfig  `json:"storage,omitempty"`
	Calendar *CalendarConfig `json:"calendar,omitempty"`
}

// ServerConfig controls the HTTP API listener.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type ServerConfig struct {
	Addr string `json:"addr,omitempty"` // default: ":5002"

	// CORSOrigins lists origins allowed to call the API from a browser.
	// Empty disables CORS headers entirely.
	CORSOrigins []string `json:"cors_origins,omitempty"`

	// RatePerSec caps API requests per second (token bucket).
	// 0 disables rate limiting. Burst defaults to RatePerSec.
	RatePerSec int `json:"rate_per_sec,omitempty"`
	RateBurst  int `json:"rate_burst,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// WorkdayConfig bounds the scheduling window on each calendar day.
type WorkdayConfig struct {
	StartHour int `json:"start_hour,omitempty"` // default: 9
	EndHour   int `json:"end_hour,omitempty"`   // default: 17
}

// SchedulerConfig controls the scheduling engine.
//
// AutoRun accepts a cron expression (5-field, or 6-field with seconds) or a
// descriptor like "@hourly". Empty disables automatic runs; the POST
// /api/schedule endpoint always works regardless.
type SchedulerConfig struct {
	AutoRun  string `json:"auto_run,omitempty"`
	Timezone string `json:"timezone,omitempty"` // trigger timezone only

	// HorizonDays caps the fallback search past the deadline. Default: 30.
	HorizonDays int `json:"horizon_days,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Driver values:
//   - "memory": in-process keyed stores (default; no durability)
//   - "file":   JSON snapshot file
//   - "sqlite": SQLite database file
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// CalendarConfig controls the optional Google Calendar sync boundary.
// The scheduling engine never reads this; sync only consumes the event store.
type CalendarConfig struct {
	Enabled         bool   `json:"enabled"`
	CredentialsFile string `json:"credentials_file,omitempty"` // OAuth client secrets JSON
	TokenFile       string `json:"token_file,omitempty"`       // cached user token
	CalendarID      string `json:"calendar_id,omitempty"`      // default: "primary"
}
