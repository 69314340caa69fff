package daemon

import "github.com/williamfrack18-alt/anmar-engine/internal/advisor"

// StartOptions configures the daemon (home, port, sweep interval, DB, dispatch).
type StartOptions struct {
	Home              string
	Port              int
	SweepIntervalSec  float64 // SLA sweep cadence; <= 0 falls back to 30s
	Dev               bool
	PprofAddr         string
	APIKey            string // protects /api routes when set
	DBDriver          string // "sqlite" (default) or "postgres"
	DBURL             string // for postgres: connection string (or DATABASE_URL env)
	Engineers         []string
	QuotaMax          int
	Advisor           advisor.Config
	AutoDispatch      bool // assign pending tickets on each sweep tick
	AutoDispatchLimit int  // per-tick batch size; 0 uses the dispatch default
	EnableOtel        bool // enable OpenTelemetry metrics (Prometheus exporter + HTTP/SSE/ticket instrumentation)
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
