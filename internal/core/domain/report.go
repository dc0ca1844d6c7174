package domain

import (
	"strings"
	"time"
)

// UnitStatus represents the lifecycle state of a build unit in the scheduler.
type UnitStatus string

const (
	// UnitStatusPending indicates the unit is waiting for its level to start.
	UnitStatusPending UnitStatus = "pending"
	// UnitStatusRunning indicates the unit is currently compiling.
	UnitStatusRunning UnitStatus = "running"
	// UnitStatusFresh indicates the unit was served from the artifact store.
	UnitStatusFresh UnitStatus = "fresh"
	// UnitStatusCompiled indicates the unit was compiled in this invocation.
	UnitStatusCompiled UnitStatus = "compiled"
	// UnitStatusFailed indicates the unit's compilation failed.
	UnitStatusFailed UnitStatus = "failed"
	// UnitStatusSkipped indicates the unit never ran because a dependency failed.
	UnitStatusSkipped UnitStatus = "skipped"
)

// IsTerminal checks if a status is a terminal state.
func (s UnitStatus) IsTerminal() bool {
	switch s {
	case UnitStatusFresh, UnitStatusCompiled, UnitStatusFailed, UnitStatusSkipped:
		return true
	default:
		return false
	}
}

// NormalizeUnitStatus converts a string to a UnitStatus, defaulting to
// pending if unknown. Useful at deserialization boundaries.
func NormalizeUnitStatus(s string) UnitStatus {
	switch strings.ToLower(s) {
	case string(UnitStatusPending):
		return UnitStatusPending
	case string(UnitStatusRunning):
		return UnitStatusRunning
	case string(UnitStatusFresh):
		return UnitStatusFresh
	case string(UnitStatusCompiled):
		return UnitStatusCompiled
	case string(UnitStatusFailed):
		return UnitStatusFailed
	case string(UnitStatusSkipped):
		return UnitStatusSkipped
	default:
		return UnitStatusPending
	}
}

// LogLevel represents the severity of a log message, mirroring the standard slog levels.
type LogLevel int

const (
	// LogLevelDebug represents debug-level verbosity.
	LogLevelDebug LogLevel = -4
	// LogLevelInfo represents informational verbosity.
	LogLevelInfo LogLevel = 0
	// LogLevelWarn represents warning verbosity.
	LogLevelWarn LogLevel = 4
	// LogLevelError represents error verbosity.
	LogLevelError LogLevel = 8
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// UnitResult is the terminal record of one unit in a build invocation.
type UnitResult struct {
	Unit   string
	Status UnitStatus
	Key    CacheKey
	// Output is the materialized artifact path, empty when the unit never
	// produced one.
	Output string
	// Diagnostics holds compiler warnings, replayed verbatim on cache hits.
	Diagnostics string
	Duration    time.Duration
	Err         error
}

// BuildReport aggregates per-unit results for a whole invocation.
type BuildReport struct {
	Target  Target
	Profile Profile
	Results []UnitResult
	Elapsed time.Duration
}

// Failed reports whether any unit failed or was skipped.
func (r *BuildReport) Failed() bool {
	for _, res := range r.Results {
		if res.Status == UnitStatusFailed || res.Status == UnitStatusSkipped {
			return true
		}
	}
	return false
}

// Counts tallies results per status.
func (r *BuildReport) Counts() map[UnitStatus]int {
	counts := make(map[UnitStatus]int)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Result returns the result for the named unit, or nil if absent.
func (r *BuildReport) Result(unit string) *UnitResult {
	for i := range r.Results {
		if r.Results[i].Unit == unit {
			return &r.Results[i]
		}
	}
	return nil
}
