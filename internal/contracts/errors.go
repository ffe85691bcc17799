package contracts

import (
	"errors"
	"fmt"
)

// Sentinel errors. Wrap with %w and test with errors.Is.
var (
	// ErrEmptySeries means the provider returned no rows for a symbol
	ErrEmptySeries = errors.New("empty series")

	// ErrMissingField means a required row field is null
	ErrMissingField = errors.New("missing required field")

	// ErrFetch wraps any provider failure for one symbol
	ErrFetch = errors.New("fetch failed")

	// ErrProviderOutage means every symbol in the batch failed to fetch
	ErrProviderOutage = errors.New("provider outage")

	// ErrStorageWrite wraps partition store write failures
	ErrStorageWrite = errors.New("storage write failed")

	// ErrInsufficientHistory means a series is shorter than an indicator window
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrNotFound is returned by stores for missing paths
	ErrNotFound = errors.New("not found")
)

// SymbolError is a failure scoped to one symbol inside one stage.
// It is logged and recorded in the StageReport, never propagated past the stage.
type SymbolError struct {
	Stage  Stage
	Symbol string
	Err    error
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Symbol, e.Err)
}

func (e *SymbolError) Unwrap() error {
	return e.Err
}

// StageFatalError aborts the run after a stage exhausted its retry budget
type StageFatalError struct {
	Stage    Stage
	Attempts int
	Err      error
}

func (e *StageFatalError) Error() string {
	return fmt.Sprintf("stage %s failed after %d attempt(s): %v", e.Stage, e.Attempts, e.Err)
}

func (e *StageFatalError) Unwrap() error {
	return e.Err
}

// ConfigurationError is raised before any stage runs
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// IsStageFatal reports whether err aborted a run at stage level
func IsStageFatal(err error) bool {
	var sf *StageFatalError
	return errors.As(err, &sf)
}

// IsConfiguration reports whether err is a configuration error
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
