package dynbond

import (
	"errors"
	"fmt"

	"github.com/phil-mansfield/dynbond/bond"
)

// CapacityError is returned by a stage whose output buffer was too small. The
// Updater handles these internally by growing the buffer and rerunning the
// stage.
type CapacityError = bond.CapacityError

var (
	// ErrRetriesExhausted is returned when a stage still overflows after
	// MaxRetries reruns. The final CapacityError is wrapped alongside it.
	ErrRetriesExhausted = errors.New("stage retries exhausted")
	// ErrBusy is returned by Update if another call to Update is in flight.
	ErrBusy = errors.New("update already in progress")
)

// ConfigurationError reports parameters which can never produce a valid
// update. Retrying will not help.
type ConfigurationError struct {
	Reason string
	Err error
}

func configErrorf(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{ Reason: fmt.Sprintf(format, args...) }
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil { return "dynamic bonds: " + e.Reason }
	return fmt.Sprintf("dynamic bonds: %s: %s", e.Reason, e.Err.Error())
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
