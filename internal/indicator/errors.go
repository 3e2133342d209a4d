package indicator

import (
	"errors"
	"fmt"
)

// ErrInsufficientData means the series is too short to yield any aligned row.
var ErrInsufficientData = errors.New("insufficient data")

// InsufficientDataError carries the context of an ErrInsufficientData failure.
type InsufficientDataError struct {
	Code     string
	Bars     int
	Required int
	Reason   string
}

func (e *InsufficientDataError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s: %s (%d bars)", ErrInsufficientData, e.Code, e.Reason, e.Bars)
	}
	return fmt.Sprintf("%s: %s: %d bars, need %d", ErrInsufficientData, e.Code, e.Bars, e.Required)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }
