package indicator

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidPeriod    = errors.New("invalid period")
)

// InsufficientDataError reports a window that is longer than the series it is applied to.
type InsufficientDataError struct {
	Indicator string
	Required  int
	Available int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need %d data points, have %d", e.Indicator, e.Required, e.Available)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

func validate(name string, values []float64, period int) error {
	if period <= 0 {
		return fmt.Errorf("%s: %w: %d", name, ErrInvalidPeriod, period)
	}
	if period > len(values) {
		return &InsufficientDataError{Indicator: name, Required: period, Available: len(values)}
	}
	return nil
}
