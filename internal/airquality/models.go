// Package airquality provides AQI computation, reading caching, synthetic
// viewport sampling and the aggregation service behind the map.
package airquality

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// Service errors.
var (
	ErrCancelled           = errors.New("request cancelled")
	ErrProviderUnavailable = errors.New("air quality provider unavailable")
	ErrNoReading           = errors.New("no reading available")
)

// NetworkError is a transport or upstream API failure. Callers may retry.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err == nil {
		return e.Op + ": provider unavailable"
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is makes every NetworkError match ErrProviderUnavailable.
func (e *NetworkError) Is(target error) bool {
	return target == ErrProviderUnavailable
}

// ClassifyError maps a fetch failure to ErrCancelled when the context was
// cancelled, and to a NetworkError otherwise.
func ClassifyError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCancelled) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, ErrCancelled)
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return err
	}
	return &NetworkError{Op: op, Err: err}
}

// PollutantReading holds component concentrations in µg/m³. A nil component
// was not reported, which is different from a zero concentration.
type PollutantReading struct {
	CO   *float64 `json:"co,omitempty"`
	NO   *float64 `json:"no,omitempty"`
	NO2  *float64 `json:"no2,omitempty"`
	O3   *float64 `json:"o3,omitempty"`
	SO2  *float64 `json:"so2,omitempty"`
	PM25 *float64 `json:"pm2_5,omitempty"`
	PM10 *float64 `json:"pm10,omitempty"`
	NH3  *float64 `json:"nh3,omitempty"`

	// CategoryIndex is the provider's 1-5 index. Zero means absent.
	CategoryIndex int `json:"categoryIndex,omitempty"`

	CapturedAt time.Time `json:"capturedAt"`
}

// Float returns a pointer to v, for building readings.
func Float(v float64) *float64 {
	return &v
}

// Location is a named place whose air quality can be fetched.
type Location struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Coordinate geo.Coordinate `json:"coordinate"`
}

// MonitoringPoint is a point shown on the map. Only Reading is replaced on
// refresh; everything else is fixed at creation.
type MonitoringPoint struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Coordinate  geo.Coordinate    `json:"coordinate"`
	Reading     *PollutantReading `json:"reading"`
	IsSynthetic bool              `json:"isSynthetic"`
	CapturedAt  time.Time         `json:"capturedAt"`

	// Degraded marks a point whose fetch failed; Reading is nil.
	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`
}

// AQI derives the point's AQI from its reading.
func (p *MonitoringPoint) AQI() AQIValue {
	return ComputeAQI(p.Reading)
}
