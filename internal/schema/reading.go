// Package schema defines the canonical data model for the tirewatch pipeline.
// All pipeline stages exchange these structures; none of them is mutated after
// it has been handed downstream.
package schema

import (
	"github.com/google/uuid"
)

// Location identifies where a sensor sits inside the tire.
type Location string

const (
	LocationTreadLeft  Location = "tread-left"
	LocationTreadRight Location = "tread-right"
	LocationSidewall   Location = "sidewall"
	LocationBead       Location = "bead"
)

// IsValid checks if the location is a known value.
func (l Location) IsValid() bool {
	switch l {
	case LocationTreadLeft, LocationTreadRight, LocationSidewall, LocationBead:
		return true
	}
	return false
}

// IsTread reports whether the location is part of the tread group. Tread
// sensors are expected to track each other closely under normal operation.
func (l Location) IsTread() bool {
	return l == LocationTreadLeft || l == LocationTreadRight
}

// Describe returns a human-readable description of the location for alert
// messages.
func (l Location) Describe() string {
	switch l {
	case LocationTreadLeft:
		return "left side of tire tread"
	case LocationTreadRight:
		return "right side of tire tread"
	case LocationSidewall:
		return "tire sidewall"
	case LocationBead:
		return "tire bead area"
	}
	return "unknown tire location"
}

// SensorSpec describes one impedance sensor. Immutable after creation; damage
// shifts a sensor's effective parameters inside the sensor model, never the
// spec itself.
type SensorSpec struct {
	ID        string   `json:"id" yaml:"id" validate:"required,sensor_id,max=64"`
	Location  Location `json:"location" yaml:"location" validate:"required,oneof=tread-left tread-right sidewall bead"`
	Baseline  float64  `json:"baseline" yaml:"baseline" validate:"required,gt=0"`
	NoiseAmp  float64  `json:"noise_amp" yaml:"noise_amp" validate:"gte=0,lt=1"`
	TempCoeff float64  `json:"temp_coeff" yaml:"temp_coeff" validate:"gte=0"`
}

// RawReading is one sensor measurement at one tick, as produced by the sensor
// model. Consumed once by the preprocessor and kept only inside its smoothing
// window.
type RawReading struct {
	SensorID    string  `json:"sensor_id"`
	Tick        int     `json:"tick"`
	Impedance   float64 `json:"impedance"`
	Temperature float64 `json:"temperature"`
}

// NormalizedReading is the preprocessor output: a unitless impedance ratio
// where 1.0 is nominal. Suspect marks readings that hit the plausibility clamp
// and should be treated as a data-quality concern rather than a physical
// value.
type NormalizedReading struct {
	SensorID    string  `json:"sensor_id"`
	Tick        int     `json:"tick"`
	Ratio       float64 `json:"ratio"`
	Temperature float64 `json:"temperature"`
	Suspect     bool    `json:"suspect,omitempty"`
}

// DamageType enumerates the damage scenarios the sensor model understands.
type DamageType string

const (
	DamageSidewall DamageType = "sidewall"
	DamageTread    DamageType = "tread"
	DamagePuncture DamageType = "puncture"
	DamageWear     DamageType = "wear"
)

// IsValid checks if the damage type is a known value.
func (d DamageType) IsValid() bool {
	switch d {
	case DamageSidewall, DamageTread, DamagePuncture, DamageWear:
		return true
	}
	return false
}

// DamageProfile is the permanent parameter shift a damage event applies to a
// sensor from its onset tick onward.
type DamageProfile struct {
	// BaselineFactor multiplies the sensor's effective baseline.
	BaselineFactor float64 `json:"baseline_factor" yaml:"baseline_factor"`
	// NoiseFactor multiplies the sensor's noise amplitude.
	NoiseFactor float64 `json:"noise_factor" yaml:"noise_factor"`
	// SpikeFactor multiplies the single reading at the onset tick. Zero
	// means no spike.
	SpikeFactor float64 `json:"spike_factor,omitempty" yaml:"spike_factor,omitempty"`
	// DecayTicks is the e-folding time of the post-spike baseline decay.
	// Zero means the baseline shift is a flat step.
	DecayTicks float64 `json:"decay_ticks,omitempty" yaml:"decay_ticks,omitempty"`
	// WearRate adds WearRate*(tick-onset) to the baseline factor each tick.
	WearRate float64 `json:"wear_rate,omitempty" yaml:"wear_rate,omitempty"`
}

// DefaultProfile returns the built-in severity profile for a damage type.
func (d DamageType) DefaultProfile() DamageProfile {
	switch d {
	case DamageSidewall:
		return DamageProfile{BaselineFactor: 1.5, NoiseFactor: 2.0}
	case DamageTread:
		return DamageProfile{BaselineFactor: 1.2, NoiseFactor: 1.5}
	case DamagePuncture:
		// One large spike, then an elevated baseline decaying toward a
		// permanent 1.15x step.
		return DamageProfile{BaselineFactor: 1.15, NoiseFactor: 1.0, SpikeFactor: 2.5, DecayTicks: 8}
	case DamageWear:
		return DamageProfile{BaselineFactor: 1.0, NoiseFactor: 1.0, WearRate: 0.004}
	}
	return DamageProfile{BaselineFactor: 1.0, NoiseFactor: 1.0}
}

// DamageEvent is an injected damage scenario. Once active it permanently
// alters the target sensor's effective parameters; there is no self-expiry.
type DamageEvent struct {
	ID        uuid.UUID      `json:"id"`
	Type      DamageType     `json:"type" validate:"required,oneof=sidewall tread puncture wear"`
	SensorID  string         `json:"sensor_id,omitempty" validate:"omitempty,sensor_id"`
	OnsetTick int            `json:"onset_tick" validate:"gte=0"`
	Profile   *DamageProfile `json:"profile,omitempty"`
}

// EffectiveProfile returns the event's profile, falling back to the damage
// type's default.
func (e *DamageEvent) EffectiveProfile() DamageProfile {
	if e.Profile != nil {
		return *e.Profile
	}
	return e.Type.DefaultProfile()
}

// AnomalyCategory tags a detected anomaly with its classification.
type AnomalyCategory string

const (
	CategoryThresholdExceeded AnomalyCategory = "THRESHOLD_EXCEEDED"
	CategoryRapidChange       AnomalyCategory = "RAPID_CHANGE"
	CategoryUnevenWear        AnomalyCategory = "UNEVEN_WEAR"
	CategoryAcceleratedWear   AnomalyCategory = "ACCELERATED_WEAR"
	CategoryPunctureSuspected AnomalyCategory = "PUNCTURE_SUSPECTED"
	CategoryTemperatureIssue  AnomalyCategory = "TEMPERATURE_ISSUE"
	CategorySensorDegraded    AnomalyCategory = "SENSOR_DEGRADED"
)

// Categories lists every anomaly category in a fixed order.
func Categories() []AnomalyCategory {
	return []AnomalyCategory{
		CategoryThresholdExceeded,
		CategoryRapidChange,
		CategoryUnevenWear,
		CategoryAcceleratedWear,
		CategoryPunctureSuspected,
		CategoryTemperatureIssue,
		CategorySensorDegraded,
	}
}

// AnomalyEvent is one detector finding for one tick. Ephemeral: the alert
// manager consumes it immediately and the detector keeps no copy.
type AnomalyEvent struct {
	Category   AnomalyCategory `json:"category"`
	SensorID   string          `json:"sensor_id"`
	Tick       int             `json:"tick"`
	Value      float64         `json:"value"`
	Confidence float64         `json:"confidence"`
	Detail     string          `json:"detail,omitempty"`
}
