// Package preprocess turns raw sensor readings into normalized impedance
// ratios: moving-average smoothing, temperature compensation and a
// plausibility clamp.
package preprocess

import (
	"log/slog"

	"tirewatch/internal/config"
	"tirewatch/internal/schema"
	"tirewatch/internal/window"
)

type sensorState struct {
	spec schema.SensorSpec
	raw  *window.Ring
}

// Preprocessor normalizes one tick of raw readings at a time. Owned by
// the simulation loop; not safe for concurrent use.
type Preprocessor struct {
	cfg     config.PreprocessConfig
	sensors map[string]*sensorState
}

// New creates a preprocessor for the given sensor array.
func New(cfg config.PreprocessConfig, specs []schema.SensorSpec) *Preprocessor {
	p := &Preprocessor{
		cfg:     cfg,
		sensors: make(map[string]*sensorState, len(specs)),
	}
	for _, spec := range specs {
		p.sensors[spec.ID] = &sensorState{
			spec: spec,
			raw:  window.NewRing(cfg.SmoothingWindow),
		}
	}
	return p
}

// Process normalizes one tick of readings. A non-physical raw reading
// (impedance <= 0) produces no normalized value for that sensor; it is
// reported as a SENSOR_DEGRADED anomaly instead, and the remaining
// sensors are processed normally.
func (p *Preprocessor) Process(readings []schema.RawReading) ([]schema.NormalizedReading, []schema.AnomalyEvent) {
	normalized := make([]schema.NormalizedReading, 0, len(readings))
	var anomalies []schema.AnomalyEvent

	for _, r := range readings {
		st, ok := p.sensors[r.SensorID]
		if !ok {
			slog.Warn("reading from unknown sensor dropped", "sensor_id", r.SensorID, "tick", r.Tick)
			continue
		}

		if r.Impedance <= 0 {
			slog.Warn("non-physical impedance reading",
				"sensor_id", r.SensorID,
				"tick", r.Tick,
				"impedance", r.Impedance,
			)
			anomalies = append(anomalies, schema.AnomalyEvent{
				Category:   schema.CategorySensorDegraded,
				SensorID:   r.SensorID,
				Tick:       r.Tick,
				Value:      r.Impedance,
				Confidence: 1.0,
				Detail:     "non-physical impedance reading, sensor output discarded this tick",
			})
			continue
		}

		st.raw.Push(window.Sample{Tick: r.Tick, Value: r.Impedance})

		// Moving average over whatever samples exist; early ticks simply
		// smooth over fewer points.
		smoothed := st.raw.Stats().Mean
		compensated := smoothed - r.Temperature*st.spec.TempCoeff
		ratio := compensated / st.spec.Baseline

		nr := schema.NormalizedReading{
			SensorID:    r.SensorID,
			Tick:        r.Tick,
			Ratio:       ratio,
			Temperature: r.Temperature,
		}
		if ratio < p.cfg.ClampFloor {
			nr.Ratio = p.cfg.ClampFloor
			nr.Suspect = true
		}
		normalized = append(normalized, nr)
	}

	return normalized, anomalies
}

// Reset drops all smoothing history.
func (p *Preprocessor) Reset() {
	for _, st := range p.sensors {
		st.raw.Reset()
	}
}
