package preprocess

import (
	"math"
	"testing"

	"tirewatch/internal/config"
	"tirewatch/internal/schema"
)

func testSpecs() []schema.SensorSpec {
	return []schema.SensorSpec{
		{ID: "tread-left", Location: schema.LocationTreadLeft, Baseline: 100, NoiseAmp: 0.03, TempCoeff: 0.1},
		{ID: "sidewall", Location: schema.LocationSidewall, Baseline: 120, NoiseAmp: 0.05, TempCoeff: 0.1},
	}
}

func testPreprocessor() *Preprocessor {
	return New(config.PreprocessConfig{SmoothingWindow: 5, ClampFloor: 0.5}, testSpecs())
}

func TestProcess_NominalRatio(t *testing.T) {
	p := testPreprocessor()

	// Noise-free readings at exactly baseline + temperature term must
	// normalize to 1.0.
	for tick := 0; tick < 10; tick++ {
		normalized, anomalies := p.Process([]schema.RawReading{
			{SensorID: "tread-left", Tick: tick, Impedance: 100 + 25*0.1, Temperature: 25},
			{SensorID: "sidewall", Tick: tick, Impedance: 120 + 25*0.1, Temperature: 25},
		})
		if len(anomalies) != 0 {
			t.Fatalf("tick %d: unexpected anomalies %v", tick, anomalies)
		}
		if len(normalized) != 2 {
			t.Fatalf("tick %d: normalized = %d readings, want 2", tick, len(normalized))
		}
		for _, nr := range normalized {
			if math.Abs(nr.Ratio-1.0) > 1e-9 {
				t.Errorf("tick %d %s: ratio = %g, want 1.0", tick, nr.SensorID, nr.Ratio)
			}
			if nr.Suspect {
				t.Errorf("tick %d %s: suspect on nominal reading", tick, nr.SensorID)
			}
		}
	}
}

func TestProcess_Smoothing(t *testing.T) {
	p := testPreprocessor()

	// Constant 100 for 4 ticks, then a jump to 150: the smoothed value
	// moves only one window-fifth of the way.
	for tick := 0; tick < 4; tick++ {
		p.Process([]schema.RawReading{{SensorID: "tread-left", Tick: tick, Impedance: 100}})
	}
	normalized, _ := p.Process([]schema.RawReading{{SensorID: "tread-left", Tick: 4, Impedance: 150}})

	want := (100*4 + 150.0) / 5 / 100 // smoothed mean over the full window, ratio of baseline
	if math.Abs(normalized[0].Ratio-want) > 1e-9 {
		t.Errorf("ratio = %g, want %g", normalized[0].Ratio, want)
	}
}

func TestProcess_EarlyTicksUsePartialWindow(t *testing.T) {
	p := testPreprocessor()

	normalized, _ := p.Process([]schema.RawReading{{SensorID: "tread-left", Tick: 0, Impedance: 110}})
	if math.Abs(normalized[0].Ratio-1.1) > 1e-9 {
		t.Errorf("first-tick ratio = %g, want 1.1 (no smoothing history)", normalized[0].Ratio)
	}
}

func TestProcess_ClampMarksSuspect(t *testing.T) {
	p := testPreprocessor()

	normalized, anomalies := p.Process([]schema.RawReading{
		{SensorID: "tread-left", Tick: 0, Impedance: 20},
	})

	if len(normalized) != 1 {
		t.Fatalf("normalized = %d readings, want 1", len(normalized))
	}
	if normalized[0].Ratio != 0.5 {
		t.Errorf("ratio = %g, want clamped 0.5", normalized[0].Ratio)
	}
	if !normalized[0].Suspect {
		t.Error("clamped reading not marked suspect")
	}
	// The clamp itself is not an anomaly; the detector grades suspects.
	if len(anomalies) != 0 {
		t.Errorf("anomalies = %v, want none", anomalies)
	}
}

func TestProcess_NonPhysicalReading(t *testing.T) {
	p := testPreprocessor()

	normalized, anomalies := p.Process([]schema.RawReading{
		{SensorID: "tread-left", Tick: 3, Impedance: -5},
		{SensorID: "sidewall", Tick: 3, Impedance: 122.5, Temperature: 25},
	})

	// The bad sensor yields no ratio; the healthy one is unaffected.
	if len(normalized) != 1 || normalized[0].SensorID != "sidewall" {
		t.Fatalf("normalized = %+v, want only sidewall", normalized)
	}

	if len(anomalies) != 1 {
		t.Fatalf("anomalies = %d, want 1", len(anomalies))
	}
	a := anomalies[0]
	if a.Category != schema.CategorySensorDegraded {
		t.Errorf("category = %s, want SENSOR_DEGRADED", a.Category)
	}
	if a.Confidence != 1.0 {
		t.Errorf("confidence = %g, want 1.0", a.Confidence)
	}
	if a.SensorID != "tread-left" || a.Tick != 3 {
		t.Errorf("anomaly = %+v, want tread-left tick 3", a)
	}
}

func TestProcess_NonPhysicalSkipsSmoothingWindow(t *testing.T) {
	p := testPreprocessor()

	p.Process([]schema.RawReading{{SensorID: "tread-left", Tick: 0, Impedance: 100}})
	p.Process([]schema.RawReading{{SensorID: "tread-left", Tick: 1, Impedance: 0}})
	normalized, _ := p.Process([]schema.RawReading{{SensorID: "tread-left", Tick: 2, Impedance: 100}})

	// The zero reading must not drag the moving average down.
	if math.Abs(normalized[0].Ratio-1.0) > 1e-9 {
		t.Errorf("ratio = %g, want 1.0 (corrupt sample excluded)", normalized[0].Ratio)
	}
}

func TestProcess_UnknownSensorDropped(t *testing.T) {
	p := testPreprocessor()

	normalized, anomalies := p.Process([]schema.RawReading{
		{SensorID: "ghost", Tick: 0, Impedance: 100},
	})
	if len(normalized) != 0 || len(anomalies) != 0 {
		t.Errorf("unknown sensor produced output: %v %v", normalized, anomalies)
	}
}

func TestReset(t *testing.T) {
	p := testPreprocessor()

	for tick := 0; tick < 5; tick++ {
		p.Process([]schema.RawReading{{SensorID: "tread-left", Tick: tick, Impedance: 150}})
	}
	p.Reset()

	normalized, _ := p.Process([]schema.RawReading{{SensorID: "tread-left", Tick: 0, Impedance: 100}})
	if math.Abs(normalized[0].Ratio-1.0) > 1e-9 {
		t.Errorf("ratio after Reset = %g, want 1.0", normalized[0].Ratio)
	}
}
