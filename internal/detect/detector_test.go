package detect

import (
	"testing"

	"tirewatch/internal/config"
	"tirewatch/internal/schema"
)

func testDetector() *Detector {
	cfg := config.DefaultConfig()
	specs := make([]schema.SensorSpec, 0, len(cfg.Sensors))
	for _, sc := range cfg.Sensors {
		specs = append(specs, sc.Spec())
	}
	return New(cfg.Detect, specs)
}

// reading builds a normalized reading at a benign temperature.
func reading(sensorID string, tick int, ratio float64) schema.NormalizedReading {
	return schema.NormalizedReading{SensorID: sensorID, Tick: tick, Ratio: ratio, Temperature: 25}
}

// steadyTick feeds all four sensors at nominal ratio except overrides.
func steadyTick(d *Detector, tick int, overrides map[string]float64) []schema.AnomalyEvent {
	readings := make([]schema.NormalizedReading, 0, 4)
	for _, id := range []string{"tread-left", "tread-right", "sidewall", "bead"} {
		ratio := 1.0
		if v, ok := overrides[id]; ok {
			ratio = v
		}
		readings = append(readings, reading(id, tick, ratio))
	}
	return d.Detect(readings)
}

func countCategory(events []schema.AnomalyEvent, cat schema.AnomalyCategory) int {
	n := 0
	for _, ev := range events {
		if ev.Category == cat {
			n++
		}
	}
	return n
}

func findCategory(events []schema.AnomalyEvent, cat schema.AnomalyCategory) (schema.AnomalyEvent, bool) {
	for _, ev := range events {
		if ev.Category == cat {
			return ev, true
		}
	}
	return schema.AnomalyEvent{}, false
}

func TestDetect_NormalOperationStaysQuiet(t *testing.T) {
	d := testDetector()

	// Small bounded wobble around nominal must never fire a rule.
	wobble := []float64{1.0, 1.005, 0.995, 1.01, 0.99, 1.0}
	for tick := 0; tick < 120; tick++ {
		events := steadyTick(d, tick, map[string]float64{
			"tread-left": wobble[tick%len(wobble)],
			"sidewall":   wobble[(tick+3)%len(wobble)],
		})
		if len(events) != 0 {
			t.Fatalf("tick %d: unexpected anomalies %+v", tick, events)
		}
	}
}

func TestDetect_ThresholdExceeded(t *testing.T) {
	d := testDetector()

	for tick := 0; tick < 10; tick++ {
		steadyTick(d, tick, nil)
	}

	t.Run("below watch threshold", func(t *testing.T) {
		events := steadyTick(d, 10, map[string]float64{"bead": 1.09})
		if n := countCategory(events, schema.CategoryThresholdExceeded); n != 0 {
			t.Errorf("anomalies below threshold: %d", n)
		}
	})

	t.Run("between watch and critical", func(t *testing.T) {
		events := steadyTick(d, 11, map[string]float64{"tread-left": 1.2})
		ev, ok := findCategory(events, schema.CategoryThresholdExceeded)
		if !ok {
			t.Fatal("no THRESHOLD_EXCEEDED fired at ratio 1.2")
		}
		if ev.SensorID != "tread-left" {
			t.Errorf("sensor = %s, want tread-left", ev.SensorID)
		}
		if ev.Confidence >= 0.6 {
			t.Errorf("confidence = %g, want below the critical band", ev.Confidence)
		}
	})

	t.Run("persistence raises confidence", func(t *testing.T) {
		first, _ := findCategory(steadyTick(d, 12, map[string]float64{"sidewall": 1.25}), schema.CategoryThresholdExceeded)
		second, _ := findCategory(steadyTick(d, 13, map[string]float64{"sidewall": 1.25}), schema.CategoryThresholdExceeded)
		if second.Confidence <= first.Confidence {
			t.Errorf("confidence did not grow with persistence: %g then %g", first.Confidence, second.Confidence)
		}
	})

	t.Run("location override", func(t *testing.T) {
		d2 := testDetector()
		// 1.25 is well inside the watch band for the sidewall (critical
		// 1.4) but close to critical for the bead (1.2).
		events := steadyTick(d2, 0, map[string]float64{"sidewall": 1.25, "bead": 1.19})
		var side, bead schema.AnomalyEvent
		for _, ev := range events {
			if ev.Category != schema.CategoryThresholdExceeded {
				continue
			}
			switch ev.SensorID {
			case "sidewall":
				side = ev
			case "bead":
				bead = ev
			}
		}
		if side.SensorID == "" || bead.SensorID == "" {
			t.Fatalf("expected both sensors to fire, got %+v", events)
		}
		if bead.Confidence <= side.Confidence {
			t.Errorf("bead confidence %g should exceed sidewall %g under per-location thresholds",
				bead.Confidence, side.Confidence)
		}
	})
}

func TestDetect_RapidChange(t *testing.T) {
	d := testDetector()

	ratios := []float64{1.0, 1.05, 1.10, 1.15, 1.20}
	var fired []int
	for tick, ratio := range ratios {
		events := steadyTick(d, tick, map[string]float64{"tread-left": ratio})
		if _, ok := findCategory(events, schema.CategoryRapidChange); ok {
			fired = append(fired, tick)
		}
	}

	// The rule needs a three-tick span of history, so tick 3 is the
	// first it can grade: |1.15-1.0|/3 = 0.05/tick, over the 0.03
	// delta, and tick 4 measures the same 0.05/tick.
	if len(fired) != 2 || fired[0] != 3 {
		t.Errorf("RAPID_CHANGE fired at ticks %v, want [3 4]", fired)
	}
}

func TestDetect_RapidChangeDeceleratingRise(t *testing.T) {
	d := testDetector()

	// Per-tick deltas shrink (0.06, 0.04, 0.02) so no single step
	// sustains the 0.03 delta, but the three-tick average at tick 3 is
	// |1.12-1.0|/3 = 0.04/tick. The rule grades the span, not the steps.
	ratios := []float64{1.0, 1.06, 1.10, 1.12}
	var fired []int
	for tick, ratio := range ratios {
		events := steadyTick(d, tick, map[string]float64{"tread-left": ratio})
		if _, ok := findCategory(events, schema.CategoryRapidChange); ok {
			fired = append(fired, tick)
		}
	}

	if len(fired) != 1 || fired[0] != 3 {
		t.Errorf("RAPID_CHANGE fired at ticks %v, want [3]", fired)
	}
}

func TestDetect_RapidChangeSlowClimbStaysQuiet(t *testing.T) {
	d := testDetector()

	// Every three-tick span here averages under 0.03/tick (the widest,
	// |1.081-1.0|/3, is 0.027), so the rule must stay silent even though
	// single steps reach 0.04.
	ratios := []float64{1.0, 1.04, 1.08, 1.081, 1.12, 1.16}
	for tick, ratio := range ratios {
		events := steadyTick(d, tick, map[string]float64{"sidewall": ratio})
		if _, ok := findCategory(events, schema.CategoryRapidChange); ok {
			t.Fatalf("tick %d: RAPID_CHANGE fired under the per-tick delta", tick)
		}
	}
}

func TestDetect_UnevenWear(t *testing.T) {
	d := testDetector()

	var firedAt = -1
	var ev schema.AnomalyEvent
	for tick := 0; tick < 12; tick++ {
		events := steadyTick(d, tick, map[string]float64{"tread-right": 1.2})
		if e, ok := findCategory(events, schema.CategoryUnevenWear); ok && firedAt < 0 {
			firedAt, ev = tick, e
		}
	}

	if firedAt < 0 {
		t.Fatal("UNEVEN_WEAR never fired on 20% tread divergence")
	}
	if firedAt < 2 {
		t.Errorf("fired at tick %d, want only after the gap persisted", firedAt)
	}
	if ev.SensorID != "tread-right" {
		t.Errorf("fired on %s, want the high-reading tread-right", ev.SensorID)
	}
}

func TestDetect_UnevenWearWithinTolerance(t *testing.T) {
	d := testDetector()

	for tick := 0; tick < 20; tick++ {
		events := steadyTick(d, tick, map[string]float64{"tread-right": 1.1})
		if _, ok := findCategory(events, schema.CategoryUnevenWear); ok {
			t.Fatalf("tick %d: UNEVEN_WEAR fired on 10%% divergence (tolerance 15%%)", tick)
		}
	}
}

func TestDetect_PunctureSpike(t *testing.T) {
	d := testDetector()

	for tick := 0; tick < 10; tick++ {
		events := steadyTick(d, tick, nil)
		if len(events) != 0 {
			t.Fatalf("tick %d: unexpected anomalies %+v", tick, events)
		}
	}

	// The spike tick itself must carry a confident puncture call.
	events := steadyTick(d, 10, map[string]float64{"tread-left": 2.5})
	ev, ok := findCategory(events, schema.CategoryPunctureSuspected)
	if !ok {
		t.Fatal("no PUNCTURE_SUSPECTED on 2.5x spike")
	}
	if ev.Tick != 10 {
		t.Errorf("fired at tick %d, want 10 (the spike tick)", ev.Tick)
	}
	if ev.Confidence < 0.8 {
		t.Errorf("confidence = %g, want >= 0.8", ev.Confidence)
	}
}

func TestDetect_SpikeNeedsHistory(t *testing.T) {
	d := testDetector()

	// A jump on the second tick has no distribution behind it.
	steadyTick(d, 0, nil)
	events := steadyTick(d, 1, map[string]float64{"tread-left": 2.5})
	if _, ok := findCategory(events, schema.CategoryPunctureSuspected); ok {
		t.Error("PUNCTURE_SUSPECTED fired without window history")
	}
}

func TestDetect_SpikeIgnoresSteadyClimb(t *testing.T) {
	d := testDetector()

	// Quiet history, then a steep steady climb out of it. The early
	// climb ticks jump past the z-score gate against the still-flat
	// window, but the window's own slope accounts for each step, so the
	// climb must read as rapid wear, never as a puncture.
	for tick := 0; tick < 25; tick++ {
		steadyTick(d, tick, nil)
	}
	for i := 0; i < 10; i++ {
		ratio := 1.0 + 0.06*float64(i+1)
		events := steadyTick(d, 25+i, map[string]float64{
			"tread-left":  ratio,
			"tread-right": ratio,
		})
		if _, ok := findCategory(events, schema.CategoryPunctureSuspected); ok {
			t.Fatalf("tick %d: PUNCTURE_SUSPECTED fired on a steady climb", 25+i)
		}
	}
}

func TestDetect_EmptyInput(t *testing.T) {
	d := testDetector()

	// Build a persisting tread divergence, then deliver an empty batch.
	// The stale divergence state must not produce an event with no
	// readings behind it.
	for tick := 0; tick < 12; tick++ {
		steadyTick(d, tick, map[string]float64{"tread-right": 1.2})
	}
	if events := d.Detect(nil); len(events) != 0 {
		t.Errorf("empty batch produced events: %+v", events)
	}
}

func TestDetect_AcceleratedWearBeforeThreshold(t *testing.T) {
	d := testDetector()

	// Gradual wear at 0.004/tick: the trend rule must fire well before
	// the ratio crosses the watch threshold (tick 25).
	wearAt, thresholdAt := -1, -1
	for tick := 0; tick < 60; tick++ {
		ratio := 1.0 + 0.004*float64(tick)
		events := steadyTick(d, tick, map[string]float64{
			"tread-left":  ratio,
			"tread-right": ratio, // wear both treads so divergence stays quiet
		})
		if _, ok := findCategory(events, schema.CategoryAcceleratedWear); ok && wearAt < 0 {
			wearAt = tick
		}
		if _, ok := findCategory(events, schema.CategoryThresholdExceeded); ok && thresholdAt < 0 {
			thresholdAt = tick
		}
	}

	if wearAt < 0 {
		t.Fatal("ACCELERATED_WEAR never fired on steady 0.004/tick wear")
	}
	if thresholdAt < 0 {
		t.Fatal("THRESHOLD_EXCEEDED never fired as wear crossed the threshold")
	}
	if wearAt >= thresholdAt {
		t.Errorf("ACCELERATED_WEAR at tick %d, THRESHOLD_EXCEEDED at %d; wear must come first", wearAt, thresholdAt)
	}
}

func TestDetect_AcceleratedWearNeedsMonotonicRise(t *testing.T) {
	d := testDetector()

	// A rising sawtooth: least-squares slope 0.01/tick, well over the
	// 0.002 grade, but every other tick steps back down. A series that
	// keeps dipping is noise, not wear.
	for tick := 0; tick < 40; tick++ {
		wobble := 0.02
		if tick%2 == 0 {
			wobble = -0.02
		}
		ratio := 1.0 + 0.01*float64(tick) + wobble
		events := steadyTick(d, tick, map[string]float64{
			"tread-left":  ratio,
			"tread-right": ratio,
		})
		if _, ok := findCategory(events, schema.CategoryAcceleratedWear); ok {
			t.Fatalf("tick %d: ACCELERATED_WEAR fired on a non-monotonic series", tick)
		}
	}
}

func TestDetect_TemperatureIssue(t *testing.T) {
	d := testDetector()

	tests := []struct {
		name     string
		temp     float64
		fires    bool
		wantConf float64
	}{
		{"nominal", 40, false, 0},
		{"hot", 70, true, 0.5},
		{"very hot", 80, true, 1.0},
		{"cold", 2, true, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := d.Detect([]schema.NormalizedReading{
				{SensorID: "bead", Tick: 0, Ratio: 1.0, Temperature: tt.temp},
			})
			ev, ok := findCategory(events, schema.CategoryTemperatureIssue)
			if ok != tt.fires {
				t.Fatalf("fired = %v, want %v", ok, tt.fires)
			}
			if ok && ev.Confidence != tt.wantConf {
				t.Errorf("confidence = %g, want %g", ev.Confidence, tt.wantConf)
			}
		})
	}
}

func TestDetect_SuspectReading(t *testing.T) {
	d := testDetector()

	events := d.Detect([]schema.NormalizedReading{
		{SensorID: "sidewall", Tick: 0, Ratio: 0.5, Temperature: 25, Suspect: true},
	})

	ev, ok := findCategory(events, schema.CategorySensorDegraded)
	if !ok {
		t.Fatal("suspect reading did not produce SENSOR_DEGRADED")
	}
	if ev.SensorID != "sidewall" {
		t.Errorf("sensor = %s, want sidewall", ev.SensorID)
	}
	// A suspect reading fires nothing else.
	if len(events) != 1 {
		t.Errorf("events = %+v, want only SENSOR_DEGRADED", events)
	}
}

func TestDetect_Reset(t *testing.T) {
	d := testDetector()

	for tick := 0; tick < 20; tick++ {
		steadyTick(d, tick, map[string]float64{"tread-right": 1.2})
	}
	d.Reset()

	// After reset a single elevated tick has no persistence behind it.
	events := steadyTick(d, 0, map[string]float64{"tread-right": 1.2})
	if _, ok := findCategory(events, schema.CategoryUnevenWear); ok {
		t.Error("UNEVEN_WEAR fired immediately after Reset")
	}
	if ev, ok := findCategory(events, schema.CategoryThresholdExceeded); ok {
		if ev.Confidence > 0.51 {
			t.Errorf("confidence %g carries pre-reset persistence", ev.Confidence)
		}
	}
}

func BenchmarkDetect(b *testing.B) {
	d := testDetector()
	readings := []schema.NormalizedReading{
		reading("tread-left", 0, 1.01),
		reading("tread-right", 0, 0.99),
		reading("sidewall", 0, 1.02),
		reading("bead", 0, 1.0),
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := range readings {
			readings[j].Tick = i
		}
		d.Detect(readings)
	}
}
