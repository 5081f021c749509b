// Package detect implements the anomaly detector: six stateful rules
// evaluated over per-sensor rolling windows of normalized readings.
package detect

import (
	"fmt"
	"math"

	"tirewatch/internal/config"
	"tirewatch/internal/schema"
	"tirewatch/internal/window"
)

// persistenceBonus is added to a rule's base confidence for every
// consecutive tick (after the first) the rule keeps firing.
const persistenceBonus = 0.1

// spikeMinStdDev floors the z-score denominator so a dead-flat window
// cannot produce infinite scores.
const spikeMinStdDev = 0.005

// spikeMinJump is the absolute ratio jump a spike must show on top of
// its z-score; filters statistical flukes in very quiet windows.
const spikeMinJump = 0.1

// suspectConfidence grades a reading that hit the plausibility clamp.
const suspectConfidence = 0.6

// trendStepTolerance is how far a single sample may dip below its
// predecessor before the window stops counting as monotonically rising.
const trendStepTolerance = 1e-6

type sensorHistory struct {
	spec        schema.SensorSpec
	win         *window.Ring
	consecutive map[schema.AnomalyCategory]int
}

// Detector holds per-sensor history windows and rule state. Owned by the
// simulation loop; not safe for concurrent use.
type Detector struct {
	cfg         config.DetectConfig
	sensors     map[string]*sensorHistory
	order       []string // sensor evaluation order, fixed at construction
	treadIDs    []string
	divergeRun  int
	trendWindow int
}

// New creates a detector for the given sensor array.
func New(cfg config.DetectConfig, specs []schema.SensorSpec) *Detector {
	d := &Detector{
		cfg:         cfg,
		sensors:     make(map[string]*sensorHistory, len(specs)),
		trendWindow: cfg.WindowSize / 2,
	}
	if d.trendWindow < 2 {
		d.trendWindow = 2
	}
	for _, spec := range specs {
		d.sensors[spec.ID] = &sensorHistory{
			spec:        spec,
			win:         window.NewRing(cfg.WindowSize),
			consecutive: make(map[schema.AnomalyCategory]int),
		}
		d.order = append(d.order, spec.ID)
		if spec.Location.IsTread() {
			d.treadIDs = append(d.treadIDs, spec.ID)
		}
	}
	return d
}

// Detect evaluates all rules against one tick of normalized readings and
// returns the anomalies found, in sensor order. Suspect readings are
// graded as SENSOR_DEGRADED and excluded from history so a clamped value
// cannot poison the statistics.
func (d *Detector) Detect(readings []schema.NormalizedReading) []schema.AnomalyEvent {
	if len(readings) == 0 {
		return nil
	}
	var found []schema.AnomalyEvent

	tick := readings[len(readings)-1].Tick
	for _, nr := range readings {
		st, ok := d.sensors[nr.SensorID]
		if !ok {
			continue
		}

		if nr.Suspect {
			found = append(found, d.fire(st, schema.CategorySensorDegraded, nr,
				nr.Ratio, suspectConfidence, "impedance ratio clamped at plausibility floor"))
			d.resetExcept(st, schema.CategorySensorDegraded)
			continue
		}
		st.consecutive[schema.CategorySensorDegraded] = 0

		found = append(found, d.evalSensor(st, nr)...)
	}

	if ev, ok := d.evalDivergence(tick); ok {
		found = append(found, ev)
	}

	return found
}

// evalSensor runs the per-sensor rules for one reading. The reading is
// appended to the history window after the spike rule has captured the
// pre-jump statistics and slope.
func (d *Detector) evalSensor(st *sensorHistory, nr schema.NormalizedReading) []schema.AnomalyEvent {
	var found []schema.AnomalyEvent

	prev, hasPrev := st.win.Last()
	prevStats := st.win.Stats()
	prevSlope, hasSlope := st.win.Slope(d.trendWindow)

	st.win.Push(window.Sample{Tick: nr.Tick, Value: nr.Ratio})

	// Threshold rule: graded between the watch and critical thresholds.
	mid := d.cfg.MidThreshold
	high := d.cfg.HighThresholdFor(st.spec.Location)
	if nr.Ratio > mid {
		base := clamp01((nr.Ratio - mid) / (high - mid))
		found = append(found, d.fire(st, schema.CategoryThresholdExceeded, nr, nr.Ratio, base,
			fmt.Sprintf("ratio %.3f above threshold %.2f (critical at %.2f)", nr.Ratio, mid, high)))
	} else {
		st.consecutive[schema.CategoryThresholdExceeded] = 0
	}

	// Rate-of-change rule: mean per-tick movement measured across the
	// last rate_window samples. Dividing by the tick span keeps the rate
	// honest when suspect readings have left gaps in the window.
	if k := d.cfg.RateWindow; st.win.Len() > k {
		old := st.win.At(st.win.Len() - 1 - k)
		if span := nr.Tick - old.Tick; span > 0 {
			rate := math.Abs(nr.Ratio-old.Value) / float64(span)
			if rate > d.cfg.RateDelta {
				base := clamp01((rate - d.cfg.RateDelta) / d.cfg.RateDelta)
				found = append(found, d.fire(st, schema.CategoryRapidChange, nr, rate, base,
					fmt.Sprintf("ratio moving %.4f/tick over last %d ticks", rate, span)))
			} else {
				st.consecutive[schema.CategoryRapidChange] = 0
			}
		}
	}

	// Spike rule: jump far outside the window's recent distribution. A
	// steady climb does not count; the jump must also exceed what the
	// window's own slope would have produced by the current tick.
	if prevStats.Samples >= 5 && hasPrev {
		std := math.Max(prevStats.StdDev, spikeMinStdDev)
		jump := nr.Ratio - prevStats.Mean
		z := jump / std
		residual := jump
		if hasSlope {
			residual = nr.Ratio - (prev.Value + prevSlope*float64(nr.Tick-prev.Tick))
		}
		if z >= d.cfg.SpikeZScore && jump >= spikeMinJump && residual >= spikeMinJump {
			base := clamp01(z / (2 * d.cfg.SpikeZScore))
			found = append(found, d.fire(st, schema.CategoryPunctureSuspected, nr, z, base,
				fmt.Sprintf("ratio %.3f is %.1f standard deviations above recent mean %.3f", nr.Ratio, z, prevStats.Mean)))
		} else {
			st.consecutive[schema.CategoryPunctureSuspected] = 0
		}
	}

	// Trend rule: monotonic climb steeper than normal wear. The
	// monotonic check keeps window noise from reading as a trend; only
	// a run that never steps back down grades on slope.
	if st.win.Len() >= d.trendWindow {
		slope, ok := st.win.Slope(d.trendWindow)
		if ok && slope > d.cfg.TrendSlope && tailRising(st.win, d.trendWindow) {
			base := clamp01((slope - d.cfg.TrendSlope) / d.cfg.TrendSlope)
			found = append(found, d.fire(st, schema.CategoryAcceleratedWear, nr, slope, base,
				fmt.Sprintf("ratio rising %.4f/tick over last %d ticks", slope, d.trendWindow)))
		} else {
			st.consecutive[schema.CategoryAcceleratedWear] = 0
		}
	}

	// Temperature bounds rule. Confidence scales with the excursion, no
	// persistence bonus.
	if excess := temperatureExcess(nr.Temperature, d.cfg.TempLowC, d.cfg.TempHighC); excess > 0 {
		st.consecutive[schema.CategoryTemperatureIssue]++
		found = append(found, schema.AnomalyEvent{
			Category:   schema.CategoryTemperatureIssue,
			SensorID:   nr.SensorID,
			Tick:       nr.Tick,
			Value:      nr.Temperature,
			Confidence: clamp01(excess / 10),
			Detail:     fmt.Sprintf("temperature %.1fC outside operating range [%.0f, %.0f]", nr.Temperature, d.cfg.TempLowC, d.cfg.TempHighC),
		})
	} else {
		st.consecutive[schema.CategoryTemperatureIssue] = 0
	}

	return found
}

// evalDivergence compares the rolling means of the tread sensors. Fires
// on the sensor reading high once the relative gap has persisted.
func (d *Detector) evalDivergence(tick int) (schema.AnomalyEvent, bool) {
	if len(d.treadIDs) < 2 {
		return schema.AnomalyEvent{}, false
	}

	type treadMean struct {
		id   string
		mean float64
	}
	var lo, hi treadMean
	for i, id := range d.treadIDs {
		st := d.sensors[id]
		stats := st.win.TailStats(5)
		if stats.Samples < 3 {
			d.divergeRun = 0
			return schema.AnomalyEvent{}, false
		}
		tm := treadMean{id: id, mean: stats.Mean}
		if i == 0 {
			lo, hi = tm, tm
			continue
		}
		if tm.mean < lo.mean {
			lo = tm
		}
		if tm.mean > hi.mean {
			hi = tm
		}
	}

	center := (lo.mean + hi.mean) / 2
	if center <= 0 {
		d.divergeRun = 0
		return schema.AnomalyEvent{}, false
	}
	diff := (hi.mean - lo.mean) / center
	if diff <= d.cfg.DivergenceTolerance {
		d.divergeRun = 0
		return schema.AnomalyEvent{}, false
	}

	d.divergeRun++
	if d.divergeRun < d.cfg.DivergenceTicks {
		return schema.AnomalyEvent{}, false
	}

	// Confidence on the original 0.3 relative-difference scale, plus
	// persistence past the minimum run.
	base := clamp01(diff / 0.3)
	conf := clamp01(base + persistenceBonus*float64(d.divergeRun-d.cfg.DivergenceTicks))
	return schema.AnomalyEvent{
		Category:   schema.CategoryUnevenWear,
		SensorID:   hi.id,
		Tick:       tick,
		Value:      diff,
		Confidence: conf,
		Detail:     fmt.Sprintf("tread means diverged %.1f%% (%s %.3f vs %s %.3f)", diff*100, hi.id, hi.mean, lo.id, lo.mean),
	}, true
}

// fire builds an anomaly with the persistence bonus applied.
func (d *Detector) fire(st *sensorHistory, cat schema.AnomalyCategory, nr schema.NormalizedReading, value, base float64, detail string) schema.AnomalyEvent {
	st.consecutive[cat]++
	conf := clamp01(base + persistenceBonus*float64(st.consecutive[cat]-1))
	return schema.AnomalyEvent{
		Category:   cat,
		SensorID:   nr.SensorID,
		Tick:       nr.Tick,
		Value:      value,
		Confidence: conf,
		Detail:     detail,
	}
}

func (d *Detector) resetExcept(st *sensorHistory, keep schema.AnomalyCategory) {
	for cat := range st.consecutive {
		if cat != keep {
			st.consecutive[cat] = 0
		}
	}
}

// Reset drops all history windows and rule state.
func (d *Detector) Reset() {
	for _, st := range d.sensors {
		st.win.Reset()
		st.consecutive = make(map[schema.AnomalyCategory]int)
	}
	d.divergeRun = 0
}

// tailRising reports whether the n most recent samples never step down
// by more than trendStepTolerance.
func tailRising(r *window.Ring, n int) bool {
	tail := r.Tail(n)
	for i := 1; i < len(tail); i++ {
		if tail[i].Value < tail[i-1].Value-trendStepTolerance {
			return false
		}
	}
	return true
}

func temperatureExcess(temp, low, high float64) float64 {
	switch {
	case temp > high:
		return temp - high
	case temp < low:
		return low - temp
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
