// Package sensor implements the synthetic impedance sensor array. All
// stochastic terms are driven by a single seeded generator, so identical
// seeds produce identical runs.
package sensor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"tirewatch/internal/config"
	"tirewatch/internal/schema"
)

// ErrUnknownSensor is returned when a damage event targets a sensor that
// is not part of the array.
var ErrUnknownSensor = errors.New("unknown sensor")

// punctureDecayAmp is the decaying part of the post-puncture baseline
// elevation; it fades over DecayTicks while BaselineFactor remains.
const punctureDecayAmp = 0.35

type state struct {
	spec        schema.SensorSpec
	driftAmp    float64
	driftPeriod int
	damage      []schema.DamageEvent
}

// Array is the four-zone sensor model. It is owned by the simulation
// loop and is not safe for concurrent use.
type Array struct {
	sensors     []*state
	byID        map[string]*state
	rng         *rand.Rand
	seed        int64
	tickSeconds float64
	temp        config.TemperatureConfig
}

// NewArray builds a sensor array from configuration. The sensor order in
// the configuration fixes the read order for the whole run.
func NewArray(sim config.SimulationConfig, sensors []config.SensorConfig) (*Array, error) {
	if len(sensors) == 0 {
		return nil, fmt.Errorf("%w: no sensors configured", config.ErrInvalid)
	}

	a := &Array{
		sensors:     make([]*state, 0, len(sensors)),
		byID:        make(map[string]*state, len(sensors)),
		rng:         rand.New(rand.NewSource(sim.Seed)),
		seed:        sim.Seed,
		tickSeconds: sim.TickSeconds,
		temp:        sim.Temperature,
	}

	v := schema.NewValidator()
	for _, sc := range sensors {
		spec := sc.Spec()
		if err := v.ValidateSpec(&spec); err != nil {
			return nil, fmt.Errorf("sensor %q: %w", sc.ID, err)
		}
		st := &state{
			spec:        spec,
			driftAmp:    sc.DriftAmp,
			driftPeriod: sc.DriftPeriod,
		}
		a.sensors = append(a.sensors, st)
		a.byID[spec.ID] = st
	}

	return a, nil
}

// Specs returns the sensor specifications in read order.
func (a *Array) Specs() []schema.SensorSpec {
	specs := make([]schema.SensorSpec, len(a.sensors))
	for i, st := range a.sensors {
		specs[i] = st.spec
	}
	return specs
}

// Spec returns the specification for one sensor.
func (a *Array) Spec(sensorID string) (schema.SensorSpec, bool) {
	st, ok := a.byID[sensorID]
	if !ok {
		return schema.SensorSpec{}, false
	}
	return st.spec, true
}

// Damage returns all injected damage events, in injection order.
func (a *Array) Damage() []schema.DamageEvent {
	var events []schema.DamageEvent
	for _, st := range a.sensors {
		events = append(events, st.damage...)
	}
	return events
}

// InjectDamage registers a damage event. An empty SensorID targets the
// first sensor in the zone the damage type naturally affects. The event
// takes effect at its onset tick and never before. Returns the
// normalized event with its assigned ID.
func (a *Array) InjectDamage(ev schema.DamageEvent) (schema.DamageEvent, error) {
	if ev.SensorID == "" {
		id, err := a.defaultTarget(ev.Type)
		if err != nil {
			return schema.DamageEvent{}, err
		}
		ev.SensorID = id
	}

	st, ok := a.byID[ev.SensorID]
	if !ok {
		return schema.DamageEvent{}, fmt.Errorf("%w: %q", ErrUnknownSensor, ev.SensorID)
	}

	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	st.damage = append(st.damage, ev)
	return ev, nil
}

// defaultTarget picks the sensor a damage type lands on when the caller
// does not name one.
func (a *Array) defaultTarget(dt schema.DamageType) (string, error) {
	want := func(loc schema.Location) bool {
		switch dt {
		case schema.DamageSidewall:
			return loc == schema.LocationSidewall
		default:
			return loc.IsTread()
		}
	}
	for _, st := range a.sensors {
		if want(st.spec.Location) {
			return st.spec.ID, nil
		}
	}
	// Fall back to the first sensor rather than refusing the injection.
	return a.sensors[0].spec.ID, nil
}

// Read produces one raw reading per sensor for the given tick, in
// configuration order.
func (a *Array) Read(tick int) []schema.RawReading {
	base := a.baseTemperature(tick)

	readings := make([]schema.RawReading, 0, len(a.sensors))
	for _, st := range a.sensors {
		temp := base + a.rng.NormFloat64()*a.temp.JitterC
		temp = clamp(temp, a.temp.MinC, a.temp.MaxC)
		readings = append(readings, a.readSensor(st, tick, temp))
	}
	return readings
}

// baseTemperature is the shared tire heating curve: exponential approach
// from ambient to ambient+heating with time constant tau.
func (a *Array) baseTemperature(tick int) float64 {
	elapsed := float64(tick) * a.tickSeconds
	return a.temp.AmbientC + a.temp.HeatingC*(1-math.Exp(-elapsed/a.temp.TauSeconds))
}

func (a *Array) readSensor(st *state, tick int, temp float64) schema.RawReading {
	baseline := st.spec.Baseline
	noiseAmp := st.spec.NoiseAmp
	spike := 1.0

	for i := range st.damage {
		ev := &st.damage[i]
		if tick < ev.OnsetTick {
			continue
		}
		p := ev.EffectiveProfile()
		age := tick - ev.OnsetTick

		switch ev.Type {
		case schema.DamagePuncture:
			if age == 0 {
				spike *= p.SpikeFactor
			} else {
				decay := punctureDecayAmp * math.Exp(-float64(age)/p.DecayTicks)
				baseline *= p.BaselineFactor + decay
			}
		case schema.DamageWear:
			baseline *= 1 + p.WearRate*float64(age)
		default:
			baseline *= p.BaselineFactor
			noiseAmp *= p.NoiseFactor
		}
	}

	impedance := baseline
	if st.driftPeriod > 0 {
		impedance += st.driftAmp * math.Sin(2*math.Pi*float64(tick)/float64(st.driftPeriod))
	}
	impedance += a.rng.NormFloat64() * noiseAmp * st.spec.Baseline
	impedance += temp * st.spec.TempCoeff
	impedance *= spike

	return schema.RawReading{
		SensorID:    st.spec.ID,
		Tick:        tick,
		Impedance:   impedance,
		Temperature: temp,
	}
}

// Reset clears all injected damage and reseeds the generator, restoring
// the array to its initial state.
func (a *Array) Reset() {
	a.rng = rand.New(rand.NewSource(a.seed))
	for _, st := range a.sensors {
		st.damage = nil
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
