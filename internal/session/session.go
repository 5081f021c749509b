// Package session owns one simulation run: the sensor array, the
// processing pipeline, the tick counter and the latest snapshot.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tirewatch/internal/alerting"
	"tirewatch/internal/config"
	"tirewatch/internal/detect"
	"tirewatch/internal/preprocess"
	"tirewatch/internal/schema"
	"tirewatch/internal/sensor"
)

// ErrPastOnset is returned when a damage event names a tick that has
// already run.
var ErrPastOnset = errors.New("damage onset tick is in the past")

// Snapshot is the immutable per-tick view of the simulation. Tick is the
// 1-based number of completed ticks; a snapshot taken before the first
// tick has Tick 0 and empty collections.
type Snapshot struct {
	Tick      int                        `json:"tick"`
	Readings  []schema.NormalizedReading `json:"readings"`
	Raw       []schema.RawReading        `json:"raw"`
	Anomalies []schema.AnomalyEvent      `json:"anomalies"`
	Alerts    []alerting.Alert           `json:"alerts"`
	Counts    alerting.Counts            `json:"counts"`
	TakenAt   time.Time                  `json:"taken_at"`
}

// AlertHandler observes alerts as they are emitted. Handlers run inside
// the tick loop and must not block.
type AlertHandler func(alerts []alerting.Alert)

// Session is one independent simulation run. Tick, InjectDamage and
// Reset serialize against each other; Snapshot and the read accessors
// are safe to call concurrently from any goroutine.
type Session struct {
	mu        sync.Mutex
	cfg       *config.Config
	array     *sensor.Array
	pre       *preprocess.Preprocessor
	det       *detect.Detector
	alerts    *alerting.Manager
	validator *schema.Validator
	handlers  []AlertHandler
	completed int
	snap      atomic.Pointer[Snapshot]
}

// New builds a session from validated configuration.
func New(cfg *config.Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	array, err := sensor.NewArray(cfg.Simulation, cfg.Sensors)
	if err != nil {
		return nil, fmt.Errorf("building sensor array: %w", err)
	}

	specs := array.Specs()
	s := &Session{
		cfg:       cfg,
		array:     array,
		pre:       preprocess.New(cfg.Preprocess, specs),
		det:       detect.New(cfg.Detect, specs),
		alerts:    alerting.NewManager(cfg.Alerting, specs),
		validator: schema.NewValidator(),
	}
	s.snap.Store(&Snapshot{TakenAt: time.Now().UTC()})
	return s, nil
}

// AddAlertHandler registers an alert observer. Register before the tick
// loop starts.
func (s *Session) AddAlertHandler(h AlertHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Tick advances the simulation by one step: read sensors, normalize,
// detect, grade. Returns the snapshot it published.
func (s *Session) Tick() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	tick := s.completed + 1

	raw := s.array.Read(tick)
	normalized, degraded := s.pre.Process(raw)
	anomalies := append(degraded, s.det.Detect(normalized)...)
	emitted := s.alerts.Process(anomalies)

	s.completed = tick

	snap := &Snapshot{
		Tick:      tick,
		Readings:  normalized,
		Raw:       raw,
		Anomalies: anomalies,
		Alerts:    emitted,
		Counts:    s.alerts.Counts(),
		TakenAt:   time.Now().UTC(),
	}
	s.snap.Store(snap)

	if len(emitted) > 0 {
		for _, h := range s.handlers {
			h(emitted)
		}
	}

	return *snap
}

// Snapshot returns the latest published snapshot. Never nil: before the
// first tick it is the zero snapshot.
func (s *Session) Snapshot() Snapshot {
	return *s.snap.Load()
}

// InjectDamage validates and registers a damage event. A zero onset
// means "from the next tick"; an onset earlier than the next tick is
// rejected with ErrPastOnset.
func (s *Session) InjectDamage(ev schema.DamageEvent) (schema.DamageEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validator.ValidateDamage(&ev); err != nil {
		return schema.DamageEvent{}, err
	}

	next := s.completed + 1
	if ev.OnsetTick == 0 {
		ev.OnsetTick = next
	}
	if ev.OnsetTick < next {
		return schema.DamageEvent{}, fmt.Errorf("%w: onset %d, next tick %d", ErrPastOnset, ev.OnsetTick, next)
	}

	injected, err := s.array.InjectDamage(ev)
	if err != nil {
		return schema.DamageEvent{}, err
	}

	slog.Info("damage injected",
		"damage_id", injected.ID,
		"type", injected.Type,
		"sensor_id", injected.SensorID,
		"onset_tick", injected.OnsetTick,
	)
	return injected, nil
}

// Reset restores the session to its initial state: same seed, no
// damage, empty history. The published snapshot becomes the zero
// snapshot again.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.array.Reset()
	s.pre.Reset()
	s.det.Reset()
	s.alerts.Reset()
	s.completed = 0
	s.snap.Store(&Snapshot{TakenAt: time.Now().UTC()})

	slog.Info("simulation reset", "seed", s.cfg.Simulation.Seed)
}

// Specs returns the sensor specifications in read order.
func (s *Session) Specs() []schema.SensorSpec {
	return s.array.Specs()
}

// Damage returns all injected damage events.
func (s *Session) Damage() []schema.DamageEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.array.Damage()
}

// History returns the full alert history.
func (s *Session) History() []alerting.Alert {
	return s.alerts.History()
}

// Counts returns the aggregate alert counts.
func (s *Session) Counts() alerting.Counts {
	return s.alerts.Counts()
}

// WorstSeverity returns the most severe alert emitted so far.
func (s *Session) WorstSeverity() (alerting.Severity, bool) {
	return s.alerts.WorstSeverity()
}

// Tick count accessor for the API layer.
func (s *Session) Completed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}
