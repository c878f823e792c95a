package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentledger/agentledger/internal/ledger/model"
	"go.uber.org/zap"
)

// maxBackoff caps the retry delay while the monitor is faulted.
const maxBackoff = 30 * time.Second

// subscribers is the callback set a poll loop delivers to. It is snapshotted
// at Start, so registrations made while the monitor runs take effect only on
// the next Start.
type subscribers struct {
	registered []func(model.AgentRegistered)
	sent       []func(model.MessageSent)
	responded  []func(model.MessageResponded)
	rated      []func(model.AgentRated)
	trust      []func(model.TrustScoreUpdated)
	any        []func(model.Record, model.Event)
	errs       []func(error)
}

func (s subscribers) deliver(rec model.Record, ev model.Event) {
	switch e := ev.(type) {
	case model.AgentRegistered:
		for _, fn := range s.registered {
			fn(e)
		}
	case model.MessageSent:
		for _, fn := range s.sent {
			fn(e)
		}
	case model.MessageResponded:
		for _, fn := range s.responded {
			fn(e)
		}
	case model.AgentRated:
		for _, fn := range s.rated {
			fn(e)
		}
	case model.TrustScoreUpdated:
		for _, fn := range s.trust {
			fn(e)
		}
	}
	for _, fn := range s.any {
		fn(rec, ev)
	}
}

func (s subscribers) deliverError(err error) {
	for _, fn := range s.errs {
		fn(err)
	}
}

// Monitor polls a Source and delivers decoded events to its subscribers in
// log order. One loop goroutine runs per started monitor; ticks that fire
// while a poll is in flight are dropped rather than queued, so polls never
// overlap.
type Monitor struct {
	src    Source
	logger *zap.Logger

	mu         sync.Mutex
	subs       subscribers
	store      *CursorStore
	storeName  string
	gen        uint64
	state      State
	cursor     uint64
	lastPollAt time.Time
	lastErr    error
	stopCh     chan struct{}
}

// NewMonitor creates an idle monitor over src.
func NewMonitor(src Source, logger *zap.Logger) *Monitor {
	return &Monitor{src: src, logger: logger, state: StateIdle}
}

// SetCursorStore makes the monitor persist its cursor under name after each
// fully delivered batch. Set it before Start.
func (m *Monitor) SetCursorStore(store *CursorStore, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
	m.storeName = name
}

// OnAgentRegistered subscribes to AgentRegistered events.
func (m *Monitor) OnAgentRegistered(fn func(model.AgentRegistered)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs.registered = append(m.subs.registered, fn)
}

// OnMessageSent subscribes to MessageSent events.
func (m *Monitor) OnMessageSent(fn func(model.MessageSent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs.sent = append(m.subs.sent, fn)
}

// OnMessageResponded subscribes to MessageResponded events.
func (m *Monitor) OnMessageResponded(fn func(model.MessageResponded)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs.responded = append(m.subs.responded, fn)
}

// OnAgentRated subscribes to AgentRated events.
func (m *Monitor) OnAgentRated(fn func(model.AgentRated)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs.rated = append(m.subs.rated, fn)
}

// OnTrustScoreUpdated subscribes to TrustScoreUpdated events.
func (m *Monitor) OnTrustScoreUpdated(fn func(model.TrustScoreUpdated)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs.trust = append(m.subs.trust, fn)
}

// OnAny subscribes to every decoded event along with its raw record. Sinks
// attach here.
func (m *Monitor) OnAny(fn func(model.Record, model.Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs.any = append(m.subs.any, fn)
}

// OnError subscribes to poll and decode failures. It is the only channel
// through which the monitor reports its own problems.
func (m *Monitor) OnError(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs.errs = append(m.subs.errs, fn)
}

// Start seeds the cursor and launches the poll loop. It returns
// ErrAlreadyRunning if the monitor is already started.
func (m *Monitor) Start(from Start, every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", every)
	}

	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.state = StatePolling
	m.gen++
	gen := m.gen
	subs := m.subs
	m.mu.Unlock()

	cursor := from.pos
	if from.latest {
		tip, err := m.src.CurrentTip(context.Background())
		if err != nil {
			m.mu.Lock()
			if m.gen == gen {
				m.state = StateIdle
			}
			m.mu.Unlock()
			return fmt.Errorf("seed cursor from tip: %w", err)
		}
		cursor = tip
	}

	stopCh := make(chan struct{})
	m.mu.Lock()
	if m.gen != gen || m.state != StatePolling {
		m.mu.Unlock()
		return nil // stopped while seeding
	}
	m.cursor = cursor
	m.lastErr = nil
	m.stopCh = stopCh
	m.mu.Unlock()

	m.logger.Info("monitor started",
		zap.Uint64("cursor", cursor),
		zap.Duration("interval", every),
	)
	go m.run(gen, stopCh, every, subs)
	return nil
}

// Stop flips the monitor back to idle. It returns immediately; an in-flight
// read finishes on its own and its records are discarded, not delivered.
// Stopping an idle monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateIdle {
		return
	}
	m.state = StateIdle
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
	m.logger.Info("monitor stopped", zap.Uint64("cursor", m.cursor))
}

// State reports the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Cursor reports the last fully processed log position.
func (m *Monitor) Cursor() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// LastPollAt reports when the loop last completed a poll attempt.
func (m *Monitor) LastPollAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPollAt
}

// LastError reports the most recent poll failure, or nil while healthy.
func (m *Monitor) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Monitor) run(gen uint64, stopCh chan struct{}, every time.Duration, subs subscribers) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	delay := every
	skipTicks := 0

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		// While faulted, back off by sitting out whole ticks so retries
		// stay aligned with the poll schedule.
		if skipTicks > 0 {
			skipTicks--
			continue
		}

		err := m.poll(gen, stopCh, subs)
		now := time.Now().UTC()

		m.mu.Lock()
		if m.gen == gen && m.state != StateIdle {
			m.lastPollAt = now
			if err != nil {
				m.state = StateFaulted
				m.lastErr = err
			} else {
				if m.state == StateFaulted {
					m.logger.Info("poll recovered", zap.Uint64("cursor", m.cursor))
				}
				m.state = StatePolling
				m.lastErr = nil
			}
		}
		m.mu.Unlock()

		if err != nil {
			pollErrors.Inc()
			m.logger.Warn("poll failed", zap.Error(err), zap.Duration("retry_in", delay))
			subs.deliverError(err)
			skipTicks = int(delay/every) - 1
			if delay *= 2; delay > maxBackoff {
				delay = maxBackoff
			}
		} else {
			delay = every
			skipTicks = 0
		}

		// Drop the tick that may have fired while the poll was in flight.
		select {
		case <-ticker.C:
			droppedTicks.Inc()
		default:
		}
	}
}

// poll reads everything past the cursor and delivers it in log order. The
// cursor advances only after the whole batch has been handed out.
func (m *Monitor) poll(gen uint64, stopCh chan struct{}, subs subscribers) error {
	ctx := context.Background()

	m.mu.Lock()
	cursor := m.cursor
	store, storeName := m.store, m.storeName
	m.mu.Unlock()

	tip, err := m.src.CurrentTip(ctx)
	if err != nil {
		return fmt.Errorf("read tip: %w", err)
	}
	if tip <= cursor {
		return nil
	}

	recs, err := m.src.ReadRange(ctx, cursor+1, tip)
	if err != nil {
		return fmt.Errorf("read range %d-%d: %w", cursor+1, tip, err)
	}

	// A stop that landed while the read was in flight discards the batch.
	select {
	case <-stopCh:
		return nil
	default:
	}

	for _, rec := range recs {
		ev, err := model.Decode(rec)
		if err != nil {
			parseFailures.Inc()
			m.logger.Warn("skipping undecodable record",
				zap.Uint64("position", rec.Position),
				zap.Error(err),
			)
			subs.deliverError(err)
			continue
		}
		subs.deliver(rec, ev)
		indexedEvents.WithLabelValues(string(rec.Kind)).Inc()
	}

	m.mu.Lock()
	if m.gen != gen || m.state == StateIdle {
		m.mu.Unlock()
		return nil
	}
	m.cursor = tip
	m.mu.Unlock()

	if store != nil {
		if err := store.Save(ctx, storeName, tip); err != nil {
			m.logger.Warn("persist cursor", zap.Uint64("cursor", tip), zap.Error(err))
		}
	}
	m.logger.Debug("batch indexed",
		zap.Uint64("from", cursor+1),
		zap.Uint64("to", tip),
		zap.Int("events", len(recs)),
	)
	return nil
}
