// Package monitor tracks connectivity to the remote store and schedules
// queue replays: automatically after a reconnect (debounced), periodically
// if configured, and on demand.
//
// State machine:
//
//	OFFLINE      -> ONLINE_IDLE   connectivity restored
//	ONLINE_IDLE  -> SYNCING       debounce elapsed, session present, no sync running
//	any but SYNCING -> SYNCING    ManualSync
//	SYNCING      -> SYNC_SUCCESS  engine returned without error
//	SYNCING      -> SYNC_ERROR    engine returned an error or panicked
//	SYNC_*       -> ONLINE_IDLE   after the display window (OFFLINE if the link dropped)
//	ONLINE_IDLE  -> OFFLINE       connectivity lost
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/logging"
)

type State string

const (
	StateOffline     State = "OFFLINE"
	StateOnlineIdle  State = "ONLINE_IDLE"
	StateSyncing     State = "SYNCING"
	StateSyncSuccess State = "SYNC_SUCCESS"
	StateSyncError   State = "SYNC_ERROR"
)

var (
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrNoSession      = errors.New("no user session")
	ErrSyncPanic      = errors.New("sync engine panicked")
)

// Engine is the part of the sync engine the scheduler drives.
type Engine interface {
	SyncAllTables(ctx context.Context, userID string) (models.SyncResult, error)
	PendingCount(ctx context.Context) (int, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Session returns the current user id, ok=false when nobody is signed in.
type Session func() (userID string, ok bool)

type Config struct {
	CheckInterval time.Duration
	PingTimeout   time.Duration
	Debounce      time.Duration
	SuccessWindow time.Duration
	ErrorWindow   time.Duration
	// PeriodicInterval enables background syncs while online. Zero disables.
	PeriodicInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		CheckInterval: 5 * time.Second,
		PingTimeout:   3 * time.Second,
		Debounce:      time.Second,
		SuccessWindow: 3 * time.Second,
		ErrorWindow:   5 * time.Second,
	}
}

// Status is the snapshot consumed by the UI and the status API.
type Status struct {
	IsOnline     bool               `json:"isOnline"`
	IsSyncing    bool               `json:"isSyncing"`
	LastSync     *time.Time         `json:"lastSync"`
	State        State              `json:"status"`
	PendingCount int                `json:"pendingCount"`
	LastResult   *models.SyncResult `json:"lastResult,omitempty"`
	LastError    string             `json:"lastError,omitempty"`
}

type Monitor struct {
	engine  Engine
	pinger  Pinger
	session Session
	cfg     Config
	logger  logging.Logger
	now     func() time.Time

	// running is held for the whole duration of a sync.
	running sync.Mutex

	mu         sync.Mutex
	base       context.Context
	online     bool
	state      State
	lastSync   time.Time
	lastResult *models.SyncResult
	lastErr    string
	debounce   *time.Timer
	revert     *time.Timer
	revertGen  int
	subs       map[int]chan State
	nextSub    int
}

type Option func(*Monitor)

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func New(engine Engine, pinger Pinger, session Session, cfg Config, logger logging.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		engine:  engine,
		pinger:  pinger,
		session: session,
		cfg:     cfg,
		logger:  logger.With("module", "monitor"),
		now:     time.Now,
		base:    context.Background(),
		state:   StateOffline,
		subs:    make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run polls the remote store until ctx is done, feeding SetOnline, and
// fires periodic syncs when configured. Automatic syncs started while Run
// is active use ctx.
func (m *Monitor) Run(ctx context.Context) {
	m.mu.Lock()
	m.base = ctx
	m.mu.Unlock()
	defer m.stopTimers()

	m.check(ctx)

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	var periodic <-chan time.Time
	if m.cfg.PeriodicInterval > 0 {
		t := time.NewTicker(m.cfg.PeriodicInterval)
		defer t.Stop()
		periodic = t.C
	}

	for {
		select {
		case <-ticker.C:
			m.check(ctx)
		case <-periodic:
			if m.IsOnline() {
				m.autoSync()
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, m.cfg.PingTimeout)
	err := m.pinger.Ping(pctx)
	cancel()
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		m.logger.Debug(ctx, "ping failed", "error", err)
	}
	m.SetOnline(err == nil)
}

// SetOnline feeds a connectivity signal into the state machine.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	was := m.online
	m.online = online

	switch {
	case !online:
		m.stopDebounce()
		if was {
			m.logger.Info(m.base, "switched to offline mode")
		}
		if m.state == StateOnlineIdle {
			m.setState(StateOffline)
		}
	case !was:
		m.logger.Info(m.base, "switched to online mode")
		if m.state == StateOffline {
			m.setState(StateOnlineIdle)
		}
		m.stopDebounce()
		m.debounce = time.AfterFunc(m.cfg.Debounce, m.autoSync)
	}
}

func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// autoSync starts a sync if a session exists, the link is up and nothing
// is running. Skips silently otherwise.
func (m *Monitor) autoSync() {
	m.mu.Lock()
	ctx, online := m.base, m.online
	m.mu.Unlock()

	if !online || ctx.Err() != nil {
		return
	}
	userID, ok := m.session()
	if !ok {
		m.logger.Debug(ctx, "no session, automatic sync skipped")
		return
	}
	if _, err := m.sync(ctx, userID); err != nil && !errors.Is(err, ErrSyncInProgress) {
		m.logger.Warn(ctx, "automatic sync failed", "error", err)
	}
}

// ManualSync replays all queues now. It is rejected with ErrSyncInProgress
// while another sync runs.
func (m *Monitor) ManualSync(ctx context.Context) (models.SyncResult, error) {
	userID, ok := m.session()
	if !ok {
		return models.SyncResult{}, ErrNoSession
	}
	return m.sync(ctx, userID)
}

func (m *Monitor) sync(ctx context.Context, userID string) (models.SyncResult, error) {
	if !m.running.TryLock() {
		return models.SyncResult{}, ErrSyncInProgress
	}
	defer m.running.Unlock()

	m.mu.Lock()
	m.stopDebounce()
	m.revertGen++
	m.setState(StateSyncing)
	m.mu.Unlock()

	res, err := m.callEngine(ctx, userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.lastErr = err.Error()
		m.setState(StateSyncError)
		m.scheduleRevert(m.cfg.ErrorWindow)
		return res, err
	}
	m.lastErr = ""
	m.lastSync = m.now()
	m.lastResult = &res
	m.setState(StateSyncSuccess)
	m.scheduleRevert(m.cfg.SuccessWindow)
	return res, nil
}

func (m *Monitor) callEngine(ctx context.Context, userID string) (res models.SyncResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(ctx, "sync engine panicked", "panic", r)
			err = fmt.Errorf("%w: %v", ErrSyncPanic, r)
		}
	}()
	return m.engine.SyncAllTables(ctx, userID)
}

// scheduleRevert returns to the idle (or offline) state after d unless
// another sync started in the meantime. Caller holds mu.
func (m *Monitor) scheduleRevert(d time.Duration) {
	if m.revert != nil {
		m.revert.Stop()
	}
	m.revertGen++
	gen := m.revertGen
	m.revert = time.AfterFunc(d, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.revertGen {
			return
		}
		if m.online {
			m.setState(StateOnlineIdle)
		} else {
			m.setState(StateOffline)
		}
	})
}

// Status reports the current snapshot. The pending count is read from
// the queues on every call.
func (m *Monitor) Status(ctx context.Context) (Status, error) {
	pending, err := m.engine.PendingCount(ctx)
	if err != nil {
		return Status{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		IsOnline:     m.online,
		IsSyncing:    m.state == StateSyncing,
		State:        m.state,
		PendingCount: pending,
		LastError:    m.lastErr,
	}
	if !m.lastSync.IsZero() {
		t := m.lastSync
		s.LastSync = &t
	}
	if m.lastResult != nil {
		r := *m.lastResult
		s.LastResult = &r
	}
	return s, nil
}

// Subscribe returns a channel receiving every state change and a function
// that cancels the subscription. Slow readers miss updates.
func (m *Monitor) Subscribe() (<-chan State, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan State, 16)
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

// setState changes state and notifies subscribers. Caller holds mu.
func (m *Monitor) setState(s State) {
	if m.state == s {
		return
	}
	m.logger.Debug(m.base, "state changed", "from", m.state, "to", s)
	m.state = s
	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Caller holds mu.
func (m *Monitor) stopDebounce() {
	if m.debounce != nil {
		m.debounce.Stop()
		m.debounce = nil
	}
}

func (m *Monitor) stopTimers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopDebounce()
	if m.revert != nil {
		m.revert.Stop()
	}
	m.revertGen++
}
