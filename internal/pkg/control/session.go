package control

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/home"
	"github.com/jake-scott/dirigera-bridge/internal/pkg/logging"
)

const DefaultPollInterval = 10 * time.Second

// UpdateFunc is told about every successful refresh
type UpdateFunc func(ctx context.Context, rooms []home.Room, gateway *home.Gateway)

// Session keeps a room model in step with the backend by polling it
type Session struct {
	backend    Backend
	store      *home.Store
	reconciler *home.Reconciler
	interval   time.Duration

	mu       sync.Mutex
	onUpdate []UpdateFunc
}

func NewSession(backend Backend, interval time.Duration) *Session {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Session{
		backend:    backend,
		store:      home.NewStore(),
		reconciler: home.NewReconciler(),
		interval:   interval,
	}
}

func (s *Session) Store() *home.Store {
	return s.store
}

// OnUpdate registers fn to run after each successful refresh
func (s *Session) OnUpdate(fn UpdateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = append(s.onUpdate, fn)
}

// Dispatcher returns a dispatcher acting on this session's store which
// refreshes the session after room toggles
func (s *Session) Dispatcher(opts Options) *Dispatcher {
	return NewDispatcher(s.backend, s.store, s.Refresh, opts)
}

// Refresh fetches a snapshot and reconciles it into the store.  On error
// the previous rooms stay in place and the store is marked degraded.
func (s *Session) Refresh(ctx context.Context) error {
	raw, err := s.backend.Devices(ctx)
	if err != nil {
		s.store.MarkDegraded(err)
		return errors.Wrap(err, "fetching devices")
	}

	records := home.DecodeSnapshot(raw)
	if dropped := len(raw) - len(records); dropped > 0 {
		logging.Logger(ctx).Warnf("ignored %d undecodable device records", dropped)
	}

	rooms := s.store.Reconcile(s.reconciler, records)
	gateway := s.store.Gateway()

	s.mu.Lock()
	hooks := append([]UpdateFunc(nil), s.onUpdate...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(ctx, rooms, gateway)
	}

	return nil
}

// Run refreshes immediately and then on every tick until ctx is done.
// Refresh failures are logged and polling carries on.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		pollCtx := logging.WithTxnID(ctx, uuid.New().String())
		if err := s.Refresh(pollCtx); err != nil {
			logging.Logger(pollCtx).WithError(err).Warn("refresh failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
