package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/procurematch/internal/core/domain"
	"github.com/rl1809/procurematch/internal/core/matching"
	"github.com/rl1809/procurematch/internal/port"
)

// Recorder receives planning and acceptance outcomes for metrics.
type Recorder interface {
	PlanComputed(status domain.PlanStatus)
	PlanAccepted(orders, units int, cost decimal.Decimal)
	AcceptRejected(reason string)
}

type nopRecorder struct{}

func (nopRecorder) PlanComputed(domain.PlanStatus)         {}
func (nopRecorder) PlanAccepted(int, int, decimal.Decimal) {}
func (nopRecorder) AcceptRejected(string)                  {}

// Store is the single source of truth for requisitions, inventory, orders and
// the signed-in user. Every mutation either applies completely or returns an
// error and leaves the collections untouched.
type Store struct {
	mu           sync.Mutex
	requisitions []domain.Requisition
	inventory    []domain.InventoryRow
	orders       []domain.Order
	user         *domain.User

	engine      *matching.Engine
	sessions    port.SessionRepository
	guard       port.AcceptanceGuard
	locker      port.Locker
	events      port.EventPublisher
	recorder    Recorder
	transitions domain.TransitionPolicy
	newID       func() string
	now         func() time.Time
	log         logrus.FieldLogger
}

type Option func(*Store)

func WithEngine(e *matching.Engine) Option {
	return func(s *Store) { s.engine = e }
}

func WithSessionRepository(r port.SessionRepository) Option {
	return func(s *Store) { s.sessions = r }
}

// WithAcceptanceGuard adds a shared claim on each item so that only one
// process can accept it.
func WithAcceptanceGuard(g port.AcceptanceGuard) Option {
	return func(s *Store) { s.guard = g }
}

// WithLocker serializes acceptance of the same item across processes.
func WithLocker(l port.Locker) Option {
	return func(s *Store) { s.locker = l }
}

func WithEventPublisher(p port.EventPublisher) Option {
	return func(s *Store) { s.events = p }
}

func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

func WithTransitionPolicy(p domain.TransitionPolicy) Option {
	return func(s *Store) { s.transitions = p }
}

func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

func NewStore(opts ...Option) *Store {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Store{
		engine:      matching.NewEngine(),
		recorder:    nopRecorder{},
		transitions: domain.PermissiveTransitions,
		newID:       newUUID,
		now:         time.Now,
		log:         discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newUUID returns a time-ordered v7 id, falling back to a random v4 id.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Snapshot is a deep copy of the Store's collections. Planning against a
// snapshot never touches the Store.
type Snapshot struct {
	Requisitions []domain.Requisition  `json:"requisitions"`
	Inventory    []domain.InventoryRow `json:"inventory"`
	Orders       []domain.Order        `json:"orders"`
	User         *domain.User          `json:"user,omitempty"`
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Requisitions: s.copyRequisitions(),
		Inventory:    append([]domain.InventoryRow(nil), s.inventory...),
		Orders:       append([]domain.Order(nil), s.orders...),
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *Store) copyRequisitions() []domain.Requisition {
	out := make([]domain.Requisition, len(s.requisitions))
	for i, r := range s.requisitions {
		out[i] = r.Clone()
	}
	return out
}

func (s *Store) publish(ctx context.Context, event domain.OrderEvent) {
	if s.events == nil {
		return
	}
	// Committed batches are published even when the request is gone.
	if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.log.WithFields(logrus.Fields{
			"module": "store",
			"event":  event.Type,
			"itemId": event.ItemID,
		}).WithError(err).Error("publish order event")
	}
}

// Publishers fans an event out to several publishers and joins their errors.
type Publishers []port.EventPublisher

func (p Publishers) Publish(ctx context.Context, event domain.OrderEvent) error {
	var errs []error
	for _, pub := range p {
		if err := pub.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
