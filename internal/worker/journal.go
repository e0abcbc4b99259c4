// Package worker drains order events into the order journal in the background.
package worker

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/procurematch/internal/core/domain"
	"github.com/rl1809/procurematch/internal/port"
)

var ErrClosed = errors.New("journal queue closed")

// Recorder counts journal writes.
type Recorder interface {
	JournalWrite(event domain.EventType, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) JournalWrite(domain.EventType, string) {}

// Journal is an EventPublisher that queues events for a pool of workers.
// Events of the same requisition item always land on the same worker, so an
// acceptance is written before any status change of its orders.
type Journal struct {
	journal  port.OrderJournal
	queues   []chan domain.OrderEvent
	timeout  time.Duration
	recorder Recorder
	log      logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Journal)

func WithRecorder(r Recorder) Option {
	return func(j *Journal) { j.recorder = r }
}

// WithWriteTimeout bounds each journal write.
func WithWriteTimeout(d time.Duration) Option {
	return func(j *Journal) { j.timeout = d }
}

func NewJournal(journal port.OrderJournal, workers, queueSize int, log logrus.FieldLogger, opts ...Option) *Journal {
	if workers < 1 {
		workers = 1
	}
	j := &Journal{
		journal:  journal,
		queues:   make([]chan domain.OrderEvent, workers),
		timeout:  5 * time.Second,
		recorder: nopRecorder{},
		log:      log.WithField("module", "journal"),
	}
	for i := range j.queues {
		j.queues[i] = make(chan domain.OrderEvent, queueSize)
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start launches one goroutine per queue.
func (j *Journal) Start() {
	for i, queue := range j.queues {
		j.wg.Add(1)
		go func(id int, queue <-chan domain.OrderEvent) {
			defer j.wg.Done()
			j.workerLoop(id, queue)
		}(i, queue)
	}
	j.log.WithField("workers", len(j.queues)).Info("journal workers started")
}

// Publish queues the event. It blocks while the item's queue is full, until
// ctx is done.
func (j *Journal) Publish(ctx context.Context, event domain.OrderEvent) error {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return ErrClosed
	}
	select {
	case j.queues[j.partition(event.ItemID)] <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Journal) partition(itemID string) int {
	h := fnv.New32a()
	h.Write([]byte(itemID))
	return int(h.Sum32() % uint32(len(j.queues)))
}

// Close stops accepting events and waits for the queued ones to be written.
func (j *Journal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	for _, q := range j.queues {
		close(q)
	}
	j.mu.Unlock()

	j.wg.Wait()
	j.log.Info("journal workers stopped")
}

func (j *Journal) workerLoop(id int, queue <-chan domain.OrderEvent) {
	for event := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		j.write(ctx, id, event)
		cancel()
	}
}

func (j *Journal) write(ctx context.Context, id int, event domain.OrderEvent) {
	log := j.log.WithFields(logrus.Fields{
		"worker": id,
		"event":  event.Type,
		"itemId": event.ItemID,
	})

	var err error
	switch event.Type {
	case domain.EventOrdersAccepted:
		err = j.journal.RecordAcceptance(ctx, event)
	case domain.EventOrderStatusChanged:
		for _, o := range event.Orders {
			if err = j.journal.RecordStatus(ctx, o); err != nil {
				break
			}
		}
	default:
		log.Warn("ignoring unknown event type")
		return
	}

	switch {
	case err == nil:
		j.recorder.JournalWrite(event.Type, "ok")
		log.Debug("event journaled")
	case errors.Is(err, port.ErrDuplicateAcceptance):
		j.recorder.JournalWrite(event.Type, "duplicate")
		log.Warn("acceptance already journaled")
	default:
		j.recorder.JournalWrite(event.Type, "error")
		log.WithError(err).Error("failed to journal event")
	}
}
