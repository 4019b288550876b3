package queue

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicflow/rdv-api/internal/api/metrics"
	"github.com/clinicflow/rdv-api/internal/core/domain"
	"github.com/clinicflow/rdv-api/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	writeTimeout   = 5 * time.Second
)

// Dispatcher persists appointment events on a fixed set of workers, sharded by
// appointment id so the events of one appointment are written in order.
type Dispatcher struct {
	workers []chan domain.AppointmentEvent
	repo    ports.AuditRepository
	log     zerolog.Logger

	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
	stopOnce sync.Once
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repo ports.AuditRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.AppointmentEvent, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AppointmentEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Cancelling ctx abandons queued events;
// use Stop to drain them.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Record enqueues an event on the worker responsible for its appointment. It
// never blocks: when the shard is full the event is dropped.
func (d *Dispatcher) Record(event domain.AppointmentEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		metrics.AuditEventsDroppedTotal.Inc()
		d.log.Warn().Str("appointment_id", event.AppointmentID).Msg("audit dispatcher stopped, event dropped")
		return
	}

	select {
	case d.workers[d.shardIndex(event.AppointmentID)] <- event:
	default:
		metrics.AuditEventsDroppedTotal.Inc()
		d.log.Warn().
			Str("appointment_id", event.AppointmentID).
			Str("type", string(event.Type)).
			Msg("audit queue full, event dropped")
	}
}

// Stop closes the queues and waits for the workers to write what is left.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		for _, ch := range d.workers {
			close(ch)
		}
		d.mu.Unlock()
	})
	d.wg.Wait()
}

// shardIndex maps an appointment id deterministically to a worker index.
func (d *Dispatcher) shardIndex(appointmentID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(appointmentID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AppointmentEvent) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			d.write(ctx, id, event)
		}
	}
}

func (d *Dispatcher) write(ctx context.Context, workerID int, event domain.AppointmentEvent) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := d.repo.InsertEvent(wctx, &event); err != nil {
		metrics.AuditEventsFailedTotal.Inc()
		d.log.Error().Err(err).
			Str("appointment_id", event.AppointmentID).
			Str("type", string(event.Type)).
			Int("worker_id", workerID).
			Msg("audit event persistence failed")
	}
}
