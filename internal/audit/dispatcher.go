package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/task-manager/task-manager/internal/db/models"
	"github.com/task-manager/task-manager/internal/safego"
	"github.com/task-manager/task-manager/internal/telemetry"
)

// DefaultQueueSize is the number of entries Dispatcher buffers before dropping.
const DefaultQueueSize = 1024

// Dispatcher hands committed entries to a Shipper on a background worker so request
// latency never depends on an external destination.
type Dispatcher struct {
	shipper     Shipper
	queue       chan *models.AuditLog
	shipTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NewDispatcher starts a worker that drains a queue of queueSize entries into shipper.
func NewDispatcher(shipper Shipper, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		shipper:     shipper,
		queue:       make(chan *models.AuditLog, queueSize),
		shipTimeout: 10 * time.Second,
		done:        make(chan struct{}),
	}
	safego.Go("audit-dispatcher", d.run)
	return d
}

// Dispatch enqueues entry without blocking. When the queue is full the entry is dropped
// from shipping (it is already stored) and counted as a failure.
func (d *Dispatcher) Dispatch(entry *models.AuditLog) {
	if entry == nil {
		return
	}
	select {
	case d.queue <- entry:
	default:
		telemetry.AuditShipFailuresTotal.Inc()
		slog.Warn("audit dispatcher queue full, entry not shipped",
			"audit_id", entry.ID, "organization_id", entry.OrganizationID)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for entry := range d.queue {
		d.ship(entry)
	}
}

func (d *Dispatcher) ship(entry *models.AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), d.shipTimeout)
	defer cancel()

	ok := safego.Run("audit-ship", func() {
		if err := d.shipper.Ship(ctx, entry); err != nil {
			telemetry.AuditShipFailuresTotal.Inc()
			slog.Error("audit shipping failed", "audit_id", entry.ID, "error", err)
		}
	})
	if !ok {
		telemetry.AuditShipFailuresTotal.Inc()
	}
}

// Close stops accepting entries, drains the queue (bounded by ctx) and closes the
// shipper. Dispatch must not be called after Close.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	select {
	case <-d.done:
	case <-ctx.Done():
		slog.Warn("audit dispatcher: shutdown deadline reached before queue drained")
	}
	return d.shipper.Close()
}
