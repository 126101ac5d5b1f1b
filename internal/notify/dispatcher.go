package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"membership-api/internal/metrics"
)

// Dispatcher encola notificaciones y las entrega con un pool de workers.
// Notify nunca bloquea: con la cola llena la notificacion se descarta y se loguea.
type Dispatcher struct {
	logger    *zap.Logger
	deliverer *Deliverer
	queue     chan job
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type job struct {
	ctx context.Context
	n   Notification
}

func NewDispatcher(logger *zap.Logger, deliverer *Deliverer, workers, queueSize int) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	d := &Dispatcher{
		logger:    logger,
		deliverer: deliverer,
		queue:     make(chan job, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("notification dropped after close", zap.String("kind", string(n.Kind)))
		metrics.Notification(string(n.Kind), "queue", "dropped")
		return
	}

	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), n: n}:
	default:
		d.logger.Warn("notification queue full", zap.String("kind", string(n.Kind)), zap.String("user_id", n.UserID))
		metrics.Notification(string(n.Kind), "queue", "dropped")
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliverer.Deliver(j.ctx, j.n)
	}
}

// Close deja de aceptar trabajo, drena la cola y espera a los workers o a ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
