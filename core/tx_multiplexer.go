package core

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// multiplexerMessageKind tags the messages a Worker's queue accepts,
// per §4.5.
type multiplexerMessageKind uint8

const (
	msgCallback multiplexerMessageKind = iota
	msgClose
	msgStartTransaction
	msgCommitTransaction
	msgRollbackTransaction
	msgAbortTransaction
	msgFlush
)

// CallbackFunc is the closure a Callback message carries; it receives
// the backend, a transaction resolver bound to the registry, and may
// return any value alongside an error (§4.5 "the closure receives
// (backend, registry, reply-channel)" — the reply channel itself is
// implicit in the Go translation: the caller blocks on Submit's return).
type CallbackFunc func(ctx context.Context, backend Backend, resolve func(TransactionID) (TxHandle, error)) (any, error)

// TransactionID is the stable numeric identity the registry hands back
// for a started transaction (§3 Transaction Handle).
type TransactionID int64

type multiplexerMessage struct {
	kind     multiplexerMessageKind
	ctx      context.Context
	callback CallbackFunc
	txID     TransactionID
	reply    chan multiplexerReply
}

type multiplexerReply struct {
	value any
	txID  TransactionID
	err   error
}

// Worker is C5's single cooperative worker: it owns the backend
// exclusively and serialises every read and write issued against it,
// giving external callers a mutex-free, FIFO-ordered surface (§5).
type Worker struct {
	backend  Backend
	inbox    chan multiplexerMessage
	done     chan struct{}
	closed   atomic.Bool
	failed   atomic.Bool
	log      *logrus.Entry
	metrics  *Metrics
	mu       sync.Mutex
	registry map[TransactionID]TxHandle
	nextTxID int64
	corrID   string
}

// NewWorker spawns the worker goroutine over backend and returns
// immediately; Close must be called to release it.
func NewWorker(backend Backend, metrics *Metrics) *Worker {
	w := &Worker{
		backend:  backend,
		inbox:    make(chan multiplexerMessage, 64),
		done:     make(chan struct{}),
		registry: make(map[TransactionID]TxHandle),
		metrics:  metrics,
		corrID:   uuid.NewString(),
		log:      logrus.WithField("worker", uuid.NewString()),
	}
	go w.run()
	return w
}

func (w *Worker) run() {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			w.log.WithField("panic", r).Error("worker panicked, failing all outstanding transactions")
			w.failed.Store(true)
			w.mu.Lock()
			w.registry = make(map[TransactionID]TxHandle)
			w.mu.Unlock()
		}
	}()

	for msg := range w.inbox {
		if w.metrics != nil {
			w.metrics.QueueDepth.Set(float64(len(w.inbox)))
		}
		switch msg.kind {
		case msgCallback:
			value, err := msg.callback(msg.ctx, w.backend, w.resolveTx)
			msg.reply <- multiplexerReply{value: value, err: err}
		case msgStartTransaction:
			tx, err := w.backend.StartTransaction(msg.ctx)
			if err != nil {
				msg.reply <- multiplexerReply{err: err}
				continue
			}
			id := TransactionID(atomic.AddInt64(&w.nextTxID, 1))
			w.mu.Lock()
			w.registry[id] = tx
			w.mu.Unlock()
			msg.reply <- multiplexerReply{txID: id}
		case msgCommitTransaction:
			tx, err := w.takeTx(msg.txID)
			if err != nil {
				msg.reply <- multiplexerReply{err: err}
				continue
			}
			msg.reply <- multiplexerReply{err: w.backend.CommitTransaction(msg.ctx, tx)}
		case msgRollbackTransaction, msgAbortTransaction:
			tx, err := w.takeTx(msg.txID)
			if err != nil {
				msg.reply <- multiplexerReply{err: err}
				continue
			}
			msg.reply <- multiplexerReply{err: w.backend.RollbackTransaction(msg.ctx, tx)}
		case msgFlush:
			msg.reply <- multiplexerReply{err: w.backend.Flush(msg.ctx)}
		case msgClose:
			w.mu.Lock()
			w.registry = make(map[TransactionID]TxHandle)
			w.mu.Unlock()
			msg.reply <- multiplexerReply{}
			return
		}
	}
}

func (w *Worker) resolveTx(id TransactionID) (TxHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	tx, ok := w.registry[id]
	if !ok {
		return nil, ErrUnknownTransaction
	}
	return tx, nil
}

// takeTx removes and returns id's transaction. Re-use of an id that was
// never issued, or was already finalised by a prior
// Commit/Rollback/Abort, is a hard error (§3 Transaction Handle
// invariant: double-finalisation is an error; §4.5: UnknownTransaction).
func (w *Worker) takeTx(id TransactionID) (TxHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	tx, ok := w.registry[id]
	if !ok {
		return nil, ErrUnknownTransaction
	}
	delete(w.registry, id)
	return tx, nil
}

func (w *Worker) send(ctx context.Context, msg multiplexerMessage) (multiplexerReply, error) {
	if w.closed.Load() {
		return multiplexerReply{}, ErrWorkerClosed
	}
	msg.reply = make(chan multiplexerReply, 1)
	msg.ctx = ctx
	select {
	case w.inbox <- msg:
	case <-w.done:
		return multiplexerReply{}, ErrWorkerClosed
	}
	select {
	case reply := <-msg.reply:
		if w.failed.Load() {
			return multiplexerReply{}, ErrWorkerFailed
		}
		return reply, nil
	case <-w.done:
		if w.failed.Load() {
			return multiplexerReply{}, ErrWorkerFailed
		}
		return multiplexerReply{}, ErrWorkerClosed
	}
}

// Submit runs fn on the worker and blocks for its result, preserving
// FIFO order relative to every other message this caller or any other
// caller submits (§5 "Ordering").
func (w *Worker) Submit(ctx context.Context, fn CallbackFunc) (any, error) {
	reply, err := w.send(ctx, multiplexerMessage{kind: msgCallback, callback: fn})
	if err != nil {
		return nil, err
	}
	if w.metrics != nil {
		w.metrics.OpsExecuted.Inc()
	}
	return reply.value, reply.err
}

// StartTransaction allocates a registry entry and returns its stable id.
func (w *Worker) StartTransaction(ctx context.Context) (TransactionID, error) {
	reply, err := w.send(ctx, multiplexerMessage{kind: msgStartTransaction})
	if err != nil {
		return 0, err
	}
	return reply.txID, reply.err
}

// CommitTransaction finalises and invalidates id.
func (w *Worker) CommitTransaction(ctx context.Context, id TransactionID) error {
	reply, err := w.send(ctx, multiplexerMessage{kind: msgCommitTransaction, txID: id})
	if err != nil {
		return err
	}
	return reply.err
}

// RollbackTransaction finalises and invalidates id.
func (w *Worker) RollbackTransaction(ctx context.Context, id TransactionID) error {
	reply, err := w.send(ctx, multiplexerMessage{kind: msgRollbackTransaction, txID: id})
	if err != nil {
		return err
	}
	return reply.err
}

// AbortTransaction finalises and invalidates id without applying its
// writes; mechanically identical to RollbackTransaction at this layer.
func (w *Worker) AbortTransaction(ctx context.Context, id TransactionID) error {
	reply, err := w.send(ctx, multiplexerMessage{kind: msgAbortTransaction, txID: id})
	if err != nil {
		return err
	}
	return reply.err
}

// Flush asks the backend to flush any buffered state.
func (w *Worker) Flush(ctx context.Context) error {
	reply, err := w.send(ctx, multiplexerMessage{kind: msgFlush})
	if err != nil {
		return err
	}
	return reply.err
}

// Close drains the registry, drops the backend and blocks until the
// worker goroutine exits. Messages arriving after Close is called are
// rejected with WorkerClosed (§4.5).
func (w *Worker) Close(ctx context.Context) error {
	if w.closed.Swap(true) {
		return nil
	}
	msg := multiplexerMessage{kind: msgClose, ctx: ctx, reply: make(chan multiplexerReply, 1)}
	var err error
	select {
	case w.inbox <- msg:
		select {
		case reply := <-msg.reply:
			err = reply.err
		case <-w.done:
		}
	case <-w.done:
	}
	close(w.inbox)
	<-w.done
	return err
}

// Metrics are C5's ambient counters (§B domain stack), scraped by a
// prometheus registry the host process owns.
type Metrics struct {
	OpsExecuted prometheus.Counter
	QueueDepth  prometheus.Gauge
	FeesCharged prometheus.Counter
}

// NewMetrics registers a fresh set of counters against reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		OpsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "core_operations_executed_total",
			Help: "Total number of callbacks executed by the transaction multiplexer worker.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "core_worker_queue_depth",
			Help: "Current depth of the transaction multiplexer's message queue.",
		}),
		FeesCharged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "core_fees_charged_credits_total",
			Help: "Total credits charged across storage and processing fees.",
		}),
	}
	for _, c := range []prometheus.Collector{m.OpsExecuted, m.QueueDepth, m.FeesCharged} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
