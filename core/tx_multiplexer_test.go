package core

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestWorker(t *testing.T) (*Worker, *InMemoryBackend) {
	t.Helper()
	backend := NewInMemoryBackend()
	metrics, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	w := NewWorker(backend, metrics)
	t.Cleanup(func() { _ = w.Close(context.Background()) })
	return w, backend
}

func TestWorkerSubmitRunsCallback(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorker(t)

	result, err := w.Submit(ctx, func(ctx context.Context, backend Backend, resolve func(TransactionID) (TxHandle, error)) (any, error) {
		return 42, backend.Insert(ctx, []string{"x"}, []byte("k"), NewItemElement([]byte("v"), NewSingleEpochFlags(0)), nil)
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result != 42 {
		t.Fatalf("result = %v, want 42", result)
	}
}

func TestWorkerTransactionLifecycle(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorker(t)

	id, err := w.StartTransaction(ctx)
	if err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	if err := w.CommitTransaction(ctx, id); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}
	if err := w.CommitTransaction(ctx, id); err == nil {
		t.Fatal("expected double commit to fail with UnknownTransaction")
	}
}

func TestWorkerUnknownTransaction(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorker(t)
	if err := w.CommitTransaction(ctx, TransactionID(999)); err == nil {
		t.Fatal("expected commit of unknown transaction id to fail")
	}
}

func TestWorkerCloseRejectsFurtherSubmissions(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemoryBackend()
	w := NewWorker(backend, nil)
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, err := w.Submit(ctx, func(context.Context, Backend, func(TransactionID) (TxHandle, error)) (any, error) {
		return nil, nil
	})
	if err == nil {
		t.Fatal("expected submission after Close to fail")
	}
	ce, ok := err.(*ConsensusError)
	if !ok || ce.Code != "WorkerClosed" {
		t.Fatalf("expected WorkerClosed, got %v", err)
	}
}

func TestWorkerRunsEveryConcurrentSubmission(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWorker(t)

	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = w.Submit(ctx, func(context.Context, Backend, func(TransactionID) (TxHandle, error)) (any, error) {
				order = append(order, i)
				return nil, nil
			})
		}()
	}
	wg.Wait()
	if len(order) != 20 {
		t.Fatalf("expected 20 callbacks to have run, got %d", len(order))
	}
}
