package core

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// InMemoryBackend is a minimal, non-authenticated stand-in for the real
// tree backend, used only by this core's own tests (§A "Test tooling").
// It supports exactly the operations the core issues: a flat map keyed
// by joined-path+key, aux storage, and copy-on-write transaction
// snapshots good enough to exercise the isolation behaviour of §8
// scenario 6.
type InMemoryBackend struct {
	mu     sync.RWMutex
	tree   map[string]Element
	aux    map[string][]byte
	nextTx int64
	txs    map[int64]*memTx
}

type memTx struct {
	overlay    map[string]Element
	auxOverlay map[string][]byte
	deleted    map[string]bool
	auxDeleted map[string]bool
}

type memTxHandle struct{ id int64 }

func (memTxHandle) txMarker() {}

// NewInMemoryBackend returns an empty backend.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{
		tree: make(map[string]Element),
		aux:  make(map[string][]byte),
		txs:  make(map[int64]*memTx),
	}
}

func treeKey(path []string, key []byte) string {
	return strings.Join(path, "\x00") + "\x01" + string(key)
}

func (b *InMemoryBackend) txOf(tx TxHandle) *memTx {
	if tx == nil {
		return nil
	}
	h, ok := tx.(memTxHandle)
	if !ok {
		return nil
	}
	// Every caller already holds b.mu.
	return b.txs[h.id]
}

func (b *InMemoryBackend) Insert(_ context.Context, path []string, key []byte, element Element, tx TxHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := treeKey(path, key)
	if t := b.txOf(tx); t != nil {
		t.overlay[k] = element
		delete(t.deleted, k)
		return nil
	}
	b.tree[k] = element
	return nil
}

func (b *InMemoryBackend) InsertIfNotExists(ctx context.Context, path []string, key []byte, element Element, tx TxHandle) (bool, error) {
	if _, err := b.Get(ctx, path, key, tx); err == nil {
		return false, nil
	}
	if err := b.Insert(ctx, path, key, element, tx); err != nil {
		return false, err
	}
	return true, nil
}

func (b *InMemoryBackend) Get(_ context.Context, path []string, key []byte, tx TxHandle) (Element, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	k := treeKey(path, key)
	if t := b.txOf(tx); t != nil {
		if t.deleted[k] {
			return Element{}, ErrNotFound("element")
		}
		if el, ok := t.overlay[k]; ok {
			return el, nil
		}
	}
	el, ok := b.tree[k]
	if !ok {
		return Element{}, ErrNotFound("element")
	}
	return el, nil
}

func (b *InMemoryBackend) Delete(_ context.Context, path []string, key []byte, tx TxHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := treeKey(path, key)
	if t := b.txOf(tx); t != nil {
		delete(t.overlay, k)
		t.deleted[k] = true
		return nil
	}
	delete(b.tree, k)
	return nil
}

func (b *InMemoryBackend) PutAux(_ context.Context, key []byte, value []byte, tx TxHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := string(key)
	if t := b.txOf(tx); t != nil {
		t.auxOverlay[k] = value
		delete(t.auxDeleted, k)
		return nil
	}
	b.aux[k] = value
	return nil
}

func (b *InMemoryBackend) GetAux(_ context.Context, key []byte, tx TxHandle) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	k := string(key)
	if t := b.txOf(tx); t != nil {
		if t.auxDeleted[k] {
			return nil, ErrNotFound("aux")
		}
		if v, ok := t.auxOverlay[k]; ok {
			return v, nil
		}
	}
	v, ok := b.aux[k]
	if !ok {
		return nil, ErrNotFound("aux")
	}
	return v, nil
}

func (b *InMemoryBackend) DeleteAux(_ context.Context, key []byte, tx TxHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := string(key)
	if t := b.txOf(tx); t != nil {
		delete(t.auxOverlay, k)
		t.auxDeleted[k] = true
		return nil
	}
	delete(b.aux, k)
	return nil
}

// Query performs a linear scan of the committed tree for keys directly
// under path; q.Clauses are not applied, so callers filter the results
// themselves. It is deliberately simple: the core's tests exercise
// planner and fee logic, not query-engine performance.
func (b *InMemoryBackend) Query(_ context.Context, q PathQuery, tx TxHandle) ([]QueryResult, int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	prefix := strings.Join(q.Path, "\x00") + "\x01"
	var results []QueryResult
	skipped := 0
	for k, el := range b.tree {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if q.Limit > 0 && len(results) >= q.Limit {
			skipped++
			continue
		}
		results = append(results, QueryResult{Key: []byte(strings.TrimPrefix(k, prefix)), Element: el})
	}
	return results, skipped, nil
}

func (b *InMemoryBackend) ProveQuery(ctx context.Context, q PathQuery, tx TxHandle) ([]byte, error) {
	return nil, ErrGroveDB("proofs are not implemented by the in-memory test backend")
}

func (b *InMemoryBackend) ProveQueryMany(ctx context.Context, qs []PathQuery, tx TxHandle) ([]byte, error) {
	return nil, ErrGroveDB("proofs are not implemented by the in-memory test backend")
}

func (b *InMemoryBackend) RootHash(_ context.Context, _ TxHandle) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h := make([]byte, 32)
	for k, el := range b.tree {
		mix := fnvHash(k, el.ItemBytes)
		for i := range h {
			h[i] ^= mix[i]
		}
	}
	return h, nil
}

func (b *InMemoryBackend) StartTransaction(_ context.Context) (TxHandle, error) {
	id := atomic.AddInt64(&b.nextTx, 1)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.txs[id] = &memTx{
		overlay:    make(map[string]Element),
		auxOverlay: make(map[string][]byte),
		deleted:    make(map[string]bool),
		auxDeleted: make(map[string]bool),
	}
	return memTxHandle{id: id}, nil
}

func (b *InMemoryBackend) CommitTransaction(_ context.Context, tx TxHandle) error {
	h, ok := tx.(memTxHandle)
	if !ok {
		return ErrUnknownTransaction
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.txs[h.id]
	if !ok {
		return ErrUnknownTransaction
	}
	for k := range t.deleted {
		delete(b.tree, k)
	}
	for k, el := range t.overlay {
		b.tree[k] = el
	}
	for k := range t.auxDeleted {
		delete(b.aux, k)
	}
	for k, v := range t.auxOverlay {
		b.aux[k] = v
	}
	delete(b.txs, h.id)
	return nil
}

func (b *InMemoryBackend) RollbackTransaction(_ context.Context, tx TxHandle) error {
	h, ok := tx.(memTxHandle)
	if !ok {
		return ErrUnknownTransaction
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.txs[h.id]; !ok {
		return ErrUnknownTransaction
	}
	delete(b.txs, h.id)
	return nil
}

func (b *InMemoryBackend) Flush(_ context.Context) error { return nil }

func fnvHash(parts ...any) [32]byte {
	const prime = 1099511628211
	var hash uint64 = 14695981039346656037
	write := func(b []byte) {
		for _, c := range b {
			hash ^= uint64(c)
			hash *= prime
		}
	}
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			write([]byte(v))
		case []byte:
			write(v)
		}
	}
	var out [32]byte
	for i := range out {
		out[i] = byte(hash >> (uint(i%8) * 8))
	}
	return out
}
