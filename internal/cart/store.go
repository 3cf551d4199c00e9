// Package cart is the shopping cart state container.
//
// The store is the only owner of cart lines. Every mutation re-writes the full
// snapshot to durable storage before subscribers are notified; a storage
// failure is logged and the in-memory lines stay authoritative.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SnapshotKey is the fixed storage key of the cart snapshot.
const SnapshotKey = "cart"

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// PersistObserver is told about every snapshot write outcome.
type PersistObserver interface {
	CartPersisted(err error)
}

type Store struct {
	mu    sync.Mutex
	lines []domain.CartLine

	kv       storage.Store
	log      *logger.Logger
	observer PersistObserver

	subMu  sync.Mutex
	subs   map[int]func([]domain.CartLine)
	nextID int
}

type Option func(*Store)

func WithPersistObserver(o PersistObserver) Option {
	return func(s *Store) { s.observer = o }
}

// New builds a store and loads the persisted snapshot. A missing or
// unreadable snapshot yields an empty cart.
func New(ctx context.Context, kv storage.Store, log *logger.Logger, opts ...Option) *Store {
	s := &Store{
		kv:   kv,
		log:  log.Named("cart"),
		subs: make(map[int]func([]domain.CartLine)),
	}
	for _, o := range opts {
		o(s)
	}
	s.lines = s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) []domain.CartLine {
	raw, err := s.kv.Get(ctx, SnapshotKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn(ctx, "cart snapshot read failed", zap.Error(err))
		}
		return nil
	}

	lines, err := Decode(raw)
	if err != nil {
		s.log.Warn(ctx, "cart snapshot unreadable, starting empty", zap.Error(err))
		return nil
	}
	return lines
}

// Decode parses a snapshot and restores the store invariants: one line per
// product and no line with a non-positive quantity.
func Decode(raw []byte) ([]domain.CartLine, error) {
	var parsed []domain.CartLine
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}

	var lines []domain.CartLine
	index := make(map[string]int, len(parsed))
	for _, l := range parsed {
		if l.ProductID == "" || l.Quantity <= 0 {
			continue
		}
		if i, ok := index[l.ProductID]; ok {
			lines[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(lines)
		lines = append(lines, l)
	}
	return lines, nil
}

// Encode serialises lines in snapshot form.
func Encode(lines []domain.CartLine) ([]byte, error) {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return json.Marshal(lines)
}

// Add puts one unit of p in the cart.
func (s *Store) Add(ctx context.Context, p domain.Product) {
	_ = s.AddItem(ctx, p, 1)
}

// AddItem increments the product's line by quantity, appending a new line
// if the product is not in the cart yet.
func (s *Store) AddItem(ctx context.Context, p domain.Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	s.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		if i := indexOf(lines, p.ID); i >= 0 {
			lines[i].Quantity += quantity
			return lines
		}
		return append(lines, p.Line(quantity))
	})
	return nil
}

// SetQuantity overwrites a line's quantity. Zero or less removes the line.
// Unknown products are ignored.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) {
	if quantity <= 0 {
		s.RemoveItem(ctx, productID)
		return
	}
	s.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		if i := indexOf(lines, productID); i >= 0 {
			lines[i].Quantity = quantity
		}
		return lines
	})
}

// RemoveItem deletes the product's line; absent products are a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID string) {
	s.mutate(ctx, func(lines []domain.CartLine) []domain.CartLine {
		i := indexOf(lines, productID)
		if i < 0 {
			return lines
		}
		return append(lines[:i], lines[i+1:]...)
	})
}

func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, func([]domain.CartLine) []domain.CartLine {
		return nil
	})
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.lines)
}

// Subtotal is recomputed from the current lines on every call.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Subtotal(s.lines)
}

// Count is the total number of units in the cart.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// Subscribe registers fn to receive the lines after every mutation. The
// returned function unregisters it.
func (s *Store) Subscribe(fn func([]domain.CartLine)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) mutate(ctx context.Context, fn func([]domain.CartLine) []domain.CartLine) {
	s.mu.Lock()
	s.lines = fn(s.lines)
	snapshot := clone(s.lines)
	s.persist(ctx, snapshot)
	s.mu.Unlock()

	s.notify(snapshot)
}

// persist runs under s.mu so snapshot writes land in mutation order.
func (s *Store) persist(ctx context.Context, lines []domain.CartLine) {
	raw, err := Encode(lines)
	if err == nil {
		err = s.kv.Set(ctx, SnapshotKey, raw)
	}
	if err != nil {
		s.log.Warn(ctx, "failed to save cart snapshot", zap.Error(err), zap.Int("lines", len(lines)))
	}
	if s.observer != nil {
		s.observer.CartPersisted(err)
	}
}

func (s *Store) notify(lines []domain.CartLine) {
	s.subMu.Lock()
	fns := make([]func([]domain.CartLine), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(clone(lines))
	}
}

func indexOf(lines []domain.CartLine, productID string) int {
	for i := range lines {
		if lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func clone(lines []domain.CartLine) []domain.CartLine {
	if len(lines) == 0 {
		return nil
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out
}
