// Package ledger is the durable book of open lots. The whole book is kept in
// memory and snapshotted to the WAL after every mutation; on restart the last
// snapshot wins, so the WAL is a recovery log rather than an event stream.
package ledger

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pasiu/gridbot/internal/domain"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"
	"go.uber.org/zap"
)

const (
	DefaultDir = "./wal/lots"

	walSegmentThreshold = 1000
	walMaxSegments      = 100
	walDirPermissions   = 0o755

	lotsBookKey = "lots_book"
)

// Store holds the open lots per symbol, backed by a WAL snapshot.
type Store struct {
	mu     sync.RWMutex
	book   map[string][]domain.Lot
	wal    *gowal.Wal
	logger *zap.Logger
}

// NewStore opens the WAL in dir and recovers the last persisted book.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(dir, walDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure ledger WAL directory %s", dir)
	}

	walCfg := gowal.Config{
		Dir:              dir,
		Prefix:           "log_",
		SegmentThreshold: walSegmentThreshold,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(walCfg)
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}

	book := make(map[string][]domain.Lot)
	for msg := range wal.Iterator() {
		if msg.Key != lotsBookKey {
			continue
		}
		recovered := make(map[string][]domain.Lot)
		if err := json.Unmarshal(msg.Value, &recovered); err != nil {
			logger.Error("failed to unmarshal lots book from WAL", zap.Error(err))
			continue
		}
		book = recovered
	}

	return &Store{book: book, wal: wal, logger: logger}, nil
}

// AddLot books a new lot for symbol and persists the updated book.
func (s *Store) AddLot(symbol string, buyPrice, quantity decimal.Decimal) (domain.Lot, error) {
	lot, err := domain.NewLot(buyPrice, quantity, time.Now().UTC())
	if err != nil {
		return domain.Lot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.book[symbol] = append(s.book[symbol], lot)
	s.persistLocked()

	return lot, nil
}

// RemoveLot deletes the lot with the given ID from symbol. It reports whether
// a lot was removed; an unknown ID leaves the book untouched.
func (s *Store) RemoveLot(symbol, lotID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	lots := s.book[symbol]
	for i, lot := range lots {
		if lot.ID != lotID {
			continue
		}
		lots = append(lots[:i], lots[i+1:]...)
		if len(lots) == 0 {
			delete(s.book, symbol)
		} else {
			s.book[symbol] = lots
		}
		s.persistLocked()
		return true
	}

	return false
}

// Lot returns the lot with the given ID for symbol.
func (s *Store) Lot(symbol, lotID string) (domain.Lot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, lot := range s.book[symbol] {
		if lot.ID == lotID {
			return lot, true
		}
	}
	return domain.Lot{}, false
}

// Lots returns a copy of the open lots for symbol, in booking order.
func (s *Store) Lots(symbol string) []domain.Lot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lots := s.book[symbol]
	out := make([]domain.Lot, len(lots))
	copy(out, lots)
	return out
}

// LowestBuyPrice returns the cheapest buy price among symbol's open lots.
func (s *Store) LowestBuyPrice(symbol string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.LowestBuyPrice(s.book[symbol])
}

// Symbols returns every symbol that currently has at least one open lot.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.book))
	for symbol := range s.book {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Snapshot returns a deep copy of the whole book.
func (s *Store) Snapshot() map[string][]domain.Lot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]domain.Lot, len(s.book))
	for symbol, lots := range s.book {
		cp := make([]domain.Lot, len(lots))
		copy(cp, lots)
		out[symbol] = cp
	}
	return out
}

// Reset drops every lot from the book, as after a close-all-positions command.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.book = make(map[string][]domain.Lot)
	s.persistLocked()
}

// Close closes the underlying WAL.
func (s *Store) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("ledger store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

// persistLocked snapshots the book to the WAL. Persistence failures are
// logged but never abort the in-memory mutation: a trade that executed at the
// broker must stay booked even if the disk is unhappy.
func (s *Store) persistLocked() {
	data, err := json.Marshal(s.book)
	if err != nil {
		s.logger.Error("failed to marshal lots book", zap.Error(err))
		return
	}

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, lotsBookKey, data); err != nil {
		s.logger.Error("failed to persist lots book", zap.Error(err))
	}
}
