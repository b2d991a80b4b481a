// Package trades persists the append-only feed of executed fills. Unlike the
// lot ledger this WAL is read back as a stream: the dashboard polls
// EventsAfter with the last index it has seen.
package trades

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pasiu/gridbot/internal/domain"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	DefaultDir = "./wal/trades"

	segmentLimit      = 1000
	maxSegments       = 100
	walDirPermissions = 0o755

	tradeKeyPrefix = "trade_"
)

// Record is one trade event together with its WAL index.
type Record struct {
	Index uint64            `json:"index"`
	Event domain.TradeEvent `json:"event"`
}

// WALStore persists trade events in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed trade store.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	if err := os.MkdirAll(dir, walDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure trade WAL directory %s", dir)
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "trade_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init trade WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the trade event to the WAL.
func (s *WALStore) Save(event domain.TradeEvent) error {
	if s == nil || s.wal == nil {
		return errors.New("trade store is not initialized")
	}
	if event.Symbol == "" {
		return fmt.Errorf("trade event symbol is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal trade event")
	}

	key := fmt.Sprintf("%s%s", tradeKeyPrefix, event.Symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// EventsAfter returns all trade events written after the provided WAL index.
func (s *WALStore) EventsAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("trade store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]Record, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(key, tradeKeyPrefix) {
			continue
		}

		var event domain.TradeEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, errors.Wrap(err, "decode trade event")
		}
		records = append(records, Record{Index: idx, Event: event})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("trade store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
