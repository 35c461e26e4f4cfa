// Package kb loads knowledge snippets from a Source, normalizes them and keeps
// them in memory for the lifetime of the process.
package kb

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/service-agreement/backend/internal/contract"
	"github.com/service-agreement/backend/internal/metrics"
	"github.com/service-agreement/backend/internal/schema"
	"github.com/service-agreement/backend/pkg/logger"
)

// Store is a lazily loaded, read-only KB cache. The first Load reads the
// source; every later call returns the same items, even when that first load
// was partial or empty.
type Store struct {
	source    Source
	validator *schema.Validator

	once  sync.Once
	items []contract.KbItem
	byID  map[string]int
}

func NewStore(source Source, validator *schema.Validator) *Store {
	if validator == nil {
		validator = schema.Default()
	}
	return &Store{source: source, validator: validator}
}

// NewStaticStore returns a store already holding items, for callers that
// assemble a KB in memory.
func NewStaticStore(items []contract.KbItem) *Store {
	s := &Store{}
	s.once.Do(func() { s.index(items) })
	return s
}

// Load returns every enabled item. Source failures degrade to fewer items and
// are logged, never returned.
func (s *Store) Load(ctx context.Context) []contract.KbItem {
	s.once.Do(func() {
		s.index(s.read(ctx))
	})
	return slices.Clone(s.items)
}

// Get returns the item with id after loading.
func (s *Store) Get(ctx context.Context, id string) (contract.KbItem, bool) {
	s.Load(ctx)
	i, ok := s.byID[id]
	if !ok {
		return contract.KbItem{}, false
	}
	return s.items[i], true
}

func (s *Store) index(items []contract.KbItem) {
	metrics.KBItemsLoaded.Set(float64(len(items)))
	s.items = items
	s.byID = make(map[string]int, len(items))
	for i, it := range items {
		s.byID[it.ID] = i
	}
}

func (s *Store) read(ctx context.Context) []contract.KbItem {
	log := logger.GetLogger().With(zap.String("source", s.source.Name()))

	names, err := s.source.List(ctx)
	if errors.Is(err, ErrSourceMissing) {
		log.Info("KB source not found, continuing with empty KB")
		return []contract.KbItem{}
	}
	if err != nil {
		log.Error("Failed to list KB documents", zap.Error(err))
		return []contract.KbItem{}
	}

	var (
		order  []string
		listed = make(map[string]bool)
		merged = make(map[string]contract.KbItem)
	)
	for _, name := range names {
		records, err := s.readDocument(ctx, name)
		if err != nil {
			log.Warn("Skipping KB document", zap.String("document", name), zap.Error(err))
			continue
		}
		for _, r := range records {
			item := r.normalize()
			if !r.enabled() {
				delete(merged, item.ID)
				continue
			}
			if !listed[item.ID] {
				listed[item.ID] = true
				order = append(order, item.ID)
			}
			merged[item.ID] = item
		}
	}

	items := make([]contract.KbItem, 0, len(merged))
	for _, id := range order {
		if item, ok := merged[id]; ok {
			items = append(items, item)
		}
	}

	log.Info("KB loaded", zap.Int("documents", len(names)), zap.Int("items", len(items)))
	return items
}

// readDocument returns all records of a document, or an error if any record
// fails the raw schema.
func (s *Store) readDocument(ctx context.Context, name string) ([]rawRecord, error) {
	data, err := s.source.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	raws, err := s.validator.KbDocument(data)
	if err != nil {
		return nil, err
	}
	records := make([]rawRecord, 0, len(raws))
	for _, raw := range raws {
		var r rawRecord
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}
