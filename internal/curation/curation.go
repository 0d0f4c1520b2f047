// Package curation persists the listings a user has removed from an item's
// market view. Deletions are permanent for the life of the item.
package curation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/donaldgifford/market-comps/internal/kv"
	"github.com/donaldgifford/market-comps/internal/metrics"
	domain "github.com/donaldgifford/market-comps/pkg/types"
)

const keyPrefix = "curation/"

// Record is the stored deletion set for one item. IDs are kept sorted.
type Record struct {
	DeletedVisualMatchIDs    []string `json:"deleted_visual_match_ids"`
	DeletedShoppingResultIDs []string `json:"deleted_shopping_result_ids"`
}

// Contains reports whether id is deleted under either kind.
func (r *Record) Contains(id string) bool {
	_, ok := slices.BinarySearch(r.DeletedVisualMatchIDs, id)
	if ok {
		return true
	}
	_, ok = slices.BinarySearch(r.DeletedShoppingResultIDs, id)
	return ok
}

// Len returns the number of deleted IDs.
func (r *Record) Len() int {
	return len(r.DeletedVisualMatchIDs) + len(r.DeletedShoppingResultIDs)
}

// add inserts id and reports whether the record changed.
func (r *Record) add(kind domain.ListingKind, id string) bool {
	set := &r.DeletedShoppingResultIDs
	if kind == domain.KindVisualMatch {
		set = &r.DeletedVisualMatchIDs
	}
	i, found := slices.BinarySearch(*set, id)
	if found {
		return false
	}
	*set = slices.Insert(*set, i, id)
	return true
}

// Store reads and writes curation records.
type Store struct {
	kv     kv.Store
	locks  *kv.KeyMutex
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithLocks shares a KeyMutex with other writers of the same kv.Store.
func WithLocks(m *kv.KeyMutex) Option {
	return func(s *Store) {
		s.locks = m
	}
}

// NewStore creates a Store over backend.
func NewStore(backend kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:     backend,
		locks:  kv.NewKeyMutex(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func recordKey(itemID string) string {
	return keyPrefix + itemID
}

// Load returns the item's record. An item with no deletions yields an
// empty record. A record that does not decode is an ErrCacheCorruption
// error rather than an empty record, which would resurrect deleted listings.
func (s *Store) Load(ctx context.Context, itemID string) (Record, error) {
	raw, ok, err := s.kv.Get(ctx, recordKey(itemID))
	if err != nil {
		return Record{}, fmt.Errorf("loading curation for %s: %w", itemID, err)
	}
	if !ok {
		return Record{}, nil
	}

	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, fmt.Errorf("%w: decoding curation for %s: %w", domain.ErrCacheCorruption, itemID, err)
	}
	slices.Sort(r.DeletedVisualMatchIDs)
	slices.Sort(r.DeletedShoppingResultIDs)
	return r, nil
}

// IsDeleted reports whether the listing was removed from the item.
func (s *Store) IsDeleted(ctx context.Context, itemID, listingID string) (bool, error) {
	r, err := s.Load(ctx, itemID)
	if err != nil {
		return false, err
	}
	return r.Contains(listingID), nil
}

// MarkDeleted records the deletion and persists it before returning.
// Marking an already deleted listing is a no-op.
func (s *Store) MarkDeleted(ctx context.Context, itemID, listingID string, kind domain.ListingKind) error {
	if itemID == "" || listingID == "" {
		return fmt.Errorf("%w: item and listing IDs are required", domain.ErrInvalidRequest)
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown listing kind %q", domain.ErrInvalidRequest, kind)
	}

	key := recordKey(itemID)
	unlock := s.locks.Lock(key)
	defer unlock()

	r, err := s.Load(ctx, itemID)
	if err != nil {
		return err
	}
	if !r.add(kind, listingID) {
		return nil
	}

	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding curation for %s: %w", itemID, err)
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("saving curation for %s: %w", itemID, err)
	}

	metrics.CurationDeletionsTotal.WithLabelValues(string(kind)).Inc()
	s.logger.Debug("listing curated out",
		"item_id", itemID, "listing_id", listingID, "kind", kind)
	return nil
}

// FilterOut returns listings minus the item's deleted ones, order kept.
func (s *Store) FilterOut(ctx context.Context, itemID string, listings []domain.Listing) ([]domain.Listing, error) {
	r, err := s.Load(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return Filter(&r, listings), nil
}

// Filter applies an already loaded record.
func Filter(r *Record, listings []domain.Listing) []domain.Listing {
	out := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		if !r.Contains(l.ID) {
			out = append(out, l)
		}
	}
	return out
}

// DeleteItem drops the item's record entirely.
func (s *Store) DeleteItem(ctx context.Context, itemID string) error {
	key := recordKey(itemID)
	unlock := s.locks.Lock(key)
	defer unlock()

	if err := s.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting curation for %s: %w", itemID, err)
	}
	return nil
}

// Items lists the IDs of items that have a record.
func (s *Store) Items(ctx context.Context) ([]string, error) {
	keys, err := s.kv.KeysWithPrefix(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing curation records: %w", err)
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strings.TrimPrefix(k, keyPrefix)
	}
	return ids, nil
}
