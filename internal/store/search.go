// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package store

import (
	"context"
	"fmt"

	"github.com/memvault/memvault/internal/database"
)

// RelevantRecord is a record ranked by relevance to a query
type RelevantRecord struct {
	Record     database.MemoryRecord
	Similarity float32
}

// SearchRecords ranks the records of one of the caller's memories by
// relevance to the query, most relevant first. The ownership check runs
// first, so a foreign memory reports not-found exactly like the list
// operations. Without a search service the result is empty.
func (s *Store) SearchRecords(ctx context.Context, caller string, memoryID uint, query string, limit int) ([]RelevantRecord, error) {
	if _, err := s.GetMemory(ctx, caller, memoryID); err != nil {
		return nil, err
	}

	if s.search == nil || !s.search.IsEnabled() {
		return nil, nil
	}

	matches, err := s.search.Search(ctx, caller, memoryID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]uint, len(matches))
	for i, m := range matches {
		ids[i] = m.RecordID
	}

	var records []database.MemoryRecord
	err = s.db.WithContext(ctx).
		Where("id IN ? AND user_id = ?", ids, caller).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load matched records: %w", err)
	}

	byID := make(map[uint]database.MemoryRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	// Preserve ranking order; skip matches whose record vanished since
	// indexing
	results := make([]RelevantRecord, 0, len(matches))
	for _, m := range matches {
		rec, ok := byID[m.RecordID]
		if !ok {
			continue
		}
		results = append(results, RelevantRecord{
			Record:     rec,
			Similarity: m.Similarity,
		})
	}

	return results, nil
}
