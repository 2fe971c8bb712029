// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package embeddings indexes record content as embedding vectors and
// ranks a user's records by relevance to a query. Vectors are cached by
// content hash, so re-indexing unchanged content never calls the
// provider, and searches are always scoped to one (user, memory) pair.
package embeddings

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultSearchLimit is the number of matches returned when the caller
// does not specify one
const DefaultSearchLimit = 3

// Match is one search result
type Match struct {
	RecordID   uint
	Similarity float32
}

// Service generates, caches and searches record embeddings
type Service struct {
	db         *gorm.DB
	client     Client
	model      string
	dimensions int
	enabled    bool
	log        *logrus.Logger
}

// NewService creates a new embedding service
func NewService(db *gorm.DB, client Client, model string, dimensions int, log *logrus.Logger) *Service {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		db:         db,
		client:     client,
		model:      model,
		dimensions: dimensions,
		enabled:    true,
		log:        log,
	}
}

// SetEnabled enables or disables the service
func (s *Service) SetEnabled(enabled bool) {
	s.enabled = enabled
}

// IsEnabled returns whether the service is enabled
func (s *Service) IsEnabled() bool {
	return s.enabled
}

// IndexRecord generates and stores the embedding for one record. An
// unchanged content hash is a cache hit and skips the provider call.
func (s *Service) IndexRecord(ctx context.Context, userID string, memoryID, recordID uint, content string) error {
	if !s.enabled {
		return nil
	}

	hash := contentHash(content)

	var cached RecordEmbedding
	err := s.db.WithContext(ctx).
		Where("record_id = ? AND content_hash = ?", recordID, hash).
		First(&cached).Error
	if err == nil {
		return nil
	}

	vector, err := s.client.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	emb := RecordEmbedding{
		RecordID:    recordID,
		MemoryID:    memoryID,
		UserID:      userID,
		ContentHash: hash,
		Dimensions:  len(vector),
		Vector:      vectorToBlob(vector),
		CreatedAt:   time.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content_hash", "dimensions", "vector", "created_at"}),
	}).Create(&emb).Error
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}

	return nil
}

// RemoveRecord deletes the embedding of one record
func (s *Service) RemoveRecord(ctx context.Context, recordID uint) error {
	return s.db.WithContext(ctx).
		Where("record_id = ?", recordID).
		Delete(&RecordEmbedding{}).Error
}

// RemoveMemory deletes all embeddings under one memory
func (s *Service) RemoveMemory(ctx context.Context, memoryID uint) error {
	return s.db.WithContext(ctx).
		Where("memory_id = ?", memoryID).
		Delete(&RecordEmbedding{}).Error
}

// Search ranks the records of one (user, memory) pair by similarity to
// the query, highest first. Records with no positive similarity are
// excluded; a disabled service returns no matches.
func (s *Service) Search(ctx context.Context, userID string, memoryID uint, query string, limit int) ([]Match, error) {
	if !s.enabled {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	queryVector, err := s.client.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var stored []RecordEmbedding
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND memory_id = ?", userID, memoryID).
		Find(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}

	matches := make([]Match, 0, len(stored))
	for _, emb := range stored {
		vector := blobToVector(emb.Vector)
		if vector == nil {
			continue
		}
		similarity := cosineSimilarity(queryVector, vector)
		if similarity <= 0 {
			continue
		}
		matches = append(matches, Match{
			RecordID:   emb.RecordID,
			Similarity: similarity,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

// Count returns the number of indexed records
func (s *Service) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&RecordEmbedding{}).Count(&count).Error
	return count, err
}

// contentHash computes a SHA256 hash of the content
func contentHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash[:16])
}
