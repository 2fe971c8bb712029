// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package embeddings

import (
	"encoding/binary"
	"math"
	"time"

	"gorm.io/gorm"
)

// DefaultDimensions matches text-embedding-3-small
const DefaultDimensions = 1536

// RecordEmbedding stores the embedding vector of one record. The owner
// and memory columns scope searches the same way as the record rows
// they mirror.
type RecordEmbedding struct {
	RecordID    uint      `gorm:"primaryKey" json:"record_id"`
	MemoryID    uint      `gorm:"index;not null" json:"memory_id"`
	UserID      string    `gorm:"index;not null" json:"user_id"`
	ContentHash string    `gorm:"not null" json:"content_hash"`
	Dimensions  int       `gorm:"not null" json:"dimensions"`
	Vector      []byte    `gorm:"type:blob;not null" json:"-"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

// TableName specifies the table name for RecordEmbedding
func (RecordEmbedding) TableName() string {
	return "memvault_record_embeddings"
}

// Migrate runs migrations for the embeddings table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&RecordEmbedding{})
}

// vectorToBlob converts a float32 slice to little-endian bytes for
// blob storage
func vectorToBlob(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// blobToVector converts stored bytes back to a float32 slice
func blobToVector(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// cosineSimilarity calculates cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / float32(math.Sqrt(float64(normA))*math.Sqrt(float64(normB)))
}
