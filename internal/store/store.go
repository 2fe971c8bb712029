// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package store is the CRUD surface over memories, records and chat
// messages. Every operation takes the verified caller identity
// explicitly; nothing reads it from ambient state. The ownership
// predicate gates each operation before it executes, chat inserts
// invoke the retention enforcer after commit, and memory updates stamp
// the mutation time server-side.
package store

import (
	"github.com/memvault/memvault/internal/embeddings"
	"github.com/memvault/memvault/internal/retention"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Store executes authorized CRUD operations against the database
type Store struct {
	db       *gorm.DB
	enforcer *retention.Enforcer
	search   *embeddings.Service
	log      *logrus.Logger
}

// New creates a store. The enforcer bounds chat transcripts after
// inserts; if nil, one with the default limit is created. The search
// service keeps record embeddings in step with record writes; nil
// disables relevance search.
func New(db *gorm.DB, enforcer *retention.Enforcer, search *embeddings.Service, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if enforcer == nil {
		enforcer = retention.NewEnforcer(db, retention.DefaultHistoryLimit, log)
	}
	return &Store{
		db:       db,
		enforcer: enforcer,
		search:   search,
		log:      log,
	}
}

// DB returns the underlying database handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// HistoryLimit returns the chat retention keep-count
func (s *Store) HistoryLimit() int {
	return s.enforcer.Limit()
}
