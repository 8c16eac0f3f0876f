package model

import (
	"time"

	"github.com/nickyhof/CommitDB/core"
)

// Commit is an immutable, content-addressed snapshot of {schema,
// instances} with an optional parent link. Hash is the content hash of
// the canonical, uncompressed CommitData bytes (see package canon);
// Payload is that serialization, compressed.
type Commit struct {
	Hash               string         `json:"hash"`
	DatabaseId         string         `json:"database_id"`
	ParentHash         *string        `json:"parent_hash,omitempty"`
	Author             *core.Identity `json:"author,omitempty"`
	Message            *string        `json:"message,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	DataSize           int64          `json:"data_size"`
	SchemaClassesCount int            `json:"schema_classes_count"`
	InstancesCount     int            `json:"instances_count"`
	Payload            []byte         `json:"-"`
}

// NewCommit is the input to Store.CreateCommit: everything about a commit
// except the hash, which the store (or canon) derives from Payload.
type NewCommit struct {
	DatabaseId string
	ParentHash *string
	Author     *core.Identity
	Message    *string
	Data       CommitData
}
