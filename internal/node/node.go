// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package node holds the id-keyed node graph backing a memfs filesystem:
// directories (a name-to-id child map) and files (byte storage plus a
// per-file lock). All structural mutation — creating, detaching, or
// reparenting a node — is serialized by the filesystem's global tree lock,
// owned by the memfs package, not by this package; the one exception is
// File.Lock, which governs open/close exclusion independent of the tree
// lock.
package node

import (
	"time"

	"github.com/memfsdev/memfs/internal/mfserrors"
	"github.com/memfsdev/memfs/internal/rwmutex"
	"github.com/memfsdev/memfs/internal/storage"
)

// ID identifies a node within a single filesystem instance. The root
// directory is always ID 0.
type ID int64

// Node is implemented by *Directory and *File.
type Node interface {
	NodeID() ID
}

// Directory is an index node: a name-to-child-id map plus timestamps. It
// holds no byte data of its own.
type Directory struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	id ID

	/////////////////////////
	// Mutable state
	/////////////////////////

	// GUARDED_BY(the owning Table's caller — memfs's global tree lock)
	Children map[string]ID

	// GUARDED_BY(same as Children)
	CreatedAt  time.Time
	ModifiedAt time.Time
}

func newDirectory(id ID, now time.Time) *Directory {
	return &Directory{
		id:         id,
		Children:   make(map[string]ID),
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

func (d *Directory) NodeID() ID { return d.id }

// File is a data node: byte storage behind a Storage implementation, an
// open/close exclusion lock, and a generation counter bumped on every
// mutation.
type File struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	id ID

	/////////////////////////
	// Mutable state
	/////////////////////////

	// Lock serializes open handles against this file: any number of
	// concurrent readers, or a single writer, never both. It is acquired
	// while minting a handle (under the tree lock) and released when the
	// handle closes (without the tree lock held).
	Lock *rwmutex.RWMutex

	// Storage is replaced in place when a Sequential file is promoted to
	// RandomAccess by an out-of-order write.
	//
	// GUARDED_BY(Lock)
	Storage storage.Storage

	// GUARDED_BY(Lock)
	Generation int64

	// GUARDED_BY(Lock)
	CreatedAt  time.Time
	ModifiedAt time.Time
}

func newFile(id ID, s storage.Storage, now time.Time) *File {
	return &File{
		id:         id,
		Lock:       rwmutex.New(),
		Storage:    s,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

func (f *File) NodeID() ID { return f.id }

var (
	_ Node = (*Directory)(nil)
	_ Node = (*File)(nil)
)

// Table owns every node in a filesystem instance, keyed by ID, plus
// monotonic ID allocation. All of its methods assume the caller already
// holds the filesystem's global tree lock — Table performs no locking of
// its own.
type Table struct {
	nodes  map[ID]Node
	nextID ID

	// MaxNodes is a hard cap on len(nodes), including the root directory.
	// Zero means unlimited.
	MaxNodes int
}

// NewTable returns an empty Table and allocates the root directory (ID 0)
// using now as its creation timestamp.
func NewTable(maxNodes int, now time.Time) *Table {
	t := &Table{
		nodes:    make(map[ID]Node),
		MaxNodes: maxNodes,
	}
	root := newDirectory(t.allocID(), now)
	t.nodes[root.id] = root
	return t
}

func (t *Table) allocID() ID {
	id := t.nextID
	t.nextID++
	return id
}

// RootID returns the id of the root directory, always 0.
func (t *Table) RootID() ID { return 0 }

// Root returns the root directory.
func (t *Table) Root() *Directory {
	return t.nodes[t.RootID()].(*Directory)
}

// Get returns the node with the given id, or nil if it does not exist.
func (t *Table) Get(id ID) Node {
	return t.nodes[id]
}

// Count returns the number of live nodes, including the root.
func (t *Table) Count() int {
	return len(t.nodes)
}

// checkNodeLimit returns NodeLimitExceededError if allocating one more node
// would exceed MaxNodes.
func (t *Table) checkNodeLimit() error {
	if t.MaxNodes > 0 && len(t.nodes) >= t.MaxNodes {
		return &mfserrors.NodeLimitExceededError{Current: len(t.nodes), Limit: t.MaxNodes}
	}
	return nil
}

// AllocDirectory allocates and inserts a new, empty directory.
func (t *Table) AllocDirectory(now time.Time) (*Directory, error) {
	if err := t.checkNodeLimit(); err != nil {
		return nil, err
	}
	d := newDirectory(t.allocID(), now)
	t.nodes[d.id] = d
	return d, nil
}

// AllocFile allocates and inserts a new file backed by s.
func (t *Table) AllocFile(s storage.Storage, now time.Time) (*File, error) {
	if err := t.checkNodeLimit(); err != nil {
		return nil, err
	}
	f := newFile(t.allocID(), s, now)
	t.nodes[f.id] = f
	return f, nil
}

// Delete removes the node with the given id from the table. It does not
// touch any parent's child map — callers detach the entry themselves.
func (t *Table) Delete(id ID) {
	delete(t.nodes, id)
}

// Reinsert re-adds a previously deleted node under its original id,
// without allocating a new one. It is used by rollback paths that restore
// a node they had provisionally removed.
func (t *Table) Reinsert(n Node) {
	t.nodes[n.NodeID()] = n
}
