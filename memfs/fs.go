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

// Package memfs implements an in-process, heap-only virtual filesystem:
// directories and files held in a shared node table behind one global tree
// lock, with per-file reader/writer locking, quota-tracked byte storage, and
// atomic, rollback-safe tree operations (ImportTree, CopyTree).
//
// LOCK ORDERING
//
// 1. FS.mu, the global tree lock, held for every structural operation and
//    for minting a handle. No operation acquires it recursively.
// 2. A file's node.File.Lock, acquired while FS.mu is held during open and
//    released, without FS.mu held, when the handle closes.
// 3. The quota.Manager's own mutex, held only for its own critical sections
//    and never while holding (2).
//
// I/O performed through an already-open Handle (Read/Write/Seek/Truncate)
// takes only (2), briefly (3) for reservations, and never (1).
package memfs

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jacobsa/syncutil"

	"github.com/memfsdev/memfs/clock"
	"github.com/memfsdev/memfs/internal/config"
	"github.com/memfsdev/memfs/internal/mfserrors"
	"github.com/memfsdev/memfs/internal/memfslog"
	"github.com/memfsdev/memfs/internal/metrics"
	"github.com/memfsdev/memfs/internal/node"
	"github.com/memfsdev/memfs/internal/quota"
	"github.com/memfsdev/memfs/internal/storage"
)

// FS is a single in-memory filesystem instance. The zero value is not
// usable; construct one with New.
type FS struct {
	id uuid.UUID

	cfg     config.Config
	clock   clock.Clock
	log     *slog.Logger
	metrics metrics.Recorder

	quota *quota.Manager

	/////////////////////////
	// Guarded by mu
	/////////////////////////

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	nodes *node.Table
}

// Option configures an FS at construction time.
type Option func(*FS)

// WithClock overrides the clock used for node timestamps. Tests should pass
// a clock.NewSimulatedClock for deterministic timestamps.
func WithClock(c clock.Clock) Option {
	return func(fs *FS) { fs.clock = c }
}

// WithLogger overrides the *slog.Logger used for instance-creation,
// promotion and unclosed-handle diagnostics. The default discards all output.
func WithLogger(l *slog.Logger) Option {
	return func(fs *FS) { fs.log = l }
}

// WithRecorder overrides the metrics.Recorder instrumentation sink. The
// default is metrics.NoopRecorder{}.
func WithRecorder(r metrics.Recorder) Option {
	return func(fs *FS) { fs.metrics = r }
}

// New constructs an empty filesystem from cfg, which must already satisfy
// config.Validate (config.Load does this for you).
func New(cfg config.Config, opts ...Option) (*FS, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	fs := &FS{
		id:      uuid.New(),
		cfg:     cfg,
		clock:   clock.RealClock{},
		log:     memfslog.Noop(),
		metrics: metrics.NoopRecorder{},
		quota:   quota.New(int64(cfg.MaxQuota)),
	}
	for _, opt := range opts {
		opt(fs)
	}

	fs.nodes = node.NewTable(cfg.MaxNodes, fs.clock.Now())
	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)

	fs.log.Debug("filesystem created", "instance_id", fs.id, "max_quota", cfg.MaxQuota)
	fs.reportMetrics()
	return fs, nil
}

// ID returns the filesystem instance's unique id, used to disambiguate log
// lines when multiple filesystems are embedded in one process.
func (fs *FS) ID() uuid.UUID { return fs.id }

func (fs *FS) reportMetrics() {
	maximum, used, _ := fs.quota.Snapshot()
	fs.metrics.SetQuota(used, maximum)
	fs.metrics.SetNodeCount(fs.nodes.Count())
}

func (fs *FS) checkInvariants() {
	// INVARIANT: the root directory (id 0) always exists and is a directory.
	if _, ok := fs.nodes.Get(fs.nodes.RootID()).(*node.Directory); !ok {
		panic("memfs: root node missing or not a directory")
	}

	// INVARIANT: every directory's children map resolves to a live node id.
	fs.walkNodesForInvariants(fs.nodes.Root())
}

func (fs *FS) walkNodesForInvariants(dir *node.Directory) {
	for name, id := range dir.Children {
		child := fs.nodes.Get(id)
		if child == nil {
			panic(fmt.Sprintf("memfs: dangling child %q -> id %d", name, id))
		}
		if childDir, ok := child.(*node.Directory); ok {
			fs.walkNodesForInvariants(childDir)
		}
	}
}

/////////////////////////
// Path resolution (caller must hold fs.mu)
/////////////////////////

// resolvePath returns the node at npath (already normalized), or nil if no
// such node exists.
func (fs *FS) resolvePath(npath string) node.Node {
	if npath == "/" {
		return fs.nodes.Root()
	}
	var current node.Node = fs.nodes.Root()
	for _, part := range splitSegments(npath) {
		dir, ok := current.(*node.Directory)
		if !ok {
			return nil
		}
		id, ok := dir.Children[part]
		if !ok {
			return nil
		}
		current = fs.nodes.Get(id)
		if current == nil {
			return nil
		}
	}
	return current
}

// resolveParent returns npath's parent directory and base name. ok is false
// if the parent path does not resolve to a directory (including npath ==
// "/", which has no parent).
func (fs *FS) resolveParent(npath string) (parent *node.Directory, name string, ok bool) {
	dirPath, base, err := splitPath(npath)
	if err != nil || dirPath == "" {
		return nil, "", false
	}
	parentNode := fs.resolvePath(dirPath)
	dir, isDir := parentNode.(*node.Directory)
	if !isDir {
		return nil, "", false
	}
	return dir, base, true
}

func (fs *FS) createStorage() storage.Storage {
	overhead := int64(fs.cfg.ChunkOverheadEstimate)
	limit := int64(fs.cfg.PromotionHardLimit)
	switch fs.cfg.DefaultStorage {
	case config.StorageRandomAccess:
		return storage.NewRandomAccess()
	case config.StorageSequential:
		return storage.NewSequential(overhead, limit, false)
	default:
		return storage.NewSequential(overhead, limit, true)
	}
}

// createFile allocates a new file node and attaches it under npath's parent.
// Caller must hold fs.mu and have already verified npath does not resolve.
func (fs *FS) createFile(npath string) (*node.File, error) {
	parent, name, ok := fs.resolveParent(npath)
	if !ok {
		return nil, fmt.Errorf("parent directory does not exist for %q: %w", npath, mfserrors.ErrNotFound)
	}
	f, err := fs.nodes.AllocFile(fs.createStorage(), fs.clock.Now())
	if err != nil {
		return nil, err
	}
	parent.Children[name] = f.NodeID()
	return f, nil
}
