// Package vfs implements the mediated volume: the filesystem call boundary
// where every operation against the shared storage area is intercepted,
// attributed to a caller, and decided by the policy engine before touching
// the physical filesystem.
package vfs

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/LightningFastRom/mediafs/pkg/identity"
	"github.com/LightningFastRom/mediafs/pkg/index"
	"github.com/LightningFastRom/mediafs/pkg/metrics"
	"github.com/LightningFastRom/mediafs/pkg/storage"
	"github.com/LightningFastRom/mediafs/pkg/storage/classify"
	"github.com/LightningFastRom/mediafs/pkg/storage/policy"
)

// wellKnownDirs are provisioned at volume creation so every caller finds
// the standard public structure in place.
var wellKnownDirs = []string{
	"DCIM",
	"Pictures",
	"Movies",
	"Music",
	"Download",
	"Android/data",
	"Android/media",
}

// Volume mediates access to one shared storage volume rooted at a physical
// directory.
//
// All paths crossing the boundary are caller-supplied and are normalized
// before use; all decisions are delegated to the policy engine. The volume
// itself only sequences physical operations with their ledger side effects
// and keeps the two atomic from the caller's point of view.
type Volume struct {
	root     string
	resolver *identity.Resolver
	engine   *policy.Engine
	index    index.Index
	metrics  metrics.VolumeMetrics
	locks    pathLocks
}

// Options configures optional volume collaborators.
type Options struct {
	// Metrics receives per-operation observations. Nil means no-op.
	Metrics metrics.VolumeMetrics
}

// New opens a mediated volume over the physical directory root, creating
// it and the well-known public structure if absent.
func New(root string, resolver *identity.Resolver, engine *policy.Engine, contentIndex index.Index, opts Options) (*Volume, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, storage.NewIOError("failed to create volume root: "+err.Error(), root)
	}
	for _, dir := range wellKnownDirs {
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0o755); err != nil {
			return nil, storage.NewIOError("failed to provision "+dir+": "+err.Error(), root)
		}
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.NewNoopVolumeMetrics()
	}

	return &Volume{
		root:     root,
		resolver: resolver,
		engine:   engine,
		index:    contentIndex,
		metrics:  m,
	}, nil
}

// Root returns the physical root directory of the volume.
func (v *Volume) Root() string {
	return v.root
}

// physical maps a normalized volume-relative path to its location on disk.
func (v *Volume) physical(rel string) string {
	return filepath.Join(v.root, filepath.FromSlash(rel))
}

// begin resolves the caller and normalizes the target path; every exported
// operation starts here.
func (v *Volume) begin(ctx context.Context, token identity.Token, p string) (identity.Caller, string, error) {
	if err := ctx.Err(); err != nil {
		return identity.Caller{}, "", err
	}
	caller, err := v.resolver.Resolve(token)
	if err != nil {
		return identity.Caller{}, "", err
	}
	rel, ok := classify.Normalize(p)
	if !ok {
		return identity.Caller{}, "", storage.NewNotFound(p)
	}
	return caller, rel, nil
}

// observe records one mediated operation outcome.
func (v *Volume) observe(op string, decision storage.Decision, start time.Time) {
	v.metrics.ObserveOperation(op, decision.String(), time.Since(start))
}

// pathLocks serializes writes per path with striped mutexes. Two distinct
// paths may share a stripe; that costs contention, never correctness.
type pathLocks struct {
	stripes [64]sync.Mutex
}

func (l *pathLocks) stripe(rel string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(rel))
	return h.Sum32() % uint32(len(l.stripes))
}

// lock acquires the stripe for one path.
func (l *pathLocks) lock(rel string) func() {
	mu := &l.stripes[l.stripe(rel)]
	mu.Lock()
	return mu.Unlock
}

// lockPair acquires the stripes for two paths in stripe order so
// concurrent renames cannot deadlock.
func (l *pathLocks) lockPair(a, b string) func() {
	sa, sb := l.stripe(a), l.stripe(b)
	if sa == sb {
		mu := &l.stripes[sa]
		mu.Lock()
		return mu.Unlock
	}
	if sa > sb {
		sa, sb = sb, sa
	}
	first, second := &l.stripes[sa], &l.stripes[sb]
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
