// Package framework provides the end-to-end test environment: a fully
// assembled mediation stack (ledger, index, policy engine, volume) with
// helpers that act on behalf of specific caller uids.
package framework

import (
	"io"
	"os"
	"testing"

	"github.com/LightningFastRom/mediafs/pkg/identity"
	"github.com/LightningFastRom/mediafs/pkg/index"
	"github.com/LightningFastRom/mediafs/pkg/ledger"
	ledgerbadger "github.com/LightningFastRom/mediafs/pkg/ledger/badger"
	ledgermem "github.com/LightningFastRom/mediafs/pkg/ledger/memory"
	"github.com/LightningFastRom/mediafs/pkg/storage/policy"
	"github.com/LightningFastRom/mediafs/pkg/vfs"
)

// StoreType selects the ledger backend under test.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeBadger StoreType = "badger"
)

// StoreTypes lists every backend the scenario suites run against.
var StoreTypes = []StoreType{StoreTypeMemory, StoreTypeBadger}

// TestEnv is one assembled mediation stack.
type TestEnv struct {
	t testing.TB

	Volume   *vfs.Volume
	Index    *index.MemoryIndex
	Grants   *identity.StaticGrants
	Resolver *identity.Resolver

	ledger ledger.Store
}

// NewTestEnv assembles a stack over a temporary volume root with the given
// ledger backend.
func NewTestEnv(t testing.TB, storeType StoreType) *TestEnv {
	t.Helper()

	var store ledger.Store
	switch storeType {
	case StoreTypeBadger:
		s, err := ledgerbadger.Open(t.TempDir())
		if err != nil {
			t.Fatalf("failed to open badger ledger: %v", err)
		}
		store = s
	default:
		store = ledgermem.New()
	}
	t.Cleanup(func() { store.Close() })

	idx := index.NewMemoryIndex()
	grants := identity.NewStaticGrants()
	resolver := identity.NewResolver(grants)
	engine := policy.New(store, idx, policy.Options{})

	vol, err := vfs.New(t.TempDir(), resolver, engine, idx, vfs.Options{})
	if err != nil {
		t.Fatalf("failed to open volume: %v", err)
	}

	return &TestEnv{
		t:        t,
		Volume:   vol,
		Index:    idx,
		Grants:   grants,
		Resolver: resolver,
		ledger:   store,
	}
}

// Install registers a package under a uid with the given grants.
func (e *TestEnv) Install(uid uint32, pkg string, read, write bool) {
	e.Resolver.Register(identity.Token(uid), pkg)
	e.Grants.Grant(pkg, read, write)
}

// Uninstall removes a package's uid binding and grants.
func (e *TestEnv) Uninstall(uid uint32, pkg string) {
	e.Resolver.Unregister(identity.Token(uid))
	e.Grants.Revoke(pkg)
}

// WriteFileAs creates a file with content on behalf of uid.
func (e *TestEnv) WriteFileAs(uid uint32, rel string, content []byte) error {
	h, err := e.Volume.Open(e.t.Context(), identity.Token(uid), rel,
		os.O_WRONLY|os.O_CREATE|os.O_EXCL)
	if err != nil {
		return err
	}
	if _, err := h.Write(content); err != nil {
		h.Close()
		return err
	}
	return h.Close()
}

// ReadFileAs reads a file's content on behalf of uid.
func (e *TestEnv) ReadFileAs(uid uint32, rel string) ([]byte, error) {
	h, err := e.Volume.Open(e.t.Context(), identity.Token(uid), rel, os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	return io.ReadAll(h)
}

// ListAs lists a directory on behalf of uid, returning entry names.
func (e *TestEnv) ListAs(uid uint32, rel string) ([]string, error) {
	entries, err := e.Volume.ReadDir(e.t.Context(), identity.Token(uid), rel)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	return names, nil
}

// DeleteAs unlinks a file on behalf of uid.
func (e *TestEnv) DeleteAs(uid uint32, rel string) error {
	return e.Volume.Unlink(e.t.Context(), identity.Token(uid), rel)
}

// RenameAs renames a path on behalf of uid.
func (e *TestEnv) RenameAs(uid uint32, oldRel, newRel string) error {
	return e.Volume.Rename(e.t.Context(), identity.Token(uid), oldRel, newRel)
}

// MkdirAs creates a directory on behalf of uid.
func (e *TestEnv) MkdirAs(uid uint32, rel string) error {
	return e.Volume.Mkdir(e.t.Context(), identity.Token(uid), rel)
}

// AssertVisible fails the test unless name appears in uid's listing of dir.
func (e *TestEnv) AssertVisible(uid uint32, dir, name string) {
	e.t.Helper()
	names, err := e.ListAs(uid, dir)
	if err != nil {
		e.t.Fatalf("list %s as %d: %v", dir, uid, err)
	}
	for _, n := range names {
		if n == name {
			return
		}
	}
	e.t.Errorf("expected %s to be visible in %s for uid %d, got %v", name, dir, uid, names)
}

// AssertHidden fails the test if name appears in uid's listing of dir.
func (e *TestEnv) AssertHidden(uid uint32, dir, name string) {
	e.t.Helper()
	names, err := e.ListAs(uid, dir)
	if err != nil {
		e.t.Fatalf("list %s as %d: %v", dir, uid, err)
	}
	for _, n := range names {
		if n == name {
			e.t.Errorf("expected %s to be hidden in %s for uid %d", name, dir, uid)
		}
	}
}
