// Package identity resolves operating-system callers to application
// identities and their granted capabilities.
//
// Resolution is a pure function from an opaque caller token to a Caller
// value: no global state is consulted, and the result is immutable for the
// duration of one operation. Capability grants are read from the grant
// source on every resolution so that a revocation takes effect on the next
// filesystem call.
package identity

import (
	"sync"

	"github.com/LightningFastRom/mediafs/pkg/storage"
)

// FirstApplicationUID is the lowest uid assigned to an installed
// application. Callers below this threshold are system components (root,
// shell, core daemons) and are not subject to scoped-storage restrictions.
const FirstApplicationUID = 10000

// Token is the opaque caller-context token carried by every filesystem
// call. At the FUSE boundary it is the kernel-reported uid of the calling
// process.
type Token uint32

// Caller is the resolved identity of one calling application.
type Caller struct {
	// UID is the numeric OS-level user id of the caller.
	UID uint32

	// Package is the application package name, empty for unknown callers.
	Package string

	// ReadExternal reports the broad storage-read grant
	// (READ_EXTERNAL_STORAGE).
	ReadExternal bool

	// WriteExternal reports the broad storage-write grant
	// (WRITE_EXTERNAL_STORAGE).
	WriteExternal bool

	// System marks privileged system callers that bypass scoping entirely.
	System bool
}

// BroadRead reports whether the caller may see media contributed by other
// applications.
func (c Caller) BroadRead() bool {
	return c.System || c.ReadExternal
}

// BroadWrite reports whether the caller may modify files it does not own.
func (c Caller) BroadWrite() bool {
	return c.System || c.WriteExternal
}

// OwnerOf reports whether the caller's package matches the given owner.
// System callers own everything; an empty owner (system-contributed file)
// is owned by no application caller.
func (c Caller) OwnerOf(owner string) bool {
	if c.System {
		return true
	}
	return owner != "" && c.Package == owner
}

// Grants is the capability grant source, backed externally by the
// permission system. Implementations must return the current grant state on
// every call; the resolver never caches beyond one resolution.
type Grants interface {
	// Granted returns the broad-read and broad-write grants for a package.
	Granted(pkg string) (read, write bool)
}

// StaticGrants is an in-memory Grants implementation, mutable at runtime.
// It doubles as the production source when grants are configured statically
// and as the synthetic grant store in tests.
type StaticGrants struct {
	mu     sync.RWMutex
	grants map[string]grantPair
}

type grantPair struct {
	read  bool
	write bool
}

// NewStaticGrants returns an empty grant store.
func NewStaticGrants() *StaticGrants {
	return &StaticGrants{grants: make(map[string]grantPair)}
}

// Grant sets the broad-read and broad-write grants for a package.
func (g *StaticGrants) Grant(pkg string, read, write bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grants[pkg] = grantPair{read: read, write: write}
}

// Revoke removes all grants from a package.
func (g *StaticGrants) Revoke(pkg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.grants, pkg)
}

// Granted implements Grants.
func (g *StaticGrants) Granted(pkg string) (read, write bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p := g.grants[pkg]
	return p.read, p.write
}

// Resolver maps caller tokens to application identities.
type Resolver struct {
	mu       sync.RWMutex
	packages map[Token]string
	grants   Grants
}

// NewResolver returns a resolver reading capability state from the given
// grant source.
func NewResolver(grants Grants) *Resolver {
	return &Resolver{
		packages: make(map[Token]string),
		grants:   grants,
	}
}

// Register binds a caller token to a package name, as happens when the
// package manager assigns a uid at install time.
func (r *Resolver) Register(token Token, pkg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packages[token] = pkg
}

// Unregister removes a token binding, as happens on uninstall.
func (r *Resolver) Unregister(token Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.packages, token)
}

// Resolve returns the caller identity for a token.
//
// System uids resolve to a privileged caller. Application uids without a
// registered package resolve to an anonymous caller with no capabilities;
// they may still use public directories by exact name but own nothing.
func (r *Resolver) Resolve(token Token) (Caller, error) {
	if uint32(token) < FirstApplicationUID {
		return Caller{UID: uint32(token), System: true}, nil
	}

	r.mu.RLock()
	pkg := r.packages[token]
	r.mu.RUnlock()

	caller := Caller{UID: uint32(token), Package: pkg}
	if pkg == "" {
		return caller, nil
	}

	if r.grants == nil {
		return Caller{}, storage.NewUnavailable("")
	}
	caller.ReadExternal, caller.WriteExternal = r.grants.Granted(pkg)
	return caller, nil
}
