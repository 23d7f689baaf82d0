package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LightningFastRom/mediafs/pkg/storage"
)

func TestResolveSystemUIDs(t *testing.T) {
	r := NewResolver(NewStaticGrants())

	for _, uid := range []uint32{0, 1000, 2000, FirstApplicationUID - 1} {
		caller, err := r.Resolve(Token(uid))
		require.NoError(t, err)
		assert.True(t, caller.System, "uid %d is a system caller", uid)
		assert.True(t, caller.BroadRead())
		assert.True(t, caller.BroadWrite())
		assert.True(t, caller.OwnerOf("com.any.pkg"))
	}
}

func TestResolveRegisteredPackage(t *testing.T) {
	grants := NewStaticGrants()
	r := NewResolver(grants)
	r.Register(10100, "com.example.app")
	grants.Grant("com.example.app", true, false)

	caller, err := r.Resolve(10100)
	require.NoError(t, err)
	assert.Equal(t, "com.example.app", caller.Package)
	assert.False(t, caller.System)
	assert.True(t, caller.ReadExternal)
	assert.False(t, caller.WriteExternal)
	assert.True(t, caller.OwnerOf("com.example.app"))
	assert.False(t, caller.OwnerOf("com.other.app"))
	assert.False(t, caller.OwnerOf(""), "system-contributed files are owned by no app")
}

func TestGrantsReadPerResolution(t *testing.T) {
	grants := NewStaticGrants()
	r := NewResolver(grants)
	r.Register(10100, "com.example.app")

	caller, err := r.Resolve(10100)
	require.NoError(t, err)
	assert.False(t, caller.BroadRead())

	// A revocation or grant takes effect on the next resolution, never on
	// a previously resolved caller.
	grants.Grant("com.example.app", true, true)
	assert.False(t, caller.BroadRead())

	caller, err = r.Resolve(10100)
	require.NoError(t, err)
	assert.True(t, caller.BroadRead())
	assert.True(t, caller.BroadWrite())

	grants.Revoke("com.example.app")
	caller, err = r.Resolve(10100)
	require.NoError(t, err)
	assert.False(t, caller.BroadRead())
}

func TestResolveUnregisteredAppUID(t *testing.T) {
	r := NewResolver(NewStaticGrants())

	caller, err := r.Resolve(10999)
	require.NoError(t, err)
	assert.Empty(t, caller.Package)
	assert.False(t, caller.System)
	assert.False(t, caller.BroadRead())
	assert.False(t, caller.OwnerOf(""))
}

func TestResolveWithoutGrantSource(t *testing.T) {
	r := NewResolver(nil)
	r.Register(10100, "com.example.app")

	_, err := r.Resolve(10100)
	require.Error(t, err)
	assert.True(t, storage.IsCode(err, storage.ErrUnavailable))

	// System resolution never consults grants.
	caller, err := r.Resolve(1000)
	require.NoError(t, err)
	assert.True(t, caller.System)
}

func TestUnregister(t *testing.T) {
	grants := NewStaticGrants()
	r := NewResolver(grants)
	r.Register(10100, "com.example.app")
	grants.Grant("com.example.app", true, true)

	r.Unregister(10100)

	caller, err := r.Resolve(10100)
	require.NoError(t, err)
	assert.Empty(t, caller.Package)
	assert.False(t, caller.BroadRead())
}
