package owner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveKnownKinds(t *testing.T) {
	r := DefaultResolver()

	ow, err := r.Resolve(7, "user")
	require.NoError(t, err)
	require.Equal(t, Owner{Kind: KindUser, ID: 7}, ow)

	ow, err = r.Resolve(3, "vendor")
	require.NoError(t, err)
	require.Equal(t, Owner{Kind: KindVendor, ID: 3}, ow)
}

func TestResolveIsDeterministic(t *testing.T) {
	r := DefaultResolver()

	first, err := r.Resolve(42, "vendor")
	require.NoError(t, err)
	second, err := r.Resolve(42, "vendor")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestResolveUnknownKind(t *testing.T) {
	r := DefaultResolver()

	_, err := r.Resolve(1, "admin")
	require.Error(t, err)

	_, err = r.Resolve(1, "")
	require.Error(t, err)
}

func TestNewResolverRejectsBadSets(t *testing.T) {
	_, err := NewResolver()
	require.Error(t, err)

	_, err = NewResolver(KindUser, KindUser)
	require.Error(t, err)

	_, err = NewResolver(Kind(""))
	require.Error(t, err)
}
