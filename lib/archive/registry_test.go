package archive

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryReturnsExistingInstance(t *testing.T) {
	arch := New(newFakeSite())

	a := arch.Band("72")
	b := arch.Band("72")
	require.Same(t, a, b)

	// same id under a different kind is a different object
	rel := arch.Release("72")
	require.NotSame(t, Entity(a), Entity(rel))
}

func TestRegistryConcurrentCreate(t *testing.T) {
	arch := New(newFakeSite())

	const workers = 32
	results := make([]*Band, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = arch.Band("19282")
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.Same(t, results[0], results[i])
	}
}

func TestReindexLeavesAlias(t *testing.T) {
	arch := New(newFakeSite())

	u := arch.UserByName("Alturiak")
	u.adoptNumericId("96248")

	require.Equal(t, "96248", u.Id())
	require.Equal(t, "Alturiak", u.exportKey())

	// later discoveries by the old display name resolve to the same user
	require.Same(t, u, arch.UserByName("Alturiak"))
	require.Same(t, Entity(u), arch.Registry().Lookup(KindUser, "96248"))
}

func TestReindexConflictKeepsOriginal(t *testing.T) {
	arch := New(newFakeSite())

	older := arch.UserByName("96248")
	newer := arch.UserByName("Alturiak")
	newer.adoptNumericId("96248")

	// the occupied slot wins; the newer user keeps its provisional id
	require.Same(t, Entity(older), arch.Registry().Lookup(KindUser, "96248"))
	require.Equal(t, "Alturiak", newer.Id())
}

func TestAdoptNumericIdIsOneShot(t *testing.T) {
	arch := New(newFakeSite())

	u := arch.UserByName("Hexenmacht46290")
	u.adoptNumericId("12345")
	u.adoptNumericId("99999")

	require.Equal(t, "12345", u.Id())
	require.Equal(t, "Hexenmacht46290", u.exportKey())
}
