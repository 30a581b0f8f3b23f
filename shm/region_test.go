package shm

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nsSeq atomic.Uint64

// testNamespace returns a namespace unique to this test and removes
// everything created under it when the test ends.
func testNamespace(t *testing.T) string {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	ns := fmt.Sprintf("3col-test-%d-%d-%s", os.Getpid(), nsSeq.Add(1), name)
	t.Cleanup(func() {
		RemoveRegion(ns)
		RemoveSemaphoreSet(ns)
	})
	return ns
}

func createTestRegion(t *testing.T) (*Region, string) {
	t.Helper()
	ns := testNamespace(t)
	r, err := CreateRegion(ns)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, ns
}

func TestCreateRegion(t *testing.T) {
	t.Run("fresh region is zeroed", func(t *testing.T) {
		r, ns := createTestRegion(t)

		assert.False(t, r.Stopped())
		assert.Equal(t, 0, r.WriteCursor())
		assert.Equal(t, ns, r.Namespace())

		info, err := os.Stat(r.Path())
		require.NoError(t, err)
		assert.EqualValues(t, regionSize, info.Size())
	})

	t.Run("second create fails", func(t *testing.T) {
		_, ns := createTestRegion(t)

		_, err := CreateRegion(ns)
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrExist)
	})
}

func TestOpenRegion(t *testing.T) {
	t.Run("missing region", func(t *testing.T) {
		ns := testNamespace(t)
		_, err := OpenRegion(ns)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("wrong size is rejected", func(t *testing.T) {
		ns := testNamespace(t)
		require.NoError(t, os.WriteFile(RegionPath(ns), make([]byte, 16), 0600))

		_, err := OpenRegion(ns)
		assert.ErrorIs(t, err, ErrRegionSize)
	})

	t.Run("views share memory", func(t *testing.T) {
		owner, ns := createTestRegion(t)

		client, err := OpenRegion(ns)
		require.NoError(t, err)
		defer client.Close()

		idx, err := client.WriteSlot([]byte("0-1 1-2"))
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
		assert.Equal(t, 1, owner.WriteCursor())

		buf := make([]byte, SlotLen)
		n := owner.ReadSlot(idx, buf)
		assert.Equal(t, "0-1 1-2", string(buf[:n]))

		owner.SetStop()
		assert.True(t, client.Stopped())
	})
}

func TestWriteSlot(t *testing.T) {
	t.Run("longest record fits", func(t *testing.T) {
		r, _ := createTestRegion(t)
		rec := []byte(strings.Repeat("x", MaxRecord))

		idx, err := r.WriteSlot(rec)
		require.NoError(t, err)

		buf := make([]byte, SlotLen)
		n := r.ReadSlot(idx, buf)
		assert.Equal(t, rec, buf[:n])
	})

	t.Run("oversized record leaves slot untouched", func(t *testing.T) {
		r, _ := createTestRegion(t)
		_, err := r.WriteSlot([]byte("keep"))
		require.NoError(t, err)

		for i := 1; i < Capacity; i++ {
			_, err := r.WriteSlot([]byte("x"))
			require.NoError(t, err)
		}
		require.Equal(t, 0, r.WriteCursor())

		_, err = r.WriteSlot([]byte(strings.Repeat("y", SlotLen)))
		assert.ErrorIs(t, err, ErrRecordTooLarge)
		assert.Equal(t, 0, r.WriteCursor())

		buf := make([]byte, SlotLen)
		n := r.ReadSlot(0, buf)
		assert.Equal(t, "keep", string(buf[:n]))
	})

	t.Run("NUL byte is rejected", func(t *testing.T) {
		r, _ := createTestRegion(t)
		_, err := r.WriteSlot([]byte("0-1\x001-2"))
		assert.ErrorIs(t, err, ErrRecordInvalid)
		assert.Equal(t, 0, r.WriteCursor())
	})

	t.Run("shorter record clears previous tail", func(t *testing.T) {
		r, _ := createTestRegion(t)
		for i := 0; i < Capacity; i++ {
			_, err := r.WriteSlot([]byte("10-11 12-13 14-15"))
			require.NoError(t, err)
		}
		_, err := r.WriteSlot([]byte("1-2"))
		require.NoError(t, err)

		buf := make([]byte, SlotLen)
		n := r.ReadSlot(0, buf)
		assert.Equal(t, "1-2", string(buf[:n]))
	})

	t.Run("empty record round trips", func(t *testing.T) {
		r, _ := createTestRegion(t)
		idx, err := r.WriteSlot(nil)
		require.NoError(t, err)

		buf := make([]byte, SlotLen)
		assert.Equal(t, 0, r.ReadSlot(idx, buf))
	})

	t.Run("cursor wraps", func(t *testing.T) {
		r, _ := createTestRegion(t)
		for i := 0; i < Capacity+3; i++ {
			idx, err := r.WriteSlot([]byte(fmt.Sprintf("%d-%d", i, i+1)))
			require.NoError(t, err)
			assert.Equal(t, i%Capacity, idx)
		}
		assert.Equal(t, 3, r.WriteCursor())
	})
}

func TestStopFlag(t *testing.T) {
	r, _ := createTestRegion(t)

	r.SetStop()
	r.SetStop()
	assert.True(t, r.Stopped())

	_, err := r.WriteSlot([]byte("0-1"))
	require.NoError(t, err)

	r.Reset()
	assert.False(t, r.Stopped())
	assert.Equal(t, 0, r.WriteCursor())
}

func TestRemoveRegion(t *testing.T) {
	r, ns := createTestRegion(t)

	require.NoError(t, RemoveRegion(ns))
	require.NoError(t, RemoveRegion(ns))

	// The mapping outlives the name.
	_, err := r.WriteSlot([]byte("0-1"))
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}
