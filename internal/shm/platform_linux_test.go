/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

//go:build linux

package shm

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/lsmenv/api"
)

func openTemp(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(t.TempDir(), name), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestGrowFileNeverShrinks(t *testing.T) {
	f := openTemp(t, "grow")
	fd := int(f.Fd())

	size, err := GrowFile(fd, 8192)
	require.NoError(t, err)
	assert.Equal(t, int64(8192), size)

	size, err = GrowFile(fd, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(8192), size)

	cur, err := FileSize(fd)
	require.NoError(t, err)
	assert.Equal(t, int64(8192), cur)
}

func TestMapRegionUnalignedOffset(t *testing.T) {
	f := openTemp(t, "map")
	fd := int(f.Fd())
	_, err := GrowFile(fd, 1<<16)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("abcdef"), 5000)
	require.NoError(t, err)

	ctx := context.Background()
	region, err := MapRegion(ctx, MapOptions{Fd: fd, Offset: 5000, Size: 6})
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), region.Addr)
	assert.Len(t, region.Addr, 6)

	copy(region.Addr, "ABC")
	require.NoError(t, UnmapRegion(ctx, region))
	assert.Nil(t, region.Addr)
	require.NoError(t, UnmapRegion(ctx, region))

	buf := make([]byte, 6)
	_, err = f.ReadAt(buf, 5000)
	require.NoError(t, err)
	assert.Equal(t, []byte("ABCdef"), buf)
}

func TestMapRegionRejectsEmptyWindow(t *testing.T) {
	f := openTemp(t, "empty")
	_, err := MapRegion(context.Background(), MapOptions{Fd: int(f.Fd()), Size: 0})
	assert.Error(t, err)
}

func TestMapRegionOutOfAddressSpace(t *testing.T) {
	if strconv.IntSize < 64 {
		t.Skip("needs a 64-bit address space")
	}
	f := openTemp(t, "huge")
	shift := 62
	_, err := MapRegion(context.Background(), MapOptions{Fd: int(f.Fd()), Size: 1 << shift})
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrNoMemory)
	assert.Equal(t, api.NoMemory, api.Code(err))
}

func TestSharedMappingsObserveAtomicStores(t *testing.T) {
	f := openTemp(t, "atomic")
	fd := int(f.Fd())
	_, err := GrowFile(fd, 4096)
	require.NoError(t, err)

	ctx := context.Background()
	a, err := MapRegion(ctx, MapOptions{Fd: fd, Size: 4096})
	require.NoError(t, err)
	defer UnmapRegion(ctx, a) //nolint:errcheck
	b, err := MapRegion(ctx, MapOptions{Fd: fd, Size: 4096})
	require.NoError(t, err)
	defer UnmapRegion(ctx, b) //nolint:errcheck

	AtomicStoreUint64(Word(a.Addr, 64), 42)
	Barrier()
	assert.Equal(t, uint64(42), AtomicLoadUint64(Word(b.Addr, 64)))
	assert.True(t, AtomicCompareAndSwapUint64(Word(b.Addr, 64), 42, 43))
	assert.False(t, AtomicCompareAndSwapUint64(Word(a.Addr, 64), 42, 44))
	assert.Equal(t, uint64(43), AtomicLoadUint64(Word(a.Addr, 64)))
}

func TestLockConflictsBetweenDescriptions(t *testing.T) {
	f1 := openTemp(t, "lock")
	f2, err := os.OpenFile(f1.Name(), os.O_RDWR, 0)
	require.NoError(t, err)
	defer f2.Close()
	fd1, fd2 := int(f1.Fd()), int(f2.Fd())

	require.NoError(t, SetLock(fd1, 4095, 1, LockWrite))
	assert.ErrorIs(t, SetLock(fd2, 4095, 1, LockRead), ErrLocked)

	free, err := ProbeLock(fd2, 4095, 1, LockRead)
	require.NoError(t, err)
	assert.False(t, free)
	free, err = ProbeLock(fd1, 4095, 1, LockWrite)
	require.NoError(t, err)
	assert.True(t, free, "own locks never conflict")

	require.NoError(t, SetLock(fd1, 4095, 1, LockNone))
	require.NoError(t, SetLock(fd2, 4095, 1, LockRead))
	require.NoError(t, SetLock(fd1, 4095, 1, LockRead), "shared locks are compatible")
}

func TestFileIDMatchesAcrossHandles(t *testing.T) {
	f1 := openTemp(t, "id")
	f2, err := os.Open(f1.Name())
	require.NoError(t, err)
	defer f2.Close()
	other := openTemp(t, "other")

	id1, err := FileID(int(f1.Fd()))
	require.NoError(t, err)
	id2, err := FileID(int(f2.Fd()))
	require.NoError(t, err)
	id3, err := FileID(int(other.Fd()))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
	assert.Len(t, id1, 16)
}

func TestSectorSizeIsPowerOfTwo(t *testing.T) {
	f := openTemp(t, "sector")
	n := SectorSize(int(f.Fd()))
	assert.GreaterOrEqual(t, n, 512)
	assert.Zero(t, n&(n-1))
}
