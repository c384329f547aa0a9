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
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"golang.org/x/sys/unix"

	"github.com/srediag/lsmenv/api"
)

const defaultSectorSize = 512

// MapRegion maps opts.Size bytes of the file at opts.Offset (Linux implementation).
// The offset does not need to be page aligned.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if opts.Size <= 0 || opts.Offset < 0 {
		return nil, fmt.Errorf("map region: invalid window offset=%d size=%d", opts.Offset, opts.Size)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pageMask := int64(unix.Getpagesize() - 1)
	start := opts.Offset &^ pageMask
	delta := int(opts.Offset - start)

	prot := unix.PROT_READ
	if !opts.ReadOnly {
		prot |= unix.PROT_WRITE
	}
	mem, err := unix.Mmap(opts.Fd, start, opts.Size+delta, prot, unix.MAP_SHARED)
	if errors.Is(err, unix.ENOMEM) {
		return nil, fmt.Errorf("mmap: %w: %w", api.ErrNoMemory, err)
	}
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return &MappedRegion{
		Addr:   mem[delta : delta+opts.Size : delta+opts.Size],
		Offset: opts.Offset,
		mem:    mem,
	}, nil
}

// UnmapRegion unmaps the region (Linux implementation). Unmapping a nil or
// already unmapped region is a no-op.
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil || region.mem == nil {
		return nil
	}
	err := unix.Munmap(region.mem)
	region.mem = nil
	region.Addr = nil
	if err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}

// FileSize returns the current size of the file behind fd.
func FileSize(fd int) (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, fmt.Errorf("fstat: %w", err)
	}
	return st.Size, nil
}

// GrowFile extends the file behind fd to size bytes. A file that is already
// at least size bytes long is left untouched. It returns the resulting size.
func GrowFile(fd int, size int64) (int64, error) {
	cur, err := FileSize(fd)
	if err != nil {
		return 0, err
	}
	if cur >= size {
		return cur, nil
	}
	if err := unix.Ftruncate(fd, size); err != nil {
		return cur, fmt.Errorf("ftruncate: %w", err)
	}
	return size, nil
}

// SectorSize reports the block size of the filesystem holding fd, falling
// back to 512 when it cannot be determined.
func SectorSize(fd int) int {
	var st unix.Statfs_t
	if err := unix.Fstatfs(fd, &st); err != nil {
		return defaultSectorSize
	}
	bsize := int64(st.Bsize)
	if bsize < defaultSectorSize || bsize > 64<<10 || bits.OnesCount64(uint64(bsize)) != 1 {
		return defaultSectorSize
	}
	return int(bsize)
}

// FileID returns 16 bytes identifying the device and inode of fd.
func FileID(fd int) ([]byte, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("fstat: %w", err)
	}
	id := make([]byte, 16)
	binary.LittleEndian.PutUint64(id[:8], uint64(st.Dev))
	binary.LittleEndian.PutUint64(id[8:], uint64(st.Ino))
	return id, nil
}

// SetLock applies an open-file-description lock of length n at off without
// blocking. Contention is reported as ErrLocked.
func SetLock(fd int, off, n int64, typ LockType) error {
	lk := unix.Flock_t{
		Type:   flockType(typ),
		Whence: unix.SEEK_SET,
		Start:  off,
		Len:    n,
	}
	if err := unix.FcntlFlock(uintptr(fd), unix.F_OFD_SETLK, &lk); err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EACCES) {
			return ErrLocked
		}
		return fmt.Errorf("fcntl(F_OFD_SETLK): %w", err)
	}
	return nil
}

// ProbeLock reports whether a lock of type typ over [off, off+n) could be
// taken by fd right now. Locks held through fd itself never conflict, and
// no lock state is changed.
func ProbeLock(fd int, off, n int64, typ LockType) (bool, error) {
	lk := unix.Flock_t{
		Type:   flockType(typ),
		Whence: unix.SEEK_SET,
		Start:  off,
		Len:    n,
	}
	if err := unix.FcntlFlock(uintptr(fd), unix.F_OFD_GETLK, &lk); err != nil {
		return false, fmt.Errorf("fcntl(F_OFD_GETLK): %w", err)
	}
	return lk.Type == unix.F_UNLCK, nil
}

func flockType(typ LockType) int16 {
	switch typ {
	case LockRead:
		return unix.F_RDLCK
	case LockWrite:
		return unix.F_WRLCK
	}
	return unix.F_UNLCK
}
