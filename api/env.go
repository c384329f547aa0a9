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

// Package api defines public API contracts for the storage engine host environment.
package api

// OpenFlag controls how Env.Open opens a database file.
type OpenFlag int

const (
	// OpenReadWrite opens the file for reading and writing, creating it if absent.
	OpenReadWrite OpenFlag = 0
	// OpenReadOnly opens an existing file for reading only.
	OpenReadOnly OpenFlag = 1
)

// LockMode selects the operation performed by File.Lock and File.TestLock.
type LockMode int

const (
	LockUnlock LockMode = iota
	LockShared
	LockExclusive
)

func (m LockMode) String() string {
	switch m {
	case LockUnlock:
		return "unlock"
	case LockShared:
		return "shared"
	case LockExclusive:
		return "exclusive"
	}
	return "unknown"
}

// MutexKind names one of the process-wide static mutexes.
type MutexKind int

const (
	MutexGlobal MutexKind = iota + 1
	MutexHeap
)

// NumLockSlots is the number of advisory lock slots available on every file.
const NumLockSlots = 32

// Env is the capability set the storage engine core consumes. Every call
// completes synchronously; contention is reported as ErrBusy.
type Env interface {
	// FullPath returns the canonical absolute form of path.
	FullPath(path string) (string, error)
	// Open opens the database file at path.
	Open(path string, flags OpenFlag) (File, error)
	// Unlink deletes the file at path.
	Unlink(path string) error

	// Malloc returns n usable bytes, or nil when the allocation fails.
	Malloc(n int) []byte
	// Realloc resizes p to n bytes, preserving the common prefix.
	Realloc(p []byte, n int) []byte
	// Free releases p. Free(nil) is a no-op.
	Free(p []byte)
	// Size returns the usable size recorded for p.
	Size(p []byte) int

	// MutexStatic returns one of the process-wide static mutexes.
	MutexStatic(kind MutexKind) (Mutex, error)
	// MutexNew creates a mutex owned by the caller.
	MutexNew() (Mutex, error)
	// MutexDel destroys a mutex created by MutexNew. Static mutexes are ignored.
	MutexDel(m Mutex)

	// Sleep pauses the calling goroutine for at least us microseconds.
	Sleep(us int)
}

// File is an open database file together with its shared-memory companion.
type File interface {
	// Read fills p from offset off. Bytes past end-of-file read as zero.
	Read(off int64, p []byte) error
	// Write stores all of p at offset off.
	Write(off int64, p []byte) error
	// Truncate extends the file to n bytes. It never shrinks the file.
	Truncate(n int64) error
	// Sync flushes the file to durable storage.
	Sync() error
	// SectorSize returns the atomic write unit of the underlying device.
	SectorSize() int
	// Remap replaces the current mapped view with one covering at least minSize bytes.
	Remap(minSize int64) ([]byte, error)
	// FileID returns an identifier equal for handles on the same underlying file.
	FileID() ([]byte, error)
	// Lock applies mode to lock slot (1..NumLockSlots) without blocking.
	Lock(slot int, mode LockMode) error
	// TestLock reports whether count slots starting at slot could be locked in mode.
	TestLock(slot, count int, mode LockMode) error

	// ShmMap maps chunk chunkIndex of the shared-memory companion file.
	ShmMap(chunkIndex, chunkSize int) ([]byte, error)
	// ShmBarrier orders memory accesses to shared-memory chunks.
	ShmBarrier()
	// ShmUnmap releases every shared-memory chunk, optionally deleting the companion file.
	ShmUnmap(deleteFile bool) error

	// Close releases the shared memory, the mapped view and the file.
	Close() error
}

// Mutex is a critical section with diagnostic ownership tracking.
type Mutex interface {
	Enter()
	// TryEnter acquires the mutex if it is free and returns ErrBusy otherwise.
	TryEnter() error
	Leave()
	Held() bool
	NotHeld() bool
}
