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

// Package shm contains the Linux primitives behind the host environment:
// file mappings, grow-only sizing, byte-range locks and memory ordering.
package shm

import "errors"

// ErrLocked is returned when a byte-range lock is held incompatibly by another
// open file description.
var ErrLocked = errors.New("byte range is locked")

// MappedRegion represents a memory-mapped view of part of a file.
type MappedRegion struct {
	// Addr is the requested window, exactly MapOptions.Size bytes long.
	Addr []byte
	// Offset is the file offset of Addr[0].
	Offset int64

	// mem is the page-aligned mapping returned by the kernel.
	mem []byte
}

// MapOptions defines options for mapping a file region.
type MapOptions struct {
	Fd       int
	Offset   int64
	Size     int
	ReadOnly bool
}

// LockType selects the kind of byte-range lock.
type LockType int16

const (
	LockRead LockType = iota
	LockWrite
	LockNone
)

// Function implementations are provided in platform-specific files (e.g., platform_linux.go).
