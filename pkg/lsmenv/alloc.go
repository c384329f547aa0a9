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

package lsmenv

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/srediag/lsmenv/api"
)

const (
	allocHeaderSize = 8
	maxAlloc        = math.MaxInt32
	freedMarker     = ^uint64(0)
)

// AllocStats describes the blocks handed out by Malloc and Realloc that
// have not been freed.
type AllocStats struct {
	Blocks int64
	Bytes  int64
}

// allocator hands out byte slices preceded by a hidden header that records
// their usable size.
type allocator struct {
	env    *Env
	blocks atomic.Int64
	bytes  atomic.Int64
}

func newAllocator(e *Env) *allocator {
	return &allocator{env: e}
}

// header returns the 8 bytes stored in front of p. p must come from malloc.
func header(p []byte) []byte {
	base := unsafe.Add(unsafe.Pointer(unsafe.SliceData(p)), -allocHeaderSize)
	return unsafe.Slice((*byte)(base), allocHeaderSize)
}

func (a *allocator) malloc(n int) []byte {
	if n < 0 || n > maxAlloc {
		a.env.logger.warnf("malloc(%d): %v", n, api.ErrNoMemory)
		return nil
	}
	// The block keeps at least one byte after the header so that the
	// returned slice always points into it, even when n is 0.
	block := make([]byte, allocHeaderSize+max(n, 1))
	binary.LittleEndian.PutUint64(block[:allocHeaderSize], uint64(n))
	a.track(1, int64(n))
	return block[allocHeaderSize : allocHeaderSize+n : allocHeaderSize+max(n, 1)]
}

func (a *allocator) realloc(p []byte, n int) []byte {
	if n < 1 {
		a.free(p)
		return nil
	}
	if p == nil {
		return a.malloc(n)
	}
	q := a.malloc(n)
	if q == nil {
		return nil
	}
	copy(q, p)
	a.free(p)
	return q
}

func (a *allocator) free(p []byte) {
	if p == nil {
		return
	}
	hdr := header(p)
	n := binary.LittleEndian.Uint64(hdr)
	if n == freedMarker {
		a.env.logger.warnf("free: block %p already freed", unsafe.SliceData(p))
		return
	}
	binary.LittleEndian.PutUint64(hdr, freedMarker)
	a.track(-1, -int64(n))
}

func (a *allocator) size(p []byte) int {
	if p == nil {
		return 0
	}
	n := binary.LittleEndian.Uint64(header(p))
	if n == freedMarker {
		return 0
	}
	return int(n)
}

func (a *allocator) track(blocks, bytes int64) {
	a.blocks.Add(blocks)
	a.bytes.Add(bytes)
	a.env.metrics.allocBlocks.Add(float64(blocks))
	a.env.metrics.allocBytes.Add(float64(bytes))
}

// Malloc returns a slice of n usable bytes. It returns nil if n is negative
// or larger than the allocator supports.
func (e *Env) Malloc(n int) []byte { return e.alloc.malloc(n) }

// Realloc resizes p to n bytes and preserves min(Size(p), n) leading bytes.
// n < 1 frees p and returns nil; a nil p behaves like Malloc. When the new
// block cannot be allocated Realloc returns nil and p stays valid.
func (e *Env) Realloc(p []byte, n int) []byte { return e.alloc.realloc(p, n) }

// Free releases p, which must be nil or a slice returned by Malloc or
// Realloc (not a reslice of one).
func (e *Env) Free(p []byte) { e.alloc.free(p) }

// Size returns the usable size recorded when p was allocated.
func (e *Env) Size(p []byte) int { return e.alloc.size(p) }

// AllocStats returns the live blocks and bytes of e's allocator.
func (e *Env) AllocStats() AllocStats {
	return AllocStats{Blocks: e.alloc.blocks.Load(), Bytes: e.alloc.bytes.Load()}
}
