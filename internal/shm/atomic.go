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

package shm

import (
	"sync/atomic"
	"unsafe"
)

var fence uint32

// Barrier is a full memory fence between cooperating readers and writers of
// mapped regions. Go atomics are sequentially consistent, so an atomic
// read-modify-write on a private word orders every access before it against
// every access after it.
func Barrier() {
	atomic.AddUint32(&fence, 0)
}

// AtomicLoadUint64 loads a uint64 from shared memory atomically. addr must be 8-byte aligned.
func AtomicLoadUint64(addr unsafe.Pointer) uint64 {
	return atomic.LoadUint64((*uint64)(addr))
}

// AtomicStoreUint64 stores a uint64 to shared memory atomically. addr must be 8-byte aligned.
func AtomicStoreUint64(addr unsafe.Pointer, val uint64) {
	atomic.StoreUint64((*uint64)(addr), val)
}

// AtomicCompareAndSwapUint64 atomically compares and swaps a uint64 in shared memory.
func AtomicCompareAndSwapUint64(addr unsafe.Pointer, old, new uint64) bool {
	return atomic.CompareAndSwapUint64((*uint64)(addr), old, new)
}

// Word returns a pointer to the 8-byte word at off in mem, for use with the
// atomic helpers. It panics if the word does not fit in mem.
func Word(mem []byte, off int) unsafe.Pointer {
	_ = mem[off+7]
	return unsafe.Pointer(&mem[off])
}
