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

// Package lsmenv is the Linux host environment of the LSM storage engine.
//
// An Env gives the engine everything it needs from the operating system:
// database files with positional I/O, a growable memory-mapped view of each
// file, a shared-memory companion file split into fixed-size chunks,
// advisory byte-range locks in 32 slots per file, mutexes, a size-recording
// allocator and a sleep primitive for back-off loops.
//
//	env, err := lsmenv.New(lsmenv.DefaultConfig())
//	f, err := env.Open("/var/lib/app/test.lsmdb", api.OpenReadWrite)
//	defer f.Close()
//	if err := f.Lock(1, api.LockExclusive); errors.Is(err, api.ErrBusy) {
//		// another handle owns slot 1
//	}
//
// No call waits for another process. Contention is reported as
// api.ErrBusy; RetryBusy and LockWait wrap a back-off loop around it.
//
// Byte-range locks are open file description locks, so two handles on the
// same file conflict even inside one process.
package lsmenv
