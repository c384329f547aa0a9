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

// Package shm provides the shared-memory segment allocator used by the storage
// engine for cross-process coordination structures.
//
// Every database file has a companion file named after it with a "-shm"
// suffix. The companion is split into fixed-size chunks of ChunkSize bytes;
// each chunk is mapped independently and shared between every process that
// opens the same database.
//
// Example usage:
//
//	f := shm.New(shm.Options{Path: "/var/lib/app/test.lsmdb"})
//	chunk, err := f.Map(0, shm.ChunkSize)
//	// ...
//	shm.Barrier()
//	// ...
//	err = f.Unmap(false)
//
// The package is instrumented with OpenTelemetry metrics and tracing. Platform
// specific helpers are in internal/shm.
package shm
