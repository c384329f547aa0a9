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
	"github.com/srediag/lsmenv/pkg/shm"
)

// ShmMap maps chunk chunkIndex of the companion file and returns its
// chunkSize bytes. chunkSize must be shm.ChunkSize. A mapping the address
// space cannot hold reports api.ErrNoMemory.
func (f *File) ShmMap(chunkIndex, chunkSize int) ([]byte, error) {
	if _, err := f.osFile(); err != nil {
		return nil, err
	}
	p, err := f.shm.Map(chunkIndex, chunkSize)
	if err != nil {
		return nil, f.env.ioError("shmmap", f.shm.Path(), err)
	}
	f.env.metrics.shmSegments.Inc()
	return p, nil
}

// ShmBarrier is a full memory fence for accesses to mapped chunks.
func (f *File) ShmBarrier() { shm.Barrier() }

// ShmUnmap releases every chunk mapped through f. When deleteFile is set the
// companion file is removed too.
func (f *File) ShmUnmap(deleteFile bool) error {
	if enabled(levelDebug) {
		f.env.logger.debugf("shm unmap %s chunks=%v delete=%v", f.shm.Path(), f.shm.MappedChunks(), deleteFile)
	}
	if n := f.shm.Segments(); n > 0 {
		f.env.metrics.shmSegments.Sub(float64(n))
	}
	if err := f.shm.Unmap(deleteFile); err != nil {
		return f.env.ioError("shmunmap", f.shm.Path(), err)
	}
	return nil
}

// Shm returns the companion file of f.
func (f *File) Shm() *shm.File { return f.shm }
