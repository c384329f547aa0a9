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
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/srediag/lsmenv/api"
)

// mutex is a non-recursive mutex that remembers the goroutine holding it.
// The owner is for Held and NotHeld only and never affects locking.
type mutex struct {
	mu     sync.Mutex
	owner  atomic.Int64
	kind   api.MutexKind
	static bool
}

var _ api.Mutex = (*mutex)(nil)

// The static mutexes are ready before main runs.
var (
	globalMutex = mutex{kind: api.MutexGlobal, static: true}
	heapMutex   = mutex{kind: api.MutexHeap, static: true}
)

func (m *mutex) Enter() {
	m.mu.Lock()
	m.owner.Store(goid())
}

func (m *mutex) TryEnter() error {
	if !m.mu.TryLock() {
		return api.ErrBusy
	}
	m.owner.Store(goid())
	return nil
}

func (m *mutex) Leave() {
	m.owner.CompareAndSwap(goid(), 0)
	m.mu.Unlock()
}

func (m *mutex) Held() bool {
	return m.owner.Load() == goid()
}

func (m *mutex) NotHeld() bool {
	return !m.Held()
}

func (m *mutex) String() string {
	switch m.kind {
	case api.MutexGlobal:
		return "mutex(global)"
	case api.MutexHeap:
		return "mutex(heap)"
	}
	return fmt.Sprintf("mutex(%p)", m)
}

// MutexStatic returns the process-wide mutex of the given kind.
func (e *Env) MutexStatic(kind api.MutexKind) (api.Mutex, error) {
	switch kind {
	case api.MutexGlobal:
		return &globalMutex, nil
	case api.MutexHeap:
		return &heapMutex, nil
	}
	return nil, fmt.Errorf("%w: mutex kind %d", api.ErrInvalid, int(kind))
}

// MutexNew returns a new unlocked mutex.
func (e *Env) MutexNew() (api.Mutex, error) {
	return &mutex{}, nil
}

// MutexDel destroys a mutex returned by MutexNew. The static mutexes and
// mutexes from other environments are left alone.
func (e *Env) MutexDel(m api.Mutex) {
	mu, ok := m.(*mutex)
	if !ok || mu == nil || mu.static {
		return
	}
	if owner := mu.owner.Load(); owner != 0 {
		e.logger.warnf("delete %s held by goroutine %d", mu, owner)
	}
}

var goroutinePrefix = []byte("goroutine ")

// goid returns the id of the calling goroutine, or 0 if it cannot be parsed.
func goid() int64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
