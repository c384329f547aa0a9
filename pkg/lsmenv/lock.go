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
	"errors"
	"fmt"
	"strings"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/valyala/bytebufferpool"

	"github.com/srediag/lsmenv/api"
	internalshm "github.com/srediag/lsmenv/internal/shm"
)

const lockMutexPrefix = "lsmenv-lock-"

// lockMutex serializes lock calls made through handles on one path. Handles
// on the same path share one lockMutex through the registry.
type lockMutex struct {
	mu   sync.Mutex
	name string
	refs int
}

var lockMutexes = cmap.New[*lockMutex]()

var pathSeparators = strings.NewReplacer("/", "_", "\\", "_", ":", "_")

// lockMutexName derives the registry key of path.
func lockMutexName(path string) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = buf.WriteString(lockMutexPrefix)
	_, _ = pathSeparators.WriteString(buf, path)
	return buf.String()
}

func acquireLockMutex(name string) *lockMutex {
	return lockMutexes.Upsert(name, nil, func(exist bool, cur, _ *lockMutex) *lockMutex {
		if !exist || cur == nil {
			cur = &lockMutex{name: name}
		}
		cur.refs++
		return cur
	})
}

func releaseLockMutex(m *lockMutex) {
	lockMutexes.RemoveCb(m.name, func(_ string, cur *lockMutex, exists bool) bool {
		if !exists || cur != m {
			return false
		}
		cur.refs--
		return cur.refs <= 0
	})
}

// lockOffset returns the byte that backs slot.
func (f *File) lockOffset(slot int) int64 {
	return f.env.config.LockBase - int64(slot)
}

// Lock applies mode to slot without waiting for other holders. A slot held
// incompatibly by another handle, in this process or another one, reports
// api.ErrBusy.
func (f *File) Lock(slot int, mode api.LockMode) (err error) {
	defer func() { f.env.metrics.lockResult(mode.String(), err) }()

	if slot < 1 || slot > api.NumLockSlots {
		return f.env.ioError("lock", f.path, fmt.Errorf("%w: slot %d", api.ErrInvalid, slot))
	}
	var typ internalshm.LockType
	switch mode {
	case api.LockUnlock:
		typ = internalshm.LockNone
	case api.LockShared:
		typ = internalshm.LockRead
	case api.LockExclusive:
		typ = internalshm.LockWrite
	default:
		return f.env.ioError("lock", f.path, fmt.Errorf("%w: lock mode %d", api.ErrInvalid, int(mode)))
	}

	fd, err := f.lockFd()
	if err != nil {
		return err
	}
	f.lockMu.mu.Lock()
	defer f.lockMu.mu.Unlock()

	err = internalshm.SetLock(fd, f.lockOffset(slot), 1, typ)
	if errors.Is(err, internalshm.ErrLocked) {
		f.env.logger.debugf("lock %s slot %d %s: busy", f.path, slot, mode)
		return api.ErrBusy
	}
	if err != nil {
		return f.env.ioError("lock", f.path, err)
	}
	f.env.logger.tracef("lock %s slot %d %s", f.path, slot, mode)
	return nil
}

// TestLock reports whether count slots starting at slot could be locked in
// mode right now. It returns nil if they could and api.ErrBusy otherwise.
// No lock is taken or released, and locks held through f never conflict.
func (f *File) TestLock(slot, count int, mode api.LockMode) (err error) {
	defer func() { f.env.metrics.lockResult("test_"+mode.String(), err) }()

	if slot < 1 || count < 1 || slot+count-1 > api.NumLockSlots {
		return f.env.ioError("testlock", f.path, fmt.Errorf("%w: slots %d..%d", api.ErrInvalid, slot, slot+count-1))
	}
	var typ internalshm.LockType
	switch mode {
	case api.LockShared:
		typ = internalshm.LockRead
	case api.LockExclusive:
		typ = internalshm.LockWrite
	default:
		return f.env.ioError("testlock", f.path, fmt.Errorf("%w: lock mode %s", api.ErrInvalid, mode))
	}

	fd, err := f.lockFd()
	if err != nil {
		return err
	}
	f.lockMu.mu.Lock()
	defer f.lockMu.mu.Unlock()

	// Slots grow downwards, so the last slot of the run has the lowest byte.
	free, err := internalshm.ProbeLock(fd, f.lockOffset(slot+count-1), int64(count), typ)
	if err != nil {
		return f.env.ioError("testlock", f.path, err)
	}
	if !free {
		return api.ErrBusy
	}
	return nil
}
