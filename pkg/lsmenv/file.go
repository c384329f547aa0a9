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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/lsmenv/api"
	internalshm "github.com/srediag/lsmenv/internal/shm"
	"github.com/srediag/lsmenv/pkg/shm"
)

// File is an open database file. It owns the OS file, the current mapped
// view of the file and the shared-memory companion file.
type File struct {
	env      *Env
	path     string
	readOnly bool

	// mu guards file, lockFile and view.
	mu   sync.Mutex
	file *os.File
	view *internalshm.MappedRegion

	// lockFile is a writable descriptor of a read-only handle, used only
	// for byte-range locks. Nil when the file cannot be opened for writing.
	lockFile *os.File

	lockMu *lockMutex
	shm    *shm.File
}

var _ api.File = (*File)(nil)

// Open opens the database file at path. See OpenFile.
func (e *Env) Open(path string, flags api.OpenFlag) (api.File, error) {
	f, err := e.OpenFile(path, flags)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// OpenFile opens the database file at path. A read-write open creates the
// file if it is absent; a read-only open of a missing file fails with an
// IoError wrapping api.ErrNotFound.
func (e *Env) OpenFile(path string, flags api.OpenFlag) (f *File, err error) {
	_, span := e.tracer.Start(context.Background(), "lsmenv.Open",
		trace.WithAttributes(attribute.String("lsmenv.path", path)))
	defer span.End()

	full, err := e.FullPath(path)
	if err != nil {
		return nil, err
	}
	readOnly := flags&api.OpenReadOnly != 0
	oflags := os.O_RDWR | os.O_CREATE
	if readOnly {
		oflags = os.O_RDONLY
	}

	file, err := os.OpenFile(full, oflags, e.config.FileMode)
	if err != nil {
		span.RecordError(err)
		return nil, e.ioError("open", full, notFound(err))
	}
	defer func() {
		if err != nil {
			if cerr := file.Close(); cerr != nil {
				e.logger.warnf("close %s after failed open: %v", full, cerr)
			}
		}
	}()

	var lockFile *os.File
	if readOnly {
		if lockFile, err = os.OpenFile(full, os.O_RDWR, 0); err != nil {
			e.logger.debugf("open %s: no writable lock descriptor: %v", full, err)
			lockFile, err = nil, nil
		}
	}
	defer func() {
		if err != nil && lockFile != nil {
			_ = lockFile.Close()
		}
	}()

	lockMu := acquireLockMutex(lockMutexName(full))
	defer func() {
		if err != nil {
			releaseLockMutex(lockMu)
		}
	}()

	f = &File{
		env:      e,
		path:     full,
		readOnly: readOnly,
		file:     file,
		lockFile: lockFile,
		lockMu:   lockMu,
		shm: shm.New(shm.Options{
			Path:      full,
			FileMode:  e.config.FileMode,
			GrowGuard: e.growGuard,
			Logger:    e.logger.base(),
			Meter:     e.meter,
			Tracer:    e.tracer,
		}),
	}
	e.metrics.openFiles.Inc()
	e.logger.infof("open %s readonly=%v", full, readOnly)
	return f, nil
}

// Path returns the canonical path of the file.
func (f *File) Path() string { return f.path }

// ReadOnly reports whether the file was opened read-only.
func (f *File) ReadOnly() bool { return f.readOnly }

// lockFd returns the descriptor byte-range locks are placed through.
func (f *File) lockFd() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.file == nil:
		return -1, f.env.ioError("use", f.path, api.ErrClosed)
	case f.lockFile != nil:
		return int(f.lockFile.Fd()), nil
	}
	return int(f.file.Fd()), nil
}

func (f *File) osFile() (*os.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil, f.env.ioError("use", f.path, api.ErrClosed)
	}
	return f.file, nil
}

// Read fills p with the bytes at off. The part of p beyond end-of-file is
// zeroed, so a short file never leaves p partially undefined.
func (f *File) Read(off int64, p []byte) error {
	if off < 0 {
		return f.env.ioError("read", f.path, fmt.Errorf("%w: offset %d", api.ErrInvalid, off))
	}
	file, err := f.osFile()
	if err != nil {
		return err
	}
	n, err := file.ReadAt(p, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return f.env.ioError("read", f.path, err)
	}
	clear(p[n:])
	return nil
}

// Write stores all of p at off. A short write is an error.
func (f *File) Write(off int64, p []byte) error {
	if off < 0 {
		return f.env.ioError("write", f.path, fmt.Errorf("%w: offset %d", api.ErrInvalid, off))
	}
	file, err := f.osFile()
	if err != nil {
		return err
	}
	n, err := file.WriteAt(p, off)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return f.env.ioError("write", f.path, err)
	}
	return nil
}

// Truncate extends the file to n bytes. If the file already holds n bytes or
// more it is left as it is; files are never shrunk.
func (f *File) Truncate(n int64) error {
	file, err := f.osFile()
	if err != nil {
		return err
	}
	_, err = f.grow(context.Background(), int(file.Fd()), n)
	return err
}

// grow extends the file behind fd to at least want bytes and returns its size.
func (f *File) grow(ctx context.Context, fd int, want int64) (int64, error) {
	cur, err := internalshm.FileSize(fd)
	if err != nil {
		return 0, f.env.ioError("truncate", f.path, err)
	}
	if cur >= want {
		return cur, nil
	}
	if err := f.env.growGuard(f.path, want-cur); err != nil {
		return cur, f.env.ioError("truncate", f.path, err)
	}
	size, err := internalshm.GrowFile(fd, want)
	if err != nil {
		return cur, f.env.ioError("truncate", f.path, err)
	}
	f.env.metrics.grownBytes.Add(float64(size - cur))
	f.env.grown.Add(ctx, size-cur)
	f.env.logger.debugf("grew %s from %d to %d bytes", f.path, cur, size)
	return size, nil
}

// Sync flushes the file to durable storage unless Config.NoSync is set.
func (f *File) Sync() error {
	if f.env.config.NoSync {
		return nil
	}
	file, err := f.osFile()
	if err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return f.env.ioError("sync", f.path, err)
	}
	return nil
}

// SectorSize returns the atomic write unit of the file's filesystem, 512 if
// it cannot be determined.
func (f *File) SectorSize() int {
	file, err := f.osFile()
	if err != nil {
		return 512
	}
	return internalshm.SectorSize(int(file.Fd()))
}

// FileID returns the device and inode of the file. Two handles opened on
// the same file return equal identifiers.
func (f *File) FileID() ([]byte, error) {
	file, err := f.osFile()
	if err != nil {
		return nil, err
	}
	id, err := internalshm.FileID(int(file.Fd()))
	if err != nil {
		return nil, f.env.ioError("fileid", f.path, err)
	}
	return id, nil
}

// Close unmaps the shared memory without deleting the companion file, drops
// the mapped view and closes the file. It tolerates a partially built File.
func (f *File) Close() error {
	if f.shm != nil {
		if n := f.shm.Segments(); n > 0 {
			f.env.metrics.shmSegments.Sub(float64(n))
		}
		if err := f.shm.Unmap(false); err != nil {
			f.env.logger.warnf("close %s: unmap shared memory: %v", f.path, err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmapView(context.Background())
	if f.file == nil {
		return f.env.ioError("close", f.path, api.ErrClosed)
	}
	err := f.file.Close()
	f.file = nil
	if f.lockFile != nil {
		if lerr := f.lockFile.Close(); lerr != nil {
			f.env.logger.warnf("close lock descriptor of %s: %v", f.path, lerr)
		}
		f.lockFile = nil
	}
	if f.lockMu != nil {
		releaseLockMutex(f.lockMu)
		f.lockMu = nil
	}
	f.env.metrics.openFiles.Dec()
	if err != nil {
		return f.env.ioError("close", f.path, err)
	}
	f.env.logger.infof("close %s", f.path)
	return nil
}
