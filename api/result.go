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

package api

import (
	"errors"
	"fmt"

	"github.com/ztrue/tracerr"
)

// ResultCode is the status reported across the engine boundary.
type ResultCode int

const (
	OK ResultCode = iota
	Busy
	IoErr
	IoErrNotFound
	NoMemory
)

func (c ResultCode) String() string {
	switch c {
	case OK:
		return "OK"
	case Busy:
		return "Busy"
	case IoErr:
		return "IoError"
	case IoErrNotFound:
		return "IoError.NotFound"
	case NoMemory:
		return "NoMemory"
	}
	return fmt.Sprintf("ResultCode(%d)", int(c))
}

var (
	// ErrBusy reports retryable contention. It is not a failure.
	ErrBusy = errors.New("resource busy")
	// ErrNoMemory reports an allocation failure.
	ErrNoMemory = errors.New("out of memory")
	// ErrNotFound is wrapped by IoError when a file opened for reading does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrInvalid is wrapped by IoError when a call violates its preconditions.
	ErrInvalid = errors.New("invalid argument")
	// ErrClosed is wrapped by IoError when a closed file is used.
	ErrClosed = errors.New("file already closed")
)

// IoError describes a failed I/O operation.
type IoError struct {
	Op   string
	Path string
	Err  error
}

// NewIoError wraps err with the operation and path and records the call stack.
func NewIoError(op, path string, err error) *IoError {
	return &IoError{Op: op, Path: path, Err: tracerr.Wrap(err)}
}

func (e *IoError) Error() string {
	if e.Path == "" {
		return e.Op + ": " + e.cause().Error()
	}
	return e.Op + " " + e.Path + ": " + e.cause().Error()
}

func (e *IoError) Unwrap() error { return e.Err }

func (e *IoError) cause() error {
	if e.Err == nil {
		return errors.New("i/o error")
	}
	return tracerr.Unwrap(e.Err)
}

// Code maps err to the result code reported across the engine boundary.
func Code(err error) ResultCode {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrBusy):
		return Busy
	case errors.Is(err, ErrNoMemory):
		return NoMemory
	case errors.Is(err, ErrNotFound):
		return IoErrNotFound
	}
	return IoErr
}
