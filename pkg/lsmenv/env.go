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
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ztrue/tracerr"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/srediag/lsmenv/api"
	"github.com/srediag/lsmenv/internal/health"
)

const instrumentationName = "github.com/srediag/lsmenv"

// ErrNoSpace is wrapped by IoError when growing a file would leave the
// filesystem with less than Config.MinFreeBytes free.
var ErrNoSpace = errors.New("not enough free disk space")

// Env is the Linux host environment for the storage engine.
type Env struct {
	config  *Config
	logger  *logger
	metrics *metrics
	tracer  trace.Tracer
	meter   metric.Meter
	grown   metric.Int64Counter
	alloc   *allocator
}

var _ api.Env = (*Env)(nil)

var (
	defaultEnv     *Env
	defaultEnvOnce sync.Once
)

// Default returns the process-wide environment built from DefaultConfig with
// its metrics registered on prometheus.DefaultRegisterer.
func Default() *Env {
	defaultEnvOnce.Do(func() {
		config := DefaultConfig()
		config.Registerer = prometheus.DefaultRegisterer
		env, err := New(config)
		if err != nil {
			internalLogger.warnf("default env: %v, metrics left unregistered", err)
			config.Registerer = nil
			env, _ = New(config)
		}
		defaultEnv = env
	})
	return defaultEnv
}

// New creates an environment from config.
func New(config *Config) (*Env, error) {
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	m, err := newMetrics(config.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	e := &Env{
		config:  config,
		logger:  internalLogger,
		metrics: m,
	}
	if config.Logger != nil {
		e.logger = wrapLogger(config.Logger)
	}

	tp := config.TracerProvider
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	mp := config.MeterProvider
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	e.tracer = tp.Tracer(instrumentationName)
	e.meter = mp.Meter(instrumentationName)
	if e.grown, err = e.meter.Int64Counter("lsmenv.file.grown_bytes",
		metric.WithDescription("Bytes added to database files."),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("create grown_bytes counter: %w", err)
	}
	e.alloc = newAllocator(e)
	return e, nil
}

// Config returns the configuration the environment was built with.
func (e *Env) Config() Config { return *e.config }

// FullPath returns the absolute, cleaned form of path.
func (e *Env) FullPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", e.ioError("fullpath", path, err)
	}
	return abs, nil
}

// Unlink deletes the file at path.
func (e *Env) Unlink(path string) error {
	if err := os.Remove(path); err != nil {
		return e.ioError("unlink", path, err)
	}
	return nil
}

// Sleep pauses the calling goroutine for us microseconds. It exists for
// callers that implement their own back-off after ErrBusy.
func (e *Env) Sleep(us int) {
	if us <= 0 {
		return
	}
	time.Sleep(time.Duration(us) * time.Microsecond)
}

// growGuard refuses growth that would break the configured free-space floor.
// If free space cannot be determined the growth is allowed.
func (e *Env) growGuard(path string, delta int64) error {
	if !e.config.CheckFreeSpace || delta <= 0 {
		return nil
	}
	ok, err := health.CanGrow(path, uint64(delta), e.config.MinFreeBytes)
	if err != nil {
		e.logger.warnf("free space check for %s: %v", path, err)
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: growing %s by %d bytes", ErrNoSpace, path, delta)
	}
	return nil
}

// ioError wraps err into an *api.IoError and logs its origin.
func (e *Env) ioError(op, path string, err error) error {
	if errors.Is(err, api.ErrBusy) || errors.Is(err, api.ErrNoMemory) {
		return err
	}
	ioErr := api.NewIoError(op, path, err)
	if enabled(levelDebug) {
		e.logger.debugf("%s", tracerr.Sprint(ioErr.Err))
	}
	return ioErr
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", api.ErrNotFound, err)
	}
	return err
}
