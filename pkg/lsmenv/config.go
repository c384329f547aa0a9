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
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/srediag/lsmenv/api"
)

const (
	defaultMapGranularity = 2 << 20
	defaultLockBase       = 4096
	defaultFileMode       = 0o644
)

// Config is used to tune the host environment.
type Config struct {
	// NoSync turns File.Sync into a no-op. Meant for tests and benchmarks.
	NoSync bool

	// MapGranularity is the unit the main file grows by when Remap needs more
	// room. It must be a power of two.
	MapGranularity int64

	// LockBase is the byte offset lock slots count down from: slot s is the
	// byte at LockBase-s.
	LockBase int64

	// FileMode is applied to database and shared-memory files on creation.
	FileMode os.FileMode

	// CheckFreeSpace refuses to grow a file when the filesystem would be left
	// with fewer than MinFreeBytes free bytes.
	CheckFreeSpace bool
	MinFreeBytes   uint64

	// Logger replaces the internal stdout logger.
	Logger *zap.Logger

	// Registerer receives the environment's prometheus collectors. Nil keeps
	// them unregistered.
	Registerer prometheus.Registerer

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// DefaultConfig is used to return a default configuration
func DefaultConfig() *Config {
	return &Config{
		MapGranularity: defaultMapGranularity,
		LockBase:       defaultLockBase,
		FileMode:       defaultFileMode,
		CheckFreeSpace: true,
	}
}

// VerifyConfig is used to verify the sanity of configuration
func VerifyConfig(config *Config) error {
	if config == nil {
		return errors.New("config is nil")
	}
	if config.MapGranularity <= 0 || config.MapGranularity&(config.MapGranularity-1) != 0 {
		return fmt.Errorf("MapGranularity must be a positive power of two, got %d", config.MapGranularity)
	}
	if config.LockBase <= api.NumLockSlots {
		return fmt.Errorf("LockBase must be greater than %d, got %d", api.NumLockSlots, config.LockBase)
	}
	if config.FileMode&os.ModePerm == 0 {
		return fmt.Errorf("FileMode has no permission bits: %v", config.FileMode)
	}
	return nil
}
