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

package adapter

import (
	"fmt"
	"time"

	"github.com/heptiolabs/healthcheck"

	"github.com/srediag/lsmenv/api"
	"github.com/srediag/lsmenv/internal/health"
	"github.com/srediag/lsmenv/pkg/lsmenv"
)

const checkTimeout = 2 * time.Second

// HealthAdapter exposes liveness and readiness of database files over HTTP.
type HealthAdapter struct {
	healthcheck.Handler
	env *lsmenv.Env
}

// NewHealthAdapter returns a handler serving /live and /ready. Liveness
// fails when the process runs more than maxGoroutines goroutines.
func NewHealthAdapter(env *lsmenv.Env, maxGoroutines int) *HealthAdapter {
	h := &HealthAdapter{Handler: healthcheck.NewHandler(), env: env}
	h.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(maxGoroutines))
	return h
}

// Watch adds readiness checks for the database at path: the file must be
// openable and its filesystem must keep at least Config.MinFreeBytes free.
func (h *HealthAdapter) Watch(path string) {
	h.AddReadinessCheck("file:"+path, healthcheck.Timeout(FileCheck(h.env, path), checkTimeout))
	h.AddReadinessCheck("disk:"+path, healthcheck.Timeout(DiskCheck(path, h.env.Config().MinFreeBytes), checkTimeout))
}

// FileCheck opens path read-only and reads its file identifier.
func FileCheck(env api.Env, path string) healthcheck.Check {
	return func() error {
		f, err := env.Open(path, api.OpenReadOnly)
		if err != nil {
			return err
		}
		_, err = f.FileID()
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return err
	}
}

// DiskCheck fails when the filesystem holding path has fewer than floor
// free bytes.
func DiskCheck(path string, floor uint64) healthcheck.Check {
	return func() error {
		free, err := health.FreeBytes(path)
		if err != nil {
			return err
		}
		if free < floor {
			return fmt.Errorf("%d bytes free, want at least %d", free, floor)
		}
		return nil
	}
}
