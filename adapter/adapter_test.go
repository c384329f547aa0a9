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
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/srediag/lsmenv/api"
	"github.com/srediag/lsmenv/pkg/lsmenv"
)

func serve(h http.Handler, path string) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}

func TestHealthAdapter(t *testing.T) {
	env, err := lsmenv.New(lsmenv.DefaultConfig())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "health.lsmdb")

	h := NewHealthAdapter(env, 100000)
	h.Watch(path)
	assert.Equal(t, http.StatusOK, serve(h, "/live"))
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, "/ready"), "file does not exist yet")

	f, err := env.Open(path, api.OpenReadWrite)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, http.StatusOK, serve(h, "/ready"))
}

func TestHealthAdapterGoroutineLimit(t *testing.T) {
	env, err := lsmenv.New(lsmenv.DefaultConfig())
	require.NoError(t, err)
	h := NewHealthAdapter(env, 0)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, "/live"))
}

func TestDiskCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.lsmdb")
	assert.NoError(t, DiskCheck(path, 0)())
	assert.Error(t, DiskCheck(path, ^uint64(0))())
}

func TestWithOTel(t *testing.T) {
	tp := tracenoop.NewTracerProvider()
	mp := metricnoop.NewMeterProvider()
	config := WithOTel(lsmenv.DefaultConfig(), &StaticOTelAdapter{Tracer: tp, Meter: mp})
	assert.Equal(t, tp, config.TracerProvider)
	assert.Equal(t, mp, config.MeterProvider)

	config = WithOTel(lsmenv.DefaultConfig(), GlobalOTelAdapter{})
	assert.NotNil(t, config.TracerProvider)
	assert.NotNil(t, config.MeterProvider)
	_, err := lsmenv.New(config)
	assert.NoError(t, err)

	config = WithOTel(lsmenv.DefaultConfig(), nil)
	assert.Nil(t, config.TracerProvider)
}
