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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/lsmenv/api"
)

const metricsNamespace = "lsmenv"

type metrics struct {
	openFiles   prometheus.Gauge
	remaps      prometheus.Counter
	mappedBytes prometheus.Gauge
	grownBytes  prometheus.Counter
	shmSegments prometheus.Gauge
	locks       *prometheus.CounterVec
	allocBlocks prometheus.Gauge
	allocBytes  prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		openFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "open_files",
			Help:      "Database files currently open.",
		}),
		remaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "remaps_total",
			Help:      "Successful remaps of database files.",
		}),
		mappedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "mapped_bytes",
			Help:      "Bytes of database files currently mapped.",
		}),
		grownBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "file_grown_bytes_total",
			Help:      "Bytes added to database files by Truncate and Remap.",
		}),
		shmSegments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "shm_segments",
			Help:      "Shared-memory chunks currently mapped.",
		}),
		locks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "lock_requests_total",
			Help:      "Lock and TestLock calls by mode and result.",
		}, []string{"mode", "result"}),
		allocBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "alloc_blocks",
			Help:      "Live blocks handed out by Malloc and Realloc.",
		}),
		allocBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "alloc_bytes",
			Help:      "Usable bytes held by live allocator blocks.",
		}),
	}
	var err error
	if m.openFiles, err = register(reg, m.openFiles); err != nil {
		return nil, err
	}
	if m.remaps, err = register(reg, m.remaps); err != nil {
		return nil, err
	}
	if m.mappedBytes, err = register(reg, m.mappedBytes); err != nil {
		return nil, err
	}
	if m.grownBytes, err = register(reg, m.grownBytes); err != nil {
		return nil, err
	}
	if m.shmSegments, err = register(reg, m.shmSegments); err != nil {
		return nil, err
	}
	if m.locks, err = register(reg, m.locks); err != nil {
		return nil, err
	}
	if m.allocBlocks, err = register(reg, m.allocBlocks); err != nil {
		return nil, err
	}
	if m.allocBytes, err = register(reg, m.allocBytes); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg. If an identical collector is already registered,
// that one is returned so several environments can share one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if reg == nil {
		return c, nil
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *metrics) lockResult(mode string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, api.ErrBusy):
		result = "busy"
	default:
		result = "error"
	}
	m.locks.WithLabelValues(mode, result).Inc()
}
