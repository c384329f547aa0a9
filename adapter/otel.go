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

// Package adapter wires the host environment to external observability
// systems.
package adapter

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/lsmenv/pkg/lsmenv"
)

// OTelAdapter supplies the OpenTelemetry providers an environment reports
// spans and instruments to.
type OTelAdapter interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// GlobalOTelAdapter hands out the providers registered with the otel package.
type GlobalOTelAdapter struct{}

func (GlobalOTelAdapter) TracerProvider() trace.TracerProvider { return otel.GetTracerProvider() }

func (GlobalOTelAdapter) MeterProvider() metric.MeterProvider { return otel.GetMeterProvider() }

// StaticOTelAdapter hands out fixed providers. Nil fields leave the
// environment's default no-op providers in place.
type StaticOTelAdapter struct {
	Tracer trace.TracerProvider
	Meter  metric.MeterProvider
}

func (a *StaticOTelAdapter) TracerProvider() trace.TracerProvider { return a.Tracer }

func (a *StaticOTelAdapter) MeterProvider() metric.MeterProvider { return a.Meter }

// WithOTel copies the providers of a into config and returns config.
func WithOTel(config *lsmenv.Config, a OTelAdapter) *lsmenv.Config {
	if a == nil {
		return config
	}
	config.TracerProvider = a.TracerProvider()
	config.MeterProvider = a.MeterProvider()
	return config
}
