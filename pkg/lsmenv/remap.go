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
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/lsmenv/api"
	internalshm "github.com/srediag/lsmenv/internal/shm"
)

// Remap drops the current view of the file and maps the whole file again.
// A file shorter than minSize is first grown to the next multiple of
// Config.MapGranularity. The previous view is never reused, so slices it
// returned must not be touched after Remap. On failure the handle is left
// without a view.
func (f *File) Remap(minSize int64) ([]byte, error) {
	ctx, span := f.env.tracer.Start(context.Background(), "lsmenv.Remap",
		trace.WithAttributes(
			attribute.String("lsmenv.path", f.path),
			attribute.Int64("lsmenv.min_size", minSize)))
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.unmapView(ctx)
	if minSize <= 0 {
		return nil, f.env.ioError("remap", f.path, fmt.Errorf("%w: size %d", api.ErrInvalid, minSize))
	}
	if f.file == nil {
		return nil, f.env.ioError("remap", f.path, api.ErrClosed)
	}

	fd := int(f.file.Fd())
	size, err := internalshm.FileSize(fd)
	if err != nil {
		span.RecordError(err)
		return nil, f.env.ioError("remap", f.path, err)
	}
	if size < minSize {
		if size, err = f.grow(ctx, fd, roundUp(minSize, f.env.config.MapGranularity)); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	region, err := internalshm.MapRegion(ctx, internalshm.MapOptions{
		Fd:       fd,
		Size:     int(size),
		ReadOnly: f.readOnly,
	})
	if err != nil {
		span.RecordError(err)
		return nil, f.env.ioError("remap", f.path, err)
	}
	f.view = region
	f.env.metrics.remaps.Inc()
	f.env.metrics.mappedBytes.Add(float64(size))
	f.env.logger.debugf("remap %s: %d bytes", f.path, size)
	return region.Addr, nil
}

// unmapView releases the current view. The caller holds f.mu.
func (f *File) unmapView(ctx context.Context) {
	if f.view == nil {
		return
	}
	n := len(f.view.Addr)
	if err := internalshm.UnmapRegion(ctx, f.view); err != nil {
		f.env.logger.warnf("unmap view of %s: %v", f.path, err)
	}
	f.view = nil
	f.env.metrics.mappedBytes.Sub(float64(n))
}

// roundUp rounds n up to a multiple of the power of two g.
func roundUp(n, g int64) int64 {
	return (n + g - 1) &^ (g - 1)
}
