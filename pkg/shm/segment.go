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

package shm

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/Workiva/go-datastructures/bitarray"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/srediag/lsmenv/api"
	internalshm "github.com/srediag/lsmenv/internal/shm"
)

const (
	// ChunkSize is the size of every shared-memory chunk in the process.
	ChunkSize = 32 << 10

	// Suffix is appended to the database path to name the companion file.
	Suffix = "-shm"

	instrumentationName = "github.com/srediag/lsmenv/pkg/shm"
)

// CompanionPath returns the shared-memory file path for the database at path.
func CompanionPath(path string) string {
	return path + Suffix
}

// Options holds shared-memory file parameters.
type Options struct {
	// Path is the database path; the companion file is CompanionPath(Path).
	Path string
	// FileMode is used when the companion file is created.
	FileMode os.FileMode
	// GrowGuard, if set, is consulted before the companion file grows by delta bytes.
	GrowGuard func(path string, delta int64) error
	Logger    *zap.Logger
	Meter     metric.Meter
	Tracer    trace.Tracer
}

// Segment is the mapped view of one chunk.
type Segment struct {
	region *internalshm.MappedRegion
	chunk  int
}

// Data returns the mapped bytes of the segment.
func (s *Segment) Data() []byte { return s.region.Addr }

// Chunk returns the chunk index the segment maps.
func (s *Segment) Chunk() int { return s.chunk }

// File manages the companion file of one database handle and the segments
// mapped from it. Segments are kept in request order.
type File struct {
	mu       sync.Mutex
	path     string
	opts     Options
	file     *os.File
	size     int64
	segments []*Segment
	mapped   bitarray.BitArray

	logger   *zap.SugaredLogger
	tracer   trace.Tracer
	grown    metric.Int64Counter
	segGauge metric.Int64UpDownCounter
}

// New returns an unopened shared-memory file. The companion file is created
// or opened on the first Map.
func New(opts Options) *File {
	if opts.FileMode == 0 {
		opts.FileMode = 0o644
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Meter == nil {
		opts.Meter = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	if opts.Tracer == nil {
		opts.Tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	f := &File{
		path:   CompanionPath(opts.Path),
		opts:   opts,
		mapped: bitarray.NewSparseBitArray(),
		logger: opts.Logger.Sugar(),
		tracer: opts.Tracer,
	}
	var err error
	if f.grown, err = opts.Meter.Int64Counter("lsmenv.shm.grown_bytes",
		metric.WithDescription("Bytes added to shared-memory companion files."),
		metric.WithUnit("By")); err != nil {
		f.logger.Warnf("shm: create grown_bytes counter: %v", err)
		f.grown, _ = metricnoop.NewMeterProvider().Meter(instrumentationName).Int64Counter("lsmenv.shm.grown_bytes")
	}
	if f.segGauge, err = opts.Meter.Int64UpDownCounter("lsmenv.shm.segments",
		metric.WithDescription("Shared-memory segments currently mapped.")); err != nil {
		f.logger.Warnf("shm: create segments counter: %v", err)
		f.segGauge, _ = metricnoop.NewMeterProvider().Meter(instrumentationName).Int64UpDownCounter("lsmenv.shm.segments")
	}
	return f
}

// Path returns the companion file path.
func (f *File) Path() string { return f.path }

// Size returns the tracked size of the companion file. It is zero while the
// companion file is not open.
func (f *File) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Segments returns the number of mapped segments.
func (f *File) Segments() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.segments)
}

// Lookup returns the first mapping made for chunk, or nil.
func (f *File) Lookup(chunk int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.segments {
		if s.chunk == chunk {
			return s.Data()
		}
	}
	return nil
}

// IsMapped reports whether chunk has at least one live mapping.
func (f *File) IsMapped(chunk int) bool {
	if chunk < 0 {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ok, err := f.mapped.GetBit(uint64(chunk))
	return err == nil && ok
}

// MappedChunks returns the distinct chunk indices with a live mapping, in
// ascending order.
func (f *File) MappedChunks() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	nums := f.mapped.ToNums()
	chunks := make([]int, 0, len(nums))
	for _, n := range nums {
		chunks = append(chunks, int(n))
	}
	return chunks
}

// Map maps chunk chunkIndex and returns its bytes. chunkSize must equal
// ChunkSize. The companion file grows to max(2*size, end of chunk) whenever
// the chunk end reaches the tracked size. A chunk that is already mapped is
// mapped again; every call yields an independent view.
func (f *File) Map(chunkIndex, chunkSize int) ([]byte, error) {
	if chunkSize != ChunkSize {
		return nil, fmt.Errorf("%w: chunk size %d, want %d", api.ErrInvalid, chunkSize, ChunkSize)
	}
	if chunkIndex < 0 {
		return nil, fmt.Errorf("%w: chunk index %d", api.ErrInvalid, chunkIndex)
	}
	ctx, span := f.tracer.Start(context.Background(), "shm.Map",
		trace.WithAttributes(attribute.Int("shm.chunk", chunkIndex)))
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		if err := f.open(); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	off := int64(chunkIndex) * ChunkSize
	end := off + ChunkSize
	if end >= f.size {
		if err := f.grow(ctx, max(2*f.size, end)); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	region, err := internalshm.MapRegion(ctx, internalshm.MapOptions{
		Fd:     int(f.file.Fd()),
		Offset: off,
		Size:   ChunkSize,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := f.mapped.SetBit(uint64(chunkIndex)); err != nil {
		_ = internalshm.UnmapRegion(ctx, region)
		return nil, fmt.Errorf("track chunk %d: %w", chunkIndex, err)
	}
	f.segments = append(f.segments, &Segment{region: region, chunk: chunkIndex})
	f.segGauge.Add(ctx, 1)
	return region.Addr, nil
}

// Barrier orders accesses to mapped chunks.
func (f *File) Barrier() { Barrier() }

// Barrier orders accesses to mapped chunks. It is a full fence.
func Barrier() { internalshm.Barrier() }

// Unmap releases every segment and closes the companion file. Callers must
// ensure no segment is in use. When deleteFile is set the companion file is
// removed as well, and only a failed removal is reported.
func (f *File) Unmap(deleteFile bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ctx := context.Background()
	for i, s := range f.segments {
		if err := internalshm.UnmapRegion(ctx, s.region); err != nil {
			f.logger.Warnf("shm: unmap chunk %d of %s: %v", s.chunk, f.path, err)
		}
		f.segments[i] = nil
	}
	if n := len(f.segments); n > 0 {
		f.segGauge.Add(ctx, -int64(n))
	}
	f.segments = f.segments[:0]
	f.mapped.Reset()

	if f.file != nil {
		if err := f.file.Close(); err != nil {
			f.logger.Warnf("shm: close %s: %v", f.path, err)
		}
		f.file = nil
	}
	f.size = 0

	if deleteFile {
		if err := os.Remove(f.path); err != nil {
			return fmt.Errorf("remove shared memory file: %w", err)
		}
		f.logger.Infof("shm: removed %s", f.path)
	}
	return nil
}

func (f *File) open() error {
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_RDWR, f.opts.FileMode)
	if err != nil {
		return fmt.Errorf("open shared memory file: %w", err)
	}
	size, err := internalshm.FileSize(int(file.Fd()))
	if err != nil {
		if cerr := file.Close(); cerr != nil {
			f.logger.Warnf("shm: close %s: %v", f.path, cerr)
		}
		return err
	}
	f.file = file
	f.size = size
	f.logger.Debugf("shm: opened %s size=%d", f.path, size)
	return nil
}

func (f *File) grow(ctx context.Context, want int64) error {
	if f.opts.GrowGuard != nil {
		if err := f.opts.GrowGuard(f.path, want-f.size); err != nil {
			return err
		}
	}
	size, err := internalshm.GrowFile(int(f.file.Fd()), want)
	if err != nil {
		return fmt.Errorf("grow shared memory file to %d: %w", want, err)
	}
	if size > f.size {
		f.grown.Add(ctx, size-f.size)
	}
	f.logger.Debugf("shm: grew %s from %d to %d", f.path, f.size, size)
	f.size = size
	return nil
}
