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

// Package health contains internal helpers that guard file growth against
// running the backing filesystem out of space.
package health

import (
	"fmt"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// FreeBytes returns the free space of the filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	stat, err := disk.Usage(filepath.Dir(path))
	if err != nil {
		return 0, fmt.Errorf("disk usage %s: %w", path, err)
	}
	return stat.Free, nil
}

// CanGrow reports whether the filesystem holding path can absorb delta more
// bytes while keeping at least floor bytes free.
func CanGrow(path string, delta, floor uint64) (bool, error) {
	if delta == 0 {
		return true, nil
	}
	free, err := FreeBytes(path)
	if err != nil {
		return false, err
	}
	return free >= delta && free-delta >= floor, nil
}
