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

package health

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanGrow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	stat, err := disk.Usage(filepath.Dir(path))
	require.NoError(t, err)

	ok, err := CanGrow(path, 0, math.MaxUint64)
	require.NoError(t, err)
	assert.True(t, ok, "zero growth always fits")

	ok, err = CanGrow(path, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, stat.Free > 0, ok)

	ok, err = CanGrow(path, math.MaxUint64, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = CanGrow(path, 1, math.MaxUint64)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFreeBytesMissingDir(t *testing.T) {
	_, err := FreeBytes("/definitely/not/a/real/dir/db")
	assert.Error(t, err)
}
