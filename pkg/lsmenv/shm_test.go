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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/srediag/lsmenv/api"
	"github.com/srediag/lsmenv/pkg/shm"
)

type ShmTestSuite struct {
	suite.Suite
	env  *Env
	path string
	f    *File
}

func (s *ShmTestSuite) SetupTest() {
	s.env = newTestEnv(s.T())
	s.path = filepath.Join(s.T().TempDir(), "shm.lsmdb")
	f, err := s.env.OpenFile(s.path, api.OpenReadWrite)
	s.Require().NoError(err)
	s.f = f
}

func (s *ShmTestSuite) TearDownTest() {
	_ = s.f.Close()
}

func (s *ShmTestSuite) TestMapFarChunk() {
	c0, err := s.f.ShmMap(0, shm.ChunkSize)
	s.Require().NoError(err)
	s.Len(c0, shm.ChunkSize)
	c1000, err := s.f.ShmMap(1000, shm.ChunkSize)
	s.Require().NoError(err)
	s.Len(c1000, shm.ChunkSize)

	st, err := os.Stat(shm.CompanionPath(s.path))
	s.Require().NoError(err)
	s.GreaterOrEqual(st.Size(), int64(1001*shm.ChunkSize))
	s.Equal(float64(2), gaugeValue(s.env.metrics.shmSegments))
	s.Equal([]int{0, 1000}, s.f.Shm().MappedChunks())
}

func (s *ShmTestSuite) TestChunksSharedBetweenHandles() {
	other, err := s.env.OpenFile(s.path, api.OpenReadWrite)
	s.Require().NoError(err)
	defer other.Close() //nolint:errcheck

	w, err := s.f.ShmMap(3, shm.ChunkSize)
	s.Require().NoError(err)
	r, err := other.ShmMap(3, shm.ChunkSize)
	s.Require().NoError(err)

	copy(w[128:], "shared")
	s.f.ShmBarrier()
	s.Equal("shared", string(r[128:134]))
}

func (s *ShmTestSuite) TestWrongChunkSize() {
	p, err := s.f.ShmMap(0, 4096)
	s.Nil(p)
	s.ErrorIs(err, api.ErrInvalid)
	s.Equal(api.IoErr, api.Code(err))
	_, err = s.f.ShmMap(-1, shm.ChunkSize)
	s.ErrorIs(err, api.ErrInvalid)
}

func (s *ShmTestSuite) TestUnmapKeepAndDelete() {
	c, err := s.f.ShmMap(0, shm.ChunkSize)
	s.Require().NoError(err)
	copy(c, "persist")

	s.Require().NoError(s.f.ShmUnmap(false))
	s.Equal(float64(0), gaugeValue(s.env.metrics.shmSegments))
	s.Equal(int64(0), s.f.Shm().Size())

	c, err = s.f.ShmMap(0, shm.ChunkSize)
	s.Require().NoError(err)
	s.Equal("persist", string(c[:7]))

	s.Require().NoError(s.f.ShmUnmap(true))
	_, err = os.Stat(shm.CompanionPath(s.path))
	s.True(os.IsNotExist(err))

	err = s.f.ShmUnmap(true)
	s.Equal(api.IoErr, api.Code(err))
}

func TestShmTestSuite(t *testing.T) {
	suite.Run(t, new(ShmTestSuite))
}
