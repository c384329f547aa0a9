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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/srediag/lsmenv/api"
)

const mib = 1 << 20

type RemapTestSuite struct {
	suite.Suite
	env  *Env
	path string
	f    *File
}

func (s *RemapTestSuite) SetupTest() {
	s.env = newTestEnv(s.T())
	s.path = filepath.Join(s.T().TempDir(), "remap.lsmdb")
	f, err := s.env.OpenFile(s.path, api.OpenReadWrite)
	s.Require().NoError(err)
	s.f = f
}

func (s *RemapTestSuite) TearDownTest() {
	_ = s.f.Close()
}

func (s *RemapTestSuite) TestSizeWithinGranule() {
	for _, minSize := range []int64{1, 4096, 2*mib - 1, 2 * mib, 2*mib + 1, 5 * mib} {
		view, err := s.f.Remap(minSize)
		s.Require().NoError(err)
		n := int64(len(view))
		s.GreaterOrEqual(n, minSize)
		if minSize > 2*mib {
			s.Less(n, roundUp(minSize, 2*mib)+1)
		}
	}
	st, err := os.Stat(s.path)
	s.Require().NoError(err)
	s.Equal(int64(6*mib), st.Size())
}

func (s *RemapTestSuite) TestFreshFileGrowsToGranule() {
	view, err := s.f.Remap(10)
	s.Require().NoError(err)
	s.Len(view, 2*mib)
}

func (s *RemapTestSuite) TestSmallerRemapKeepsContent() {
	view, err := s.f.Remap(3 * mib)
	s.Require().NoError(err)
	s.Len(view, 4*mib)
	copy(view[3*mib:], "tail")
	copy(view, "head")

	view, err = s.f.Remap(1)
	s.Require().NoError(err)
	s.Len(view, 4*mib)
	s.Equal("head", string(view[:4]))
	s.Equal("tail", string(view[3*mib:3*mib+4]))

	got := make([]byte, 4)
	s.Require().NoError(s.f.Read(3*mib, got))
	s.Equal("tail", string(got))
}

func (s *RemapTestSuite) TestWritesVisibleThroughView() {
	s.Require().NoError(s.f.Write(100, []byte("written")))
	view, err := s.f.Remap(200)
	s.Require().NoError(err)
	s.Equal("written", string(view[100:107]))
}

func (s *RemapTestSuite) TestInvalidSizeDropsView() {
	_, err := s.f.Remap(4096)
	s.Require().NoError(err)
	s.Equal(float64(2*mib), gaugeValue(s.env.metrics.mappedBytes))

	view, err := s.f.Remap(0)
	s.Nil(view)
	s.ErrorIs(err, api.ErrInvalid)
	s.Equal(api.IoErr, api.Code(err))
	s.Nil(s.f.view)
	s.Equal(float64(0), gaugeValue(s.env.metrics.mappedBytes))

	_, err = s.f.Remap(-5)
	s.Error(err)
}

func (s *RemapTestSuite) TestReadOnlyHandle() {
	s.Require().NoError(s.f.Truncate(2 * mib))
	s.Require().NoError(s.f.Write(0, []byte("ro")))

	ro, err := s.env.OpenFile(s.path, api.OpenReadOnly)
	s.Require().NoError(err)
	defer ro.Close() //nolint:errcheck

	view, err := ro.Remap(mib)
	s.Require().NoError(err)
	s.Equal("ro", string(view[:2]))

	// a read-only handle cannot grow the file
	view, err = ro.Remap(3 * mib)
	s.Nil(view)
	s.Equal(api.IoErr, api.Code(err))
	s.Nil(ro.view)
}

func (s *RemapTestSuite) TestRemapCounter() {
	for i := 0; i < 3; i++ {
		_, err := s.f.Remap(int64(i+1) * mib)
		s.Require().NoError(err)
	}
	s.Equal(float64(3), counterValue(s.env.metrics.remaps))
}

func TestRemapTestSuite(t *testing.T) {
	suite.Run(t, new(RemapTestSuite))
}

func TestRoundUp(t *testing.T) {
	assert.Equal(t, int64(2*mib), roundUp(1, 2*mib))
	assert.Equal(t, int64(2*mib), roundUp(2*mib, 2*mib))
	assert.Equal(t, int64(4*mib), roundUp(2*mib+1, 2*mib))
	assert.Equal(t, int64(0), roundUp(0, 2*mib))
}
