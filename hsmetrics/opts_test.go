// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package hsmetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevels(t *testing.T) {
	levels, err := ParseLevels("SAMPLE, LIBRARY,READ_GROUP")
	assert.NoError(t, err)
	assert.Equal(t, []Level{LevelSample, LevelLibrary, LevelReadGroup}, levels)

	levels, err = ParseLevels("")
	assert.NoError(t, err)
	assert.Equal(t, 0, len(levels))

	_, err = ParseLevels("SAMPLE,BOGUS")
	assert.Error(t, err)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "ALL_READS", LevelAllReads.String())
	assert.Equal(t, "READ_GROUP", LevelReadGroup.String())
}
