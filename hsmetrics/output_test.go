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
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteMetrics(t *testing.T) {
	idx := singleTargetIndex(t)
	d := &Deriver{Index: idx, GenomeSize: 15000, BaitSet: "testpanel"}
	records := []Metrics{
		d.Derive(AllReadsKey, &Counters{
			TotalReads:     50,
			PFReads:        50,
			PFReadsAligned: 50,
			PFBasesAligned: 5000,
			OnBaitBases:    5000,
			OnTargetBases:  5000,
		}, uniformDepth(100, 50)),
		d.Derive(Key{LevelSample, "sampleA"}, &Counters{}, uniformDepth(100, 0)),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMetrics(&buf, records))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Equal(t, 4, len(lines))
	assert.Equal(t, "# bio-hsmetrics", lines[0])

	header := strings.Split(lines[1], "\t")
	assert.Equal(t, "BAIT_SET", header[0])
	for _, line := range lines[2:] {
		assert.Equal(t, len(header), len(strings.Split(line, "\t")))
	}
	row := strings.Split(lines[2], "\t")
	assert.Equal(t, "testpanel", row[0])
	assert.Equal(t, "ALL_READS", row[1])
	row = strings.Split(lines[3], "\t")
	assert.Equal(t, "SAMPLE", row[1])
	assert.Equal(t, "sampleA", row[2])
}

func TestWriteMetricsBlanksNaN(t *testing.T) {
	assert.Equal(t, "", formatFloat(math.NaN()))
	assert.Equal(t, "0.250000", formatFloat(0.25))

	m := Metrics{Fold80BasePenalty: math.NaN(), ATDropout: math.NaN(), GCDropout: math.NaN()}
	m.PctTargetBases = make([]float64, len(CoverageThresholds))
	fields := strings.Split(m.Row(), "\t")
	header := strings.Split(metricsHeader(), "\t")
	require.Equal(t, len(header), len(fields))
	for i, name := range header {
		if name == "FOLD_80_BASE_PENALTY" || name == "AT_DROPOUT" || name == "GC_DROPOUT" {
			assert.Equal(t, "", fields[i], "column %s", name)
		}
	}
}

func TestWritePerTarget(t *testing.T) {
	rows := []TargetCoverage{
		{RefName: "chr1", Start: 1051, End: 1150, Length: 100, Name: "t1",
			GCFrac: 0.4, MeanCoverage: 15, NormalizedCoverage: 1.5},
		{RefName: "chr2", Start: 2001, End: 2050, Length: 50, Name: "t2",
			GCFrac: math.NaN(), MeanCoverage: 0, NormalizedCoverage: 0},
	}
	var buf bytes.Buffer
	require.NoError(t, WritePerTarget(&buf, rows))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Equal(t, 3, len(lines))
	assert.Equal(t, "chrom\tstart\tend\tlength\tname\t%gc\tmean_coverage\tnormalized_coverage", lines[0])
	assert.Equal(t, "chr1\t1051\t1150\t100\tt1\t0.400000\t15.000000\t1.500000", lines[1])
	assert.Equal(t, "chr2\t2001\t2050\t50\tt2\t\t0.000000\t0.000000", lines[2])
}

func TestWritePerBase(t *testing.T) {
	rows := []BaseCoverage{
		{RefName: "chr1", Pos: 1051, Target: "t1", Depth: 7},
		{RefName: "chr1", Pos: 1052, Target: "t1", Depth: 0},
	}
	var buf bytes.Buffer
	require.NoError(t, WritePerBase(&buf, rows))
	assert.Equal(t, "chrom\tpos\ttarget\tcoverage\nchr1\t1051\tt1\t7\nchr1\t1052\tt1\t0\n", buf.String())
}
