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
	"math"
	"sort"

	"github.com/grailbio/hsmetrics/interval"
)

// CoverageThresholds are the depths at which target-base coverage uniformity
// is reported (PCT_TARGET_BASES_<n>X).
var CoverageThresholds = []uint32{1, 2, 10, 20, 30, 40, 50, 100}

// Metrics is the final immutable record for one stratification key.
// AT/GC dropout fields are NaN when no reference sequence was supplied.
type Metrics struct {
	BaitSet string
	Level   Level
	Key     string

	GenomeSize           int64
	BaitTerritory        int64
	TargetTerritory      int64
	BaitDesignEfficiency float64

	Counters Counters

	PctPFReads float64
	// PctSelectedBases is (on-bait + near-bait bases) / PF bases aligned,
	// following picard's definition of selected bases rather than on-target
	// bases alone.
	PctSelectedBases float64
	PctOffBait       float64
	OnBaitVsSelected float64

	MeanBaitCoverage     float64
	MeanTargetCoverage   float64
	MedianTargetCoverage float64
	ZeroCvgTargetsPct    float64
	FoldEnrichment       float64
	Fold80BasePenalty    float64

	// PctTargetBases[i] is the fraction of target bases with depth >=
	// CoverageThresholds[i].
	PctTargetBases []float64

	PctExcDupe    float64
	PctExcMapQ    float64
	PctExcBaseQ   float64
	PctExcOverlap float64

	ATDropout float64
	GCDropout float64
}

// TargetCoverage is one row of the optional per-target coverage table.
// Start is 1-based inclusive, matching interval_list conventions.
type TargetCoverage struct {
	RefName            string
	Start              interval.PosType
	End                interval.PosType
	Length             interval.PosType
	Name               string
	GCFrac             float64
	MeanCoverage       float64
	NormalizedCoverage float64
}

// BaseCoverage is one row of the optional per-base coverage table.  Pos is
// 1-based.
type BaseCoverage struct {
	RefName string
	Pos     interval.PosType
	Target  string
	Depth   uint32
}

// Deriver turns accumulated state into metric records and coverage tables.
// It holds only shared read-only inputs, so one Deriver serves every
// stratification key.
type Deriver struct {
	Index      *interval.Index
	GC         *GCTable // nil when no reference was supplied
	GenomeSize int64
	BaitSet    string
}

func ratio(num, denom int64) float64 {
	if denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}

// pctAtLeast returns the fraction of entries in the ascending slice that are
// >= x.
func pctAtLeast(sorted []uint32, x uint32) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := sort.Search(len(sorted), func(i int) bool { return sorted[i] >= x })
	return float64(len(sorted)-idx) / float64(len(sorted))
}

func median(sorted []uint32) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2
}

// Derive computes the metric record for one key.  Pure: calling it twice on
// the same state yields identical records.
func (d *Deriver) Derive(key Key, c *Counters, depth []uint32) Metrics {
	m := Metrics{
		BaitSet:         d.BaitSet,
		Level:           key.Level,
		Key:             key.Value,
		GenomeSize:      d.GenomeSize,
		BaitTerritory:   d.Index.BaitTerritory(),
		TargetTerritory: d.Index.TargetTerritory(),
		Counters:        *c,
	}
	if m.BaitTerritory != 0 {
		m.BaitDesignEfficiency = float64(m.TargetTerritory) / float64(m.BaitTerritory)
	}
	m.PctPFReads = ratio(c.PFReads, c.TotalReads)
	selected := c.OnBaitBases + c.NearBaitBases
	m.PctSelectedBases = ratio(selected, c.PFBasesAligned)
	m.PctOffBait = ratio(c.OffBaitBases, c.PFBasesAligned)
	m.OnBaitVsSelected = ratio(c.OnBaitBases, selected)
	m.MeanBaitCoverage = ratio(c.OnBaitBases, m.BaitTerritory)

	totalAligned := c.PFBasesAligned + c.DupBases + c.MapqBases
	m.PctExcDupe = ratio(c.DupBases, totalAligned)
	m.PctExcMapQ = ratio(c.MapqBases, totalAligned)
	m.PctExcBaseQ = ratio(c.BaseQualBases, totalAligned)
	m.PctExcOverlap = ratio(c.OverlapBases, totalAligned)

	sorted := append([]uint32(nil), depth...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var depthSum int64
	for _, v := range depth {
		depthSum += int64(v)
	}
	if len(depth) != 0 {
		m.MeanTargetCoverage = float64(depthSum) / float64(len(depth))
		m.MedianTargetCoverage = median(sorted)
	}
	m.PctTargetBases = make([]float64, len(CoverageThresholds))
	for i, threshold := range CoverageThresholds {
		m.PctTargetBases[i] = pctAtLeast(sorted, threshold)
	}
	m.Fold80BasePenalty = math.NaN()
	if len(sorted) != 0 {
		if q20 := sorted[len(sorted)/5]; q20 != 0 {
			m.Fold80BasePenalty = m.MeanTargetCoverage / float64(q20)
		}
	}
	m.ZeroCvgTargetsPct = d.zeroCvgTargetsPct(depth)
	m.FoldEnrichment = math.NaN()
	if (c.PFBasesAligned != 0) && (m.TargetTerritory != 0) && (d.GenomeSize != 0) {
		m.FoldEnrichment = (float64(c.OnTargetBases) / float64(m.TargetTerritory)) /
			(float64(c.PFBasesAligned) / float64(d.GenomeSize))
	}
	m.ATDropout, m.GCDropout = d.dropout(depth)
	return m
}

func (d *Deriver) zeroCvgTargetsPct(depth []uint32) float64 {
	targets := d.Index.Targets()
	if len(targets) == 0 {
		return 0
	}
	zero := 0
	for id := range targets {
		off := d.Index.TargetOffset(int32(id))
		covered := false
		for i := 0; i != int(targets[id].Len()); i++ {
			if depth[off+i] != 0 {
				covered = true
				break
			}
		}
		if !covered {
			zero++
		}
	}
	return float64(zero) / float64(len(targets))
}

// dropout computes the AT and GC dropout percentages: for every GC bucket,
// the aligned-base shortfall relative to the coverage expected from the
// bucket's share of target territory, summed over buckets below (AT) and
// above (GC) the 50% GC midpoint.  Order-independent pure reduction over
// the final depth state, so sharded runs need no incremental GC bookkeeping.
func (d *Deriver) dropout(depth []uint32) (at, gc float64) {
	if d.GC == nil {
		return math.NaN(), math.NaN()
	}
	nb := d.GC.NBuckets()
	territory := make([]int64, nb)
	observed := make([]int64, nb)
	var totalTerritory, totalObserved int64
	for id, target := range d.Index.Targets() {
		bucket := d.GC.Bucket(int32(id))
		if bucket == NoGCBucket {
			continue
		}
		off := d.Index.TargetOffset(int32(id))
		var sum int64
		for i := 0; i != int(target.Len()); i++ {
			sum += int64(depth[off+i])
		}
		territory[bucket] += int64(target.Len())
		observed[bucket] += sum
		totalTerritory += int64(target.Len())
		totalObserved += sum
	}
	if totalTerritory == 0 {
		return math.NaN(), math.NaN()
	}
	if totalObserved == 0 {
		return 0, 0
	}
	for bucket := 0; bucket != nb; bucket++ {
		expected := float64(totalObserved) * float64(territory[bucket]) / float64(totalTerritory)
		shortfall := (expected - float64(observed[bucket])) / float64(totalObserved) * 100
		if shortfall <= 0 {
			continue
		}
		if d.GC.BucketMidGC(bucket) < 0.5 {
			at += shortfall
		} else {
			gc += shortfall
		}
	}
	return at, gc
}

// PerTarget projects the accumulated depth into one row per target
// interval.  %GC is NaN without a reference.
func (d *Deriver) PerTarget(depth []uint32) []TargetCoverage {
	targets := d.Index.Targets()
	rows := make([]TargetCoverage, 0, len(targets))
	var depthSum int64
	for _, v := range depth {
		depthSum += int64(v)
	}
	overallMean := 0.0
	if len(depth) != 0 {
		overallMean = float64(depthSum) / float64(len(depth))
	}
	for id, target := range targets {
		off := d.Index.TargetOffset(int32(id))
		var sum int64
		for i := 0; i != int(target.Len()); i++ {
			sum += int64(depth[off+i])
		}
		mean := float64(sum) / float64(target.Len())
		row := TargetCoverage{
			RefName:      target.RefName,
			Start:        target.Start0 + 1,
			End:          target.End,
			Length:       target.Len(),
			Name:         target.Name,
			GCFrac:       math.NaN(),
			MeanCoverage: mean,
		}
		if d.GC != nil {
			row.GCFrac = d.GC.Frac(int32(id))
		}
		if overallMean != 0 {
			row.NormalizedCoverage = mean / overallMean
		}
		rows = append(rows, row)
	}
	return rows
}

// PerBase projects the accumulated depth into one row per target base.
func (d *Deriver) PerBase(depth []uint32) []BaseCoverage {
	targets := d.Index.Targets()
	rows := make([]BaseCoverage, 0, len(depth))
	for id, target := range targets {
		off := d.Index.TargetOffset(int32(id))
		for i := 0; i != int(target.Len()); i++ {
			rows = append(rows, BaseCoverage{
				RefName: target.RefName,
				Pos:     target.Start0 + 1 + interval.PosType(i),
				Target:  target.Name,
				Depth:   depth[off+i],
			})
		}
	}
	return rows
}
