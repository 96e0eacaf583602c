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
	"fmt"
	"math"

	"github.com/grailbio/bio/encoding/fasta"
	"github.com/grailbio/hsmetrics/interval"
)

// NoGCBucket marks a target without usable reference bases (sequence absent
// from the reference, or all-ambiguous).
const NoGCBucket = -1

// GCTable holds the precomputed GC fraction and dropout-bucket assignment of
// every target interval.  Built once, then shared read-only.
type GCTable struct {
	fracs    []float64
	buckets  []int
	nBuckets int
}

// NewGCTable computes per-target GC content from the reference.  Ambiguous
// bases are excluded from the denominator.  Targets whose sequence is not in
// the reference get NoGCBucket rather than failing the run.
func NewGCTable(ref fasta.Fasta, targets []interval.Interval, nBuckets int) (*GCTable, error) {
	if nBuckets <= 0 {
		return nil, fmt.Errorf("hsmetrics.NewGCTable: invalid bucket count %d", nBuckets)
	}
	g := &GCTable{
		fracs:    make([]float64, len(targets)),
		buckets:  make([]int, len(targets)),
		nBuckets: nBuckets,
	}
	for i, target := range targets {
		g.fracs[i] = math.NaN()
		g.buckets[i] = NoGCBucket
		seq, err := ref.Get(target.RefName, uint64(target.Start0), uint64(target.End))
		if err != nil {
			continue
		}
		var gc, at int
		for j := 0; j != len(seq); j++ {
			switch seq[j] {
			case 'G', 'C', 'g', 'c':
				gc++
			case 'A', 'T', 'a', 't':
				at++
			}
		}
		if gc+at == 0 {
			continue
		}
		frac := float64(gc) / float64(gc+at)
		g.fracs[i] = frac
		bucket := int(frac * float64(nBuckets))
		if bucket == nBuckets {
			bucket = nBuckets - 1
		}
		g.buckets[i] = bucket
	}
	return g, nil
}

// NBuckets returns the number of equal-width GC buckets.
func (g *GCTable) NBuckets() int {
	return g.nBuckets
}

// Bucket returns the GC bucket of the target, or NoGCBucket.
func (g *GCTable) Bucket(targetID int32) int {
	return g.buckets[targetID]
}

// Frac returns the target's GC fraction in [0,1], or NaN if unavailable.
func (g *GCTable) Frac(targetID int32) float64 {
	return g.fracs[targetID]
}

// BucketMidGC returns the GC fraction at the middle of a bucket.
func (g *GCTable) BucketMidGC(bucket int) float64 {
	return (float64(bucket) + 0.5) / float64(g.nBuckets)
}
