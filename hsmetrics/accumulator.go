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
	"strings"

	"github.com/grailbio/hsmetrics/interval"
	"github.com/grailbio/hts/sam"
)

// Key identifies one stratification slot: the overall run, or one sample /
// library / read group.
type Key struct {
	Level Level
	Value string
}

// AllReadsKey is the top-level stratification key, always accumulated.
var AllReadsKey = Key{Level: LevelAllReads}

type accState struct {
	counters Counters
	depth    []uint32
}

// Accumulator consumes one aligned read at a time and maintains capped
// per-target-base depth and classification counters for every active
// stratification key.  Not safe for concurrent use; shard the input and
// Merge instead.
type Accumulator struct {
	idx  *interval.Index
	opts Opts
	nRef int

	rgSample  map[string]string
	rgLibrary map[string]string

	states   map[Key]*accState
	keyOrder []Key

	// Per-read scratch, reused across Add calls.
	keysBuf    []Key
	offsetsBuf []int32
	delta      Counters

	sampled int64
	done    bool
}

var rgTag = sam.NewTag("RG")

// rgField extracts a two-letter tag value (e.g. "SM") from a read group's
// header line; the hts read-group type does not expose accessors for every
// @RG attribute.
func rgField(rg *sam.ReadGroup, tag string) string {
	for _, field := range strings.Split(rg.String(), "\t") {
		if strings.HasPrefix(field, tag) && (len(field) > 3) && (field[2] == ':') {
			return field[3:]
		}
	}
	return ""
}

// NewAccumulator builds an accumulator over the given classification index.
// The index is cloned, so one shared Index may back many accumulators.
func NewAccumulator(idx *interval.Index, header *sam.Header, opts Opts) *Accumulator {
	a := &Accumulator{
		idx:       idx.Clone(),
		opts:      opts,
		nRef:      len(header.Refs()),
		rgSample:  make(map[string]string),
		rgLibrary: make(map[string]string),
		states:    make(map[Key]*accState),
	}
	for _, rg := range header.RGs() {
		a.rgSample[rg.Name()] = rgField(rg, "SM")
		a.rgLibrary[rg.Name()] = rg.Library()
	}
	a.state(AllReadsKey)
	return a
}

func (a *Accumulator) state(key Key) *accState {
	st, found := a.states[key]
	if !found {
		st = &accState{depth: make([]uint32, a.idx.Footprint())}
		a.states[key] = st
		a.keyOrder = append(a.keyOrder, key)
	}
	return st
}

func recordReadGroup(rec *sam.Record) (string, bool) {
	aux := rec.AuxFields.Get(rgTag)
	if aux == nil {
		return "", false
	}
	return aux.Value().(string), true
}

func (a *Accumulator) keysFor(rec *sam.Record, buf []Key) []Key {
	buf = append(buf, AllReadsKey)
	if len(a.opts.Levels) == 0 {
		return buf
	}
	rg, _ := recordReadGroup(rec)
	for _, level := range a.opts.Levels {
		switch level {
		case LevelSample:
			value := a.rgSample[rg]
			if value == "" {
				value = "Unknown Sample"
			}
			buf = append(buf, Key{LevelSample, value})
		case LevelLibrary:
			value := a.rgLibrary[rg]
			if value == "" {
				value = "Unknown Library"
			}
			buf = append(buf, Key{LevelLibrary, value})
		case LevelReadGroup:
			value := rg
			if value == "" {
				value = "Unknown Read Group"
			}
			buf = append(buf, Key{LevelReadGroup, value})
		}
	}
	return buf
}

// Done reports whether the configured sample-size cap has been reached;
// further Add calls are no-ops.
func (a *Accumulator) Done() bool {
	return a.done
}

// Sampled returns the number of qualifying reads accumulated so far.
func (a *Accumulator) Sampled() int64 {
	return a.sampled
}

// Add processes one record.  Malformed records are tallied and skipped, never
// fatal.
func (a *Accumulator) Add(rec *sam.Record) {
	if a.done {
		return
	}
	a.keysBuf = a.keysFor(rec, a.keysBuf[:0])
	a.offsetsBuf = a.offsetsBuf[:0]
	a.delta = Counters{}
	qualified := a.processRecord(rec)
	depthCap := uint32(a.opts.CoverageCap)
	for _, key := range a.keysBuf {
		st := a.state(key)
		st.counters.Add(&a.delta)
		for _, off := range a.offsetsBuf {
			if st.depth[off] < depthCap {
				st.depth[off]++
			}
		}
	}
	if qualified {
		a.sampled++
		if (a.opts.SampleSize > 0) && (a.sampled >= a.opts.SampleSize) {
			a.done = true
		}
	}
}

// alignedBases returns the number of reference-aligned read bases, i.e. the
// sum of the M/=/X operation lengths.
func alignedBases(cigar sam.Cigar) int64 {
	var n int64
	for _, co := range cigar {
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			n += int64(co.Len())
		}
	}
	return n
}

// cigarConsistent verifies that the CIGAR's read-consuming length matches
// the quality string and that only ops this engine understands appear.
func cigarConsistent(rec *sam.Record) bool {
	readLen := 0
	for _, co := range rec.Cigar {
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarInsertion, sam.CigarSoftClipped:
			readLen += co.Len()
		case sam.CigarDeletion, sam.CigarSkipped, sam.CigarHardClipped, sam.CigarPadded:
		default:
			return false
		}
	}
	return readLen == len(rec.Qual)
}

// overlapClipStart returns the reference position from which this read's
// bases are suppressed as mate-overlap, or PosTypeMax when no clipping
// applies.  Exactly one end of an overlapping pair is clipped: the leftmost
// read loses its bases from the mate's start onward.
func overlapClipStart(rec *sam.Record) interval.PosType {
	const noClip = interval.PosType(interval.PosTypeMax)
	if (rec.Flags&sam.Paired == 0) || (rec.Flags&sam.MateUnmapped != 0) || (rec.MateRef != rec.Ref) {
		return noClip
	}
	if rec.Pos > rec.MatePos {
		return noClip
	}
	if (rec.Pos == rec.MatePos) && !clipsAtEqualStart(rec.Flags) {
		return noClip
	}
	if rec.MatePos >= rec.End() {
		return noClip
	}
	return interval.PosType(rec.MatePos)
}

// clipsAtEqualStart picks which mate of an equal-start pair is clipped.  The
// decision must come out opposite for the two mates, so it is based on flag
// bits that a well-formed pair carries asymmetrically: the Read1/Read2 pair
// if exactly one is set, then read orientation.  When no asymmetric bit is
// available both ends are counted rather than neither.
func clipsAtEqualStart(flags sam.Flags) bool {
	r1 := flags&sam.Read1 != 0
	r2 := flags&sam.Read2 != 0
	if r1 != r2 {
		return r1
	}
	rev := flags&sam.Reverse != 0
	mateRev := flags&sam.MateReverse != 0
	if rev != mateRev {
		return !rev
	}
	return false
}

// processRecord applies the read-level filter chain and classifies every
// surviving base, writing counter deltas to a.delta and depth-arena offsets
// to a.offsetsBuf.  Returns whether the read qualified for base-level
// accumulation.
func (a *Accumulator) processRecord(rec *sam.Record) bool {
	d := &a.delta
	d.TotalReads++
	pf := rec.Flags&sam.QCFail == 0
	if pf {
		d.PFReads++
	}
	if rec.Flags&(sam.Secondary|sam.Supplementary) != 0 {
		d.SecondaryOrSupplementary++
		return false
	}
	if (rec.Flags&sam.Unmapped != 0) || (rec.Ref == nil) {
		d.UnmappedReads++
		return false
	}
	refID := rec.Ref.ID()
	if (refID < 0) || (refID >= a.nRef) || !cigarConsistent(rec) {
		d.MalformedReads++
		return false
	}
	if !pf {
		return false
	}
	if rec.Flags&sam.Duplicate != 0 {
		d.DupReads++
		d.DupBases += alignedBases(rec.Cigar)
		return false
	}
	d.PFReadsAligned++
	if int(rec.MapQ) < a.opts.MinMapQ {
		d.FailedMapqReads++
		d.MapqBases += alignedBases(rec.Cigar)
		return false
	}

	clipFrom := interval.PosType(interval.PosTypeMax)
	if a.opts.ClipOverlappingReads {
		clipFrom = overlapClipStart(rec)
	}
	minBaseQual := byte(a.opts.MinBaseQual)
	targets := a.idx.Targets()
	refPos := interval.PosType(rec.Pos)
	readPos := 0
	for _, co := range rec.Cigar {
		cLen := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for i := 0; i != cLen; i++ {
				d.PFBasesAligned++
				pos := refPos + interval.PosType(i)
				if pos >= clipFrom {
					d.OverlapBases++
					continue
				}
				if rec.Qual[readPos+i] < minBaseQual {
					d.BaseQualBases++
					continue
				}
				switch a.idx.Classify(refID, pos) {
				case interval.OnBait:
					d.OnBaitBases++
					if id, ok := a.idx.TargetAt(refID, pos); ok {
						d.OnTargetBases++
						off := a.idx.TargetOffset(id) + int(pos-targets[id].Start0)
						a.offsetsBuf = append(a.offsetsBuf, int32(off))
					}
				case interval.NearBait:
					d.NearBaitBases++
				default:
					d.OffBaitBases++
				}
			}
			refPos += interval.PosType(cLen)
			readPos += cLen
		case sam.CigarInsertion, sam.CigarSoftClipped:
			readPos += cLen
		case sam.CigarDeletion, sam.CigarSkipped:
			refPos += interval.PosType(cLen)
		}
	}
	return true
}

// Keys returns the stratification keys observed so far, AllReadsKey first,
// then in first-observed order.
func (a *Accumulator) Keys() []Key {
	return a.keyOrder
}

// Counters returns the totals for the key, or nil if the key was never
// observed.
func (a *Accumulator) Counters(key Key) *Counters {
	st, found := a.states[key]
	if !found {
		return nil
	}
	return &st.counters
}

// Depth returns the key's per-target-base depth arena, indexed by
// Index.TargetOffset(id) + offset-within-target.  Nil if the key was never
// observed.
func (a *Accumulator) Depth(key Key) []uint32 {
	st, found := a.states[key]
	if !found {
		return nil
	}
	return st.depth
}

// Merge folds other into a, summing counters and depth arrays and re-capping
// depth.  Merging is associative and commutative, so the result is
// independent of how the input was sharded.
func (a *Accumulator) Merge(other *Accumulator) {
	depthCap := uint32(a.opts.CoverageCap)
	for _, key := range other.keyOrder {
		ost := other.states[key]
		st := a.state(key)
		st.counters.Add(&ost.counters)
		for i, v := range ost.depth {
			sum := st.depth[i] + v
			if (sum > depthCap) || (sum < v) {
				sum = depthCap
			}
			st.depth[i] = sum
		}
	}
	a.sampled += other.sampled
}
