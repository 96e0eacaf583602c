package interval

import (
	"fmt"
	"sort"

	"github.com/grailbio/hts/sam"
)

// Classification describes a genomic position's relationship to the bait
// design.
type Classification int

const (
	// OffBait means the position is farther than the near-probe distance
	// from every bait, or on a reference unknown to the alignment header.
	OffBait Classification = iota
	// NearBait means the position is within the near-probe distance of a
	// bait, but not covered by one.
	NearBait
	// OnBait means the position is covered by a bait interval.
	OnBait
)

func (c Classification) String() string {
	switch c {
	case OnBait:
		return "ON_BAIT"
	case NearBait:
		return "NEAR_BAIT"
	default:
		return "OFF_BAIT"
	}
}

// searchPosType returns the index of x in a[], or the position where x would
// be inserted if x isn't in a (this could be len(a)).  It's exactly the same
// as sort.SearchInt(), except for PosType.
func searchPosType(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// fwdsearchPosType checks a[idx], then a[idx + 1], then a[idx + 3], then
// a[idx + 7], etc., and then uses binary search to finish the job.  It's
// usually a better choice than searchPosType when iterating.
func fwdsearchPosType(a []PosType, x PosType, idx int) int {
	nextIncr := 1
	startIdx := idx
	endIdx := len(a)
	for idx < endIdx {
		if a[idx] >= x {
			endIdx = idx
			break
		}
		startIdx = idx + 1
		idx += nextIncr
		nextIncr *= 2
	}
	for startIdx < endIdx {
		midIdx := int(uint(startIdx+endIdx) >> 1)
		if a[midIdx] >= x {
			endIdx = midIdx
		} else {
			startIdx = midIdx + 1
		}
	}
	return startIdx
}

// setCursor performs point-membership queries against one flattened
// disjoint-interval collection (element [2k] of a reference's slice is the
// start of interval #k, element [2k+1] its end), caching search state so
// that position-sorted query streams cost O(1) amortized.
type setCursor struct {
	sets         [][]PosType
	cur          []PosType
	lastRefID    int
	lastPosPlus1 PosType
	lastIdx      int
}

func newSetCursor(sets [][]PosType) setCursor {
	return setCursor{sets: sets, lastRefID: -1}
}

// contains reports whether [pos, pos+1) is inside the set on the given
// reference, along with the flat search index (odd iff inside).  The cached
// search state is refreshed on every query, so a backward query costs one
// binary search and ascending queries resume the forward scan afterward.
func (c *setCursor) contains(refID int, pos PosType) (bool, int) {
	posPlus1 := pos + 1
	if refID != c.lastRefID {
		if (refID < 0) || (refID >= len(c.sets)) {
			return false, 0
		}
		c.lastRefID = refID
		c.cur = c.sets[refID]
		if c.cur == nil {
			return false, 0
		}
		c.lastIdx = searchPosType(c.cur, posPlus1)
		c.lastPosPlus1 = posPlus1
		return c.lastIdx&1 == 1, c.lastIdx
	}
	if c.cur == nil {
		return false, 0
	}
	if posPlus1 >= c.lastPosPlus1 {
		c.lastIdx = fwdsearchPosType(c.cur, posPlus1, c.lastIdx)
	} else {
		c.lastIdx = searchPosType(c.cur, posPlus1)
	}
	c.lastPosPlus1 = posPlus1
	return c.lastIdx&1 == 1, c.lastIdx
}

// Index classifies genomic positions against a bait design and resolves
// target membership.  The interval data is immutable and shared; the cached
// cursor state is not, so each concurrent query stream must use its own
// Clone.
type Index struct {
	baitSets   [][]PosType
	nearSets   [][]PosType
	targetSets [][]PosType
	targetIDs  [][]int32

	targets       []Interval
	targetOffsets []int
	footprint     int

	baitTerritory   int64
	targetTerritory int64

	baitCur   setCursor
	nearCur   setCursor
	targetCur setCursor
}

// flatten groups a normalized ProbeSet's intervals into per-reference
// flattened boundary slices.  Intervals on references absent from the header
// are dropped (they can never match an aligned position).
func flatten(p *ProbeSet, refIDByName map[string]int, nRef int) [][]PosType {
	sets := make([][]PosType, nRef)
	for _, iv := range p.Intervals {
		refID, ok := refIDByName[iv.RefName]
		if !ok {
			continue
		}
		sets[refID] = append(sets[refID], iv.Start0, iv.End)
	}
	return sets
}

// padFlat pads every interval by dist on each side, clamping to [0, refLen)
// and re-merging any intervals that the padding caused to overlap or abut.
func padFlat(flat []PosType, dist, refLen PosType) []PosType {
	if len(flat) == 0 {
		return nil
	}
	out := make([]PosType, 0, len(flat))
	for i := 0; i < len(flat); i += 2 {
		start := flat[i] - dist
		if start < 0 {
			start = 0
		}
		end := flat[i+1] + dist
		if end > refLen {
			end = refLen
		}
		if (len(out) != 0) && (start <= out[len(out)-1]) {
			if end > out[len(out)-1] {
				out[len(out)-1] = end
			}
			continue
		}
		out = append(out, start, end)
	}
	return out
}

// subtractFlat returns the flattened set a minus the flattened set b.
func subtractFlat(a, b []PosType) []PosType {
	var out []PosType
	bIdx := 0
	for aIdx := 0; aIdx < len(a); aIdx += 2 {
		start, end := a[aIdx], a[aIdx+1]
		for start < end {
			for (bIdx < len(b)) && (b[bIdx+1] <= start) {
				bIdx += 2
			}
			if (bIdx == len(b)) || (b[bIdx] >= end) {
				out = append(out, start, end)
				break
			}
			if b[bIdx] > start {
				out = append(out, start, b[bIdx])
			}
			start = b[bIdx+1]
		}
	}
	return out
}

func territory(sets [][]PosType) int64 {
	var n int64
	for _, flat := range sets {
		for i := 0; i < len(flat); i += 2 {
			n += int64(flat[i+1] - flat[i])
		}
	}
	return n
}

// NewIndex builds a classification index from normalized bait and target
// sets.  nearDistance defines the padding around each bait that counts as
// near-bait; the bait span itself is excluded from the near region by
// construction.  Both sets must be nonempty.
func NewIndex(baits, targets *ProbeSet, header *sam.Header, nearDistance int) (*Index, error) {
	if (baits == nil) || (len(baits.Intervals) == 0) {
		return nil, fmt.Errorf("interval.NewIndex: empty bait set")
	}
	if (targets == nil) || (len(targets.Intervals) == 0) {
		return nil, fmt.Errorf("interval.NewIndex: empty target set")
	}
	if nearDistance < 0 {
		return nil, fmt.Errorf("interval.NewIndex: negative near-probe distance %d", nearDistance)
	}
	refs := header.Refs()
	refIDByName := make(map[string]int, len(refs))
	for refID, ref := range refs {
		refIDByName[ref.Name()] = refID
	}

	x := &Index{
		baitSets:   flatten(baits, refIDByName, len(refs)),
		targetSets: flatten(targets, refIDByName, len(refs)),
		nearSets:   make([][]PosType, len(refs)),
	}
	for refID, flat := range x.baitSets {
		padded := padFlat(flat, PosType(nearDistance), PosType(refs[refID].Len()))
		x.nearSets[refID] = subtractFlat(padded, flat)
	}
	x.baitTerritory = territory(x.baitSets)
	x.targetTerritory = territory(x.targetSets)

	// Assign target IDs in (refID, start) order and lay the per-base depth
	// arena offsets out in the same order.
	x.targetIDs = make([][]int32, len(refs))
	for refID, flat := range x.targetSets {
		ids := make([]int32, len(flat)/2)
		for i := range ids {
			ids[i] = int32(len(x.targets))
			x.targetOffsets = append(x.targetOffsets, x.footprint)
			x.targets = append(x.targets, Interval{
				RefName: refs[refID].Name(),
				Start0:  flat[2*i],
				End:     flat[2*i+1],
			})
			x.footprint += int(flat[2*i+1] - flat[2*i])
		}
		x.targetIDs[refID] = ids
	}
	// Attach the merged names from the normalized target set.  The merged
	// target set and x.targets cover identical spans, but possibly in a
	// different reference order, so match by span.
	nameBySpan := make(map[Interval]string, len(targets.Intervals))
	for _, iv := range targets.Intervals {
		nameBySpan[Interval{RefName: iv.RefName, Start0: iv.Start0, End: iv.End}] = iv.Name
	}
	for i := range x.targets {
		key := Interval{RefName: x.targets[i].RefName, Start0: x.targets[i].Start0, End: x.targets[i].End}
		x.targets[i].Name = nameBySpan[key]
	}

	x.baitCur = newSetCursor(x.baitSets)
	x.nearCur = newSetCursor(x.nearSets)
	x.targetCur = newSetCursor(x.targetSets)
	return x, nil
}

// Classify returns the position's relationship to the bait design.  A
// position at an interval boundary is inside the interval (intervals are
// stored half-open, so the 1-based inclusive ends of interval_list inputs
// are already accounted for).  Positions on unknown references are OffBait.
func (x *Index) Classify(refID int, pos PosType) Classification {
	if on, _ := x.baitCur.contains(refID, pos); on {
		return OnBait
	}
	if near, _ := x.nearCur.contains(refID, pos); near {
		return NearBait
	}
	return OffBait
}

// TargetAt returns the ID of the target interval containing the position,
// if any.
func (x *Index) TargetAt(refID int, pos PosType) (int32, bool) {
	on, idx := x.targetCur.contains(refID, pos)
	if !on {
		return 0, false
	}
	return x.targetIDs[refID][idx/2], true
}

// Targets returns the merged target intervals in ID order.  The caller must
// not modify the returned slice.
func (x *Index) Targets() []Interval {
	return x.targets
}

// TargetOffset returns the starting offset of the target's per-base slots
// in a depth arena laid out per Footprint.
func (x *Index) TargetOffset(id int32) int {
	return x.targetOffsets[id]
}

// Footprint returns the total number of target bases, i.e. the required
// depth-arena length.
func (x *Index) Footprint() int {
	return x.footprint
}

// BaitTerritory returns the number of bases covered by baits on references
// known to the alignment header.
func (x *Index) BaitTerritory() int64 {
	return x.baitTerritory
}

// TargetTerritory returns the number of bases covered by targets on
// references known to the alignment header.
func (x *Index) TargetTerritory() int64 {
	return x.targetTerritory
}

// Clone returns an Index sharing the interval data but with its own cursor
// state, for use by a concurrent query stream.
func (x *Index) Clone() *Index {
	c := *x
	c.baitCur = newSetCursor(x.baitSets)
	c.nearCur = newSetCursor(x.nearSets)
	c.targetCur = newSetCursor(x.targetSets)
	return &c
}
