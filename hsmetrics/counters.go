package hsmetrics

// Counters are the running read- and base-level totals for one
// stratification key.  All fields are plain sums, so merging partial counters
// is associative and commutative.
type Counters struct {
	// TotalReads counts every record seen, including filtered ones.
	TotalReads int64
	// PFReads counts records not failing the vendor quality check.
	PFReads int64
	// PFReadsAligned counts PF records that were mapped, primary,
	// non-duplicate.
	PFReadsAligned int64

	// Read-level exclusion tallies.
	SecondaryOrSupplementary int64
	UnmappedReads            int64
	DupReads                 int64
	FailedMapqReads          int64
	MalformedReads           int64

	// PFBasesAligned counts reference-aligned bases of reads that reached
	// base-level accumulation, before per-base filtering.
	PFBasesAligned int64

	// Base-level exclusion tallies.
	DupBases      int64
	MapqBases     int64
	BaseQualBases int64
	OverlapBases  int64

	// Classification tallies over surviving bases.
	OnBaitBases   int64
	NearBaitBases int64
	OffBaitBases  int64
	OnTargetBases int64
}

// Add adds the counts in other to c.
func (c *Counters) Add(other *Counters) {
	c.TotalReads += other.TotalReads
	c.PFReads += other.PFReads
	c.PFReadsAligned += other.PFReadsAligned
	c.SecondaryOrSupplementary += other.SecondaryOrSupplementary
	c.UnmappedReads += other.UnmappedReads
	c.DupReads += other.DupReads
	c.FailedMapqReads += other.FailedMapqReads
	c.MalformedReads += other.MalformedReads
	c.PFBasesAligned += other.PFBasesAligned
	c.DupBases += other.DupBases
	c.MapqBases += other.MapqBases
	c.BaseQualBases += other.BaseQualBases
	c.OverlapBases += other.OverlapBases
	c.OnBaitBases += other.OnBaitBases
	c.NearBaitBases += other.NearBaitBases
	c.OffBaitBases += other.OffBaitBases
	c.OnTargetBases += other.OnTargetBases
}
