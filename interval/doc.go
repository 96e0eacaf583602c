// Package interval implements loading and indexing of capture-design
// interval sets (baits and targets).
//
// A ProbeSet is an immutable, normalized collection of named genomic
// intervals loaded from Picard interval_list or BED files.  An Index built
// from a bait set and a target set classifies single genomic positions as
// on-bait, near-bait, or off-bait, and resolves which target interval (if
// any) contains a position.  Index queries are O(log k) in the number of
// intervals on the reference, with a fast path for position-sorted query
// streams.
package interval
