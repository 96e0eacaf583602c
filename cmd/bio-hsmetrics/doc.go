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

/*
Given a BAM or PAM, a bait design, and a target design, bio-hsmetrics reports
hybrid-selection quality metrics: on/near/off-bait base fractions, target
coverage depth and uniformity, fold enrichment, and AT/GC dropout.  The
report follows the conventions of "picard CollectHsMetrics".

Bait and target designs are accepted as Picard interval_list files (1-based,
inclusive ends) or BED files (0-based, half-open); overlapping and abutting
intervals are merged before use.  Supplying a reference FASTA enables the
GC-related columns.

Metrics are always computed over all reads; -levels adds stratified records
per sample, library, or read group.

Sample usage:
bio-hsmetrics \
    --baits panel.interval_list \
    --targets panel_targets.interval_list \
    --reference ref.fa \
    --out hs_metrics.txt \
    my.bam
*/
package main
