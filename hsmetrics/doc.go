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

// Package hsmetrics computes hybrid-selection quality metrics for a BAM/PAM
// of aligned reads against a bait/target capture design.
//
// The engine consumes quality-filtered aligned reads in a single logical
// pass, classifies every surviving base as on-, near-, or off-bait,
// accumulates capped per-base depth over the target territory, and derives a
// metric record per stratification key (overall, and optionally per sample,
// library, or read group): selection ratios, fold enrichment, coverage
// uniformity, and GC-driven AT/GC dropout when a reference sequence is
// supplied.
package hsmetrics
