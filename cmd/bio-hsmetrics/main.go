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
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hsmetrics/hsmetrics"
)

var (
	baitPaths    = flag.String("baits", "", "Comma-separated bait interval_list or BED path(s); required")
	targetPaths  = flag.String("targets", "", "Comma-separated target interval_list or BED path(s); defaults to -baits")
	baitSetName  = flag.String("bait-set-name", "", "Name reported in the BAIT_SET column; derived from the bait filenames when empty")
	bamIndexPath = flag.String("index", hsmetrics.DefaultOpts.BamIndexPath, "Input BAM index path. Defaults to bampath + .bai")
	fastaPath    = flag.String("reference", hsmetrics.DefaultOpts.FastaPath, "Reference FASTA path; enables AT/GC dropout and per-target %gc")
	out          = flag.String("out", "hs_metrics.txt", "Metrics output path")
	perTarget    = flag.String("per-target-out", hsmetrics.DefaultOpts.PerTargetPath, "Per-target coverage output path; empty disables")
	perBase      = flag.String("per-base-out", hsmetrics.DefaultOpts.PerBasePath, "Per-base coverage output path; empty disables")
	mapq         = flag.Int("mapq", hsmetrics.DefaultOpts.MinMapQ, "Reads with MAPQ below this level contribute no coverage")
	minBaseQual  = flag.Int("min-base-qual", hsmetrics.DefaultOpts.MinBaseQual, "Bases with quality below this level contribute no coverage")
	clipOverlaps = flag.Bool("clip-overlapping-reads", hsmetrics.DefaultOpts.ClipOverlappingReads, "Count overlapping mate bases only once")
	coverageCap  = flag.Int("coverage-cap", hsmetrics.DefaultOpts.CoverageCap, "Per-position depth saturates at this value")
	sampleSize   = flag.Int64("sample-size", hsmetrics.DefaultOpts.SampleSize, "Stop after this many qualifying reads; 0 = no cap. Forces a sequential pass")
	nearDistance = flag.Int("near-distance", hsmetrics.DefaultOpts.NearProbeDistance, "Bases within this distance of a bait count as near-bait")
	levels       = flag.String("levels", "", "Comma-separated accumulation levels beyond ALL_READS: SAMPLE, LIBRARY, READ_GROUP")
	parallelism  = flag.Int("parallelism", hsmetrics.DefaultOpts.Parallelism, "Maximum number of simultaneous accumulation jobs; 0 = runtime.NumCPU()")
)

func bioHsMetricsUsage() {
	fmt.Printf("Usage: %s [OPTIONS] {b,p}ampath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func splitPaths(s string) []string {
	var paths []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			paths = append(paths, tok)
		}
	}
	return paths
}

func main() {
	flag.Usage = bioHsMetricsUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 {
		log.Fatalf("Exactly one positional argument ({b,p}ampath) expected; please check flag syntax: '%s'", strings.Join(flag.Args(), " "))
	}
	if *baitPaths == "" {
		log.Fatalf("-baits is required")
	}
	parsedLevels, err := hsmetrics.ParseLevels(*levels)
	if err != nil {
		log.Fatalf("%v", err)
	}
	targets := *targetPaths
	if targets == "" {
		targets = *baitPaths
	}
	ctx := vcontext.Background()
	opts := hsmetrics.Opts{
		BamPath:              flag.Arg(0),
		BamIndexPath:         *bamIndexPath,
		BaitPaths:            splitPaths(*baitPaths),
		TargetPaths:          splitPaths(targets),
		BaitSetName:          *baitSetName,
		FastaPath:            *fastaPath,
		MetricsPath:          *out,
		PerTargetPath:        *perTarget,
		PerBasePath:          *perBase,
		MinMapQ:              *mapq,
		MinBaseQual:          *minBaseQual,
		ClipOverlappingReads: *clipOverlaps,
		CoverageCap:          *coverageCap,
		SampleSize:           *sampleSize,
		NearProbeDistance:    *nearDistance,
		GCBuckets:            hsmetrics.DefaultOpts.GCBuckets,
		Levels:               parsedLevels,
		Parallelism:          *parallelism,
	}
	if err := hsmetrics.Collect(ctx, opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
