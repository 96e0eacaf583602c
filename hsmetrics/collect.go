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
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/bio/encoding/bamprovider"
	"github.com/grailbio/bio/encoding/fasta"
	"github.com/grailbio/hsmetrics/interval"
	"github.com/grailbio/hts/sam"
)

// Result bundles the output of one collection run: one metric record per
// observed stratification key (ALL_READS first), plus the optional coverage
// tables projected from the ALL_READS state.
type Result struct {
	Metrics   []Metrics
	PerTarget []TargetCoverage
	PerBase   []BaseCoverage
}

func genomeSize(header *sam.Header) int64 {
	var n int64
	for _, ref := range header.Refs() {
		n += int64(ref.Len())
	}
	return n
}

// sortKeys orders stratification keys deterministically: ALL_READS first,
// then by level and value.  Needed because per-worker first-observed order
// depends on scheduling.
func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Level != keys[j].Level {
			return keys[i].Level < keys[j].Level
		}
		return keys[i].Value < keys[j].Value
	})
}

// CollectFromProvider runs the full accumulation and derivation pipeline
// over an already-opened alignment source.  The input is sharded across
// opts.Parallelism workers, each owning its accumulator, and the partial
// states are merged before derivation; a sample-size cap forces a single
// sequential pass so that "the first N qualifying reads" is well defined.
func CollectFromProvider(provider bamprovider.Provider, baits, targets *interval.ProbeSet,
	ref fasta.Fasta, opts Opts) (*Result, error) {
	header, err := provider.GetHeader()
	if err != nil {
		return nil, err
	}
	idx, err := interval.NewIndex(baits, targets, header, opts.NearProbeDistance)
	if err != nil {
		return nil, err
	}
	var gcTable *GCTable
	if ref != nil {
		if gcTable, err = NewGCTable(ref, idx.Targets(), opts.GCBuckets); err != nil {
			return nil, err
		}
	}

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if opts.SampleSize > 0 {
		parallelism = 1
	}
	shards, err := provider.GenerateShards(bamprovider.GenerateShardsOpts{
		NumShards:       parallelism,
		IncludeUnmapped: true,
	})
	if err != nil {
		return nil, err
	}
	if parallelism > len(shards) {
		parallelism = len(shards)
	}

	accs := make([]*Accumulator, parallelism)
	err = traverse.Each(parallelism, func(jobIdx int) error {
		acc := NewAccumulator(idx, header, opts)
		accs[jobIdx] = acc
		startIdx := (jobIdx * len(shards)) / parallelism
		endIdx := ((jobIdx + 1) * len(shards)) / parallelism
		for _, shard := range shards[startIdx:endIdx] {
			iter := provider.NewIterator(shard)
			for iter.Scan() {
				acc.Add(iter.Record())
				if acc.Done() {
					break
				}
			}
			if e := iter.Close(); e != nil {
				return e
			}
			if acc.Done() {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	merged := accs[0]
	for _, acc := range accs[1:] {
		merged.Merge(acc)
	}
	log.Printf("hsmetrics: accumulated %d read(s) over %d shard(s)", merged.Counters(AllReadsKey).TotalReads, len(shards))

	deriver := &Deriver{
		Index:      idx,
		GC:         gcTable,
		GenomeSize: genomeSize(header),
		BaitSet:    baits.Name,
	}
	keys := append([]Key(nil), merged.Keys()...)
	sortKeys(keys)
	result := &Result{}
	for _, key := range keys {
		result.Metrics = append(result.Metrics, deriver.Derive(key, merged.Counters(key), merged.Depth(key)))
	}
	if opts.PerTargetPath != "" {
		result.PerTarget = deriver.PerTarget(merged.Depth(AllReadsKey))
	}
	if opts.PerBasePath != "" {
		result.PerBase = deriver.PerBase(merged.Depth(AllReadsKey))
	}
	return result, nil
}

func openFasta(ctx context.Context, path string) (fa fasta.Fasta, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return nil, err
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fasta.New(io.Reader(infile.Reader(ctx)))
}

// Collect is the top-level entry point: it loads the capture design and
// optional reference, streams the alignment file, and writes the metrics
// report plus any requested coverage tables.  Configuration failures abort
// before accumulation starts; report-writing failures are surfaced
// separately after accumulation has succeeded.
func Collect(ctx context.Context, opts Opts) (err error) {
	if opts.BamPath == "" {
		return fmt.Errorf("hsmetrics.Collect: no alignment file given")
	}
	if opts.MetricsPath == "" {
		return fmt.Errorf("hsmetrics.Collect: no metrics output path given")
	}
	var baits, targets *interval.ProbeSet
	if baits, err = interval.ReadProbeSetFromPaths(opts.BaitPaths, opts.BaitSetName); err != nil {
		return err
	}
	if targets, err = interval.ReadProbeSetFromPaths(opts.TargetPaths, ""); err != nil {
		return err
	}
	var ref fasta.Fasta
	if opts.FastaPath != "" {
		if ref, err = openFasta(ctx, opts.FastaPath); err != nil {
			return err
		}
	} else {
		log.Printf("hsmetrics: no reference given, AT/GC dropout will be unavailable")
	}

	provider := bamprovider.NewProvider(opts.BamPath, bamprovider.ProviderOpts{Index: opts.BamIndexPath})
	defer func() {
		if cerr := provider.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	var result *Result
	if result, err = CollectFromProvider(provider, baits, targets, ref, opts); err != nil {
		return err
	}

	if err = WriteMetricsFile(opts.MetricsPath, result.Metrics); err != nil {
		return err
	}
	if opts.PerTargetPath != "" {
		if err = WritePerTargetFile(opts.PerTargetPath, result.PerTarget); err != nil {
			return err
		}
	}
	if opts.PerBasePath != "" {
		if err = WritePerBaseFile(opts.PerBasePath, result.PerBase); err != nil {
			return err
		}
	}
	return nil
}
