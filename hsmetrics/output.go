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
	"io"
	"math"
	"os"
	"strings"

	"github.com/grailbio/base/errors"
)

// formatFloat renders a metric value, leaving the field blank for NaN
// (the "not computable" sentinel).
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return fmt.Sprintf("%0.6f", v)
}

func metricsHeader() string {
	cols := []string{
		"BAIT_SET", "ACCUMULATION_LEVEL", "KEY",
		"GENOME_SIZE", "BAIT_TERRITORY", "TARGET_TERRITORY", "BAIT_DESIGN_EFFICIENCY",
		"TOTAL_READS", "PF_READS", "PCT_PF_READS", "PF_READS_ALIGNED",
		"SECONDARY_OR_SUPPLEMENTARY_RDS", "UNMAPPED_READS", "DUPLICATE_READS",
		"FAILED_MAPQ_READS", "MALFORMED_READS",
		"PF_BASES_ALIGNED", "ON_BAIT_BASES", "NEAR_BAIT_BASES", "OFF_BAIT_BASES",
		"ON_TARGET_BASES",
		"PCT_SELECTED_BASES", "PCT_OFF_BAIT", "ON_BAIT_VS_SELECTED",
		"MEAN_BAIT_COVERAGE", "MEAN_TARGET_COVERAGE", "MEDIAN_TARGET_COVERAGE",
		"ZERO_CVG_TARGETS_PCT", "FOLD_ENRICHMENT", "FOLD_80_BASE_PENALTY",
	}
	for _, threshold := range CoverageThresholds {
		cols = append(cols, fmt.Sprintf("PCT_TARGET_BASES_%dX", threshold))
	}
	cols = append(cols,
		"PCT_EXC_DUPE", "PCT_EXC_MAPQ", "PCT_EXC_BASEQ", "PCT_EXC_OVERLAP",
		"AT_DROPOUT", "GC_DROPOUT")
	return strings.Join(cols, "\t")
}

// Row renders m as one tab-separated line matching the header written by
// WriteMetrics.
func (m *Metrics) Row() string {
	c := &m.Counters
	fields := []string{
		m.BaitSet, m.Level.String(), m.Key,
		fmt.Sprintf("%d", m.GenomeSize),
		fmt.Sprintf("%d", m.BaitTerritory),
		fmt.Sprintf("%d", m.TargetTerritory),
		formatFloat(m.BaitDesignEfficiency),
		fmt.Sprintf("%d", c.TotalReads),
		fmt.Sprintf("%d", c.PFReads),
		formatFloat(m.PctPFReads),
		fmt.Sprintf("%d", c.PFReadsAligned),
		fmt.Sprintf("%d", c.SecondaryOrSupplementary),
		fmt.Sprintf("%d", c.UnmappedReads),
		fmt.Sprintf("%d", c.DupReads),
		fmt.Sprintf("%d", c.FailedMapqReads),
		fmt.Sprintf("%d", c.MalformedReads),
		fmt.Sprintf("%d", c.PFBasesAligned),
		fmt.Sprintf("%d", c.OnBaitBases),
		fmt.Sprintf("%d", c.NearBaitBases),
		fmt.Sprintf("%d", c.OffBaitBases),
		fmt.Sprintf("%d", c.OnTargetBases),
		formatFloat(m.PctSelectedBases),
		formatFloat(m.PctOffBait),
		formatFloat(m.OnBaitVsSelected),
		formatFloat(m.MeanBaitCoverage),
		formatFloat(m.MeanTargetCoverage),
		formatFloat(m.MedianTargetCoverage),
		formatFloat(m.ZeroCvgTargetsPct),
		formatFloat(m.FoldEnrichment),
		formatFloat(m.Fold80BasePenalty),
	}
	for _, v := range m.PctTargetBases {
		fields = append(fields, formatFloat(v))
	}
	fields = append(fields,
		formatFloat(m.PctExcDupe),
		formatFloat(m.PctExcMapQ),
		formatFloat(m.PctExcBaseQ),
		formatFloat(m.PctExcOverlap),
		formatFloat(m.ATDropout),
		formatFloat(m.GCDropout))
	return strings.Join(fields, "\t")
}

// WriteMetrics writes the metrics report to w: a comment line, a header
// line, and one row per stratification key.
func WriteMetrics(w io.Writer, records []Metrics) error {
	s := "# bio-hsmetrics\n" + metricsHeader() + "\n"
	for i := range records {
		s += records[i].Row() + "\n"
	}
	_, err := w.Write([]byte(s))
	return err
}

// WriteMetricsFile writes the metrics report to the named file.
func WriteMetricsFile(path string, records []Metrics) (err error) {
	var f *os.File
	f, err = os.Create(path)
	if err != nil {
		return errors.E(err, "couldn't create metrics file:", path)
	}
	defer func() {
		if err2 := f.Close(); err == nil && err2 != nil {
			err = err2
		}
	}()
	if err = WriteMetrics(f, records); err != nil {
		return errors.E(err, "error writing to metrics file:", path)
	}
	return nil
}

// WritePerTarget writes the per-target coverage table to w.
func WritePerTarget(w io.Writer, rows []TargetCoverage) error {
	if _, err := fmt.Fprintf(w, "chrom\tstart\tend\tlength\tname\t%%gc\tmean_coverage\tnormalized_coverage\n"); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			row.RefName, row.Start, row.End, row.Length, row.Name,
			formatFloat(row.GCFrac),
			formatFloat(row.MeanCoverage),
			formatFloat(row.NormalizedCoverage)); err != nil {
			return err
		}
	}
	return nil
}

// WritePerTargetFile writes the per-target coverage table to the named file.
func WritePerTargetFile(path string, rows []TargetCoverage) (err error) {
	var f *os.File
	f, err = os.Create(path)
	if err != nil {
		return errors.E(err, "couldn't create per-target coverage file:", path)
	}
	defer func() {
		if err2 := f.Close(); err == nil && err2 != nil {
			err = err2
		}
	}()
	if err = WritePerTarget(f, rows); err != nil {
		return errors.E(err, "error writing to per-target coverage file:", path)
	}
	return nil
}

// WritePerBase writes the per-base coverage table to w.
func WritePerBase(w io.Writer, rows []BaseCoverage) error {
	if _, err := fmt.Fprintf(w, "chrom\tpos\ttarget\tcoverage\n"); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%s\t%d\t%s\t%d\n",
			row.RefName, row.Pos, row.Target, row.Depth); err != nil {
			return err
		}
	}
	return nil
}

// WritePerBaseFile writes the per-base coverage table to the named file.
func WritePerBaseFile(path string, rows []BaseCoverage) (err error) {
	var f *os.File
	f, err = os.Create(path)
	if err != nil {
		return errors.E(err, "couldn't create per-base coverage file:", path)
	}
	defer func() {
		if err2 := f.Close(); err == nil && err2 != nil {
			err = err2
		}
	}()
	if err = WritePerBase(f, rows); err != nil {
		return errors.E(err, "error writing to per-base coverage file:", path)
	}
	return nil
}
