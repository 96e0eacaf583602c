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
	"strings"
)

// Level is a stratification granularity at which separate metric records
// are produced.
type Level int

const (
	// LevelAllReads aggregates over the whole input.  Always computed.
	LevelAllReads Level = iota
	// LevelSample stratifies by the SM attribute of the read's @RG.
	LevelSample
	// LevelLibrary stratifies by the LB attribute of the read's @RG.
	LevelLibrary
	// LevelReadGroup stratifies by the read's @RG ID.
	LevelReadGroup
)

func (l Level) String() string {
	switch l {
	case LevelAllReads:
		return "ALL_READS"
	case LevelSample:
		return "SAMPLE"
	case LevelLibrary:
		return "LIBRARY"
	case LevelReadGroup:
		return "READ_GROUP"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// ParseLevels parses a comma-separated accumulation-level list, e.g.
// "ALL_READS,LIBRARY".
func ParseLevels(s string) ([]Level, error) {
	var levels []Level
	for _, tok := range strings.Split(s, ",") {
		switch strings.TrimSpace(tok) {
		case "ALL_READS":
			levels = append(levels, LevelAllReads)
		case "SAMPLE":
			levels = append(levels, LevelSample)
		case "LIBRARY":
			levels = append(levels, LevelLibrary)
		case "READ_GROUP":
			levels = append(levels, LevelReadGroup)
		case "":
		default:
			return nil, fmt.Errorf("hsmetrics.ParseLevels: unrecognized accumulation level %q", tok)
		}
	}
	return levels, nil
}

// Opts configures one metrics collection run.
type Opts struct {
	// Commandline options.
	BamPath              string
	BamIndexPath         string
	BaitPaths            []string
	TargetPaths          []string
	BaitSetName          string
	FastaPath            string
	MetricsPath          string
	PerTargetPath        string
	PerBasePath          string
	MinMapQ              int
	MinBaseQual          int
	ClipOverlappingReads bool
	CoverageCap          int
	SampleSize           int64
	NearProbeDistance    int
	GCBuckets            int
	Levels               []Level
	Parallelism          int
}

// DefaultOpts matches the defaults of picard CollectHsMetrics.
var DefaultOpts = Opts{
	MinMapQ:              20,
	MinBaseQual:          20,
	ClipOverlappingReads: true,
	CoverageCap:          32767,
	SampleSize:           0,
	NearProbeDistance:    250,
	GCBuckets:            20,
	Parallelism:          0,
}
