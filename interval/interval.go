package interval

import (
	"bufio"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// PosType is the coordinate type used throughout this package.
type PosType int32

// PosTypeMax is the maximum representable coordinate.
const PosTypeMax = math.MaxInt32

// Interval is a single named genomic interval.  Coordinates are stored
// zero-based half-open regardless of the input format.
type Interval struct {
	RefName string
	Start0  PosType
	End     PosType
	Strand  byte
	Name    string
}

// Len returns the number of bases spanned by the interval.
func (iv Interval) Len() PosType {
	return iv.End - iv.Start0
}

// ProbeSet is a named, normalized collection of intervals (a bait design or
// a target design).  Intervals are sorted by (RefName, Start0) and disjoint;
// overlapping or abutting input intervals are merged at construction.
// Immutable after construction.
type ProbeSet struct {
	Name      string
	Intervals []Interval
}

// Territory returns the total number of bases covered by the set.
func (p *ProbeSet) Territory() int64 {
	var n int64
	for _, iv := range p.Intervals {
		n += int64(iv.Len())
	}
	return n
}

// NewProbeSet normalizes the given intervals into a ProbeSet.  Empty
// intervals are dropped; overlapping or abutting intervals on the same
// reference are merged, joining distinct names with '|'.
func NewProbeSet(name string, intervals []Interval) (*ProbeSet, error) {
	merged := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Start0 < 0 {
			return nil, errors.Errorf("interval.NewProbeSet: negative start coordinate in %s:%d-%d", iv.RefName, iv.Start0, iv.End)
		}
		if (iv.End < iv.Start0) || (iv.End >= PosTypeMax) {
			return nil, errors.Errorf("interval.NewProbeSet: invalid coordinate pair %s:%d-%d", iv.RefName, iv.Start0, iv.End)
		}
		if iv.End == iv.Start0 {
			continue
		}
		merged = append(merged, iv)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].RefName != merged[j].RefName {
			return merged[i].RefName < merged[j].RefName
		}
		if merged[i].Start0 != merged[j].Start0 {
			return merged[i].Start0 < merged[j].Start0
		}
		return merged[i].End < merged[j].End
	})
	out := merged[:0]
	for _, iv := range merged {
		if len(out) != 0 {
			prev := &out[len(out)-1]
			if (prev.RefName == iv.RefName) && (iv.Start0 <= prev.End) {
				if iv.End > prev.End {
					prev.End = iv.End
				}
				if (iv.Name != "") && (iv.Name != prev.Name) {
					if prev.Name == "" {
						prev.Name = iv.Name
					} else {
						prev.Name = prev.Name + "|" + iv.Name
					}
				}
				continue
			}
		}
		out = append(out, iv)
	}
	return &ProbeSet{Name: name, Intervals: out}, nil
}

// getTokens identifies up to the first len(tokens) tab-or-space-delimited
// tokens from curLine, returning the number of tokens saved.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// fileFormat identifies one interval file format.  A file is parsed under a
// single format; the two formats disagree on coordinate conventions, so
// per-line guessing would corrupt 5- and 6-column BED input.
type fileFormat int

const (
	formatUnknown fileFormat = iota
	formatIntervalList
	formatBED
)

// pathFormat infers the file format from the filename extension, looking
// through a trailing .gz.
func pathFormat(path string) fileFormat {
	base := strings.TrimSuffix(filepath.Base(path), ".gz")
	switch filepath.Ext(base) {
	case ".interval_list":
		return formatIntervalList
	case ".bed":
		return formatBED
	}
	return formatUnknown
}

func isStrandToken(token []byte) bool {
	return (len(token) == 1) && ((token[0] == '+') || (token[0] == '-'))
}

// ReadProbeSet parses one interval file into a ProbeSet.  Two formats are
// recognized:
//   - Picard interval_list: SAM-style '@' header lines followed by
//     "<seq> <1-based start> <1-based end> <strand> <name>" data lines;
//   - BED: "<seq> <0-based start> <end>" with optional name (4th column) and
//     strand (6th column); further columns are ignored.
// The format is detected once per file: an '@' header marks an
// interval_list, and a headerless file is treated as interval_list only when
// its first data line has exactly five columns with a bare +/- strand in the
// fourth.  Anything else is BED.
func ReadProbeSet(reader io.Reader, name string) (*ProbeSet, error) {
	return readProbeSet(reader, name, formatUnknown)
}

func readProbeSet(reader io.Reader, name string, format fileFormat) (*ProbeSet, error) {
	scanner := bufio.NewScanner(reader)
	var intervals []Interval
	var tokens [6][]byte
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		if (len(curLine) != 0) && (curLine[0] == '@') {
			// SAM-style header line; sequence dictionary entries are not needed
			// here since classification is keyed on the alignment header.
			if format == formatUnknown {
				format = formatIntervalList
			}
			continue
		}
		nToken := getTokens(tokens[:], curLine)
		if nToken == 0 {
			continue
		}
		if nToken < 3 {
			return nil, errors.Errorf("interval.ReadProbeSet: line %d has fewer tokens than expected", lineIdx)
		}
		if format == formatUnknown {
			if (nToken == 5) && isStrandToken(tokens[3]) {
				format = formatIntervalList
			} else {
				format = formatBED
			}
		}
		start, err := strconv.Atoi(string(tokens[1]))
		if err != nil {
			return nil, errors.Wrapf(err, "interval.ReadProbeSet: invalid start coordinate on line %d", lineIdx)
		}
		end, err := strconv.Atoi(string(tokens[2]))
		if err != nil {
			return nil, errors.Wrapf(err, "interval.ReadProbeSet: invalid end coordinate on line %d", lineIdx)
		}
		iv := Interval{RefName: string(tokens[0]), Strand: '+'}
		if format == formatIntervalList {
			// interval_list data line: 1-based inclusive coordinates.
			if nToken < 5 {
				return nil, errors.Errorf("interval.ReadProbeSet: line %d has fewer tokens than expected", lineIdx)
			}
			iv.Start0 = PosType(start - 1)
			iv.End = PosType(end)
			iv.Strand = tokens[3][0]
			iv.Name = string(tokens[4])
		} else {
			// BED data line: 0-based half-open.
			iv.Start0 = PosType(start)
			iv.End = PosType(end)
			if nToken >= 4 {
				iv.Name = string(tokens[3])
			}
			if (nToken >= 6) && isStrandToken(tokens[5]) {
				iv.Strand = tokens[5][0]
			}
		}
		if iv.Start0 < 0 {
			return nil, errors.Errorf("interval.ReadProbeSet: negative start coordinate on line %d", lineIdx)
		}
		if (iv.End < iv.Start0) || (iv.End >= PosTypeMax) {
			return nil, errors.Errorf("interval.ReadProbeSet: invalid coordinate pair on line %d", lineIdx)
		}
		intervals = append(intervals, iv)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewProbeSet(name, intervals)
}

// InferProbeSetName derives a probe-set name from interval file paths: each
// path's basename with extensions stripped, distinct names sorted and joined
// with ".".
func InferProbeSetName(paths []string) string {
	seen := map[string]bool{}
	var names []string
	for _, path := range paths {
		base := filepath.Base(path)
		if idx := strings.IndexByte(base, '.'); idx > 0 {
			base = base[:idx]
		}
		if !seen[base] {
			seen[base] = true
			names = append(names, base)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ".")
}

// ReadProbeSetFromPaths loads and merges one or more interval files into a
// single ProbeSet.  Gzipped inputs are detected by filename.  If name is
// empty it is inferred from the file basenames.
func ReadProbeSetFromPaths(paths []string, name string) (probes *ProbeSet, err error) {
	if len(paths) == 0 {
		return nil, errors.Errorf("interval.ReadProbeSetFromPaths: no interval files given")
	}
	if name == "" {
		name = InferProbeSetName(paths)
	}
	ctx := vcontext.Background()
	var intervals []Interval
	for _, path := range paths {
		var infile file.File
		if infile, err = file.Open(ctx, path); err != nil {
			return nil, errors.Wrapf(err, "interval.ReadProbeSetFromPaths: %s", path)
		}
		reader := io.Reader(infile.Reader(ctx))
		if fileio.DetermineType(path) == fileio.Gzip {
			if reader, err = gzip.NewReader(reader); err != nil {
				_ = infile.Close(ctx)
				return nil, err
			}
		}
		var part *ProbeSet
		part, err = readProbeSet(reader, name, pathFormat(path))
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, part.Intervals...)
	}
	return NewProbeSet(name, intervals)
}
