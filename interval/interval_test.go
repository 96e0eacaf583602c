package interval

import (
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestNewProbeSetMerge(t *testing.T) {
	tests := []struct {
		name string
		in   []Interval
		want []Interval
		terr int64
	}{
		{
			name: "disjoint",
			in: []Interval{
				{RefName: "chr1", Start0: 100, End: 200, Name: "a"},
				{RefName: "chr1", Start0: 300, End: 400, Name: "b"},
			},
			want: []Interval{
				{RefName: "chr1", Start0: 100, End: 200, Name: "a"},
				{RefName: "chr1", Start0: 300, End: 400, Name: "b"},
			},
			terr: 200,
		},
		{
			name: "overlap_merges_and_joins_names",
			in: []Interval{
				{RefName: "chr1", Start0: 300, End: 450, Name: "b"},
				{RefName: "chr1", Start0: 100, End: 350, Name: "a"},
			},
			want: []Interval{
				{RefName: "chr1", Start0: 100, End: 450, Name: "a|b"},
			},
			terr: 350,
		},
		{
			name: "abutting_merges",
			in: []Interval{
				{RefName: "chr1", Start0: 100, End: 200, Name: "a"},
				{RefName: "chr1", Start0: 200, End: 300, Name: "a"},
			},
			want: []Interval{
				{RefName: "chr1", Start0: 100, End: 300, Name: "a"},
			},
			terr: 200,
		},
		{
			name: "empty_dropped_and_refs_kept_separate",
			in: []Interval{
				{RefName: "chr2", Start0: 100, End: 200},
				{RefName: "chr1", Start0: 100, End: 100},
				{RefName: "chr1", Start0: 100, End: 200},
			},
			want: []Interval{
				{RefName: "chr1", Start0: 100, End: 200},
				{RefName: "chr2", Start0: 100, End: 200},
			},
			terr: 200,
		},
	}
	for _, test := range tests {
		probes, err := NewProbeSet("test", test.in)
		expect.NoError(t, err, "test=%s", test.name)
		expect.EQ(t, probes.Intervals, test.want, "test=%s", test.name)
		expect.EQ(t, probes.Territory(), test.terr, "test=%s", test.name)
	}
}

func TestNewProbeSetRejectsInvalid(t *testing.T) {
	_, err := NewProbeSet("bad", []Interval{{RefName: "chr1", Start0: 200, End: 100}})
	expect.True(t, err != nil)
	_, err = NewProbeSet("bad", []Interval{{RefName: "chr1", Start0: -5, End: 100}})
	expect.True(t, err != nil)
}

func TestReadProbeSetIntervalList(t *testing.T) {
	const data = "@HD\tVN:1.6\n" +
		"@SQ\tSN:chr1\tLN:248956422\n" +
		"chr1\t1001\t1100\t+\tbait_1\n" +
		"chr1\t2001\t2100\t-\tbait_2\n"
	probes, err := ReadProbeSet(strings.NewReader(data), "baits")
	expect.NoError(t, err)
	expect.EQ(t, probes.Name, "baits")
	expect.EQ(t, probes.Intervals, []Interval{
		{RefName: "chr1", Start0: 1000, End: 1100, Strand: '+', Name: "bait_1"},
		{RefName: "chr1", Start0: 2000, End: 2100, Strand: '-', Name: "bait_2"},
	})
}

func TestReadProbeSetBED(t *testing.T) {
	const data = "chr1\t1000\t1100\n" +
		"chr2\t500\t600\ttarget_x\n" +
		"\n"
	probes, err := ReadProbeSet(strings.NewReader(data), "targets")
	expect.NoError(t, err)
	expect.EQ(t, probes.Intervals, []Interval{
		{RefName: "chr1", Start0: 1000, End: 1100, Strand: '+'},
		{RefName: "chr2", Start0: 500, End: 600, Strand: '+', Name: "target_x"},
	})
}

func TestReadProbeSetBEDExtraColumns(t *testing.T) {
	// 5- and 6-column BED keeps 0-based starts; the score column is ignored
	// and the strand comes from column 6.
	const data = "chr1\t1000\t1100\ttarget_x\t960\t-\n" +
		"chr1\t2000\t2100\ttarget_y\t500\n"
	probes, err := ReadProbeSet(strings.NewReader(data), "targets")
	expect.NoError(t, err)
	expect.EQ(t, probes.Intervals, []Interval{
		{RefName: "chr1", Start0: 1000, End: 1100, Strand: '-', Name: "target_x"},
		{RefName: "chr1", Start0: 2000, End: 2100, Strand: '+', Name: "target_y"},
	})
}

func TestReadProbeSetHeaderlessIntervalList(t *testing.T) {
	// With no '@' header, a five-column line with a bare strand in column 4
	// is still an interval_list, and the choice holds for the whole file.
	const data = "chr1\t1001\t1100\t+\tbait_1\n" +
		"chr1\t2001\t2100\t-\tbait_2\n"
	probes, err := ReadProbeSet(strings.NewReader(data), "baits")
	expect.NoError(t, err)
	expect.EQ(t, probes.Intervals, []Interval{
		{RefName: "chr1", Start0: 1000, End: 1100, Strand: '+', Name: "bait_1"},
		{RefName: "chr1", Start0: 2000, End: 2100, Strand: '-', Name: "bait_2"},
	})
}

func TestReadProbeSetFormatHint(t *testing.T) {
	// A .bed path forces BED parsing even when a line is shaped like an
	// interval_list data line.
	const data = "chr1\t1000\t1100\t+\tbait_1\n"
	probes, err := readProbeSet(strings.NewReader(data), "x", pathFormat("probes.bed.gz"))
	expect.NoError(t, err)
	expect.EQ(t, probes.Intervals, []Interval{
		{RefName: "chr1", Start0: 1000, End: 1100, Strand: '+', Name: "+"},
	})

	expect.EQ(t, pathFormat("/data/exome.interval_list"), formatIntervalList)
	expect.EQ(t, pathFormat("/data/exome.interval_list.gz"), formatIntervalList)
	expect.EQ(t, pathFormat("/data/exome.bed"), formatBED)
	expect.EQ(t, pathFormat("/data/exome.txt"), formatUnknown)
}

func TestReadProbeSetIntervalListShortLine(t *testing.T) {
	const data = "@HD\tVN:1.6\n" +
		"chr1\t1001\t1100\n"
	_, err := ReadProbeSet(strings.NewReader(data), "x")
	expect.True(t, err != nil)
}

func TestReadProbeSetMalformed(t *testing.T) {
	_, err := ReadProbeSet(strings.NewReader("chr1\t100\n"), "x")
	expect.True(t, err != nil)
	_, err = ReadProbeSet(strings.NewReader("chr1\tabc\t200\n"), "x")
	expect.True(t, err != nil)
	_, err = ReadProbeSet(strings.NewReader("chr1\t300\t200\n"), "x")
	expect.True(t, err != nil)
}

func TestInferProbeSetName(t *testing.T) {
	expect.EQ(t, InferProbeSetName([]string{"/data/exome_v2.interval_list"}), "exome_v2")
	expect.EQ(t, InferProbeSetName([]string{"b.interval_list", "a.bed.gz", "b.bed"}), "a.b")
}
