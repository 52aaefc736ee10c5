package elm

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/swanpat/elmscan/pkg/align"
	"github.com/swanpat/elmscan/pkg/uniprot"
)

type stubAligner struct {
	hits  []align.Hit
	err   error
	calls int
}

func (s *stubAligner) Align(ctx context.Context, sequence string) ([]align.Hit, error) {
	s.calls++
	return s.hits, s.err
}

type stubFetcher struct {
	records       []uniprot.SequenceRecord
	err           error
	calls         int
	lastAccession string
}

func (s *stubFetcher) Fetch(ctx context.Context, accession string) ([]uniprot.SequenceRecord, error) {
	s.calls++
	s.lastAccession = accession
	return s.records, s.err
}

func testWorkflow(aligner *stubAligner, fetcher *stubFetcher) *Workflow {
	classes, instances := testTables()
	return &Workflow{
		Ref:     NewReferenceDBFromTables(classes, instances),
		Aligner: aligner,
		Fetcher: fetcher,
		Log:     zap.NewNop(),
	}
}

func TestValidSequence(t *testing.T) {

	tests := []struct {
		name     string
		sequence string
		expected bool
	}{
		{"Standard", "MKWVTFISLLFLFSSAYS", true},
		{"AmbiguityCodes", "MKBZXJ", true},
		{"InvalidChar", "MKWO", false},
		{"Digits", "MK1", false},
		{"Empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidSequence(tt.sequence); got != tt.expected {
				t.Errorf("ValidSequence(%q) = %v, expected %v", tt.sequence, got, tt.expected)
			}
		})
	}
}

func TestSequenceModeKeepsOnlyCoveredMotifs(t *testing.T) {

	// fixture instance spans: 10-14 and 80-90; window covers only the first
	aligner := &stubAligner{hits: []align.Hit{{
		TargetAccession: "sp|P04637|P53_HUMAN",
		PercentIdentity: 92.0,
		Length:          60,
		QueryStart:      1,
		QueryEnd:        60,
		TargetStart:     5,
		TargetEnd:       50,
	}}}
	fetcher := &stubFetcher{}

	wf := testWorkflow(aligner, fetcher)

	res, err := wf.Run(context.Background(), "MRAKRSPAAPKKLMRRS", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Orthologs) != 1 {
		t.Fatalf("expected 1 ortholog row, got %d", len(res.Orthologs))
	}
	for _, row := range res.Orthologs {
		if row.MotifInQuery == nil || !*row.MotifInQuery {
			t.Error("sequence mode kept a motif the alignment does not cover")
		}
	}

	if fetcher.calls != 0 {
		t.Errorf("sequence mode fetched from uniprot %d times", fetcher.calls)
	}
}

func TestSequenceModeZeroHits(t *testing.T) {

	aligner := &stubAligner{}
	wf := testWorkflow(aligner, &stubFetcher{})

	res, err := wf.Run(context.Background(), "MRAKRSPAAP", false)
	if err != nil {
		t.Fatalf("zero hits must not be an error, got: %v", err)
	}
	if len(res.Orthologs) != 0 {
		t.Fatalf("expected no orthologs, got %d", len(res.Orthologs))
	}

	// the regex scanner still runs independently
	if len(res.RegexMatches) == 0 {
		t.Error("expected regex matches despite zero alignment hits")
	}
}

func TestSequenceModeAlignerFailure(t *testing.T) {

	aligner := &stubAligner{err: errors.New("diamond: executable file not found")}
	wf := testWorkflow(aligner, &stubFetcher{})

	if _, err := wf.Run(context.Background(), "MRAKRS", false); err == nil {
		t.Fatal("expected an error when the aligner fails")
	}
}

// Input accession with no local match: the sequence-retrieval fallback is
// invoked exactly once, with that accession.
func TestAccessionFallback(t *testing.T) {

	aligner := &stubAligner{hits: []align.Hit{{
		TargetAccession: "sp|P04637|P53_HUMAN",
		PercentIdentity: 90.0,
		Length:          20,
		TargetStart:     1,
		TargetEnd:       100,
	}}}
	fetcher := &stubFetcher{records: []uniprot.SequenceRecord{
		{UniProtID: "P12345", Sequence: "MRAKRSPAAP", Length: 10},
	}}

	wf := testWorkflow(aligner, fetcher)

	res, err := wf.Run(context.Background(), "P12345", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fetcher.calls != 1 {
		t.Fatalf("expected exactly 1 sequence fetch, got %d", fetcher.calls)
	}
	if fetcher.lastAccession != "P12345" {
		t.Errorf("fetched accession %q, expected P12345", fetcher.lastAccession)
	}
	if aligner.calls != 1 {
		t.Errorf("expected the fallback to align once, got %d calls", aligner.calls)
	}
	if len(res.Orthologs) == 0 {
		t.Error("expected orthologs from the fallback alignment")
	}
	if len(res.RegexMatches) == 0 {
		t.Error("expected regex matches on the retrieved sequence")
	}
}

func TestAccessionDirectLookup(t *testing.T) {

	aligner := &stubAligner{}
	fetcher := &stubFetcher{records: []uniprot.SequenceRecord{
		{UniProtID: "P04637", Sequence: "MRAKRSPAAP", Length: 10},
	}}

	wf := testWorkflow(aligner, fetcher)

	res, err := wf.Run(context.Background(), "P04637", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Orthologs) != 2 {
		t.Fatalf("expected 2 ortholog rows from the direct lookup, got %d", len(res.Orthologs))
	}
	for _, row := range res.Orthologs {
		if row.QueryCover != nil || row.PercentIdentity != nil {
			t.Error("direct lookup rows must not carry alignment fields")
		}
	}

	if aligner.calls != 0 {
		t.Errorf("direct lookup must not align, got %d calls", aligner.calls)
	}
	// the sequence is still fetched once, for the regex scan
	if fetcher.calls != 1 {
		t.Errorf("expected 1 sequence fetch for the regex scan, got %d", fetcher.calls)
	}
	if len(res.RegexMatches) == 0 {
		t.Error("expected regex matches on the fetched sequence")
	}
}

func TestAccessionFallbackNoSequence(t *testing.T) {

	fetcher := &stubFetcher{} // no records
	wf := testWorkflow(&stubAligner{}, fetcher)

	if _, err := wf.Run(context.Background(), "P12345", true); err == nil {
		t.Fatal("expected an error when no sequence exists for the accession")
	}
	if fetcher.calls != 1 {
		t.Errorf("expected 1 fetch attempt, got %d", fetcher.calls)
	}
}

// A failing input contributes nothing; the rest of the batch still runs.
func TestRunBatchIsolatesFailures(t *testing.T) {

	calls := 0
	aligner := &flakyAligner{failOn: 1, calls: &calls}
	wf := testWorkflow(&stubAligner{}, &stubFetcher{})
	wf.Aligner = aligner

	res, err := wf.RunBatch(context.Background(), []string{"MRAKRS", "XPAAPX"}, false)
	if err != nil {
		t.Fatalf("batch must not fail on one bad input: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected both inputs to be attempted, got %d calls", calls)
	}
	if len(res.RegexMatches) == 0 {
		t.Error("expected results from the surviving input")
	}
}

type flakyAligner struct {
	failOn int
	calls  *int
}

func (f *flakyAligner) Align(ctx context.Context, sequence string) ([]align.Hit, error) {
	*f.calls++
	if *f.calls == f.failOn {
		return nil, errors.New("boom")
	}
	return nil, nil
}

func TestResultJSONRoundTrip(t *testing.T) {

	aligner := &stubAligner{hits: []align.Hit{{
		TargetAccession: "sp|P04637|P53_HUMAN",
		PercentIdentity: 92.0,
		Length:          60,
		QueryStart:      1,
		QueryEnd:        60,
		TargetStart:     1,
		TargetEnd:       100,
	}}}

	wf := testWorkflow(aligner, &stubFetcher{})

	res, err := wf.Run(context.Background(), "MRAKRSPAAP", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Empty() {
		t.Fatal("fixture produced no results")
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(res, &decoded) {
		t.Error("result changed across a JSON round trip")
	}
}
