package elm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/swanpat/elmscan/pkg/align"
	"github.com/swanpat/elmscan/pkg/uniprot"
)

// The 20 standard amino acids plus ambiguity codes.
const validAminoAcids = "ARNDCQEGHILKMFPSTWYVBZXJ"

// ValidSequence reports whether every character of an upper-case sequence is
// a standard amino acid or ambiguity code.
func ValidSequence(sequence string) bool {
	for _, c := range sequence {
		if !strings.ContainsRune(validAminoAcids, c) {
			return false
		}
	}
	return len(sequence) > 0
}

// Aligner produces alignment hits for a query sequence.
type Aligner interface {
	Align(ctx context.Context, sequence string) ([]align.Hit, error)
}

// SequenceFetcher retrieves the sequences stored for a protein accession.
type SequenceFetcher interface {
	Fetch(ctx context.Context, accession string) ([]uniprot.SequenceRecord, error)
}

// Workflow runs the full motif search: alignment-backed ortholog resolution
// on one side, direct regex scanning on the other.
type Workflow struct {
	Ref     *ReferenceDB
	Aligner Aligner
	Fetcher SequenceFetcher
	Log     *zap.Logger
}

func (w *Workflow) resolver() *Resolver {
	return &Resolver{Ref: w.Ref, Log: w.Log}
}

func (w *Workflow) scanner() *Scanner {
	return &Scanner{Ref: w.Ref, Log: w.Log}
}

// Run searches for motifs in a single input: an amino-acid sequence, or a
// UniProt accession when uniprotMode is set. Expected "no data" conditions
// surface as warnings and empty tables, never as errors.
func (w *Workflow) Run(ctx context.Context, input string, uniprotMode bool) (*Result, error) {
	if uniprotMode {
		return w.runAccession(ctx, strings.TrimSpace(input))
	}
	return w.runSequence(ctx, input)
}

// RunBatch processes inputs in strict order. A failing input contributes
// nothing and is logged; the batch continues.
func (w *Workflow) RunBatch(ctx context.Context, inputs []string, uniprotMode bool) (*Result, error) {

	combined := &Result{}

	for i, input := range inputs {
		res, err := w.Run(ctx, input, uniprotMode)
		if err != nil {
			w.Log.Error("input failed, continuing with remaining inputs",
				zap.Int("input_number", i+1),
				zap.Error(err))
			continue
		}
		combined.Orthologs = append(combined.Orthologs, res.Orthologs...)
		combined.RegexMatches = append(combined.RegexMatches, res.RegexMatches...)
	}

	return combined, nil
}

func (w *Workflow) runSequence(ctx context.Context, sequence string) (*Result, error) {

	sequence = strings.ToUpper(strings.TrimSpace(sequence))

	if !ValidSequence(sequence) {
		w.Log.Warn("input sequence contains invalid amino acid characters; " +
			"if the input is a UniProt accession, enable identifier mode")
	}

	orthologs, err := w.alignAndResolve(ctx, sequence)
	if err != nil {
		return nil, err
	}

	// Keep only motifs the alignment actually covers.
	orthologs = FilterContained(orthologs)
	if len(orthologs) == 0 {
		w.Log.Warn("no orthologs found for input sequence")
	}

	matches, err := w.scanner().Scan(sequence)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		w.Log.Warn("no regex matches found for input sequence")
	}

	return &Result{Orthologs: orthologs, RegexMatches: matches}, nil
}

func (w *Workflow) runAccession(ctx context.Context, accession string) (*Result, error) {

	orthologs, err := w.resolver().ResolveAccession(accession)
	if err != nil {
		return nil, err
	}

	var sequence string

	if len(orthologs) == 0 {
		w.Log.Warn("accession matches nothing in the ELM instance table, "+
			"falling back to its amino acid sequence",
			zap.String("accession", accession))

		sequence, err = w.fetchSequence(ctx, accession)
		if err != nil {
			return nil, err
		}

		orthologs, err = w.alignAndResolve(ctx, sequence)
		if err != nil {
			return nil, err
		}
		if len(orthologs) == 0 {
			w.Log.Warn("no orthologs found for accession", zap.String("accession", accession))
		}
	} else {
		// The direct lookup needs no alignment, but the regex scan still
		// needs the actual sequence.
		sequence, err = w.fetchSequence(ctx, accession)
		if err != nil {
			return nil, err
		}
	}

	matches, err := w.scanner().Scan(sequence)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		w.Log.Warn("no regex matches found for accession", zap.String("accession", accession))
	}

	return &Result{Orthologs: orthologs, RegexMatches: matches}, nil
}

// alignAndResolve runs the external aligner and resolves every hit in hit
// order, skipping target accessions already resolved.
func (w *Workflow) alignAndResolve(ctx context.Context, sequence string) ([]OrthologResult, error) {

	hits, err := w.Aligner.Align(ctx, sequence)
	if err != nil {
		return nil, fmt.Errorf("alignment failed: %w", err)
	}
	if len(hits) == 0 {
		w.Log.Warn("no matching sequences found in the ELM reference set")
		return nil, nil
	}

	w.Log.Info("alignment found similar sequences, retrieving their motifs",
		zap.Int("hits", len(hits)))

	rv := w.resolver()
	seen := make(map[string]bool, len(hits))

	var orthologs []OrthologResult
	for _, hit := range hits {
		accession := align.TargetID(hit.TargetAccession)
		if seen[accession] {
			continue
		}
		seen[accession] = true

		rows, err := rv.ResolveHit(hit, len(sequence))
		if err != nil {
			return nil, err
		}
		orthologs = append(orthologs, rows...)
	}

	return orthologs, nil
}

func (w *Workflow) fetchSequence(ctx context.Context, accession string) (string, error) {

	records, err := w.Fetcher.Fetch(ctx, accession)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve sequence for %s: %w", accession, err)
	}
	if len(records) == 0 {
		return "", fmt.Errorf("no sequences found for accession %s; "+
			"please double check the accession and try again", accession)
	}

	return records[0].Sequence, nil
}
