// Package align wraps the external DIAMOND aligner. The binary is treated as
// a black box: we hand it two FASTA paths and read back its tabular report.
package align

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hit is one row of DIAMOND's tabular (--outfmt 6) output.
type Hit struct {
	QueryAccession  string  `json:"query_accession"`
	TargetAccession string  `json:"target_accession"`
	PercentIdentity float64 `json:"percent_identity"`
	Length          int     `json:"length"`
	Mismatches      int     `json:"mismatches"`
	GapOpenings     int     `json:"gap_openings"`
	QueryStart      int     `json:"query_start"`
	QueryEnd        int     `json:"query_end"`
	TargetStart     int     `json:"target_start"`
	TargetEnd       int     `json:"target_end"`
	EValue          float64 `json:"e_value"`
	BitScore        float64 `json:"bit_score"`
}

// Diamond runs the diamond binary against a fixed reference FASTA.
type Diamond struct {
	Binary    string // path to the diamond executable, "diamond" if empty
	Reference string // reference FASTA the queries are aligned against
	Sensitive bool
	Timeout   time.Duration // upper bound per invocation, 0 means no bound
	TempDir   string        // defaults to os.TempDir()
	Log       *zap.Logger
}

func (d *Diamond) binary() string {
	if d.Binary == "" {
		return "diamond"
	}
	return d.Binary
}

func (d *Diamond) tempDir() string {
	if d.TempDir == "" {
		return os.TempDir()
	}
	return d.TempDir
}

// Align writes sequence to a transient single-record FASTA, aligns it against
// the reference set and parses the tabular report. Zero hits is not an error.
func (d *Diamond) Align(ctx context.Context, sequence string) ([]Hit, error) {

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	run := uuid.New().String()
	queryFasta := filepath.Join(d.tempDir(), "query-"+run+".fa")
	dmndDB := filepath.Join(d.tempDir(), "refdb-"+run)
	outTSV := filepath.Join(d.tempDir(), "hits-"+run+".tsv")

	defer func() {
		os.Remove(queryFasta)
		os.Remove(dmndDB + ".dmnd")
		os.Remove(outTSV)
	}()

	fastaRecord := ">query\n" + strings.ToUpper(strings.TrimSpace(sequence)) + "\n"
	if err := os.WriteFile(queryFasta, []byte(fastaRecord), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write query FASTA: %w", err)
	}

	// diamond makedb --in elm_instances.fasta -d refdb
	if err := d.run(ctx, "makedb", "--in", d.Reference, "-d", dmndDB); err != nil {
		return nil, fmt.Errorf("failed to build diamond database from %s: %w", d.Reference, err)
	}

	// diamond blastp -q query.fa -d refdb -o hits.tsv --outfmt 6
	args := []string{"blastp", "-q", queryFasta, "-d", dmndDB, "-o", outTSV, "--outfmt", "6"}
	if d.Sensitive {
		args = append(args, "--very-sensitive")
	}
	if err := d.run(ctx, args...); err != nil {
		return nil, fmt.Errorf("failed to execute diamond blastp: %w", err)
	}

	f, err := os.Open(outTSV)
	if err != nil {
		return nil, fmt.Errorf("diamond produced no output file: %w", err)
	}
	defer f.Close()

	hits, err := parseTabular(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse diamond output: %w", err)
	}

	if d.Log != nil {
		d.Log.Debug("diamond alignment finished", zap.Int("hits", len(hits)))
	}

	return hits, nil
}

func (d *Diamond) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, d.binary(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, lastLine(msg))
		}
		return err
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// parseTabular reads DIAMOND's 12-column blast tabular format.
//
// Example line:
// 0        1          2             3          4              5             6           7         8             9           10    11
// queryId, subjectId, percIdentity, alnLength, mismatchCount, gapOpenCount, queryStart, queryEnd, subjectStart, subjectEnd, eVal, bitScore
func parseTabular(r io.Reader) ([]Hit, error) {

	var hits []Hit

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 12 {
			return nil, fmt.Errorf("line in diamond output is too short: %s", line)
		}

		var (
			hit Hit
			err error
		)
		hit.QueryAccession = fields[0]
		hit.TargetAccession = fields[1]
		if hit.PercentIdentity, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return nil, fmt.Errorf("bad percent identity %q: %w", fields[2], err)
		}
		if hit.Length, err = strconv.Atoi(fields[3]); err != nil {
			return nil, fmt.Errorf("bad alignment length %q: %w", fields[3], err)
		}
		if hit.Mismatches, err = strconv.Atoi(fields[4]); err != nil {
			return nil, fmt.Errorf("bad mismatch count %q: %w", fields[4], err)
		}
		if hit.GapOpenings, err = strconv.Atoi(fields[5]); err != nil {
			return nil, fmt.Errorf("bad gap opening count %q: %w", fields[5], err)
		}
		if hit.QueryStart, err = strconv.Atoi(fields[6]); err != nil {
			return nil, fmt.Errorf("bad query start %q: %w", fields[6], err)
		}
		if hit.QueryEnd, err = strconv.Atoi(fields[7]); err != nil {
			return nil, fmt.Errorf("bad query end %q: %w", fields[7], err)
		}
		if hit.TargetStart, err = strconv.Atoi(fields[8]); err != nil {
			return nil, fmt.Errorf("bad target start %q: %w", fields[8], err)
		}
		if hit.TargetEnd, err = strconv.Atoi(fields[9]); err != nil {
			return nil, fmt.Errorf("bad target end %q: %w", fields[9], err)
		}
		if hit.EValue, err = strconv.ParseFloat(fields[10], 64); err != nil {
			return nil, fmt.Errorf("bad e-value %q: %w", fields[10], err)
		}
		if hit.BitScore, err = strconv.ParseFloat(fields[11], 64); err != nil {
			return nil, fmt.Errorf("bad bit score %q: %w", fields[11], err)
		}

		hits = append(hits, hit)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return hits, nil
}

// TargetID extracts the bare accession from a FASTA-style target id such as
// "sp|P04637|P53_HUMAN". Plain accessions pass through unchanged.
func TargetID(targetAccession string) string {
	parts := strings.Split(targetAccession, "|")
	if len(parts) >= 2 {
		return parts[1]
	}
	return targetAccession
}
