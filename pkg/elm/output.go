package elm

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/swanpat/elmscan/internal/util"
)

// Persisted file basenames. The extension depends on the requested format.
const (
	OrthologBasename = "ortholog"
	RegexBasename    = "regex"
)

var orthologHeader = []string{
	"uniprot_id", "class_accession", "elm_identifier", "functional_site_name",
	"description", "regex", "probability", "start_in_ortholog", "end_in_ortholog",
	"query_cover", "percent_identity", "query_start", "query_end",
	"target_start", "target_end", "protein_name", "organism", "references",
	"instance_logic", "motif_in_query",
}

var regexHeader = []string{
	"instance_accession", "elm_identifier", "functional_site_name", "elm_type",
	"description", "matched_sequence", "probability", "start_in_query",
	"end_in_query", "start_in_ortholog", "end_in_ortholog", "methods",
	"protein_name", "organism",
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func (o OrthologResult) record() []string {
	return []string{
		o.UniProtID, o.ClassAccession, o.ELMIdentifier, o.FunctionalSiteName,
		o.Description, o.Regex, strconv.FormatFloat(o.Probability, 'f', -1, 64),
		strconv.Itoa(o.Start), strconv.Itoa(o.End),
		optFloat(o.QueryCover), optFloat(o.PercentIdentity),
		optInt(o.QueryStart), optInt(o.QueryEnd),
		optInt(o.TargetStart), optInt(o.TargetEnd),
		o.ProteinName, o.Organism, o.References, o.InstanceLogic,
		optBool(o.MotifInQuery),
	}
}

func (m RegexMatchResult) record() []string {
	return []string{
		m.InstanceAccession, m.ELMIdentifier, m.FunctionalSiteName, m.ELMType,
		m.Description, m.MatchedSequence,
		strconv.FormatFloat(m.Probability, 'f', -1, 64),
		strconv.Itoa(m.StartInQuery), strconv.Itoa(m.EndInQuery),
		optInt(m.StartInOrtholog), optInt(m.EndInOrtholog),
		m.Methods, m.ProteinName, m.Organism,
	}
}

// WriteCSV persists the non-empty result tables as ortholog.csv and
// regex.csv under dir, creating dir when absent.
func WriteCSV(dir string, res *Result) error {

	if err := util.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	if len(res.Orthologs) > 0 {
		records := make([][]string, 0, len(res.Orthologs)+1)
		records = append(records, orthologHeader)
		for _, o := range res.Orthologs {
			records = append(records, o.record())
		}
		if err := writeCSVFile(filepath.Join(dir, OrthologBasename+".csv"), records); err != nil {
			return err
		}
	}

	if len(res.RegexMatches) > 0 {
		records := make([][]string, 0, len(res.RegexMatches)+1)
		records = append(records, regexHeader)
		for _, m := range res.RegexMatches {
			records = append(records, m.record())
		}
		if err := writeCSVFile(filepath.Join(dir, RegexBasename+".csv"), records); err != nil {
			return err
		}
	}

	return nil
}

func writeCSVFile(path string, records [][]string) error {

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// WriteJSON persists the non-empty result tables as ortholog.json and
// regex.json under dir, creating dir when absent.
func WriteJSON(dir string, res *Result) error {

	if err := util.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	if len(res.Orthologs) > 0 {
		if err := writeJSONFile(filepath.Join(dir, OrthologBasename+".json"), res.Orthologs); err != nil {
			return err
		}
	}

	if len(res.RegexMatches) > 0 {
		if err := writeJSONFile(filepath.Join(dir, RegexBasename+".json"), res.RegexMatches); err != nil {
			return err
		}
	}

	return nil
}

func writeJSONFile(path string, v any) error {

	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// RenderJSON writes the non-empty tables as indented JSON payloads to w.
func RenderJSON(w io.Writer, res *Result) error {

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")

	if len(res.Orthologs) > 0 {
		if err := encoder.Encode(res.Orthologs); err != nil {
			return err
		}
	}
	if len(res.RegexMatches) > 0 {
		if err := encoder.Encode(res.RegexMatches); err != nil {
			return err
		}
	}

	return nil
}

// RenderTable writes the non-empty tables to w as aligned console tables.
func RenderTable(w io.Writer, res *Result) error {

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)

	if len(res.Orthologs) > 0 {
		fmt.Fprintln(tw, "ORTHOLOGS")
		writeTableRows(tw, orthologHeader, len(res.Orthologs), func(i int) []string {
			return res.Orthologs[i].record()
		})
	}

	if len(res.RegexMatches) > 0 {
		if len(res.Orthologs) > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintln(tw, "REGEX MATCHES")
		writeTableRows(tw, regexHeader, len(res.RegexMatches), func(i int) []string {
			return res.RegexMatches[i].record()
		})
	}

	return tw.Flush()
}

func writeTableRows(w io.Writer, header []string, n int, row func(int) []string) {
	writeTabbed(w, header)
	for i := 0; i < n; i++ {
		writeTabbed(w, row(i))
	}
}

func writeTabbed(w io.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, f)
	}
	fmt.Fprintln(w)
}
