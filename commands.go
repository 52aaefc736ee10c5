package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/swanpat/elmscan/pkg/align"
	"github.com/swanpat/elmscan/pkg/elm"
	"github.com/swanpat/elmscan/pkg/ensembl"
	"github.com/swanpat/elmscan/pkg/setup"
	"github.com/swanpat/elmscan/pkg/uniprot"
)

func newRootCommand() *cobra.Command {

	root := &cobra.Command{
		Use:           "elmscan",
		Short:         "Query ELM, Ensembl and UniProt for protein motifs and gene information",
		Version:       VERSION,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newElmCommand(),
		newSearchCommand(),
		newRefCommand(),
		newSetupCommand(),
	)

	return root
}

func newElmCommand() *cobra.Command {

	var (
		uniprotMode bool
		jsonOut     bool
		quiet       bool
		outDir      string
		dmndBinary  string
	)

	cmd := &cobra.Command{
		Use:   "elm [flags] SEQUENCE|ACCESSION...",
		Short: "Search the Eukaryotic Linear Motif resource for functional sites in proteins",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {

			log, err := newLogger(quiet)
			if err != nil {
				return err
			}
			defer log.Sync()

			dir := dataDir(log)
			if !setup.Installed(dir) {
				return fmt.Errorf("ELM reference files not found in %s; please run: elmscan setup", dir)
			}

			wf := &elm.Workflow{
				Ref: elm.NewReferenceDB(
					filepath.Join(dir, setup.ClassesFile),
					filepath.Join(dir, setup.InstancesFile),
				),
				Aligner: &align.Diamond{
					Binary:    dmndBinary,
					Reference: filepath.Join(dir, setup.InstancesFastaFile),
					Sensitive: true,
					Timeout:   10 * time.Minute,
					Log:       log,
				},
				Fetcher: uniprot.NewClient(log),
				Log:     log,
			}

			res, err := wf.RunBatch(cmd.Context(), args, uniprotMode)
			if err != nil {
				return err
			}

			if res.Empty() {
				log.Warn("no results for any input")
				return nil
			}

			switch {
			case jsonOut && outDir != "":
				return elm.WriteJSON(outDir, res)
			case jsonOut:
				return elm.RenderJSON(os.Stdout, res)
			case outDir != "":
				return elm.WriteCSV(outDir, res)
			default:
				return elm.RenderTable(os.Stdout, res)
			}
		},
	}

	cmd.Flags().BoolVarP(&uniprotMode, "uniprot", "u", false, "treat inputs as UniProt accessions instead of amino acid sequences")
	cmd.Flags().BoolVarP(&jsonOut, "json", "j", false, "emit JSON instead of tables")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory to save ortholog.* and regex.* result files in")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")
	cmd.Flags().StringVar(&dmndBinary, "diamond", "", "path to the diamond executable (default: diamond on PATH)")

	return cmd
}

func newSearchCommand() *cobra.Command {

	var (
		species string
		limit   int
		outFile string
		quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "search [flags] SEARCHWORD...",
		Short: "Query Ensembl for genes matching free form search terms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {

			log, err := newLogger(quiet)
			if err != nil {
				return err
			}
			defer log.Sync()

			database := ensembl.CoreDatabase(species)
			log.Info("Results fetched from database", zap.String("database", database))

			db, err := ensembl.Connect(database)
			if err != nil {
				return err
			}
			defer db.Close()

			searcher := &ensembl.Searcher{DB: db, Database: database, Log: log}
			results, err := searcher.Search(cmd.Context(), args, limit)
			if err != nil {
				return err
			}

			if outFile != "" {
				return saveGeneCSV(outFile, results)
			}
			return printGeneTable(results)
		},
	}

	cmd.Flags().StringVarP(&species, "species", "s", "", "species shortcut (e.g. human) or full core database name")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "limit the number of results per search word (0 = unlimited)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "save results as a CSV file instead of printing them")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")
	cmd.MarkFlagRequired("species")

	return cmd
}

func newRefCommand() *cobra.Command {

	var (
		species string
		which   []string
		release int
		outFile string
		quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "ref [flags]",
		Short: "Fetch GTF and FASTA reference links from the Ensembl FTP site",
		RunE: func(cmd *cobra.Command, args []string) error {

			log, err := newLogger(quiet)
			if err != nil {
				return err
			}
			defer log.Sync()

			client := ensembl.NewRefClient(log)
			links, err := client.Links(cmd.Context(), species, release)
			if err != nil {
				return err
			}

			if len(which) == 1 && which[0] == "json" {
				data, err := json.MarshalIndent(links, "", "    ")
				if err != nil {
					return err
				}
				if outFile != "" {
					return os.WriteFile(outFile, append(data, '\n'), 0o644)
				}
				fmt.Println(string(data))
				return nil
			}

			for _, w := range which {
				switch w {
				case "gtf":
					fmt.Println(links.Annotation.URL)
				case "cdna":
					fmt.Println(links.Transcriptome.URL)
				case "dna":
					fmt.Println(links.Genome.URL)
				default:
					return fmt.Errorf("parameter --which must be json, or any combination of gtf, cdna, dna (got %q)", w)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&species, "species", "s", "", "species in <genus>_<species> form, e.g. homo_sapiens")
	cmd.Flags().StringSliceVarP(&which, "which", "w", []string{"json"}, "which links to return: json, or any of gtf, cdna, dna")
	cmd.Flags().IntVarP(&release, "release", "r", 0, "Ensembl release to fetch from (default: latest)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "save the JSON document to a file instead of printing it")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")
	cmd.MarkFlagRequired("species")

	return cmd
}

func newSetupCommand() *cobra.Command {

	var quiet bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Download the local ELM reference files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {

			log, err := newLogger(quiet)
			if err != nil {
				return err
			}
			defer log.Sync()

			return setup.Run(cmd.Context(), dataDir(log), log)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")

	return cmd
}

var geneCSVHeader = []string{
	"ensembl_id", "gene_name", "ensembl_description", "ext_ref_description", "biotype", "url",
}

func geneRecord(r ensembl.GeneResult) []string {
	return []string{r.EnsemblID, r.GeneName, r.EnsemblDescription, r.ExtRefDescription, r.Biotype, r.URL}
}

func saveGeneCSV(path string, results []ensembl.GeneResult) error {

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	records := [][]string{geneCSVHeader}
	for _, r := range results {
		records = append(records, geneRecord(r))
	}
	return writer.WriteAll(records)
}

func printGeneTable(results []ensembl.GeneResult) error {
	writer := csv.NewWriter(os.Stdout)
	writer.Comma = '\t'
	records := [][]string{geneCSVHeader}
	for _, r := range results {
		records = append(records, geneRecord(r))
	}
	return writer.WriteAll(records)
}
