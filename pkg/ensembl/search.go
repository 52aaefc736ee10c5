// Package ensembl queries the public Ensembl services: the anonymous MySQL
// mirror for gene searches and the FTP site for reference file links.
package ensembl

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

const (
	DefaultMySQLAddr = "ensembldb.ensembl.org:3306"
	anonymousUser    = "anonymous"
)

// Core databases on the public mirror, release 105.
var coreDatabases = map[string]string{
	"homo_sapiens":           "homo_sapiens_core_105_38",
	"human":                  "homo_sapiens_core_105_38",
	"mus_musculus":           "mus_musculus_core_105_39",
	"mouse":                  "mus_musculus_core_105_39",
	"caenorhabditis_elegans": "caenorhabditis_elegans_core_105_269",
	"roundworm":              "caenorhabditis_elegans_core_105_269",
	"taeniopygia_guttata":    "taeniopygia_guttata_core_105_12",
	"zebra_finch":            "taeniopygia_guttata_core_105_12",
}

// CoreDatabase maps a species shortcut to its core database name. Unknown
// values pass through verbatim, so a full core database name works too.
func CoreDatabase(species string) string {
	if db, ok := coreDatabases[strings.ToLower(species)]; ok {
		return db
	}
	return species
}

// hasGeneNames reports whether a core database stores gene names in
// gene_attrib (attrib_type_id = 4). Only the human and mouse cores do.
func hasGeneNames(database string) bool {
	return database == coreDatabases["human"] || database == coreDatabases["mouse"]
}

// Connect opens the given core database on the anonymous Ensembl mirror.
func Connect(database string) (*sql.DB, error) {

	cfg := mysql.NewConfig()
	cfg.User = anonymousUser
	cfg.Net = "tcp"
	cfg.Addr = DefaultMySQLAddr
	cfg.DBName = database
	cfg.Timeout = 30 * time.Second
	cfg.ReadTimeout = 2 * time.Minute

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open ensembl database %s: %w", database, err)
	}

	return db, nil
}

// GeneResult is one gene matching a search word.
type GeneResult struct {
	EnsemblID          string `json:"ensembl_id"`
	GeneName           string `json:"gene_name,omitempty"`
	EnsemblDescription string `json:"ensembl_description"`
	ExtRefDescription  string `json:"ext_ref_description"`
	Biotype            string `json:"biotype"`
	URL                string `json:"url"`
}

type Searcher struct {
	DB       *sql.DB
	Database string // core database name, for query shape and summary URLs
	Log      *zap.Logger
}

// Search returns all genes whose name or descriptions contain at least one
// of the search words (case-insensitive), deduplicated and ordered by
// Ensembl ID. limit == 0 means unlimited; the limit applies per search word.
func (s *Searcher) Search(ctx context.Context, searchWords []string, limit int) ([]GeneResult, error) {

	start := time.Now()

	var results []GeneResult
	seen := make(map[string]bool)

	for _, word := range searchWords {
		rows, err := s.searchWord(ctx, word, limit)
		if err != nil {
			return nil, fmt.Errorf("search for %q failed: %w", word, err)
		}
		for _, r := range rows {
			if seen[r.EnsemblID] {
				continue
			}
			seen[r.EnsemblID] = true
			results = append(results, r)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].EnsemblID < results[j].EnsemblID
	})

	for i := range results {
		results[i].URL = summaryURL(s.Database, results[i].EnsemblID)
	}

	s.Log.Info("ensembl search finished",
		zap.String("database", s.Database),
		zap.Int("genes", len(results)),
		zap.Duration("query_time", time.Since(start)))

	return results, nil
}

func (s *Searcher) searchWord(ctx context.Context, word string, limit int) ([]GeneResult, error) {

	withNames := hasGeneNames(s.Database)

	var qstring string
	if withNames {
		// Human and mouse store the gene name in gene_attrib.value where
		// gene_attrib.attrib_type_id = 4.
		qstring = `
        SELECT gene.stable_id, gene_attrib.value, gene.description, xref.description, gene.biotype
        FROM gene
        LEFT JOIN xref ON gene.display_xref_id = xref.xref_id
        LEFT JOIN gene_attrib ON gene.gene_id = gene_attrib.gene_id
        WHERE (gene_attrib.attrib_type_id = 4)
          AND (gene_attrib.value LIKE ? OR gene.description LIKE ? OR xref.description LIKE ?)`
	} else {
		qstring = `
        SELECT gene.stable_id, gene.description, xref.description, gene.biotype
        FROM gene
        LEFT JOIN xref ON gene.display_xref_id = xref.xref_id
        WHERE (gene.description LIKE ? OR xref.description LIKE ?)`
	}
	if limit > 0 {
		qstring += fmt.Sprintf(" LIMIT %d", limit)
	}

	stm, err := s.DB.PrepareContext(ctx, qstring)
	if err != nil {
		return nil, err
	}
	defer stm.Close()

	like := "%" + word + "%"
	var rows *sql.Rows
	if withNames {
		rows, err = stm.QueryContext(ctx, like, like, like)
	} else {
		rows, err = stm.QueryContext(ctx, like, like)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []GeneResult
	for rows.Next() {

		var (
			r                             GeneResult
			name, ensDesc, xrefDesc, biot sql.NullString
		)

		if withNames {
			err = rows.Scan(&r.EnsemblID, &name, &ensDesc, &xrefDesc, &biot)
		} else {
			err = rows.Scan(&r.EnsemblID, &ensDesc, &xrefDesc, &biot)
		}
		if err != nil {
			return nil, err
		}

		r.GeneName = name.String
		r.EnsemblDescription = ensDesc.String
		r.ExtRefDescription = xrefDesc.String
		r.Biotype = biot.String

		results = append(results, r)
	}

	return results, rows.Err()
}

// summaryURL builds the Ensembl gene summary page link. The species path
// segment is the first two parts of the core database name.
func summaryURL(database, ensemblID string) string {
	parts := strings.Split(database, "_")
	species := database
	if len(parts) >= 2 {
		species = parts[0] + "_" + parts[1]
	}
	return "https://uswest.ensembl.org/" + species + "/Gene/Summary?g=" + ensemblID
}
