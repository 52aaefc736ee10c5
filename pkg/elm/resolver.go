package elm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/swanpat/elmscan/pkg/align"
)

// Resolver cross-references accessions against the ELM instance table and
// joins the class metadata onto every match.
type Resolver struct {
	Ref *ReferenceDB
	Log *zap.Logger
}

// ResolveAccession returns one OrthologResult per instance whose Accessions
// field contains the given accession, left-joined to the class table on the
// ELM identifier. No alignment fields are attached; callers holding an
// alignment hit use ResolveHit instead.
func (rv *Resolver) ResolveAccession(accession string) ([]OrthologResult, error) {

	instances, err := rv.Ref.InstancesByAccession(accession)
	if err != nil {
		return nil, fmt.Errorf("failed to look up instances for %s: %w", accession, err)
	}
	if len(instances) == 0 {
		rv.Log.Warn("no motif instances match accession", zap.String("accession", accession))
		return nil, nil
	}

	results := make([]OrthologResult, 0, len(instances))
	for _, inst := range instances {
		results = append(results, rv.joinClass(accession, inst))
	}
	return results, nil
}

// ResolveHit resolves the target accession of an alignment hit and
// broadcasts the hit's alignment fields across every matched row, deriving
// motif_in_query = instance span contained in the hit's target window.
// queryLen is the length of the aligned query sequence, used for query cover.
func (rv *Resolver) ResolveHit(hit align.Hit, queryLen int) ([]OrthologResult, error) {

	accession := align.TargetID(hit.TargetAccession)

	rows, err := rv.ResolveAccession(accession)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		row := &rows[i]

		cover := 0.0
		if queryLen > 0 {
			cover = float64(hit.Length) / float64(queryLen) * 100
		}
		ident := hit.PercentIdentity
		qs, qe := hit.QueryStart, hit.QueryEnd
		ts, te := hit.TargetStart, hit.TargetEnd

		row.QueryCover = &cover
		row.PercentIdentity = &ident
		row.QueryStart = &qs
		row.QueryEnd = &qe
		row.TargetStart = &ts
		row.TargetEnd = &te

		contained := row.Start >= hit.TargetStart && row.End <= hit.TargetEnd
		row.MotifInQuery = &contained
	}

	return rows, nil
}

func (rv *Resolver) joinClass(accession string, inst MotifInstance) OrthologResult {

	row := OrthologResult{
		UniProtID:     accession,
		ELMIdentifier: inst.ELMIdentifier,
		Start:         inst.Start,
		End:           inst.End,
		ProteinName:   inst.ProteinName,
		Organism:      inst.Organism,
		References:    inst.References,
		InstanceLogic: inst.InstanceLogic,
	}

	class, ok := rv.Ref.ClassByIdentifier(inst.ELMIdentifier)
	if !ok {
		// Left join: instances without a class row keep their own fields.
		rv.Log.Debug("no class metadata for identifier", zap.String("identifier", inst.ELMIdentifier))
		return row
	}

	row.ClassAccession = class.Accession
	row.FunctionalSiteName = class.FunctionalSiteName
	row.Description = class.Description
	row.Regex = class.Regex
	row.Probability = class.Probability

	return row
}

// FilterContained drops rows whose motif does not lie within the alignment
// window of their hit, keeping only motifs the alignment actually covers.
// Rows without alignment fields are dropped too: containment is unknowable
// for them.
func FilterContained(rows []OrthologResult) []OrthologResult {
	var kept []OrthologResult
	for _, row := range rows {
		if row.MotifInQuery != nil && *row.MotifInQuery {
			kept = append(kept, row)
		}
	}
	return kept
}
