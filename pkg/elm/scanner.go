package elm

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

// Scanner matches a query sequence against every motif class regex directly,
// without alignment.
type Scanner struct {
	Ref *ReferenceDB
	Log *zap.Logger
}

// Scan finds all non-overlapping, leftmost-first matches of every class
// pattern in sequence. Output order is class table row order, then
// left-to-right match order within each pattern, so results are reproducible
// run to run. Spans are 0-based half-open: sequence[start:end] is the
// matched substring.
//
// Every match is left-joined to the instances sharing the class's ELM
// identifier; identifiers without documented instances still produce a row.
func (s *Scanner) Scan(sequence string) ([]RegexMatchResult, error) {

	classes, err := s.Ref.Classes()
	if err != nil {
		return nil, fmt.Errorf("failed to load motif classes: %w", err)
	}

	var results []RegexMatchResult

	for _, class := range classes {
		re, err := regexp.Compile(class.Regex)
		if err != nil {
			// ELM patterns are written for a backtracking engine; the rare
			// ones RE2 rejects are skipped rather than failing the scan.
			s.Log.Warn("skipping motif with unsupported regex",
				zap.String("class", class.Accession),
				zap.String("regex", class.Regex),
				zap.Error(err))
			continue
		}

		for _, span := range re.FindAllStringIndex(sequence, -1) {
			start, end := span[0], span[1]

			base := RegexMatchResult{
				InstanceAccession:  class.Accession,
				ELMIdentifier:      class.ELMIdentifier,
				FunctionalSiteName: class.FunctionalSiteName,
				ELMType:            class.ELMType,
				Description:        class.Description,
				MatchedSequence:    sequence[start:end],
				Probability:        class.Probability,
				StartInQuery:       start,
				EndInQuery:         end,
			}

			instances, err := s.Ref.InstancesByIdentifier(class.ELMIdentifier)
			if err != nil {
				return nil, err
			}
			if len(instances) == 0 {
				results = append(results, base)
				continue
			}

			for _, inst := range instances {
				row := base
				instStart, instEnd := inst.Start, inst.End
				row.StartInOrtholog = &instStart
				row.EndInOrtholog = &instEnd
				row.Methods = inst.Methods
				row.ProteinName = inst.ProteinName
				row.Organism = inst.Organism
				results = append(results, row)
			}
		}
	}

	return results, nil
}
