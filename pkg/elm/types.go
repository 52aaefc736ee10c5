package elm

// MotifClass is one row of the ELM classes table: a motif pattern with its
// descriptive metadata.
type MotifClass struct {
	Accession          string  `json:"class_accession"`
	ELMIdentifier      string  `json:"elm_identifier"`
	FunctionalSiteName string  `json:"functional_site_name"`
	ELMType            string  `json:"elm_type"`
	Description        string  `json:"description"`
	Regex              string  `json:"regex"`
	Probability        float64 `json:"probability"`
	NumInstances       int     `json:"num_instances"`
	NumInstancesInPDB  int     `json:"num_instances_in_pdb"`
}

// MotifInstance is one row of the ELM instances table: a motif occurrence
// documented in a reference ortholog. Accessions may hold several
// separator-joined accessions for the same protein.
type MotifInstance struct {
	Accession     string `json:"instance_accession"`
	ELMType       string `json:"elm_type"`
	ELMIdentifier string `json:"elm_identifier"`
	ProteinName   string `json:"protein_name"`
	PrimaryAcc    string `json:"primary_acc"`
	Accessions    string `json:"accessions"`
	Start         int    `json:"start_in_ortholog"`
	End           int    `json:"end_in_ortholog"`
	References    string `json:"references"`
	Methods       string `json:"methods"`
	InstanceLogic string `json:"instance_logic"`
	PDB           string `json:"pdb"`
	Organism      string `json:"organism"`
}

// OrthologResult joins an alignment hit with the instance and class tables.
// The alignment-derived fields are pointers because identifier-mode lookups
// carry no alignment: absent means "not aligned", not zero.
type OrthologResult struct {
	UniProtID          string   `json:"uniprot_id"`
	ClassAccession     string   `json:"class_accession"`
	ELMIdentifier      string   `json:"elm_identifier"`
	FunctionalSiteName string   `json:"functional_site_name"`
	Description        string   `json:"description"`
	Regex              string   `json:"regex"`
	Probability        float64  `json:"probability"`
	Start              int      `json:"start_in_ortholog"`
	End                int      `json:"end_in_ortholog"`
	QueryCover         *float64 `json:"query_cover,omitempty"`
	PercentIdentity    *float64 `json:"percent_identity,omitempty"`
	QueryStart         *int     `json:"query_start,omitempty"`
	QueryEnd           *int     `json:"query_end,omitempty"`
	TargetStart        *int     `json:"target_start,omitempty"`
	TargetEnd          *int     `json:"target_end,omitempty"`
	ProteinName        string   `json:"protein_name"`
	Organism           string   `json:"organism"`
	References         string   `json:"references"`
	InstanceLogic      string   `json:"instance_logic"`
	MotifInQuery       *bool    `json:"motif_in_query,omitempty"`
}

// RegexMatchResult is one (motif, match span) pair from scanning a query
// sequence against every class regex. Spans are 0-based half-open. The
// instance fields are filled by a left join on the ELM identifier and stay
// empty when no instance is documented.
type RegexMatchResult struct {
	InstanceAccession  string  `json:"instance_accession"`
	ELMIdentifier      string  `json:"elm_identifier"`
	FunctionalSiteName string  `json:"functional_site_name"`
	ELMType            string  `json:"elm_type"`
	Description        string  `json:"description"`
	MatchedSequence    string  `json:"matched_sequence"`
	Probability        float64 `json:"probability"`
	StartInQuery       int     `json:"start_in_query"`
	EndInQuery         int     `json:"end_in_query"`
	StartInOrtholog    *int    `json:"start_in_ortholog,omitempty"`
	EndInOrtholog      *int    `json:"end_in_ortholog,omitempty"`
	Methods            string  `json:"methods"`
	ProteinName        string  `json:"protein_name"`
	Organism           string  `json:"organism"`
}

// Result holds the two logically distinct tables a motif search produces.
type Result struct {
	Orthologs    []OrthologResult   `json:"orthologs"`
	RegexMatches []RegexMatchResult `json:"regex_matches"`
}

// Empty reports whether both result tables are empty.
func (r *Result) Empty() bool {
	return len(r.Orthologs) == 0 && len(r.RegexMatches) == 0
}
