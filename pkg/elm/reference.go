package elm

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// ErrNoReferenceData marks a missing or unreadable local reference table.
var ErrNoReferenceData = errors.New("ELM reference data not found")

// ReferenceDB loads the two local ELM lookup tables (classes and instances)
// lazily on first use. After loading the tables are read-only for the
// process lifetime, so no locking beyond the load itself is needed.
type ReferenceDB struct {
	ClassesPath   string
	InstancesPath string

	once    sync.Once
	loadErr error

	classes   []MotifClass
	instances []MotifInstance
	byIdent   map[string][]int // ELM identifier -> instance indexes
}

func NewReferenceDB(classesPath, instancesPath string) *ReferenceDB {
	return &ReferenceDB{
		ClassesPath:   classesPath,
		InstancesPath: instancesPath,
	}
}

// NewReferenceDBFromTables builds an already-loaded ReferenceDB. Used by
// tests and anywhere the tables come from somewhere other than disk.
func NewReferenceDBFromTables(classes []MotifClass, instances []MotifInstance) *ReferenceDB {
	r := &ReferenceDB{}
	r.once.Do(func() {
		r.classes = classes
		r.instances = instances
		r.index()
	})
	return r
}

func (r *ReferenceDB) load() error {
	r.once.Do(func() {
		classes, err := loadClasses(r.ClassesPath)
		if err != nil {
			r.loadErr = err
			return
		}
		instances, err := loadInstances(r.InstancesPath)
		if err != nil {
			r.loadErr = err
			return
		}
		r.classes = classes
		r.instances = instances
		r.index()
	})
	return r.loadErr
}

func (r *ReferenceDB) index() {
	r.byIdent = make(map[string][]int, len(r.instances))
	for i, inst := range r.instances {
		r.byIdent[inst.ELMIdentifier] = append(r.byIdent[inst.ELMIdentifier], i)
	}
}

// Classes returns the motif class table in file row order.
func (r *ReferenceDB) Classes() ([]MotifClass, error) {
	if err := r.load(); err != nil {
		return nil, err
	}
	return r.classes, nil
}

// Instances returns the motif instance table in file row order.
func (r *ReferenceDB) Instances() ([]MotifInstance, error) {
	if err := r.load(); err != nil {
		return nil, err
	}
	return r.instances, nil
}

// ClassByIdentifier looks up a class by its ELM identifier.
func (r *ReferenceDB) ClassByIdentifier(ident string) (MotifClass, bool) {
	if err := r.load(); err != nil {
		return MotifClass{}, false
	}
	for _, c := range r.classes {
		if c.ELMIdentifier == ident {
			return c, true
		}
	}
	return MotifClass{}, false
}

// InstancesByIdentifier returns all instances sharing an ELM identifier,
// in file row order.
func (r *ReferenceDB) InstancesByIdentifier(ident string) ([]MotifInstance, error) {
	if err := r.load(); err != nil {
		return nil, err
	}
	idxs := r.byIdent[ident]
	out := make([]MotifInstance, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, r.instances[i])
	}
	return out, nil
}

// InstancesByAccession returns all instances whose Accessions field contains
// the given accession. Substring containment, not equality: the field may
// store several separator-joined accessions. An accession that is a prefix
// of another can therefore over-match.
func (r *ReferenceDB) InstancesByAccession(accession string) ([]MotifInstance, error) {
	if err := r.load(); err != nil {
		return nil, err
	}
	var out []MotifInstance
	for _, inst := range r.instances {
		if strings.Contains(inst.Accessions, accession) {
			out = append(out, inst)
		}
	}
	return out, nil
}

// ELM distributions lead with "#"-prefixed preamble lines and quote every
// field; both are handled by the csv reader settings below.
func openTSV(path string) (*csv.Reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoReferenceData, path)
	}

	reader := csv.NewReader(f)
	reader.Comma = '\t'
	reader.Comment = '#'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	return reader, f, nil
}

type columnIndex map[string]int

func headerIndex(header []string) columnIndex {
	idx := make(columnIndex, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	return idx
}

// get returns the trimmed value of a named column, reporting absence
// explicitly instead of panicking on short records.
func (c columnIndex) get(record []string, names ...string) (string, bool) {
	for _, name := range names {
		i, ok := c[name]
		if !ok || i >= len(record) {
			continue
		}
		return strings.TrimSpace(record[i]), true
	}
	return "", false
}

func (c columnIndex) require(record []string, names ...string) (string, error) {
	v, ok := c.get(record, names...)
	if !ok {
		return "", fmt.Errorf("missing required column %q", names[0])
	}
	return v, nil
}

func loadClasses(path string) ([]MotifClass, error) {

	reader, f, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("malformed classes table %s: %w", path, err)
	}
	idx := headerIndex(header)

	var classes []MotifClass
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed classes table %s: %w", path, err)
		}

		var c MotifClass
		if c.Accession, err = idx.require(record, "Accession"); err != nil {
			return nil, fmt.Errorf("malformed classes table %s: %w", path, err)
		}
		if c.ELMIdentifier, err = idx.require(record, "ELMIdentifier"); err != nil {
			return nil, fmt.Errorf("malformed classes table %s: %w", path, err)
		}
		if c.Regex, err = idx.require(record, "Regex"); err != nil {
			return nil, fmt.Errorf("malformed classes table %s: %w", path, err)
		}
		c.FunctionalSiteName, _ = idx.get(record, "FunctionalSiteName")
		c.ELMType, _ = idx.get(record, "ELMType")
		c.Description, _ = idx.get(record, "Description")

		if v, ok := idx.get(record, "Probability"); ok && v != "" {
			if c.Probability, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("malformed classes table %s: bad probability %q: %w", path, v, err)
			}
		}
		if v, ok := idx.get(record, "#Instances"); ok && v != "" {
			c.NumInstances, _ = strconv.Atoi(v)
		}
		if v, ok := idx.get(record, "#Instances_in_PDB"); ok && v != "" {
			c.NumInstancesInPDB, _ = strconv.Atoi(v)
		}

		classes = append(classes, c)
	}

	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: classes table %s holds no rows", ErrNoReferenceData, path)
	}

	return classes, nil
}

func loadInstances(path string) ([]MotifInstance, error) {

	reader, f, err := openTSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("malformed instances table %s: %w", path, err)
	}
	idx := headerIndex(header)

	var instances []MotifInstance
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed instances table %s: %w", path, err)
		}

		var inst MotifInstance
		if inst.Accession, err = idx.require(record, "Accession"); err != nil {
			return nil, fmt.Errorf("malformed instances table %s: %w", path, err)
		}
		if inst.ELMIdentifier, err = idx.require(record, "ELMIdentifier"); err != nil {
			return nil, fmt.Errorf("malformed instances table %s: %w", path, err)
		}
		inst.ELMType, _ = idx.get(record, "ELMType")
		inst.ProteinName, _ = idx.get(record, "ProteinName")
		inst.PrimaryAcc, _ = idx.get(record, "Primary_Acc")
		inst.Accessions, _ = idx.get(record, "Accessions")
		inst.References, _ = idx.get(record, "References")
		inst.Methods, _ = idx.get(record, "Methods")
		inst.InstanceLogic, _ = idx.get(record, "InstanceLogic")
		inst.PDB, _ = idx.get(record, "PDB")
		inst.Organism, _ = idx.get(record, "Organism")

		if v, ok := idx.get(record, "Start in ortholog", "Start"); ok && v != "" {
			if inst.Start, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("malformed instances table %s: bad start %q: %w", path, v, err)
			}
		}
		if v, ok := idx.get(record, "End in ortholog", "End"); ok && v != "" {
			if inst.End, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("malformed instances table %s: bad end %q: %w", path, v, err)
			}
		}

		instances = append(instances, inst)
	}

	if len(instances) == 0 {
		return nil, fmt.Errorf("%w: instances table %s holds no rows", ErrNoReferenceData, path)
	}

	return instances, nil
}
