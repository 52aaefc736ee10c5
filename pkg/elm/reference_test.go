package elm

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const classesFixture = `#ELM_Classes Download Version: 1.4
#ELM_Classes Download Date: 2024-03-01
"Accession"	"ELMIdentifier"	"FunctionalSiteName"	"ELMType"	"Description"	"Regex"	"Probability"	"#Instances"	"#Instances_in_PDB"
"ELME000001"	"CLV_PCSK_FUR_1"	"PCSK cleavage site"	"CLV"	"Furin cleavage site"	"R.[RK]R."	"0.000508"	"13"	"1"
"ELME000002"	"LIG_SH3_1"	"SH3 ligand"	"LIG"	"Class I SH3 binding motif"	"[RKY]..P..P"	"0.0031"	"40"	"5"
`

const instancesFixture = `#ELM_Instances Download Version: 1.4
"Accession"	"ELMType"	"ELMIdentifier"	"ProteinName"	"Primary_Acc"	"Accessions"	"Start"	"End"	"References"	"Methods"	"InstanceLogic"	"PDB"	"Organism"
"ELMI000001"	"CLV"	"CLV_PCSK_FUR_1"	"P53_HUMAN"	"P04637"	"P04637 Q15086"	"10"	"14"	"1234567"	"mutation analysis"	"true positive"	""	"Homo sapiens"
"ELMI000002"	"LIG"	"LIG_SH3_1"	"SRC8_MOUSE"	"Q60598"	"Q60598"	"25"	"32"	"7654321"	"pull down"	"true positive"	""	"Mus musculus"
"ELMI000003"	"LIG"	"LIG_SH3_1"	"SRC8_HUMAN"	"Q14247"	"Q14247 B4E0K5"	"36"	"43"	"1111111"	"pull down"	"true positive"	""	"Homo sapiens"
`

func writeFixtureTables(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	classesPath := filepath.Join(dir, "elm_classes.tsv")
	instancesPath := filepath.Join(dir, "elm_instances.tsv")

	if err := os.WriteFile(classesPath, []byte(classesFixture), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(instancesPath, []byte(instancesFixture), 0o644); err != nil {
		t.Fatal(err)
	}

	return classesPath, instancesPath
}

func fixtureReferenceDB(t *testing.T) *ReferenceDB {
	t.Helper()
	classesPath, instancesPath := writeFixtureTables(t)
	return NewReferenceDB(classesPath, instancesPath)
}

func TestLoadClasses(t *testing.T) {

	ref := fixtureReferenceDB(t)

	classes, err := ref.Classes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(classes) != 2 {
		t.Fatalf("expected 2 classes, got %d", len(classes))
	}

	first := classes[0]
	if first.Accession != "ELME000001" {
		t.Errorf("Accession = %q", first.Accession)
	}
	if first.ELMIdentifier != "CLV_PCSK_FUR_1" {
		t.Errorf("ELMIdentifier = %q", first.ELMIdentifier)
	}
	if first.Regex != "R.[RK]R." {
		t.Errorf("Regex = %q", first.Regex)
	}
	if first.Probability != 0.000508 {
		t.Errorf("Probability = %v", first.Probability)
	}
	if first.NumInstances != 13 || first.NumInstancesInPDB != 1 {
		t.Errorf("instance counts = %d/%d", first.NumInstances, first.NumInstancesInPDB)
	}
}

func TestLoadInstances(t *testing.T) {

	ref := fixtureReferenceDB(t)

	instances, err := ref.Instances()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(instances) != 3 {
		t.Fatalf("expected 3 instances, got %d", len(instances))
	}

	first := instances[0]
	if first.Accession != "ELMI000001" {
		t.Errorf("Accession = %q", first.Accession)
	}
	if first.Accessions != "P04637 Q15086" {
		t.Errorf("Accessions = %q", first.Accessions)
	}
	if first.Start != 10 || first.End != 14 {
		t.Errorf("span = %d-%d", first.Start, first.End)
	}
	if first.Organism != "Homo sapiens" {
		t.Errorf("Organism = %q", first.Organism)
	}
}

// Loading must be idempotent: repeated reads and fresh loads of the same
// files yield identical tables.
func TestLoadIdempotence(t *testing.T) {

	classesPath, instancesPath := writeFixtureTables(t)

	ref1 := NewReferenceDB(classesPath, instancesPath)
	ref2 := NewReferenceDB(classesPath, instancesPath)

	c1a, err := ref1.Classes()
	if err != nil {
		t.Fatal(err)
	}
	c1b, _ := ref1.Classes()
	c2, _ := ref2.Classes()

	if !reflect.DeepEqual(c1a, c1b) {
		t.Error("repeated reads of the class table differ")
	}
	if !reflect.DeepEqual(c1a, c2) {
		t.Error("fresh loads of the class table differ")
	}

	i1, _ := ref1.Instances()
	i2, _ := ref2.Instances()
	if !reflect.DeepEqual(i1, i2) {
		t.Error("fresh loads of the instance table differ")
	}
}

func TestMissingReferenceFiles(t *testing.T) {

	ref := NewReferenceDB("/nonexistent/classes.tsv", "/nonexistent/instances.tsv")

	if _, err := ref.Classes(); !errors.Is(err, ErrNoReferenceData) {
		t.Fatalf("expected ErrNoReferenceData, got %v", err)
	}
}

func TestInstancesByIdentifier(t *testing.T) {

	ref := fixtureReferenceDB(t)

	instances, err := ref.InstancesByIdentifier("LIG_SH3_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 2 {
		t.Fatalf("expected 2 instances for LIG_SH3_1, got %d", len(instances))
	}
	// file row order preserved
	if instances[0].Accession != "ELMI000002" || instances[1].Accession != "ELMI000003" {
		t.Errorf("instances out of order: %s, %s", instances[0].Accession, instances[1].Accession)
	}
}

func TestInstancesByAccessionSubstring(t *testing.T) {

	ref := fixtureReferenceDB(t)

	tests := []struct {
		name      string
		accession string
		expected  int
	}{
		{"ExactPrimary", "P04637", 1},
		{"SecondaryAccession", "Q15086", 1},
		{"NoMatch", "P99999", 0},
		// Substring semantics: a prefix of a stored accession over-matches.
		{"PrefixOfStored", "P0463", 1},
		{"NotASubstring", "Q1524", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instances, err := ref.InstancesByAccession(tt.accession)
			if err != nil {
				t.Fatal(err)
			}
			if len(instances) != tt.expected {
				t.Errorf("expected %d instances, got %d", tt.expected, len(instances))
			}
		})
	}
}

func TestClassByIdentifier(t *testing.T) {

	ref := fixtureReferenceDB(t)

	class, found := ref.ClassByIdentifier("LIG_SH3_1")
	if !found {
		t.Fatal("expected LIG_SH3_1 to be found")
	}
	if class.Accession != "ELME000002" {
		t.Errorf("Accession = %q", class.Accession)
	}

	if _, found := ref.ClassByIdentifier("NO_SUCH_IDENT"); found {
		t.Error("expected NO_SUCH_IDENT to be absent")
	}
}
