package manifest

import (
	"errors"
	"strings"
	"testing"

	"blastdbbuilder/internal/errs"
	"blastdbbuilder/internal/group"
)

func row(cols ...string) string { return strings.Join(cols, "\t") }

// shortLayout: accession, organism, (blank), category, ..., path at column 7.
var shortLayout = Layout{Accession: 0, Organism: 1, Category: 3, Path: 7}

func TestFilterReferenceOnly(t *testing.T) {
	data := strings.Join([]string{
		"## See ftp://ftp.ncbi.nlm.nih.gov/genomes/README_assembly_summary.txt",
		"#assembly_accession\torganism\t\tcategory\t\t\t\tpath",
		row("ID1", "Org1", "", "reference genome", "", "", "", "path1"),
		row("ID2", "Org2", "", "scaffold", "", "", "", "path2"),
	}, "\n") + "\n"

	entries, bad, err := Parse(strings.NewReader(data), shortLayout)
	if err != nil || len(bad) != 0 {
		t.Fatalf("parse: err=%v bad=%v", err, bad)
	}
	if len(entries) != 2 {
		t.Fatalf("want 2 entries, got %d", len(entries))
	}
	got := Filter(entries, group.Group{Name: "bacteria", Include: group.ReferenceOnly})
	if len(got) != 1 || got[0].Accession != "ID1" || got[0].Organism != "Org1" || got[0].Path != "path1" {
		t.Fatalf("filtered=%+v", got)
	}

	all := Filter(entries, group.Group{Name: "virus", Include: group.All})
	if len(all) != 2 || all[0].Accession != "ID1" || all[1].Accession != "ID2" {
		t.Fatalf("pass-through changed order or content: %+v", all)
	}
}

func TestParseMalformedRowsAreSkipped(t *testing.T) {
	data := strings.Join([]string{
		row("ID1", "Org1", "", "reference genome", "", "", "", "p1"),
		row("SHORT", "x"),
		row("", "Org", "", "reference genome", "", "", "", "p"),
		"",
		row("ID3", "Org3", "", "na", "", "", "", "p3"),
	}, "\n")

	entries, bad, err := Parse(strings.NewReader(data), shortLayout)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[1].Accession != "ID3" {
		t.Fatalf("entries=%+v", entries)
	}
	if len(bad) != 2 {
		t.Fatalf("want 2 parse errors, got %v", bad)
	}
	for _, e := range bad {
		if !errors.Is(e, errs.Parse) {
			t.Fatalf("want Parse kind, got %v", e)
		}
	}
}

func TestParseDeduplicatesAccessions(t *testing.T) {
	data := row("ID1", "first", "", "c", "", "", "", "p") + "\n" +
		row("ID1", "second", "", "c", "", "", "", "p") + "\r\n"
	entries, _, err := Parse(strings.NewReader(data), shortLayout)
	if err != nil || len(entries) != 1 || entries[0].Organism != "first" {
		t.Fatalf("entries=%+v err=%v", entries, err)
	}
}

func TestParseNCBILayout(t *testing.T) {
	cols := make([]string, 23)
	cols[0] = "GCF_000005845.2"
	cols[4] = "reference genome"
	cols[7] = "Escherichia coli str. K-12 substr. MG1655"
	cols[19] = "https://ftp.ncbi.nlm.nih.gov/genomes/all/GCF/000/005/845/GCF_000005845.2_ASM584v2"
	entries, bad, err := Parse(strings.NewReader(row(cols...)+"\n"), NCBILayout)
	if err != nil || len(bad) != 0 || len(entries) != 1 {
		t.Fatalf("entries=%v bad=%v err=%v", entries, bad, err)
	}
	e := entries[0]
	if e.Accession != cols[0] || e.Category != cols[4] || e.Organism != cols[7] || e.Path != cols[19] {
		t.Fatalf("bad mapping: %+v", e)
	}
}

func TestEmptyFilterIsNotAnError(t *testing.T) {
	entries, _, err := Parse(strings.NewReader("# only comments\n"), NCBILayout)
	if err != nil || len(entries) != 0 {
		t.Fatalf("entries=%v err=%v", entries, err)
	}
	if got := Partition(Filter(entries, group.Group{Include: group.ReferenceOnly}), 10); len(got) != 0 {
		t.Fatalf("want no batches, got %d", len(got))
	}
}

func TestParseRejectsPathLikeAccessions(t *testing.T) {
	data := strings.Join([]string{
		row("GCF_1.1", "ok", "", "na", "", "", "", "p"),
		row("../escape", "x", "", "na", "", "", "", "p"),
		row("a/b", "x", "", "na", "", "", "", "p"),
		row(`a\b`, "x", "", "na", "", "", "", "p"),
	}, "\n")
	entries, bad, err := Parse(strings.NewReader(data), shortLayout)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Accession != "GCF_1.1" {
		t.Fatalf("entries=%+v", entries)
	}
	if len(bad) != 3 {
		t.Fatalf("want 3 parse errors, got %v", bad)
	}
	for _, e := range bad {
		if !errors.Is(e, errs.Parse) {
			t.Fatalf("want Parse kind, got %v", e)
		}
	}
}
