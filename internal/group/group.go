// Package group defines the taxonomic groups whose RefSeq assemblies can be fetched.
package group

import (
	"fmt"
	"sort"
	"strings"
)

// Inclusion decides which manifest rows of a group are downloaded.
type Inclusion string

const (
	// ReferenceOnly keeps rows whose category equals ReferenceCategory.
	ReferenceOnly Inclusion = "reference"
	// All keeps every row.
	All Inclusion = "all"
)

// ReferenceCategory is the refseq_category value of reference assemblies.
const ReferenceCategory = "reference genome"

const refseqBase = "https://ftp.ncbi.nlm.nih.gov/genomes/refseq"

// Group is a named taxonomic category. Values are built once at startup and
// never mutated.
type Group struct {
	Name        string
	ManifestURL string
	Include     Inclusion
}

// Keep reports whether a manifest row with the given category belongs to the selection.
func (g Group) Keep(category string) bool {
	if g.Include == All {
		return true
	}
	return strings.TrimSpace(category) == ReferenceCategory
}

// Names lists the supported groups in canonical order. The order also fixes
// the order in which group directories are concatenated.
var Names = []string{"archaea", "bacteria", "fungi", "virus", "plants"}

// Defaults returns the built-in group table keyed by name.
func Defaults() map[string]Group {
	return map[string]Group{
		"archaea":  {Name: "archaea", ManifestURL: refseqBase + "/archaea/assembly_summary.txt", Include: All},
		"bacteria": {Name: "bacteria", ManifestURL: refseqBase + "/bacteria/assembly_summary.txt", Include: ReferenceOnly},
		"fungi":    {Name: "fungi", ManifestURL: refseqBase + "/fungi/assembly_summary.txt", Include: ReferenceOnly},
		"virus":    {Name: "virus", ManifestURL: refseqBase + "/viral/assembly_summary.txt", Include: All},
		"plants":   {Name: "plants", ManifestURL: refseqBase + "/plant/assembly_summary.txt", Include: All},
	}
}

// ParseInclusion accepts "reference" or "all".
func ParseInclusion(s string) (Inclusion, error) {
	switch Inclusion(strings.ToLower(strings.TrimSpace(s))) {
	case ReferenceOnly:
		return ReferenceOnly, nil
	case All:
		return All, nil
	}
	return "", fmt.Errorf("invalid inclusion %q (want reference|all)", s)
}

// Order sorts names into canonical order; unknown names sort last, alphabetically.
func Order(names []string) []string {
	rank := make(map[string]int, len(Names))
	for i, n := range Names {
		rank[n] = i
	}
	out := append([]string(nil), names...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return out[i] < out[j]
	})
	return out
}
