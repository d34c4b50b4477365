// internal/manifest/parse.go
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"blastdbbuilder/internal/errs"
	"blastdbbuilder/internal/group"
)

// Entry is one assembly row of a manifest.
type Entry struct {
	Accession string
	Organism  string
	Category  string
	Path      string // auxiliary download reference (ftp_path in NCBI listings)
}

// Layout gives the zero-based column of each field.
type Layout struct {
	Accession int
	Organism  int
	Category  int
	Path      int
}

// NCBILayout matches assembly_summary.txt: assembly_accession, refseq_category,
// organism_name and ftp_path.
var NCBILayout = Layout{Accession: 0, Organism: 7, Category: 4, Path: 19}

func (l Layout) width() int {
	w := l.Accession
	for _, c := range []int{l.Organism, l.Category, l.Path} {
		if c > w {
			w = c
		}
	}
	return w + 1
}

// Parse reads tab-separated rows from r. Comment lines ('#') and blank lines
// are skipped. Rows that cannot be mapped onto the layout are returned as
// errs.Parse values in bad and left out of entries; only a read failure
// aborts parsing. Repeated accessions keep their first row.
func Parse(r io.Reader, layout Layout) (entries []Entry, bad []error, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	seen := make(map[string]struct{})
	width := layout.width()
	ln := 0
	for sc.Scan() {
		ln++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || line[0] == '#' {
			continue
		}
		f := strings.Split(line, "\t")
		if len(f) < width {
			bad = append(bad, errs.Newf(errs.Parse, "parse manifest", fmt.Sprintf("line %d", ln),
				"%d columns, need %d", len(f), width))
			continue
		}
		e := Entry{
			Accession: strings.TrimSpace(f[layout.Accession]),
			Organism:  strings.TrimSpace(f[layout.Organism]),
			Category:  strings.TrimSpace(f[layout.Category]),
			Path:      strings.TrimSpace(f[layout.Path]),
		}
		if e.Accession == "" {
			bad = append(bad, errs.Newf(errs.Parse, "parse manifest", fmt.Sprintf("line %d", ln), "empty accession"))
			continue
		}
		// Accessions name files in the group directory.
		if strings.ContainsAny(e.Accession, `/\`) || strings.Contains(e.Accession, "..") {
			bad = append(bad, errs.Newf(errs.Parse, "parse manifest", fmt.Sprintf("line %d", ln), "invalid accession %q", e.Accession))
			continue
		}
		if _, dup := seen[e.Accession]; dup {
			continue
		}
		seen[e.Accession] = struct{}{}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, bad, fmt.Errorf("manifest scan: %w", err)
	}
	return entries, bad, nil
}

// ParseFile is Parse over a local manifest file.
func ParseFile(path string, layout Layout) ([]Entry, []error, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer fh.Close()
	return Parse(fh, layout)
}

// Filter keeps the entries the group's inclusion rule selects, in manifest order.
func Filter(entries []Entry, g group.Group) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if g.Keep(e.Category) {
			out = append(out, e)
		}
	}
	return out
}
