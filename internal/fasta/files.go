// internal/fasta/files.go
package fasta

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extensions are the recognised sequence-file suffixes.
var Extensions = []string{".fna", ".fa", ".fasta"}

// IsSequenceFile reports whether name carries a recognised extension.
func IsSequenceFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// BelongsTo reports whether the sequence file name was produced for
// accession: the name is the accession itself or starts with it followed by
// '_' or '.'. GCF_1.1 therefore does not claim GCF_1.10_x.fna.
func BelongsTo(name, accession string) bool {
	if accession == "" || !IsSequenceFile(name) {
		return false
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == accession {
		return true
	}
	if !strings.HasPrefix(name, accession) || len(name) == len(accession) {
		return false
	}
	next := name[len(accession)]
	return next == '_' || next == '.'
}

// List returns the sequence files directly inside dir, sorted by name.
// Subdirectories and hidden entries are ignored. A missing dir yields nil.
func List(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !IsSequenceFile(name) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// Find returns the first sequence file in dir that belongs to accession.
func Find(dir, accession string) (string, bool, error) {
	files, err := List(dir)
	if err != nil {
		return "", false, err
	}
	for _, f := range files {
		if BelongsTo(filepath.Base(f), accession) {
			return f, true, nil
		}
	}
	return "", false, nil
}
