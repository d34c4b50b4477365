// Package index hands the combined FASTA file to the BLAST database builder.
package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"blastdbbuilder/internal/errs"
	"blastdbbuilder/internal/tool"
)

// DirName holds the database files next to the combined FASTA file.
const DirName = "blastnDB"

// Indexer builds a database from a FASTA file.
type Indexer interface {
	Index(ctx context.Context, fasta, prefix string) (tool.Result, error)
}

// Prefix derives the database output prefix from the input file name:
// <dir>/blastnDB/<name without extension>.
func Prefix(fastaPath string) string {
	base := filepath.Base(fastaPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(fastaPath), DirName, stem)
}

// Build indexes fastaPath and returns the database prefix. A missing or empty
// input is errs.NoInput; a failing indexer is errs.Indexing and the error
// carries the tool's output. The input file is only read.
func Build(ctx context.Context, ix Indexer, fastaPath string) (string, tool.Result, error) {
	st, err := os.Stat(fastaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", tool.Result{}, errs.Newf(errs.NoInput, "build database", fastaPath, "combined FASTA not found; run the concat stage first")
		}
		return "", tool.Result{}, err
	}
	if st.IsDir() || st.Size() == 0 {
		return "", tool.Result{}, errs.Newf(errs.NoInput, "build database", fastaPath, "not a non-empty file")
	}

	prefix := Prefix(fastaPath)
	if err := os.MkdirAll(filepath.Dir(prefix), 0o755); err != nil {
		return prefix, tool.Result{}, fmt.Errorf("database dir: %w", err)
	}
	res, err := ix.Index(ctx, fastaPath, prefix)
	return prefix, res, err
}
