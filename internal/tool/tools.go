// internal/tool/tools.go
package tool

import (
	"context"
	"os/exec"
	"sort"
	"strings"
	"time"

	"blastdbbuilder/internal/errs"
)

// Default executable names.
const (
	DefaultRetrieve = "datasets"
	DefaultExtract  = "unzip"
	DefaultIndex    = "makeblastdb"
)

// Retriever fetches one assembly archive per accession
// (`datasets download genome accession <ID> --filename <path>`).
type Retriever struct {
	Runner  Runner
	Bin     string
	Timeout time.Duration
}

// Retrieve downloads the archive for accession to archive. A non-zero exit or
// an expired timeout is an errs.Network error carrying the tool output.
func (r Retriever) Retrieve(ctx context.Context, accession, archive string) (Result, error) {
	cmd := Command{
		Name:    orDefault(r.Bin, DefaultRetrieve),
		Args:    []string{"download", "genome", "accession", accession, "--filename", archive},
		Timeout: r.Timeout,
	}
	return runAs(ctx, r.Runner, cmd, errs.Network, "retrieve", accession)
}

// Extractor unpacks archives (`unzip -o <archive> -d <dest>`).
type Extractor struct {
	Runner  Runner
	Bin     string
	Timeout time.Duration
}

// Extract unpacks archive into dest. Failure is an errs.Extraction error.
func (x Extractor) Extract(ctx context.Context, archive, dest string) (Result, error) {
	cmd := Command{
		Name:    orDefault(x.Bin, DefaultExtract),
		Args:    []string{"-o", archive, "-d", dest},
		Timeout: x.Timeout,
	}
	return runAs(ctx, x.Runner, cmd, errs.Extraction, "extract", archive)
}

// Indexer builds a nucleotide BLAST database
// (`makeblastdb -in <fasta> -dbtype nucl -out <prefix>`).
type Indexer struct {
	Runner      Runner
	Bin         string
	Timeout     time.Duration
	ParseSeqIDs bool // adds -parse_seqids -hash_index
}

// Index runs the indexer. Failure is an errs.Indexing error.
func (ix Indexer) Index(ctx context.Context, fasta, prefix string) (Result, error) {
	args := []string{"-in", fasta, "-dbtype", "nucl", "-out", prefix}
	if ix.ParseSeqIDs {
		args = append(args, "-parse_seqids", "-hash_index")
	}
	cmd := Command{Name: orDefault(ix.Bin, DefaultIndex), Args: args, Timeout: ix.Timeout}
	return runAs(ctx, ix.Runner, cmd, errs.Indexing, "index", fasta)
}

func runAs(ctx context.Context, r Runner, cmd Command, kind error, op, subject string) (Result, error) {
	if r == nil {
		r = ExecRunner{}
	}
	res, err := r.Run(ctx, cmd)
	if err != nil {
		if ctx.Err() != nil {
			return res, err
		}
		e := errs.New(kind, op, subject, err)
		e.Output = res.Output()
		return res, e
	}
	if res.TimedOut {
		e := errs.Newf(kind, op, subject, "%s timed out after %s", cmd.Name, cmd.Timeout)
		e.Output = res.Output()
		return res, e
	}
	if res.ExitCode != 0 {
		e := errs.Newf(kind, op, subject, "%s exited with status %d", cmd.Name, res.ExitCode)
		e.Output = res.Output()
		return res, e
	}
	return res, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// LookPathFunc resolves an executable name; exec.LookPath in production.
type LookPathFunc func(string) (string, error)

// Require verifies every named executable resolves. Missing tools are
// reported together as one errs.Config error.
func Require(look LookPathFunc, bins ...string) error {
	if look == nil {
		look = exec.LookPath
	}
	seen := map[string]bool{}
	var missing []string
	for _, b := range bins {
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		if _, err := look(b); err != nil {
			missing = append(missing, b)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return errs.Configf("required external tool(s) not found in PATH: %s", strings.Join(missing, ", "))
}
