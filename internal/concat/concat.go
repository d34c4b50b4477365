// Package concat merges every group directory's sequence files into the
// combined FASTA file.
//
// Sources are read in a fixed order (group directories as given, files
// sorted by name) and copied byte for byte, so equal inputs always yield a
// byte-identical output. Source files are never modified or removed.
package concat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"blastdbbuilder/internal/errs"
	"blastdbbuilder/internal/fasta"
)

// FileName is the combined file's name inside the project root.
const FileName = "combined_fasta.fasta"

// Result describes a finished concatenation.
type Result struct {
	Path    string
	Files   int
	Records int
}

// Sources lists the sequence files of groupDirs in concatenation order.
func Sources(groupDirs []string) ([]string, error) {
	var out []string
	for _, dir := range groupDirs {
		files, err := fasta.List(dir)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		out = append(out, files...)
	}
	return out, nil
}

// Concatenate writes all sources of groupDirs to output and counts records.
//
// A newline is inserted after any source that does not end with one, so the
// next file's first record never merges into the previous file's last line.
// The data goes to output+".part" first and is renamed over output only once
// complete. No sources at all is an errs.NoInput error.
func Concatenate(ctx context.Context, groupDirs []string, output string) (Result, error) {
	srcs, err := Sources(groupDirs)
	if err != nil {
		return Result{}, err
	}
	if len(srcs) == 0 {
		return Result{}, errs.Newf(errs.NoInput, "concatenate", "", "no sequence files found in %d group director(ies)", len(groupDirs))
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return Result{}, err
	}
	tmp := output + ".part"
	fh, err := os.Create(tmp)
	if err != nil {
		return Result{}, err
	}
	fail := func(err error) (Result, error) {
		_ = fh.Close()
		_ = os.Remove(tmp)
		return Result{}, err
	}

	bw := bufio.NewWriterSize(fh, 1<<20)
	var counter fasta.MarkerCounter
	dst := io.MultiWriter(bw, &counter)
	buf := make([]byte, 1<<20)

	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		counter.Reset()
		if err := copyFile(dst, src, buf); err != nil {
			return fail(err)
		}
		if !counter.EndsWithNewline() {
			if err := bw.WriteByte('\n'); err != nil {
				return fail(err)
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := fh.Sync(); err != nil {
		return fail(err)
	}
	if err := fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return Result{}, err
	}
	if err := os.Rename(tmp, output); err != nil {
		_ = os.Remove(tmp)
		return Result{}, err
	}
	return Result{Path: output, Files: len(srcs), Records: counter.Records}, nil
}

func copyFile(dst io.Writer, src string, buf []byte) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if _, err := io.CopyBuffer(dst, in, buf); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return nil
}

// Verify re-parses path as FASTA and checks it holds want records.
func Verify(path string, want int) error {
	got, err := fasta.CountRecords(path)
	if err != nil {
		return errs.New(errs.Parse, "verify", path, err)
	}
	if got != want {
		return errs.Newf(errs.Parse, "verify", path, "parsed %d records, counted %d while copying", got, want)
	}
	return nil
}
