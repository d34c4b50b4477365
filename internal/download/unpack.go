// internal/download/unpack.go
package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"blastdbbuilder/internal/errs"
	"blastdbbuilder/internal/fasta"
	"blastdbbuilder/internal/tool"
)

// Extractor unpacks an archive into a directory.
type Extractor interface {
	Extract(ctx context.Context, archive, dest string) (tool.Result, error)
}

// Unpacker extracts a retrieved archive and flattens its sequence files into
// the group directory.
type Unpacker struct {
	Extractor Extractor
}

// DataPath is where an NCBI datasets archive keeps an accession's files.
func DataPath(extractDir, accession string) string {
	return filepath.Join(extractDir, "ncbi_dataset", "data", accession)
}

// Unpack extracts archive under scratch, moves the accession's sequence files
// into groupDir and returns their final paths. The archive and the extraction
// tree are removed on every path out. Finding no sequence file is an
// errs.Extraction error; if any move fails, files already moved are removed
// again so the accession stays absent rather than half present.
func (u *Unpacker) Unpack(ctx context.Context, archive, scratch, groupDir, accession string) (moved []string, err error) {
	extractDir := filepath.Join(scratch, "extract")
	defer func() {
		_ = os.RemoveAll(extractDir)
		_ = os.Remove(archive)
	}()

	if _, err := u.Extractor.Extract(ctx, archive, extractDir); err != nil {
		return nil, err
	}

	found, err := fasta.List(DataPath(extractDir, accession))
	if err != nil {
		return nil, errs.New(errs.Extraction, "locate sequences", accession, err)
	}
	if len(found) == 0 {
		return nil, errs.Newf(errs.Extraction, "locate sequences", accession, "no sequence files in archive")
	}

	defer func() {
		if err != nil {
			for _, p := range moved {
				_ = os.Remove(p)
			}
			moved = nil
		}
	}()
	for _, src := range found {
		name := filepath.Base(src)
		if !fasta.BelongsTo(name, accession) {
			name = accession + "_" + name
		}
		dest := filepath.Join(groupDir, name)
		if err := moveInto(src, dest); err != nil {
			return moved, errs.New(errs.Extraction, "relocate", accession, err)
		}
		moved = append(moved, dest)
	}
	return moved, nil
}

// moveInto renames src to dest, falling back to copy+rename when the rename
// crosses filesystems. dest only ever appears complete.
func moveInto(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
