// internal/fasta/count.go
package fasta

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// Marker starts a FASTA record line.
const Marker = '>'

// MarkerCounter counts record-start lines in a byte stream fed through Write,
// however the stream is split into chunks.
type MarkerCounter struct {
	Records  int
	midLine  bool // last byte seen was not '\n'
	anyBytes bool
}

func (c *MarkerCounter) Write(p []byte) (int, error) {
	rest := p
	for len(rest) > 0 {
		if !c.midLine && rest[0] == Marker {
			c.Records++
		}
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			c.midLine = true
			break
		}
		c.midLine = false
		rest = rest[nl+1:]
	}
	if len(p) > 0 {
		c.anyBytes = true
	}
	return len(p), nil
}

// EndsWithNewline reports whether the stream so far is empty or ends in '\n'.
func (c *MarkerCounter) EndsWithNewline() bool { return !c.anyBytes || !c.midLine }

// Reset clears line state between files but keeps the running record count.
func (c *MarkerCounter) Reset() { c.midLine, c.anyBytes = false, false }

// CountRecords parses path with biogo's FASTA reader and returns the number
// of records. Gzip input is accepted.
func CountRecords(path string) (int, error) {
	rc, err := openReader(path)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	sc := seqio.NewScanner(fasta.NewReader(rc, linear.NewSeq("", nil, alphabet.DNAredundant)))
	n := 0
	for sc.Next() {
		n++
	}
	if err := sc.Error(); err != nil {
		return n, fmt.Errorf("fasta %s: %w", path, err)
	}
	return n, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g gzipFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// openReader opens path, transparently decompressing gzip (magic 1F 8B).
func openReader(path string) (io.ReadCloser, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(fh)
	if sig, _ := br.Peek(2); len(sig) == 2 && sig[0] == 0x1f && sig[1] == 0x8b {
		gr, err := gzip.NewReader(br)
		if err != nil {
			_ = fh.Close()
			return nil, err
		}
		return gzipFile{Reader: gr, f: fh}, nil
	}
	return struct {
		io.Reader
		io.Closer
	}{br, fh}, nil
}
