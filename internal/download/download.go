// internal/download/download.go
package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"blastdbbuilder/internal/fasta"
	"blastdbbuilder/internal/manifest"
	"blastdbbuilder/internal/summary"
	"blastdbbuilder/internal/tool"
)

// ScratchPrefix names per-task scratch directories inside a group directory.
const ScratchPrefix = ".tmp-"

// Retriever fetches the archive of one accession.
type Retriever interface {
	Retrieve(ctx context.Context, accession, archive string) (tool.Result, error)
}

// Result is the outcome of one task.
type Result struct {
	Accession string
	Outcome   summary.Outcome
	Files     []string // sequence files now present for the accession
	Err       error
}

// Downloader runs download tasks. It is safe for concurrent use; tasks for
// the same accession are serialised.
type Downloader struct {
	Retriever Retriever
	Unpacker  *Unpacker
	Retries   int           // extra attempts after a failed retrieval
	Backoff   time.Duration // wait before retry n is n*Backoff
	Log       logrus.FieldLogger

	locks keyedMutex
}

func (d *Downloader) log() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}

// Fetch makes sure groupDir holds the sequence files of e.
func (d *Downloader) Fetch(ctx context.Context, e manifest.Entry, groupDir string) Result {
	acc := e.Accession
	unlock := d.locks.lock(acc)
	defer unlock()

	if p, ok, err := fasta.Find(groupDir, acc); err != nil {
		return Result{Accession: acc, Outcome: summary.Failed, Err: err}
	} else if ok {
		return Result{Accession: acc, Outcome: summary.Skipped, Files: []string{p}}
	}

	scratch := filepath.Join(groupDir, ScratchPrefix+safeName(acc))
	_ = os.RemoveAll(scratch)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return Result{Accession: acc, Outcome: summary.Failed, Err: err}
	}
	defer os.RemoveAll(scratch)

	archive := filepath.Join(scratch, safeName(acc)+".zip")
	if err := d.retrieve(ctx, acc, archive); err != nil {
		return Result{Accession: acc, Outcome: summary.Failed, Err: err}
	}

	files, err := d.Unpacker.Unpack(ctx, archive, scratch, groupDir, acc)
	if err != nil {
		return Result{Accession: acc, Outcome: summary.Failed, Err: err}
	}
	return Result{Accession: acc, Outcome: summary.Downloaded, Files: files}
}

func (d *Downloader) retrieve(ctx context.Context, acc, archive string) error {
	var err error
	for attempt := 0; attempt <= d.Retries; attempt++ {
		if attempt > 0 {
			d.log().WithFields(logrus.Fields{"accession": acc, "attempt": attempt + 1}).
				Debugf("retrying after: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * d.Backoff):
			}
			_ = os.Remove(archive)
		}
		if _, err = d.Retriever.Retrieve(ctx, acc, archive); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

// Sweep removes scratch directories and partial files a crashed run left in
// groupDir. It returns how many entries were removed.
func Sweep(groupDir string) (int, error) {
	ents, err := os.ReadDir(groupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	var errList []error
	for _, ent := range ents {
		name := ent.Name()
		stale := (ent.IsDir() && strings.HasPrefix(name, ScratchPrefix)) ||
			(!ent.IsDir() && (strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".zip")))
		if !stale {
			continue
		}
		if err := os.RemoveAll(filepath.Join(groupDir, name)); err != nil {
			errList = append(errList, err)
			continue
		}
		n++
	}
	return n, errors.Join(errList...)
}

func safeName(acc string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\':
			return '_'
		}
		return r
	}, acc)
}

// keyedMutex hands out one lock per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
