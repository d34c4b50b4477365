package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"blastdbbuilder/internal/cmdutil"
	"blastdbbuilder/internal/errs"
	"blastdbbuilder/internal/manifest"
	"blastdbbuilder/internal/summary"
	"blastdbbuilder/internal/tool"
)

// fakeRetriever writes a placeholder archive unless the accession is in fail.
type fakeRetriever struct {
	calls atomic.Int32
	fail  map[string]bool
}

func (f *fakeRetriever) Retrieve(_ context.Context, acc, archive string) (tool.Result, error) {
	f.calls.Add(1)
	if f.fail[acc] {
		return tool.Result{ExitCode: 1}, errs.Newf(errs.Network, "retrieve", acc, "exit 1")
	}
	return tool.Result{}, os.WriteFile(archive, []byte("PK"), 0o644)
}

// fakeExtractor lays out ncbi_dataset/data/<acc>/ with the scripted files.
type fakeExtractor struct {
	files   map[string]map[string]string // accession -> name -> content
	corrupt map[string]bool
}

func (f *fakeExtractor) Extract(_ context.Context, archive, dest string) (tool.Result, error) {
	acc := strings.TrimSuffix(filepath.Base(archive), ".zip")
	// Leave something behind in every case to prove cleanup.
	if err := os.MkdirAll(filepath.Join(dest, "ncbi_dataset"), 0o755); err != nil {
		return tool.Result{}, err
	}
	_ = os.WriteFile(filepath.Join(dest, "README.md"), []byte("x"), 0o644)
	if f.corrupt[acc] {
		return tool.Result{ExitCode: 9}, errs.Newf(errs.Extraction, "extract", archive, "bad zip")
	}
	dir := DataPath(dest, acc)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return tool.Result{}, err
	}
	for name, content := range f.files[acc] {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return tool.Result{}, err
		}
	}
	_ = os.WriteFile(filepath.Join(dir, "sequence_report.jsonl"), []byte("{}"), 0o644)
	return tool.Result{}, nil
}

func newDownloader(r *fakeRetriever, x *fakeExtractor) *Downloader {
	return &Downloader{Retriever: r, Unpacker: &Unpacker{Extractor: x}, Log: cmdutil.Discard()}
}

func entry(acc string) manifest.Entry { return manifest.Entry{Accession: acc} }

// assertFlat checks the group directory holds only sequence files.
func assertFlat(t *testing.T, dir string) []string {
	t.Helper()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range ents {
		if e.IsDir() {
			t.Fatalf("nested directory left behind: %s", e.Name())
		}
		if strings.HasSuffix(e.Name(), ".zip") || strings.HasSuffix(e.Name(), ".part") {
			t.Fatalf("archive/partial left behind: %s", e.Name())
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestFetchDownloadsAndFlattens(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRetriever{}
	x := &fakeExtractor{files: map[string]map[string]string{
		"GCF_1.1": {"GCF_1.1_ASM1_genomic.fna": ">c1\nACGT\n"},
	}}
	res := newDownloader(r, x).Fetch(context.Background(), entry("GCF_1.1"), dir)
	if res.Outcome != summary.Downloaded || res.Err != nil {
		t.Fatalf("res=%+v", res)
	}
	names := assertFlat(t, dir)
	if len(names) != 1 || names[0] != "GCF_1.1_ASM1_genomic.fna" {
		t.Fatalf("group dir = %v", names)
	}
	if len(res.Files) != 1 || res.Files[0] != filepath.Join(dir, names[0]) {
		t.Fatalf("files = %v", res.Files)
	}
}

func TestFetchIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "GCF_1.1_ASM1_genomic.fna")
	content := []byte(">c1\nACGT\n")
	if err := os.WriteFile(existing, content, 0o644); err != nil {
		t.Fatal(err)
	}
	r := &fakeRetriever{}
	res := newDownloader(r, &fakeExtractor{}).Fetch(context.Background(), entry("GCF_1.1"), dir)
	if res.Outcome != summary.Skipped {
		t.Fatalf("want skipped, got %+v", res)
	}
	if r.calls.Load() != 0 {
		t.Fatalf("retriever called %d times for a present accession", r.calls.Load())
	}
	got, _ := os.ReadFile(existing)
	if string(got) != string(content) {
		t.Fatal("existing file modified")
	}
}

func TestFetchRenamesForeignNames(t *testing.T) {
	dir := t.TempDir()
	x := &fakeExtractor{files: map[string]map[string]string{
		"GCA_9.1": {"chr1.fa": ">1\nA\n", "chr2.fasta": ">2\nC\n"},
	}}
	res := newDownloader(&fakeRetriever{}, x).Fetch(context.Background(), entry("GCA_9.1"), dir)
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	names := assertFlat(t, dir)
	if len(names) != 2 || names[0] != "GCA_9.1_chr1.fa" || names[1] != "GCA_9.1_chr2.fasta" {
		t.Fatalf("names=%v", names)
	}
}

func TestFetchFailuresKeepDirectoryFlat(t *testing.T) {
	cases := []struct {
		name string
		r    *fakeRetriever
		x    *fakeExtractor
		kind error
	}{
		{"retrieval", &fakeRetriever{fail: map[string]bool{"A": true}}, &fakeExtractor{}, errs.Network},
		{"corrupt", &fakeRetriever{}, &fakeExtractor{corrupt: map[string]bool{"A": true}}, errs.Extraction},
		{"empty", &fakeRetriever{}, &fakeExtractor{files: map[string]map[string]string{"A": {"notes.txt": "x"}}}, errs.Extraction},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dir := t.TempDir()
			res := newDownloader(c.r, c.x).Fetch(context.Background(), entry("A"), dir)
			if res.Outcome != summary.Failed || !errors.Is(res.Err, c.kind) {
				t.Fatalf("res=%+v", res)
			}
			if names := assertFlat(t, dir); len(names) != 0 {
				t.Fatalf("unexpected files %v", names)
			}
		})
	}
}

func TestFetchRetries(t *testing.T) {
	r := &fakeRetriever{fail: map[string]bool{"A": true}}
	d := newDownloader(r, &fakeExtractor{})
	d.Retries = 2
	res := d.Fetch(context.Background(), entry("A"), t.TempDir())
	if res.Outcome != summary.Failed {
		t.Fatalf("res=%+v", res)
	}
	if got := r.calls.Load(); got != 3 {
		t.Fatalf("calls=%d want 3", got)
	}
}

func TestConcurrentFetchSameAccessionRetrievesOnce(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRetriever{}
	x := &fakeExtractor{files: map[string]map[string]string{"A": {"A_g.fna": ">a\nA\n"}}}
	d := newDownloader(r, x)

	var wg sync.WaitGroup
	outcomes := make([]summary.Outcome, 8)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = d.Fetch(context.Background(), entry("A"), dir).Outcome
		}(i)
	}
	wg.Wait()
	if r.calls.Load() != 1 {
		t.Fatalf("retrieved %d times", r.calls.Load())
	}
	downloaded := 0
	for _, o := range outcomes {
		if o == summary.Downloaded {
			downloaded++
		}
	}
	if downloaded != 1 {
		t.Fatalf("outcomes=%v", outcomes)
	}
	assertFlat(t, dir)
}

func TestSweepRemovesCrashLeftovers(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "A_g.fna")
	_ = os.WriteFile(keep, []byte(">a\n"), 0o644)
	_ = os.MkdirAll(filepath.Join(dir, ScratchPrefix+"B", "extract", "ncbi_dataset"), 0o755)
	_ = os.WriteFile(filepath.Join(dir, "C_g.fna.part"), []byte(">c"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "D.zip"), []byte("PK"), 0o644)

	n, err := Sweep(dir)
	if err != nil || n != 3 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if names := assertFlat(t, dir); len(names) != 1 || names[0] != "A_g.fna" {
		t.Fatalf("left %v", names)
	}
	if n, err := Sweep(filepath.Join(dir, "missing")); n != 0 || err != nil {
		t.Fatalf("missing dir: %d %v", n, err)
	}
}

func TestKeyedMutexForgetsKeys(t *testing.T) {
	var k keyedMutex
	unlock := k.lock("x")
	unlock()
	if len(k.locks) != 0 {
		t.Fatalf("locks not released: %v", k.locks)
	}
}

func TestFetchRollsBackPartialMove(t *testing.T) {
	dir := t.TempDir()
	// A directory occupying the second file's name makes that move fail.
	if err := os.Mkdir(filepath.Join(dir, "A_2.fna"), 0o755); err != nil {
		t.Fatal(err)
	}
	x := &fakeExtractor{files: map[string]map[string]string{
		"A": {"A_1.fna": ">a1\nA\n", "A_2.fna": ">a2\nC\n"},
	}}
	res := newDownloader(&fakeRetriever{}, x).Fetch(context.Background(), entry("A"), dir)
	if res.Outcome != summary.Failed || !errors.Is(res.Err, errs.Extraction) {
		t.Fatalf("res=%+v", res)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range ents {
		if e.Name() == "A_2.fna" && e.IsDir() {
			continue
		}
		t.Fatalf("left behind after rollback: %s", e.Name())
	}
}
