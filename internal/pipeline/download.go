package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/cheggaaa/pb.v1"

	"blastdbbuilder/internal/download"
	"blastdbbuilder/internal/group"
	"blastdbbuilder/internal/manifest"
	"blastdbbuilder/internal/summary"
)

// Manifest makes the group's manifest available locally and parses it.
// An existing copy is reused when the configuration asks for it.
func (p *Pipeline) Manifest(ctx context.Context, g group.Group) ([]manifest.Entry, []error, error) {
	path := p.Cfg.ManifestPath(g.Name)
	log := p.Log.WithField("group", g.Name)
	if _, err := os.Stat(path); err == nil && p.Cfg.ReuseManifest {
		log.Infof("reusing manifest %s", path)
	} else {
		log.Infof("fetching manifest %s", g.ManifestURL)
		n, err := p.Fetcher.Fetch(ctx, g.ManifestURL, path)
		if err != nil {
			return nil, nil, err
		}
		log.Debugf("manifest saved (%d bytes)", n)
	}
	return manifest.ParseFile(path, p.Cfg.Layout)
}

// DownloadGroup fetches every eligible accession of g into its directory.
// Task failures are counted in run and never abort the group; only an
// unusable manifest, an unwritable directory or cancellation do.
func (p *Pipeline) DownloadGroup(ctx context.Context, g group.Group, run *summary.Run) error {
	dir := p.Cfg.GroupDir(g.Name)
	log := p.Log.WithField("group", g.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create group dir: %w", err)
	}
	if n, err := download.Sweep(dir); err != nil {
		log.Warnf("sweep stale scratch: %v", err)
	} else if n > 0 {
		log.Infof("removed %d leftover scratch entries", n)
	}

	entries, bad, err := p.Manifest(ctx, g)
	if err != nil {
		return err
	}
	for _, b := range bad {
		log.Debugf("skipping manifest row: %v", b)
	}
	if len(bad) > 0 {
		log.Warnf("%d malformed manifest rows skipped", len(bad))
	}

	eligible := manifest.Filter(entries, g)
	p.note(run.BeginGroup(g.Name, len(eligible), len(bad)))
	log.Infof("%d of %d manifest entries selected (%s)", len(eligible), len(entries), g.Include)

	batches := manifest.Partition(eligible, p.Cfg.BatchSize)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		label := fmt.Sprintf("%s %d/%d ", g.Name, i+1, len(batches))
		if err := p.runBatch(ctx, g.Name, dir, label, batch, run); err != nil {
			return err
		}
		p.note(run.BatchDone(g.Name, i+1, len(batches)))
		log.WithField("batch", fmt.Sprintf("%d/%d", i+1, len(batches))).Info(run.Group(g.Name))
	}
	p.note(run.EndGroup(g.Name))
	return nil
}

// runBatch executes one batch with at most Cfg.Jobs tasks in flight and
// returns only when every started task has finished.
func (p *Pipeline) runBatch(ctx context.Context, name, dir, label string, batch manifest.Batch, run *summary.Run) error {
	bar := p.bar(len(batch), label)
	defer bar.finish()

	jobs := p.Cfg.Jobs
	if jobs < 1 {
		jobs = 1
	}
	var eg errgroup.Group
	eg.SetLimit(jobs)
	for _, e := range batch {
		if ctx.Err() != nil {
			break
		}
		e := e
		eg.Go(func() error {
			defer bar.increment()
			res := p.Downloader.Fetch(ctx, e, dir)
			if res.Outcome == summary.Failed && ctx.Err() != nil {
				return nil
			}
			p.note(run.Record(name, e.Accession, res.Outcome, res.Err))
			fields := logrus.Fields{"group": name, "accession": e.Accession}
			switch res.Outcome {
			case summary.Failed:
				p.Log.WithFields(fields).Warnf("failed: %v", res.Err)
			case summary.Skipped:
				p.Log.WithFields(fields).Info("already present")
			default:
				p.Log.WithFields(fields).Infof("downloaded %d file(s)", len(res.Files))
			}
			return nil
		})
	}
	_ = eg.Wait()
	return ctx.Err()
}

// progress wraps an optional pb bar.
type progress struct{ bar *pb.ProgressBar }

func (p *Pipeline) bar(total int, label string) progress {
	if p.Progress == nil || total == 0 {
		return progress{}
	}
	b := pb.New(total).Prefix(label)
	b.Output = p.Progress
	b.ShowSpeed = false
	b.Start()
	return progress{bar: b}
}

func (p progress) increment() {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p progress) finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
