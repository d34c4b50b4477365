// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"blastdbbuilder/internal/concat"
	"blastdbbuilder/internal/config"
	"blastdbbuilder/internal/download"
	"blastdbbuilder/internal/errs"
	"blastdbbuilder/internal/group"
	"blastdbbuilder/internal/index"
	"blastdbbuilder/internal/manifest"
	"blastdbbuilder/internal/summary"
	"blastdbbuilder/internal/tool"
)

// Stage names as written to the summary log.
const (
	StageDownload = "download"
	StageConcat   = "concat"
	StageBuild    = "build"
)

// Plan selects what one invocation does.
type Plan struct {
	Groups []string // groups to download, any order
	Concat bool
	Build  bool
	Verify bool // re-parse the combined file after concatenation
}

// Stages lists the plan's stages in execution order.
func (p Plan) Stages() []string {
	var out []string
	if len(p.Groups) > 0 {
		out = append(out, StageDownload)
	}
	if p.Concat {
		out = append(out, StageConcat)
	}
	if p.Build {
		out = append(out, StageBuild)
	}
	return out
}

// Empty reports whether the plan does nothing.
func (p Plan) Empty() bool { return len(p.Stages()) == 0 }

// ManifestFetcher downloads a manifest to a local path.
type ManifestFetcher interface {
	Fetch(ctx context.Context, url, dest string) (int64, error)
}

// Pipeline wires the stages to their collaborators.
type Pipeline struct {
	Cfg        config.Config
	Fetcher    ManifestFetcher
	Downloader *download.Downloader
	Indexer    index.Indexer
	Log        logrus.FieldLogger
	Progress   io.Writer // per-batch progress bars; nil disables them
}

// Runners builds the Runner of each external tool: on the host, or inside
// the configured container image.
func Runners(cfg config.Config, log logrus.FieldLogger) config.Tools[tool.Runner] {
	host := tool.Logged(tool.ExecRunner{}, log)
	pick := func(image string) tool.Runner {
		if cfg.Container.Runtime == "" || image == "" {
			return host
		}
		return &tool.Container{
			Host:    host,
			Runtime: cfg.Container.Runtime,
			Image:   image,
			SIFDir:  cfg.Container.SIFDir,
			Binds:   []string{cfg.Root},
		}
	}
	return config.Tools[tool.Runner]{
		Retrieve: pick(cfg.Container.Images.Retrieve),
		Extract:  pick(cfg.Container.Images.Extract),
		Index:    pick(cfg.Container.Images.Index),
	}
}

// Requirements lists the executables the plan needs on the host.
func Requirements(cfg config.Config, plan Plan) []string {
	bin := func(name, image string) string {
		if cfg.Container.Runtime != "" && image != "" {
			return cfg.Container.Runtime
		}
		return name
	}
	var out []string
	if len(plan.Groups) > 0 {
		out = append(out, bin(cfg.Bins.Retrieve, cfg.Container.Images.Retrieve), bin(cfg.Bins.Extract, cfg.Container.Images.Extract))
	}
	if plan.Build {
		out = append(out, bin(cfg.Bins.Index, cfg.Container.Images.Index))
	}
	return out
}

// New assembles a production pipeline from cfg.
func New(cfg config.Config, log logrus.FieldLogger, progress io.Writer) *Pipeline {
	r := Runners(cfg, log)
	return &Pipeline{
		Cfg:     cfg,
		Fetcher: manifest.NewFetcher(),
		Downloader: &download.Downloader{
			Retriever: tool.Retriever{Runner: r.Retrieve, Bin: cfg.Bins.Retrieve, Timeout: cfg.Timeouts.Retrieve},
			Unpacker:  &download.Unpacker{Extractor: tool.Extractor{Runner: r.Extract, Bin: cfg.Bins.Extract, Timeout: cfg.Timeouts.Extract}},
			Retries:   cfg.Retries,
			Backoff:   cfg.Backoff,
			Log:       log,
		},
		Indexer:  tool.Indexer{Runner: r.Index, Bin: cfg.Bins.Index, Timeout: cfg.Timeouts.Index, ParseSeqIDs: cfg.ParseSeqIDs},
		Log:      log,
		Progress: progress,
	}
}

// GroupsError reports groups that were aborted during the download stage.
type GroupsError struct {
	Groups []string
	Errs   []error
}

func (e *GroupsError) Error() string {
	return fmt.Sprintf("%d group(s) failed: %s", len(e.Groups), strings.Join(e.Groups, ", "))
}

func (e *GroupsError) Unwrap() []error { return e.Errs }

// Run executes plan. Per-accession failures never surface here; a failed
// group is reported after the remaining stages ran; concat and build errors
// stop the run immediately.
func (p *Pipeline) Run(ctx context.Context, plan Plan, run *summary.Run) (err error) {
	p.note(run.Start(plan.Stages()))
	defer func() { p.note(run.Finish(err)) }()

	var groupErr *GroupsError
	for _, name := range group.Order(plan.Groups) {
		g, err := p.Cfg.Group(name)
		if err != nil {
			return err
		}
		if err := p.DownloadGroup(ctx, g, run); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.WithField("group", g.Name).Errorf("group aborted: %v", err)
			p.note(run.GroupFailed(g.Name, err))
			if groupErr == nil {
				groupErr = &GroupsError{}
			}
			groupErr.Groups = append(groupErr.Groups, g.Name)
			groupErr.Errs = append(groupErr.Errs, err)
		}
	}

	if plan.Concat {
		if _, err := p.Concat(ctx, plan, run); err != nil {
			return err
		}
	}
	if plan.Build {
		if _, err := p.Build(ctx, run); err != nil {
			return err
		}
	}
	if groupErr != nil {
		return groupErr
	}
	return nil
}

// concatDirs picks the group directories to concatenate: the plan's groups,
// or every configured group when the plan downloads nothing.
func (p *Pipeline) concatDirs(plan Plan) []string {
	names := plan.Groups
	if len(names) == 0 {
		for n := range p.Cfg.Groups {
			names = append(names, n)
		}
	}
	var dirs []string
	for _, n := range group.Order(names) {
		dirs = append(dirs, p.Cfg.GroupDir(strings.ToLower(n)))
	}
	return dirs
}

// Concat merges the group directories into the combined file.
func (p *Pipeline) Concat(ctx context.Context, plan Plan, run *summary.Run) (concat.Result, error) {
	out := p.Cfg.CombinedPath()
	res, err := concat.Concatenate(ctx, p.concatDirs(plan), out)
	if err == nil && plan.Verify {
		err = concat.Verify(res.Path, res.Records)
	}
	if err != nil {
		if ctx.Err() == nil {
			p.note(run.Concatenated(summary.ConcatResult{Path: out, Err: err}))
		}
		return res, err
	}
	p.Log.WithFields(logrus.Fields{"files": res.Files, "records": res.Records}).Infof("concatenated into %s", res.Path)
	p.note(run.Concatenated(summary.ConcatResult{Path: res.Path, Files: res.Files, Records: res.Records}))
	return res, nil
}

// Build indexes the combined file.
func (p *Pipeline) Build(ctx context.Context, run *summary.Run) (string, error) {
	fa := p.Cfg.CombinedPath()
	p.Log.Infof("building BLAST database from %s", fa)
	prefix, res, err := index.Build(ctx, p.Indexer, fa)
	if err != nil {
		if ctx.Err() != nil {
			return prefix, err
		}
		if out := errs.Output(err); len(out) > 0 {
			p.Log.Errorf("indexer output:\n%s", strings.TrimRight(string(out), "\n"))
		}
		p.note(run.Indexed(summary.IndexResult{Prefix: prefix, Err: err}))
		return prefix, err
	}
	p.Log.WithField("took", res.Duration.Round(time.Second)).Infof("BLAST database built at %s", prefix)
	p.note(run.Indexed(summary.IndexResult{Prefix: prefix}))
	return prefix, nil
}

// note reports a failure to persist a summary line without stopping the run.
func (p *Pipeline) note(err error) {
	if err != nil {
		p.Log.Warnf("summary log: %v", err)
	}
}
