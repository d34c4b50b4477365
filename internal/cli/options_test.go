// internal/cli/options_test.go
package cli

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"blastdbbuilder/internal/config"
	"blastdbbuilder/internal/errs"
)

func mustParse(t *testing.T, args ...string) (*Options, *pflag.FlagSet) {
	t.Helper()
	var o Options
	fs := NewFlagSet("test")
	AddGlobalFlags(fs, &o)
	AddStageFlags(fs, &o)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse err: %v", err)
	}
	return &o, fs
}

func TestStageFlags(t *testing.T) {
	o, fs := mustParse(t, "--virus", "--archaea", "--concat", "--build")
	if got := strings.Join(o.Groups(fs.Args()...), ","); got != "archaea,virus" {
		t.Errorf("groups %q", got)
	}
	if !o.Concat || !o.Build || o.Verify {
		t.Errorf("bad stage parse %+v", o)
	}
}

func TestGroupsMergesPositionals(t *testing.T) {
	o, _ := mustParse(t, "--plants")
	got := strings.Join(o.Groups("Bacteria", "plants", "mygroup", " "), ",")
	if got != "bacteria,plants,mygroup" {
		t.Errorf("groups %q", got)
	}
}

func TestBind(t *testing.T) {
	var o Options
	fs := NewFlagSet("test")
	AddGlobalFlags(fs, &o)
	if err := fs.Parse([]string{"-j", "4", "--offline", "--backoff", "1s", "--root", t.TempDir()}); err != nil {
		t.Fatal(err)
	}
	v := config.New()
	if err := Bind(v, fs); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(v, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Jobs != 4 || !cfg.ReuseManifest || cfg.Backoff != time.Second {
		t.Errorf("cfg %s reuse=%v backoff=%s", cfg, cfg.ReuseManifest, cfg.Backoff)
	}
	if cfg.Retries != 2 || !cfg.ParseSeqIDs {
		t.Errorf("unset flags should keep defaults: %s", cfg)
	}
}

func TestErrorQuietVerbose(t *testing.T) {
	o, _ := mustParse(t, "-q", "-v")
	if err := o.Validate(); !errors.Is(err, errs.Config) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestErrorUnknownFlag(t *testing.T) {
	var o Options
	fs := NewFlagSet("test")
	AddGlobalFlags(fs, &o)
	if err := fs.Parse([]string{"--bogus"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}
