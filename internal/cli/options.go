// internal/cli/options.go
package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"blastdbbuilder/internal/config"
	"blastdbbuilder/internal/errs"
	"blastdbbuilder/internal/group"
)

// Options holds the flags that steer the command itself. Flags that map to
// configuration keys live in viper instead, see Bind.
type Options struct {
	ConfigFile string
	Quiet      bool
	Verbose    bool
	NoProgress bool
	Verify     bool

	// Stage selection (root command only)
	Concat bool
	Build  bool
	groups map[string]*bool
}

// flagKeys maps flag names to the configuration keys they override.
var flagKeys = []struct{ flag, key string }{
	{"root", config.KeyRoot},
	{"batch-size", config.KeyBatchSize},
	{"jobs", config.KeyJobs},
	{"retries", config.KeyRetries},
	{"backoff", config.KeyBackoff},
	{"retrieve-timeout", config.KeyTORetrieve},
	{"extract-timeout", config.KeyTOExtract},
	{"index-timeout", config.KeyTOIndex},
	{"container", config.KeyRuntime},
	{"sif-dir", config.KeySIFDir},
	{"parse-seqids", config.KeyParseSeqIDs},
	{"offline", config.KeyReuseManifest},
}

// AddGlobalFlags registers the flags shared by every command. Defaults are
// taken from the built-in configuration so help output shows real values.
func AddGlobalFlags(fs *pflag.FlagSet, o *Options) {
	d := viper.New()
	config.SetDefaults(d)

	fs.StringVarP(&o.ConfigFile, "config", "c", "", "config file (default <root>/"+config.Name+".{yaml,toml,json})")
	fs.StringP("root", "d", d.GetString(config.KeyRoot), "project root holding db/, the combined FASTA and the database")
	fs.Int("batch-size", d.GetInt(config.KeyBatchSize), "accessions per batch")
	fs.IntP("jobs", "j", d.GetInt(config.KeyJobs), "concurrent downloads within a batch")
	fs.Int("retries", d.GetInt(config.KeyRetries), "extra retrieval attempts per accession")
	fs.Duration("backoff", d.GetDuration(config.KeyBackoff), "wait before retry n is n*backoff")
	fs.Duration("retrieve-timeout", d.GetDuration(config.KeyTORetrieve), "limit for one retrieval")
	fs.Duration("extract-timeout", d.GetDuration(config.KeyTOExtract), "limit for one extraction")
	fs.Duration("index-timeout", d.GetDuration(config.KeyTOIndex), "limit for building the database")
	fs.String("container", d.GetString(config.KeyRuntime), "run tools in docker|podman|singularity|apptainer")
	fs.String("sif-dir", d.GetString(config.KeySIFDir), "image cache for singularity/apptainer (default <root>/containers)")
	fs.Bool("parse-seqids", d.GetBool(config.KeyParseSeqIDs), "pass -parse_seqids -hash_index to the indexer")
	fs.Bool("offline", d.GetBool(config.KeyReuseManifest), "reuse manifests already on disk instead of fetching them")

	fs.BoolVarP(&o.Quiet, "quiet", "q", false, "only warnings and errors")
	fs.BoolVarP(&o.Verbose, "verbose", "v", false, "debug logging, including every tool invocation")
	fs.BoolVar(&o.NoProgress, "no-progress", false, "disable progress bars")
}

// AddStageFlags registers the composable stage selectors of the root command.
func AddStageFlags(fs *pflag.FlagSet, o *Options) {
	o.groups = make(map[string]*bool, len(group.Names))
	for _, name := range group.Names {
		o.groups[name] = fs.Bool(name, false, "download the "+name+" group")
	}
	fs.BoolVar(&o.Concat, "concat", false, "concatenate downloaded genomes into one FASTA file")
	fs.BoolVar(&o.Build, "build", false, "build a nucleotide BLAST database from the combined file")
	AddVerifyFlag(fs, o)
}

// AddVerifyFlag registers --verify on commands that concatenate.
func AddVerifyFlag(fs *pflag.FlagSet, o *Options) {
	fs.BoolVar(&o.Verify, "verify", false, "re-parse the combined file and check its record count")
}

// Bind makes the flags registered by AddGlobalFlags override the matching
// configuration keys when set.
func Bind(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", fk.flag, err)
		}
	}
	return nil
}

// Groups returns the groups selected by flags plus names, lower-cased,
// de-duplicated and in canonical order.
func (o *Options) Groups(names ...string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(n string) {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	flagged := make([]string, 0, len(o.groups))
	for name, on := range o.groups {
		if *on {
			flagged = append(flagged, name)
		}
	}
	sort.Strings(flagged)
	for _, n := range flagged {
		add(n)
	}
	for _, n := range names {
		add(n)
	}
	return group.Order(out)
}

// Validate rejects contradictory options.
func (o *Options) Validate() error {
	if o.Quiet && o.Verbose {
		return errs.Configf("--quiet conflicts with --verbose")
	}
	return nil
}
