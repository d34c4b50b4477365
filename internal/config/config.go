// Package config resolves the run configuration from, in rising precedence,
// built-in defaults, an optional blastdbbuilder.{yaml,toml,json} file, BLASTDBBUILDER_*
// environment variables and command-line flags bound by the caller.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"blastdbbuilder/internal/concat"
	"blastdbbuilder/internal/errs"
	"blastdbbuilder/internal/group"
	"blastdbbuilder/internal/manifest"
	"blastdbbuilder/internal/tool"
)

// Name is the config file base name searched in the project root.
const Name = "blastdbbuilder"

// EnvPrefix prefixes environment overrides, e.g. BLASTDBBUILDER_BATCH_SIZE.
const EnvPrefix = "BLASTDBBUILDER"

// Keys.
const (
	KeyRoot          = "root"
	KeyBatchSize     = "batch_size"
	KeyJobs          = "jobs"
	KeyRetries       = "retries"
	KeyBackoff       = "backoff"
	KeyToolRetrieve  = "tools.retrieve"
	KeyToolExtract   = "tools.extract"
	KeyToolIndex     = "tools.index"
	KeyTORetrieve    = "timeouts.retrieve"
	KeyTOExtract     = "timeouts.extract"
	KeyTOIndex       = "timeouts.index"
	KeyRuntime       = "container.runtime"
	KeySIFDir        = "container.sif_dir"
	KeyImageRetrieve = "container.images.retrieve"
	KeyImageExtract  = "container.images.extract"
	KeyImageIndex    = "container.images.index"
	KeyParseSeqIDs   = "index.parse_seqids"
	KeyReuseManifest = "manifest.reuse"
	KeyColAccession  = "manifest.columns.accession"
	KeyColOrganism   = "manifest.columns.organism"
	KeyColCategory   = "manifest.columns.category"
	KeyColPath       = "manifest.columns.path"
)

// Tools holds one value per external tool.
type Tools[T any] struct {
	Retrieve T
	Extract  T
	Index    T
}

// Container selects an optional runtime for the external tools. A tool whose
// image is empty runs on the host.
type Container struct {
	Runtime string
	SIFDir  string
	Images  Tools[string]
}

// Config is the resolved configuration of one run.
type Config struct {
	Root          string
	BatchSize     int
	Jobs          int
	Retries       int
	Backoff       time.Duration
	Bins          Tools[string]
	Timeouts      Tools[time.Duration]
	Container     Container
	ParseSeqIDs   bool
	ReuseManifest bool
	Layout        manifest.Layout
	Groups        map[string]group.Group
	File          string // config file actually read, if any
}

// SetDefaults installs the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyRoot, ".")
	v.SetDefault(KeyBatchSize, manifest.DefaultBatchSize)
	v.SetDefault(KeyJobs, 1)
	v.SetDefault(KeyRetries, 2)
	v.SetDefault(KeyBackoff, 5*time.Second)
	v.SetDefault(KeyToolRetrieve, tool.DefaultRetrieve)
	v.SetDefault(KeyToolExtract, tool.DefaultExtract)
	v.SetDefault(KeyToolIndex, tool.DefaultIndex)
	v.SetDefault(KeyTORetrieve, 30*time.Minute)
	v.SetDefault(KeyTOExtract, 10*time.Minute)
	v.SetDefault(KeyTOIndex, 24*time.Hour)
	v.SetDefault(KeyRuntime, "")
	v.SetDefault(KeySIFDir, "")
	v.SetDefault(KeyImageRetrieve, "staphb/ncbi-datasets:latest")
	v.SetDefault(KeyImageExtract, "")
	v.SetDefault(KeyImageIndex, "ncbi/blast:latest")
	v.SetDefault(KeyParseSeqIDs, true)
	v.SetDefault(KeyReuseManifest, false)
	v.SetDefault(KeyColAccession, manifest.NCBILayout.Accession)
	v.SetDefault(KeyColOrganism, manifest.NCBILayout.Organism)
	v.SetDefault(KeyColCategory, manifest.NCBILayout.Category)
	v.SetDefault(KeyColPath, manifest.NCBILayout.Path)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and resolves the configuration.
// configFile, when set, must exist; otherwise blastdbbuilder.* is looked up
// in the project root and its absence is not an error.
func Load(v *viper.Viper, configFile string) (Config, error) {
	root, err := filepath.Abs(v.GetString(KeyRoot))
	if err != nil {
		return Config{}, errs.Configf("project root: %v", err)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(Name)
		v.AddConfigPath(root)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, errs.Configf("read config: %v", err)
		}
	}
	// The file may relocate the root.
	if root, err = filepath.Abs(v.GetString(KeyRoot)); err != nil {
		return Config{}, errs.Configf("project root: %v", err)
	}

	cfg := Config{
		Root:      root,
		BatchSize: v.GetInt(KeyBatchSize),
		Jobs:      v.GetInt(KeyJobs),
		Retries:   v.GetInt(KeyRetries),
		Backoff:   v.GetDuration(KeyBackoff),
		Bins: Tools[string]{
			Retrieve: v.GetString(KeyToolRetrieve),
			Extract:  v.GetString(KeyToolExtract),
			Index:    v.GetString(KeyToolIndex),
		},
		Timeouts: Tools[time.Duration]{
			Retrieve: v.GetDuration(KeyTORetrieve),
			Extract:  v.GetDuration(KeyTOExtract),
			Index:    v.GetDuration(KeyTOIndex),
		},
		Container: Container{
			Runtime: strings.ToLower(strings.TrimSpace(v.GetString(KeyRuntime))),
			SIFDir:  v.GetString(KeySIFDir),
			Images: Tools[string]{
				Retrieve: v.GetString(KeyImageRetrieve),
				Extract:  v.GetString(KeyImageExtract),
				Index:    v.GetString(KeyImageIndex),
			},
		},
		ParseSeqIDs:   v.GetBool(KeyParseSeqIDs),
		ReuseManifest: v.GetBool(KeyReuseManifest),
		Layout: manifest.Layout{
			Accession: v.GetInt(KeyColAccession),
			Organism:  v.GetInt(KeyColOrganism),
			Category:  v.GetInt(KeyColCategory),
			Path:      v.GetInt(KeyColPath),
		},
		File: v.ConfigFileUsed(),
	}
	if cfg.Container.SIFDir == "" {
		cfg.Container.SIFDir = filepath.Join(root, "containers")
	}

	groups, err := loadGroups(v)
	if err != nil {
		return Config{}, err
	}
	cfg.Groups = groups
	return cfg, cfg.Validate()
}

// loadGroups overlays groups.<name>.{url,include} on the built-in table.
// Names not built in define additional groups and need a url.
func loadGroups(v *viper.Viper) (map[string]group.Group, error) {
	groups := group.Defaults()
	names := make([]string, 0)
	for name := range v.GetStringMap("groups") {
		names = append(names, strings.ToLower(name))
	}
	sort.Strings(names)
	for _, name := range names {
		g, known := groups[name]
		if !known {
			g = group.Group{Name: name, Include: group.All}
		}
		if url := v.GetString("groups." + name + ".url"); url != "" {
			g.ManifestURL = url
		}
		if inc := v.GetString("groups." + name + ".include"); inc != "" {
			parsed, err := group.ParseInclusion(inc)
			if err != nil {
				return nil, errs.Configf("groups.%s.include: %v", name, err)
			}
			g.Include = parsed
		}
		if g.ManifestURL == "" {
			return nil, errs.Configf("groups.%s.url is required", name)
		}
		groups[name] = g
	}
	return groups, nil
}

// Validate checks value ranges; violations are errs.Config errors.
func (c Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return errs.Configf("%s must be > 0 (got %d)", KeyBatchSize, c.BatchSize)
	case c.Jobs < 1:
		return errs.Configf("%s must be >= 1 (got %d)", KeyJobs, c.Jobs)
	case c.Retries < 0:
		return errs.Configf("%s must be >= 0 (got %d)", KeyRetries, c.Retries)
	case c.Backoff < 0:
		return errs.Configf("%s must be >= 0", KeyBackoff)
	case c.Timeouts.Retrieve < 0 || c.Timeouts.Extract < 0 || c.Timeouts.Index < 0:
		return errs.Configf("timeouts must be >= 0")
	case !tool.ValidRuntime(c.Container.Runtime):
		return errs.Configf("%s: unsupported runtime %q (docker|podman|singularity|apptainer)", KeyRuntime, c.Container.Runtime)
	}
	for _, col := range []int{c.Layout.Accession, c.Layout.Organism, c.Layout.Category, c.Layout.Path} {
		if col < 0 {
			return errs.Configf("manifest columns must be >= 0")
		}
	}
	return nil
}

// DBDir is where group directories and manifests live.
func (c Config) DBDir() string { return filepath.Join(c.Root, "db") }

// GroupDir is the flat sequence directory of a group.
func (c Config) GroupDir(name string) string { return filepath.Join(c.DBDir(), name) }

// ManifestPath is the local copy of a group's manifest.
func (c Config) ManifestPath(name string) string {
	return filepath.Join(c.DBDir(), ".manifests", name+"_assembly_summary.txt")
}

// CombinedPath is the concatenation output.
func (c Config) CombinedPath() string { return filepath.Join(c.Root, concat.FileName) }

// Group looks up a configured group.
func (c Config) Group(name string) (group.Group, error) {
	g, ok := c.Groups[strings.ToLower(name)]
	if !ok {
		known := make([]string, 0, len(c.Groups))
		for n := range c.Groups {
			known = append(known, n)
		}
		return group.Group{}, errs.Configf("unknown group %q (known: %s)", name, strings.Join(group.Order(known), ", "))
	}
	return g, nil
}

func (c Config) String() string {
	return fmt.Sprintf("root=%s batch_size=%d jobs=%d retries=%d runtime=%q", c.Root, c.BatchSize, c.Jobs, c.Retries, c.Container.Runtime)
}
