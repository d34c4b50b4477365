// internal/tool/container.go
package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"blastdbbuilder/internal/errs"
)

// Supported container runtimes.
const (
	Docker      = "docker"
	Podman      = "podman"
	Singularity = "singularity"
	Apptainer   = "apptainer"
)

// ValidRuntime reports whether name is a supported runtime ("" means none).
func ValidRuntime(name string) bool {
	switch name {
	case "", Docker, Podman, Singularity, Apptainer:
		return true
	}
	return false
}

// Container runs commands inside Image through a container runtime. Binds are
// host directories mounted at the same path so tool arguments stay valid.
// The image is made available locally once, before the first command.
type Container struct {
	Host    Runner
	Runtime string
	Image   string
	SIFDir  string // singularity/apptainer image cache
	Binds   []string

	mu    sync.Mutex
	ready bool
}

func (c *Container) host() Runner {
	if c.Host == nil {
		return ExecRunner{}
	}
	return c.Host
}

func (c *Container) oci() bool { return c.Runtime == Docker || c.Runtime == Podman }

// SIFPath is where a singularity/apptainer build of Image is kept.
func (c *Container) SIFPath() string {
	name := strings.NewReplacer("/", "_", ":", "_", "@", "_").Replace(c.Image) + ".sif"
	return filepath.Join(c.SIFDir, name)
}

// EnsureImage pulls Image if it is not present locally. Later calls are no-ops
// once the image is known to exist.
func (c *Container) EnsureImage(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}
	if c.Image == "" {
		return errs.Configf("container runtime %q configured without an image", c.Runtime)
	}

	var pull Command
	if c.oci() {
		res, err := c.host().Run(ctx, Command{Name: c.Runtime, Args: []string{"image", "inspect", c.Image}})
		if err != nil {
			return errs.New(errs.Config, "inspect image", c.Image, err)
		}
		if res.OK() {
			c.ready = true
			return nil
		}
		pull = Command{Name: c.Runtime, Args: []string{"pull", c.Image}}
	} else {
		sif := c.SIFPath()
		if _, err := os.Stat(sif); err == nil {
			c.ready = true
			return nil
		}
		if err := os.MkdirAll(c.SIFDir, 0o755); err != nil {
			return fmt.Errorf("sif dir: %w", err)
		}
		pull = Command{Name: c.Runtime, Args: []string{"pull", sif, "docker://" + c.Image}}
	}

	res, err := c.host().Run(ctx, pull)
	if err != nil {
		return errs.New(errs.Config, "pull image", c.Image, err)
	}
	if !res.OK() {
		e := errs.Newf(errs.Config, "pull image", c.Image, "%s exited with status %d", c.Runtime, res.ExitCode)
		e.Output = res.Output()
		return e
	}
	c.ready = true
	return nil
}

// Wrap rewrites cmd into the runtime invocation that executes it in Image.
func (c *Container) Wrap(cmd Command) Command {
	var args []string
	if c.oci() {
		args = []string{"run", "--rm"}
		if uid, gid := os.Getuid(), os.Getgid(); uid >= 0 && gid >= 0 {
			args = append(args, "--user", fmt.Sprintf("%d:%d", uid, gid))
		}
		for _, b := range c.Binds {
			args = append(args, "-v", b+":"+b)
		}
		if cmd.Dir != "" {
			args = append(args, "-w", cmd.Dir)
		}
		args = append(args, c.Image, cmd.Name)
	} else {
		args = []string{"exec"}
		for _, b := range c.Binds {
			args = append(args, "--bind", b)
		}
		if cmd.Dir != "" {
			args = append(args, "--pwd", cmd.Dir)
		}
		args = append(args, c.SIFPath(), cmd.Name)
	}
	args = append(args, cmd.Args...)
	return Command{Name: c.Runtime, Args: args, Dir: cmd.Dir, Timeout: cmd.Timeout}
}

// Run implements Runner.
func (c *Container) Run(ctx context.Context, cmd Command) (Result, error) {
	if err := c.EnsureImage(ctx); err != nil {
		return Result{}, err
	}
	return c.host().Run(ctx, c.Wrap(cmd))
}
