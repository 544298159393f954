// Package scripts materializes the launcher scripts bundled inside the product
// image into the install directory.
package scripts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/docker/docker/pkg/archive"
	"github.com/google/uuid"
	cp "github.com/otiai10/copy"

	pberrors "pbinstall/internal/errors"
	"pbinstall/internal/image"
	"pbinstall/internal/probe"
	"pbinstall/internal/process"
	"pbinstall/internal/ui"
	"pbinstall/pkg/installconfig"
	"pbinstall/pkg/runtime"
)

const (
	// imageScriptDir is where the image keeps its script bundle.
	imageScriptDir = "/parabricks"

	containerPrefix = "pb_raw_"
	sandboxPrefix   = "pb_sb_"
)

// Installer copies the script bundle out of an installed image and merges it
// into the install directory.
type Installer struct {
	cfg          *installconfig.InstallConfig
	runtimeLabel string
	rt           runtime.ContainerRuntime
	exec         process.Executor
	console      *ui.Console
	log          io.Writer
}

// NewInstaller creates an Installer for the runtime label reported by the prober.
// rt may be nil for singularity runtimes.
func NewInstaller(cfg *installconfig.InstallConfig, runtimeLabel string, rt runtime.ContainerRuntime, exec process.Executor, console *ui.Console, log io.Writer) *Installer {
	if log == nil {
		log = io.Discard
	}
	return &Installer{
		cfg:          cfg,
		runtimeLabel: runtimeLabel,
		rt:           rt,
		exec:         exec,
		console:      console,
		log:          log,
	}
}

// Install extracts the scripts, creates the symlink when requested and checks
// that the installed launcher runs.
func (i *Installer) Install(ctx context.Context) error {
	i.console.Println("Copying Scripts\n")

	var err error
	if i.runtimeLabel == probe.RuntimeDocker {
		err = i.fetchFromContainer(ctx)
	} else {
		err = i.fetchFromSandbox(ctx)
	}
	if err != nil {
		return err
	}

	if err := i.unpack(); err != nil {
		return err
	}

	if i.cfg.Symlink {
		if err := CreateSymlink(i.Launcher(), i.cfg.SymlinkPath); err != nil {
			i.console.PrintWarning(err.Error())
		}
	}

	return i.exec.Run(ctx, process.Command{
		Name:       i.Launcher(),
		Args:       []string{"version"},
		Dir:        i.cfg.InstallDir(),
		ErrMessage: "Could not test version",
	})
}

// Launcher is the path of the installed pbrun script.
func (i *Installer) Launcher() string {
	return filepath.Join(i.cfg.InstallDir(), "pbrun")
}

// fetchFromContainer runs the image once so it writes its script bundle, then
// copies the bundle out of the stopped container.
func (i *Installer) fetchFromContainer(ctx context.Context) error {
	if i.rt == nil {
		return fmt.Errorf("docker runtime is not available")
	}

	name := containerPrefix + uuid.NewString()
	slog.Info("Starting throwaway container", "name", name, "image", i.cfg.LocalImage())

	defer func() {
		if err := i.rt.RemoveContainer(context.WithoutCancel(ctx), name); err != nil {
			slog.Warn("Failed to remove throwaway container", "name", name, "error", err)
		}
	}()

	if err := i.rt.RunContainer(ctx, runtime.RunOptions{
		Image:   i.cfg.LocalImage(),
		Command: []string{"version"},
		Name:    name,
		Output:  i.log,
	}); err != nil {
		return pberrors.NewRuntimeError("Could not initiate scripts copying", err.Error(), "", err)
	}

	src := imageScriptDir + "/" + i.cfg.ScriptArchive()
	content, err := i.rt.CopyFromContainer(ctx, name, src)
	if err != nil {
		return pberrors.NewRuntimeError("Could not properly download scripts", err.Error(), "", err)
	}
	defer content.Close()

	// The engine streams a tar holding the single requested file.
	if err := archive.Untar(content, i.cfg.InstallDir(), &archive.TarOptions{NoLchown: true}); err != nil {
		return pberrors.NewFileSystemError("Could not properly download scripts", err.Error(), "", err)
	}
	return nil
}

// fetchFromSandbox unpacks the image file into a sandbox directory and copies
// the bundle out of it.
func (i *Installer) fetchFromSandbox(ctx context.Context) error {
	imageFile := filepath.Join(i.cfg.InstallDir(), image.SingularityImageFile(i.cfg, probe.Protocol(i.runtimeLabel)))
	sandbox := SandboxDir(i.cfg.Release)

	defer func() {
		if err := os.RemoveAll(sandbox); err != nil {
			slog.Warn("Failed to remove sandbox", "path", sandbox, "error", err)
		}
	}()

	if err := i.exec.Run(ctx, process.Command{
		Name:       "singularity",
		Args:       []string{"build", "--sandbox", sandbox, imageFile},
		ErrMessage: "Could not initiate scripts copying",
	}); err != nil {
		return err
	}

	src := filepath.Join(sandbox, imageScriptDir, i.cfg.ScriptArchive())
	dst := filepath.Join(i.cfg.InstallDir(), i.cfg.ScriptArchive())
	if err := cp.Copy(src, dst); err != nil {
		return pberrors.NewFileSystemError("Copying from sandbox failed", err.Error(), "", err)
	}
	return nil
}

// SandboxDir is the scratch directory a singularity image is unpacked into.
func SandboxDir(release string) string {
	return filepath.Join(os.TempDir(), sandboxPrefix+release)
}

// unpack extracts the bundle into the install directory, merges its top-level
// directory into the install directory and removes both.
func (i *Installer) unpack() error {
	dir := i.cfg.InstallDir()
	bundle := filepath.Join(dir, i.cfg.ScriptArchive())
	staging := filepath.Join(dir, i.cfg.ScriptStagingDir())

	f, err := os.Open(bundle)
	if err != nil {
		return pberrors.NewFileSystemError("Could not properly untar release scripts", err.Error(), "", err)
	}
	err = archive.Untar(f, dir, &archive.TarOptions{NoLchown: true})
	f.Close()
	if err != nil {
		return pberrors.NewFileSystemError("Could not properly untar release scripts", err.Error(), "", err)
	}

	// Merges into the existing tree, overwriting files and keeping symlinks.
	if err := cp.Copy(staging, dir); err != nil {
		return pberrors.NewFileSystemError("Could not merge release scripts", err.Error(), "", err)
	}

	if err := os.Remove(bundle); err != nil {
		return pberrors.NewFileSystemError("Could not remove script archive", err.Error(), "", err)
	}
	if err := os.RemoveAll(staging); err != nil {
		return pberrors.NewFileSystemError("Could not remove script staging directory", err.Error(), "", err)
	}
	return nil
}
