package image

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	pberrors "pbinstall/internal/errors"
	"pbinstall/internal/probe"
	"pbinstall/internal/process"
	"pbinstall/internal/ui"
	"pbinstall/pkg/installconfig"
)

const (
	definitionFile = "pb.def"
	overlayFile    = "pb-overlay.img"
	overlaySizeMB  = 256
)

// SingularityImageFile is the image file name written into the install directory.
func SingularityImageFile(cfg *installconfig.InstallConfig, protocol probe.Protocol) string {
	ext := ".sif"
	if protocol == probe.ProtocolV2 {
		ext = ".simg"
	}
	return "parabricks-release-" + cfg.Release + ext
}

// SingularityManager builds image files in the install directory.
type SingularityManager struct {
	cfg      *installconfig.InstallConfig
	protocol probe.Protocol
	exec     process.Executor
	console  *ui.Console
}

func NewSingularityManager(cfg *installconfig.InstallConfig, protocol probe.Protocol, exec process.Executor, console *ui.Console) *SingularityManager {
	return &SingularityManager{
		cfg:      cfg,
		protocol: protocol,
		exec:     exec,
		console:  console,
	}
}

// CheckNotInstalled has nothing to check: singularity images are files in the
// install directory, which must be empty before installing.
func (m *SingularityManager) CheckNotInstalled(ctx context.Context) error {
	return nil
}

// RemoveImages has nothing to do: the image files go with the install directory.
func (m *SingularityManager) RemoveImages(ctx context.Context, keep []string) error {
	return nil
}

func (m *SingularityManager) InstallImage(ctx context.Context) error {
	if m.protocol == probe.ProtocolV2 {
		return m.installV2(ctx)
	}
	return m.installV3(ctx)
}

// installV3 builds a SIF from a definition file pointing at the registry.
func (m *SingularityManager) installV3(ctx context.Context) error {
	dir := m.cfg.InstallDir()
	defPath := filepath.Join(dir, definitionFile)

	if err := os.WriteFile(defPath, []byte(m.definition()), 0o644); err != nil {
		return pberrors.NewFileSystemError("Could not write singularity definition file", err.Error(),
			"Check write permissions in "+dir, err)
	}
	defer func() {
		if err := os.Remove(defPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove definition file", "path", defPath, "error", err)
		}
	}()

	m.console.Println("\nDownloading image\n")
	if err := m.exec.Run(ctx, process.Command{
		Name:       "singularity",
		Args:       []string{"build", SingularityImageFile(m.cfg, m.protocol), definitionFile},
		Dir:        dir,
		OnScreen:   true,
		Env:        m.credentialsEnv(),
		ErrMessage: "Could not download singularity image",
	}); err != nil {
		return err
	}

	if m.cfg.Overlay {
		if err := m.createExt3Overlay(ctx); err != nil {
			return err
		}
	}

	m.console.PrintSuccess("Image Installation successful.\n")
	return nil
}

func (m *SingularityManager) definition() string {
	return fmt.Sprintf(`Bootstrap: docker
From: %s:%s
Registry: %s

%%post
  chmod 777 /parabricks
`, m.cfg.RegistryPath(), m.cfg.Release, m.cfg.RegistryHost())
}

// createExt3Overlay provisions a writable overlay for the SIF by hand, since
// 3.x no longer has image.create.
func (m *SingularityManager) createExt3Overlay(ctx context.Context) error {
	dir := m.cfg.InstallDir()

	if err := m.exec.Run(ctx, process.Command{
		Name:       "dd",
		Args:       []string{"if=/dev/zero", "of=" + overlayFile, "bs=1M", fmt.Sprintf("count=%d", overlaySizeMB)},
		Dir:        dir,
		ErrMessage: "Could not create overlay file",
	}); err != nil {
		return err
	}

	if err := m.exec.Run(ctx, process.Command{
		Name:       "mkfs.ext3",
		Args:       []string{"-F", overlayFile},
		Dir:        dir,
		ErrMessage: "Could not create ext3 overlay filesystem",
	}); err != nil {
		return err
	}

	return m.fixOverlayPermissions()
}

// installV2 pulls a flat image file and adds a writable overlay next to it.
func (m *SingularityManager) installV2(ctx context.Context) error {
	dir := m.cfg.InstallDir()
	imageFile := SingularityImageFile(m.cfg, m.protocol)

	m.console.Println("\nDownloading image\n")
	if err := m.exec.Run(ctx, process.Command{
		Name:       "singularity",
		Args:       []string{"pull", "docker://" + m.cfg.QualifiedImage()},
		Dir:        dir,
		OnScreen:   true,
		Env:        m.credentialsEnv(),
		ErrMessage: "Could not download singularity image",
	}); err != nil {
		return err
	}

	pulled := filepath.Join(dir, m.pulledFileName())
	if err := os.Rename(pulled, filepath.Join(dir, imageFile)); err != nil {
		return pberrors.NewFileSystemError("Could not copy singularity image", err.Error(),
			"Check that the pull produced "+pulled, err)
	}

	m.console.Println("\nInstalling image\n")
	if err := m.exec.Run(ctx, process.Command{
		Name:       "singularity",
		Args:       []string{"image.create", overlayFile},
		Dir:        dir,
		OnScreen:   true,
		ErrMessage: "Could not build Parabricks image",
	}); err != nil {
		return err
	}

	if err := m.fixOverlayPermissions(); err != nil {
		return err
	}

	m.console.Println("Checking if image installed successfully\n")
	if err := m.exec.Run(ctx, process.Command{
		Name:       "singularity",
		Args:       []string{"inspect", imageFile},
		Dir:        dir,
		ErrMessage: "Image did not install correctly",
	}); err != nil {
		return err
	}

	m.console.PrintSuccess("Image Installation successful.\n")
	return nil
}

// pulledFileName is the name singularity 2.x gives a docker:// pull: the last
// path element of the repository, a dash, the tag.
func (m *SingularityManager) pulledFileName() string {
	return path.Base(m.cfg.RegistryPath()) + "-" + m.cfg.Release + ".simg"
}

func (m *SingularityManager) fixOverlayPermissions() error {
	overlay := filepath.Join(m.cfg.InstallDir(), overlayFile)
	if err := os.Chmod(overlay, 0o777); err != nil {
		return pberrors.NewFileSystemError("Could not fix permissions", err.Error(), "", err)
	}
	return nil
}

func (m *SingularityManager) credentialsEnv() []string {
	if !m.cfg.NeedsLogin() {
		return nil
	}
	return []string{
		"SINGULARITY_DOCKER_USERNAME=" + installconfig.PrivateUser,
		"SINGULARITY_DOCKER_PASSWORD=" + m.cfg.AccessToken,
	}
}
