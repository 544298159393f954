package image

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/distribution/reference"

	pberrors "pbinstall/internal/errors"
	"pbinstall/internal/ui"
	"pbinstall/pkg/installconfig"
	"pbinstall/pkg/runtime"
)

// DockerManager installs the image into the local Docker image store.
type DockerManager struct {
	cfg      *installconfig.InstallConfig
	rt       runtime.ContainerRuntime
	console  *ui.Console
	progress io.Writer
}

func NewDockerManager(cfg *installconfig.InstallConfig, rt runtime.ContainerRuntime, console *ui.Console, progress io.Writer) *DockerManager {
	return &DockerManager{
		cfg:      cfg,
		rt:       rt,
		console:  console,
		progress: progress,
	}
}

// CheckNotInstalled refuses to continue when either the pulled or the
// canonical name is already present; the operator has to remove it by hand.
func (m *DockerManager) CheckNotInstalled(ctx context.Context) error {
	m.console.Println("Checking if image is already present")

	for _, name := range []string{m.cfg.QualifiedImage(), m.cfg.LocalImage()} {
		exists, err := m.rt.ImageExists(ctx, name)
		if err != nil {
			return pberrors.NewRuntimeError("Could not query local docker images", err.Error(),
				"Check that the Docker daemon is running", err)
		}
		if exists {
			return pberrors.NewPreconditionError(
				fmt.Sprintf("Docker image already present, please remove the docker image: %s and then try re-installation", name),
				"an image with the same name is already installed",
				fmt.Sprintf("Run\ndocker rmi %s\nto remove the image. Make sure you really want to do this.", name),
				nil,
			)
		}
	}
	return nil
}

// InstallImage pulls the qualified image, tags it under the canonical local
// name and drops the pulled name.
func (m *DockerManager) InstallImage(ctx context.Context) error {
	qualified := m.cfg.QualifiedImage()
	local := m.cfg.LocalImage()

	if _, err := reference.ParseNormalizedNamed(qualified); err != nil {
		return pberrors.NewConfigError(
			fmt.Sprintf("Invalid image reference %s", qualified),
			err.Error(),
			"Check the value passed to --release",
			err,
		)
	}

	var auth *runtime.RegistryAuth
	if m.cfg.NeedsLogin() {
		auth = &runtime.RegistryAuth{
			Username:      installconfig.PrivateUser,
			Password:      m.cfg.AccessToken,
			ServerAddress: installconfig.PrivateRegistry,
		}
		if err := m.rt.Login(ctx, *auth); err != nil {
			return pberrors.NewRuntimeError("Cannot contact Parabricks registry.", err.Error(),
				"Check the access token and network access to "+installconfig.PrivateRegistry, err)
		}
	}

	m.console.Println("\nDownloading image\n")
	if err := m.rt.PullImage(ctx, qualified, auth, m.progress); err != nil {
		return pberrors.NewRuntimeError("Cannot download Parabricks docker image.", err.Error(),
			"Check network access to "+m.cfg.RegistryHost(), err)
	}

	m.console.Println("\nInstalling image\n")
	if err := m.rt.TagImage(ctx, qualified, local); err != nil {
		return pberrors.NewRuntimeError("Could not build Parabricks image", err.Error(), "", err)
	}

	exists, err := m.rt.ImageExists(ctx, local)
	if err != nil || !exists {
		if err == nil {
			err = fmt.Errorf("image %s not found after tagging", local)
		}
		return pberrors.NewRuntimeError("Image did not install correctly", err.Error(), "", err)
	}

	if err := m.rt.RemoveImage(ctx, qualified); err != nil {
		return pberrors.NewRuntimeError("Removing base image was unsuccessful", err.Error(), "", err)
	}

	slog.Info("Docker image installed", "image", local, "source", qualified)
	m.console.PrintSuccess("Image Installation successful.\n")
	return nil
}

// RemoveImages removes every local parabricks/release image whose tag is not in keep.
func (m *DockerManager) RemoveImages(ctx context.Context, keep []string) error {
	tags, err := m.rt.ListImageTags(ctx, installconfig.LocalRepository)
	if err != nil {
		return pberrors.NewRuntimeError("Could not list installed images", err.Error(),
			"Check that the Docker daemon is running", err)
	}

	for _, tag := range tags {
		ref, err := ParseImageRef(tag)
		if err != nil {
			slog.Warn("Skipping unparsable image name", "image", tag, "error", err)
			continue
		}
		if ref.Repository != installconfig.LocalRepository || slices.Contains(keep, ref.Tag) {
			continue
		}

		m.console.Println("Removing older image: " + ref.String())
		if err := m.rt.RemoveImage(ctx, ref.String()); err != nil {
			return pberrors.NewRuntimeError("Could not uninstall all images", err.Error(), "", err)
		}
	}
	m.console.Println("")
	return nil
}
