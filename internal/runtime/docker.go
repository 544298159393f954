package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"golang.org/x/term"

	"pbinstall/pkg/runtime"
)

// DockerRuntime implements the ContainerRuntime interface using Docker client.
type DockerRuntime struct {
	client *client.Client
}

// NewDockerRuntime creates a new DockerRuntime instance using client.FromEnv.
func NewDockerRuntime() (*DockerRuntime, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	return &DockerRuntime{
		client: dockerClient,
	}, nil
}

// Ping checks that the Docker daemon is reachable.
func (d *DockerRuntime) Ping(ctx context.Context) error {
	if _, err := d.client.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to Docker daemon: %w", err)
	}
	return nil
}

// ImageExists reports whether ref is present in the local image store.
func (d *DockerRuntime) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, _, err := d.client.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return true, nil
	}
	if errdefs.IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to inspect image %s: %w", ref, err)
}

// ListImageTags returns every repo:tag of the local images in repository.
func (d *DockerRuntime) ListImageTags(ctx context.Context, repository string) ([]string, error) {
	images, err := d.client.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", repository)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	var tags []string
	for _, summary := range images {
		tags = append(tags, summary.RepoTags...)
	}
	return tags, nil
}

// Login validates credentials against a registry.
func (d *DockerRuntime) Login(ctx context.Context, auth runtime.RegistryAuth) error {
	slog.Info("Logging in to registry", "registry", auth.ServerAddress, "user", auth.Username)

	_, err := d.client.RegistryLogin(ctx, registry.AuthConfig{
		Username:      auth.Username,
		Password:      auth.Password,
		ServerAddress: auth.ServerAddress,
	})
	if err != nil {
		return fmt.Errorf("failed to log in to %s: %w", auth.ServerAddress, err)
	}
	return nil
}

// PullImage pulls a Docker image and renders the engine's progress stream to progress.
func (d *DockerRuntime) PullImage(ctx context.Context, imageName string, auth *runtime.RegistryAuth, progress io.Writer) error {
	slog.Info("Pulling Docker image", "image", imageName)

	opts := image.PullOptions{}
	if auth != nil {
		encoded, err := registry.EncodeAuthConfig(registry.AuthConfig{
			Username:      auth.Username,
			Password:      auth.Password,
			ServerAddress: auth.ServerAddress,
		})
		if err != nil {
			return fmt.Errorf("failed to encode registry credentials: %w", err)
		}
		opts.RegistryAuth = encoded
	}

	reader, err := d.client.ImagePull(ctx, imageName, opts)
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageName, err)
	}
	defer reader.Close()

	if progress == nil {
		progress = io.Discard
	}
	fd, isTerm := terminalFd(progress)
	if err := jsonmessage.DisplayJSONMessagesStream(reader, progress, fd, isTerm, nil); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageName, err)
	}

	slog.Info("Successfully pulled Docker image", "image", imageName)
	return nil
}

// TagImage adds target as a name for source.
func (d *DockerRuntime) TagImage(ctx context.Context, source, target string) error {
	if err := d.client.ImageTag(ctx, source, target); err != nil {
		return fmt.Errorf("failed to tag %s as %s: %w", source, target, err)
	}
	return nil
}

// RemoveImage untags ref and deletes the image if nothing else references it.
func (d *DockerRuntime) RemoveImage(ctx context.Context, ref string) error {
	if _, err := d.client.ImageRemove(ctx, ref, image.RemoveOptions{}); err != nil {
		return fmt.Errorf("failed to remove image %s: %w", ref, err)
	}
	return nil
}

// RunContainer creates and starts a container and waits for it to exit.
func (d *DockerRuntime) RunContainer(ctx context.Context, opts runtime.RunOptions) error {
	slog.Info("Running container", "image", opts.Image, "command", opts.Command, "name", opts.Name)

	containerConfig := &container.Config{
		Image: opts.Image,
		Cmd:   opts.Command,
	}

	hostConfig := &container.HostConfig{}
	if opts.GPUs {
		hostConfig.DeviceRequests = []container.DeviceRequest{{
			Count:        -1,
			Capabilities: [][]string{{"gpu"}},
		}}
	}

	resp, err := d.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, opts.Name)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	containerID := resp.ID
	if opts.Remove {
		defer func() {
			if err := d.client.ContainerRemove(context.WithoutCancel(ctx), containerID, container.RemoveOptions{Force: true}); err != nil {
				slog.Error("Failed to remove container", "containerID", containerID, "error", err)
			}
		}()
	}

	// Subscribe before starting so a fast exit is not missed.
	statusCh, errCh := d.client.ContainerWait(ctx, containerID, container.WaitConditionNextExit)

	if err := d.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	var exitCode int64
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to wait for container: %w", err)
	case status := <-statusCh:
		if status.Error != nil {
			return fmt.Errorf("container wait failed: %s", status.Error.Message)
		}
		exitCode = status.StatusCode
	}

	if opts.Output != nil {
		d.copyLogs(ctx, containerID, opts.Output)
	}

	if exitCode != 0 {
		return fmt.Errorf("container %s exited with status %d", opts.Image, exitCode)
	}
	return nil
}

func (d *DockerRuntime) copyLogs(ctx context.Context, containerID string, out io.Writer) {
	logs, err := d.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		slog.Warn("Failed to read container logs", "containerID", containerID, "error", err)
		return
	}
	defer logs.Close()

	if _, err := stdcopy.StdCopy(out, out, logs); err != nil {
		slog.Warn("Failed to copy container logs", "containerID", containerID, "error", err)
	}
}

// CopyFromContainer returns a tar stream holding srcPath from the container.
func (d *DockerRuntime) CopyFromContainer(ctx context.Context, containerName, srcPath string) (io.ReadCloser, error) {
	reader, _, err := d.client.CopyFromContainer(ctx, containerName, srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to copy %s from container %s: %w", srcPath, containerName, err)
	}
	return reader, nil
}

// RemoveContainer force-removes a container.
func (d *DockerRuntime) RemoveContainer(ctx context.Context, containerName string) error {
	if err := d.client.ContainerRemove(ctx, containerName, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container %s: %w", containerName, err)
	}
	return nil
}

// Close releases the underlying Docker client.
func (d *DockerRuntime) Close() error {
	return d.client.Close()
}

func terminalFd(w io.Writer) (uintptr, bool) {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return 0, false
	}
	return f.Fd(), term.IsTerminal(int(f.Fd()))
}
