// Located in pkg/runtime/runtime.go
package runtime

import (
	"context"
	"io"
)

// RegistryAuth holds the credentials for a private registry.
type RegistryAuth struct {
	Username      string
	Password      string
	ServerAddress string
}

// RunOptions defines the parameters for running a container to completion.
type RunOptions struct {
	Image   string
	Command []string
	// Name is the container name; empty lets the engine pick one.
	Name string
	// GPUs requests every GPU on the host.
	GPUs bool
	// Remove deletes the container once it has exited.
	Remove bool
	// Output receives the container's stdout and stderr.
	Output io.Writer
}

// ContainerRuntime defines the contract for container engine operations.
type ContainerRuntime interface {
	Ping(ctx context.Context) error
	ImageExists(ctx context.Context, ref string) (bool, error)
	// ListImageTags returns the repo:tag names of local images in repository.
	ListImageTags(ctx context.Context, repository string) ([]string, error)
	Login(ctx context.Context, auth RegistryAuth) error
	PullImage(ctx context.Context, ref string, auth *RegistryAuth, progress io.Writer) error
	TagImage(ctx context.Context, source, target string) error
	RemoveImage(ctx context.Context, ref string) error
	// RunContainer returns once the container has exited; a non-zero exit
	// status is an error.
	RunContainer(ctx context.Context, opts RunOptions) error
	// CopyFromContainer returns a tar stream of srcPath inside the container.
	CopyFromContainer(ctx context.Context, container, srcPath string) (io.ReadCloser, error)
	RemoveContainer(ctx context.Context, container string) error
}
