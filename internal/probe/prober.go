package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	pberrors "pbinstall/internal/errors"
	"pbinstall/internal/process"
	"pbinstall/pkg/installconfig"
	"pbinstall/pkg/runtime"
)

// RuntimeDocker is the runtime label recorded for docker installs.
const RuntimeDocker = "docker"

const cudaImageTag = ":9.0-base-ubuntu16.04"

// Prober checks that the host can run the product before anything is installed.
type Prober struct {
	exec     process.Executor
	docker   runtime.ContainerRuntime
	geteuid  func() int
	progress io.Writer
}

// NewProber creates a Prober. docker may be nil when only singularity is probed.
// progress receives the output of the GPU trial run.
func NewProber(exec process.Executor, docker runtime.ContainerRuntime, geteuid func() int, progress io.Writer) *Prober {
	if progress == nil {
		progress = io.Discard
	}
	return &Prober{
		exec:     exec,
		docker:   docker,
		geteuid:  geteuid,
		progress: progress,
	}
}

// CheckRequirements verifies the tools needed for cfg and returns the label
// of the runtime that will be used.
func (p *Prober) CheckRequirements(ctx context.Context, cfg *installconfig.InstallConfig) (string, error) {
	if err := p.CheckCurl(); err != nil {
		return "", err
	}

	if cfg.Container == installconfig.ContainerSingularity {
		protocol, err := p.CheckSingularity(ctx)
		return string(protocol), err
	}
	return p.CheckDocker(ctx, cfg.Arch, cfg.CPUOnly)
}

// CheckCurl fails when curl is not on PATH.
func (p *Prober) CheckCurl() error {
	slog.Info("Checking curl installation")
	if _, err := p.exec.LookPath("curl"); err != nil {
		return pberrors.NewEnvironmentError(
			"curl --version failed. Please check installation of curl.",
			err.Error(),
			"Install curl and make sure it is on PATH",
			err,
		)
	}
	return nil
}

// CheckDocker prefers a GPU-capable docker and only settles for a plain one
// when cpuOnly is set.
func (p *Prober) CheckDocker(ctx context.Context, arch string, cpuOnly bool) (string, error) {
	slog.Info("Checking docker installation")
	if p.docker == nil {
		return "", pberrors.NewEnvironmentError(
			"docker not found. Please check installation of docker.",
			"no Docker client could be created",
			"Install docker and check that DOCKER_HOST is valid",
			nil,
		)
	}
	if err := p.docker.Ping(ctx); err != nil {
		return "", pberrors.NewEnvironmentError(
			"docker not found. Please check installation of docker.",
			err.Error(),
			"Start the Docker daemon and check that your user may access it",
			err,
		)
	}

	if p.gpuAvailable(ctx, arch) {
		return RuntimeDocker, nil
	}
	if cpuOnly {
		slog.Info("No GPU support detected, continuing with CPU-only tools")
		return RuntimeDocker, nil
	}

	return "", pberrors.NewEnvironmentError(
		"Error in docker installation. Check install log in tmp folder",
		"a GPU trial container could not run nvidia-smi",
		"Install the NVIDIA container toolkit, or pass --cpu-only",
		nil,
	)
}

func (p *Prober) gpuAvailable(ctx context.Context, arch string) bool {
	cudaImage := CudaImage(arch)

	exists, err := p.docker.ImageExists(ctx, cudaImage)
	if err == nil && !exists {
		err = p.docker.PullImage(ctx, cudaImage, nil, p.progress)
	}
	if err == nil {
		err = p.docker.RunContainer(ctx, runtime.RunOptions{
			Image:   cudaImage,
			Command: []string{"nvidia-smi"},
			GPUs:    true,
			Remove:  true,
			Output:  p.progress,
		})
	}
	if err != nil {
		slog.Info("GPU trial run failed", "image", cudaImage, "error", err)
		return false
	}
	return true
}

// CudaImage is the image used for the GPU trial run on arch.
func CudaImage(arch string) string {
	if arch == installconfig.ArchPPC64LE {
		return "nvidia/cuda-ppc64le" + cudaImageTag
	}
	return "nvidia/cuda" + cudaImageTag
}

// CheckSingularity returns which singularity protocol the host speaks.
func (p *Prober) CheckSingularity(ctx context.Context) (Protocol, error) {
	slog.Info("Checking singularity installation")
	if _, err := p.exec.LookPath("singularity"); err != nil {
		return "", pberrors.NewEnvironmentError(
			"singularity not found. Please check singularity installation",
			err.Error(),
			"Install singularity and make sure it is on PATH",
			err,
		)
	}

	output, err := p.exec.Output(ctx, process.Command{
		Name:       "singularity",
		Args:       []string{"--version"},
		ErrMessage: "singularity --version failed. Please check installation of singularity.",
	})
	if err != nil {
		return "", err
	}

	parsed, err := ParseSingularityVersion(output)
	if err != nil {
		return "", pberrors.NewEnvironmentError(
			"Could not understand the installed singularity version",
			err.Error(),
			"Check that `singularity --version` prints a version number",
			err,
		)
	}

	protocol, err := parsed.Protocol()
	if err != nil {
		if errors.Is(err, ErrVersionTooOld) {
			return "", pberrors.NewEnvironmentError(
				"Singularity version 2.5.2 or higher required",
				err.Error(),
				"Upgrade singularity",
				err,
			)
		}
		return "", err
	}
	slog.Info("Detected singularity", "version", parsed.String(), "protocol", protocol)

	if protocol == ProtocolV3 && p.geteuid() != 0 {
		return "", pberrors.NewEnvironmentError(
			"You need root permissions to install with singularity v3.x or higher",
			fmt.Sprintf("running as uid %d", p.geteuid()),
			"Try with sudo, or install on a machine with sudo and copy the parabricks folder, or contact system administrator",
			nil,
		)
	}
	return protocol, nil
}
