package image

import (
	"context"
	"fmt"
	"io"

	"pbinstall/internal/probe"
	"pbinstall/internal/process"
	"pbinstall/internal/ui"
	"pbinstall/pkg/installconfig"
	"pbinstall/pkg/runtime"
)

// Manager installs and removes the product image for one container runtime.
type Manager interface {
	// CheckNotInstalled fails if installing would collide with an existing image.
	CheckNotInstalled(ctx context.Context) error
	InstallImage(ctx context.Context) error
	// RemoveImages deletes installed images except the releases in keep.
	RemoveImages(ctx context.Context, keep []string) error
}

// NewManager returns the Manager for the runtime label reported by the prober.
func NewManager(runtimeLabel string, cfg *installconfig.InstallConfig, rt runtime.ContainerRuntime, exec process.Executor, console *ui.Console, progress io.Writer) (Manager, error) {
	switch runtimeLabel {
	case probe.RuntimeDocker:
		if rt == nil {
			return nil, fmt.Errorf("docker runtime is not available")
		}
		return NewDockerManager(cfg, rt, console, progress), nil
	case string(probe.ProtocolV2), string(probe.ProtocolV3):
		return NewSingularityManager(cfg, probe.Protocol(runtimeLabel), exec, console), nil
	default:
		return nil, fmt.Errorf("unsupported container runtime: %s", runtimeLabel)
	}
}
