package probe

import (
	"fmt"

	"golang.org/x/sys/unix"

	pberrors "pbinstall/internal/errors"
	"pbinstall/pkg/installconfig"
)

// MachineFunc reports the host's machine hardware name, as `uname -m` does.
type MachineFunc func() (string, error)

// Uname reads the machine hardware name from uname(2).
func Uname() (string, error) {
	var utsname unix.Utsname
	if err := unix.Uname(&utsname); err != nil {
		return "", fmt.Errorf("uname failed: %w", err)
	}
	return unix.ByteSliceToString(utsname.Machine[:]), nil
}

// SupportedArch reports whether images are published for arch.
func SupportedArch(arch string) bool {
	return arch == installconfig.ArchX86 || arch == installconfig.ArchPPC64LE
}

// DetectArch returns the host architecture, or an environment error when it
// is not one images are published for.
func DetectArch(machine MachineFunc) (string, error) {
	arch, err := machine()
	if err != nil {
		return "", pberrors.NewEnvironmentError(
			"Could not determine the host architecture",
			err.Error(),
			"Pass --arch x86_64 or --arch ppc64le",
			err,
		)
	}

	if !SupportedArch(arch) {
		return "", pberrors.NewEnvironmentError(
			fmt.Sprintf("Unsupported architecture %s. Exiting...", arch),
			fmt.Sprintf("images are only published for %s and %s", installconfig.ArchX86, installconfig.ArchPPC64LE),
			"Install on a supported host",
			nil,
		)
	}
	return arch, nil
}
