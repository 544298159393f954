package installconfig

import (
	"fmt"
	"path/filepath"
)

const (
	// ProductDirName is the directory created under the install location.
	ProductDirName = "parabricks"

	// LocalRepository is the canonical local image repository.
	LocalRepository = "parabricks/release"

	// NGCRegistry hosts the public image.
	NGCRegistry   = "nvcr.io"
	ngcRepository = "hpc/parabricks"

	// PrivateRegistry hosts the per-architecture images behind a login.
	PrivateRegistry   = "registry.gitlab.com"
	PrivateUser       = "pbuser"
	privateRepository = "pbuser/release"

	DefaultRelease         = "v2.5.0"
	DefaultInstallLocation = "/opt/"
	DefaultSymlinkPath     = "/usr/bin/pbrun"

	ContainerDocker      = "docker"
	ContainerSingularity = "singularity"

	ArchX86     = "x86_64"
	ArchPPC64LE = "ppc64le"
)

// InstallConfig is the root object holding the parsed command line for one
// installer run. Everything except Symlink and Arch is fixed once parsing
// completes.
type InstallConfig struct {
	Release         string   `mapstructure:"release" validate:"required,imagetag"`
	InstallLocation string   `mapstructure:"install-location" validate:"required"`
	Arch            string   `mapstructure:"arch" validate:"omitempty,oneof=x86_64 ppc64le"`
	Container       string   `mapstructure:"container" validate:"required,oneof=docker singularity"`
	AccessToken     string   `mapstructure:"access-token" validate:"required_if=NGC false"`
	NGC             bool     `mapstructure:"ngc"`
	Uninstall       bool     `mapstructure:"uninstall"`
	Symlink         bool     `mapstructure:"symlink"`
	Force           bool     `mapstructure:"force"`
	CPUOnly         bool     `mapstructure:"cpu-only"`
	Overlay         bool     `mapstructure:"overlay"`
	SymlinkPath     string   `mapstructure:"symlink-path" validate:"required"`
	KeepReleases    []string `mapstructure:"keep-release"`
}

// InstallDir is the directory that holds one installation.
func (c *InstallConfig) InstallDir() string {
	return filepath.Join(c.InstallLocation, ProductDirName)
}

// RegistryHost returns the registry the image is pulled from.
func (c *InstallConfig) RegistryHost() string {
	if c.NGC {
		return NGCRegistry
	}
	return PrivateRegistry
}

// RegistryPath returns the repository path inside the registry, without host or tag.
func (c *InstallConfig) RegistryPath() string {
	if c.NGC {
		return ngcRepository
	}
	return privateRepository + "/" + c.Arch
}

// QualifiedImage is the fully scoped reference the image is pulled as.
func (c *InstallConfig) QualifiedImage() string {
	return fmt.Sprintf("%s/%s:%s", c.RegistryHost(), c.RegistryPath(), c.Release)
}

// LocalImage is the name the image is tagged under after a docker install.
func (c *InstallConfig) LocalImage() string {
	return LocalRepository + ":" + c.Release
}

// NeedsLogin reports whether the registry requires credentials.
func (c *InstallConfig) NeedsLogin() bool {
	return !c.NGC
}

// ScriptArchive is the name of the script bundle materialized inside the image.
func (c *InstallConfig) ScriptArchive() string {
	return "release-" + c.Release + ".tar.gz"
}

// ScriptStagingDir is the top-level directory of the extracted script bundle.
func (c *InstallConfig) ScriptStagingDir() string {
	return "release-" + c.Release
}
