// Package config turns command-line flags, PBINSTALL_* environment variables
// and an optional defaults file into a validated InstallConfig.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	pberrors "pbinstall/internal/errors"
	"pbinstall/internal/probe"
	"pbinstall/pkg/installconfig"
)

const (
	EnvPrefix = "PBINSTALL"

	// ConfigFlag names the optional YAML file of flag defaults.
	ConfigFlag = "config"
)

var validate *validator.Validate

// imageTagPattern is the charset docker accepts for a tag. It keeps a
// release from naming a path outside the install directory.
var imageTagPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,127}$`)

func init() {
	validate = validator.New()
	// Report fields under their flag names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return "--" + name
	})
	_ = validate.RegisterValidation("imagetag", func(fl validator.FieldLevel) bool {
		return imageTagPattern.MatchString(fl.Field().String())
	})
}

// hiddenFlags are accepted but left out of --help.
var hiddenFlags = []string{"arch", "container", "access-token", "symlink-path", "keep-release", "overlay"}

// RegisterFlags defines every installer flag on flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("release", installconfig.DefaultRelease, "Target version of Parabricks")
	flags.String("install-location", installconfig.DefaultInstallLocation, "Parent directory; Parabricks is installed into <location>/parabricks")
	flags.String("arch", "", "Target architecture, x86_64 or ppc64le (detected when empty)")
	flags.String("container", installconfig.ContainerDocker, "Container runtime, docker or singularity")
	flags.String("access-token", "", "Access token for the private registry")
	flags.Bool("uninstall", false, "Remove all Parabricks installations")
	flags.Bool("symlink", false, "Create a symlink to pbrun at "+installconfig.DefaultSymlinkPath)
	flags.Bool("force", false, "Do not ask for any confirmation")
	flags.Bool("ngc", true, "Download the image from NGC; --ngc=false uses the private registry")
	flags.Bool("cpu-only", false, "Accept a docker installation without GPU support")
	flags.String("symlink-path", installconfig.DefaultSymlinkPath, "Location of the pbrun symlink")
	flags.StringSlice("keep-release", nil, "Releases whose images are kept on uninstall")
	flags.Bool("overlay", false, "Also create a writable overlay image for singularity 3.x")
	flags.String(ConfigFlag, "", "YAML file with default flag values")

	for _, name := range hiddenFlags {
		_ = flags.MarkHidden(name)
	}
}

// NewViper binds flags and the PBINSTALL_ environment into a fresh viper
// instance. Command-line values win over the environment, which wins over the
// defaults file.
func NewViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	return v, nil
}

// Load reads the optional defaults file, unmarshals and validates the
// configuration and makes the install location absolute.
func Load(v *viper.Viper) (*installconfig.InstallConfig, error) {
	if file := v.GetString(ConfigFlag); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, pberrors.NewConfigError(
				fmt.Sprintf("Could not read configuration file %s", file),
				err.Error(),
				"Check that the file exists and is valid YAML",
				err,
			)
		}
	}

	var cfg installconfig.InstallConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, pberrors.NewConfigError("Invalid command line arguments", err.Error(), "Run with --help to see the accepted values", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		verr := formatValidationError(err)
		return nil, pberrors.NewConfigError("Invalid command line arguments", verr.Error(), "Run with --help to see the accepted values", verr)
	}

	location, err := filepath.Abs(cfg.InstallLocation)
	if err != nil {
		return nil, pberrors.NewConfigError("Invalid install location", err.Error(), "", err)
	}
	cfg.InstallLocation = location

	return &cfg, nil
}

// ResolveArch fills in the architecture from the host when none was given.
// Uninstall never needs it.
func ResolveArch(cfg *installconfig.InstallConfig, machine probe.MachineFunc) error {
	if cfg.Uninstall || cfg.Arch != "" {
		return nil
	}
	arch, err := probe.DetectArch(machine)
	if err != nil {
		return err
	}
	cfg.Arch = arch
	return nil
}

// formatValidationError converts validator errors into operator-facing messages.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validation failed: %w", err)
	}

	var errorMessages []string
	for _, e := range validationErrors {
		errorMessages = append(errorMessages, formatFieldError(e))
	}

	if len(errorMessages) == 1 {
		return fmt.Errorf("validation error: %s", errorMessages[0])
	}

	result := "validation errors:\n"
	for _, msg := range errorMessages {
		result += fmt.Sprintf("  - %s\n", msg)
	}
	return errors.New(result)
}

func formatFieldError(e validator.FieldError) string {
	field := e.Field()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required but missing", field)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, requiredIfCondition(e.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "imagetag":
		return fmt.Sprintf("%s %q is not a valid image tag (letters, digits, '_', '.' and '-' only)", field, e.Value())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, e.Tag())
	}
}

func requiredIfCondition(param string) string {
	if param == "NGC false" {
		return "--ngc=false"
	}
	return param
}
