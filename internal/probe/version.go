package probe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// Protocol is the Singularity generation an install is driven with. The
// value is also what gets recorded as the runtime label in config.txt.
type Protocol string

const (
	ProtocolV2 Protocol = "singularity 2.x"
	ProtocolV3 Protocol = "singularity 3.x"
)

var (
	ErrMalformedVersion = errors.New("malformed singularity version")
	ErrVersionTooOld    = errors.New("singularity version too old")

	minimumVersion = version.Must(version.NewVersion("2.5.2"))
	v3Version      = version.Must(version.NewVersion("3.0.0"))
)

// SingularityVersion is the parsed output of `singularity --version`.
type SingularityVersion struct {
	// Flavor is the product name printed before the number, e.g.
	// "singularity", "singularity-ce" or "apptainer".
	Flavor  string
	Version *version.Version
}

// ParseSingularityVersion understands both the bare 2.x output ("2.6.1-dist")
// and the 3.x form ("singularity version 3.5.2-1.el7").
func ParseSingularityVersion(output string) (*SingularityVersion, error) {
	line := firstLine(output)
	if line == "" {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedVersion)
	}

	flavor, raw := "singularity", line
	if name, rest, found := strings.Cut(line, " version "); found {
		flavor, raw = strings.TrimSpace(name), strings.TrimSpace(rest)
	}

	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedVersion, line)
	}

	v, err := version.NewVersion(fields[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedVersion, line, err)
	}

	return &SingularityVersion{Flavor: flavor, Version: v}, nil
}

// Protocol classifies the version. Distribution suffixes such as "-dist" are
// ignored for the comparison, so 2.5.2-dist satisfies the 2.5.2 minimum.
func (s *SingularityVersion) Protocol() (Protocol, error) {
	// Apptainer restarted its numbering at 1.0 but speaks the 3.x protocol.
	if s.Flavor == "apptainer" {
		return ProtocolV3, nil
	}

	core := s.Version.Core()
	switch {
	case core.LessThan(minimumVersion):
		return "", fmt.Errorf("%w: %s is older than %s", ErrVersionTooOld, s.Version, minimumVersion)
	case core.LessThan(v3Version):
		return ProtocolV2, nil
	default:
		return ProtocolV3, nil
	}
}

func (s *SingularityVersion) String() string {
	return s.Flavor + " " + s.Version.String()
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
