package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildCLI compiles pbinstall into a fresh directory, which then doubles as
// an installation package without EULA.txt or license.bin.
func buildCLI(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available")
	}

	binaryPath := filepath.Join(t.TempDir(), "pbinstall")
	buildCmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/pbinstall")
	output, err := buildCmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI binary: %s", output)
	return binaryPath
}

func runCLI(t *testing.T, binaryPath, logDir string, args ...string) (string, int) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "PBINSTALL_LOG_DIR="+logDir)
	cmd.Stdin = strings.NewReader("")
	output, err := cmd.CombinedOutput()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return string(output), exitErr.ExitCode()
	}
	require.NoError(t, err)
	return string(output), 0
}

func logFiles(t *testing.T, logDir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(logDir, "pb_install_log_*.txt"))
	require.NoError(t, err)
	return matches
}

func TestCLI_UninstallWithNothingInstalled(t *testing.T) {
	binaryPath := buildCLI(t)
	logDir := t.TempDir()
	location := t.TempDir()

	output, code := runCLI(t, binaryPath, logDir,
		"--uninstall",
		"--container", "singularity",
		"--install-location", location,
		"--symlink-path", filepath.Join(location, "pbrun"),
	)

	assert.Equal(t, 0, code, output)
	assert.Contains(t, output, "Starting Uninstallation")
	assert.Contains(t, output, "Parabricks uninstalled from "+location)
	assert.Len(t, logFiles(t, logDir), 1)
}

func TestCLI_MissingEULA(t *testing.T) {
	binaryPath := buildCLI(t)
	logDir := t.TempDir()
	location := t.TempDir()

	output, code := runCLI(t, binaryPath, logDir,
		"--force",
		"--container", "singularity",
		"--arch", "x86_64",
		"--install-location", location,
	)

	assert.Equal(t, 1, code, output)
	assert.Contains(t, output, "Error:")
	assert.Contains(t, output, "EULA.txt not found")
	assert.Contains(t, output, "Contact support@parabricks.com for troubleshooting")
	_, err := os.Stat(filepath.Join(location, "parabricks"))
	assert.True(t, os.IsNotExist(err), "install directory must not be created")

	logs := logFiles(t, logDir)
	require.Len(t, logs, 1)
	content, err := os.ReadFile(logs[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"Installation aborted"`)
	assert.Contains(t, string(content), `"type":"precondition"`)
}

func TestCLI_InvalidFlags(t *testing.T) {
	binaryPath := buildCLI(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "unknown container",
			args: []string{"--container", "podman"},
			want: "--container must be one of",
		},
		{
			name: "private registry without token",
			args: []string{"--ngc=false", "--container", "singularity"},
			want: "--access-token is required when --ngc=false",
		},
		{
			name: "unknown flag",
			args: []string{"--gpu-count", "2"},
			want: "unknown flag: --gpu-count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logDir := t.TempDir()
			output, code := runCLI(t, binaryPath, logDir, tt.args...)

			assert.Equal(t, 1, code, output)
			assert.Contains(t, output, tt.want)
			assert.Empty(t, logFiles(t, logDir), "no session is started for invalid flags")
		})
	}
}

func TestCLI_Help(t *testing.T) {
	binaryPath := buildCLI(t)

	output, code := runCLI(t, binaryPath, t.TempDir(), "--help")

	assert.Equal(t, 0, code)
	assert.Contains(t, output, "--install-location")
	assert.Contains(t, output, "--release")
	assert.NotContains(t, output, "--access-token")
}
