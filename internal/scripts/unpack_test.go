package scripts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBundle(t *testing.T, dir string, bundle []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "release-v2.5.0.tar.gz"), bundle, 0o644))
}

func TestUnpack_MergesIntoInstallDir(t *testing.T) {
	cfg := testConfig(t)
	dir := cfg.InstallDir()

	writeBundle(t, dir, buildTar(t, []tarEntry{
		{name: "release-v2.5.0/", mode: 0o755, dir: true},
		{name: "release-v2.5.0/bin/", mode: 0o755, dir: true},
		{name: "release-v2.5.0/bin/tool", body: "new", mode: 0o755},
		{name: "release-v2.5.0/tool", mode: 0o777, link: "bin/tool"},
	}, true))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "license.bin"), []byte("license"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "tool"), []byte("old"), 0o644))

	console, _ := quietConsole()
	installer := NewInstaller(cfg, "singularity 3.x", nil, nil, console, nil)
	require.NoError(t, installer.unpack())

	content, err := os.ReadFile(filepath.Join(dir, "bin", "tool"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))

	info, err := os.Stat(filepath.Join(dir, "bin", "tool"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	target, err := os.Readlink(filepath.Join(dir, "tool"))
	require.NoError(t, err)
	assert.Equal(t, "bin/tool", target)

	license, err := os.ReadFile(filepath.Join(dir, "license.bin"))
	require.NoError(t, err)
	assert.Equal(t, "license", string(license))

	assert.NoFileExists(t, filepath.Join(dir, "release-v2.5.0.tar.gz"))
	assert.NoDirExists(t, filepath.Join(dir, "release-v2.5.0"))
}

func TestUnpack_RejectsEntriesOutsideInstallDir(t *testing.T) {
	cfg := testConfig(t)
	dir := cfg.InstallDir()

	writeBundle(t, dir, buildTar(t, []tarEntry{
		{name: "release-v2.5.0/", mode: 0o755, dir: true},
		{name: "../escape", body: "x", mode: 0o644},
	}, true))

	console, _ := quietConsole()
	installer := NewInstaller(cfg, "singularity 3.x", nil, nil, console, nil)
	assert.Error(t, installer.unpack())
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "escape"))
}
