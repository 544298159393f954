package runtime

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func unreachableDaemon(t *testing.T) *DockerRuntime {
	t.Helper()
	t.Setenv("DOCKER_HOST", "unix://"+t.TempDir()+"/docker.sock")

	rt, err := NewDockerRuntime()
	if err != nil {
		t.Fatalf("NewDockerRuntime() failed: %v", err)
	}
	return rt
}

func TestNewDockerRuntime(t *testing.T) {
	rt := unreachableDaemon(t)
	if rt.client == nil {
		t.Fatal("DockerRuntime.client is nil")
	}
}

func TestDockerRuntime_Ping_UnreachableDaemon(t *testing.T) {
	rt := unreachableDaemon(t)

	err := rt.Ping(context.Background())
	if err == nil {
		t.Fatal("Expected error for unreachable daemon, got nil")
	}
	if !strings.HasPrefix(err.Error(), "failed to connect to Docker daemon") {
		t.Errorf("Unexpected error format: %s", err)
	}
}

func TestDockerRuntime_ImageExists_UnreachableDaemon(t *testing.T) {
	rt := unreachableDaemon(t)

	exists, err := rt.ImageExists(context.Background(), "parabricks/release:v2.5.0")
	if err == nil {
		t.Fatal("Expected error for unreachable daemon, got nil")
	}
	if exists {
		t.Error("ImageExists() reported an image on an unreachable daemon")
	}
	if !strings.Contains(err.Error(), "failed to inspect image") {
		t.Errorf("Unexpected error format: %s", err)
	}
}

func TestTerminalFd_NonFileWriter(t *testing.T) {
	fd, isTerm := terminalFd(&bytes.Buffer{})
	if fd != 0 || isTerm {
		t.Errorf("terminalFd(buffer) = (%d, %v), want (0, false)", fd, isTerm)
	}
}
