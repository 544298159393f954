package image

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	pberrors "pbinstall/internal/errors"
	"pbinstall/internal/testutil"
	"pbinstall/internal/ui"
	"pbinstall/pkg/installconfig"
	"pbinstall/pkg/runtime"
)

func dockerConfig(ngc bool) *installconfig.InstallConfig {
	cfg := &installconfig.InstallConfig{
		Release:         "v2.5.0",
		InstallLocation: "/opt",
		Arch:            installconfig.ArchX86,
		Container:       installconfig.ContainerDocker,
		NGC:             ngc,
	}
	if !ngc {
		cfg.AccessToken = "secret"
	}
	return cfg
}

func newTestDockerManager(cfg *installconfig.InstallConfig, rt runtime.ContainerRuntime) (*DockerManager, *bytes.Buffer) {
	var out bytes.Buffer
	console := ui.NewConsoleWithWriters(&out, &out)
	return NewDockerManager(cfg, rt, console, &out), &out
}

func TestDockerManager_CheckNotInstalled(t *testing.T) {
	cfg := dockerConfig(true)

	tests := []struct {
		name      string
		setupMock func(*testutil.MockContainerRuntime)
		wantErr   error
	}{
		{
			name: "nothing installed",
			setupMock: func(m *testutil.MockContainerRuntime) {
				m.On("ImageExists", mock.Anything, cfg.QualifiedImage()).Return(false, nil)
				m.On("ImageExists", mock.Anything, cfg.LocalImage()).Return(false, nil)
			},
		},
		{
			name: "pulled name present",
			setupMock: func(m *testutil.MockContainerRuntime) {
				m.On("ImageExists", mock.Anything, cfg.QualifiedImage()).Return(true, nil)
			},
			wantErr: pberrors.ErrPrecondition,
		},
		{
			name: "local name present",
			setupMock: func(m *testutil.MockContainerRuntime) {
				m.On("ImageExists", mock.Anything, cfg.QualifiedImage()).Return(false, nil)
				m.On("ImageExists", mock.Anything, cfg.LocalImage()).Return(true, nil)
			},
			wantErr: pberrors.ErrPrecondition,
		},
		{
			name: "daemon error",
			setupMock: func(m *testutil.MockContainerRuntime) {
				m.On("ImageExists", mock.Anything, cfg.QualifiedImage()).Return(false, errors.New("connection refused"))
			},
			wantErr: pberrors.ErrRuntime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &testutil.MockContainerRuntime{}
			tt.setupMock(rt)
			manager, _ := newTestDockerManager(cfg, rt)

			err := manager.CheckNotInstalled(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			rt.AssertExpectations(t)
		})
	}
}

func TestDockerManager_CheckNotInstalled_SuggestsRemoval(t *testing.T) {
	cfg := dockerConfig(true)
	rt := &testutil.MockContainerRuntime{}
	rt.On("ImageExists", mock.Anything, cfg.QualifiedImage()).Return(true, nil)
	manager, _ := newTestDockerManager(cfg, rt)

	err := manager.CheckNotInstalled(context.Background())

	var installErr *pberrors.InstallError
	require.ErrorAs(t, err, &installErr)
	assert.Contains(t, installErr.Suggestion, "docker rmi "+cfg.QualifiedImage())
}

func TestDockerManager_InstallImage_NGC(t *testing.T) {
	cfg := dockerConfig(true)
	rt := &testutil.MockContainerRuntime{}
	rt.On("PullImage", mock.Anything, "nvcr.io/hpc/parabricks:v2.5.0", (*runtime.RegistryAuth)(nil), mock.Anything).Return(nil)
	rt.On("TagImage", mock.Anything, "nvcr.io/hpc/parabricks:v2.5.0", "parabricks/release:v2.5.0").Return(nil)
	rt.On("ImageExists", mock.Anything, "parabricks/release:v2.5.0").Return(true, nil)
	rt.On("RemoveImage", mock.Anything, "nvcr.io/hpc/parabricks:v2.5.0").Return(nil)
	manager, out := newTestDockerManager(cfg, rt)

	require.NoError(t, manager.InstallImage(context.Background()))
	assert.Contains(t, out.String(), "Image Installation successful.")
	rt.AssertExpectations(t)
	rt.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestDockerManager_InstallImage_PrivateRegistry(t *testing.T) {
	cfg := dockerConfig(false)
	qualified := "registry.gitlab.com/pbuser/release/x86_64:v2.5.0"
	wantAuth := runtime.RegistryAuth{
		Username:      installconfig.PrivateUser,
		Password:      "secret",
		ServerAddress: installconfig.PrivateRegistry,
	}

	rt := &testutil.MockContainerRuntime{}
	rt.On("Login", mock.Anything, wantAuth).Return(nil)
	rt.On("PullImage", mock.Anything, qualified, &wantAuth, mock.Anything).Return(nil)
	rt.On("TagImage", mock.Anything, qualified, "parabricks/release:v2.5.0").Return(nil)
	rt.On("ImageExists", mock.Anything, "parabricks/release:v2.5.0").Return(true, nil)
	rt.On("RemoveImage", mock.Anything, qualified).Return(nil)
	manager, _ := newTestDockerManager(cfg, rt)

	require.NoError(t, manager.InstallImage(context.Background()))
	rt.AssertExpectations(t)
}

func TestDockerManager_InstallImage_Failures(t *testing.T) {
	qualified := "nvcr.io/hpc/parabricks:v2.5.0"
	local := "parabricks/release:v2.5.0"

	tests := []struct {
		name      string
		setupMock func(*testutil.MockContainerRuntime)
		wantCtx   string
	}{
		{
			name: "pull fails",
			setupMock: func(m *testutil.MockContainerRuntime) {
				m.On("PullImage", mock.Anything, qualified, mock.Anything, mock.Anything).Return(errors.New("unauthorized"))
			},
			wantCtx: "Cannot download Parabricks docker image.",
		},
		{
			name: "tag fails",
			setupMock: func(m *testutil.MockContainerRuntime) {
				m.On("PullImage", mock.Anything, qualified, mock.Anything, mock.Anything).Return(nil)
				m.On("TagImage", mock.Anything, qualified, local).Return(errors.New("no such image"))
			},
			wantCtx: "Could not build Parabricks image",
		},
		{
			name: "tagged image missing",
			setupMock: func(m *testutil.MockContainerRuntime) {
				m.On("PullImage", mock.Anything, qualified, mock.Anything, mock.Anything).Return(nil)
				m.On("TagImage", mock.Anything, qualified, local).Return(nil)
				m.On("ImageExists", mock.Anything, local).Return(false, nil)
			},
			wantCtx: "Image did not install correctly",
		},
		{
			name: "removing pulled name fails",
			setupMock: func(m *testutil.MockContainerRuntime) {
				m.On("PullImage", mock.Anything, qualified, mock.Anything, mock.Anything).Return(nil)
				m.On("TagImage", mock.Anything, qualified, local).Return(nil)
				m.On("ImageExists", mock.Anything, local).Return(true, nil)
				m.On("RemoveImage", mock.Anything, qualified).Return(errors.New("in use"))
			},
			wantCtx: "Removing base image was unsuccessful",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &testutil.MockContainerRuntime{}
			tt.setupMock(rt)
			manager, _ := newTestDockerManager(dockerConfig(true), rt)

			err := manager.InstallImage(context.Background())

			var installErr *pberrors.InstallError
			require.ErrorAs(t, err, &installErr)
			assert.ErrorIs(t, err, pberrors.ErrRuntime)
			assert.Equal(t, tt.wantCtx, installErr.Context)
		})
	}
}

func TestDockerManager_InstallImage_BadRelease(t *testing.T) {
	cfg := dockerConfig(true)
	cfg.Release = "not a tag"
	rt := &testutil.MockContainerRuntime{}
	manager, _ := newTestDockerManager(cfg, rt)

	err := manager.InstallImage(context.Background())
	assert.ErrorIs(t, err, pberrors.ErrConfigInvalid)
	rt.AssertNotCalled(t, "PullImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDockerManager_RemoveImages(t *testing.T) {
	rt := &testutil.MockContainerRuntime{}
	rt.On("ListImageTags", mock.Anything, installconfig.LocalRepository).Return([]string{
		"parabricks/release:v2.4.0",
		"parabricks/release:v2.5.0",
		"parabricks/release:v2.3.2",
	}, nil)
	rt.On("RemoveImage", mock.Anything, "parabricks/release:v2.4.0").Return(nil)
	rt.On("RemoveImage", mock.Anything, "parabricks/release:v2.3.2").Return(nil)
	manager, out := newTestDockerManager(dockerConfig(true), rt)

	require.NoError(t, manager.RemoveImages(context.Background(), []string{"v2.5.0"}))

	rt.AssertExpectations(t)
	rt.AssertNotCalled(t, "RemoveImage", mock.Anything, "parabricks/release:v2.5.0")
	assert.Contains(t, out.String(), "Removing older image: parabricks/release:v2.4.0")
}

func TestDockerManager_RemoveImages_NoneInstalled(t *testing.T) {
	rt := &testutil.MockContainerRuntime{}
	rt.On("ListImageTags", mock.Anything, installconfig.LocalRepository).Return([]string{}, nil)
	manager, _ := newTestDockerManager(dockerConfig(true), rt)

	require.NoError(t, manager.RemoveImages(context.Background(), nil))
	rt.AssertNotCalled(t, "RemoveImage", mock.Anything, mock.Anything)
}

func TestDockerManager_RemoveImages_Failure(t *testing.T) {
	rt := &testutil.MockContainerRuntime{}
	rt.On("ListImageTags", mock.Anything, installconfig.LocalRepository).Return([]string{"parabricks/release:v2.4.0"}, nil)
	rt.On("RemoveImage", mock.Anything, "parabricks/release:v2.4.0").Return(errors.New("container running"))
	manager, _ := newTestDockerManager(dockerConfig(true), rt)

	err := manager.RemoveImages(context.Background(), nil)
	assert.ErrorIs(t, err, pberrors.ErrRuntime)
}

func TestNewManager(t *testing.T) {
	cfg := dockerConfig(true)
	console := ui.NewConsoleWithWriters(&bytes.Buffer{}, &bytes.Buffer{})

	m, err := NewManager("docker", cfg, &testutil.MockContainerRuntime{}, nil, console, nil)
	require.NoError(t, err)
	assert.IsType(t, &DockerManager{}, m)

	m, err = NewManager("singularity 3.x", cfg, nil, testutil.NewFakeExecutor(), console, nil)
	require.NoError(t, err)
	assert.IsType(t, &SingularityManager{}, m)

	_, err = NewManager("docker", cfg, nil, nil, console, nil)
	assert.Error(t, err)

	_, err = NewManager("podman", cfg, nil, nil, console, nil)
	assert.Error(t, err)
}
