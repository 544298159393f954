package app

import (
	"pbinstall/internal/image"
	"pbinstall/internal/probe"
	"pbinstall/internal/scripts"
)

// ComponentFactory builds the runtime-specific components of a session, so
// stages only deal with runtime labels.
type ComponentFactory struct {
	session *Session
}

func NewComponentFactory(session *Session) *ComponentFactory {
	return &ComponentFactory{session: session}
}

func (f *ComponentFactory) Prober() *probe.Prober {
	s := f.session
	return probe.NewProber(s.Exec, s.Docker, s.Geteuid, s.Log)
}

// ImageManager returns the image manager for runtimeLabel.
func (f *ComponentFactory) ImageManager(runtimeLabel string) (image.Manager, error) {
	s := f.session
	return image.NewManager(runtimeLabel, s.Config, s.Docker, s.Exec, s.Console, s.Console.Out())
}

// ScriptInstaller returns the script installer for runtimeLabel.
func (f *ComponentFactory) ScriptInstaller(runtimeLabel string) *scripts.Installer {
	s := f.session
	return scripts.NewInstaller(s.Config, runtimeLabel, s.Docker, s.Exec, s.Console, s.Log)
}
