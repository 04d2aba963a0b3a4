package common

import "errors"

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

// StaticPauses is a PauseView backed by a fixed set of paused module names,
// typically loaded from configuration.
type StaticPauses map[string]bool

func (s StaticPauses) IsPaused(module string) bool { return s[module] }

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
