package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Watch re-decodes the config file whenever it is written and hands the
// result to onChange. A reload that fails validation is reported through
// the error argument and leaves the previous config in effect. Watch reports
// false when there is no file to watch.
func (l Loaded) Watch(onChange func(Loaded, error)) bool {
	if l.v == nil || !l.Exists {
		return false
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, warnings, err := decode(l.v)
		if err != nil {
			onChange(Loaded{}, fmt.Errorf("reload config %q: %w", l.Path, err))
			return
		}
		onChange(Loaded{Path: l.Path, Config: cfg, Warnings: warnings, Exists: true, v: l.v}, nil)
	})
	l.v.WatchConfig()
	return true
}
