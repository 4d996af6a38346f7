package session

import (
	"sync"

	"quill/store"
)

// SettingsRef is the shared, mutated-by-user settings holder. The controller
// only reads it; the TUI and flag wiring write through Update, which
// normalizes and then triggers persistence.
type SettingsRef struct {
	mu       sync.Mutex
	settings store.Settings
	onChange func(store.Settings)
}

func NewSettingsRef(settings store.Settings) *SettingsRef {
	settings.Normalize()
	return &SettingsRef{settings: settings}
}

// OnChange registers the persistence hook, invoked after every Update.
func (ref *SettingsRef) OnChange(fn func(store.Settings)) {
	ref.mu.Lock()
	ref.onChange = fn
	ref.mu.Unlock()
}

func (ref *SettingsRef) Get() store.Settings {
	ref.mu.Lock()
	defer ref.mu.Unlock()
	return ref.settings
}

func (ref *SettingsRef) Update(fn func(*store.Settings)) store.Settings {
	ref.mu.Lock()
	fn(&ref.settings)
	ref.settings.Normalize()
	snapshot := ref.settings
	hook := ref.onChange
	ref.mu.Unlock()

	if hook != nil {
		hook(snapshot)
	}
	return snapshot
}
