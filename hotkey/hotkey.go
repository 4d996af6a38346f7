package hotkey

// Hotkey delivers global Ctrl+Shift+Space presses. Each press toggles
// recording; releases are not surfaced.
type Hotkey interface {
	Register() error
	Unregister()
	Presses() <-chan struct{}
}
