package clipboard

import cb "github.com/atotto/clipboard"

// Read returns the current clipboard text.
func Read() (string, error) {
	return cb.ReadAll()
}

// Copy replaces the clipboard with text.
func Copy(text string) error {
	return cb.WriteAll(text)
}
