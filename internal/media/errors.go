package media

import "errors"

// ErrSelectionCancelled is returned by a source when the user dismissed the picker.
var ErrSelectionCancelled = errors.New("selection cancelled")
