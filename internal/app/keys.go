package app

import "github.com/nhle/campusnotify/internal/keys"

// KeyMap is re-exported from the keys package so callers of app do not
// need to import keys.
type KeyMap = keys.KeyMap

// DefaultKeyMap delegates to keys.DefaultKeyMap.
func DefaultKeyMap() *KeyMap {
	return keys.DefaultKeyMap()
}
