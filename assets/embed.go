package assets

import (
	"embed"
)

//go:embed playlists.json
var FS embed.FS

// Playlists returns the built-in playlist document.
func Playlists() ([]byte, error) {
	return FS.ReadFile("playlists.json")
}
