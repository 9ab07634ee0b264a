// Package web embeds the page template and its static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html static/*
var files embed.FS

// Assets returns the embedded tree with templates/ and static/ at its root
func Assets() fs.FS {
	return files
}
