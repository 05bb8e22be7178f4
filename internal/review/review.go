// Package review provides a web UI for inspecting archived expression sets.
//
// The page is static; it reads everything from the REST API mounted at
// /api/v1 on the same origin.
package review

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFiles embed.FS

// Handler serves the embedded UI.
func Handler() (http.Handler, error) {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("embed static files: %w", err)
	}
	return http.FileServer(http.FS(staticFS)), nil
}
