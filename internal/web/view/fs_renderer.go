package view

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
)

// FSRenderer renders views from a file system. Views are re-parsed on
// every render, which makes it suited for development.
type FSRenderer struct {
	fs    fs.FS
	funcs template.FuncMap
}

// NewFSRenderer returns a new FSRenderer.
func NewFSRenderer(fs fs.FS, funcs template.FuncMap) *FSRenderer {
	return &FSRenderer{fs: fs, funcs: funcs}
}

func (r *FSRenderer) Render(w io.Writer, name string, data any) error {
	v, err := Parse(r.fs, name, r.funcs)
	if err != nil {
		return fmt.Errorf("failed to parse view: %w", err)
	}
	return v.Render(w, data)
}
