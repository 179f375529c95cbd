package server

import (
	"embed"
	"html/template"
	"path"
	"strings"
)

//go:embed templates/*.html
var templateFiles embed.FS

var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

// ParseTemplate parses a page from the embedded templates directory
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(name).Funcs(templateFuncs).ParseFS(templateFiles, path.Join("templates", name))
}
