package backend

import (
	"bytes"
	"embed"
	"html/template"
	"net/url"
	"sort"

	"github.com/pkg/errors"
)

//go:embed templates/form_post.html
var templateFiles embed.FS

var formPostTemplate = template.Must(template.ParseFS(templateFiles, "templates/form_post.html"))

type formField struct {
	Name  string
	Value string
}

// RenderFormPost builds the auto-submitting page that delivers values to
// action in form_post response mode. Fields are sorted by name.
func RenderFormPost(action string, values url.Values) (string, error) {
	fields := make([]formField, 0, len(values))
	for name, vs := range values {
		for _, v := range vs {
			fields = append(fields, formField{Name: name, Value: v})
		}
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

	var buf bytes.Buffer
	err := formPostTemplate.ExecuteTemplate(&buf, "form_post.html", struct {
		Action string
		Fields []formField
	}{Action: action, Fields: fields})
	if err != nil {
		return "", errors.Wrap(err, "failed to render form_post response")
	}
	return buf.String(), nil
}
