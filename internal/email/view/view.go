// Package view parses and renders text/template email templates.
package view

import (
	"fmt"
	"io"
	"io/fs"
	"text/template"

	"github.com/willemschots/forum/internal/email"
)

// View is a parsed email template with a subject and a body block.
type View struct {
	tmpl *template.Template
}

// Parse parses <name>.tmpl from the root of fsys.
func Parse(fsys fs.FS, name string) (*View, error) {
	// View names end up in file names, reject anything that could
	// traverse directories.
	if err := validateName(name); err != nil {
		return nil, err
	}

	filename := name + ".tmpl"
	tmpl, err := template.New(name).Option("missingkey=error").ParseFS(fsys, filename)
	if err != nil {
		return nil, err
	}

	for _, element := range []email.TemplateElement{email.ElementSubject, email.ElementBody} {
		if tmpl.Lookup(string(element)) == nil {
			return nil, fmt.Errorf("%s: missing %s template", filename, element)
		}
	}

	return &View{
		tmpl: tmpl,
	}, nil
}

// Render renders element of the view with data to w.
func (v *View) Render(w io.Writer, element email.TemplateElement, data any) error {
	return v.tmpl.ExecuteTemplate(w, string(element), data)
}

// validateName checks if all characters are alphanumeric, dashes or underscores.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty view name")
	}

	for _, c := range name {
		if !validViewRune(c) {
			return fmt.Errorf("invalid character %q in view name: %s", c, name)
		}
	}
	return nil
}

func validViewRune(r rune) bool {
	return r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
