// Package templates renders the HTML pages of the companion site where
// users enter the shortcode shown by their device
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed html/*.html
var content embed.FS

// TemplateError wraps a failure to parse or execute a page
type TemplateError struct {
	Cause   error
	Message string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error: %s: %v", e.Message, e.Cause)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// Templates manages the HTML templates
type Templates struct {
	enter  *template.Template
	result *template.Template
}

// LoadTemplates loads and parses all HTML templates
func LoadTemplates() (*Templates, error) {
	t := &Templates{}
	var err error

	if t.enter, err = template.ParseFS(content, "html/layout.html", "html/enter.html"); err != nil {
		return nil, &TemplateError{Cause: err, Message: "parsing enter page"}
	}
	if t.result, err = template.ParseFS(content, "html/layout.html", "html/result.html"); err != nil {
		return nil, &TemplateError{Cause: err, Message: "parsing result page"}
	}

	return t, nil
}

// EnterData holds data for the code entry page
type EnterData struct {
	// Action is the URL the form posts to
	Action    string
	Code      string
	CSRFToken string
	Error     string
}

// RenderEnter renders the code entry page
func (t *Templates) RenderEnter(w io.Writer, data EnterData) error {
	return render(w, t.enter, data)
}

// ResultData holds data for the page shown after a decision or failure
type ResultData struct {
	Title   string
	Message string
	// Back links to the entry page when set
	Back string
}

// RenderResult renders the result page
func (t *Templates) RenderResult(w io.Writer, data ResultData) error {
	return render(w, t.result, data)
}

// render executes into a buffer first so a failed page never writes
// partial HTML
func render(w io.Writer, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return &TemplateError{Cause: err, Message: "executing " + tmpl.Name()}
	}
	_, err := buf.WriteTo(w)
	return err
}
