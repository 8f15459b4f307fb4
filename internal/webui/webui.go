// Package webui provides the embedded page template and static files for the
// nextword web form.
package webui

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net/http"
)

//go:embed static/* templates/*
var files embed.FS

var pageTmpl = template.Must(template.ParseFS(files, "templates/index.html"))

// DefaultTitle is the page heading.
const DefaultTitle = "Next Word Predictor"

// Result is one rendered completion.
type Result struct {
	Rank         int
	Prompt       string
	Continuation string
}

// Page is everything the form template renders.
type Page struct {
	Title    string
	Text     string
	Words    int
	MinWords int
	MaxWords int
	Results  []Result
	Warning  string
	Error    string
	Model    string
	Elapsed  string
}

// Render executes the page template. All fields are HTML-escaped.
func Render(w io.Writer, p Page) error {
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	return pageTmpl.Execute(w, p)
}

// StaticFS returns an http.FileSystem for the embedded static files.
func StaticFS() http.FileSystem {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		// the embed pattern guarantees the directory
		panic(err)
	}
	return http.FS(sub)
}
