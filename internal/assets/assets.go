// Package assets embeds the page template, static files and the bundled
// document.
package assets

import (
	"context"
	"embed"
	"html/template"
	"io/fs"

	"amenity/internal/workflow"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

//go:embed amenities.pdf
var document []byte

// DocumentName is the download name of the bundled document.
const DocumentName = "amenities.pdf"

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

// Static returns the static files rooted at their directory.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// EmbeddedDocument serves the document compiled into the binary.
type EmbeddedDocument struct {
	Name string
}

var _ workflow.DocumentSource = EmbeddedDocument{}

func (d EmbeddedDocument) Document(context.Context) (workflow.File, error) {
	name := d.Name
	if name == "" {
		name = DocumentName
	}
	data := make([]byte, len(document))
	copy(data, document)
	return workflow.File{Name: name, ContentType: "application/pdf", Data: data}, nil
}
