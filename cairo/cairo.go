// Package cairo reads and writes event streams as Cairo source code: a
// `fn midi() -> Midi` returning an array of Message literals, with times and
// tempos written as FP32x32 sign/magnitude numbers.
package cairo

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/cienicera/Koji"
)

// Serializer renders streams through a template set that defines one template
// per event kind (named by the kind, e.g. NOTE_ON) and a "midi.cairo" template
// that wraps the rendered lines.
type Serializer struct {
	Template *template.Template
}

//go:embed templates/*.cairo
var templateFS embed.FS

var defaultSerializer = func() *Serializer {
	s, err := New()
	if err != nil {
		panic(err)
	}
	return s
}()

func funcMap() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["fixed"] = func(v uint32) koji.FixedPoint { return koji.Ticks(uint64(v)) }
	return funcs
}

// New returns a serializer using the built-in templates.
func New() (*Serializer, error) {
	tmpl, err := template.New("base").Funcs(funcMap()).ParseFS(templateFS, "templates/*.cairo")
	if err != nil {
		return nil, fmt.Errorf(`could not create templates: %v`, err)
	}
	return &Serializer{Template: tmpl}, nil
}

// NewFromTemplates parses every file in templateDirectory. The directory must
// define the same templates as the built-in ones.
func NewFromTemplates(templateDirectory string) (*Serializer, error) {
	globPtrn := filepath.Join(templateDirectory, "*.*")
	tmpl, err := template.New("base").Funcs(funcMap()).ParseGlob(globPtrn)
	if err != nil {
		return nil, fmt.Errorf(`could not create template based on directory "%v": %v`, templateDirectory, err)
	}
	return &Serializer{Template: tmpl}, nil
}

// Serialize writes s with the built-in templates.
func Serialize(w io.Writer, s *koji.Stream) error {
	return defaultSerializer.Serialize(w, s)
}

// Serialize writes one Message literal per event. Streams with tick deltas
// are converted to absolute microseconds first.
func (ser *Serializer) Serialize(w io.Writer, s *koji.Stream) error {
	if s.Base != koji.AbsoluteMicros {
		s = s.Absolute()
	}
	lines := make([]string, 0, s.Len())
	var buf bytes.Buffer
	for i, e := range s.All {
		buf.Reset()
		if err := ser.Template.ExecuteTemplate(&buf, string(e.Kind()), e); err != nil {
			return fmt.Errorf(`could not execute template for event %d (%v): %v`, i, e.Kind(), err)
		}
		lines = append(lines, buf.String())
	}
	data := struct {
		Lines []string
	}{lines}
	if err := ser.Template.ExecuteTemplate(w, "midi.cairo", &data); err != nil {
		return fmt.Errorf(`could not execute template "midi.cairo": %v`, err)
	}
	return nil
}
