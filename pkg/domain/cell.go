package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// CellKind mirrors the integer persisted in notebook files.
type CellKind int

const (
	CellKindMarkup CellKind = 1
	CellKindCode   CellKind = 2
)

// String returns a human-readable kind name.
func (k CellKind) String() string {
	switch k {
	case CellKindMarkup:
		return "markup"
	case CellKindCode:
		return "code"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the known kinds.
func (k CellKind) Valid() bool {
	return k == CellKindMarkup || k == CellKindCode
}

// Output is a single output item attached to a cell.
type Output struct {
	Mime string `json:"mime"`
	Data []byte `json:"data"`
}

// TextOutput builds a text/plain output.
func TextOutput(text string) Output {
	return Output{Mime: MimeTextPlain, Data: []byte(text)}
}

// ErrorOutput builds an error output carrying the error text.
func ErrorOutput(text string) Output {
	return Output{Mime: MimeError, Data: []byte(text)}
}

// Text returns the output data as a string.
func (o Output) Text() string {
	return string(o.Data)
}

// Cell is one unit of a notebook.
type Cell struct {
	// ID identifies the cell in memory only. It is never persisted.
	ID string `json:"-"`

	Kind     CellKind `json:"kind"`
	Language string   `json:"language"`
	Text     string   `json:"text"`
	Outputs  []Output `json:"outputs,omitempty"`
}

// NewCell creates a cell with a fresh in-memory identity.
func NewCell(kind CellKind, text, language string) Cell {
	return Cell{
		ID:       uuid.NewString(),
		Kind:     kind,
		Language: language,
		Text:     text,
	}
}

// NewCodeCell creates a Code cell tagged with the Syntheto language.
func NewCodeCell(text string) Cell {
	return NewCell(CellKindCode, text, LanguageSyntheto)
}

// NewMarkupCell creates a Markup cell tagged as markdown.
func NewMarkupCell(text string) Cell {
	return NewCell(CellKindMarkup, text, LanguageMarkdown)
}

// IsCode reports whether the cell is a Code cell.
func (c Cell) IsCode() bool {
	return c.Kind == CellKindCode
}

// Clone deep-copies the cell including output bytes.
func (c Cell) Clone() Cell {
	out := c
	if c.Outputs != nil {
		out.Outputs = make([]Output, len(c.Outputs))
		for i, o := range c.Outputs {
			out.Outputs[i] = Output{Mime: o.Mime, Data: append([]byte(nil), o.Data...)}
		}
	}
	return out
}
