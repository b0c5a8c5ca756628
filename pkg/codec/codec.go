package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/mnb/pkg/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type rawNotebook struct {
	Cells    []rawCell      `json:"cells"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type rawCell struct {
	Kind       int     `json:"kind"`
	Language   string  `json:"language"`
	Value      string  `json:"value"`
	Editable   bool    `json:"editable"`
	OutputMime *string `json:"outputMime,omitempty"`
	OutputData *string `json:"outputData,omitempty"`
}

// Report describes information lost while serializing.
type Report struct {
	// DroppedOutputs counts outputs beyond the first one of each cell.
	DroppedOutputs int
	// Cells lists the indexes of cells that lost outputs.
	Cells []int
}

// Lossy reports whether any output was dropped.
func (r Report) Lossy() bool {
	return r.DroppedOutputs > 0
}

// Empty returns the notebook a failed decode degrades to.
func Empty() domain.Notebook {
	return domain.Notebook{Cells: []domain.Cell{}}
}

// Decode parses notebook bytes strictly.
// Invalid UTF-8 sequences are replaced rather than rejected, matching a non-fatal text decoder.
func Decode(data []byte) (domain.Notebook, error) {
	text := bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(text) {
		text = []byte(strings.ToValidUTF8(string(text), "\uFFFD"))
	}

	var raw rawNotebook
	if err := json.Unmarshal(text, &raw); err != nil {
		return Empty(), fmt.Errorf("%w: %v", domain.ErrMalformedNotebook, err)
	}
	if raw.Cells == nil {
		return Empty(), fmt.Errorf("%w: missing cells array", domain.ErrMalformedNotebook)
	}

	cells := make([]domain.Cell, 0, len(raw.Cells))
	for i, rc := range raw.Cells {
		kind := domain.CellKind(rc.Kind)
		if !kind.Valid() {
			return Empty(), fmt.Errorf("%w: cell %d has kind %d", domain.ErrUnknownCellKind, i, rc.Kind)
		}
		cell := domain.NewCell(kind, rc.Value, rc.Language)
		if rc.OutputMime != nil && rc.OutputData != nil && *rc.OutputMime != "" && *rc.OutputData != "" {
			cell.Outputs = []domain.Output{{Mime: *rc.OutputMime, Data: []byte(*rc.OutputData)}}
		}
		cells = append(cells, cell)
	}

	return domain.Notebook{Cells: cells, Metadata: raw.Metadata}, nil
}

// Deserialize parses notebook bytes and degrades to an empty notebook on any failure.
func Deserialize(data []byte) domain.Notebook {
	nb, err := Decode(data)
	if err != nil {
		return Empty()
	}
	return nb
}

// Serialize encodes a notebook into the persisted format.
func Serialize(nb domain.Notebook) ([]byte, error) {
	data, _, err := SerializeReport(nb)
	return data, err
}

// SerializeReport encodes a notebook and reports the outputs that did not fit the format.
func SerializeReport(nb domain.Notebook) ([]byte, Report, error) {
	var report Report
	raw := rawNotebook{
		Cells:    make([]rawCell, 0, len(nb.Cells)),
		Metadata: nb.Metadata,
	}

	for i, c := range nb.Cells {
		rc := rawCell{
			Kind:     int(c.Kind),
			Language: c.Language,
			Value:    c.Text,
			Editable: true,
		}
		if len(c.Outputs) > 0 {
			mime := c.Outputs[0].Mime
			data := strings.ToValidUTF8(string(c.Outputs[0].Data), "\uFFFD")
			rc.OutputMime = &mime
			rc.OutputData = &data
		}
		if len(c.Outputs) > 1 {
			report.DroppedOutputs += len(c.Outputs) - 1
			report.Cells = append(report.Cells, i)
		}
		raw.Cells = append(raw.Cells, rc)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(raw); err != nil {
		return nil, report, fmt.Errorf("failed to encode notebook: %w", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), report, nil
}

// Codec wraps the package functions and logs what they would otherwise swallow.
type Codec struct {
	logger *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithLogger configures the logger used for decode and data-loss warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) {
		c.logger = logger
	}
}

// New creates a Codec.
func New(opts ...Option) *Codec {
	c := &Codec{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deserialize decodes a notebook, logging a warning when it degrades to empty.
func (c *Codec) Deserialize(data []byte) domain.Notebook {
	nb, err := Decode(data)
	if err != nil {
		c.logger.Warn("Notebook could not be decoded, opening empty", "err", err, "size", len(data))
		return Empty()
	}
	return nb
}

// Serialize encodes a notebook, logging a warning when outputs are dropped.
func (c *Codec) Serialize(nb domain.Notebook) ([]byte, error) {
	data, report, err := SerializeReport(nb)
	if err != nil {
		return nil, err
	}
	if report.Lossy() {
		c.logger.Warn("Only the first output of each cell is persisted",
			"dropped", report.DroppedOutputs,
			"cells", report.Cells,
		)
	}
	return data, nil
}
