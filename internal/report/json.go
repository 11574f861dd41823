package report

import (
	"encoding/json"
	"io"

	"github.com/tldrprivacy/policyscout/internal/database"
	"github.com/tldrprivacy/policyscout/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because it is sufficient for documents this small and
// model.Status already implements json.Marshaler.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// version is written into every document when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
	}
}

// WithVersion records the policyscout version in each document.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AnalysisDocument is the JSON form of one analysis.
//
// Design decision: We wrap the analysis rather than adding output-only
// fields to model.Analysis, so "source" and "outcome" are computed here.
type AnalysisDocument struct {
	Version string `json:"version,omitempty"`
	*model.Analysis
	Source  string `json:"source"`
	Outcome string `json:"outcome"`
}

// BatchDocument is the JSON form of a refresh run.
type BatchDocument struct {
	Version  string             `json:"version,omitempty"`
	Counts   map[string]int     `json:"counts"`
	Analyses []AnalysisDocument `json:"analyses"`
}

// HistoryDocument is the JSON form of a cache listing.
type HistoryDocument struct {
	Version  string                  `json:"version,omitempty"`
	Policies []database.PolicyRecord `json:"policies"`
}

// Write outputs one analysis.
func (w *JSONWriter) Write(a *model.Analysis) (int, error) {
	return w.writeJSON(w.document(a))
}

// WriteBatch outputs a refresh run.
func (w *JSONWriter) WriteBatch(analyses []*model.Analysis) (int, error) {
	doc := BatchDocument{
		Version:  w.version,
		Counts:   StatusCounts(analyses),
		Analyses: make([]AnalysisDocument, 0, len(analyses)),
	}
	for _, a := range analyses {
		if a == nil {
			continue
		}
		d := w.document(a)
		d.Version = ""
		doc.Analyses = append(doc.Analyses, d)
	}
	return w.writeJSON(doc)
}

// WriteHistory outputs cached policies.
func (w *JSONWriter) WriteHistory(records []database.PolicyRecord) (int, error) {
	if records == nil {
		records = []database.PolicyRecord{}
	}
	return w.writeJSON(HistoryDocument{Version: w.version, Policies: records})
}

func (w *JSONWriter) document(a *model.Analysis) AnalysisDocument {
	return AnalysisDocument{
		Version:  w.version,
		Analysis: a,
		Source:   a.Source(),
		Outcome:  Outcome(a),
	}
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
