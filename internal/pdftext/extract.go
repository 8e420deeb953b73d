// Package pdftext turns uploaded PDF bytes into plain text through a chain of
// strategies of decreasing reliability, recording what each one did.
package pdftext

import (
	"errors"
	"fmt"
	"strings"
)

const (
	StrategyPDFCPU   = "pdfcpu"
	StrategyRSCPDF   = "rsc-pdf"
	StrategyLiterals = "raw-literals"
)

// Attempt records one strategy run.
type Attempt struct {
	Name            string `json:"name"`
	Available       bool   `json:"available"`
	Error           string `json:"error,omitempty"`
	PageCount       int    `json:"page_count"`
	ExtractedLength int    `json:"extracted_length"`
}

// Diagnostics is always populated, whichever strategy (if any) succeeded.
type Diagnostics struct {
	ByteSize       int       `json:"byte_size"`
	Strategy       string    `json:"strategy"`
	LiteralMatches int       `json:"literal_matches"`
	Attempts       []Attempt `json:"attempts"`
}

// PageError reports the first page a strategy could not read. The other pages
// keep their text.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string { return fmt.Sprintf("page %d: %v", e.Page, e.Err) }

func (e *PageError) Unwrap() error { return e.Err }

// pageReader extracts per-page text from a whole document.
type pageReader func(data []byte) (pages []string, err error)

type Extractor struct {
	primary   pageReader
	secondary pageReader
}

type Option func(*Extractor)

// WithoutPrimary marks the pdfcpu strategy unavailable.
func WithoutPrimary() Option {
	return func(e *Extractor) { e.primary = nil }
}

// WithoutSecondary marks the rsc.io/pdf strategy unavailable.
func WithoutSecondary() Option {
	return func(e *Extractor) { e.secondary = nil }
}

func New(opts ...Option) *Extractor {
	e := &Extractor{primary: pdfcpuPages, secondary: rscPages}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract never fails: errors and panics inside a strategy are recorded in the
// diagnostics and the next strategy runs. Text is empty only if all of them
// came back empty.
func (e *Extractor) Extract(data []byte) (string, Diagnostics) {
	diag := Diagnostics{ByteSize: len(data)}

	for _, s := range []struct {
		name string
		fn   pageReader
	}{
		{StrategyPDFCPU, e.primary},
		{StrategyRSCPDF, e.secondary},
	} {
		text, attempt := runPages(s.name, s.fn, data)
		diag.Attempts = append(diag.Attempts, attempt)
		if text != "" {
			diag.Strategy = s.name
			return text, diag
		}
	}

	literals := scanLiterals(decodeLatin1(data))
	text := collapseSpace(strings.Join(literals, " "))
	diag.LiteralMatches = len(literals)
	diag.Attempts = append(diag.Attempts, Attempt{
		Name:            StrategyLiterals,
		Available:       true,
		ExtractedLength: len(text),
	})
	if text != "" {
		diag.Strategy = StrategyLiterals
	}
	return text, diag
}

func runPages(name string, fn pageReader, data []byte) (text string, attempt Attempt) {
	attempt = Attempt{Name: name, Available: fn != nil}
	if fn == nil {
		return "", attempt
	}
	defer func() {
		if r := recover(); r != nil {
			text = ""
			attempt.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	pages, err := fn(data)
	attempt.PageCount = len(pages)
	if err != nil {
		attempt.Error = err.Error()
		var pageErr *PageError
		if !errors.As(err, &pageErr) {
			return "", attempt
		}
	}
	text = strings.TrimSpace(strings.Join(pages, "\n"))
	attempt.ExtractedLength = len(text)
	return text, attempt
}
