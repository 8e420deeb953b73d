package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfcpuPages validates the document with pdfcpu and reads the text showing
// operators out of each page's content stream. Unreadable pages come back
// empty and the first failure is returned as a *PageError.
func pdfcpuPages(data []byte) ([]string, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	var firstErr error
	pages := make([]string, 0, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		text, err := pdfcpuPageText(ctx, pageNr)
		if err != nil && firstErr == nil {
			firstErr = &PageError{Page: pageNr, Err: err}
		}
		pages = append(pages, text)
	}
	return pages, firstErr
}

func pdfcpuPageText(ctx *model.Context, pageNr int) (string, error) {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return "", fmt.Errorf("extract content: %w", err)
	}
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return textFromContentStream(data), nil
}

// textFromContentStream keeps the string operands of Tj, TJ, ' and ".
// Positioning operators become whitespace.
func textFromContentStream(data []byte) string {
	var (
		sb       strings.Builder
		operands []string
	)
	runes := []rune(decodeLatin1(data))
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; {
		case isPDFSpace(r), r == '[', r == ']', r == '{', r == '}', r == ')', r == '>':
		case r == '%':
			for i < len(runes) && runes[i] != '\n' && runes[i] != '\r' {
				i++
			}
		case r == '(':
			lit, end, ok := readLiteral(runes, i+1)
			if !ok {
				return collapseSpace(sb.String())
			}
			operands = append(operands, lit)
			i = end
		case r == '<':
			// Dictionaries open with "<<"; hex strings carry glyph ids, not text.
			if i+1 < len(runes) && runes[i+1] == '<' {
				i++
				continue
			}
			for i < len(runes) && runes[i] != '>' {
				i++
			}
		default:
			j := i
			for j < len(runes) && !isPDFSpace(runes[j]) && !isPDFDelimiter(runes[j]) {
				j++
			}
			tok := string(runes[i:j])
			i = j - 1
			if r == '/' || isNumeric(r) {
				continue
			}
			applyTextOperator(&sb, tok, operands)
			operands = operands[:0]
		}
	}
	return collapseSpace(sb.String())
}

func applyTextOperator(sb *strings.Builder, op string, operands []string) {
	switch op {
	case "Tj", "TJ":
		for _, s := range operands {
			sb.WriteString(s)
		}
	case "'", `"`:
		sb.WriteByte('\n')
		for _, s := range operands {
			sb.WriteString(s)
		}
	case "Td", "TD", "Tm":
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
	case "T*", "ET":
		sb.WriteByte('\n')
	}
}

func isPDFSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isPDFDelimiter(r rune) bool {
	return strings.ContainsRune("()<>[]{}%", r)
}

func isNumeric(r rune) bool {
	return (r >= '0' && r <= '9') || r == '-' || r == '+' || r == '.'
}
