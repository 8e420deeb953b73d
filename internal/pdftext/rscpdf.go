package pdftext

import (
	"bytes"
	"errors"
	"math"
	"strings"

	"rsc.io/pdf"
)

// rscPages reads positioned glyph runs with rsc.io/pdf and joins them into
// lines by baseline.
func rscPages(data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var firstErr error
	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			if firstErr == nil {
				firstErr = &PageError{Page: i, Err: errors.New("page object missing")}
			}
			pages = append(pages, "")
			continue
		}
		pages = append(pages, rscPageText(p.Content().Text))
	}
	return pages, firstErr
}

func rscPageText(runs []pdf.Text) string {
	var sb strings.Builder
	lastY := math.NaN()
	for _, t := range runs {
		if !math.IsNaN(lastY) && math.Abs(t.Y-lastY) > t.FontSize/2 {
			sb.WriteByte('\n')
		}
		sb.WriteString(t.S)
		lastY = t.Y
	}
	return collapseSpace(sb.String())
}
