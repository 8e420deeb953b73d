package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/eta-study/eta-server/internal/pdftext"
	"github.com/eta-study/eta-server/internal/store"
	"github.com/eta-study/eta-server/internal/utils"
)

const (
	ContextTypePDF        = "pdf"
	ContextTypeVoiceReply = "voice_reply"

	// maxSummaryInput bounds the extracted text sent for summarization.
	maxSummaryInput = 30000

	summarySystemInstruction = "You summarize course material for a study assistant. " +
		"Write a dense summary of the key concepts, definitions and formulas in at most 250 words. " +
		"Do not add information that is not in the text."
)

// ContextService turns uploaded material into stored context summaries.
type ContextService struct {
	records
	generator Generator
	extractor *pdftext.Extractor
	logger    *zap.Logger
}

func NewContextService(s store.Store, gen Generator, ex *pdftext.Extractor, logger *zap.Logger) *ContextService {
	if ex == nil {
		ex = pdftext.New()
	}
	return &ContextService{records: records{store: s}, generator: gen, extractor: ex, logger: logger}
}

type IngestResult struct {
	EtaID      string             `json:"eta_id"`
	Context    store.ContextEntry `json:"context"`
	Upload     store.Upload       `json:"upload"`
	TextLength int                `json:"text_length"`
}

// Ingest extracts text from a PDF, summarizes it and appends the context and
// upload entries to the user's newest record.
func (s *ContextService) Ingest(ctx context.Context, etaID, filename string, data []byte) (*IngestResult, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, InvalidInput("file is required")
	}
	if len(data) == 0 {
		return nil, InvalidInput("uploaded file is empty")
	}
	rec, err := s.load(ctx, etaID, "")
	if err != nil {
		return nil, err
	}

	text, diag := s.extractor.Extract(data)
	s.logger.Info("extracted pdf text",
		zap.String("eta_id", rec.EtaID),
		zap.String("filename", filename),
		zap.String("strategy", diag.Strategy),
		zap.Int("length", len(text)),
	)

	summary := s.summarize(ctx, filename, text)
	diagJSON, err := json.Marshal(diag)
	if err != nil {
		return nil, fmt.Errorf("failed to encode diagnostics: %w", err)
	}

	now := utils.Now()
	entry := store.ContextEntry{
		Type:        ContextTypePDF,
		Summary:     summary,
		Filename:    filename,
		UploadDate:  now,
		Diagnostics: diagJSON,
	}
	upload := store.Upload{Filename: filename, Size: int64(len(data)), UploadDate: now}
	if _, err := s.update(ctx, rec.Key(), store.Update{
		AppendContext: []store.ContextEntry{entry},
		AppendUploads: []store.Upload{upload},
	}); err != nil {
		return nil, err
	}
	return &IngestResult{EtaID: rec.EtaID, Context: entry, Upload: upload, TextLength: len(text)}, nil
}

func (s *ContextService) summarize(ctx context.Context, filename, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Sprintf("No readable text could be extracted from %s.", filename)
	}
	if runes := []rune(text); len(runes) > maxSummaryInput {
		text = string(runes[:maxSummaryInput])
	}
	summary, err := s.generator.Generate(ctx, GenerateRequest{
		System: summarySystemInstruction,
		Prompt: fmt.Sprintf("Summarize the following material from %s:\n\n%s", filename, text),
	})
	if err != nil {
		s.logger.Warn("summary generation failed, storing excerpt", zap.String("filename", filename), zap.Error(err))
		return fallbackSummary(filename, text)
	}
	return summary
}

// fallbackSummary keeps the opening of the extracted text when no summary
// could be generated.
func fallbackSummary(filename, text string) string {
	const excerpt = 600
	runes := []rune(text)
	if len(runes) > excerpt {
		text = string(runes[:excerpt]) + "..."
	}
	return fmt.Sprintf("Summary unavailable for %s. Excerpt: %s", filename, text)
}
