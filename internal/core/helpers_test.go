package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/eta-study/eta-server/internal/history"
	"github.com/eta-study/eta-server/internal/store"
)

// fakeGenerator records requests and answers through respond. Title and
// animation requests are recognised by their system instruction.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   []GenerateRequest
	respond func(req GenerateRequest) (string, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	if g.respond == nil {
		return "generated", nil
	}
	return g.respond(req)
}

func (g *fakeGenerator) requests() []GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]GenerateRequest(nil), g.calls...)
}

func isTitleRequest(req GenerateRequest) bool {
	return req.System == titleSystemInstruction
}

func isAnimationRequest(req GenerateRequest) bool {
	return strings.Contains(req.System, "animation")
}

func failingGenerator() *fakeGenerator {
	return &fakeGenerator{respond: func(GenerateRequest) (string, error) {
		return "", errors.New("model overloaded")
	}}
}

type fakeSynthesizer struct {
	calls   int
	text    string
	voiceID string
	err     error
}

func (s *fakeSynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	s.calls++
	s.text, s.voiceID = text, voiceID
	if s.err != nil {
		return nil, s.err
	}
	return []byte("mp3:" + text), nil
}

type fakeVoices map[string]string

func (v fakeVoices) VoiceFor(persona string) string {
	if id, ok := v[persona]; ok {
		return id
	}
	return "default-voice"
}

func seedRecord(t *testing.T, s store.Store, rec store.Record) store.Key {
	t.Helper()
	if err := s.Put(context.Background(), &rec); err != nil {
		t.Fatalf("seed %s: %v", rec.EtaID, err)
	}
	return rec.Key()
}

func seedThreads(t *testing.T, s store.Store, etaID string, threads ...history.Thread) store.Key {
	t.Helper()
	raw, err := history.Encode(threads)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return seedRecord(t, s, store.Record{
		EtaID:       etaID,
		UploadDate:  "2025-01-01T00:00:00.000000Z",
		Name:        "Ada",
		Email:       "ada@example.com",
		Context:     []store.ContextEntry{{Type: ContextTypePDF, Filename: "thermo.pdf", Summary: "Entropy always increases."}},
		ChatHistory: raw,
	})
}

func storedThreads(t *testing.T, s store.Store, key store.Key) []history.Thread {
	t.Helper()
	rec, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var threads []history.Thread
	if err := json.Unmarshal(rec.ChatHistory, &threads); err != nil {
		t.Fatalf("stored history is not canonical: %v", err)
	}
	return threads
}

func requireKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("expected kind %v, got %v (%v)", want, got, err)
	}
}
