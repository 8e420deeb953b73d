package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/eta-study/eta-server/internal/store"
	"github.com/eta-study/eta-server/internal/utils"
)

const (
	DefaultSystemPrompt = "You are ETA, a concise teaching assistant who explains concepts clearly."
	DefaultAnimation    = "talking"

	voiceFallbackReply = "Sorry, I couldn't put an answer together just now. Please ask me again in a moment."
)

// Animations is the set of avatar animations a reply may be tagged with.
var Animations = []string{"talking", "idle", "dancing", "dying", "gangnam", "defeated", "taunt"}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

type VoiceResolver interface {
	VoiceFor(persona string) string
}

type VoiceService struct {
	records
	generator   Generator
	synthesizer Synthesizer
	voices      VoiceResolver
	basePrompt  string
	logger      *zap.Logger
}

func NewVoiceService(s store.Store, gen Generator, synth Synthesizer, voices VoiceResolver, basePrompt string, logger *zap.Logger) *VoiceService {
	if strings.TrimSpace(basePrompt) == "" {
		basePrompt = DefaultSystemPrompt
	}
	return &VoiceService{
		records:     records{store: s},
		generator:   gen,
		synthesizer: synth,
		voices:      voices,
		basePrompt:  basePrompt,
		logger:      logger,
	}
}

type VoiceRequest struct {
	Question string
	Persona  string
	EtaID    string
	ChatID   string
}

type VoiceResult struct {
	Audio     []byte
	Animation string
	Reply     string
	VoiceID   string
}

// resolve returns the system prompt and voice for persona. Unknown personas
// get the base prompt and the default voice.
func (s *VoiceService) resolve(persona string) (string, string) {
	p, ok := LookupPersona(persona)
	if !ok {
		return s.basePrompt, s.voices.VoiceFor("")
	}
	return s.basePrompt + "\n\nPersona instructions: " + p.Suffix, s.voices.VoiceFor(p.Key)
}

// Respond answers question aloud. Reply and animation generation degrade to
// fallbacks; a synthesis failure fails the request.
func (s *VoiceService) Respond(ctx context.Context, req VoiceRequest) (*VoiceResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, InvalidInput("question is required")
	}
	if strings.TrimSpace(req.Persona) == "" {
		return nil, InvalidInput("persona is required")
	}
	rec, threads, idx, err := s.thread(ctx, req.EtaID, req.ChatID)
	if err != nil {
		return nil, err
	}
	thread := threads[idx]

	persona, voiceID := s.resolve(req.Persona)
	system := new(PromptBuilder).
		Section("", persona).
		Conversation(thread.Messages).
		Material(rec.Context).
		String()

	reply, err := s.generator.Generate(ctx, GenerateRequest{System: system, Prompt: req.Question})
	if err != nil {
		s.logger.Warn("voice reply generation failed, using fallback", zap.String("chat_id", thread.ChatID), zap.Error(err))
		reply = voiceFallbackReply
	}
	animation := s.animationFor(ctx, reply)

	audio, err := s.synthesizer.Synthesize(ctx, reply, voiceID)
	if err != nil {
		return nil, Upstream("speech synthesis failed", err)
	}

	diag, _ := json.Marshal(map[string]string{
		"chat_id":   thread.ChatID,
		"persona":   req.Persona,
		"voice_id":  voiceID,
		"animation": animation,
		"question":  req.Question,
	})
	if _, err := s.update(ctx, rec.Key(), store.Update{AppendContext: []store.ContextEntry{{
		Type:        ContextTypeVoiceReply,
		Summary:     reply,
		UploadDate:  utils.Now(),
		Diagnostics: diag,
	}}}); err != nil {
		return nil, err
	}

	return &VoiceResult{Audio: audio, Animation: animation, Reply: reply, VoiceID: voiceID}, nil
}

func (s *VoiceService) animationFor(ctx context.Context, reply string) string {
	tag, err := s.generator.Generate(ctx, GenerateRequest{
		System: "You pick an animation for a 3D teaching avatar. Answer with exactly one word from this list: " +
			strings.Join(Animations, ", ") + ".",
		Prompt:      fmt.Sprintf("Which animation fits this reply best?\n\n%s", reply),
		MaxTokens:   5,
		Temperature: 0.2,
	})
	if err != nil {
		return DefaultAnimation
	}
	return ParseAnimation(tag)
}

// ParseAnimation maps generated text onto Animations, DefaultAnimation when
// nothing matches.
func ParseAnimation(raw string) string {
	word := strings.ToLower(strings.Trim(strings.TrimSpace(raw), "\"'.!`*"))
	for _, a := range Animations {
		if word == a {
			return a
		}
	}
	return DefaultAnimation
}
