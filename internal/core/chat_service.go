package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/eta-study/eta-server/internal/history"
	"github.com/eta-study/eta-server/internal/store"
	"github.com/eta-study/eta-server/internal/utils"
)

const (
	DefaultThreadTitle = "New Chat"

	// FallbackReply is stored in place of a reply the generator could not produce.
	FallbackReply = "I'm sorry, I couldn't generate a response right now. Please try again in a moment."

	maxChatIDAttempts = 8
)

type ChatService struct {
	records
	generator Generator
	logger    *zap.Logger
	newChatID func() string
}

func NewChatService(s store.Store, gen Generator, logger *zap.Logger) *ChatService {
	return &ChatService{
		records:   records{store: s},
		generator: gen,
		logger:    logger,
		newChatID: utils.NewChatID,
	}
}

type CreateThreadRequest struct {
	EtaID  string
	ChatID string
	Title  string
}

// CreateThread adds an empty thread. A requested ChatID is kept unless it is
// empty or already used in the record, in which case a fresh one is generated.
func (s *ChatService) CreateThread(ctx context.Context, req CreateThreadRequest) (*history.Thread, error) {
	rec, err := s.load(ctx, req.EtaID, "")
	if err != nil {
		return nil, err
	}
	threads := history.Normalize(rec.ChatHistory)

	chatID := strings.TrimSpace(req.ChatID)
	for attempt := 0; chatID == "" || history.Find(threads, chatID) >= 0; attempt++ {
		if attempt == maxChatIDAttempts {
			return nil, Storage("failed to allocate a unique chat id", nil)
		}
		chatID = s.newChatID()
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = DefaultThreadTitle
	}
	thread := history.NewThread(chatID, title, utils.Now())
	threads = append(threads, thread)

	if err := s.saveThreads(ctx, rec.Key(), threads); err != nil {
		return nil, err
	}
	s.logger.Info("created thread", zap.String("eta_id", rec.EtaID), zap.String("chat_id", chatID))
	return &thread, nil
}

func (s *ChatService) GetThread(ctx context.Context, etaID, chatID string) (*history.Thread, error) {
	_, threads, idx, err := s.thread(ctx, etaID, chatID)
	if err != nil {
		return nil, err
	}
	return &threads[idx], nil
}

type AddMessageRequest struct {
	EtaID   string
	ChatID  string
	Message string
	Persona string
}

type AddMessageResult struct {
	Thread           *history.Thread
	AssistantMessage string
}

// AddMessage appends the user's message and the generated reply. A failed
// generation stores FallbackReply instead of failing the request.
func (s *ChatService) AddMessage(ctx context.Context, req AddMessageRequest) (*AddMessageResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, InvalidInput("message is required")
	}
	rec, threads, idx, err := s.thread(ctx, req.EtaID, req.ChatID)
	if err != nil {
		return nil, err
	}
	thread := &threads[idx]
	firstExchange := len(thread.Messages) == 0

	thread.Append(history.Message{Role: history.RoleUser, Content: req.Message, Timestamp: utils.Now()})

	persona := PersonaFor(req.Persona)
	prompt := new(PromptBuilder).
		Material(rec.Context).
		Conversation(thread.Messages).
		Section("", "Reply to the student's latest message.").
		String()

	reply, err := s.generator.Generate(ctx, GenerateRequest{System: persona.Instruction, Prompt: prompt})
	if err != nil {
		s.logger.Warn("reply generation failed, storing fallback",
			zap.String("eta_id", rec.EtaID), zap.String("chat_id", thread.ChatID), zap.Error(err))
		reply = FallbackReply
	}
	thread.Append(history.Message{Role: history.RoleAssistant, Content: reply, Timestamp: utils.Now()})

	if firstExchange && thread.Title == DefaultThreadTitle {
		if title, err := GenerateTitle(ctx, s.generator, req.Message); err != nil {
			s.logger.Debug("title generation failed", zap.String("chat_id", thread.ChatID), zap.Error(err))
		} else {
			thread.Title = title
		}
	}
	thread.UpdatedAt = utils.Now()

	if err := s.saveThreads(ctx, rec.Key(), threads); err != nil {
		return nil, err
	}
	return &AddMessageResult{Thread: thread, AssistantMessage: reply}, nil
}
