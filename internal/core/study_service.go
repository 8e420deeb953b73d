package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/eta-study/eta-server/internal/history"
	"github.com/eta-study/eta-server/internal/store"
	"github.com/eta-study/eta-server/internal/utils"
)

type studyTool struct {
	name        string
	instruction string
	fallback    string
	// keepNotes also stores the result in Thread.Notes.
	keepNotes bool
}

var (
	practiceTool = studyTool{
		name: "practice problems",
		instruction: "Create 3 to 5 practice problems based on the course material and the conversation. " +
			"Number them, vary the difficulty and put short worked answers at the end under an \"Answers\" heading.",
		fallback: "I couldn't generate practice problems right now. Try again shortly, or ask me to quiz you on a specific topic.",
	}
	weeklyPlanTool = studyTool{
		name: "weekly plan",
		instruction: "Write a 7-day study plan covering the course material and the topics from the conversation. " +
			"Give each day a focus, 2 or 3 concrete tasks and an estimated time.",
		fallback: "I couldn't build a weekly plan right now. Try again shortly.",
	}
	notesTool = studyTool{
		name: "notes",
		instruction: "Write concise study notes for this session as a bulleted outline: key concepts, " +
			"definitions, formulas and open questions the student still has.",
		fallback:  "I couldn't generate notes for this session right now. Try again shortly.",
		keepNotes: true,
	}
)

type StudyService struct {
	records
	generator Generator
	logger    *zap.Logger
}

func NewStudyService(s store.Store, gen Generator, logger *zap.Logger) *StudyService {
	return &StudyService{records: records{store: s}, generator: gen, logger: logger}
}

type StudyRequest struct {
	EtaID  string
	ChatID string
	// Focus optionally narrows the request, e.g. a topic for practice problems.
	Focus string
}

type StudyResult struct {
	Thread *history.Thread
	Text   string
}

func (s *StudyService) PracticeProblems(ctx context.Context, req StudyRequest) (*StudyResult, error) {
	return s.run(ctx, req, practiceTool)
}

func (s *StudyService) WeeklyPlan(ctx context.Context, req StudyRequest) (*StudyResult, error) {
	return s.run(ctx, req, weeklyPlanTool)
}

func (s *StudyService) Notes(ctx context.Context, req StudyRequest) (*StudyResult, error) {
	return s.run(ctx, req, notesTool)
}

func (s *StudyService) run(ctx context.Context, req StudyRequest, tool studyTool) (*StudyResult, error) {
	rec, threads, idx, err := s.thread(ctx, req.EtaID, req.ChatID)
	if err != nil {
		return nil, err
	}
	thread := &threads[idx]

	b := new(PromptBuilder).
		Material(rec.Context).
		Conversation(thread.Messages)
	if focus := strings.TrimSpace(req.Focus); focus != "" {
		b.Section("Student request", focus)
	}
	prompt := b.Section("Task", tool.instruction).String()

	text, err := s.generator.Generate(ctx, GenerateRequest{
		System: PersonaFor(PersonaProfessor).Instruction,
		Prompt: prompt,
	})
	if err != nil {
		s.logger.Warn("study tool generation failed, storing fallback",
			zap.String("tool", tool.name), zap.String("chat_id", thread.ChatID), zap.Error(err))
		text = tool.fallback
	}

	now := utils.Now()
	thread.Append(history.Message{Role: history.RoleAssistant, Content: text, Timestamp: now})
	if tool.keepNotes {
		thread.Notes = text
	}
	thread.UpdatedAt = now

	if err := s.saveThreads(ctx, rec.Key(), threads); err != nil {
		return nil, err
	}
	return &StudyResult{Thread: thread, Text: text}, nil
}
