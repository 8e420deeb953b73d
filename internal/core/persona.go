package core

import "strings"

const (
	PersonaProfessor  = "professor"
	PersonaStudyBuddy = "study buddy"
	PersonaExamCoach  = "exam coach"
)

// Persona selects chat instructions and the voice-prompt suffix.
type Persona struct {
	Key         string
	Instruction string
	Suffix      string
}

var personas = map[string]Persona{
	PersonaProfessor: {
		Key: PersonaProfessor,
		Instruction: "You are ETA, a university professor helping a student. Explain concepts rigorously, " +
			"build from first principles and check understanding with a short question when useful.",
		Suffix: "Adopt the voice of a thoughtful professor: structured, calm, and paced to unpack theory step by step.",
	},
	PersonaStudyBuddy: {
		Key: PersonaStudyBuddy,
		Instruction: "You are ETA, a friendly study buddy. Keep explanations conversational and encouraging, " +
			"use relatable examples and summarize the key takeaway at the end.",
		Suffix: "Speak like a friendly study buddy, conversational and reassuring, highlighting key takeaways with relatable examples.",
	},
	PersonaExamCoach: {
		Key: PersonaExamCoach,
		Instruction: "You are ETA, an exam coach. Focus on what is likely to be tested, give concise answers " +
			"with actionable tips and point out common mistakes.",
		Suffix: "Sound like a high-energy exam coach who motivates, keeps momentum, and emphasises actionable tips.",
	},
}

// normalizePersonaKey lowercases key and treats '_' and '-' as spaces.
func normalizePersonaKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)
	return strings.Join(strings.Fields(key), " ")
}

// LookupPersona finds a persona by key.
func LookupPersona(key string) (Persona, bool) {
	p, ok := personas[normalizePersonaKey(key)]
	return p, ok
}

// PersonaFor is LookupPersona with the professor as fallback.
func PersonaFor(key string) Persona {
	if p, ok := LookupPersona(key); ok {
		return p
	}
	return personas[PersonaProfessor]
}
