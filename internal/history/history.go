// Package history holds the canonical chat thread shape and migrates the
// legacy layouts found in stored records into it.
package history

import (
	"encoding/json"
	"strconv"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MaxStoredMessages bounds a thread's message list on every write.
const MaxStoredMessages = 40

type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

type Thread struct {
	ChatID    string    `json:"ChatID"`
	Title     string    `json:"Title"`
	CreatedAt string    `json:"CreatedAt"`
	UpdatedAt string    `json:"UpdatedAt,omitempty"`
	Notes     string    `json:"Notes,omitempty"`
	Messages  []Message `json:"Messages"`
}

func NewThread(chatID, title, createdAt string) Thread {
	return Thread{
		ChatID:    chatID,
		Title:     title,
		CreatedAt: createdAt,
		Messages:  []Message{},
	}
}

// Append adds m and keeps only the newest MaxStoredMessages.
func (t *Thread) Append(m ...Message) {
	t.Messages = Truncate(append(t.Messages, m...), MaxStoredMessages)
}

// Truncate returns the last n messages in order. Older messages are lost.
func Truncate(msgs []Message, n int) []Message {
	if n <= 0 {
		return []Message{}
	}
	if len(msgs) <= n {
		return msgs
	}
	return append([]Message(nil), msgs[len(msgs)-n:]...)
}

// Recent returns up to n trailing messages without copying.
func Recent(msgs []Message, n int) []Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// Find returns the index of the thread with chatID, or -1.
func Find(threads []Thread, chatID string) int {
	for i := range threads {
		if threads[i].ChatID == chatID {
			return i
		}
	}
	return -1
}

// Encode serializes canonical threads for storage.
func Encode(threads []Thread) (json.RawMessage, error) {
	if threads == nil {
		threads = []Thread{}
	}
	for i := range threads {
		if threads[i].Messages == nil {
			threads[i].Messages = []Message{}
		}
	}
	return json.Marshal(threads)
}

func defaultChatID(index int) string {
	return strconv.Itoa(index)
}

func defaultTitle(index int) string {
	return "Session " + strconv.Itoa(index+1)
}
