package history

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Layout tags the stored shape a thread was found in.
type Layout int

const (
	// LayoutObjects is {"Messages": [{"role":..,"content":..,"timestamp":..}]},
	// which is also the canonical shape.
	LayoutObjects Layout = iota
	// LayoutPairs is {"Messages": [["user","hi"], ["assistant","hello", ts]]}.
	LayoutPairs
	// LayoutDualList is {"User": ["q1","q2"], "Assistant": ["a1"]}.
	LayoutDualList
)

func (l Layout) String() string {
	switch l {
	case LayoutPairs:
		return "pairs"
	case LayoutDualList:
		return "dual-list"
	default:
		return "objects"
	}
}

var (
	chatIDKeys    = []string{"ChatID", "chatID", "chatId", "chat_id", "id"}
	titleKeys     = []string{"Title", "title"}
	createdAtKeys = []string{"CreatedAt", "createdAt", "created_at"}
	updatedAtKeys = []string{"UpdatedAt", "updatedAt", "updated_at"}
	notesKeys     = []string{"Notes", "notes"}
	messagesKeys  = []string{"Messages", "messages"}
	userListKeys  = []string{"User", "user"}
	assistKeys    = []string{"Assistant", "assistant"}

	roleKeys      = []string{"role", "Role", "author", "speaker", "sender"}
	contentKeys   = []string{"content", "Content", "message", "text", "body"}
	timestampKeys = []string{"timestamp", "Timestamp", "created_at", "time", "date"}
)

// Normalize converts stored chat history into canonical threads. raw may be a
// list of thread-like objects or a single one; anything else yields an empty
// list. It is pure, and Normalize of an encoded result returns the same threads.
func Normalize(raw json.RawMessage) []Thread {
	raw = bytes.TrimSpace(raw)
	threads := []Thread{}
	if len(raw) == 0 {
		return threads
	}

	var items []json.RawMessage
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &items); err != nil {
			return threads
		}
	case '{':
		items = []json.RawMessage{raw}
	default:
		return threads
	}

	for i, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			continue
		}
		threads = append(threads, normalizeThread(fields, i))
	}
	return threads
}

// DetectLayout reports which stored shape fields uses.
func DetectLayout(fields map[string]json.RawMessage) Layout {
	if _, ok := lookup(fields, messagesKeys); !ok {
		_, hasUser := lookup(fields, userListKeys)
		_, hasAssistant := lookup(fields, assistKeys)
		if hasUser || hasAssistant {
			return LayoutDualList
		}
		return LayoutObjects
	}
	msgs, _ := lookup(fields, messagesKeys)
	var items []json.RawMessage
	if err := json.Unmarshal(msgs, &items); err != nil {
		return LayoutObjects
	}
	for _, it := range items {
		it = bytes.TrimSpace(it)
		if len(it) == 0 || bytes.Equal(it, []byte("null")) {
			continue
		}
		if it[0] == '[' {
			return LayoutPairs
		}
		return LayoutObjects
	}
	return LayoutObjects
}

func normalizeThread(fields map[string]json.RawMessage, index int) Thread {
	t := Thread{
		ChatID:    stringField(fields, chatIDKeys),
		Title:     stringField(fields, titleKeys),
		CreatedAt: stringField(fields, createdAtKeys),
		UpdatedAt: stringField(fields, updatedAtKeys),
		Notes:     stringField(fields, notesKeys),
	}
	if t.ChatID == "" {
		t.ChatID = defaultChatID(index)
	}
	if strings.TrimSpace(t.Title) == "" {
		t.Title = defaultTitle(index)
	}

	switch DetectLayout(fields) {
	case LayoutDualList:
		t.Messages = interleave(fields)
	default:
		// Pairs and objects share one per-element path, so mixed lists work too.
		raw, _ := lookup(fields, messagesKeys)
		t.Messages = normalizeMessages(raw)
	}
	if t.Messages == nil {
		t.Messages = []Message{}
	}
	return t
}

// interleave merges the dual-list layout as user[0], assistant[0], user[1], ...
// When one list is longer its unmatched tail follows in order.
func interleave(fields map[string]json.RawMessage) []Message {
	users := listField(fields, userListKeys)
	assistants := listField(fields, assistKeys)

	var out []Message
	for i := 0; i < len(users) || i < len(assistants); i++ {
		if i < len(users) {
			if m, ok := dualListEntry(users[i], RoleUser); ok {
				out = append(out, m)
			}
		}
		if i < len(assistants) {
			if m, ok := dualListEntry(assistants[i], RoleAssistant); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

func dualListEntry(raw json.RawMessage, role Role) (Message, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Message{}, false
		}
		content := stringField(obj, contentKeys)
		if strings.TrimSpace(content) == "" {
			return Message{}, false
		}
		return Message{Role: role, Content: content, Timestamp: stringField(obj, timestampKeys)}, true
	}
	content, _ := scalarString(raw)
	if strings.TrimSpace(content) == "" {
		return Message{}, false
	}
	return Message{Role: role, Content: content}, true
}

func normalizeMessages(raw json.RawMessage) []Message {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []Message
	for _, it := range items {
		if m, ok := NormalizeMessage(it); ok {
			out = append(out, m)
		}
	}
	return out
}

// NormalizeMessage accepts an object with role/content/timestamp under any of
// the known key spellings, a positional [role, content(, timestamp)] array, or
// a bare string (assistant). Empty content is rejected.
func NormalizeMessage(raw json.RawMessage) (Message, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Message{}, false
	}

	var m Message
	switch raw[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return Message{}, false
		}
		m = Message{
			Role:      NormalizeRole(stringField(obj, roleKeys)),
			Content:   stringField(obj, contentKeys),
			Timestamp: stringField(obj, timestampKeys),
		}
	case '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil || len(parts) < 2 {
			return Message{}, false
		}
		role, _ := scalarString(parts[0])
		content, _ := scalarString(parts[1])
		m = Message{Role: NormalizeRole(role), Content: content}
		if len(parts) > 2 {
			m.Timestamp, _ = scalarString(parts[2])
		}
	default:
		content, ok := scalarString(raw)
		if !ok {
			return Message{}, false
		}
		m = Message{Role: RoleAssistant, Content: content}
	}

	if strings.TrimSpace(m.Content) == "" {
		return Message{}, false
	}
	return m, true
}

// NormalizeRole maps free-form role names onto the three canonical roles.
func NormalizeRole(raw string) Role {
	r := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case r == "user":
		return RoleUser
	case r == "system":
		return RoleSystem
	default:
		return RoleAssistant
	}
}

func lookup(fields map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			if trimmed := bytes.TrimSpace(v); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
				return v, true
			}
		}
	}
	return nil, false
}

func stringField(fields map[string]json.RawMessage, keys []string) string {
	v, ok := lookup(fields, keys)
	if !ok {
		return ""
	}
	s, _ := scalarString(v)
	return s
}

func listField(fields map[string]json.RawMessage, keys []string) []json.RawMessage {
	v, ok := lookup(fields, keys)
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		// A lone scalar counts as a one-element list.
		return []json.RawMessage{v}
	}
	return items
}

// scalarString renders a JSON value as text: strings unquoted, numbers and
// booleans verbatim, objects and arrays as compact JSON. null is "", false.
func scalarString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	if raw[0] == '{' || raw[0] == '[' {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", false
		}
		return buf.String(), true
	}
	return string(raw), true
}
