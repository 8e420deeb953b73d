package history

import (
	"encoding/json"
	"reflect"
	"strconv"
	"testing"
)

func mustEncode(t *testing.T, threads []Thread) json.RawMessage {
	t.Helper()
	raw, err := Encode(threads)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return raw
}

func TestNormalizeDualListInterleaves(t *testing.T) {
	threads := Normalize(json.RawMessage(`[{"User": ["a", "b"], "Assistant": ["x"]}]`))
	if len(threads) != 1 {
		t.Fatalf("expected 1 thread, got %d", len(threads))
	}
	want := []Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "x"},
		{Role: RoleUser, Content: "b"},
	}
	if !reflect.DeepEqual(threads[0].Messages, want) {
		t.Fatalf("messages = %+v, want %+v", threads[0].Messages, want)
	}
	if threads[0].ChatID != "0" || threads[0].Title != "Session 1" {
		t.Fatalf("unexpected defaults: id=%q title=%q", threads[0].ChatID, threads[0].Title)
	}
}

func TestNormalizeDualListDropsEmptyAndKeepsLongerTail(t *testing.T) {
	threads := Normalize(json.RawMessage(`{"User": ["q1", "  "], "Assistant": ["a1", "a2", "a3"]}`))
	if len(threads) != 1 {
		t.Fatalf("expected a lone object to become one thread, got %d", len(threads))
	}
	want := []Message{
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleAssistant, Content: "a2"},
		{Role: RoleAssistant, Content: "a3"},
	}
	if !reflect.DeepEqual(threads[0].Messages, want) {
		t.Fatalf("messages = %+v, want %+v", threads[0].Messages, want)
	}
}

func TestNormalizePairsLayout(t *testing.T) {
	raw := json.RawMessage(`[{"ChatID": 7, "Title": "Bio", "Messages": [["user", "hi"], ["model", "hello", "2025-01-01T00:00:00Z"], ["user"], ["system", ""]]}]`)
	threads := Normalize(raw)
	if len(threads) != 1 {
		t.Fatalf("expected 1 thread, got %d", len(threads))
	}
	th := threads[0]
	if th.ChatID != "7" || th.Title != "Bio" {
		t.Fatalf("unexpected thread header: %+v", th)
	}
	want := []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello", Timestamp: "2025-01-01T00:00:00Z"},
	}
	if !reflect.DeepEqual(th.Messages, want) {
		t.Fatalf("messages = %+v, want %+v", th.Messages, want)
	}
}

func TestNormalizeObjectKeyVariants(t *testing.T) {
	raw := json.RawMessage(`[{"chat_id": "c1", "messages": [
		{"Role": "USER", "message": "question", "created_at": "t1"},
		{"author": "Assistant", "text": "answer", "time": "t2"},
		{"speaker": "system", "body": "be nice", "date": "t3"},
		{"role": "bot", "content": "fallback role"},
		{"role": "user", "content": "   "},
		"plain string",
		null
	]}]`)
	threads := Normalize(raw)
	want := []Message{
		{Role: RoleUser, Content: "question", Timestamp: "t1"},
		{Role: RoleAssistant, Content: "answer", Timestamp: "t2"},
		{Role: RoleSystem, Content: "be nice", Timestamp: "t3"},
		{Role: RoleAssistant, Content: "fallback role"},
		{Role: RoleAssistant, Content: "plain string"},
	}
	if len(threads) != 1 {
		t.Fatalf("expected 1 thread, got %d", len(threads))
	}
	if threads[0].ChatID != "c1" {
		t.Fatalf("chat id = %q", threads[0].ChatID)
	}
	if !reflect.DeepEqual(threads[0].Messages, want) {
		t.Fatalf("messages = %+v, want %+v", threads[0].Messages, want)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		`[{"User": ["a", "b"], "Assistant": ["x"]}]`,
		`[{"ChatID": "c1", "Title": "T", "CreatedAt": "2025", "UpdatedAt": "2026", "Notes": "n", "Messages": [["user", "q"], {"role": "assistant", "content": "a", "timestamp": "t"}]}]`,
		`[{"Messages": []}, "junk", {"id": 3, "messages": ["hello"]}]`,
		`{"Assistant": "only"}`,
		`[]`,
		`null`,
	}
	for _, in := range inputs {
		once := Normalize(json.RawMessage(in))
		twice := Normalize(mustEncode(t, once))
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("not idempotent for %s:\nonce:  %+v\ntwice: %+v", in, once, twice)
		}
	}
}

func TestNormalizeCanonicalIsFixedPoint(t *testing.T) {
	canonical := []Thread{{
		ChatID:    "01J0000000000000000000000",
		Title:     "Chemistry",
		CreatedAt: "2025-05-01T10:00:00.000000Z",
		UpdatedAt: "2025-05-01T10:05:00.000000Z",
		Messages: []Message{
			{Role: RoleUser, Content: "What is a mole?", Timestamp: "2025-05-01T10:00:01.000000Z"},
			{Role: RoleAssistant, Content: "A unit of amount.", Timestamp: "2025-05-01T10:00:02.000000Z"},
		},
	}}
	got := Normalize(mustEncode(t, canonical))
	if !reflect.DeepEqual(got, canonical) {
		t.Fatalf("canonical input changed:\ngot:  %+v\nwant: %+v", got, canonical)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	for _, in := range []string{``, `"text"`, `42`, `[1, 2]`, `{not json`} {
		if got := Normalize(json.RawMessage(in)); len(got) != 0 {
			t.Fatalf("expected no threads for %q, got %+v", in, got)
		}
	}
}

func TestDetectLayout(t *testing.T) {
	cases := map[string]Layout{
		`{"User": [], "Assistant": []}`:            LayoutDualList,
		`{"Messages": [["user", "x"]]}`:            LayoutPairs,
		`{"Messages": [null, {"role": "user"}]}`:   LayoutObjects,
		`{"ChatID": "c", "Title": "empty thread"}`: LayoutObjects,
		`{"Messages": [], "User": ["ignored"]}`:    LayoutObjects,
	}
	for in, want := range cases {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(in), &fields); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if got := DetectLayout(fields); got != want {
			t.Fatalf("DetectLayout(%s) = %v, want %v", in, got, want)
		}
	}
}

func TestAppendTruncatesToMostRecent(t *testing.T) {
	th := NewThread("c1", "T", "now")
	for i := 0; i < MaxStoredMessages+5; i++ {
		th.Append(Message{Role: RoleUser, Content: strconv.Itoa(i)})
	}
	if len(th.Messages) != MaxStoredMessages {
		t.Fatalf("expected %d messages, got %d", MaxStoredMessages, len(th.Messages))
	}
	for i, m := range th.Messages {
		if m.Content != strconv.Itoa(i+5) {
			t.Fatalf("message %d = %q, want %q", i, m.Content, strconv.Itoa(i+5))
		}
	}
}

func TestFind(t *testing.T) {
	threads := []Thread{NewThread("a", "A", ""), NewThread("b", "B", "")}
	if Find(threads, "b") != 1 {
		t.Fatalf("expected index 1")
	}
	if Find(threads, "z") != -1 {
		t.Fatalf("expected -1 for missing thread")
	}
}
