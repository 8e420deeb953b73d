package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/eta-study/eta-server/internal/core"
	"github.com/eta-study/eta-server/internal/history"
	"github.com/eta-study/eta-server/internal/pdftext"
	"github.com/eta-study/eta-server/internal/store"
)

type stubGenerator struct {
	err   error
	reply string
}

func (g *stubGenerator) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if strings.Contains(req.System, "animation") {
		return "idle", nil
	}
	return g.reply, nil
}

type stubSynthesizer struct{ err error }

func (s stubSynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("ID3" + voiceID), nil
}

type stubVoices struct{}

func (stubVoices) VoiceFor(persona string) string { return "voice-" + strings.ReplaceAll(persona, " ", "-") }

type testEnv struct {
	store store.Store
	gen   *stubGenerator
	synth *stubSynthesizer
	srv   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store: store.NewMemoryStore(),
		gen:   &stubGenerator{reply: "Here is an answer."},
		synth: &stubSynthesizer{},
	}
	logger := zap.NewNop()
	svc := Services{
		Users:   core.NewUserService(env.store, logger),
		Context: core.NewContextService(env.store, env.gen, pdftext.New(), logger),
		Chat:    core.NewChatService(env.store, env.gen, logger),
		Study:   core.NewStudyService(env.store, env.gen, logger),
		Voice:   core.NewVoiceService(env.store, env.gen, env.synth, stubVoices{}, "", logger),
	}
	env.srv = httptest.NewServer(NewRouter(NewAPIHandler(svc, logger), RouterOptions{
		CORSOrigins: []string{"http://localhost:5173"},
	}))
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) seed(t *testing.T, rec store.Record) {
	t.Helper()
	if err := e.store.Put(context.Background(), &rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (e *testEnv) seedThread(t *testing.T, etaID, chatID string) {
	t.Helper()
	raw, _ := history.Encode([]history.Thread{history.NewThread(chatID, "Thermo", "2025-01-01T00:00:00.000000Z")})
	e.seed(t, store.Record{EtaID: etaID, UploadDate: "2025-01-01T00:00:00.000000Z", Name: "Ada", Email: "ada@example.com", ChatHistory: raw})
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	return resp
}

func readJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := get(t, env.srv.URL+"/health")
	expectStatus(t, resp, http.StatusOK)
	if body := readJSON[map[string]string](t, resp); body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestGetUserNotFoundAndLatest(t *testing.T) {
	env := newTestEnv(t)
	resp := get(t, env.srv.URL+"/get-user/ghost")
	expectStatus(t, resp, http.StatusNotFound)
	if body := readJSON[map[string]string](t, resp); body["error"] == "" {
		t.Fatalf("expected an error payload, got %v", body)
	}

	env.seed(t, store.Record{EtaID: "u1", UploadDate: "2025-01-01T00:00:00.000000Z", Name: "first"})
	env.seed(t, store.Record{EtaID: "u1", UploadDate: "2025-06-01T00:00:00.000000Z", Name: "latest"})

	resp = get(t, env.srv.URL+"/get-user/u1")
	expectStatus(t, resp, http.StatusOK)
	if u := readJSON[core.User](t, resp); u.Name != "latest" {
		t.Fatalf("expected latest record, got %+v", u)
	}

	resp = get(t, env.srv.URL+"/get-user/u1?upload_date=2025-01-01T00:00:00.000000Z")
	expectStatus(t, resp, http.StatusOK)
	if u := readJSON[core.User](t, resp); u.Name != "first" {
		t.Fatalf("expected exact record, got %+v", u)
	}
}

func TestGenerateUserAndSync(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.srv.URL+"/generate-user", map[string]string{"name": "Ada"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = postJSON(t, env.srv.URL+"/generate-user", map[string]string{"name": "Ada", "email": "ada@example.com", "auth0_sub": "auth0|ada"})
	expectStatus(t, resp, http.StatusCreated)
	created := readJSON[userResponse](t, resp)
	if created.EtaID == "" || created.UploadDate == "" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	resp = postJSON(t, env.srv.URL+"/user/sync", map[string]string{"auth0_sub": "auth0|ada", "name": "Ada L."})
	expectStatus(t, resp, http.StatusOK)
	synced := readJSON[userResponse](t, resp)
	if synced.EtaID != created.EtaID || synced.User.Name != "Ada L." || synced.Created == nil || *synced.Created {
		t.Fatalf("unexpected sync response: %+v", synced)
	}

	resp = postJSON(t, env.srv.URL+"/user/sync", map[string]string{"email": "new@example.com"})
	expectStatus(t, resp, http.StatusCreated)
	if fresh := readJSON[userResponse](t, resp); fresh.EtaID == created.EtaID {
		t.Fatalf("expected a new record")
	}
}

func TestCreateThreadCollisionAndFetch(t *testing.T) {
	env := newTestEnv(t)
	env.seedThread(t, "u1", "c1")

	resp := postJSON(t, env.srv.URL+"/thread/create_chat_thread", map[string]string{"eta_id": "u1", "chatID": "c1"})
	expectStatus(t, resp, http.StatusCreated)
	created := readJSON[threadResponse](t, resp)
	if created.Thread.ChatID == "c1" || created.Thread.ChatID == "" {
		t.Fatalf("expected a regenerated chat id, got %q", created.Thread.ChatID)
	}
	if created.Thread.Title != core.DefaultThreadTitle {
		t.Fatalf("title = %q", created.Thread.Title)
	}

	resp = get(t, env.srv.URL+"/thread/get_chat_thread/?etaId=u1&chatId="+created.Thread.ChatID)
	expectStatus(t, resp, http.StatusOK)
	if got := readJSON[threadResponse](t, resp); got.Thread.ChatID != created.Thread.ChatID {
		t.Fatalf("fetched wrong thread: %+v", got.Thread)
	}

	resp = get(t, env.srv.URL+"/thread/get_chat_thread?eta_id=u1&chatID=missing")
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestAddMessageFallbackIsPersisted(t *testing.T) {
	env := newTestEnv(t)
	env.seedThread(t, "u1", "c1")
	env.gen.err = errors.New("upstream exploded")

	resp := postJSON(t, env.srv.URL+"/thread/add_message", map[string]string{
		"eta_id": "u1", "chatID": "c1", "message": "What is entropy?", "persona": "professor",
	})
	expectStatus(t, resp, http.StatusOK)
	body := readJSON[addMessageResponse](t, resp)
	if body.AssistantMessage != core.FallbackReply {
		t.Fatalf("assistant_message = %q", body.AssistantMessage)
	}

	rec, err := env.store.Latest(context.Background(), "u1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	threads := history.Normalize(rec.ChatHistory)
	msgs := threads[0].Messages
	if len(msgs) != 2 || msgs[1].Content != core.FallbackReply {
		t.Fatalf("fallback not persisted: %+v", msgs)
	}
}

func TestAddMessageValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedThread(t, "u1", "c1")

	resp := postJSON(t, env.srv.URL+"/thread/add_message", map[string]string{"eta_id": "u1", "chatID": "c1"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp, err := http.Post(env.srv.URL+"/thread/add_message", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		_, _ = fw.Write(content)
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadContext(t *testing.T) {
	env := newTestEnv(t)
	env.seedThread(t, "u1", "c1")
	env.gen.reply = "A summary."

	body, ct := multipartBody(t, map[string]string{"etaId": "u1"}, "notes.txt", []byte("plain"))
	resp, err := http.Post(env.srv.URL+"/upload-context", ct, body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	body, ct = multipartBody(t, map[string]string{"eta_id": "u1"}, "lecture.PDF", []byte("junk (Hello) (World)"))
	resp, err = http.Post(env.srv.URL+"/upload-context", ct, body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	expectStatus(t, resp, http.StatusOK)
	res := readJSON[core.IngestResult](t, resp)
	if res.Context.Summary != "A summary." || res.Upload.Filename != "lecture.PDF" {
		t.Fatalf("unexpected ingest result: %+v", res)
	}

	resp = get(t, env.srv.URL+"/get-context/u1")
	expectStatus(t, resp, http.StatusOK)
	ctxBody := readJSON[struct {
		Context []store.ContextEntry `json:"context"`
	}](t, resp)
	if len(ctxBody.Context) != 1 || ctxBody.Context[0].Filename != "lecture.PDF" {
		t.Fatalf("unexpected context: %+v", ctxBody.Context)
	}
}

func TestStudyRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.seedThread(t, "u1", "c1")
	env.gen.reply = "generated text"

	for path, key := range map[string]string{
		"/generate-practice-problems": "practice_problems",
		"/generate-weekly-plan":       "weekly_plan",
		"/generate-notes":             "notes",
	} {
		resp := postJSON(t, env.srv.URL+path, map[string]string{"eta_id": "u1", "chatID": "c1"})
		expectStatus(t, resp, http.StatusOK)
		body := readJSON[map[string]json.RawMessage](t, resp)
		var text string
		if err := json.Unmarshal(body[key], &text); err != nil || text != "generated text" {
			t.Fatalf("%s: expected %s in response, got %s", path, key, body[key])
		}
		if _, ok := body["thread"]; !ok {
			t.Fatalf("%s: missing thread", path)
		}
	}
}

func TestVoiceResponse(t *testing.T) {
	env := newTestEnv(t)
	env.seedThread(t, "u1", "c1")

	resp := postJSON(t, env.srv.URL+"/voice-response", map[string]string{
		"eta_id": "u1", "chatID": "c1", "question": "Explain entropy", "persona": "Exam Coach",
	})
	expectStatus(t, resp, http.StatusOK)
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("content type = %q", ct)
	}
	if anim := resp.Header.Get("X-Animation"); anim != "idle" {
		t.Fatalf("X-Animation = %q", anim)
	}
	audio, _ := io.ReadAll(resp.Body)
	if string(audio) != "ID3voice-exam-coach" {
		t.Fatalf("audio = %q", audio)
	}

	resp = postJSON(t, env.srv.URL+"/voice-response", map[string]string{"eta_id": "u1", "chatID": "c1", "persona": "professor"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	env.synth.err = errors.New("tts down")
	resp = postJSON(t, env.srv.URL+"/voice-response", map[string]string{
		"eta_id": "u1", "chatID": "c1", "question": "q", "persona": "professor",
	})
	expectStatus(t, resp, http.StatusBadGateway)
	resp.Body.Close()
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{core.InvalidInput("bad %s", "field"), http.StatusBadRequest, "bad field"},
		{core.NotFound("user not found"), http.StatusNotFound, "user not found"},
		{core.Upstream("tts failed", errors.New("boom")), http.StatusBadGateway, "tts failed: boom"},
		{core.Storage("write failed", errors.New("disk full")), http.StatusInternalServerError, "storage failure"},
		{errors.New("kaboom"), http.StatusInternalServerError, "kaboom"},
	}
	for _, c := range cases {
		status, msg := statusFor(c.err)
		if status != c.status || msg != c.msg {
			t.Fatalf("statusFor(%v) = %d %q, want %d %q", c.err, status, msg, c.status, c.msg)
		}
	}
}
