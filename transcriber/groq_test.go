package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestGroq(t *testing.T, handler http.Handler) *Groq {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGroq(Config{
		APIKey:          "test-key",
		TranscribeModel: "whisper-large-v3-turbo",
		RefineModel:     "test-refine-model",
		BaseURL:         srv.URL,
	})
}

func TestTranscribeRequest(t *testing.T) {
	var gotAuth, gotModel, gotFilename string
	var gotFile []byte

	g := newTestGroq(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %s, want /audio/transcriptions", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("file part: %v", err)
		}
		gotFilename = header.Filename
		gotFile, _ = io.ReadAll(file)
		fmt.Fprint(w, `{"text": "  hello world  "}`)
	}))

	result, err := g.Process(context.Background(), []byte("fake-flac"), Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Raw != "hello world" {
		t.Errorf("Raw = %q, want trimmed %q", result.Raw, "hello world")
	}
	if result.Refined != "" {
		t.Errorf("Refined = %q, want empty without refine option", result.Refined)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotModel != "whisper-large-v3-turbo" {
		t.Errorf("model field = %q", gotModel)
	}
	if gotFilename != "recording.flac" {
		t.Errorf("filename = %q, want recording.flac", gotFilename)
	}
	if string(gotFile) != "fake-flac" {
		t.Errorf("file body = %q", gotFile)
	}
}

func TestTranscribeErrorBodyVerbatim(t *testing.T) {
	g := newTestGroq(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "rate limit exceeded"}}`)
	}))

	_, err := g.Process(context.Background(), []byte("audio"), Options{})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	want := `{"error": {"message": "rate limit exceeded"}}`
	if err.Error() != want {
		t.Errorf("error = %q, want the response body verbatim", err.Error())
	}
}

func TestTranscribeErrorEmptyBody(t *testing.T) {
	g := newTestGroq(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := g.Process(context.Background(), []byte("audio"), Options{})
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if want := "transcription service error 502"; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func refineHandler(t *testing.T, chatBody string, onChat func(r *http.Request)) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio/transcriptions":
			fmt.Fprint(w, `{"text": "um so the raw transcript"}`)
		case "/chat/completions":
			if onChat != nil {
				onChat(r)
			}
			fmt.Fprint(w, chatBody)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

func TestRefineProducesRefinedText(t *testing.T) {
	var chatPayload []byte
	g := newTestGroq(t, refineHandler(t,
		`{"choices": [{"message": {"content": " The raw transcript. "}}]}`,
		func(r *http.Request) { chatPayload, _ = io.ReadAll(r.Body) },
	))

	result, err := g.Process(context.Background(), []byte("audio"), Options{Refine: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Raw != "um so the raw transcript" {
		t.Errorf("Raw = %q", result.Raw)
	}
	if result.Refined != "The raw transcript." {
		t.Errorf("Refined = %q, want trimmed content", result.Refined)
	}
	for _, want := range []string{"test-refine-model", "um so the raw transcript", "system"} {
		if !bytes.Contains(chatPayload, []byte(want)) {
			t.Errorf("chat payload missing %q: %s", want, chatPayload)
		}
	}
}

func TestRefineFallsBackOnEmptyContent(t *testing.T) {
	for name, body := range map[string]string{
		"no choices":    `{"choices": []}`,
		"empty content": `{"choices": [{"message": {"content": "   "}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			g := newTestGroq(t, refineHandler(t, body, nil))
			result, err := g.Process(context.Background(), []byte("audio"), Options{Refine: true})
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if result.Refined != "um so the raw transcript" {
				t.Errorf("Refined = %q, want fallback to raw", result.Refined)
			}
		})
	}
}

func TestRefineFailureFailsPipeline(t *testing.T) {
	g := newTestGroq(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio/transcriptions":
			fmt.Fprint(w, `{"text": "the raw transcript"}`)
		case "/chat/completions":
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "refine model unavailable")
		}
	}))

	_, err := g.Process(context.Background(), []byte("audio"), Options{Refine: true})
	if err == nil {
		t.Fatal("expected stage 2 failure to fail the pipeline")
	}
	if err.Error() != "refine model unavailable" {
		t.Errorf("error = %q, want the service body verbatim", err.Error())
	}
}
