package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"quill/log"
)

const DefaultBaseURL = "https://api.groq.com/openai/v1"

// refineInstruction is the fixed system prompt for the second stage. The
// contract: fix grammar and punctuation, drop filler words, preserve meaning
// and length, return only the text.
const refineInstruction = `You are a helpful assistant that refines voice transcripts for clarity and grammar.
Your task is to:
1. Fix grammar and punctuation
2. Improve sentence structure
3. Remove filler words (um, uh, like, you know)
4. Maintain the original meaning and intent
5. Keep the same overall length

Return ONLY the refined text, no explanations.`

// Config parameterizes the Groq-backed pipeline.
type Config struct {
	APIKey          string
	TranscribeModel string // stage 1, whisper family
	RefineModel     string // stage 2, chat model
	BaseURL         string // override for tests; DefaultBaseURL when empty
}

// Groq implements Pipeline against the Groq OpenAI-compatible API: a
// multipart audio upload for stage 1 and a chat completion for stage 2.
type Groq struct {
	client *TracedClient
	cfg    Config
}

func NewGroq(cfg Config) *Groq {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Groq{
		client: NewTracedClient(cfg.BaseURL + "/audio/transcriptions"),
		cfg:    cfg,
	}
}

// Warm pre-opens the HTTPS connection.
func (g *Groq) Warm() { g.client.Warm() }

// Process runs stage 1 and, when opts.Refine is set, stage 2. Stage 2
// transport or service failures fail the whole invocation even though stage
// 1 succeeded; an empty refinement falls back to the raw transcript instead.
func (g *Groq) Process(ctx context.Context, audio []byte, opts Options) (Result, error) {
	raw, err := g.transcribe(ctx, audio)
	if err != nil {
		return Result{}, err
	}

	if !opts.Refine {
		return Result{Raw: raw}, nil
	}

	refined, err := g.refine(ctx, raw)
	if err != nil {
		return Result{}, err
	}
	return Result{Raw: raw, Refined: refined}, nil
}

type transcribeResponse struct {
	Text string `json:"text"`
}

func (g *Groq) transcribe(ctx context.Context, audio []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "recording.flac")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	writer.WriteField("model", g.cfg.TranscribeModel)
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	reportStage("transcription", resp)
	if resp.StatusCode != http.StatusOK {
		return "", serviceError(resp, "transcription")
	}

	var tr transcribeResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil {
		return "", fmt.Errorf("transcription response parse error: %w", err)
	}
	return strings.TrimSpace(tr.Text), nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *Groq) refine(ctx context.Context, raw string) (string, error) {
	payload := chatRequest{
		Model: g.cfg.RefineModel,
		Messages: []chatMessage{
			{Role: "system", Content: refineInstruction},
			{Role: "user", Content: "Refine this transcript:\n\n" + raw},
		},
		MaxTokens:   2000,
		Temperature: 0.3,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	reportStage("refinement", resp)
	if resp.StatusCode != http.StatusOK {
		return "", serviceError(resp, "refinement")
	}

	var cr chatResponse
	if err := json.Unmarshal(resp.Body, &cr); err != nil {
		return "", fmt.Errorf("refinement response parse error: %w", err)
	}

	// No usable content is not an error: keep the raw transcript.
	if len(cr.Choices) == 0 {
		return raw, nil
	}
	refined := strings.TrimSpace(cr.Choices[0].Message.Content)
	if refined == "" {
		return raw, nil
	}
	return refined, nil
}

// reportStage logs the request timing and rate-limit headroom for one
// pipeline stage. Failed requests are reported too.
func reportStage(stage string, resp *TracedResponse) {
	m := resp.Metrics
	remaining := firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests")
	limit := firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")
	log.PipelineMetrics(stage, log.NetworkMetrics{
		DNSMs:     float64(m.DNS.Microseconds()) / 1000,
		TLSMs:     float64(m.TLS.Microseconds()) / 1000,
		TTFBMs:    float64(m.TTFB.Microseconds()) / 1000,
		TotalMs:   float64(m.Total.Microseconds()) / 1000,
		Reused:    m.ConnReused,
		Protocol:  m.TLSProtocol,
		RateLimit: remaining + "/" + limit,
	})
}

// serviceError turns a non-2xx response into an error whose message is the
// service's response body, verbatim, so the user sees what the API said.
func serviceError(resp *TracedResponse, stage string) error {
	msg := strings.TrimSpace(string(resp.Body))
	if msg == "" {
		msg = fmt.Sprintf("%s service error %d", stage, resp.StatusCode)
	}
	return errors.New(msg)
}
