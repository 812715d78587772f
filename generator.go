/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

const minQuizText = 20

// QuizGenerator turns source text into quiz questions.
type QuizGenerator interface {
	Generate(ctx context.Context, text string) ([]Question, error)
}

// checkQuizText enforces the minimum length and truncates text to at most
// maxChars characters.
func checkQuizText(text string, maxChars int) (string, error) {
	if len([]rune(strings.TrimSpace(text))) < minQuizText {
		return "", ErrTextTooShort
	}
	if runes := []rune(text); len(runes) > maxChars {
		text = string(runes[:maxChars])
	}
	return text, nil
}

// httpGenerator calls an external generation service that accepts
// {"content": text} and answers {"questions": [...]}.
type httpGenerator struct {
	url      string
	maxChars int
	client   *http.Client
}

func newHTTPGenerator(cfg *Config) *httpGenerator {
	return &httpGenerator{
		url:      cfg.generatorURL,
		maxChars: cfg.maxChars,
		client:   &http.Client{Timeout: cfg.generatorTimeout},
	}
}

type generateQuizBody struct {
	Content string `json:"content"`
}

type generatedQuiz struct {
	Questions []Question `json:"questions"`
}

func (g *httpGenerator) Generate(ctx context.Context, text string) ([]Question, error) {
	text, err := checkQuizText(text, g.maxChars)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(generateQuizBody{Content: text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: generator returned %d: %s", ErrGenerationFailed, resp.StatusCode, bytes.TrimSpace(detail))
	}

	var quiz generatedQuiz
	if err := json.NewDecoder(resp.Body).Decode(&quiz); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	questions := make([]Question, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		if err := validate.Struct(q); err != nil {
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: received empty questions array", ErrGenerationFailed)
	}

	return questions, nil
}

type generateRequestBody struct {
	Text string `json:"text"`
}

// serveGenerateQuiz proxies a host's source text to the generator.
func serveGenerateQuiz(cfg *Config, gen QuizGenerator) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		// The server-wide write timeout is shorter than a generation call.
		_ = http.NewResponseController(w).SetWriteDeadline(startTime.Add(cfg.generatorTimeout + timeout))

		var body generateRequestBody
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorAck{Error: ErrInvalidPayload.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), cfg.generatorTimeout)
		defer cancel()

		questions, err := gen.Generate(ctx, body.Text)
		switch {
		case err == nil:
		case errors.Is(err, ErrTextTooShort):
			writeJSON(w, http.StatusBadRequest, errorAck{Error: err.Error()})
			return
		default:
			logf(cfg, "QUIZ: Generation for %s failed: %v", realIP(r), err)
			writeJSON(w, http.StatusBadGateway, errorAck{Error: publicMessage(err)})
			return
		}

		writeJSON(w, http.StatusOK, generatedQuiz{Questions: questions})

		logf(cfg, "QUIZ: Generated %d questions for %s in %s",
			len(questions),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
