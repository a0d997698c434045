// Package quizgen implements quiz.Generator backends.
package quizgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/studyhub/core"
	"github.com/trezcool/studyhub/core/quiz"
)

const (
	chatEndpoint  = "/v1/chat/completions"
	maxPromptRune = 12000
	systemPrompt  = `You write multiple choice quizzes for students. Answer with a JSON object of the form
{"questions":[{"question":"...","options":["...","...","...","..."],"correctIndex":0,"explanation":"..."}]}.
Every question has exactly 4 options and one correct answer.`
)

// OpenAI generates questions through an OpenAI compatible chat completions API.
type OpenAI struct {
	client  *rest.Client
	baseURL string
	apiKey  string
	model   string
}

var _ quiz.Generator = (*OpenAI)(nil) // interface compliance check

func NewOpenAI(conf *core.Config) *OpenAI {
	return &OpenAI{
		client:  &rest.Client{HTTPClient: &http.Client{Timeout: conf.QuizGen.Timeout}},
		baseURL: strings.TrimRight(conf.QuizGen.BaseURL, "/"),
		apiKey:  conf.QuizGen.APIKey,
		model:   conf.QuizGen.Model,
	}
}

type (
	chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	chatRequest struct {
		Model          string            `json:"model"`
		Messages       []chatMessage     `json:"messages"`
		Temperature    float64           `json:"temperature"`
		ResponseFormat map[string]string `json:"response_format"`
	}

	chatResponse struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}

	generatedQuiz struct {
		Questions []struct {
			Question     string   `json:"question"`
			Options      []string `json:"options"`
			CorrectIndex int      `json:"correctIndex"`
			Explanation  string   `json:"explanation"`
		} `json:"questions"`
	}
)

func (g *OpenAI) Generate(ctx context.Context, src quiz.Source, count int) ([]quiz.Question, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt(src, count)},
		},
		Temperature:    0.3,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, errors.Wrap(err, "encoding request")
	}

	req, err := rest.BuildRequestObject(rest.Request{
		Method:  rest.Post,
		BaseURL: g.baseURL + chatEndpoint,
		Headers: map[string]string{
			"Authorization": "Bearer " + g.apiKey,
			"Content-Type":  "application/json",
		},
		Body: body,
	})
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	httpRes, err := g.client.MakeRequest(req.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "calling quiz generation API")
	}
	res, err := rest.BuildResponse(httpRes)
	if err != nil {
		return nil, errors.Wrap(err, "reading quiz generation API response")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return nil, errors.Errorf("quiz generation API: status %d: %s", res.StatusCode, truncate(res.Body, 500))
	}
	return parseResponse(res.Body)
}

func parseResponse(body string) ([]quiz.Question, error) {
	var chat chatResponse
	if err := json.Unmarshal([]byte(body), &chat); err != nil {
		return nil, errors.Wrap(err, "decoding response")
	}
	if len(chat.Choices) == 0 {
		return nil, errors.New("empty response")
	}

	content := strings.TrimSpace(chat.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var gen generatedQuiz
	if err := json.Unmarshal([]byte(content), &gen); err != nil {
		return nil, errors.Wrap(err, "decoding generated quiz")
	}
	questions := make([]quiz.Question, 0, len(gen.Questions))
	for i, q := range gen.Questions {
		questions = append(questions, quiz.Question{
			Position:     i,
			Question:     strings.TrimSpace(q.Question),
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			Explanation:  strings.TrimSpace(q.Explanation),
		})
	}
	return questions, nil
}

func prompt(src quiz.Source, count int) string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "Write %d questions about the study material %q.\n", count, src.Title)
	if src.URL != "" {
		_, _ = fmt.Fprintf(&b, "Source: %s\n", src.URL)
	}
	if src.Content != "" {
		b.WriteString("Material:\n")
		b.WriteString(truncate(src.Content, maxPromptRune))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
