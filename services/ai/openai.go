// Package aisvc generates quiz questions with any OpenAI-compatible chat completion API.
package aisvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/quiz"
)

const systemPrompt = `Você é um professor de Ciências do Ensino Fundamental II no Brasil e cria questões alinhadas à BNCC.
Responda SOMENTE com JSON válido, sem comentários, no formato:
{"questions": [{"question": "enunciado", "options": ["alternativa 1", "alternativa 2", "alternativa 3", "alternativa 4"], "answer": 0, "explanation": "por que a alternativa está correta", "skill": "código BNCC"}]}
"answer" é o índice (começando em 0) da alternativa correta. Cada questão tem exatamente 4 alternativas e só uma correta.`

// OpenAIGenerator implements quiz.Generator.
type OpenAIGenerator struct {
	client openai.Client
	model  string
	logger core.Logger
}

var _ quiz.Generator = (*OpenAIGenerator)(nil)

func NewOpenAIGenerator(logger core.Logger, conf *core.Config) *OpenAIGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(conf.AI.APIKey),
		option.WithMaxRetries(2),
	}
	if conf.AI.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(conf.AI.BaseURL))
	}
	if conf.AI.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(conf.AI.Timeout))
	}
	return &OpenAIGenerator{
		client: openai.NewClient(opts...),
		model:  conf.AI.Model,
		logger: logger,
	}
}

func userPrompt(req quiz.GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Crie %d questões de múltipla escolha para alunos do %dº ano.\n", req.Count, req.Grade)
	fmt.Fprintf(&b, "Unidade: %s.\n", req.UnitTitle)
	if len(req.Skills) > 0 {
		fmt.Fprintf(&b, "Habilidades da BNCC: %s.\n", strings.Join(req.Skills, ", "))
	}
	b.WriteString("Use linguagem simples e adequada à idade.")
	return b.String()
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req quiz.GenerateRequest) ([]quiz.Question, error) {
	if req.Count <= 0 {
		return nil, nil
	}
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(req)),
		},
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		return nil, errors.Wrap(err, "requesting questions")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Wrap(quiz.ErrMalformedPayload, "empty completion")
	}

	qs, err := quiz.Normalize([]byte(resp.Choices[0].Message.Content), req)
	if err != nil {
		return nil, err
	}
	if len(qs) < req.Count {
		g.logger.Warn(fmt.Sprintf("generated %d of %d questions for %s", len(qs), req.Count, req.UnitCode))
	}
	return qs, nil
}
