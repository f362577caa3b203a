package quiz

import (
	"context"
	"fmt"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/curriculum"
)

var ErrNoQuestions = errors.New("não há perguntas disponíveis para esta unidade")

// Generator synthesises questions when the static bank falls short.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]Question, error)
}

// Provider picks a unit's questions from the Bank and tops them up with generated ones.
type Provider struct {
	bank   *Bank
	gen    Generator
	cache  *ttlcache.Cache[string, []Question]
	logger core.Logger
}

// NewProvider returns a Provider; gen may be nil to serve bank questions only.
func NewProvider(bank *Bank, gen Generator, conf *core.Config, logger core.Logger) *Provider {
	// hits must not extend the TTL: a popular unit still gets a fresh set once it expires
	opts := []ttlcache.Option[string, []Question]{
		ttlcache.WithTTL[string, []Question](conf.Quiz.GeneratedTTL),
		ttlcache.WithDisableTouchOnHit[string, []Question](),
	}
	if conf.Quiz.GeneratedMaxSet > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, []Question](uint64(conf.Quiz.GeneratedMaxSet)))
	}
	return &Provider{
		bank:   bank,
		gen:    gen,
		cache:  ttlcache.New[string, []Question](opts...),
		logger: logger,
	}
}

// Questions returns at least `size` questions for the unit when possible. Bank questions come first;
// when there are too few of them the Generator is asked for the missing ones and its answer is
// cached per (grade, unit, size). Generator failures degrade to the bank questions.
func (p *Provider) Questions(ctx context.Context, unit curriculum.Unit, size int) ([]Question, error) {
	qs := p.bank.Questions(unit.Grade, unit.Code)
	if len(qs) >= size || p.gen == nil {
		if len(qs) == 0 {
			return nil, ErrNoQuestions
		}
		return qs, nil
	}

	generated, err := p.generated(ctx, unit, size, size-len(qs))
	if err != nil {
		if len(qs) == 0 {
			return nil, errors.Wrap(ErrNoQuestions, err.Error())
		}
		p.logger.Warn(fmt.Sprintf("generating questions for %s: %v", unit.Code, err), err)
		return qs, nil
	}
	return append(qs, generated...), nil
}

func (p *Provider) generated(ctx context.Context, unit curriculum.Unit, size, missing int) ([]Question, error) {
	key := fmt.Sprintf("%d:%s:%d", unit.Grade, unit.Code, size)
	if item := p.cache.Get(key); item != nil && !item.IsExpired() {
		return copyQuestions(item.Value()), nil
	}

	qs, err := p.gen.Generate(ctx, GenerateRequest{
		Grade:     unit.Grade,
		UnitCode:  unit.Code,
		UnitTitle: unit.Title,
		Skills:    unit.Skills,
		Count:     missing,
	})
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, ErrMalformedPayload
	}
	if len(qs) > missing {
		qs = qs[:missing]
	}
	p.cache.Set(key, qs, ttlcache.DefaultTTL)
	return copyQuestions(qs), nil
}

func copyQuestions(src []Question) []Question {
	qs := make([]Question, 0, len(src))
	for _, q := range src {
		q.Options = append([]string(nil), q.Options...)
		qs = append(qs, q)
	}
	return qs
}
