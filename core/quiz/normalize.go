package quiz

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/trezcool/sciencequest/core"
)

var (
	ErrMalformedPayload = errors.New("no usable question in generated payload")

	listKeys        = []string{"questions", "perguntas", "questoes", "questões", "items", "quiz"}
	promptKeys      = []string{"question", "pergunta", "prompt", "enunciado", "questao", "questão", "text"}
	optionsKeys     = []string{"options", "alternativas", "choices", "opcoes", "opções", "answers"}
	answerKeys      = []string{"answer", "resposta", "correct", "correta", "correct_answer", "correctAnswer", "resposta_correta", "answer_index", "answerIndex"}
	explanationKeys = []string{"explanation", "explicacao", "explicação", "justificativa", "feedback"}
	skillKeys       = []string{"skill", "habilidade", "bncc"}
	optionTextKeys  = []string{"text", "texto", "option", "alternativa", "label"}
	optionFlagKeys  = []string{"correct", "correta", "is_correct", "isCorrect"}

	// "A) ...", "b. ...", "C - ..."
	optionPrefixRegex = regexp.MustCompile(`^\(?([A-Ea-e])\s*[\)\.\-:]\s+`)
	// "B", "(b)", "B)", "B. Isopor"; not "E-mail" nor "A água"
	letterRegex = regexp.MustCompile(`^\(?([A-Ea-e])(?:[\)\.](?:\s+.*)?)?$`)
)

// Normalize turns a generated payload into Questions for req's unit.
// It accepts a top-level array or an object wrapping the list (e.g. {"questions": [...]}),
// Portuguese or English keys, options as strings, objects or a letter map,
// and the answer as an index, a letter or the option text. Malformed items are dropped.
func Normalize(raw []byte, req GenerateRequest) ([]Question, error) {
	payload := extractJSON(raw)
	if !gjson.ValidBytes(payload) {
		return nil, ErrMalformedPayload
	}

	items := listItems(gjson.ParseBytes(payload))
	qs := make([]Question, 0, len(items))
	for _, item := range items {
		if q, ok := normalizeItem(item); ok {
			q.ID = "gen-" + uuid.New().String()
			q.Grade = req.Grade
			q.UnitCode = req.UnitCode
			q.Source = SourceGenerated
			if q.Skill == "" && len(req.Skills) > 0 {
				q.Skill = req.Skills[0]
			}
			qs = append(qs, q)
		}
	}
	if len(qs) == 0 {
		return nil, ErrMalformedPayload
	}
	return qs, nil
}

// extractJSON strips markdown code fences and any prose around the JSON document.
func extractJSON(raw []byte) []byte {
	data := bytes.TrimSpace(raw)
	if bytes.HasPrefix(data, []byte("```")) {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			data = data[i+1:]
		}
		if i := bytes.LastIndex(data, []byte("```")); i >= 0 {
			data = data[:i]
		}
		data = bytes.TrimSpace(data)
	}
	if gjson.ValidBytes(data) {
		return data
	}

	start := bytes.IndexAny(data, "[{")
	if start < 0 {
		return data
	}
	closing := byte(']')
	if data[start] == '{' {
		closing = '}'
	}
	end := bytes.LastIndexByte(data, closing)
	if end <= start {
		return data
	}
	return data[start : end+1]
}

func listItems(doc gjson.Result) []gjson.Result {
	if doc.IsArray() {
		return doc.Array()
	}
	if !doc.IsObject() {
		return nil
	}
	for _, key := range listKeys {
		if res := doc.Get(key); res.IsArray() {
			return res.Array()
		}
	}
	// a single question object
	if firstOf(doc, promptKeys).Exists() {
		return []gjson.Result{doc}
	}
	return nil
}

func firstOf(obj gjson.Result, keys []string) gjson.Result {
	for _, key := range keys {
		if res := obj.Get(key); res.Exists() && res.Type != gjson.Null {
			return res
		}
	}
	return gjson.Result{}
}

func normalizeItem(item gjson.Result) (Question, bool) {
	if !item.IsObject() {
		return Question{}, false
	}

	prompt := core.CleanString(firstOf(item, promptKeys).String())
	if prompt == "" {
		return Question{}, false
	}

	opts := parseOptions(firstOf(item, optionsKeys))
	if len(opts.texts) < 2 {
		return Question{}, false
	}

	answer := opts.flagged
	if res := firstOf(item, answerKeys); res.Exists() {
		answer = parseAnswer(res, opts)
	}
	if answer < 0 || answer >= len(opts.texts) {
		return Question{}, false
	}

	return Question{
		Prompt:      prompt,
		Options:     opts.texts,
		Answer:      answer,
		Explanation: core.CleanString(firstOf(item, explanationKeys).String()),
		Skill:       strings.ToUpper(core.CleanString(firstOf(item, skillKeys).String())),
	}, true
}

type parsedOptions struct {
	texts   []string
	kept    []int // kept[i] is the index in texts of the i-th raw option, -1 if it was empty
	flagged int   // index in texts of the option flagged as correct, -1 if none
}

// at maps a raw option position to its index in texts.
func (o parsedOptions) at(pos int) int {
	if pos < 0 || pos >= len(o.kept) {
		return -1
	}
	return o.kept[pos]
}

func (o *parsedOptions) add(text string, correct bool) {
	if text = cleanOption(text); text == "" {
		o.kept = append(o.kept, -1)
		return
	}
	if correct && o.flagged < 0 {
		o.flagged = len(o.texts)
	}
	o.kept = append(o.kept, len(o.texts))
	o.texts = append(o.texts, text)
}

// parseOptions drops empty options; answers given by position are resolved against the raw list.
func parseOptions(res gjson.Result) parsedOptions {
	opts := parsedOptions{flagged: -1}

	switch {
	case res.IsArray():
		for _, opt := range res.Array() {
			if opt.IsObject() {
				opts.add(firstOf(opt, optionTextKeys).String(), firstOf(opt, optionFlagKeys).Bool())
			} else {
				opts.add(opt.String(), false)
			}
		}
	case res.IsObject(): // {"A": "...", "B": "..."}
		res.ForEach(func(_, value gjson.Result) bool {
			opts.add(value.String(), false)
			return true
		})
	}
	return opts
}

func cleanOption(text string) string {
	text = core.CleanString(text)
	return core.CleanString(optionPrefixRegex.ReplaceAllString(text, ""))
}

// parseAnswer resolves an answer given as an index, a letter or the option text. It returns -1 when unresolved.
// Numeric answers are zero-based; a value equal to the raw option count is read as a one-based last option.
func parseAnswer(res gjson.Result, opts parsedOptions) int {
	position := func(n int) int {
		if n == len(opts.kept) {
			n--
		}
		return opts.at(n)
	}
	if res.Type == gjson.Number {
		return position(int(res.Int()))
	}

	text := core.CleanString(res.String())
	if text == "" {
		return -1
	}
	if n, err := strconv.Atoi(text); err == nil {
		return position(n)
	}
	if m := letterRegex.FindStringSubmatch(text); m != nil {
		return opts.at(int(strings.ToUpper(m[1])[0] - 'A'))
	}

	folded := core.Fold(cleanOption(text))
	for i, opt := range opts.texts {
		if core.Fold(opt) == folded {
			return i
		}
	}
	return -1
}
