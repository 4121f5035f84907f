// Package prompt selects and renders the prompt templates used to generate,
// answer and grade evaluation questions.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
)

// Style is the grading rubric family.
type Style string

const (
	StyleFast      Style = "fast"
	StyleDefault   Style = "default"
	StyleBiasCheck Style = "bias_check"
	StyleOpenAI    Style = "openai"
)

// Kind identifies which template family is requested.
type Kind string

const (
	KindGradeAnswer Kind = "answer"
	KindGradeDocs   Kind = "docs"
	KindQAChain     Kind = "qa"
	KindGeneration  Kind = "generation"
)

// Template is a prompt with named {placeholders}.
type Template struct {
	Name      string   `json:"name"`
	Text      string   `json:"text"`
	Variables []string `json:"variables"`
}

// Render fills every declared variable. A missing variable is an error; extra
// entries in vars are ignored. Substitution is single pass, so values that
// themselves contain {placeholders} are left as-is.
func (t Template) Render(vars map[string]string) (string, error) {
	pairs := make([]string, 0, len(t.Variables)*2)
	var missing []string
	for _, name := range t.Variables {
		value, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		pairs = append(pairs, "{"+name+"}", value)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("template %s: missing variables %s", t.Name, strings.Join(missing, ", "))
	}
	return strings.NewReplacer(pairs...).Replace(t.Text), nil
}

var gradeVariables = []string{"query", "result", "answer"}

// StyleFor maps the playground grading option onto a rubric style.
func StyleFor(g evalconfig.GradingPrompt) Style {
	switch g {
	case evalconfig.GradingFast:
		return StyleFast
	case evalconfig.GradingBiasCheck:
		return StyleBiasCheck
	case evalconfig.GradingOpenAI:
		return StyleOpenAI
	default:
		return StyleDefault
	}
}

// ParseStyle accepts either a style identifier or a playground grading label.
func ParseStyle(raw string) (Style, error) {
	raw = strings.TrimSpace(raw)
	switch Style(strings.ToLower(raw)) {
	case "":
		return StyleDefault, nil
	case StyleFast, StyleDefault, StyleBiasCheck, StyleOpenAI:
		return Style(strings.ToLower(raw)), nil
	}
	g := evalconfig.GradingPrompt(raw)
	if g.Valid() {
		return StyleFor(g), nil
	}
	return "", fmt.Errorf("unknown grading style %q", raw)
}

// LanguageName is the language the grader is instructed to answer in.
func LanguageName(lang evalconfig.Language) string {
	if lang == evalconfig.LanguageZhCN {
		return "Simplified Chinese"
	}
	return "English"
}

// GradeAnswer returns the template used to grade a predicted answer against the expected one.
func GradeAnswer(style Style, lang evalconfig.Language) Template {
	var name, text string
	switch style {
	case StyleOpenAI:
		name, text = "grade_answer_openai", answerOpenAITemplate
	case StyleBiasCheck:
		name, text = "grade_answer_bias_check", answerBiasCheckTemplate
	case StyleFast:
		name, text = "grade_answer_fast", answerFastTemplate
	default:
		name, text = "grade_answer_descriptive", answerDescriptiveTemplate
	}
	return Template{Name: name, Text: withLanguage(text, lang), Variables: gradeVariables}
}

// GradeDocs returns the template used to grade retrieved context. Only the
// fast style differs; every other style uses the descriptive rubric in the
// session language.
func GradeDocs(style Style, lang evalconfig.Language) Template {
	var name, text string
	switch {
	case style == StyleFast:
		name, text = "grade_docs_fast", docsFastTemplate
	case lang == evalconfig.LanguageZhCN:
		name, text = "grade_docs_descriptive_zh", docsDescriptiveZhTemplate
	default:
		name, text = "grade_docs_descriptive", docsDescriptiveTemplate
	}
	return Template{Name: name, Text: withLanguage(text, lang), Variables: gradeVariables}
}

// QAChain returns the answering prompt for retrieved context.
func QAChain(lang evalconfig.Language) Template {
	if lang == evalconfig.LanguageZhCN {
		return Template{Name: "qa_chain_zh", Text: qaChainZhTemplate, Variables: []string{"context", "question"}}
	}
	return Template{Name: "qa_chain", Text: qaChainTemplate, Variables: []string{"context", "question"}}
}

// QAGeneration returns the prompt that turns a text window into one question/answer pair.
func QAGeneration(lang evalconfig.Language) Template {
	return Template{Name: "qa_generation", Text: withLanguage(qaGenerationTemplate, lang), Variables: []string{"text"}}
}

// Lookup resolves a template by kind, as exposed to the HTTP and CLI surfaces.
func Lookup(kind Kind, style Style, lang evalconfig.Language) (Template, error) {
	switch kind {
	case KindGradeAnswer, "":
		return GradeAnswer(style, lang), nil
	case KindGradeDocs:
		return GradeDocs(style, lang), nil
	case KindQAChain:
		return QAChain(lang), nil
	case KindGeneration:
		return QAGeneration(lang), nil
	default:
		return Template{}, fmt.Errorf("unknown prompt kind %q", kind)
	}
}

func withLanguage(text string, lang evalconfig.Language) string {
	return strings.ReplaceAll(text, "{lang}", LanguageName(lang))
}

const qaGenerationTemplate = "You are a smart assistant designed to help teachers come up with reading comprehension questions.\n" +
	"Given a piece of text, you must come up with one question and answer pair that can be used to test a student's reading comprehension abilities.\n" +
	"Write both the question and the answer in {lang}.\n" +
	"Respond with a single JSON object and nothing else, in the following format:\n" +
	"{\"question\": \"$YOUR_QUESTION_HERE\", \"answer\": \"$THE_ANSWER_HERE\"}\n\n" +
	"Please come up with a question/answer pair for the following text:\n" +
	"----------------\n" +
	"{text}"
