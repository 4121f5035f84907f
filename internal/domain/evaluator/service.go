package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/internal/domain/prompt"
	apperrors "github.com/yanqian/evaluator-ai/pkg/errors"
	"github.com/yanqian/evaluator-ai/pkg/metrics"
	"github.com/yanqian/evaluator-ai/pkg/util"
)

// Config tunes the local pipeline.
type Config struct {
	GenerationWindow int
	MaxPreviewChars  int
	ExtractWorkers   int
}

// Service runs evaluations in-process.
type Service struct {
	cfg       Config
	llms      LLMProvider
	embedders EmbedderProvider
	splitters SplitterFactory
	indexes   IndexFactory
	extractor TextExtractor
	tokens    TokenCounter
	metrics   *metrics.Evaluator
	logger    *slog.Logger
	intn      func(n int) int
}

// NewService constructs the local evaluation backend.
func NewService(cfg Config, llms LLMProvider, embedders EmbedderProvider, splitters SplitterFactory, indexes IndexFactory, extractor TextExtractor, tokens TokenCounter, m *metrics.Evaluator, logger *slog.Logger) *Service {
	if cfg.GenerationWindow <= 0 {
		cfg.GenerationWindow = 3000
	}
	if cfg.MaxPreviewChars <= 0 {
		cfg.MaxPreviewChars = 240
	}
	if cfg.ExtractWorkers <= 0 {
		cfg.ExtractWorkers = 4
	}
	return &Service{
		cfg:       cfg,
		llms:      llms,
		embedders: embedders,
		splitters: splitters,
		indexes:   indexes,
		extractor: extractor,
		tokens:    tokens,
		metrics:   m,
		logger:    logger.With("component", "evaluator.service"),
		intn:      rand.Intn,
	}
}

type sourceText struct {
	name string
	text string
}

// Evaluate loads the documents, obtains question/answer pairs, builds the
// retriever and grades every question in order. emit is called once per
// question before the next one starts.
func (s *Service) Evaluate(ctx context.Context, req Request, emit func(QuestionResult)) (Summary, error) {
	cfg := req.Config
	if err := evalconfig.ValidateForSubmit(cfg, len(req.TestDataset) > 0); err != nil {
		return Summary{}, err
	}
	if len(req.Documents) == 0 {
		return Summary{}, apperrors.Wrap(apperrors.CodeInvalidInput, "no documents to evaluate", nil)
	}
	llm, err := s.llms.ForModel(cfg.Model)
	if err != nil {
		return Summary{}, apperrors.Wrap(apperrors.CodeLLM, "model unavailable", err)
	}

	sources, err := s.extractAll(ctx, req.Documents)
	if err != nil {
		return Summary{}, err
	}

	var usage metrics.TokenUsage
	pairs := req.TestDataset
	if len(pairs) == 0 {
		pairs, err = s.generatePairs(ctx, llm, sources, cfg, &usage)
		if err != nil {
			return Summary{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	index, err := s.buildIndex(ctx, cfg, sources)
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := index.Close(closeCtx); err != nil {
			s.logger.Warn("close retriever index failed", "error", err)
		}
	}()

	results := make([]QuestionResult, 0, len(pairs))
	for i, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return Summarize(results, usage), err
		}
		result, err := s.evaluateQuestion(ctx, llm, index, cfg, i, pair, &usage)
		if err != nil {
			return Summarize(results, usage), err
		}
		results = append(results, result)
		if emit != nil {
			emit(result)
		}
	}
	summary := Summarize(results, usage)
	s.logger.Info("evaluation complete", "questions", summary.Questions, "answer_accuracy", summary.AnswerAccuracy, "retrieval_accuracy", summary.RetrievalAccuracy)
	return summary, nil
}

func (s *Service) extractAll(ctx context.Context, docs []Document) ([]sourceText, error) {
	out := make([]sourceText, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ExtractWorkers)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			text, err := s.extractor.Extract(gctx, doc)
			if err != nil {
				if apperrors.CodeOf(err) != "" {
					return err
				}
				return apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("failed to read %s", doc.Name), err)
			}
			out[i] = sourceText{name: doc.Name, text: strings.TrimSpace(text)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	nonEmpty := out[:0]
	for _, src := range out {
		if src.text != "" {
			nonEmpty = append(nonEmpty, src)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "documents contain no text", nil)
	}
	return nonEmpty, nil
}

// generatePairs asks the model for one pair per random window of the combined
// text. Malformed replies are skipped; a failed model call fails the run.
func (s *Service) generatePairs(ctx context.Context, llm LLM, sources []sourceText, cfg evalconfig.EvaluationConfig, usage *metrics.TokenUsage) ([]QAPair, error) {
	texts := make([]string, len(sources))
	for i, src := range sources {
		texts[i] = src.text
	}
	corpus := []rune(strings.Join(texts, "\n\n"))
	tpl := prompt.QAGeneration(cfg.Language)

	pairs := make([]QAPair, 0, cfg.EvalQuestionsCount)
	for i := 0; i < cfg.EvalQuestionsCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rendered, err := tpl.Render(map[string]string{"text": s.window(corpus)})
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeGeneration, "render generation prompt", err)
		}
		reply, err := s.chat(ctx, llm, rendered, usage)
		if err != nil {
			return nil, s.stepError(ctx, apperrors.CodeLLM, "question generation failed", err)
		}
		pair, err := parseQAPair(reply)
		if err != nil {
			s.logger.Warn("malformed generated pair, skipping", "attempt", i, "error", err)
			continue
		}
		pairs = append(pairs, pair)
	}
	if len(pairs) == 0 {
		return nil, apperrors.Wrap(apperrors.CodeGeneration, "no evaluation questions could be generated", nil)
	}
	return pairs, nil
}

func (s *Service) window(corpus []rune) string {
	size := s.cfg.GenerationWindow
	if len(corpus) <= size {
		return string(corpus)
	}
	start := s.intn(len(corpus) - size + 1)
	return string(corpus[start : start+size])
}

func (s *Service) buildIndex(ctx context.Context, cfg evalconfig.EvaluationConfig, sources []sourceText) (Index, error) {
	splitter, err := s.splitters.NewSplitter(cfg.SplitMethod, cfg.ChunkSize, cfg.Overlap)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "unsupported split method", err)
	}
	var chunks []Chunk
	for _, src := range sources {
		for i, piece := range splitter.Split(src.text) {
			chunks = append(chunks, Chunk{Document: src.name, Index: i, Content: piece, TokenCount: s.countTokens(piece)})
		}
	}
	if len(chunks) == 0 {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "documents produced no chunks", nil)
	}

	var embedder Embedder
	if cfg.Retriever == evalconfig.RetrieverSimilarity {
		embedder, err = s.embedders.ForAlgorithm(cfg.EmbeddingAlgorithm)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeEmbedding, "embedding algorithm unavailable", err)
		}
	}
	index, err := s.indexes.NewIndex(ctx, cfg.Retriever, embedder)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "failed to create retriever", err)
	}
	if err := index.Add(ctx, chunks); err != nil {
		_ = index.Close(ctx)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.Wrap(apperrors.CodeEmbedding, "failed to index chunks", err)
	}
	s.logger.Debug("retriever ready", "retriever", cfg.Retriever, "chunks", len(chunks))
	return index, nil
}

func (s *Service) evaluateQuestion(ctx context.Context, llm LLM, index Index, cfg evalconfig.EvaluationConfig, i int, pair QAPair, usage *metrics.TokenUsage) (QuestionResult, error) {
	start := time.Now()
	hits, err := index.Search(ctx, pair.Question, cfg.NumNeighbors)
	if err != nil {
		return QuestionResult{}, s.stepError(ctx, apperrors.CodeStorage, "retrieval failed", err)
	}
	contextText := joinChunks(hits)
	answerPrompt, err := prompt.QAChain(cfg.Language).Render(map[string]string{
		"context":  contextText,
		"question": pair.Question,
	})
	if err != nil {
		return QuestionResult{}, apperrors.Wrap(apperrors.CodeLLM, "render answer prompt", err)
	}
	predicted, err := s.chat(ctx, llm, answerPrompt, usage)
	if err != nil {
		return QuestionResult{}, s.stepError(ctx, apperrors.CodeLLM, "answer generation failed", err)
	}
	latency := time.Since(start)

	style := prompt.StyleFor(cfg.GradingPrompt)
	answerGrade, err := s.grade(ctx, llm, prompt.GradeAnswer(style, cfg.Language), pair.Question, predicted, pair.Answer, usage)
	if err != nil {
		return QuestionResult{}, err
	}
	docsStyle := prompt.StyleDefault
	if style == prompt.StyleFast {
		docsStyle = prompt.StyleFast
	}
	retrievalGrade, err := s.grade(ctx, llm, prompt.GradeDocs(docsStyle, cfg.Language), pair.Question, contextText, pair.Answer, usage)
	if err != nil {
		return QuestionResult{}, err
	}
	s.metrics.Graded("answer", string(answerGrade.Score))
	s.metrics.Graded("retrieval", string(retrievalGrade.Score))

	return QuestionResult{
		Index:          i,
		Question:       pair.Question,
		Answer:         pair.Answer,
		Result:         predicted,
		AnswerScore:    answerGrade,
		RetrievalScore: retrievalGrade,
		LatencySeconds: util.Seconds(latency),
		Sources:        s.sources(hits),
	}, nil
}

func (s *Service) grade(ctx context.Context, llm LLM, tpl prompt.Template, query, result, answer string, usage *metrics.TokenUsage) (Grade, error) {
	rendered, err := tpl.Render(map[string]string{"query": query, "result": result, "answer": answer})
	if err != nil {
		return Grade{}, apperrors.Wrap(apperrors.CodeLLM, "render grading prompt", err)
	}
	reply, err := s.chat(ctx, llm, rendered, usage)
	if err != nil {
		return Grade{}, s.stepError(ctx, apperrors.CodeLLM, "grading failed", err)
	}
	return ParseGrade(reply), nil
}

func (s *Service) chat(ctx context.Context, llm LLM, content string, usage *metrics.TokenUsage) (string, error) {
	reply, err := llm.Chat(ctx, []Message{{Role: "user", Content: content}})
	if err != nil {
		return "", err
	}
	usage.Add(s.countTokens(content), s.countTokens(reply))
	return strings.TrimSpace(reply), nil
}

// stepError keeps cancellation distinguishable from backend failures.
func (s *Service) stepError(ctx context.Context, code, msg string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return apperrors.Wrap(code, msg, err)
}

func (s *Service) countTokens(text string) int {
	if s.tokens != nil {
		return s.tokens.Count(text)
	}
	return estimateTokens(text)
}

func (s *Service) sources(hits []ScoredChunk) []SourceChunk {
	out := make([]SourceChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, SourceChunk{
			Document:   h.Chunk.Document,
			ChunkIndex: h.Chunk.Index,
			Score:      h.Score,
			Preview:    snippet(h.Chunk.Content, s.cfg.MaxPreviewChars),
		})
	}
	return out
}

func joinChunks(hits []ScoredChunk) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Chunk.Content)
	}
	return strings.Join(parts, "\n\n")
}

func snippet(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}

// estimateTokens is used when no tokenizer is wired: roughly one token per
// two runes, never below the word count.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	byRunes := (runes + 1) / 2
	if byRunes < words {
		return words
	}
	return byRunes
}

var _ Backend = (*Service)(nil)
