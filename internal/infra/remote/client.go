// Package remote evaluates runs through an out-of-process auto-evaluator
// service instead of the in-process pipeline.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	"github.com/yanqian/evaluator-ai/pkg/metrics"
	"github.com/yanqian/evaluator-ai/pkg/util"

	apperrors "github.com/yanqian/evaluator-ai/pkg/errors"
)

const streamPath = "/evaluator-stream"

// maxLineBytes bounds a single streamed record.
const maxLineBytes = 4 << 20

// Client posts evaluation requests to a remote auto-evaluator.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     evaluator.TokenCounter
	logger     *slog.Logger
}

// NewClient builds a remote evaluator client. tokens may be nil.
func NewClient(baseURL string, timeout time.Duration, tokens evaluator.TokenCounter, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logger:     logger.With("component", "remote.client"),
	}
}

// Evaluate streams the request to the remote service and emits each result
// as soon as it is decoded.
func (c *Client) Evaluate(ctx context.Context, req evaluator.Request, emit func(evaluator.QuestionResult)) (evaluator.Summary, error) {
	if c.baseURL == "" {
		return evaluator.Summary{}, apperrors.Wrap(apperrors.CodeBackend, "remote evaluator url is not configured", nil)
	}
	body, contentType, err := encodeForm(req)
	if err != nil {
		return evaluator.Summary{}, apperrors.Wrap(apperrors.CodeBackend, "failed to encode evaluation request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+streamPath, body)
	if err != nil {
		return evaluator.Summary{}, apperrors.Wrap(apperrors.CodeBackend, "failed to build evaluation request", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "text/event-stream, application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return evaluator.Summary{}, ctx.Err()
		}
		return evaluator.Summary{}, apperrors.Wrap(apperrors.CodeBackend, "remote evaluator unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return evaluator.Summary{}, apperrors.Wrap(apperrors.CodeBackend,
			fmt.Sprintf("remote evaluator returned status %d", resp.StatusCode),
			errors.New(strings.TrimSpace(string(payload))))
	}

	results := make([]evaluator.QuestionResult, 0, req.Config.EvalQuestionsCount)
	last := time.Now()
	err = decodeStream(resp.Body, func(rec record) {
		result := rec.toResult(len(results))
		if result.LatencySeconds <= 0 {
			result.LatencySeconds = util.Seconds(time.Since(last))
		}
		last = time.Now()
		results = append(results, result)
		if emit != nil {
			emit(result)
		}
	})
	if ctx.Err() != nil {
		return evaluator.Summarize(results, c.usage(results)), ctx.Err()
	}
	if err != nil {
		return evaluator.Summarize(results, c.usage(results)), apperrors.Wrap(apperrors.CodeBackend, "failed to read remote evaluator stream", err)
	}
	c.logger.Debug("remote evaluation complete", "questions", len(results))
	return evaluator.Summarize(results, c.usage(results)), nil
}

// usage estimates token usage from the visible text since the remote service
// does not report it.
func (c *Client) usage(results []evaluator.QuestionResult) metrics.TokenUsage {
	if c.tokens == nil {
		return metrics.TokenUsage{}
	}
	var usage metrics.TokenUsage
	for _, r := range results {
		usage.Add(c.tokens.Count(r.Question),
			c.tokens.Count(r.Result)+c.tokens.Count(r.AnswerScore.Justification)+c.tokens.Count(r.RetrievalScore.Justification))
	}
	return usage
}

func encodeForm(req evaluator.Request) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, doc := range req.Documents {
		part, err := w.CreateFormFile("files", doc.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(doc.Data); err != nil {
			return nil, "", err
		}
	}
	cfg := req.Config
	fields := [][2]string{
		{"num_eval_questions", strconv.Itoa(cfg.EvalQuestionsCount)},
		{"chunk_chars", strconv.Itoa(cfg.ChunkSize)},
		{"overlap", strconv.Itoa(cfg.Overlap)},
		{"split_method", string(cfg.SplitMethod)},
		{"retriever_type", string(cfg.Retriever)},
		{"embeddings", string(cfg.EmbeddingAlgorithm)},
		{"model_version", string(cfg.Model)},
		{"grade_prompt", string(cfg.GradingPrompt)},
		{"num_neighbors", strconv.Itoa(cfg.NumNeighbors)},
		{"language", string(cfg.Language)},
	}
	if len(req.TestDataset) > 0 {
		dataset, err := json.Marshal(req.TestDataset)
		if err != nil {
			return nil, "", err
		}
		fields = append(fields, [2]string{"test_dataset", string(dataset)})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

type envelope struct {
	Data []record `json:"data"`
}

type record struct {
	Question       string          `json:"question"`
	Answer         string          `json:"answer"`
	Result         string          `json:"result"`
	AnswerScore    json.RawMessage `json:"answerScore"`
	RetrievalScore json.RawMessage `json:"retrievalScore"`
	Latency        float64         `json:"latency"`
}

type remoteGrade struct {
	Score         any    `json:"score"`
	Justification string `json:"justification"`
}

func (r record) toResult(index int) evaluator.QuestionResult {
	return evaluator.QuestionResult{
		Index:          index,
		Question:       r.Question,
		Answer:         r.Answer,
		Result:         r.Result,
		AnswerScore:    decodeGrade(r.AnswerScore),
		RetrievalScore: decodeGrade(r.RetrievalScore),
		LatencySeconds: r.Latency,
	}
}

// decodeGrade accepts an object or a one-element list, with the score given
// as a label or as 0/1.
func decodeGrade(raw json.RawMessage) evaluator.Grade {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return evaluator.Grade{Score: evaluator.ScoreIncorrect}
	}
	var g remoteGrade
	if raw[0] == '[' {
		var list []remoteGrade
		if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
			return evaluator.Grade{Score: evaluator.ScoreIncorrect}
		}
		g = list[0]
	} else if err := json.Unmarshal(raw, &g); err != nil {
		return evaluator.Grade{Score: evaluator.ScoreIncorrect}
	}

	grade := evaluator.Grade{Score: evaluator.ScoreIncorrect, Justification: g.Justification}
	switch v := g.Score.(type) {
	case float64:
		if v >= 1 {
			grade.Score = evaluator.ScoreCorrect
		}
	case bool:
		if v {
			grade.Score = evaluator.ScoreCorrect
		}
	case string:
		grade.Score = evaluator.ParseGrade(v).Score
	default:
		if g.Justification != "" {
			grade = evaluator.ParseGrade(g.Justification)
		}
	}
	return grade
}

// decodeStream reads newline separated frames. A frame is either a raw JSON
// value or an SSE "data:" line; one frame may hold several values.
func decodeStream(r io.Reader, fn func(record)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "event:") || strings.HasPrefix(line, "id:") || strings.HasPrefix(line, "retry:") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if line == "[DONE]" {
			return nil
		}
		dec := json.NewDecoder(strings.NewReader(line))
		for {
			var env envelope
			err := dec.Decode(&env)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("decode frame: %w", err)
			}
			for _, rec := range env.Data {
				fn(rec)
			}
		}
	}
	return scanner.Err()
}

var _ evaluator.Backend = (*Client)(nil)
