package evaluator

import (
	"github.com/yanqian/evaluator-ai/internal/domain/evalconfig"
	"github.com/yanqian/evaluator-ai/pkg/metrics"
)

// Document is one uploaded source file handed to the pipeline.
type Document struct {
	Name     string
	MimeType string
	Data     []byte
}

// QAPair is an evaluation question with its expected answer.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Request describes one evaluation run.
type Request struct {
	Config      evalconfig.EvaluationConfig
	Documents   []Document
	TestDataset []QAPair
}

// Score is the binary grade assigned by the grader model.
type Score string

const (
	ScoreCorrect   Score = "Correct"
	ScoreIncorrect Score = "Incorrect"
)

// Grade is a score plus the grader's justification.
type Grade struct {
	Score         Score  `json:"score"`
	Justification string `json:"justification"`
}

// Chunk is a contiguous segment of a document.
type Chunk struct {
	Document   string `json:"document"`
	Index      int    `json:"chunkIndex"`
	Content    string `json:"content"`
	TokenCount int    `json:"tokenCount"`
}

// ScoredChunk is a retrieval hit.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// SourceChunk is the client-facing summary of a retrieved chunk.
type SourceChunk struct {
	Document   string  `json:"document"`
	ChunkIndex int     `json:"chunkIndex"`
	Score      float64 `json:"score"`
	Preview    string  `json:"preview"`
}

// QuestionResult is emitted once per evaluated question, in question order.
type QuestionResult struct {
	Index          int           `json:"index"`
	Question       string        `json:"question"`
	Answer         string        `json:"answer"`
	Result         string        `json:"result"`
	AnswerScore    Grade         `json:"answerScore"`
	RetrievalScore Grade         `json:"retrievalScore"`
	LatencySeconds float64       `json:"latency"`
	Sources        []SourceChunk `json:"sources,omitempty"`
}

// Summary aggregates a finished run.
type Summary struct {
	Questions         int                `json:"questions"`
	AnswerAccuracy    float64            `json:"answerAccuracy"`
	RetrievalAccuracy float64            `json:"retrievalAccuracy"`
	AvgLatencySeconds float64            `json:"avgLatencySeconds"`
	TokenUsage        metrics.TokenUsage `json:"tokenUsage"`
}

// Summarize folds per-question results into a Summary.
func Summarize(results []QuestionResult, usage metrics.TokenUsage) Summary {
	out := Summary{Questions: len(results), TokenUsage: usage}
	if len(results) == 0 {
		return out
	}
	var answers, retrievals int
	var latency float64
	for _, r := range results {
		if r.AnswerScore.Score == ScoreCorrect {
			answers++
		}
		if r.RetrievalScore.Score == ScoreCorrect {
			retrievals++
		}
		latency += r.LatencySeconds
	}
	n := float64(len(results))
	out.AnswerAccuracy = float64(answers) / n
	out.RetrievalAccuracy = float64(retrievals) / n
	out.AvgLatencySeconds = latency / n
	return out
}
