// Package evalconfig holds the evaluation configuration edited in the playground.
//
// A Form is owned by exactly one playground session. The editor surface is its
// single writer; results and run submission read immutable snapshots through
// the Reader interface.
package evalconfig

import (
	"time"

	"github.com/google/uuid"
)

// SplitMethod selects the document splitting strategy.
type SplitMethod string

const (
	SplitRecursive SplitMethod = "RecursiveTextSplitter"
	SplitCharacter SplitMethod = "CharacterTextSplitter"
)

// EmbeddingAlgorithm selects the embedding model family.
type EmbeddingAlgorithm string

const (
	EmbeddingOpenAI      EmbeddingAlgorithm = "OpenAI"
	EmbeddingHuggingFace EmbeddingAlgorithm = "HuggingFace"
)

// Model is the language model used for generation, answering and grading.
type Model string

const (
	ModelWenxin Model = "wenxin"
	ModelGPT35  Model = "gpt-3.5-turbo"
	ModelGPT4   Model = "gpt-4"
)

// Retriever selects how chunks are found for a question.
type Retriever string

const (
	RetrieverSimilarity Retriever = "similarity-search"
	RetrieverTFIDF      Retriever = "TF-IDF"
)

// GradingPrompt is the rubric style used to score answers.
type GradingPrompt string

const (
	GradingFast        GradingPrompt = "Fast"
	GradingDescriptive GradingPrompt = "Descriptive"
	GradingBiasCheck   GradingPrompt = "Descriptive w/ bias check"
	GradingOpenAI      GradingPrompt = "OpenAI grading prompt"
)

// Language is the locale code for model responses.
type Language string

const (
	LanguageZhCN Language = "zh-cn"
	LanguageEN   Language = "en"
)

// Field names as they appear on the wire.
const (
	FieldEvalQuestionsCount = "evalQuestionsCount"
	FieldChunkSize          = "chunkSize"
	FieldOverlap            = "overlap"
	FieldSplitMethod        = "splitMethod"
	FieldEmbeddingAlgorithm = "embeddingAlgorithm"
	FieldModel              = "model"
	FieldRetriever          = "retriever"
	FieldGradingPrompt      = "gradingPrompt"
	FieldLanguage           = "language"
	FieldNumNeighbors       = "numNeighbors"
	FieldFiles              = "files"
)

// FileRef points at an uploaded source document.
type FileRef struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"sizeBytes"`
	MimeType   string    `json:"mimeType"`
	StorageKey string    `json:"storageKey"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// EvaluationConfig is the flat record of run parameters.
type EvaluationConfig struct {
	EvalQuestionsCount int                `json:"evalQuestionsCount"`
	ChunkSize          int                `json:"chunkSize"`
	Overlap            int                `json:"overlap"`
	SplitMethod        SplitMethod        `json:"splitMethod"`
	EmbeddingAlgorithm EmbeddingAlgorithm `json:"embeddingAlgorithm"`
	Model              Model              `json:"model"`
	Retriever          Retriever          `json:"retriever"`
	GradingPrompt      GradingPrompt      `json:"gradingPrompt"`
	Language           Language           `json:"language"`
	NumNeighbors       int                `json:"numNeighbors"`
	Files              []FileRef          `json:"files"`
}

// Defaults returns the configuration a freshly mounted playground starts with.
func Defaults() EvaluationConfig {
	return EvaluationConfig{
		EvalQuestionsCount: 5,
		ChunkSize:          500,
		Overlap:            100,
		SplitMethod:        SplitRecursive,
		EmbeddingAlgorithm: EmbeddingOpenAI,
		Model:              ModelWenxin,
		Retriever:          RetrieverSimilarity,
		GradingPrompt:      GradingDescriptive,
		Language:           LanguageZhCN,
		NumNeighbors:       3,
		Files:              []FileRef{},
	}
}

// Clone returns a deep copy; the files slice is never shared.
func (c EvaluationConfig) Clone() EvaluationConfig {
	out := c
	out.Files = make([]FileRef, len(c.Files))
	copy(out.Files, c.Files)
	return out
}

// FileIndex returns the position of the file with the given id, or -1.
func (c EvaluationConfig) FileIndex(id uuid.UUID) int {
	for i, f := range c.Files {
		if f.ID == id {
			return i
		}
	}
	return -1
}

var (
	splitMethods        = []SplitMethod{SplitRecursive, SplitCharacter}
	embeddingAlgorithms = []EmbeddingAlgorithm{EmbeddingOpenAI, EmbeddingHuggingFace}
	models              = []Model{ModelWenxin, ModelGPT35, ModelGPT4}
	retrievers          = []Retriever{RetrieverSimilarity, RetrieverTFIDF}
	gradingPrompts      = []GradingPrompt{GradingFast, GradingDescriptive, GradingBiasCheck, GradingOpenAI}
	languages           = []Language{LanguageZhCN, LanguageEN}
)

func (m SplitMethod) Valid() bool        { return contains(splitMethods, m) }
func (e EmbeddingAlgorithm) Valid() bool { return contains(embeddingAlgorithms, e) }
func (m Model) Valid() bool              { return contains(models, m) }
func (r Retriever) Valid() bool          { return contains(retrievers, r) }
func (g GradingPrompt) Valid() bool      { return contains(gradingPrompts, g) }
func (l Language) Valid() bool           { return contains(languages, l) }

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
