package evalconfig

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldKind describes how a field is edited.
type FieldKind string

const (
	KindInteger FieldKind = "integer"
	KindEnum    FieldKind = "enum"
	KindFiles   FieldKind = "files"
)

// FieldOption describes one editable field for form rendering.
type FieldOption struct {
	Field   string    `json:"field"`
	Kind    FieldKind `json:"kind"`
	Values  []string  `json:"values,omitempty"`
	Default any       `json:"default"`
}

// Options lists every field in display order together with its allowed values.
func Options() []FieldOption {
	d := Defaults()
	return []FieldOption{
		{Field: FieldEvalQuestionsCount, Kind: KindInteger, Default: d.EvalQuestionsCount},
		{Field: FieldChunkSize, Kind: KindInteger, Default: d.ChunkSize},
		{Field: FieldOverlap, Kind: KindInteger, Default: d.Overlap},
		{Field: FieldSplitMethod, Kind: KindEnum, Values: toStrings(splitMethods), Default: d.SplitMethod},
		{Field: FieldEmbeddingAlgorithm, Kind: KindEnum, Values: toStrings(embeddingAlgorithms), Default: d.EmbeddingAlgorithm},
		{Field: FieldModel, Kind: KindEnum, Values: toStrings(models), Default: d.Model},
		{Field: FieldRetriever, Kind: KindEnum, Values: toStrings(retrievers), Default: d.Retriever},
		{Field: FieldGradingPrompt, Kind: KindEnum, Values: toStrings(gradingPrompts), Default: d.GradingPrompt},
		{Field: FieldLanguage, Kind: KindEnum, Values: toStrings(languages), Default: d.Language},
		{Field: FieldNumNeighbors, Kind: KindInteger, Default: d.NumNeighbors},
		{Field: FieldFiles, Kind: KindFiles, Default: d.Files},
	}
}

// setField applies one edit to cfg. cfg is left untouched when the value is rejected.
func setField(cfg *EvaluationConfig, field string, value any) *FieldError {
	switch field {
	case FieldEvalQuestionsCount:
		return setCount(&cfg.EvalQuestionsCount, field, value)
	case FieldChunkSize:
		return setCount(&cfg.ChunkSize, field, value)
	case FieldOverlap:
		return setCount(&cfg.Overlap, field, value)
	case FieldNumNeighbors:
		return setCount(&cfg.NumNeighbors, field, value)
	case FieldSplitMethod:
		return setEnum(&cfg.SplitMethod, splitMethods, field, value)
	case FieldEmbeddingAlgorithm:
		return setEnum(&cfg.EmbeddingAlgorithm, embeddingAlgorithms, field, value)
	case FieldModel:
		return setEnum(&cfg.Model, models, field, value)
	case FieldRetriever:
		return setEnum(&cfg.Retriever, retrievers, field, value)
	case FieldGradingPrompt:
		return setEnum(&cfg.GradingPrompt, gradingPrompts, field, value)
	case FieldLanguage:
		return setEnum(&cfg.Language, languages, field, value)
	case FieldFiles:
		return &FieldError{Field: field, Message: "files are managed through uploads"}
	default:
		return &FieldError{Field: field, Message: "unknown field"}
	}
}

func setCount(dst *int, field string, value any) *FieldError {
	n, msg := parseCount(value)
	if msg != "" {
		return &FieldError{Field: field, Message: msg}
	}
	*dst = n
	return nil
}

// parseCount accepts the shapes a non-negative integer arrives in from JSON
// bodies and form inputs. Rejected values are never clamped.
func parseCount(value any) (int, string) {
	switch v := value.(type) {
	case int:
		return checkCount(int64(v))
	case int32:
		return checkCount(int64(v))
	case int64:
		return checkCount(v)
	case float64:
		return countFromFloat(v)
	case float32:
		return countFromFloat(float64(v))
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return checkCount(i)
		}
		f, err := v.Float64()
		if err != nil {
			return 0, "must be a number"
		}
		return countFromFloat(f)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, "is required"
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return checkCount(i)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, "must be a number"
		}
		return countFromFloat(f)
	case nil:
		return 0, "is required"
	default:
		return 0, fmt.Sprintf("must be a number, got %T", value)
	}
}

func countFromFloat(f float64) (int, string) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, "must be a number"
	}
	if f != math.Trunc(f) {
		return 0, "must be an integer"
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, "is out of range"
	}
	return checkCount(int64(f))
}

func checkCount(n int64) (int, string) {
	if n < 0 {
		return 0, "must be non-negative"
	}
	if n > math.MaxInt32 {
		return 0, "is out of range"
	}
	return int(n), ""
}

func setEnum[T ~string](dst *T, allowed []T, field string, value any) *FieldError {
	raw, ok := value.(string)
	if !ok {
		return &FieldError{Field: field, Message: fmt.Sprintf("must be one of %s", strings.Join(toStrings(allowed), ", "))}
	}
	raw = strings.TrimSpace(raw)
	for _, candidate := range allowed {
		if string(candidate) == raw {
			*dst = candidate
			return nil
		}
	}
	for _, candidate := range allowed {
		if strings.EqualFold(string(candidate), raw) {
			*dst = candidate
			return nil
		}
	}
	return &FieldError{Field: field, Message: fmt.Sprintf("must be one of %s", strings.Join(toStrings(allowed), ", "))}
}

func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
