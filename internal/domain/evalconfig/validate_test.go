package evalconfig

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestValidateForSubmit(t *testing.T) {
	withFile := func(mut func(*EvaluationConfig)) EvaluationConfig {
		cfg := Defaults()
		cfg.Files = []FileRef{{ID: uuid.New(), Name: "doc.txt"}}
		if mut != nil {
			mut(&cfg)
		}
		return cfg
	}

	cases := []struct {
		name       string
		cfg        EvaluationConfig
		hasDataset bool
		want       FieldErrors
	}{
		{name: "defaults with a file", cfg: withFile(nil)},
		{name: "no files", cfg: Defaults(), want: FieldErrors{FieldFiles: "at least one file is required"}},
		{
			name: "overlap not smaller than chunk",
			cfg:  withFile(func(c *EvaluationConfig) { c.Overlap = 500 }),
			want: FieldErrors{FieldOverlap: "must be smaller than chunkSize"},
		},
		{
			name: "zero counts",
			cfg: withFile(func(c *EvaluationConfig) {
				c.EvalQuestionsCount = 0
				c.ChunkSize = 0
				c.NumNeighbors = 0
			}),
			want: FieldErrors{
				FieldEvalQuestionsCount: "must be at least 1",
				FieldChunkSize:          "must be at least 1",
				FieldNumNeighbors:       "must be at least 1",
			},
		},
		{
			name:       "dataset makes question count irrelevant",
			cfg:        withFile(func(c *EvaluationConfig) { c.EvalQuestionsCount = 0 }),
			hasDataset: true,
		},
		{
			name: "corrupted enum",
			cfg:  withFile(func(c *EvaluationConfig) { c.Model = "davinci" }),
			want: FieldErrors{FieldModel: "is not supported"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateForSubmit(tc.cfg, tc.hasDataset)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			fields, ok := AsFieldErrors(err)
			require.True(t, ok)
			require.Equal(t, tc.want, fields)
		})
	}
}

func TestFieldErrorsMessageIsSorted(t *testing.T) {
	err := FieldErrors{"overlap": "b", "chunkSize": "a"}
	require.EqualError(t, err, "chunkSize: a; overlap: b")
}
