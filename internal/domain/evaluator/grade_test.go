package evaluator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseGrade(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  Grade
	}{
		{
			name:  "descriptive correct",
			reply: "GRADE: Correct\n\nJUSTIFICATION: The answer matches the reference.",
			want:  Grade{Score: ScoreCorrect, Justification: "The answer matches the reference."},
		},
		{
			name:  "descriptive incorrect",
			reply: "GRADE: Incorrect\nJUSTIFICATION: It names the wrong year.",
			want:  Grade{Score: ScoreIncorrect, Justification: "It names the wrong year."},
		},
		{
			name:  "fast reply",
			reply: " Correct",
			want:  Grade{Score: ScoreCorrect, Justification: "Correct"},
		},
		{
			name:  "openai reasoning mentions incorrect before the verdict",
			reply: "The submission is not incorrect about the date.\nIt is concise.\nCorrect",
			want:  Grade{Score: ScoreCorrect, Justification: "The submission is not incorrect about the date.\nIt is concise.\nCorrect"},
		},
		{
			name:  "chinese",
			reply: "等级：正确\n理由：检索到的文档支持答案。",
			want:  Grade{Score: ScoreCorrect, Justification: "检索到的文档支持答案。"},
		},
		{
			name:  "chinese incorrect",
			reply: "等级：错误\n理由：文档与问题无关。",
			want:  Grade{Score: ScoreIncorrect, Justification: "文档与问题无关。"},
		},
		{
			name:  "no verdict",
			reply: "I cannot tell.",
			want:  Grade{Score: ScoreIncorrect, Justification: "I cannot tell."},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ParseGrade(tc.reply))
		})
	}
}

func TestParseQAPair(t *testing.T) {
	pair, err := parseQAPair("```json\n{\"question\": \" What is Go? \", \"answer\": \"A language.\"}\n```")
	require.NoError(t, err)
	require.Equal(t, QAPair{Question: "What is Go?", Answer: "A language."}, pair)

	_, err = parseQAPair("no json here")
	require.ErrorIs(t, err, errMalformedPair)

	_, err = parseQAPair(`{"question": "only a question"}`)
	require.ErrorIs(t, err, errMalformedPair)

	_, err = parseQAPair(`{"question": 1}`)
	require.Error(t, err)
}
