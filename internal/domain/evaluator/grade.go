package evaluator

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	gradeMarkers         = []string{"GRADE:", "Grade:", "等级：", "等级:"}
	justificationMarkers = []string{"JUSTIFICATION:", "Justification:", "理由：", "理由:"}
)

// ParseGrade reads a grader reply. The verdict comes from the GRADE line when
// present, otherwise from the last line that mentions a verdict. Anything that
// is not clearly correct is graded Incorrect.
func ParseGrade(reply string) Grade {
	text := strings.TrimSpace(reply)
	return Grade{
		Score:         verdict(verdictLine(text)),
		Justification: justification(text),
	}
}

func verdictLine(text string) string {
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, marker := range gradeMarkers {
			if strings.HasPrefix(trimmed, marker) {
				return strings.TrimPrefix(trimmed, marker)
			}
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.ToLower(lines[i])
		if strings.Contains(line, "correct") || strings.Contains(line, "正确") || strings.Contains(line, "错误") {
			return lines[i]
		}
	}
	return text
}

func verdict(line string) Score {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "incorrect"), strings.Contains(line, "错误"):
		return ScoreIncorrect
	case strings.Contains(lower, "correct"), strings.Contains(line, "正确"):
		return ScoreCorrect
	default:
		return ScoreIncorrect
	}
}

func justification(text string) string {
	for _, marker := range justificationMarkers {
		if idx := strings.Index(text, marker); idx >= 0 {
			return strings.TrimSpace(text[idx+len(marker):])
		}
	}
	return text
}

var errMalformedPair = errors.New("reply is not a question/answer object")

// parseQAPair extracts the JSON object a generation reply is expected to contain.
func parseQAPair(reply string) (QAPair, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return QAPair{}, errMalformedPair
	}
	var pair QAPair
	if err := json.Unmarshal([]byte(reply[start:end+1]), &pair); err != nil {
		return QAPair{}, err
	}
	pair.Question = strings.TrimSpace(pair.Question)
	pair.Answer = strings.TrimSpace(pair.Answer)
	if pair.Question == "" || pair.Answer == "" {
		return QAPair{}, errMalformedPair
	}
	return pair, nil
}
