package prompt

import "regexp"

var (
	// (Author, 2020) and (Smith et al. 2019); PDF text often spaces these
	// with NBSP, so Unicode space separators count as whitespace.
	authorYearCitation = regexp.MustCompile(`\([A-Za-z0-9,.\s\p{Zs}]+[\s\p{Zs}]\d{4}\)`)
	// [1], [3-5], [3, 33, 49]
	numericCitation = regexp.MustCompile(`\[[0-9,-]+(,\s[0-9,-]+)*\]`)
)

// RemoveCitations strips in-text citations.
func RemoveCitations(text string) string {
	text = authorYearCitation.ReplaceAllString(text, "")
	return numericCitation.ReplaceAllString(text, "")
}

// CleanPDFText normalizes text extracted from a PDF before splitting.
// TODO: drop the References/Bibliography section as well.
func CleanPDFText(text string) string {
	return RemoveCitations(text)
}
