package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/headshot/pkg/types"
)

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseFaceReport parses a model answer into a FaceReport.
// Answers that are not JSON yield an empty report rather than an error:
// a confused model means "no face", not a failed pipeline.
func ParseFaceReport(raw string) *types.FaceReport {
	raw = SanitizeModelJSON(raw)

	var report types.FaceReport
	if !strings.HasPrefix(raw, "{") {
		return &report
	}
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return &types.FaceReport{}
	}

	faces := report.Faces[:0]
	for _, f := range report.Faces {
		if f.Box.W <= 0 || f.Box.H <= 0 {
			continue
		}
		faces = append(faces, f)
	}
	report.Faces = faces
	return &report
}

// SanitizeModelJSON removes code fences, comments and trailing commas from a model answer
// and keeps only the outermost {...}
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
