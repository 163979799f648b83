package sqlgen

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/arunmenon/text2sql/engine/core"
	"github.com/arunmenon/text2sql/engine/llm"
)

// Validation is the outcome of checking a generated statement.
type Validation struct {
	Valid       bool     `json:"valid"`
	Confidence  float64  `json:"confidence"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	// Local marks validations produced by structural checks after a
	// service failure.
	Local bool `json:"local,omitempty"`
}

// forbiddenKeywords are statement keywords that must never appear in a
// generated read query.
var forbiddenKeywords = regexp.MustCompile(
	`(?i)\b(insert|update|delete|drop|alter|truncate|create|grant|revoke|merge)\b`)

// ValidateSQL prefers a generation-service review of the statement and
// falls back to local structural checks when the service fails.
func ValidateSQL(ctx context.Context, generator llm.Generator, sql string) Validation {
	prompt := fmt.Sprintf(
		"Review this SQL SELECT statement for syntactic validity and obvious semantic problems. "+
			"Report valid (boolean), confidence between 0 and 1, and any issues and suggestions.\nSQL: %s",
		sql)
	var out Validation
	if err := generator.GenerateStructured(ctx, prompt, &out, "valid", "confidence"); err != nil {
		return validateLocally(sql)
	}
	out.Confidence = core.ClampConfidence(out.Confidence)
	// The service reviews style and semantics; structure is still ours
	// to enforce.
	if out.Valid {
		if local := validateLocally(sql); !local.Valid {
			return local
		}
	}
	return out
}

// validateLocally applies structural checks: a SELECT with a FROM,
// balanced parentheses, and no mutating statement keywords.
func validateLocally(sql string) Validation {
	v := Validation{Valid: true, Confidence: 0.6, Local: true}
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return Validation{Local: true, Issues: []string{"statement is empty"}}
	}
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		v.Valid = false
		v.Issues = append(v.Issues, "statement does not start with SELECT")
	}
	if !strings.Contains(upper, "FROM") {
		v.Valid = false
		v.Issues = append(v.Issues, "statement has no FROM clause")
	}
	if depth := parenDepth(trimmed); depth != 0 {
		v.Valid = false
		v.Issues = append(v.Issues, "unbalanced parentheses")
	}
	if match := forbiddenKeywords.FindString(trimmed); match != "" {
		v.Valid = false
		v.Issues = append(v.Issues, fmt.Sprintf("forbidden keyword %q", strings.ToUpper(match)))
	}
	if !v.Valid {
		v.Confidence = 0
	}
	return v
}

func parenDepth(sql string) int {
	depth := 0
	for _, r := range sql {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return depth
			}
		}
	}
	return depth
}
