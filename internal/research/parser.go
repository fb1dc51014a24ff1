package research

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MalformedOutputError reports model output that fails structural parsing.
// It aborts the run; there is no retry.
type MalformedOutputError struct {
	Phase string
	Cause error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed model output in %s: %v", e.Phase, e.Cause)
}

func (e *MalformedOutputError) Unwrap() error { return e.Cause }

// GenerateQueryResult is the query-generation phase payload.
type GenerateQueryResult struct {
	Rationale string   `json:"rationale"`
	Queries   []string `json:"query"`
}

// ReflectionResult drives the loop's continue/stop decision.
type ReflectionResult struct {
	IsSufficient    bool     `json:"is_sufficient"`
	KnowledgeGap    string   `json:"knowledge_gap"`
	FollowUpQueries []string `json:"follow_up_queries"`
}

// ParseGenerateQuery decodes the query-generation payload. Models sometimes
// wrap the object in a code fence or emit Python-literal single quotes; both
// are tolerated. Missing required fields are not.
func ParseGenerateQuery(raw string) (GenerateQueryResult, error) {
	text := stripFences(strings.TrimSpace(raw))

	var result GenerateQueryResult
	err := json.Unmarshal([]byte(text), &result)
	if err != nil {
		// Second chance: single-quoted literal style.
		if err2 := json.Unmarshal([]byte(singleToDoubleQuotes(text)), &result); err2 != nil {
			return result, &MalformedOutputError{Phase: "query generation", Cause: err}
		}
	}
	if result.Rationale == "" {
		return result, &MalformedOutputError{Phase: "query generation", Cause: fmt.Errorf("missing rationale")}
	}
	if len(result.Queries) == 0 {
		return result, &MalformedOutputError{Phase: "query generation", Cause: fmt.Errorf("empty query list")}
	}
	return result, nil
}

// ParseReflection decodes the reflection payload as strict JSON. Absence of
// is_sufficient is a data error, not "insufficient".
func ParseReflection(raw string) (ReflectionResult, error) {
	text := stripFences(strings.TrimSpace(raw))

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &keys); err != nil {
		return ReflectionResult{}, &MalformedOutputError{Phase: "reflection", Cause: err}
	}
	if _, ok := keys["is_sufficient"]; !ok {
		return ReflectionResult{}, &MalformedOutputError{Phase: "reflection", Cause: fmt.Errorf("missing is_sufficient")}
	}

	var result ReflectionResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return ReflectionResult{}, &MalformedOutputError{Phase: "reflection", Cause: err}
	}
	return result, nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.Index(text, "\n"); i >= 0 {
		// Drop the language tag line (```json).
		text = text[i+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// singleToDoubleQuotes converts a Python-literal-ish payload to JSON. It only
// swaps quote characters outside of double-quoted strings, which covers the
// common {'key': 'value'} looseness without touching embedded apostrophes in
// already-valid JSON.
func singleToDoubleQuotes(text string) string {
	var out strings.Builder
	inDouble := false
	escaped := false
	for _, r := range text {
		switch {
		case escaped:
			escaped = false
			out.WriteRune(r)
		case r == '\\':
			escaped = true
			out.WriteRune(r)
		case r == '"':
			inDouble = !inDouble
			out.WriteRune(r)
		case r == '\'' && !inDouble:
			out.WriteRune('"')
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}
