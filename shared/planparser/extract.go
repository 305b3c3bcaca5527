package planparser

import (
	"log"
	"regexp"
	"strings"
)

// Extraction methods, in the order ExtractJSON tries them.
const (
	MethodDirect         = "direct"
	MethodCodeBlock      = "codeblock"
	MethodOutermost      = "outermost-braces"
	MethodOutermostFixed = "outermost-fixed"
	MethodArrayWrapped   = "array-wrapped"
	MethodNone           = "none"
)

// Extraction is the result of recovering JSON from model output.
type Extraction struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	RawJSON string `json:"rawJson"`
	Method  string `json:"method"`
	Error   string `json:"error"`
}

var (
	codeBlockRe     = regexp.MustCompile("```(?:json)?\\s*((?s:.*?))```")
	preambleHereRe  = regexp.MustCompile(`(?i)^\s*Here['’]s your.*?:\s*`)
	preambleBasedRe = regexp.MustCompile(`(?i)^\s*Based on.*?:\s*`)
)

// ExtractJSON recovers a JSON document from free-form planner output.
func ExtractJSON(text string) Extraction {
	if strings.TrimSpace(text) == "" {
		return Extraction{Method: MethodNone, Error: "Empty or invalid input"}
	}

	trimmed := strings.TrimSpace(text)
	if data, err := decode(trimmed); err == nil {
		return Extraction{Success: true, Data: data, RawJSON: trimmed, Method: MethodDirect}
	}

	if m := codeBlockRe.FindStringSubmatch(text); m != nil {
		body := strings.TrimSpace(m[1])
		if data, err := decode(body); err == nil {
			return Extraction{Success: true, Data: data, RawJSON: body, Method: MethodCodeBlock}
		}
		log.Printf("Warning: code block found in planner output but it is not valid JSON")
	}

	if res := extractOutermostObject(text); res.Success {
		return res
	}

	if res := extractOutermostArray(text); res.Success {
		return Extraction{
			Success: true,
			Data:    map[string]any{"schedule": res.Data},
			RawJSON: res.RawJSON,
			Method:  MethodArrayWrapped,
		}
	}

	if res := extractOutermostObject(cleanup(text)); res.Success {
		return res
	}

	return Extraction{Method: MethodNone, Error: "Could not extract valid JSON"}
}

func decode(s string) (any, error) {
	return decodeOrdered([]byte(s))
}

// outermost returns the first balanced span delimited by open and close.
// Delimiters inside strings are counted too.
func outermost(text string, open, close byte) (string, bool) {
	depth, start := 0, -1
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case close:
			depth--
			if depth == 0 && start != -1 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func extractOutermostObject(text string) Extraction {
	span, ok := outermost(text, '{', '}')
	if !ok {
		return Extraction{Method: "outermost-notfound", Error: "No JSON object found"}
	}
	if data, err := decode(span); err == nil {
		return Extraction{Success: true, Data: data, RawJSON: span, Method: MethodOutermost}
	}

	fixed := FixCommonIssues(span)
	data, err := decode(fixed)
	if err != nil {
		return Extraction{RawJSON: span, Method: "outermost-failed", Error: err.Error()}
	}
	return Extraction{Success: true, Data: data, RawJSON: fixed, Method: MethodOutermostFixed}
}

func extractOutermostArray(text string) Extraction {
	if !strings.Contains(text, "pillar") && !strings.Contains(text, "schedule") {
		return Extraction{Method: "array-skip", Error: "No schedule indicators"}
	}
	span, ok := outermost(text, '[', ']')
	if ok {
		if data, err := decode(span); err == nil {
			if list, ok := data.([]any); ok {
				return Extraction{Success: true, Data: list, RawJSON: span, Method: "array"}
			}
		}
	}
	return Extraction{Method: "array-notfound", Error: "No valid array found"}
}

func cleanup(text string) string {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = preambleHereRe.ReplaceAllString(cleaned, "")
	cleaned = preambleBasedRe.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

type repair struct {
	re   *regexp.Regexp
	repl string
}

var (
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRe   = regexp.MustCompile(`([{,])\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)
	zeroWidthRe     = regexp.MustCompile("[\u200B-\u200D\uFEFF]")

	commaRepairs = []repair{
		{regexp.MustCompile(`(")\s*\n\s*(")`), "$1,\n$2"},
		{regexp.MustCompile(`(\})\s*\n\s*(\{)`), "$1,\n$2"},
		{regexp.MustCompile(`("[^"]*")\s*\n\s*("[^"]+"\s*:)`), "$1,\n$2"},
		{regexp.MustCompile(`(\d+)\s*\n\s*("[^"]+"\s*:)`), "$1,\n$2"},
		{regexp.MustCompile(`(?i)(true|false|null)\s*\n\s*("[^"]+"\s*:)`), "$1,\n$2"},
		{regexp.MustCompile(`([}\]])\s*\n\s*("[^"]+"\s*:)`), "$1,\n$2"},
		{regexp.MustCompile(`("[^"]*")\s{2,}("[^"]+"\s*:)`), "$1, $2"},
		{regexp.MustCompile(`(\})\s+(\{)`), "$1, $2"},
		{regexp.MustCompile(`(\])\s+(\[)`), "$1, $2"},
	}

	unterminatedRepairs = []repair{
		{regexp.MustCompile(`("[^"\n]*)\n\s*\}`), "$1\"\n}"},
		{regexp.MustCompile(`("[^"\n]*)\n\s*\]`), "$1\"\n]"},
	}
)

// FixCommonIssues repairs the malformations language models most often
// produce: trailing commas, single quotes, bare keys, missing separators,
// zero-width characters, doubled colons and unterminated strings.
func FixCommonIssues(s string) string {
	fixed := trailingCommaRe.ReplaceAllString(s, "$1")

	if !strings.Contains(fixed, `"`) && strings.Contains(fixed, "'") {
		fixed = strings.ReplaceAll(fixed, "'", `"`)
	}

	fixed = unquotedKeyRe.ReplaceAllString(fixed, `$1"$2":`)

	for _, r := range commaRepairs {
		fixed = r.re.ReplaceAllString(fixed, r.repl)
	}

	fixed = zeroWidthRe.ReplaceAllString(fixed, "")
	fixed = strings.ReplaceAll(fixed, "::", ":")

	if strings.Count(fixed, `"`)%2 != 0 {
		log.Printf("Warning: odd number of quotes in planner JSON, closing unterminated strings")
		for _, r := range unterminatedRepairs {
			fixed = r.re.ReplaceAllString(fixed, r.repl)
		}
	}
	return fixed
}
