package recovery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ixado-dev/ixado/internal/model"
)

var fencedJSONBlock = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// extractStrictJSON decodes a RecoveryResult from adapter output, trying
// three strategies in order: a direct parse of the trimmed output, a
// fenced ```json``` code block, and the first balanced {...} object found
// via a brace/string-depth scan. Unknown fields are rejected at every
// stage so a schema violation surfaces as an error rather than silently
// dropping data.
func extractStrictJSON(output string) (model.RecoveryResult, error) {
	trimmed := strings.TrimSpace(output)

	if result, err := decodeStrict(trimmed); err == nil {
		return result, nil
	}

	if m := fencedJSONBlock.FindStringSubmatch(output); m != nil {
		if result, err := decodeStrict(m[1]); err == nil {
			return result, nil
		}
	}

	if obj, err := extractBalancedObject(output); err == nil {
		if result, err := decodeStrict(obj); err == nil {
			return result, nil
		}
	}

	return model.RecoveryResult{}, fmt.Errorf("no strict-schema RecoveryResult JSON found in adapter output")
}

func decodeStrict(candidate string) (model.RecoveryResult, error) {
	var result model.RecoveryResult
	dec := json.NewDecoder(bytes.NewReader([]byte(candidate)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		return model.RecoveryResult{}, err
	}
	if dec.More() {
		return model.RecoveryResult{}, fmt.Errorf("trailing data after JSON object")
	}
	return result, nil
}

// extractBalancedObject scans s for the first complete top-level {...}
// object, tracking string/escape state so braces inside string literals
// are ignored.
func extractBalancedObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", fmt.Errorf("no { found")
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("incomplete JSON object")
}
