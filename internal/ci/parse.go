package ci

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedJSONBlock = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// ParseReviewVerdict decodes a ReviewVerdict from reviewer adapter output,
// trying a direct parse, then a fenced ```json``` block, then the first
// balanced {...} object in the text. Unknown fields are rejected at every
// stage.
func ParseReviewVerdict(output string) (ReviewVerdict, error) {
	trimmed := strings.TrimSpace(output)

	if v, err := decodeStrictVerdict(trimmed); err == nil {
		return v, nil
	}
	if m := fencedJSONBlock.FindStringSubmatch(output); m != nil {
		if v, err := decodeStrictVerdict(m[1]); err == nil {
			return v, nil
		}
	}
	if obj, err := extractBalancedObject(output); err == nil {
		if v, err := decodeStrictVerdict(obj); err == nil {
			return v, nil
		}
	}
	return ReviewVerdict{}, fmt.Errorf("no strict-schema ReviewVerdict JSON found in reviewer output")
}

func decodeStrictVerdict(candidate string) (ReviewVerdict, error) {
	var v ReviewVerdict
	dec := json.NewDecoder(bytes.NewReader([]byte(candidate)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return ReviewVerdict{}, err
	}
	if dec.More() {
		return ReviewVerdict{}, fmt.Errorf("trailing data after JSON object")
	}
	return v, nil
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
