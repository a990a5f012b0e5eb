package intent

import "fmt"

// ExtractJSON returns the first balanced JSON object embedded in s. Models
// wrap their output in markdown fences or prose often enough that the raw
// response cannot be fed to the decoder directly; this scans for the first
// '{' and walks a depth counter to its matching '}'.
//
// Brace characters inside JSON string literals are skipped so that prompts
// echoed back in field values cannot unbalance the scan.
func ExtractJSON(s string) (string, error) {
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			start = i
			break
		}
	}
	if start == -1 {
		return "", fmt.Errorf("intent: no JSON object start in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("intent: unbalanced JSON object in response")
}
