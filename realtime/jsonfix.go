package realtime

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Unescaped quotes inside a string value: `"prop": "he said "hi" there"`.
// Group 2 is the clean prefix of the value, group 3 the stretch with the
// stray quotes, group 4 the tail before the next delimiter.
var unescapedQuotePattern = regexp.MustCompile(`(:\s*")([^"\\]*(?:\\.[^"\\]*)*)([^\\]"[^"]*")([^,}\]]*)`)

// repairJSON attempts a single best-effort fix of tool-call argument
// strings whose inner quotes the model forgot to escape. Returns the
// input unchanged when it already parses or the repair does not help.
func repairJSON(s string) string {
	if json.Valid([]byte(s)) {
		return s
	}

	var b strings.Builder
	last := 0
	for _, m := range unescapedQuotePattern.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(s[last:m[0]])
		b.WriteString(s[m[2]:m[3]]) // ": "
		b.WriteString(s[m[4]:m[5]]) // clean prefix
		problem := s[m[6]:m[7]]
		problem = strings.ReplaceAll(problem, `"`, `\"`)
		problem = strings.ReplaceAll(problem, `\\"`, `\"`)
		b.WriteString(problem)
		b.WriteString(s[m[8]:m[9]]) // tail
		last = m[1]
	}
	b.WriteString(s[last:])

	fixed := b.String()
	if json.Valid([]byte(fixed)) {
		return fixed
	}
	return s
}
