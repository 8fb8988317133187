package prompt

import "strings"

// verbatimSections hold lines whose repetition is meaningful, such as a
// customer sending the same message twice.
var verbatimSections = map[string]bool{
	"## Recent conversation": true,
	"## Orders":              true,
	"## Query":               true,
}

// Compress shrinks a prompt: runs of spaces and tabs become one space,
// trailing whitespace is dropped and blank-line runs collapse to a single
// blank line. Adjacent duplicate lines are removed, except inside the
// conversation, orders and query sections where every line is kept.
func Compress(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))

	prev := ""
	blank := false
	verbatim := false
	inQuery := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")

		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			prev = ""
			out = append(out, "")
			continue
		}
		blank = false

		// The query is last and user-supplied, so headers inside it are text.
		if !inQuery && strings.HasPrefix(line, "## ") {
			verbatim = verbatimSections[line]
			inQuery = line == "## Query"
		}

		if line == prev && !verbatim {
			continue
		}
		prev = line
		out = append(out, line)
	}

	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
