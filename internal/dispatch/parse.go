package dispatch

import "strings"

// Parsed is a text event split into prefix, command token and arguments.
type Parsed struct {
	Prefix string
	Token  string
	Args   []string
}

// Parse matches content against prefixes in order; the first literal prefix
// wins. ok is false when no prefix matches.
func Parse(prefixes []string, content string) (p Parsed, ok bool) {
	for _, prefix := range prefixes {
		if prefix == "" || !strings.HasPrefix(content, prefix) {
			continue
		}
		fields := strings.Fields(content[len(prefix):])
		p.Prefix = prefix
		if len(fields) > 0 {
			p.Token = strings.ToLower(fields[0])
			p.Args = fields[1:]
		}
		return p, true
	}
	return Parsed{}, false
}
