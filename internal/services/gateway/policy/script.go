package policy

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ScriptID extracts the script identifier from a script command: the text
// before the first parenthesis, or else the first whitespace-delimited token,
// lower-cased. It is only used for allowlist matching.
func ScriptID(command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return ""
	}
	var id string
	if i := strings.Index(command, "("); i >= 0 {
		id = strings.TrimSpace(command[:i])
	} else {
		id = strings.Fields(command)[0]
	}
	return cases.Lower(language.Und).String(id)
}
