package transcribe

import (
	"strings"
	"unicode"
)

// questionLeads are lowercase first words that mark a sentence as a question.
var questionLeads = map[string]struct{}{
	"what":  {},
	"who":   {},
	"where": {},
	"when":  {},
	"why":   {},
	"how":   {},
	"is":    {},
	"are":   {},
	"do":    {},
	"does":  {},
	"did":   {},
	"can":   {},
	"could": {},
	"will":  {},
	"would": {},
}

// terminalPunct is the set of trailing characters that already close a
// sentence and suppress the appended period.
const terminalPunct = ".?!,;:-"

// shapeText normalizes one decoded fragment for display: leading capital,
// terminal punctuation, and a question mark when the fragment opens with an
// interrogative word.
func shapeText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	runes := []rune(text)
	runes[0] = unicode.ToUpper(runes[0])
	text = string(runes)

	if !strings.ContainsRune(terminalPunct, runes[len(runes)-1]) {
		text += "."
	}

	if strings.HasSuffix(text, ".") {
		first := strings.ToLower(strings.Fields(text)[0])
		first = strings.TrimRight(first, terminalPunct)
		if _, ok := questionLeads[first]; ok {
			text = strings.TrimSuffix(text, ".") + "?"
		}
	}

	return text
}
