package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

var pronounIPattern = regexp.MustCompile(`\bi('(m|d|ll|ve))?\b`)

// abbreviations whose trailing period does not end a sentence.
var abbreviations = map[string]struct{}{
	"e.g": {}, "i.e": {}, "etc": {}, "vs": {}, "mr": {}, "mrs": {}, "ms": {}, "dr": {},
	"k.m": {}, "n.k": {}, "bw": {}, "bi": {},
}

// capitalizeSentenceStarts uppercases the first letter of the text and of
// every word following a sentence terminator.
func capitalizeSentenceStarts(text string) string {
	runes := []rune(text)
	capitalize := true
	wordStart := 0

	for i, r := range runes {
		if unicode.IsSpace(r) {
			wordStart = i + 1
			continue
		}
		if capitalize && unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			capitalize = false
		} else if capitalize && unicode.IsDigit(r) {
			capitalize = false
		}

		switch r {
		case '!', '?':
			capitalize = true
		case '.':
			capitalize = endsSentence(runes, wordStart, i)
		}
	}
	return string(runes)
}

// endsSentence reports whether the period at idx closes a sentence rather
// than an abbreviation or a decimal.
func endsSentence(runes []rune, wordStart, idx int) bool {
	if idx+1 < len(runes) && !unicode.IsSpace(runes[idx+1]) {
		return false
	}
	word := strings.ToLower(strings.Trim(string(runes[wordStart:idx]), `"'()[]`))
	_, abbreviated := abbreviations[word]
	return !abbreviated
}

func capitalizePronounI(text string) string {
	return pronounIPattern.ReplaceAllStringFunc(text, func(match string) string {
		return "I" + match[1:]
	})
}
