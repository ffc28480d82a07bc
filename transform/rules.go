package transform

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Rules is the local, deterministic style rewrite. It is safe for concurrent
// use; casers are created per call.
type Rules struct {
	tag     language.Tag
	english bool
}

// NewRules returns rules for the BCP 47 language lang. An empty or invalid
// tag means English.
func NewRules(lang string) *Rules {
	tag := language.English
	if lang != "" {
		if t, err := language.Parse(lang); err == nil {
			tag = t
		}
	}
	base, _ := tag.Base()
	return &Rules{tag: tag, english: base.String() == "en"}
}

// Apply rewrites req.Text in req.Style. Whitespace is always normalized to
// single spaces. Category does not affect the rule stage.
func (r *Rules) Apply(req Request) string {
	text := strings.Join(strings.Fields(req.Text), " ")
	if text == "" {
		return ""
	}

	switch ParseStyle(string(req.Style)) {
	case Casual:
		return trimTrailingPeriods(r.sentenceCase(text))
	case VeryCasual:
		return trimTrailingPeriods(cases.Lower(r.tag).String(text))
	case Excited:
		return r.exclaim(r.sentenceCase(text))
	default:
		return terminate(r.sentenceCase(text))
	}
}

func (r *Rules) sentenceCase(text string) string {
	upper := cases.Upper(r.tag)
	words := strings.Split(text, " ")
	start := true
	for i, w := range words {
		if start || (r.english && isPronounI(w)) {
			words[i] = capitalizeFirst(upper, w)
		}
		start = endsSentence(w) && !isAbbreviation(w)
	}
	return strings.Join(words, " ")
}

// exclaim turns sentence-ending periods into exclamation marks and makes
// sure the text ends with one.
func (r *Rules) exclaim(text string) string {
	words := strings.Split(text, " ")
	for i, w := range words {
		if strings.HasSuffix(w, ".") && !strings.HasSuffix(w, "..") && !isAbbreviation(w) {
			words[i] = strings.TrimSuffix(w, ".") + "!"
		}
	}
	text = strings.Join(words, " ")
	if !endsSentence(text) {
		text = strings.TrimRight(text, ",;:") + "!"
	}
	return text
}

func capitalizeFirst(upper cases.Caser, w string) string {
	for i, rr := range w {
		if unicode.IsLetter(rr) {
			return w[:i] + upper.String(string(rr)) + w[i+utf8.RuneLen(rr):]
		}
		if unicode.IsDigit(rr) {
			return w
		}
	}
	return w
}

const closers = `"')]”’`

func endsSentence(w string) bool {
	w = strings.TrimRight(w, closers)
	if w == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(w)
	return last == '.' || last == '!' || last == '?' || last == '…'
}

var abbreviations = map[string]bool{
	"mr.": true, "mrs.": true, "ms.": true, "dr.": true, "st.": true,
	"vs.": true, "etc.": true, "e.g.": true, "i.e.": true, "jr.": true, "sr.": true,
}

func isAbbreviation(w string) bool {
	return abbreviations[strings.ToLower(strings.TrimLeft(w, `"'(`))]
}

// isPronounI matches the English pronoun "i" and its contractions, ignoring
// surrounding punctuation.
func isPronounI(w string) bool {
	core := strings.TrimLeft(w, `"'(“‘`)
	if core == "" || core[0] != 'i' {
		return false
	}
	rest := core[1:]
	if rest == "" {
		return true
	}
	if strings.HasPrefix(rest, "'") || strings.HasPrefix(rest, "’") {
		return true
	}
	return strings.TrimLeft(rest, `.,!?;:)"'”’`) == ""
}

func terminate(text string) string {
	if endsSentence(text) {
		return text
	}
	return strings.TrimRight(text, ",;:") + "."
}

func trimTrailingPeriods(text string) string {
	trimmed := strings.TrimRight(text, ".")
	if trimmed == "" || strings.HasSuffix(text, "...") {
		return text
	}
	return trimmed
}
