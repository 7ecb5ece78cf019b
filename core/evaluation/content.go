package evaluation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/kohlab/pyeongga/core"
)

// ContentRules holds the structural feedback thresholds. All checks are local
// and deterministic; no network service is involved. Every violated rule is
// reported, not just the first.
type ContentRules struct {
	MinLength          int
	MinSentences       int
	MaxRunLength       int
	MaxEmojiDensity    float64
	MinUniqueSentences float64
}

func DefaultContentRules() ContentRules {
	fb := core.Conf.Feedback
	return ContentRules{
		MinLength:          fb.MinLength,
		MinSentences:       fb.MinSentences,
		MaxRunLength:       fb.MaxRunLength,
		MaxEmojiDensity:    fb.MaxEmojiDensity,
		MinUniqueSentences: fb.MinUniqueSentences,
	}
}

var (
	msgFeedbackRequired   = "feedback is required"
	msgCharRun            = "feedback contains the same character repeated too many times"
	msgWhitespaceRun      = "feedback contains excessive whitespace"
	msgPunctuationRun     = "feedback contains repeated punctuation"
	msgConsonantRun       = "feedback contains runs of isolated consonants"
	msgRepeatedEmoticons  = "feedback contains repeated emoticons"
	msgEmojiDensity       = "feedback is mostly emoji"
	msgRepeatedSentences  = "feedback repeats the same sentence"
	msgGenericBoilerplate = "feedback is generic boilerplate"

	sentenceEnders = regexp.MustCompile(`[.!?。！？\n]+`)
	emoticonRuns   = regexp.MustCompile(`(\^\^+|;;+|ㅠㅠ+|ㅜㅜ+|ㅎㅎ+|ㅋㅋ+|TT+|ㅡㅡ+)`)
	normalizeDrop  = regexp.MustCompile(`[\s.,!?~^;:'"()\[\]{}…。！？]+`)

	// closed set of generic boilerplate phrases, matched after
	// whitespace/punctuation normalization
	genericPhrases = map[string]bool{
		"잘했습니다":   true,
		"잘하셨습니다":  true,
		"수고했습니다":  true,
		"수고하셨습니다": true,
		"고생했습니다":  true,
		"고생하셨습니다": true,
		"좋았습니다":   true,
		"좋습니다":    true,
		"훌륭합니다":   true,
		"최고입니다":   true,
		"괜찮았습니다":  true,
	}
)

// Validate runs every structural check on the feedback text and returns all
// violated rule messages.
func (r ContentRules) Validate(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []string{msgFeedbackRequired}
	}

	var msgs []string
	runes := []rune(trimmed)

	if len(runes) < r.MinLength {
		msgs = append(msgs, fmt.Sprintf("feedback must contain at least %d characters", r.MinLength))
	}

	sentences := SplitSentences(trimmed)
	if len(sentences) < r.MinSentences {
		msgs = append(msgs, fmt.Sprintf("feedback must contain at least %d sentences", r.MinSentences))
	}

	if hasCharRun(runes, r.MaxRunLength) {
		msgs = append(msgs, msgCharRun)
	}
	if hasClassRun(runes, r.MaxRunLength, unicode.IsSpace) {
		msgs = append(msgs, msgWhitespaceRun)
	}
	if hasClassRun(runes, r.MaxRunLength, isPunctuation) {
		msgs = append(msgs, msgPunctuationRun)
	}
	if hasClassRun(runes, r.MaxRunLength, isIsolatedConsonant) {
		msgs = append(msgs, msgConsonantRun)
	}
	if len(emoticonRuns.FindAllString(trimmed, -1)) >= 2 {
		msgs = append(msgs, msgRepeatedEmoticons)
	}
	if emojiDensity(runes) > r.MaxEmojiDensity {
		msgs = append(msgs, msgEmojiDensity)
	}
	if len(sentences) >= 3 && uniqueSentenceRatio(sentences) < r.MinUniqueSentences {
		msgs = append(msgs, msgRepeatedSentences)
	}
	if isGeneric(trimmed, sentences) {
		msgs = append(msgs, msgGenericBoilerplate)
	}
	return msgs
}

// SplitSentences splits text on sentence punctuation and on the Korean
// sentence-final "~다"/"~요" enders followed by whitespace.
func SplitSentences(text string) []string {
	t := strings.NewReplacer("다 ", "다.", "요 ", "요.").Replace(text + " ")
	parts := sentenceEnders.Split(t, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// hasCharRun detects the same rune repeated maxRun or more times in a row.
func hasCharRun(runes []rune, maxRun int) bool {
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			if run++; run >= maxRun {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// hasClassRun detects maxRun or more consecutive runes of the same class,
// identical or not.
func hasClassRun(runes []rune, maxRun int, class func(rune) bool) bool {
	run := 0
	for _, r := range runes {
		if class(r) {
			if run++; run >= maxRun {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

func isPunctuation(r rune) bool { return unicode.IsPunct(r) }

// isIsolatedConsonant matches Hangul compatibility jamo consonants (ㄱ-ㅎ),
// i.e. characters like ㅋ or ㅎ typed outside a composed syllable.
func isIsolatedConsonant(r rune) bool { return r >= 0x3131 && r <= 0x314E }

func isEmoji(r rune) bool {
	return (r >= 0x1F300 && r <= 0x1FAFF) ||
		(r >= 0x2600 && r <= 0x27BF) ||
		(r >= 0x1F000 && r <= 0x1F0FF)
}

func emojiDensity(runes []rune) float64 {
	if len(runes) == 0 {
		return 0
	}
	count := 0
	for _, r := range runes {
		if isEmoji(r) {
			count++
		}
	}
	return float64(count) / float64(len(runes))
}

// uniqueSentenceRatio returns the share of sentences that are not
// near-duplicates of an earlier sentence in the same text.
func uniqueSentenceRatio(sentences []string) float64 {
	const nearDuplicate = .8

	unique := 0
	seen := make([]string, 0, len(sentences))
	for _, s := range sentences {
		norm := normalizeText(s)
		dup := false
		for _, prev := range seen {
			if TextSimilarity(norm, prev) >= nearDuplicate {
				dup = true
				break
			}
		}
		if !dup {
			unique++
		}
		seen = append(seen, norm)
	}
	return float64(unique) / float64(len(sentences))
}

// TextSimilarity is a [0,1] similarity ratio between two texts.
func TextSimilarity(a, b string) float64 {
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).QuickRatio()
}

func normalizeText(s string) string {
	return strings.ToLower(normalizeDrop.ReplaceAllString(s, ""))
}

// isGeneric reports whether the whole text, or every one of its sentences, is
// a known boilerplate phrase.
func isGeneric(text string, sentences []string) bool {
	if genericPhrases[normalizeText(text)] {
		return true
	}
	if len(sentences) == 0 {
		return false
	}
	for _, s := range sentences {
		if !genericPhrases[normalizeText(s)] {
			return false
		}
	}
	return true
}
