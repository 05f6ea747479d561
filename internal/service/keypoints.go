package service

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"github.com/timmy/vidnotes/internal/domain"
)

// SimilarityThreshold is the default cut-off used to deduplicate key points.
const SimilarityThreshold = 0.7

const (
	noKeyPointsPlaceholder = "No key points could be automatically extracted from this transcript."
	maxImportantSentences  = 5
)

var (
	bulletPattern  = regexp.MustCompile(`(?im)(?:^|\n)(?:\d+\.\s|\*\s|-\s)(.+?)$`)
	keyPhrase      = regexp.MustCompile(`(?im)(?:Key|Important|Main)(?:\s+point|\s+takeaway|\s+idea|\s+concept|\s+fact)(?:s)?(?:\s+include|\s+is|\s+are)?(?:\s*:)?\s+(.+?)(?:$|\.)`)
	ordinalPattern = regexp.MustCompile(`(?im)(?:First|Second|Third|Fourth|Fifth|Finally|Lastly)(?:\s*,)?\s+(.+?)(?:$|\.)`)

	signalPatterns = []*regexp.Regexp{bulletPattern, keyPhrase, ordinalPattern}

	importanceMarkers = []string{
		"important", "significant", "key", "critical", "crucial", "essential",
		"main point", "highlight", "takeaway", "conclusion", "in summary",
		"to summarize", "noteworthy", "remember", "notably", "specifically",
	}
)

var (
	tokenizerOnce sync.Once
	tokenizer     sentences.SentenceTokenizer
)

// splitSentences segments text with the Punkt english model. It falls
// back to the whole text as one sentence if the model cannot be loaded.
func splitSentences(text string) []string {
	tokenizerOnce.Do(func() {
		t, err := english.NewSentenceTokenizer(nil)
		if err == nil {
			tokenizer = t
		}
	})
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if tokenizer == nil {
		return []string{text}
	}

	tokens := tokenizer.Tokenize(text)
	out := make([]string, 0, len(tokens))
	for _, s := range tokens {
		if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Similar reports whether a and b are near-duplicates: their lengths differ
// by no more than 1-threshold of the longer one and the Jaccard similarity
// of their lower-cased word sets exceeds threshold.
func Similar(a, b string, threshold float64) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return false
	}
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	if float64(diff)/float64(longest) > 1-threshold {
		return false
	}

	wa := wordSet(a)
	wb := wordSet(b)
	intersection := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			intersection++
		}
	}
	union := len(wa) + len(wb) - intersection
	if union == 0 {
		return false
	}
	return float64(intersection)/float64(union) > threshold
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// ExtractKeyPoints derives at most domain.MaxKeyPoints deduplicated points
// from generated summaries, topping up from the transcript when fewer than
// three survive. The result is never empty.
func ExtractKeyPoints(summaries []string, transcript string) []string {
	var candidates []string
	for _, summary := range summaries {
		candidates = append(candidates, signalPoints(summary)...)
		if len(candidates) < 2 {
			for _, sentence := range splitSentences(summary) {
				words := len(strings.Fields(sentence))
				if words >= 5 && words <= 25 && utf8.RuneCountInString(sentence) >= 50 {
					candidates = append(candidates, sentence)
				}
			}
		}
	}

	points := make([]string, 0, len(candidates))
	for _, c := range candidates {
		points = appendUnique(points, c)
	}

	if len(points) < 3 {
		for _, sentence := range importantSentences(transcript) {
			points = appendUnique(points, sentence)
		}
	}

	if len(points) == 0 {
		return []string{noKeyPointsPlaceholder}
	}
	if len(points) > domain.MaxKeyPoints {
		points = points[:domain.MaxKeyPoints]
	}
	return points
}

// signalPoints returns the captures of bulleted, "key point" and ordinal
// constructions, each terminated with punctuation.
func signalPoints(summary string) []string {
	var points []string
	for _, pattern := range signalPatterns {
		for _, match := range pattern.FindAllStringSubmatch(summary, -1) {
			point := strings.TrimSpace(match[1])
			if point == "" {
				continue
			}
			if !strings.HasSuffix(point, ".") && !strings.HasSuffix(point, "!") && !strings.HasSuffix(point, "?") {
				point += "."
			}
			points = append(points, point)
		}
	}
	return points
}

// importantSentences mines the transcript for sentences carrying an
// importance marker or of dense length.
func importantSentences(transcript string) []string {
	var out []string
	for _, sentence := range splitSentences(transcript) {
		lower := strings.ToLower(sentence)
		if containsAny(lower, importanceMarkers) {
			out = append(out, sentence)
		} else if n := utf8.RuneCountInString(sentence); n >= 100 && n <= 200 && len(strings.Fields(sentence)) >= 10 {
			out = append(out, sentence)
		}
		if len(out) == maxImportantSentences {
			break
		}
	}
	return out
}

func appendUnique(points []string, candidate string) []string {
	for _, existing := range points {
		if Similar(candidate, existing, SimilarityThreshold) {
			return points
		}
	}
	return append(points, candidate)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
