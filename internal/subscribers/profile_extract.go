package subscribers

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	maxCodingLanguages = 10
	maxPreferences     = 12
	maxFocusLen        = 140
	minScriptRunes     = 6
)

// codingLanguagePatterns map a canonical language name to the evidence that
// names it: the language itself or its file extension. Plain "go" is too
// common as a verb, so Go needs the explicit forms.
var codingLanguagePatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"go", regexp.MustCompile(`(?i)\bgolang\b|\.go\b|\bgo\.mod\b`)},
	{"python", regexp.MustCompile(`(?i)\bpython\b|\.py\b`)},
	{"typescript", regexp.MustCompile(`(?i)\btypescript\b|\.tsx?\b`)},
	{"javascript", regexp.MustCompile(`(?i)\bjavascript\b|\bnode\.?js\b|\.[mc]?jsx?\b`)},
	{"rust", regexp.MustCompile(`(?i)\brust\b|\.rs\b|\bcargo\.toml\b`)},
	{"java", regexp.MustCompile(`(?i)\bjava\b[^s]|\.java\b`)},
	{"ruby", regexp.MustCompile(`(?i)\bruby\b|\.rb\b`)},
	{"c++", regexp.MustCompile(`(?i)\bc\+\+\b|\.cpp\b|\.cc\b`)},
	{"c#", regexp.MustCompile(`(?i)\bc#\b|\bdotnet\b|\.cs\b`)},
	{"shell", regexp.MustCompile(`(?i)\bshell script\b|\.sh\b`)},
	{"sql", regexp.MustCompile(`(?i)\bsql\b`)},
}

var (
	osPatterns = []struct {
		name string
		re   *regexp.Regexp
	}{
		{"macos", regexp.MustCompile(`(?i)\bmac\s?os\b|\bosx\b|\bdarwin\b|\bmacbook\b`)},
		{"windows", regexp.MustCompile(`(?i)\bwindows\b|\bwsl\b`)},
		{"linux", regexp.MustCompile(`(?i)\blinux\b|\bubuntu\b|\bdebian\b|\bfedora\b|\barch\b`)},
	}

	shellPattern = regexp.MustCompile(`(?i)\b(zsh|bash|fish|powershell)\b`)

	// pnpm must precede npm: "pnpm" contains "npm" as a substring.
	packageManagerPattern = regexp.MustCompile(`(?i)\b(pnpm|yarn|bun|npm|pipenv|poetry|pip|cargo)\b`)

	nodeVersionPattern = regexp.MustCompile(`(?i)\bnode(?:\.?js)?\s+v?(\d+(?:\.\d+){0,2})\b`)

	preferenceMarkers = []string{"i prefer", "prefer ", "always ", "never ", "please use", "use tabs", "use spaces", "don't use", "do not use"}
)

// detectNaturalLanguage guesses the user's writing language from its script.
// Latin-dominant text reports "en"; callers treat that as a weak signal,
// since code and error logs are Latin no matter what the user speaks.
func detectNaturalLanguage(text string) string {
	counts := map[string]int{}
	latin := 0
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			counts["zh"]++
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			counts["ja"]++
		case unicode.Is(unicode.Hangul, r):
			counts["ko"]++
		case unicode.Is(unicode.Cyrillic, r):
			counts["ru"]++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	// Kana outweighs Han for Japanese text that mixes both.
	if counts["ja"] >= minScriptRunes {
		return "ja"
	}
	best, bestCount := "", 0
	for lang, n := range counts {
		if n > bestCount {
			best, bestCount = lang, n
		}
	}
	if bestCount >= minScriptRunes && bestCount*4 >= latin {
		return best
	}
	if latin >= minScriptRunes && bestCount == 0 {
		return "en"
	}
	return ""
}

func detectCodingLanguages(text string) []string {
	var out []string
	for _, p := range codingLanguagePatterns {
		if p.re.MatchString(text) {
			out = append(out, p.name)
		}
	}
	return out
}

func detectEnvironment(text string) Environment {
	var env Environment
	for _, p := range osPatterns {
		if p.re.MatchString(text) {
			env.OS = p.name
			break
		}
	}
	if m := shellPattern.FindStringSubmatch(text); m != nil {
		env.Shell = strings.ToLower(m[1])
	}
	if m := packageManagerPattern.FindStringSubmatch(text); m != nil {
		env.PackageManager = strings.ToLower(m[1])
	}
	if m := nodeVersionPattern.FindStringSubmatch(text); m != nil {
		env.NodeVersion = m[1]
	}
	return env
}

// detectPreferences keeps sentences that read like standing instructions.
func detectPreferences(text string) []string {
	var out []string
	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		for _, marker := range preferenceMarkers {
			if strings.Contains(lower, marker) {
				out = append(out, truncateOutput(sentence, 120))
				break
			}
		}
	}
	return out
}

func splitSentences(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n' || r == ';'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// oneLineFocus reduces a user message to a short focus line.
func oneLineFocus(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if len(collapsed) > maxFocusLen {
		collapsed = collapsed[:maxFocusLen] + "..."
	}
	return collapsed
}
