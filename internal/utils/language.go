package utils

import (
	"regexp"
	"strings"
)

// Language codes
const (
	LangEnglish    = "en"
	LangHebrew     = "he"
	LangArabic     = "ar"
	LangRussian    = "ru"
	LangChinese    = "zh"
	LangJapanese   = "ja"
	LangKorean     = "ko"
	LangSpanish    = "es"
	LangFrench     = "fr"
	LangGerman     = "de"
	LangItalian    = "it"
	LangPortuguese = "pt"
)

// Language represents a detected language
type Language struct {
	Code       string
	Name       string
	Confidence float64
}

// ScriptRatio represents the ratio of characters in a specific script
type ScriptRatio struct {
	Code  string
	Name  string
	Ratio float64
}

// scriptPatterns covers the non-Latin scripts guests write in
var scriptPatterns = []struct {
	code    string
	name    string
	pattern *regexp.Regexp
}{
	{LangHebrew, "Hebrew", regexp.MustCompile(`[\x{0590}-\x{05FF}]`)},
	{LangArabic, "Arabic", regexp.MustCompile(`[\x{0600}-\x{06FF}]`)},
	{LangRussian, "Russian", regexp.MustCompile(`[\x{0400}-\x{04FF}]`)},
	{LangChinese, "Chinese", regexp.MustCompile(`[\x{4E00}-\x{9FFF}]`)},
	{LangJapanese, "Japanese", regexp.MustCompile(`[\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FFF}]`)},
	{LangKorean, "Korean", regexp.MustCompile(`[\x{AC00}-\x{D7AF}]`)},
}

// latinHints are marker words and character sequences for the
// Latin-script languages that show up in a short-term-rental inbox.
// Marker words only count as whole words; "ich" inside "which" is not
// German.
var latinHints = []struct {
	code  string
	name  string
	words []string
	chars []string
}{
	{LangSpanish, "Spanish", []string{"hola", "gracias", "está", "habitación", "dónde", "cuándo", "llegada"}, []string{"¿", "¡", "ñ"}},
	{LangPortuguese, "Portuguese", []string{"olá", "obrigado", "obrigada", "você", "não", "quarto", "chegada"}, []string{"ção"}},
	{LangFrench, "French", []string{"bonjour", "merci", "où", "chambre", "c'est", "arrivée", "nuit"}, []string{"ç"}},
	{LangGerman, "German", []string{"hallo", "danke", "bitte", "zimmer", "nicht", "können", "anreise"}, []string{"ß"}},
	{LangItalian, "Italian", []string{"ciao", "grazie", "perché", "vorrei", "notte", "disponibile", "arrivo"}, nil},
}

const minLatinHints = 2

var latinWordPattern = regexp.MustCompile(`[\p{L}']+`)

// DetectLanguage guesses the language a guest wrote in. Non-Latin text
// is classified by which Unicode script dominates; Latin-script text is
// matched against per-language marker words and falls back to English.
func DetectLanguage(text string) Language {
	text = strings.TrimSpace(text)
	if text == "" {
		return Language{Code: LangEnglish, Name: "English", Confidence: 0.0}
	}

	ratios := calculateScriptRatios(text)
	best := determineScriptFromRatios(ratios)

	if best.Code == LangChinese || best.Code == LangJapanese {
		return resolveHanScript(best, text)
	}
	if best.Code == LangEnglish {
		return detectLatinLanguage(text)
	}
	return Language{Code: best.Code, Name: best.Name, Confidence: best.Ratio}
}

// calculateScriptRatios calculates the ratio of characters for each script
func calculateScriptRatios(text string) []ScriptRatio {
	textRunes := float64(len([]rune(text)))

	ratios := make([]ScriptRatio, 0, len(scriptPatterns))
	for _, script := range scriptPatterns {
		matches := script.pattern.FindAllString(text, -1)
		ratios = append(ratios, ScriptRatio{
			Code:  script.code,
			Name:  script.name,
			Ratio: float64(len(matches)) / textRunes,
		})
	}
	return ratios
}

// determineScriptFromRatios picks the dominant script above the
// threshold, with a lower bar for mixed-language text
func determineScriptFromRatios(ratios []ScriptRatio) ScriptRatio {
	threshold := 0.1 // Minimum 10% of characters must be in the target script

	best := ScriptRatio{Code: LangEnglish, Name: "English", Ratio: 0.0}
	for _, ratio := range ratios {
		if ratio.Ratio > threshold && ratio.Ratio > best.Ratio {
			best = ratio
		}
	}

	if best.Code == LangEnglish {
		for _, ratio := range ratios {
			if ratio.Ratio > 0.01 && ratio.Ratio > best.Ratio { // Lower threshold for mixed text
				best = ratio
			}
		}
	}
	return best
}

// resolveHanScript distinguishes Japanese from Chinese: shared Kanji
// plus any meaningful amount of Hiragana or Katakana means Japanese
func resolveHanScript(best ScriptRatio, text string) Language {
	kanaPattern := regexp.MustCompile(`[\x{3040}-\x{309F}\x{30A0}-\x{30FF}]`)
	kanaMatches := kanaPattern.FindAllString(text, -1)
	kanaRatio := float64(len(kanaMatches)) / float64(len([]rune(text)))

	if kanaRatio > 0.05 {
		return Language{Code: LangJapanese, Name: "Japanese", Confidence: best.Ratio}
	}
	return Language{Code: LangChinese, Name: "Chinese", Confidence: best.Ratio}
}

// detectLatinLanguage scores Latin-script text against each language's
// markers. Fewer than minLatinHints distinct hits keeps English.
func detectLatinLanguage(text string) Language {
	lower := strings.ToLower(text)

	words := map[string]bool{}
	for _, w := range latinWordPattern.FindAllString(lower, -1) {
		words[w] = true
	}

	best := Language{Code: LangEnglish, Name: "English", Confidence: 0.0}
	bestHits := 0
	for _, hint := range latinHints {
		hits := 0
		for _, w := range hint.words {
			if words[w] {
				hits++
			}
		}
		for _, c := range hint.chars {
			if strings.Contains(lower, c) {
				hits++
			}
		}
		if hits >= minLatinHints && hits > bestHits {
			bestHits = hits
			best = Language{
				Code:       hint.code,
				Name:       hint.name,
				Confidence: float64(hits) / float64(len(hint.words)+len(hint.chars)),
			}
		}
	}
	return best
}

// GetLanguageInstruction returns the reply-language directive appended to
// draft requests so the guest is answered in their own language
func GetLanguageInstruction(lang Language) string {
	switch lang.Code {
	case LangHebrew:
		return "Please respond in Hebrew (עברית)."
	case LangArabic:
		return "Please respond in Arabic (العربية)."
	case LangRussian:
		return "Please respond in Russian (Русский)."
	case LangChinese:
		return "Please respond in Chinese (中文)."
	case LangJapanese:
		return "Please respond in Japanese (日本語)."
	case LangKorean:
		return "Please respond in Korean (한국어)."
	case LangSpanish:
		return "Please respond in Spanish (Español)."
	case LangFrench:
		return "Please respond in French (Français)."
	case LangGerman:
		return "Please respond in German (Deutsch)."
	case LangItalian:
		return "Please respond in Italian (Italiano)."
	case LangPortuguese:
		return "Please respond in Portuguese (Português)."
	default:
		return "Please respond in English."
	}
}
