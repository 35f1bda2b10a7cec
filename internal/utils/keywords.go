package utils

import (
	"regexp"
	"strings"
)

var (
	tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

	// Function words plus the greetings and filler that appear in nearly
	// every guest message, so they never surface as topics.
	stopwords = map[string]struct{}{
		"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "can": {}, "could": {},
		"do": {}, "does": {}, "for": {}, "from": {}, "have": {}, "hello": {}, "hey": {}, "hi": {},
		"how": {}, "i": {}, "if": {}, "im": {}, "in": {}, "is": {}, "it": {}, "just": {}, "me": {},
		"my": {}, "need": {}, "of": {}, "on": {}, "or": {}, "our": {}, "please": {}, "possible": {},
		"question": {}, "thank": {}, "thanks": {}, "that": {}, "the": {}, "there": {}, "this": {},
		"to": {}, "want": {}, "wanted": {}, "was": {}, "we": {}, "what": {}, "when": {}, "where": {},
		"which": {}, "will": {}, "with": {}, "wondering": {}, "would": {}, "you": {}, "your": {},
	}
)

// ExtractTopics pulls the distinctive words out of a guest message, in
// order of first appearance, capped at limit. Used to tag queued replies
// and log lines with what the guest asked about.
func ExtractTopics(text string, limit int) []string {
	if strings.TrimSpace(text) == "" || limit <= 0 {
		return nil
	}

	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(tokens))
	topics := make([]string, 0, limit)
	for _, token := range tokens {
		if len(token) < 2 {
			continue
		}
		if _, isStopword := stopwords[token]; isStopword {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		topics = append(topics, token)
		if len(topics) == limit {
			break
		}
	}
	return topics
}
