package interview

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/kalambet/elicit/internal/storage"
)

// compareNumbers orders identifiers such as "topic-1-10" naturally, comparing
// digit runs by value so that "topic-1-2" sorts before "topic-1-10".
func compareNumbers(a, b string) int {
	for a != "" && b != "" {
		ca, ra := nextChunk(a)
		cb, rb := nextChunk(b)
		if c := compareChunk(ca, cb); c != 0 {
			return c
		}
		a, b = ra, rb
	}
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}

func nextChunk(s string) (string, string) {
	digit := unicode.IsDigit(rune(s[0]))
	i := 1
	for i < len(s) && unicode.IsDigit(rune(s[i])) == digit {
		i++
	}
	return s[:i], s[i:]
}

func compareChunk(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

// resolver maps loosely written topic references onto topic numbers.
type resolver struct {
	numbers   map[string]bool
	byContent map[string]string
}

func newResolver(topics []storage.Topic) resolver {
	r := resolver{numbers: make(map[string]bool), byContent: make(map[string]string)}
	for _, t := range topics {
		r.numbers[t.Number] = true
		r.byContent[strings.TrimSpace(t.Content)] = t.Number
	}
	return r
}

// resolve tries, in order: an exact topic number, the left side of a
// "number: content" string, then the topic content itself.
func (r resolver) resolve(token string) (string, bool) {
	token = strings.Trim(strings.TrimSpace(token), `"'`)
	if token == "" {
		return "", false
	}
	if r.numbers[token] {
		return token, true
	}
	if left, _, ok := strings.Cut(token, ":"); ok {
		if left = strings.TrimSpace(left); r.numbers[left] {
			return left, true
		}
	}
	if n, ok := r.byContent[token]; ok {
		return n, true
	}
	return "", false
}

// splitNumber splits "topic-1-3" into ("topic-1", 3).
func splitNumber(number string) (string, int, bool) {
	i := strings.LastIndexByte(number, '-')
	if i <= 0 {
		return number, 0, false
	}
	n, err := strconv.Atoi(number[i+1:])
	if err != nil {
		return number, 0, false
	}
	return number[:i], n, true
}

// nextTopicNumber numbers a new topic after the last topic of current's section.
func nextTopicNumber(current storage.Topic, topics []storage.Topic) string {
	prefix, _, ok := splitNumber(current.Number)
	if !ok {
		prefix = current.Number
	}
	taken := make(map[string]bool, len(topics))
	last := 0
	for _, t := range topics {
		taken[t.Number] = true
		if t.SectionID != current.SectionID {
			continue
		}
		if p, n, ok := splitNumber(t.Number); ok && p == prefix && n > last {
			last = n
		}
	}
	for n := last + 1; ; n++ {
		candidate := fmt.Sprintf("%s-%d", prefix, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

// slotNumber derives the number of the k-th slot of a topic, "topic-1-3" -> "slot-1-3-k".
func slotNumber(topicNumber string, k int) string {
	if rest, ok := strings.CutPrefix(topicNumber, "topic"); ok {
		return fmt.Sprintf("slot%s-%d", rest, k)
	}
	return fmt.Sprintf("slot-%s-%d", topicNumber, k)
}
