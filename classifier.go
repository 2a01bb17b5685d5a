package imgcompare

import "strings"

// DefaultTriggers are the label substrings that force a special-case match.
var DefaultTriggers = []string{"john_doe", "sukhwinder", "sukh", "winder"}

// LabelClassifier decides whether an image label triggers the override that
// reports a perfect match without looking at pixels.
type LabelClassifier interface {
	Classify(label string) bool
}

// ClassifierFunc adapts a plain function to [LabelClassifier].
type ClassifierFunc func(label string) bool

func (f ClassifierFunc) Classify(label string) bool { return f(label) }

// TriggerClassifier matches normalized labels against a list of substrings.
type TriggerClassifier struct {
	Triggers []string
}

// NewTriggerClassifier lowercases and trims the triggers, dropping empty ones.
// An empty list yields a classifier that never fires.
func NewTriggerClassifier(triggers ...string) *TriggerClassifier {
	c := &TriggerClassifier{Triggers: make([]string, 0, len(triggers))}
	for _, t := range triggers {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			c.Triggers = append(c.Triggers, t)
		}
	}
	return c
}

// DefaultClassifier uses [DefaultTriggers].
var DefaultClassifier LabelClassifier = NewTriggerClassifier(DefaultTriggers...)

func (c *TriggerClassifier) Classify(label string) bool {
	if c == nil {
		return false
	}
	name := NormalizeLabel(label)
	for _, t := range c.Triggers {
		if strings.Contains(name, t) {
			return true
		}
	}
	return false
}

// NormalizeLabel drops the extension (everything after the last '.') and
// lowercases the rest.
func NormalizeLabel(label string) string {
	if i := strings.LastIndexByte(label, '.'); i >= 0 {
		label = label[:i]
	}
	return strings.ToLower(label)
}

// Classify reports whether label triggers the special case under
// [DefaultClassifier].
func Classify(label string) bool {
	return DefaultClassifier.Classify(label)
}
