package usecase

import (
	"regexp"
	"strings"

	"github.com/user/jobscraper-service/internal/entity"
)

// sentenceBreak splits text into the spans context rules are evaluated on.
var sentenceBreak = regexp.MustCompile(`[\n,.;:\-–—]+`)

// Classifier tags text with the cloud providers it mentions.
type Classifier struct {
	matchers []providerMatcher
}

type providerMatcher struct {
	tag      entity.ProviderTag
	keywords *regexp.Regexp // nil when the provider only has context rules
	rules    []contextMatcher
}

type contextMatcher struct {
	terms    *regexp.Regexp
	requires *regexp.Regexp
}

// NewClassifier compiles the whole-phrase matchers of every provider. A
// phrase only matches when bounded by non-alphanumeric characters or the
// text edges, so "aws" does not match "laws" and "aks" does not match
// "oaks".
func NewClassifier(table entity.CloudProviderTable) *Classifier {
	c := &Classifier{matchers: make([]providerMatcher, 0, len(table.Providers))}
	for _, p := range table.Providers {
		m := providerMatcher{tag: p.Name, keywords: phraseMatcher(p.Keywords)}
		for _, r := range p.Contextual {
			terms, requires := phraseMatcher(r.Terms), phraseMatcher(r.Requires)
			if terms == nil || requires == nil {
				continue
			}
			m.rules = append(m.rules, contextMatcher{terms: terms, requires: requires})
		}
		if m.keywords == nil && len(m.rules) == 0 {
			continue
		}
		c.matchers = append(c.matchers, m)
	}
	return c
}

// phraseMatcher returns a case-insensitive matcher for any of phrases, or
// nil if none is usable. Words of a phrase may be separated by any run of
// whitespace.
func phraseMatcher(phrases []string) *regexp.Regexp {
	alts := make([]string, 0, len(phrases))
	for _, kw := range phrases {
		words := strings.Fields(strings.ToLower(kw))
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alts = append(alts, strings.Join(words, `\s+`))
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(alts, "|") + `)(?:$|[^\p{L}\p{N}])`)
}

// Classify returns the providers mentioned in text, in table order, each at
// most once. It is a pure function of its input.
func (c *Classifier) Classify(text string) []entity.ProviderTag {
	tags := []entity.ProviderTag{}
	if strings.TrimSpace(text) == "" {
		return tags
	}
	var sentences []string
	for _, m := range c.matchers {
		if m.keywords != nil && m.keywords.MatchString(text) {
			tags = append(tags, m.tag)
			continue
		}
		if len(m.rules) == 0 {
			continue
		}
		if sentences == nil {
			sentences = sentenceBreak.Split(text, -1)
		}
		if m.matchesInContext(sentences) {
			tags = append(tags, m.tag)
		}
	}
	return tags
}

func (m providerMatcher) matchesInContext(sentences []string) bool {
	for _, s := range sentences {
		for _, r := range m.rules {
			if r.terms.MatchString(s) && r.requires.MatchString(s) {
				return true
			}
		}
	}
	return false
}

// Tags returns every provider the classifier knows, in table order.
func (c *Classifier) Tags() []entity.ProviderTag {
	tags := make([]entity.ProviderTag, 0, len(c.matchers))
	for _, m := range c.matchers {
		tags = append(tags, m.tag)
	}
	return tags
}
