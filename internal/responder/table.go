package responder

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Rule is a top-level keyword rule.
type Rule struct {
	Name         string   `yaml:"name"`
	Keywords     []string `yaml:"keywords"`
	Reply        string   `yaml:"reply"`
	QuickReplies []string `yaml:"quick_replies"`
	Topic        Topic    `yaml:"topic"`
}

// FollowUp answers the pending question of an open topic. Answering always
// closes the topic.
type FollowUp struct {
	Keywords []string `yaml:"keywords"`
	Reply    string   `yaml:"reply"`
}

// Fallback is the reply used when nothing else matches.
type Fallback struct {
	Reply        string   `yaml:"reply"`
	QuickReplies []string `yaml:"quick_replies"`
}

// Table is the immutable response table consulted by the Engine.
type Table struct {
	Fallback  Fallback             `yaml:"fallback"`
	Rules     []Rule               `yaml:"rules"`
	FollowUps map[Topic][]FollowUp `yaml:"followups"`
}

var (
	ErrNoRules         = errors.New("response table has no rules")
	ErrInvalidTopic    = errors.New("unknown topic")
	ErrInvalidKeyword  = errors.New("keyword is not normalized")
	ErrMissingFollowUp = errors.New("topic has no follow-ups")
	ErrOrphanFollowUp  = errors.New("follow-ups for a topic no rule opens")
)

// ParseTable decodes a YAML response table and validates it.
func ParseTable(b []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode response table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks the table against the closed topic set: every opened topic
// has follow-ups and every follow-up belongs to a topic some rule opens.
func (t *Table) Validate() error {
	if len(t.Rules) == 0 {
		return ErrNoRules
	}
	if strings.TrimSpace(t.Fallback.Reply) == "" || len(t.Fallback.QuickReplies) == 0 {
		return errors.New("fallback reply and quick replies are required")
	}
	opened := make(map[Topic]bool)
	for i, r := range t.Rules {
		if strings.TrimSpace(r.Reply) == "" {
			return fmt.Errorf("rule %d (%s): reply is required", i, r.Name)
		}
		if err := checkKeywords(r.Keywords); err != nil {
			return fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		if !r.Topic.Valid() {
			return fmt.Errorf("rule %d (%s): %w %q", i, r.Name, ErrInvalidTopic, r.Topic)
		}
		if r.Topic == TopicNone {
			continue
		}
		if len(t.FollowUps[r.Topic]) == 0 {
			return fmt.Errorf("rule %d (%s): %w: %s", i, r.Name, ErrMissingFollowUp, r.Topic)
		}
		opened[r.Topic] = true
	}
	for topic, followUps := range t.FollowUps {
		if topic == TopicNone || !topic.Valid() {
			return fmt.Errorf("follow-ups: %w %q", ErrInvalidTopic, topic)
		}
		if !opened[topic] {
			return fmt.Errorf("%w: %s", ErrOrphanFollowUp, topic)
		}
		for i, f := range followUps {
			if strings.TrimSpace(f.Reply) == "" {
				return fmt.Errorf("follow-up %s/%d: reply is required", topic, i)
			}
			if err := checkKeywords(f.Keywords); err != nil {
				return fmt.Errorf("follow-up %s/%d: %w", topic, i, err)
			}
		}
	}
	return nil
}

func checkKeywords(keywords []string) error {
	if len(keywords) == 0 {
		return errors.New("at least one keyword is required")
	}
	for _, k := range keywords {
		if k == "" || Normalize(k) != k {
			return fmt.Errorf("%w: %q", ErrInvalidKeyword, k)
		}
	}
	return nil
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// DefaultTable returns the table compiled into the binary. It panics if the
// embedded table is invalid.
func DefaultTable() *Table {
	defaultOnce.Do(func() {
		t, err := ParseTable(defaultRules)
		if err != nil {
			panic(fmt.Sprintf("responder: embedded rules.yaml: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}
