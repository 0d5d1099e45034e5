package responder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fallbackQuickReplies = []string{"Pricing", "Demo", "Features"}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lower cases", in: "HELLO There", want: "hello there"},
		{name: "strips punctuation", in: "What about pricing?!", want: "what about pricing"},
		{name: "keeps digits and underscores", in: "plan_2, $100/month", want: "plan_2 100month"},
		{name: "keeps whitespace as is", in: "  a \t b  ", want: "  a \t b  "},
		{name: "drops non ascii letters", in: "Café", want: "caf"},
		{name: "empty", in: "", want: ""},
		{name: "only punctuation", in: "?!...", want: ""},
		{name: "keeps no-break space", in: "What\u00a0about pricing?", want: "what\u00a0about pricing"},
		{name: "keeps em space and ideographic space", in: "a\u2003b\u3000c", want: "a\u2003b\u3000c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Hello, World!", "what's the PRICE??", "ÜBER cool", "a_b-c d", "", "\tTabs\nand lines", "what\u00a0about\u2003pricing!", "x\u3000y"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestEngineScenarios(t *testing.T) {
	e := NewEngine(nil)

	t.Run("greeting", func(t *testing.T) {
		r := e.Reply("hello", TopicNone)
		assert.Equal(t, "Hi there! How can I assist you today?", r.Text)
		assert.Equal(t, fallbackQuickReplies, r.QuickReplies)
		assert.Equal(t, TopicNone, r.Topic)
		assert.Equal(t, MatchRule, r.Match)
	})

	t.Run("pricing opens topic", func(t *testing.T) {
		r := e.Reply("what about pricing", TopicNone)
		assert.Contains(t, r.Text, "$100/month")
		assert.Contains(t, r.Text, "Starter")
		assert.Equal(t, []string{"Starter", "Pro", "Enterprise"}, r.QuickReplies)
		assert.Equal(t, TopicPricing, r.Topic)
	})

	t.Run("starter follow-up closes topic", func(t *testing.T) {
		r := e.Reply("starter", TopicPricing)
		assert.Equal(t, "The Starter plan is $29/month and includes basic features.", r.Text)
		assert.Empty(t, r.QuickReplies)
		assert.Equal(t, TopicNone, r.Topic)
		assert.Equal(t, MatchFollowUp, r.Match)
	})
}

// The top-level pricing reply quotes $100/month for Starter while the
// follow-up quotes $29/month. Both strings are kept verbatim until product
// confirms the intended figures; this test pins the discrepancy.
func TestPricingFiguresDisagree(t *testing.T) {
	e := NewEngine(nil)
	top := e.Reply("pricing", TopicNone)
	starter := e.Reply("starter", top.Topic)
	assert.Contains(t, top.Text, "$100/month")
	assert.Contains(t, starter.Text, "$29/month")
	assert.NotContains(t, starter.Text, "$100")
}

func TestFollowUps(t *testing.T) {
	e := NewEngine(nil)
	tests := []struct {
		topic Topic
		input string
		want  string
	}{
		{TopicPricing, "Starter", "The Starter plan is $29/month and includes basic features."},
		{TopicPricing, "tell me about pro", "The Pro plan is $99/month and includes advanced features and priority support."},
		{TopicPricing, "Enterprise!", "The Enterprise plan is $499/month and includes all features, dedicated support, and custom integrations."},
		{TopicDemo, "yes please", e.followUps(TopicDemo)[0].Reply},
		{TopicDemo, "No", e.followUps(TopicDemo)[1].Reply},
		{TopicFeatures, "Qualitative", e.followUps(TopicFeatures)[0].Reply},
		{TopicFeatures, "quantitative", e.followUps(TopicFeatures)[1].Reply},
		{TopicSecurity, "yes", e.followUps(TopicSecurity)[0].Reply},
		{TopicSecurity, "no", e.followUps(TopicSecurity)[1].Reply},
		{TopicSupport, "Yes", e.followUps(TopicSupport)[0].Reply},
		{TopicSupport, "no", e.followUps(TopicSupport)[1].Reply},
	}
	for _, tt := range tests {
		t.Run(tt.topic.String()+"/"+tt.input, func(t *testing.T) {
			r := e.Reply(tt.input, tt.topic)
			assert.Equal(t, tt.want, r.Text)
			assert.Nil(t, r.QuickReplies)
			assert.Equal(t, TopicNone, r.Topic)
			assert.Equal(t, MatchFollowUp, r.Match)
		})
	}
}

func TestFollowUpTakesPrecedenceOverRules(t *testing.T) {
	e := NewEngine(nil)
	// "pricing" would open the pricing topic again and "demo" would open the
	// demo topic, but the pending pricing question is answered first.
	r := e.Reply("pricing for the pro plan, and a demo", TopicPricing)
	assert.Equal(t, MatchFollowUp, r.Match)
	assert.Contains(t, r.Text, "The Pro plan")
	assert.Equal(t, TopicNone, r.Topic)
}

func TestUnmatchedFollowUpFallsThroughToRules(t *testing.T) {
	e := NewEngine(nil)
	r := e.Reply("can I get a demo", TopicPricing)
	assert.Equal(t, MatchRule, r.Match)
	assert.Equal(t, TopicDemo, r.Topic)
}

func TestFallback(t *testing.T) {
	e := NewEngine(nil)
	tests := []struct {
		name  string
		input string
		topic Topic
	}{
		{name: "no topic", input: "xyzzy", topic: TopicNone},
		{name: "open topic without sub keyword", input: "banana", topic: TopicPricing},
		{name: "empty input", input: "", topic: TopicNone},
		{name: "bare yes without topic", input: "yes", topic: TopicNone},
		{name: "no-break space does not join words", input: "h\u00a0i", topic: TopicNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := e.Reply(tt.input, tt.topic)
			assert.Equal(t, MatchFallback, r.Match)
			assert.Contains(t, r.Text, "pricing, demo, or features")
			assert.Equal(t, fallbackQuickReplies, r.QuickReplies)
			assert.Equal(t, TopicNone, r.Topic)
		})
	}
}

func TestEveryRuleFiresOnItsOwnKeywords(t *testing.T) {
	e := NewEngine(nil)
	rules := e.rules()
	for i, rule := range rules {
		for _, kw := range rule.Keywords {
			// Only keywords no earlier rule claims are guaranteed to reach
			// this rule.
			shadowed := false
			for _, earlier := range rules[:i] {
				if containsAny(kw, earlier.Keywords) {
					shadowed = true
				}
			}
			if shadowed {
				continue
			}
			r := e.Respond(kw, TopicNone)
			assert.Equal(t, rule.Name, r.Rule, "keyword %q", kw)
			assert.Equal(t, rule.Reply, r.Text)
			assert.Equal(t, rule.QuickReplies, r.QuickReplies)
			assert.Equal(t, rule.Topic, r.Topic)
		}
	}
}

func TestQuickRepliesAreCopies(t *testing.T) {
	e := NewEngine(nil)
	r := e.Reply("pricing", TopicNone)
	require.NotEmpty(t, r.QuickReplies)
	r.QuickReplies[0] = "mutated"
	again := e.Reply("pricing", TopicNone)
	assert.Equal(t, "Starter", again.QuickReplies[0])
}

func TestQuickReplyLabelsRoundTrip(t *testing.T) {
	// Every quick reply a rule offers must lead somewhere other than the
	// fallback when clicked while that rule's topic is open.
	e := NewEngine(nil)
	for _, rule := range e.rules() {
		for _, label := range rule.QuickReplies {
			r := e.Reply(label, rule.Topic)
			assert.NotEqual(t, MatchFallback, r.Match, "rule %s label %q", rule.Name, label)
		}
	}
}
