package responder

// Topic is the single pending conversational context remembered between
// turns. The zero value means no topic is open.
type Topic string

const (
	TopicNone     Topic = ""
	TopicPricing  Topic = "pricing"
	TopicDemo     Topic = "demo"
	TopicFeatures Topic = "features"
	TopicSecurity Topic = "security"
	TopicSupport  Topic = "support"
)

// Topics lists every topic that can be opened, in declaration order.
var Topics = []Topic{TopicPricing, TopicDemo, TopicFeatures, TopicSecurity, TopicSupport}

// Valid reports whether t is none or one of the closed set of topics.
func (t Topic) Valid() bool {
	if t == TopicNone {
		return true
	}
	for _, known := range Topics {
		if t == known {
			return true
		}
	}
	return false
}

func (t Topic) String() string {
	if t == TopicNone {
		return "none"
	}
	return string(t)
}

// MarshalJSON encodes no topic as null.
func (t Topic) MarshalJSON() ([]byte, error) {
	if t == TopicNone {
		return []byte("null"), nil
	}
	return []byte(`"` + string(t) + `"`), nil
}
