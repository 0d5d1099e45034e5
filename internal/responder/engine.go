package responder

// MatchKind says which stage of the engine produced a reply.
type MatchKind string

const (
	MatchFollowUp MatchKind = "follow_up"
	MatchRule     MatchKind = "rule"
	MatchFallback MatchKind = "fallback"
)

// Reply is the outcome of one dialogue turn. Topic is the new current topic.
type Reply struct {
	Text         string
	QuickReplies []string
	Topic        Topic
	Match        MatchKind
	Rule         string
}

// Engine resolves replies from a response table. It holds no per-conversation
// state; the caller threads the current topic through each turn.
type Engine struct {
	table *Table
}

// NewEngine builds an engine over t. A nil table selects DefaultTable.
func NewEngine(t *Table) *Engine {
	if t == nil {
		t = DefaultTable()
	}
	return &Engine{table: t}
}

// Reply normalizes raw input and responds to it.
func (e *Engine) Reply(raw string, current Topic) Reply {
	return e.Respond(Normalize(raw), current)
}

// Respond picks the reply for already-normalized input. Follow-ups of the
// current topic win over top-level rules; the fallback always closes the
// topic.
func (e *Engine) Respond(normalized string, current Topic) Reply {
	if current != TopicNone {
		for _, f := range e.table.FollowUps[current] {
			if containsAny(normalized, f.Keywords) {
				return Reply{
					Text:  f.Reply,
					Topic: TopicNone,
					Match: MatchFollowUp,
					Rule:  string(current),
				}
			}
		}
	}

	for _, r := range e.table.Rules {
		if containsAny(normalized, r.Keywords) {
			return Reply{
				Text:         r.Reply,
				QuickReplies: cloneStrings(r.QuickReplies),
				Topic:        r.Topic,
				Match:        MatchRule,
				Rule:         r.Name,
			}
		}
	}

	return Reply{
		Text:         e.table.Fallback.Reply,
		QuickReplies: cloneStrings(e.table.Fallback.QuickReplies),
		Topic:        TopicNone,
		Match:        MatchFallback,
	}
}

// rules returns the top-level rules in priority order.
func (e *Engine) rules() []Rule {
	out := make([]Rule, len(e.table.Rules))
	copy(out, e.table.Rules)
	return out
}

// followUps returns the follow-ups registered for topic.
func (e *Engine) followUps(topic Topic) []FollowUp {
	out := make([]FollowUp, len(e.table.FollowUps[topic]))
	copy(out, e.table.FollowUps[topic])
	return out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
