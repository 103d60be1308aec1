package agent

import (
	"fmt"

	"github.com/ferroclaw/ferroclaw/pkg/provider"
	"github.com/ferroclaw/ferroclaw/pkg/session"
)

// historyToTranscript converts stored history into provider messages.
// Persisted tool outcomes lack their originating call on replay, so they
// re-enter as plain user-role context instead of wire-level tool results.
func historyToTranscript(history []session.Message) []provider.Message {
	out := make([]provider.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case session.RoleAssistant:
			out = append(out, provider.Message{
				Role:    provider.RoleAssistant,
				Content: m.Content,
			})
		case session.RoleTool:
			out = append(out, provider.Message{
				Role:    provider.RoleUser,
				Content: fmt.Sprintf("[tool %s] %s", m.ToolName, m.Content),
			})
		default:
			out = append(out, provider.Message{
				Role:    provider.RoleUser,
				Content: m.Content,
			})
		}
	}
	return out
}

// truncateTranscript drops the oldest whole turn groups until the estimated
// token total fits the budget, returning the trimmed transcript and the
// number of messages dropped. The newest group is always kept, even when it
// alone exceeds the budget.
func truncateTranscript(msgs []provider.Message, budget int) ([]provider.Message, int) {
	if budget <= 0 || len(msgs) == 0 {
		return msgs, 0
	}

	total := 0
	for i := range msgs {
		total += estimateMessageTokens(msgs[i])
	}

	dropped := 0
	for total > budget {
		n := groupLen(msgs)
		if n >= len(msgs) {
			break
		}
		for i := 0; i < n; i++ {
			total -= estimateMessageTokens(msgs[i])
		}
		msgs = msgs[n:]
		dropped += n
	}
	return msgs, dropped
}

// groupLen is the size of the leading turn group. An assistant message that
// carries tool calls travels with its following tool results, so truncation
// never separates a call from its outcome.
func groupLen(msgs []provider.Message) int {
	n := 1
	if len(msgs[0].ToolCalls) > 0 {
		for n < len(msgs) && msgs[n].Role == provider.RoleTool {
			n++
		}
	}
	return n
}

// estimateMessageTokens approximates cost at 1 token per 4 content chars.
func estimateMessageTokens(m provider.Message) int {
	return (len(m.Content) + 3) / 4
}
