// Package contextmgr keeps the rolling conversation history and running summary,
// and assembles token-budgeted prompts from them.
package contextmgr

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Cyclone1070/aicoder/internal/config"
	"github.com/Cyclone1070/aicoder/internal/logging"
	"go.uber.org/zap"
)

const (
	// MinRetained is the floor below which eviction never goes.
	MinRetained = 8
	// SummaryCap bounds the running summary in characters.
	SummaryCap = 1600

	hardCharsPerToken      = 5
	summaryWindow          = 12
	summarizeTokenFloor    = 1500
	summarizeMessageCount  = 20
	summarizeHardCeilShare = 0.6
)

// Options tunes the manager's budgets.
type Options struct {
	HardMaxTokens        int
	TargetContextTokens  int
	RecentMessages       int
	SummarizeMinMessages int
	RetrievalSnippets    int
}

// OptionsFromConfig maps the context section of the configuration.
func OptionsFromConfig(c config.ContextConfig) Options {
	return Options{
		HardMaxTokens:        c.MaxTokens,
		TargetContextTokens:  c.TargetContextTokens,
		RecentMessages:       c.RecentMessages,
		SummarizeMinMessages: c.SummarizeMinMessages,
		RetrievalSnippets:    c.RetrievalSnippets,
	}
}

// Manager owns the message history and summary of one conversation.
// It is not safe for concurrent use; callers drive it from a single turn at a time.
type Manager struct {
	opts       Options
	retriever  RetrievalProvider
	summarizer Summarizer
	logger     *zap.Logger
	now        func() time.Time

	messages []Message
	chars    int
	summary  string
	// digested counts the leading messages already folded into summary.
	digested int
}

// New creates a Manager. A nil retriever disables snippets; a nil summarizer
// falls back to HeuristicSummarizer.
func New(opts Options, retriever RetrievalProvider, summarizer Summarizer, logger *zap.Logger) *Manager {
	def := OptionsFromConfig(config.DefaultConfig().Context)
	if opts.HardMaxTokens <= 0 {
		opts.HardMaxTokens = def.HardMaxTokens
	}
	if opts.TargetContextTokens <= 0 {
		opts.TargetContextTokens = def.TargetContextTokens
	}
	if opts.RecentMessages <= 0 {
		opts.RecentMessages = def.RecentMessages
	}
	if opts.SummarizeMinMessages <= 0 {
		opts.SummarizeMinMessages = def.SummarizeMinMessages
	}
	if summarizer == nil {
		summarizer = HeuristicSummarizer{}
	}
	return &Manager{
		opts:       opts,
		retriever:  retriever,
		summarizer: summarizer,
		logger:     logging.OrNop(logger),
		now:        time.Now,
	}
}

// AddMessage appends a message and evicts the oldest entries until the history
// fits the hard character ceiling, keeping at least MinRetained messages.
func (m *Manager) AddMessage(role Role, content string, meta map[string]any) {
	m.messages = append(m.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: m.now(),
		Meta:      meta,
	})
	m.chars += utf8.RuneCountInString(content)
	m.evict()
}

func (m *Manager) evict() {
	limit := m.opts.HardMaxTokens * hardCharsPerToken
	dropped := 0
	for len(m.messages) > MinRetained && m.chars > limit {
		m.chars -= utf8.RuneCountInString(m.messages[0].Content)
		m.messages = m.messages[1:]
		if m.digested > 0 {
			m.digested--
		}
		dropped++
	}
	if dropped > 0 {
		m.logger.Debug("evicted messages", zap.Int("count", dropped), zap.Int("chars", m.chars))
	}
}

// GetOptimizedContext assembles retrieved snippets, the summary, recent messages
// and the query into one prompt string. When the estimate exceeds the target
// budget it summarizes and rebuilds with half as many recent messages.
func (m *Manager) GetOptimizedContext(ctx context.Context, query string) string {
	snippets := m.retrieve(ctx, query)

	recent := m.opts.RecentMessages
	prompt := m.build(snippets, recent, query)
	if EstimateTokens(prompt) <= m.opts.TargetContextTokens {
		return prompt
	}

	m.logger.Debug("context over budget",
		zap.Int("tokens", EstimateTokens(prompt)),
		zap.Int("target", m.opts.TargetContextTokens))
	m.SummarizeConversation()
	return m.build(snippets, recent/2, query)
}

func (m *Manager) retrieve(ctx context.Context, query string) []Snippet {
	if m.retriever == nil || m.opts.RetrievalSnippets == 0 || strings.TrimSpace(query) == "" {
		return nil
	}
	snippets, err := m.retriever.Retrieve(ctx, query, m.opts.RetrievalSnippets)
	if err != nil {
		m.logger.Warn("retrieval failed", zap.Error(err))
		return nil
	}
	return snippets
}

func (m *Manager) build(snippets []Snippet, recent int, query string) string {
	var parts []string

	if len(snippets) > 0 {
		var b strings.Builder
		b.WriteString("Relevant workspace snippets:")
		for _, s := range snippets {
			fmt.Fprintf(&b, "\n[%s]\n%s", s.Source, s.Text)
		}
		parts = append(parts, b.String())
	}

	if m.summary != "" {
		parts = append(parts, "Conversation summary:\n"+m.summary)
	}

	if msgs := m.lastN(recent); len(msgs) > 0 {
		lines := make([]string, 0, len(msgs))
		for _, msg := range msgs {
			lines = append(lines, fmt.Sprintf("%s: %s", msg.Role, msg.Content))
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}

	parts = append(parts, query)
	return strings.Join(parts, "\n\n")
}

func (m *Manager) lastN(n int) []Message {
	if n <= 0 {
		return nil
	}
	if n >= len(m.messages) {
		return m.messages
	}
	return m.messages[len(m.messages)-n:]
}

// SummarizeConversation folds the latest user/assistant turns not yet in the
// running summary into it and keeps only the most recent half of the
// recent-history window. It does nothing while fewer than
// SummarizeMinMessages messages exist.
func (m *Manager) SummarizeConversation() {
	if len(m.messages) < m.opts.SummarizeMinMessages {
		return
	}

	var window []Message
	for i := len(m.messages) - 1; i >= m.digested && len(window) < summaryWindow; i-- {
		if r := m.messages[i].Role; r == RoleUser || r == RoleAssistant {
			window = append(window, m.messages[i])
		}
	}
	for i, j := 0, len(window)-1; i < j; i, j = i+1, j-1 {
		window[i], window[j] = window[j], window[i]
	}

	if len(window) > 0 {
		if digest := m.summarizer.Compact(window); digest != "" {
			m.summary = mergeSummary(m.summary, digest)
		}
	}

	keep := m.opts.RecentMessages / 2
	if len(m.messages) > keep {
		m.messages = append([]Message(nil), m.messages[len(m.messages)-keep:]...)
		m.recount()
	}
	m.digested = len(m.messages)
	m.logger.Debug("summarized conversation",
		zap.Int("window", len(window)),
		zap.Int("summaryChars", utf8.RuneCountInString(m.summary)))
}

// mergeSummary appends digest after prev and caps the result, keeping the front.
func mergeSummary(prev, digest string) string {
	merged := digest
	if prev != "" {
		merged = prev + "\n" + digest
	}
	return clipRunes(merged, SummaryCap)
}

// ShouldSummarize reports whether the caller should summarize after a turn.
func (m *Manager) ShouldSummarize() bool {
	threshold := int(float64(m.opts.HardMaxTokens) * summarizeHardCeilShare)
	if threshold < summarizeTokenFloor {
		threshold = summarizeTokenFloor
	}
	return m.EstimatedTokens() > threshold || len(m.messages) > summarizeMessageCount
}

// EstimatedTokens estimates the tokens held in the summary and history.
func (m *Manager) EstimatedTokens() int {
	total := utf8.RuneCountInString(m.summary) + m.chars
	return (total + charsPerToken - 1) / charsPerToken
}

// Messages returns a copy of the retained history.
func (m *Manager) Messages() []Message {
	return append([]Message(nil), m.messages...)
}

// Summary returns the running summary.
func (m *Manager) Summary() string {
	return m.summary
}

// Clear drops all messages and the summary.
func (m *Manager) Clear() {
	m.messages = nil
	m.chars = 0
	m.summary = ""
	m.digested = 0
}

// Snapshot returns the state for persistence.
func (m *Manager) Snapshot() State {
	return State{Messages: m.Messages(), Summary: m.summary, Digested: m.digested}
}

// Restore replaces the state, re-applying the character ceiling and summary cap.
func (m *Manager) Restore(s State) {
	m.messages = append([]Message(nil), s.Messages...)
	m.summary = clipRunes(s.Summary, SummaryCap)
	m.digested = min(max(s.Digested, 0), len(m.messages))
	m.recount()
	m.evict()
}

func (m *Manager) recount() {
	m.chars = 0
	for _, msg := range m.messages {
		m.chars += utf8.RuneCountInString(msg.Content)
	}
}
