// Package followup answers questions about a checked claim using the
// session's conversation and the nearest past fact checks.
package followup

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ppiankov/verity/internal/llm"
	"github.com/ppiankov/verity/internal/logging"
	"github.com/ppiankov/verity/internal/memory"
	"github.com/ppiankov/verity/internal/model"
)

// Memory retrieves past fact checks near a claim
type Memory interface {
	Query(ctx context.Context, claim string, topK int) []model.MemoryMatch
}

// Sessions reads and extends conversation state
type Sessions interface {
	Get(id string) (model.Session, bool)
	Append(id string, messages ...model.Message) error
}

// Responder composes the follow-up prompt and records the exchange
type Responder struct {
	provider llm.Provider
	memory   Memory
	sessions Sessions
	topK     int
}

// NewResponder creates a responder. mem may be nil.
func NewResponder(provider llm.Provider, mem Memory, sessions Sessions, topK int) *Responder {
	if topK <= 0 {
		topK = memory.DefaultTopK
	}
	return &Responder{provider: provider, memory: mem, sessions: sessions, topK: topK}
}

// Answer answers question within session sessionID, streaming the answer
// through onChunk (may be nil). On success the question and the answer are
// appended to the session history. Model failures are returned as is.
func (r *Responder) Answer(ctx context.Context, sessionID, question string, onChunk func(string) error) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", goerr.New("question is empty")
	}
	if r.provider == nil {
		return "", goerr.New("follow-up disabled: no LLM provider configured")
	}

	logger := logging.From(ctx).With("session_id", sessionID)

	sess, known := r.sessions.Get(sessionID)
	if !known {
		logger.Warn("follow-up on unknown session, answering without history")
	}

	past := memory.NoResults
	if r.memory != nil {
		past = memory.Format(r.memory.Query(ctx, queryText(sess, question), r.topK))
	}

	if onChunk == nil {
		onChunk = func(string) error { return nil }
	}
	resp, err := llm.Stream(ctx, r.provider, llm.CompletionRequest{Prompt: BuildContext(sess, past, question)}, onChunk)
	if err != nil {
		return "", goerr.Wrap(err, "follow-up completion", goerr.V("session_id", sessionID))
	}
	answer := resp.Text

	if known {
		err := r.sessions.Append(sessionID,
			model.Message{Role: model.RoleUser, Content: question},
			model.Message{Role: model.RoleAssistant, Content: answer},
		)
		if err != nil {
			logger.Warn("session vanished before the answer was stored", "error", err)
		}
	}

	return answer, nil
}

// queryText picks the text used for the memory lookup
func queryText(sess model.Session, question string) string {
	if sess.Claim != "" {
		return sess.Claim
	}
	if len(sess.History) > 0 {
		return sess.OriginalClaim()
	}
	return question
}

// BuildContext renders the single prompt sent to the model
func BuildContext(sess model.Session, past, question string) string {
	var b strings.Builder
	b.WriteString("Claim: " + sess.OriginalClaim() + "\n\n")
	b.WriteString("Relevant past facts:\n" + past + "\n\n")
	b.WriteString("Conversation history:\n")
	for _, m := range sess.History {
		b.WriteString(capitalize(m.Role) + ": " + m.Content + "\n")
	}
	b.WriteString("\nUser: " + question + "\nAssistant:")
	return b.String()
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
