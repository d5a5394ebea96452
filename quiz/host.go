package quiz

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/arloliu/go-buzzer/bridge"
	"github.com/arloliu/go-buzzer/chat"
	"github.com/arloliu/go-buzzer/logger"
)

const (
	// NoAnswerText is shown when the API returned no usable choice.
	NoAnswerText = "No answer from API"
	// AnswerPlaceholder is shown before any answer arrived.
	AnswerPlaceholder = "The API answer will appear here"

	unknownErrorText = "Unknown error"
)

var (
	ErrAnswererNil   = errors.New("quiz: answerer is nil")
	ErrBusy          = errors.New("quiz: a request is already in progress")
	ErrNoQuestion    = errors.New("quiz: no question selected")
	ErrQuestionEmpty = errors.New("quiz: question is empty")
)

// Answerer answers a question. *chat.Client satisfies it.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Notifier receives lifecycle events. *bridge.Bridge satisfies it.
type Notifier interface {
	Notify(event bridge.Event) bool
}

var (
	_ Answerer = (*chat.Client)(nil)
	_ Notifier = (*bridge.Bridge)(nil)
)

type nopNotifier struct{}

func (nopNotifier) Notify(bridge.Event) bool { return false }

// HostOption configures a Host.
type HostOption func(*Host)

// WithNotifier sets the event sink, usually the servo bridge.
func WithNotifier(n Notifier) HostOption {
	return func(h *Host) {
		if n != nil {
			h.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) HostOption {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// Host runs a single-user quiz: one current question, one answer slot and
// at most one request in flight.
type Host struct {
	bank     *Bank
	answerer Answerer
	notifier Notifier
	logger   logger.Logger

	mu      sync.Mutex
	current Question
	hasCur  bool
	answer  string
	loading bool
}

// NewHost creates a quiz host. A nil bank uses DefaultBank.
func NewHost(bank *Bank, answerer Answerer, opts ...HostOption) (*Host, error) {
	if answerer == nil {
		return nil, ErrAnswererNil
	}
	if bank == nil {
		bank = DefaultBank()
	}

	h := &Host{
		bank:     bank,
		answerer: answerer,
		notifier: nopNotifier{},
		logger:   logger.GetLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	return h, nil
}

// Bank returns the question bank.
func (h *Host) Bank() *Bank { return h.bank }

// Select makes the question with id current and clears the previous answer.
func (h *Host) Select(id int) (Question, error) {
	q, ok := h.bank.ByID(id)
	if !ok {
		return Question{}, ErrUnknownQuestion
	}

	return q, h.activate(q)
}

// Draw makes a random question current and clears the previous answer.
func (h *Host) Draw() (Question, error) {
	q, ok := h.bank.Random()
	if !ok {
		return Question{}, ErrNoQuestion
	}

	return q, h.activate(q)
}

func (h *Host) activate(q Question) error {
	h.mu.Lock()
	if h.loading {
		h.mu.Unlock()
		return ErrBusy
	}
	h.current = q
	h.hasCur = true
	h.answer = ""
	h.mu.Unlock()

	h.logger.Debug("quiz: question active", "id", q.ID)
	h.notifier.Notify(bridge.QuestionActive)

	return nil
}

// Current returns the current predefined question.
func (h *Host) Current() (Question, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.current, h.hasCur
}

// ReferenceAnswer returns the reference answer of the current question.
func (h *Host) ReferenceAnswer() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.hasCur {
		return "", false
	}

	return h.current.Answer, true
}

// Answer returns the text of the last answer, empty before any.
func (h *Host) Answer() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.answer
}

// Loading reports whether a request is in flight.
func (h *Host) Loading() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.loading
}

// Ask sends the current question.
//
// The returned text is what the user sees: the model's answer, NoAnswerText
// or "Error: <cause>". The error is the underlying cause, if any, and is
// reported for logging only; AnswerReceived fires for every outcome.
func (h *Host) Ask(ctx context.Context) (string, error) {
	h.mu.Lock()
	if !h.hasCur {
		h.mu.Unlock()
		return "", ErrNoQuestion
	}
	text := h.current.Text
	h.mu.Unlock()

	return h.ask(ctx, text)
}

// AskCustom sends a free-text question. The current predefined question is
// kept.
func (h *Host) AskCustom(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrQuestionEmpty
	}

	return h.ask(ctx, question)
}

func (h *Host) ask(ctx context.Context, question string) (string, error) {
	h.mu.Lock()
	if h.loading {
		h.mu.Unlock()
		return "", ErrBusy
	}
	h.loading = true
	h.mu.Unlock()

	answer, err := h.answerer.Answer(ctx, question)
	text := answerText(answer, err)
	if err != nil {
		h.logger.Warn("quiz: answer request failed", "error", err)
	}

	h.mu.Lock()
	h.answer = text
	h.loading = false
	h.mu.Unlock()

	h.notifier.Notify(bridge.AnswerReceived)

	return text, err
}

func answerText(answer string, err error) string {
	switch {
	case errors.Is(err, chat.ErrNoAnswer):
		return NoAnswerText
	case err != nil:
		msg := strings.TrimSpace(err.Error())
		if msg == "" {
			msg = unknownErrorText
		}
		return "Error: " + msg
	case strings.TrimSpace(answer) == "":
		return NoAnswerText
	default:
		return answer
	}
}
