// Package quiz holds the question bank and the quiz host flow that ties the
// chat client and the buzzer together.
package quiz

import (
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
)

// ErrUnknownQuestion indicates a question id that is not in the bank.
var ErrUnknownQuestion = errors.New("quiz: unknown question")

// Question is a predefined trivia question. Answer is the reference answer
// and may be empty.
type Question struct {
	ID     int
	Text   string
	Answer string
}

// BuiltinQuestions returns a copy of the built-in question set.
func BuiltinQuestions() []Question {
	out := make([]Question, len(builtin))
	copy(out, builtin)

	return out
}

var builtin = []Question{
	{ID: 1, Text: "Jaki jest największy ssak lądowy?"},
	{ID: 2, Text: "Jakie kolory są we fladze Polski?"},
	{ID: 3, Text: "Ile kątów ma trójkąt?", Answer: "3"},
	{ID: 4, Text: "Ile godzin trwa dzień?", Answer: "24"},
	{ID: 5, Text: "Co jest przeciwieństwem nocy?", Answer: "dzień"},
	{ID: 6, Text: `Dlaczego Ziemia jest "niebieską planetą"?`},
	{ID: 7, Text: "Ile palców ma standardowy człowiek?", Answer: "20"},
	{ID: 8, Text: "Po co nam nos?", Answer: "Aby móc oddychać."},
	{ID: 9, Text: "Jakiego koloru jest mleko?", Answer: "Zazwyczaj białego"},
	{ID: 10, Text: "Jakiego koloru jest śnieg?", Answer: "Zazwyczaj białego"},
	{ID: 11, Text: "Ile mamy znaków zodiaku?", Answer: "12"},
	{ID: 12, Text: "Z czego pada deszcz?", Answer: "Z chmur"},
	{ID: 13, Text: "Jakiego koloru zazwyczaj są chipsy?", Answer: "Żółty/pomarańczowy"},
	{ID: 14, Text: "Co jest przeciwieństwem dnia?", Answer: "Noc"},
	{ID: 15, Text: "Ile kątów ma kwadrat?", Answer: "4"},
	{ID: 16, Text: "Ile mamy planet w Układzie Słonecznym?", Answer: "8"},
	{ID: 17, Text: "Jaki kształt ma pizza?", Answer: "Okrągły"},
	{ID: 18, Text: "Co jest czarno-białe i daje mleko?", Answer: "Krowa"},
	{ID: 19, Text: `Jakie zwierzę robi "miau"?`, Answer: "Kot"},
	{ID: 20, Text: "Ile to tuzin?", Answer: "12"},
	{ID: 21, Text: "Jaki kolor ma trawa?", Answer: "Zielony"},
	{ID: 22, Text: "Co jest zawsze na powierzchni morza/oceanu?", Answer: "Fale"},
	{ID: 23, Text: "Jakie są 4 kierunki świata?", Answer: "Północ, południe, wschód, zachód"},
	{ID: 24, Text: "Ile samochód ma kół", Answer: "4/5"},
	{ID: 25, Text: "Jakiego koloru jest niebo?"},
}

// Bank is an immutable set of questions ordered by id.
type Bank struct {
	questions []Question
	byID      map[int]int

	randMu sync.Mutex
	rnd    *rand.Rand
}

// NewBank creates a bank from questions. Questions with a duplicate id or an
// empty text are skipped. A nil rnd uses a randomly seeded source.
func NewBank(questions []Question, rnd *rand.Rand) *Bank {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec
	}
	b := &Bank{byID: make(map[int]int, len(questions)), rnd: rnd}
	for _, q := range questions {
		if q.Text == "" {
			continue
		}
		if _, dup := b.byID[q.ID]; dup {
			continue
		}
		b.byID[q.ID] = len(b.questions)
		b.questions = append(b.questions, q)
	}
	sort.SliceStable(b.questions, func(i, j int) bool { return b.questions[i].ID < b.questions[j].ID })
	for i, q := range b.questions {
		b.byID[q.ID] = i
	}

	return b
}

// DefaultBank returns a bank holding the built-in questions.
func DefaultBank() *Bank {
	return NewBank(builtin, nil)
}

// Len returns the number of questions.
func (b *Bank) Len() int { return len(b.questions) }

// All returns a copy of all questions ordered by id.
func (b *Bank) All() []Question {
	out := make([]Question, len(b.questions))
	copy(out, b.questions)

	return out
}

// ByID looks a question up.
func (b *Bank) ByID(id int) (Question, bool) {
	idx, ok := b.byID[id]
	if !ok {
		return Question{}, false
	}

	return b.questions[idx], true
}

// Random picks a question uniformly. ok is false on an empty bank.
func (b *Bank) Random() (Question, bool) {
	if len(b.questions) == 0 {
		return Question{}, false
	}
	b.randMu.Lock()
	idx := b.rnd.IntN(len(b.questions))
	b.randMu.Unlock()

	return b.questions[idx], true
}
