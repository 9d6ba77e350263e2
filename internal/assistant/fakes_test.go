package assistant

import (
	"context"
	"errors"
	"sync"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/inboxreply/internal/ledger"
	"github.com/teemow/inboxreply/internal/logging"
)

func msg(id, threadID, from, snippet string) *gmail.Message {
	m := &gmail.Message{Id: id, ThreadId: threadID, Snippet: snippet, Payload: &gmail.MessagePart{}}
	if from != "" {
		m.Payload.Headers = []*gmail.MessagePartHeader{{Name: "From", Value: from}}
	}
	return m
}

type sentMail struct {
	to, subject, body string
	ctxErr            error
}

type fakeMailbox struct {
	mu       sync.Mutex
	results  []*gmail.Message
	err      error
	sendErr  map[string]error
	searches int
	sent     []sentMail
}

func (f *fakeMailbox) SearchUnread(ctx context.Context) ([]*gmail.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeMailbox) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body, ctxErr: ctx.Err()})
	return f.sendErr[to]
}

func (f *fakeMailbox) sentTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		out = append(out, s.to)
	}
	return out
}

type fakeDrafter struct {
	mu      sync.Mutex
	prompts []string
	fn      func(prompt string) (string, error)
}

func (f *fakeDrafter) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		return fn(prompt)
	}
	return "Thank you for your email.", nil
}

func (f *fakeDrafter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

var errUnavailable = errors.New("service unavailable")

type harness struct {
	mailbox     *fakeMailbox
	drafter     *fakeDrafter
	ledger      *ledger.Memory
	scheduler   *Scheduler
	mu          sync.Mutex
	transitions [][2]State
}

func (h *harness) observe(from, to State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transitions = append(h.transitions, [2]State{from, to})
}

func (h *harness) states() [][2]State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][2]State(nil), h.transitions...)
}

func (h *harness) count(to State) int {
	n := 0
	for _, tr := range h.states() {
		if tr[1] == to {
			n++
		}
	}
	return n
}

func newHarness(self string, sleep SleepFunc) *harness {
	h := &harness{
		mailbox: &fakeMailbox{},
		drafter: &fakeDrafter{},
		ledger:  ledger.NewMemory(),
	}
	logger := logging.Discard()
	s, err := NewScheduler(Options{
		Ingester:    NewIngester(h.mailbox, h.ledger, self, nil, logger),
		Rules:       DefaultRules(),
		Coordinator: NewCoordinator(h.drafter, h.mailbox, CoordinatorOptions{Logger: logger}),
		Ledger:      h.ledger,
		Interval:    DefaultInterval,
		Sleep:       sleep,
		Observer:    h.observe,
		Logger:      logger,
	})
	if err != nil {
		panic(err)
	}
	h.scheduler = s
	return h
}
