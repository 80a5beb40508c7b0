package dispatch

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/nuka-bot/internal/command"
	"github.com/nidhogg/nuka-bot/internal/guard"
	"github.com/nidhogg/nuka-bot/internal/response"
)

type recorder struct {
	mu      sync.Mutex
	replies []string
}

func (r *recorder) Reply(_ context.Context, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, content)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replies)
}

type memAudit struct {
	mu   sync.Mutex
	recs []AuditRecord
}

func (m *memAudit) Record(_ context.Context, rec AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newEngine(t *testing.T, cat response.Catalog, opts []Option, descs ...*command.Descriptor) *Engine {
	t.Helper()
	reg := command.NewRegistry()
	for _, d := range descs {
		if err := reg.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.Name, err)
		}
	}
	if cat == nil {
		cat = response.DefaultCatalog()
	}
	e := NewEngine(Config{Prefixes: []string{"!", "?"}, Owners: []string{"owner"}},
		reg, response.NewResolver(cat, zap.NewNop()), zap.NewNop(), opts...)
	t.Cleanup(e.Stop)
	return e
}

func event(content string, rec *recorder) *Event {
	return &Event{
		Platform:  "test",
		ChannelID: "c1",
		Channel:   command.ChannelGuild,
		UserID:    "u1",
		Author:    "@u1",
		Content:   content,
		Responder: rec,
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		prefixes []string
		content  string
		ok       bool
		want     Parsed
	}{
		{[]string{"!", "?"}, "!help a b", true, Parsed{Prefix: "!", Token: "help", Args: []string{"a", "b"}}},
		{[]string{"!", "?"}, "?HELP   a\tb ", true, Parsed{Prefix: "?", Token: "help", Args: []string{"a", "b"}}},
		{[]string{"!", "!!"}, "!!x", true, Parsed{Prefix: "!", Token: "!x", Args: []string{}}},
		{[]string{"!"}, "hello", false, Parsed{}},
		{[]string{"!"}, "!", true, Parsed{Prefix: "!"}},
	}
	for _, tc := range cases {
		got, ok := Parse(tc.prefixes, tc.content)
		if ok != tc.ok {
			t.Errorf("%q: ok = %v", tc.content, ok)
			continue
		}
		if got.Prefix != tc.want.Prefix || got.Token != tc.want.Token || len(got.Args) != len(tc.want.Args) {
			t.Errorf("%q: got %+v, want %+v", tc.content, got, tc.want)
			continue
		}
		for i := range got.Args {
			if got.Args[i] != tc.want.Args[i] {
				t.Errorf("%q: arg %d = %q", tc.content, i, got.Args[i])
			}
		}
	}
}

func TestHandleUncheckedArity(t *testing.T) {
	var got []string
	var runs int
	help := &command.Descriptor{Name: "help", Handler: func(_ context.Context, inv *command.Invocation) error {
		runs++
		got = inv.Args
		return nil
	}}
	e := newEngine(t, nil, nil, help)
	rec := &recorder{}

	out := e.Handle(context.Background(), event("!help a b", rec))
	if out.Status != StatusExecuted || out.Decision.Kind != guard.Authorized {
		t.Fatalf("got %v/%v", out.Status, out.Decision.Kind)
	}
	if out.Decision.Command.Name != "help" || !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("got %s %v", out.Decision.Command.Name, got)
	}
	if runs != 1 || rec.count() != 0 {
		t.Errorf("runs = %d, replies = %d", runs, rec.count())
	}
}

func TestHandleIgnoresUnprefixed(t *testing.T) {
	e := newEngine(t, nil, nil)
	rec := &recorder{}
	out := e.Handle(context.Background(), event("hello there", rec))
	if out.Status != StatusIgnored || rec.count() != 0 {
		t.Errorf("got %v with %d replies", out.Status, rec.count())
	}
}

func TestHandleUnknown(t *testing.T) {
	cat := response.Catalog{response.CommandUnknown: {"{{command}}: not found, try {{prefix}}help"}}
	e := newEngine(t, cat, nil)
	rec := &recorder{}

	out := e.Handle(context.Background(), event("?foo", rec))
	if out.Status != StatusRejected || out.Decision.Kind != guard.Unknown {
		t.Fatalf("got %v/%v", out.Status, out.Decision.Kind)
	}
	if rec.count() != 1 || rec.replies[0] != "foo: not found, try ?help" {
		t.Errorf("replies: %q", rec.replies)
	}
	if !strings.Contains(out.Response, "foo") {
		t.Errorf("response %q should mention the command", out.Response)
	}
}

func TestHandleUnknownLiteralTemplate(t *testing.T) {
	cat := response.Catalog{response.CommandUnknown: {"This command doesn't exist"}}
	e := newEngine(t, cat, nil)
	rec := &recorder{}

	e.Handle(context.Background(), event("!foo", rec))
	if rec.count() != 1 || rec.replies[0] != "This command doesn't exist" {
		t.Errorf("replies: %q", rec.replies)
	}
}

func TestHandleCooldown(t *testing.T) {
	clk := &clock{t: time.Unix(1000, 0)}
	var runs int
	ping := &command.Descriptor{Name: "ping", Cooldown: 2, Handler: func(context.Context, *command.Invocation) error {
		runs++
		return nil
	}}
	cat := response.Catalog{response.CommandCooldown: {"wait {{cooldown}} second{{s}}"}}
	e := newEngine(t, cat, []Option{WithClock(clk.now)}, ping)
	rec := &recorder{}

	if out := e.Handle(context.Background(), event("!ping", rec)); out.Status != StatusExecuted {
		t.Fatalf("first: %v", out.Status)
	}
	if left, ok := e.Cooldowns().Remaining("ping", "u1", clk.t.Add(time.Second)); !ok || left != time.Second {
		t.Errorf("remaining: %v %v", left, ok)
	}

	clk.t = clk.t.Add(1700 * time.Millisecond)
	out := e.Handle(context.Background(), event("!ping", rec))
	if out.Decision.Kind != guard.Cooldown {
		t.Fatalf("second: %v", out.Decision.Kind)
	}
	if rec.count() != 1 || rec.replies[0] != "wait .3 seconds" {
		t.Errorf("replies: %q", rec.replies)
	}

	clk.t = clk.t.Add(time.Second)
	if out := e.Handle(context.Background(), event("!ping", rec)); out.Status != StatusExecuted {
		t.Errorf("after window: %v", out.Status)
	}
	if runs != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}
}

func TestHandleHandlerError(t *testing.T) {
	cat := response.Catalog{response.CommandError: {"{{author}} {{command}} {{error}}"}}
	fail := &command.Descriptor{Name: "fail", Handler: func(context.Context, *command.Invocation) error {
		return errors.New("db down")
	}}
	boom := &command.Descriptor{Name: "boom", Handler: func(context.Context, *command.Invocation) error {
		panic("kaput")
	}}
	audit := &memAudit{}
	e := newEngine(t, cat, []Option{WithAudit(audit)}, fail, boom)

	rec := &recorder{}
	out := e.Handle(context.Background(), event("!fail", rec))
	if out.Status != StatusFailed {
		t.Fatalf("got %v", out.Status)
	}
	var he *command.HandlerError
	if !errors.As(out.Err, &he) {
		t.Errorf("want HandlerError, got %v", out.Err)
	}
	if rec.count() != 1 || rec.replies[0] != "@u1 fail db down" {
		t.Errorf("replies: %q", rec.replies)
	}

	rec = &recorder{}
	out = e.Handle(context.Background(), event("!boom", rec))
	if out.Status != StatusFailed || rec.count() != 1 || rec.replies[0] != "@u1 boom kaput" {
		t.Errorf("panic: %v %q", out.Status, rec.replies)
	}

	if len(audit.recs) != 2 || audit.recs[0].Status != StatusFailed || audit.recs[0].Command != "fail" {
		t.Errorf("audit: %+v", audit.recs)
	}
	if _, ok := e.Cooldowns().Remaining("boom", "u1", time.Now()); !ok {
		t.Error("a failing handler must not disturb the cooldown record")
	}
}

func TestHandleGlobalBlock(t *testing.T) {
	ping := &command.Descriptor{Name: "ping", Handler: func(context.Context, *command.Invocation) error { return nil }}
	audit := &memAudit{}
	e := newEngine(t, nil, []Option{WithAudit(audit)}, ping)
	e.Blocked().Add("u1")

	rec := &recorder{}
	out := e.Handle(context.Background(), event("!ping", rec))
	if out.Decision.Kind != guard.Blocked || rec.count() != 1 {
		t.Fatalf("got %v with %d replies", out.Decision.Kind, rec.count())
	}
	if len(audit.recs) != 1 || audit.recs[0].Rejection != "blocked" {
		t.Errorf("audit: %+v", audit.recs)
	}

	e.Blocked().Remove("u1")
	if out := e.Handle(context.Background(), event("!ping", rec)); out.Status != StatusExecuted {
		t.Errorf("after unblock: %v", out.Status)
	}
}

func TestHandleReplyHelper(t *testing.T) {
	echo := &command.Descriptor{Name: "echo", Handler: func(ctx context.Context, inv *command.Invocation) error {
		return inv.Reply(ctx, strings.Join(inv.Args, " "))
	}}
	e := newEngine(t, nil, nil, echo)
	rec := &recorder{}

	e.Handle(context.Background(), event("!echo hi there", rec))
	if rec.count() != 1 || rec.replies[0] != "hi there" {
		t.Errorf("replies: %q", rec.replies)
	}
}

func TestHandleExactlyOneTerminalAction(t *testing.T) {
	var runs int
	ping := &command.Descriptor{Name: "ping", Args: 1, OwnersOnly: true, Handler: func(context.Context, *command.Invocation) error {
		runs++
		return nil
	}}
	e := newEngine(t, nil, nil, ping)

	for _, content := range []string{"!ping", "!ping a", "!nope", "plain"} {
		rec := &recorder{}
		runs = 0
		out := e.Handle(context.Background(), event(content, rec))
		actions := runs + rec.count()
		if out.Status == StatusIgnored {
			actions++
		}
		if actions != 1 {
			t.Errorf("%q: %d terminal actions (status %v)", content, actions, out.Status)
		}
	}
}
