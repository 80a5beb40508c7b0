package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func noop(context.Context, *Invocation) error { return nil }

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(&Descriptor{Name: "Ping", Aliases: []string{"P"}, Handler: noop}); err != nil {
		t.Fatalf("register ping: %v", err)
	}
	if err := reg.Register(&Descriptor{Name: "help", Handler: noop}); err != nil {
		t.Fatalf("register help: %v", err)
	}

	for _, tok := range []string{"ping", "PING", "p", "P"} {
		d, ok := reg.Resolve(tok)
		if !ok {
			t.Fatalf("resolve %q: not found", tok)
		}
		if d.Name != "ping" {
			t.Errorf("resolve %q: got %q, want %q", tok, d.Name, "ping")
		}
	}
	if d, ok := reg.Resolve("help"); !ok || d.Name != "help" {
		t.Errorf("resolve help: got %v, %v", d, ok)
	}
	if _, ok := reg.Resolve("nope"); ok {
		t.Error("expected unknown token to miss")
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	cases := []struct {
		name   string
		second *Descriptor
	}{
		{"same name", &Descriptor{Name: "ping", Handler: noop}},
		{"name differs in case", &Descriptor{Name: "PING", Handler: noop}},
		{"name equals alias", &Descriptor{Name: "p", Handler: noop}},
		{"alias equals name", &Descriptor{Name: "pong", Aliases: []string{"ping"}, Handler: noop}},
		{"alias equals alias", &Descriptor{Name: "pong", Aliases: []string{"p"}, Handler: noop}},
		{"alias repeated", &Descriptor{Name: "pong", Aliases: []string{"x", "X"}, Handler: noop}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := NewRegistry()
			if err := reg.Register(&Descriptor{Name: "ping", Aliases: []string{"p"}, Handler: noop}); err != nil {
				t.Fatalf("register first: %v", err)
			}
			err := reg.Register(tc.second)
			if !errors.Is(err, ErrDuplicateName) {
				t.Fatalf("got %v, want ErrDuplicateName", err)
			}
			if len(reg.List()) != 1 {
				t.Errorf("failed registration must not add commands, got %d", len(reg.List()))
			}
		})
	}
}

func TestRegistryFailedRegisterLeavesDescriptor(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(&Descriptor{Name: "a", Handler: noop}); err != nil {
		t.Fatalf("register a: %v", err)
	}

	aliases := []string{"X", "A"}
	d := &Descriptor{Name: "Foo", Aliases: aliases, Handler: noop}
	if err := reg.Register(d); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("got %v, want ErrDuplicateName", err)
	}
	if d.Name != "Foo" || d.Aliases[0] != "X" || d.Aliases[1] != "A" || aliases[0] != "X" {
		t.Errorf("descriptor changed: name %q aliases %v", d.Name, d.Aliases)
	}
	if d.Cooldown != 0 || d.Blocked != nil {
		t.Error("defaults applied to a rejected descriptor")
	}

	repeated := &Descriptor{Name: "Bar", Aliases: []string{"Y", "y"}, Handler: noop}
	if err := reg.Register(repeated); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("got %v, want ErrDuplicateName", err)
	}
	if repeated.Name != "Bar" || repeated.Aliases[0] != "Y" {
		t.Errorf("descriptor changed: %+v", repeated)
	}

	d.Aliases = []string{"X"}
	if err := reg.Register(d); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if d.Name != "foo" || d.Aliases[0] != "x" {
		t.Errorf("accepted descriptor not normalised: %q %v", d.Name, d.Aliases)
	}
}

func TestRegistryInvalidDescriptor(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(&Descriptor{Handler: noop}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("missing name: got %v", err)
	}
	if err := reg.Register(&Descriptor{Name: "x"}); !errors.Is(err, ErrInvalidDescriptor) {
		t.Errorf("missing handler: got %v", err)
	}
}

func TestRegistryDefaults(t *testing.T) {
	reg := NewRegistry()
	d := &Descriptor{Name: "ping", Handler: noop}
	if err := reg.Register(d); err != nil {
		t.Fatalf("register: %v", err)
	}
	if d.Cooldown != DefaultCooldown {
		t.Errorf("cooldown: got %d, want %d", d.Cooldown, DefaultCooldown)
	}
	if d.Blocked == nil || d.Unblocked == nil {
		t.Fatal("expected block/allow sets to be initialised")
	}
	d.Blocked.Add("u1")
	if !d.Blocked.Has("u1") {
		t.Error("blocked set should be mutable after registration")
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Descriptor{Name: "beta", Aliases: []string{"b"}, Handler: noop})
	reg.Register(&Descriptor{Name: "alpha", Handler: noop})

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("got %d commands, want 2", len(list))
	}
	if list[0].Name != "alpha" {
		t.Errorf("got %q first, want %q", list[0].Name, "alpha")
	}
}

func TestPermissionSetMissing(t *testing.T) {
	ps := NewPermissionSet("send_messages", "KICK_MEMBERS")
	missing := ps.Missing([]string{"KICK_MEMBERS", "BAN_MEMBERS", "Send_Messages", "MANAGE_ROLES"})
	if len(missing) != 2 || missing[0] != "BAN_MEMBERS" || missing[1] != "MANAGE_ROLES" {
		t.Errorf("got %v", missing)
	}
	if got := ps.Missing(nil); got != nil {
		t.Errorf("nothing required: got %v", got)
	}
}

func TestSpecApply(t *testing.T) {
	raw := `{"args":2,"cooldown":5,"ownersOnly":true,"permissions":"KICK_MEMBERS","botPermissions":["A","B"],"blockedUsers":["u9"]}`
	var s Spec
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	d := &Descriptor{Name: "kick", Usage: "<user> <reason>", Handler: noop}
	s.Apply(d)

	if d.Args != 2 || d.Cooldown != 5 || !d.OwnersOnly {
		t.Errorf("scalar overrides not applied: %+v", d)
	}
	if d.Usage != "<user> <reason>" {
		t.Errorf("usage should be kept, got %q", d.Usage)
	}
	if len(d.Permissions) != 1 || d.Permissions[0] != "KICK_MEMBERS" {
		t.Errorf("permissions: got %v", d.Permissions)
	}
	if len(d.BotPermissions) != 2 {
		t.Errorf("bot permissions: got %v", d.BotPermissions)
	}
	if !d.Blocked.Has("u9") {
		t.Error("blocked users not applied")
	}
}

func TestSpecClearsPermissions(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{"empty string", `{"permissions":"","botPermissions":""}`, 0},
		{"empty list", `{"permissions":[],"botPermissions":[]}`, 0},
		{"absent", `{"cooldown":2}`, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var s Spec
			if err := json.Unmarshal([]byte(tc.raw), &s); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			d := &Descriptor{Name: "purge", Permissions: []string{"MANAGE_MESSAGES"}, BotPermissions: []string{"MANAGE_MESSAGES"}, Handler: noop}
			s.Apply(d)
			if len(d.Permissions) != tc.want || len(d.BotPermissions) != tc.want {
				t.Errorf("got %v / %v, want %d each", d.Permissions, d.BotPermissions, tc.want)
			}
		})
	}
}

func TestStringSetRejectsObjects(t *testing.T) {
	var s StringSet
	if err := json.Unmarshal([]byte(`{"a":1}`), &s); err == nil {
		t.Error("expected error for object")
	}
}

func TestSafely(t *testing.T) {
	if err := Safely("ok", func() error { return nil }); err != nil {
		t.Errorf("got %v", err)
	}

	boom := errors.New("boom")
	err := Safely("fail", func() error { return boom })
	var he *HandlerError
	if !errors.As(err, &he) || he.Panic || he.Handler != "fail" {
		t.Fatalf("got %#v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("HandlerError must unwrap to the handler error")
	}

	err = Safely("panic", func() error { panic("kaput") })
	if !errors.As(err, &he) || !he.Panic || he.Err.Error() != "kaput" {
		t.Fatalf("got %#v", err)
	}
}
