package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "gamewatch/internal/transport"
	logx "gamewatch/pkg/logx"
)

type sentText struct {
	To   kit.ChatTarget
	Text string
}

type fakeAdapter struct {
	mu       sync.Mutex
	texts    []sentText
	menu     []kit.BotCommand
	admins   map[int64]bool
	adminErr error
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error { return nil }
func (f *fakeAdapter) Ready() <-chan struct{} { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sentText{To: to, Text: text})
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (f *fakeAdapter) SendCard(context.Context, kit.ChatTarget, kit.Card) (kit.MessageRef, error) {
	return kit.MessageRef{}, nil
}

func (f *fakeAdapter) IsChatAdmin(_ context.Context, _ int64, userID int64) (bool, error) {
	return f.admins[userID], f.adminErr
}

func (f *fakeAdapter) UpdateMenuCommands(_ context.Context, cmds []kit.BotCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.menu = cmds
	return nil
}

func (f *fakeAdapter) sent() []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentText(nil), f.texts...)
}

type harness struct {
	ad      *fakeAdapter
	m       *CommandManager
	updates chan kit.Update
	calls   chan string
}

func newHarness(t *testing.T, owners ...int64) *harness {
	t.Helper()
	h := &harness{
		ad:      &fakeAdapter{admins: map[int64]bool{}},
		updates: make(chan kit.Update, 8),
		calls:   make(chan string, 8),
	}
	h.m = NewCommandManager(logx.Nop(), h.ad, owners)
	record := func(ctx context.Context, req *Request) error {
		h.calls <- req.Command
		return req.Reply(ctx, "ok "+req.Command)
	}
	h.m.SetRegistry(context.Background(), []Command{
		{Name: "status", Description: "show status", Access: AccessEveryone, Handle: record},
		{Name: "check_now", Aliases: []string{"check"}, Description: "check now", Access: AccessAdmin, Handle: record},
		{Name: "boom", Access: AccessEveryone, Handle: func(context.Context, *Request) error { panic("boom") }},
	})
	h.m.SetBotUsername("gamewatch_bot")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.m.DispatchLoop(ctx, h.updates)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) send(from int64, text string, group bool) {
	h.updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
		ChatID: -100, FromID: from, Text: text, IsGroup: group,
	}}
}

func (h *harness) expectCall(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-h.calls:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("handler %q not called", want)
	}
}

func (h *harness) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case got := <-h.calls:
		t.Fatalf("unexpected handler call %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEveryoneCommand(t *testing.T) {
	h := newHarness(t)
	h.send(5, "/status", false)
	h.expectCall(t, "status")
	assert.Eventually(t, func() bool { return len(h.ad.sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "ok status", h.ad.sent()[0].Text)
}

func TestUnknownAndPlainTextIgnored(t *testing.T) {
	h := newHarness(t)
	h.send(5, "/dance", false)
	h.send(5, "hello there", false)
	h.send(5, "/status@other_bot", false)
	h.expectNoCall(t)
	assert.Empty(t, h.ad.sent())
}

func TestAdminCommandDeniedForRegularUser(t *testing.T) {
	h := newHarness(t, 1)
	h.send(5, "/check_now", true)
	h.expectNoCall(t)
	require.Eventually(t, func() bool { return len(h.ad.sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, MsgPermissionDenied, h.ad.sent()[0].Text)
}

func TestAdminCommandAllowedForOwnerAndChatAdmin(t *testing.T) {
	h := newHarness(t, 1)
	h.send(1, "/check_now@gamewatch_bot", false)
	h.expectCall(t, "check_now")

	h.ad.admins[7] = true
	h.send(7, "/check", true)
	h.expectCall(t, "check_now")
}

func TestChatAdminIgnoredOutsideGroups(t *testing.T) {
	h := newHarness(t)
	h.ad.admins[7] = true
	h.send(7, "/check_now", false)
	h.expectNoCall(t)
}

func TestAdminLookupErrorDenies(t *testing.T) {
	h := newHarness(t)
	h.ad.admins[7] = true
	h.ad.adminErr = errors.New("chat not found")
	h.send(7, "/check_now", true)
	h.expectNoCall(t)
}

func TestPanickingHandlerKeepsDispatcherAlive(t *testing.T) {
	h := newHarness(t)
	h.send(5, "/boom", false)
	h.send(5, "/status", false)
	h.expectCall(t, "status")
}

func TestMenuAndHelp(t *testing.T) {
	h := newHarness(t)
	h.ad.mu.Lock()
	menu := h.ad.menu
	h.ad.mu.Unlock()
	require.Len(t, menu, 3)
	assert.Equal(t, "boom", menu[0].Command)
	assert.Equal(t, "🔒 check now", menu[1].Description)

	help := h.m.HelpText()
	assert.Contains(t, help, "/status - show status")
	assert.Contains(t, help, "/check_now - check now 🔒")
}

func TestParseCommand(t *testing.T) {
	name, args, target, ok := parseCommand("  /Check_Now@MyBot  a b ")
	require.True(t, ok)
	assert.Equal(t, "check_now", name)
	assert.Equal(t, []string{"a", "b"}, args)
	assert.Equal(t, "MyBot", target)

	_, _, _, ok = parseCommand("/")
	assert.False(t, ok)
	_, _, _, ok = parseCommand("status")
	assert.False(t, ok)
}
