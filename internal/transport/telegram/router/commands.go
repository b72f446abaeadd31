package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	rtsup "gamewatch/internal/runtime/supervisor"
	kit "gamewatch/internal/transport"
	logx "gamewatch/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	// AccessAdmin allows configured owners and administrators of the chat
	// the command was sent in.
	AccessAdmin
)

const (
	MsgPermissionDenied = "You do not have the required permissions for this command."
	MsgBusy             = "Busy, try again in a moment."
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Access      Access
	Timeout     time.Duration // optional per-command bound
	Handle      HandlerFunc
}

type Request struct {
	Update       kit.Update
	Chat         kit.ChatTarget
	FromID       int64
	FromUsername string
	Command      string
	Args         []string
	ReqID        string

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Reply sends an HTML message to the chat the command came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

// CommandManager parses incoming messages, checks access and runs command
// handlers on a bounded worker pool. Messages that are not a registered
// command get no reply.
type CommandManager struct {
	mu       sync.RWMutex
	cmds     map[string]*Command // name and aliases
	ordered  []Command
	owners   []int64
	username string

	log     logx.Logger
	adapter kit.Adapter
	workers int

	jobs chan func()
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, owners []int64) *CommandManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	return &CommandManager{
		cmds:    map[string]*Command{},
		owners:  append([]int64(nil), owners...),
		log:     log,
		adapter: adapter,
		workers: workers,
		jobs:    make(chan func(), 64),
	}
}

// SetOwners updates the owner list. Safe to call during hot reload.
func (m *CommandManager) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = cp
	m.mu.Unlock()
}

// SetBotUsername makes "/cmd@otherbot" messages addressed to other bots be
// ignored.
func (m *CommandManager) SetBotUsername(name string) {
	m.mu.Lock()
	m.username = strings.TrimPrefix(strings.TrimSpace(name), "@")
	m.mu.Unlock()
}

// SetRegistry replaces the command table and refreshes the platform menu.
func (m *CommandManager) SetRegistry(ctx context.Context, cmds []Command) {
	table := map[string]*Command{}
	ordered := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		cc := c
		cc.Name = name
		ordered = append(ordered, cc)
		table[name] = &cc
		for _, a := range c.Aliases {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
				if _, exists := table[a]; !exists {
					table[a] = &cc
				}
			}
		}
	}

	m.mu.Lock()
	m.cmds = table
	m.ordered = ordered
	m.mu.Unlock()

	if up, ok := m.adapter.(kit.CommandMenuUpdater); ok {
		mctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := up.UpdateMenuCommands(mctx, buildMenu(ordered)); err != nil {
			m.log.Warn("menu update failed", logx.Err(err))
		}
	}
}

// Commands returns the registered commands in registration order.
func (m *CommandManager) Commands() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.ordered)
}

// DispatchLoop consumes updates until ctx is done or updates is closed.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx,
		rtsup.WithLogger(m.log),
		rtsup.WithCancelOnError(false),
	)
	m.log.Info("command dispatcher started", logx.Int("workers", m.workers))

	for i := 0; i < m.workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-m.jobs:
					m.runJob(idx, job)
				}
			}
		}, 200*time.Millisecond, 5*time.Second, true)
	}

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if up.Kind == kit.UpdateMessage && up.Message != nil {
				m.routeMessage(ctx, up)
			}
		}
	}
}

func (m *CommandManager) runJob(worker int, job func()) {
	if job == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	job()
}

func (m *CommandManager) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	name, args, target, ok := parseCommand(msg.Text)
	if !ok {
		return
	}

	m.mu.RLock()
	cmd := m.cmds[name]
	self := m.username
	m.mu.RUnlock()
	if target != "" && self != "" && !strings.EqualFold(target, self) {
		return
	}
	if cmd == nil {
		m.log.Debug("unknown command ignored", logx.String("cmd", name), logx.Int64("chat_id", msg.ChatID))
		return
	}

	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	if cmd.Access == AccessAdmin && !m.authorized(ctx, msg) {
		m.log.Info("command denied", logx.String("cmd", cmd.Name), logx.Int64("from_id", msg.FromID), logx.Int64("chat_id", msg.ChatID))
		_, _ = m.adapter.SendText(ctx, chat, MsgPermissionDenied, nil)
		return
	}

	rid := newReqID()
	req := &Request{
		Update:       up,
		Chat:         chat,
		FromID:       msg.FromID,
		FromUsername: msg.FromUsername,
		Command:      cmd.Name,
		Args:         args,
		ReqID:        rid,
		Adapter:      m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}
	final := Chain(cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(cmd.Timeout),
	)

	select {
	case m.jobs <- func() { _ = final(ctx, req) }:
	default:
		_, _ = m.adapter.SendText(ctx, chat, MsgBusy, nil)
	}
}

// authorized reports whether the sender is an owner or, in a group, an
// administrator of that chat.
func (m *CommandManager) authorized(ctx context.Context, msg *kit.Message) bool {
	m.mu.RLock()
	owner := slices.Contains(m.owners, msg.FromID)
	m.mu.RUnlock()
	if owner {
		return true
	}
	if !msg.IsGroup {
		return false
	}
	chk, ok := m.adapter.(kit.ChatAdminChecker)
	if !ok {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	admin, err := chk.IsChatAdmin(cctx, msg.ChatID, msg.FromID)
	if err != nil {
		m.log.Warn("chat admin lookup failed", logx.Err(err), logx.Int64("chat_id", msg.ChatID))
		return false
	}
	return admin
}

// parseCommand splits "/name@bot arg1 arg2". ok is false for anything that
// is not a slash command.
func parseCommand(text string) (name string, args []string, target string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, "", false
	}
	parts := strings.Fields(text)
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word, target = word[:i], word[i+1:]
	}
	if word == "" {
		return "", nil, "", false
	}
	return strings.ToLower(word), parts[1:], target, true
}

func newReqID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
