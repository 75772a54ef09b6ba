package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/vladmir0512/deadline-bot/internal/store"
	syncpkg "github.com/vladmir0512/deadline-bot/internal/sync"
	"github.com/vladmir0512/deadline-bot/internal/verify"
)

// Pending state keys used in conversational flows.
const (
	pendingHour    = "await_hour_text"
	pendingQuiet   = "await_quiet_text"
	pendingDays    = "await_days_text"
	pendingWarning = "await_warning_text"
	pendingTZ      = "await_tz_text"
	pendingEmail   = "await_email_text"
)

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot       *tgbotapi.BotAPI
	log       *zap.Logger
	repo      store.Repo
	verifier  *verify.Service
	syncer    *syncpkg.Runner // nil when no feed is configured
	defaultTZ string
	state     map[int64]string // chatID -> pending state
	mu        sync.RWMutex
}

// NewRouter creates a new Telegram router.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, repo store.Repo, verifier *verify.Service, syncer *syncpkg.Runner, defaultTZ string) *Router {
	return &Router{
		bot:       bot,
		log:       log,
		repo:      repo,
		verifier:  verifier,
		syncer:    syncer,
		defaultTZ: defaultTZ,
		state:     make(map[int64]string),
	}
}

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

// getPending returns current pending state for a chat.
func (r *Router) getPending(chatID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

// clearPending clears a pending state for a chat.
func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// HandleUpdate routes a single update to appropriate handler. Updates from
// blocked users are dropped before any command dispatch.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	// Text messages
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		if r.dropBlocked(ctx, msg.From.ID) {
			return
		}
		text := strings.TrimSpace(msg.Text)
		cmd, args := splitCommand(text)

		switch cmd {
		case "/start":
			r.handleStart(ctx, chatID, msg.From)
		case "/deadlines":
			r.handleDeadlines(ctx, chatID)
		case "/status":
			r.handleStatus(ctx, chatID, msg.From)
		case "/settings":
			r.handleSettings(ctx, chatID, msg.From)
		case "/pause":
			r.handleSetEnabled(ctx, chatID, msg.From, false)
		case "/resume":
			r.handleSetEnabled(ctx, chatID, msg.From, true)
		case "/done", "/verify":
			r.handleDone(ctx, chatID, msg.From, args)
		case "/email":
			r.handleEmail(ctx, chatID, args)
		case "/subscribe":
			r.handleSubscribe(ctx, chatID, msg.From, args, true)
		case "/unsubscribe":
			r.handleSubscribe(ctx, chatID, msg.From, args, false)
		case "/help":
			r.sendText(chatID, helpText)
		case "/verifications":
			r.handleVerifications(ctx, chatID, msg.From.ID)
		case "/block":
			r.handleBlock(ctx, chatID, msg.From.ID, args)
		case "/unblock":
			r.handleUnblock(ctx, chatID, msg.From.ID, args)
		case "/sync":
			r.handleSync(ctx, chatID, msg.From.ID)
		case "/stats":
			r.handleStats(ctx, chatID, msg.From.ID)
		default:
			// Free-form text used in "Custom" flows
			r.handleFreeForm(ctx, chatID, msg.From, text)
		}
		return
	}

	// Callback queries (inline buttons)
	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if r.dropBlocked(ctx, cb.From.ID) {
			return
		}
		data := cb.Data
		chatID := cb.Message.Chat.ID

		switch {
		case data == "set_hour":
			r.askHourPresets(chatID, cb.ID)
		case strings.HasPrefix(data, "hour:"):
			r.handleHourCallback(ctx, chatID, cb, data)

		case data == "set_quiet":
			r.askQuietPresets(chatID, cb.ID)
		case strings.HasPrefix(data, "quiet:"):
			r.handleQuietCallback(ctx, chatID, cb, data)

		case data == "set_days":
			r.askDaysPresets(chatID, cb.ID)
		case strings.HasPrefix(data, "days:"):
			r.handleDaysCallback(ctx, chatID, cb, data)

		case data == "set_warn":
			r.askWarningPresets(chatID, cb.ID)
		case strings.HasPrefix(data, "warn:"):
			r.handleWarningCallback(ctx, chatID, cb, data)

		case data == "set_tz":
			r.askTZPresets(chatID, cb.ID)
		case strings.HasPrefix(data, "tz:"):
			r.handleTZCallback(ctx, chatID, cb, data)

		case data == "set_types":
			r.showTypeToggles(ctx, chatID, cb)
		case strings.HasPrefix(data, "toggle:"):
			r.handleToggleCallback(ctx, chatID, cb, data)

		case strings.HasPrefix(data, "approve:"), strings.HasPrefix(data, "reject:"):
			r.handleResolveCallback(ctx, chatID, cb, data)

		default:
			// Unknown callback, ignore silently
		}
		return
	}
}

// dropBlocked reports whether the sender is on the ban list. Lookups that
// fail are treated as not blocked.
func (r *Router) dropBlocked(ctx context.Context, telegramID int64) bool {
	blocked, err := r.repo.IsBlocked(ctx, telegramID)
	if err != nil {
		r.log.Error("ban list lookup failed", zap.Error(err))
		return false
	}
	if blocked {
		r.log.Debug("dropped update from blocked user", zap.Int64("telegram_id", telegramID))
	}
	return blocked
}

// splitCommand separates "/cmd@bot arg1 arg2" into "/cmd" and trailing args.
func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, args, _ := strings.Cut(text, " ")
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	return cmd, strings.TrimSpace(args)
}

// SendMessage sends a plain text message to the given chat.
// This makes Router satisfy scheduler.Sender.
func (r *Router) SendMessage(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
