package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/vladmir0512/deadline-bot/internal/domain"
	"github.com/vladmir0512/deadline-bot/internal/store"
	"github.com/vladmir0512/deadline-bot/internal/verify"
)

// ensureUser makes sure a user row exists; first contact also creates default
// settings and an active subscription for every notification kind.
func (r *Router) ensureUser(ctx context.Context, from *tgbotapi.User) (*domain.User, error) {
	u, err := r.repo.GetUserByTelegramID(ctx, from.ID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	u = &domain.User{TelegramID: from.ID, Username: from.UserName}
	if err := r.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	if err := r.repo.SaveSettings(ctx, domain.DefaultSettings(u.ID, r.defaultTZ)); err != nil {
		return nil, err
	}
	for _, kind := range domain.Kinds {
		if err := r.repo.SetSubscription(ctx, u.ID, kind, true); err != nil {
			return nil, err
		}
	}
	r.log.Info("user registered", zap.Int64("telegram_id", from.ID), zap.String("username", from.UserName))
	return u, nil
}

// loadSettings returns the user's settings, falling back to defaults when no
// row exists yet.
func (r *Router) loadSettings(ctx context.Context, userID int64) (*domain.NotificationSettings, error) {
	s, err := r.repo.GetSettings(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.DefaultSettings(userID, r.defaultTZ), nil
	}
	return s, err
}

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	_, _ = r.bot.Send(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID int64, from *tgbotapi.User) {
	if _, err := r.ensureUser(ctx, from); err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, "Profile initialization error. Please try again later.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, startText)
	msg.ReplyMarkup = mainMenuKeyboard(true)
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleDeadlines(ctx context.Context, chatID int64) {
	u, err := r.repo.GetUserByTelegramID(ctx, chatID)
	if err != nil {
		r.sendText(chatID, "Send /start first.")
		return
	}
	s, err := r.loadSettings(ctx, u.ID)
	if err != nil {
		r.log.Error("loadSettings failed", zap.Error(err))
		r.sendText(chatID, "Error reading your settings.")
		return
	}

	active, err := r.repo.ListUserDeadlines(ctx, u.ID, domain.StatusActive)
	if err != nil {
		r.log.Error("list deadlines failed", zap.Error(err))
		r.sendText(chatID, "Error listing deadlines.")
		return
	}
	overdue, err := r.repo.ListUserDeadlines(ctx, u.ID, domain.StatusOverdue)
	if err != nil {
		r.log.Error("list deadlines failed", zap.Error(err))
		r.sendText(chatID, "Error listing deadlines.")
		return
	}

	r.sendText(chatID, renderDeadlines(active, overdue, s.TZ))
}

func (r *Router) handleStatus(ctx context.Context, chatID int64, from *tgbotapi.User) {
	u, err := r.ensureUser(ctx, from)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, "Error reading your settings.")
		return
	}
	s, err := r.loadSettings(ctx, u.ID)
	if err != nil {
		r.log.Error("loadSettings failed", zap.Error(err))
		r.sendText(chatID, "Error reading your settings.")
		return
	}
	subs, err := r.repo.ListSubscriptions(ctx, u.ID)
	if err != nil {
		r.log.Error("list subscriptions failed", zap.Error(err))
		r.sendText(chatID, "Error reading your settings.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, renderSettings(s, subs))
	msg.ReplyMarkup = mainMenuKeyboard(s.Enabled)
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleSettings(ctx context.Context, chatID int64, from *tgbotapi.User) {
	if _, err := r.ensureUser(ctx, from); err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, "Error opening settings.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, "What do you want to configure?")
	msg.ReplyMarkup = settingsInlineKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleSetEnabled(ctx context.Context, chatID int64, from *tgbotapi.User, enabled bool) {
	u, err := r.ensureUser(ctx, from)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, "Failed to update.")
		return
	}
	s, err := r.loadSettings(ctx, u.ID)
	if err == nil {
		s.Enabled = enabled
		err = r.repo.SaveSettings(ctx, s)
	}
	if err != nil {
		r.log.Error("save settings failed", zap.Error(err))
		r.sendText(chatID, "Failed to update.")
		return
	}
	text := "Notifications paused ⏸"
	if enabled {
		text = "Notifications resumed ✅"
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = mainMenuKeyboard(enabled)
	_, _ = r.bot.Send(msg)
}

// --- Verification: /done <id> [comment] ---

func (r *Router) handleDone(ctx context.Context, chatID int64, from *tgbotapi.User, args string) {
	u, err := r.ensureUser(ctx, from)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, "Could not file the request.")
		return
	}

	idStr, comment, _ := strings.Cut(args, " ")
	deadlineID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		r.sendText(chatID, "Usage: /done <deadline id> [comment]\nFind the id in /deadlines.")
		return
	}

	v, err := r.verifier.File(ctx, deadlineID, u.ID, strings.TrimSpace(comment))
	switch {
	case errors.Is(err, store.ErrNotFound):
		r.sendText(chatID, "No such deadline.")
	case errors.Is(err, verify.ErrUnauthorized):
		r.sendText(chatID, "That deadline is not yours.")
	case errors.Is(err, store.ErrDuplicateVerification):
		r.sendText(chatID, "A verification for this deadline is already pending.")
	case err != nil:
		r.log.Error("file verification failed", zap.Error(err))
		r.sendText(chatID, "Could not file the request.")
	default:
		r.sendText(chatID, fmt.Sprintf("Request #%d filed. An admin will review it ✅", v.ID))
	}
}

// --- Email registration ---

func (r *Router) handleEmail(ctx context.Context, chatID int64, args string) {
	if args == "" {
		r.sendText(chatID, "Send your email address (used to match imported deadlines):")
		r.setPending(chatID, pendingEmail)
		return
	}
	r.saveEmail(ctx, chatID, args)
}

func (r *Router) saveEmail(ctx context.Context, chatID int64, email string) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !strings.Contains(email, "@") || strings.ContainsAny(email, " \t") {
		r.sendText(chatID, "That does not look like an email address.")
		return
	}
	u, err := r.repo.GetUserByTelegramID(ctx, chatID)
	if err != nil {
		r.sendText(chatID, "Send /start first.")
		return
	}
	if err := r.repo.SetUserEmail(ctx, u.ID, email); err != nil {
		r.log.Error("save email failed", zap.Error(err))
		r.sendText(chatID, "Could not save email.")
		return
	}
	r.sendText(chatID, "Email saved: "+email)
}

// --- Subscriptions: /subscribe <type>, /unsubscribe <type> ---

func (r *Router) handleSubscribe(ctx context.Context, chatID int64, from *tgbotapi.User, args string, active bool) {
	u, err := r.ensureUser(ctx, from)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, "Failed to update subscription.")
		return
	}
	kind, ok := parseKind(args)
	if !ok {
		r.sendText(chatID, "Unknown type. One of: daily, weekly, halfway, overdue_warning.")
		return
	}
	if err := r.repo.SetSubscription(ctx, u.ID, kind, active); err != nil {
		r.log.Error("set subscription failed", zap.Error(err))
		r.sendText(chatID, "Failed to update subscription.")
		return
	}
	verb := "Unsubscribed from"
	if active {
		verb = "Subscribed to"
	}
	r.sendText(chatID, verb+" "+kindLabels[kind]+".")
}

func parseKind(s string) (domain.NotificationKind, bool) {
	k := domain.NotificationKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range domain.Kinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// --- Settings flows ---

func (r *Router) askHourPresets(chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "When should the daily reminder arrive?")
	msg.ReplyMarkup = hourPresetsKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleHourCallback(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery, data string) {
	_ = r.answerCallback(cb.ID, "")
	val := strings.TrimPrefix(data, "hour:")
	if val == "custom" {
		r.sendText(chatID, "Enter an hour 0-23, e.g.: 9 or 18:00")
		r.setPending(chatID, pendingHour)
		return
	}
	r.applyHour(ctx, chatID, cb.From, val)
}

func (r *Router) applyHour(ctx context.Context, chatID int64, from *tgbotapi.User, text string) {
	hour, err := domain.ParseHour(text)
	if err != nil {
		r.sendText(chatID, "Invalid hour. Examples: 9, 18, 18:00")
		return
	}
	if err := r.updateSettings(ctx, from, func(s *domain.NotificationSettings) {
		s.NotificationHour = hour
	}); err != nil {
		r.log.Error("save hour failed", zap.Error(err))
		r.sendText(chatID, "Could not save notification hour.")
		return
	}
	r.sendText(chatID, fmt.Sprintf("Daily reminders will arrive at %02d:00.", hour))
}

func (r *Router) askQuietPresets(chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "Choose quiet hours (no notifications inside the window):")
	msg.ReplyMarkup = quietPresetsKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleQuietCallback(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery, data string) {
	_ = r.answerCallback(cb.ID, "")
	val := strings.TrimPrefix(data, "quiet:")
	if val == "custom" {
		r.sendText(chatID, "Enter quiet hours as HH:MM-HH:MM (e.g., 22:00-08:00), or \"off\"")
		r.setPending(chatID, pendingQuiet)
		return
	}
	r.applyQuiet(ctx, chatID, cb.From, val)
}

func (r *Router) applyQuiet(ctx context.Context, chatID int64, from *tgbotapi.User, text string) {
	var fromM, toM int
	if strings.EqualFold(strings.TrimSpace(text), "off") {
		fromM, toM = 0, 0
	} else {
		var err error
		fromM, toM, err = domain.ParseQuietWindow(text)
		if err != nil {
			r.sendText(chatID, "Invalid format. Example: 22:00-08:00")
			return
		}
	}
	if err := r.updateSettings(ctx, from, func(s *domain.NotificationSettings) {
		s.QuietStartM, s.QuietEndM = fromM, toM
	}); err != nil {
		r.log.Error("save quiet hours failed", zap.Error(err))
		r.sendText(chatID, "Could not save quiet hours.")
		return
	}
	if fromM == toM {
		r.sendText(chatID, "Quiet hours disabled.")
		return
	}
	r.sendText(chatID, "Quiet hours updated: "+domain.FormatMinutes(fromM)+"-"+domain.FormatMinutes(toM))
}

func (r *Router) askDaysPresets(chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "Which days should the weekly summary arrive?")
	msg.ReplyMarkup = daysPresetsKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleDaysCallback(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery, data string) {
	_ = r.answerCallback(cb.ID, "")
	val := strings.TrimPrefix(data, "days:")
	if val == "custom" {
		r.sendText(chatID, "Enter days, e.g.: mon,wed,fri or mon-fri")
		r.setPending(chatID, pendingDays)
		return
	}
	r.applyDays(ctx, chatID, cb.From, val)
}

func (r *Router) applyDays(ctx context.Context, chatID int64, from *tgbotapi.User, text string) {
	days, err := domain.ParseWeeklyDays(text)
	if err != nil {
		r.sendText(chatID, "Invalid days. Examples: mon,wed,fri or mon-fri")
		return
	}
	if err := r.updateSettings(ctx, from, func(s *domain.NotificationSettings) {
		s.WeeklyDays = days
	}); err != nil {
		r.log.Error("save weekly days failed", zap.Error(err))
		r.sendText(chatID, "Could not save weekly days.")
		return
	}
	r.sendText(chatID, "Weekly summary days: "+domain.FormatWeeklyDays(days))
}

func (r *Router) askWarningPresets(chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "How many days before the due date should the warning arrive?")
	msg.ReplyMarkup = warningPresetsKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleWarningCallback(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery, data string) {
	_ = r.answerCallback(cb.ID, "")
	val := strings.TrimPrefix(data, "warn:")
	if val == "custom" {
		r.sendText(chatID, "Enter a number of days, e.g.: 3")
		r.setPending(chatID, pendingWarning)
		return
	}
	r.applyWarning(ctx, chatID, cb.From, val)
}

func (r *Router) applyWarning(ctx context.Context, chatID int64, from *tgbotapi.User, text string) {
	days, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || days < 0 || days > 30 {
		r.sendText(chatID, "Enter a number of days between 0 and 30.")
		return
	}
	if err := r.updateSettings(ctx, from, func(s *domain.NotificationSettings) {
		s.DaysBeforeWarning = days
	}); err != nil {
		r.log.Error("save warning days failed", zap.Error(err))
		r.sendText(chatID, "Could not save the warning horizon.")
		return
	}
	r.sendText(chatID, fmt.Sprintf("Due warnings will start %d day(s) before the deadline.", days))
}

func (r *Router) askTZPresets(chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	msg := tgbotapi.NewMessage(chatID, "Choose a timezone or enter your own (Region/City):")
	msg.ReplyMarkup = tzPresetsKeyboard()
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleTZCallback(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery, data string) {
	_ = r.answerCallback(cb.ID, "")
	val := strings.TrimPrefix(data, "tz:")
	if val == "custom" {
		r.sendText(chatID, "Enter timezone (e.g., Europe/Moscow):")
		r.setPending(chatID, pendingTZ)
		return
	}
	r.applyTZ(ctx, chatID, cb.From, val)
}

func (r *Router) applyTZ(ctx context.Context, chatID int64, from *tgbotapi.User, text string) {
	tz, err := domain.ValidateTZ(text)
	if err != nil {
		r.sendText(chatID, "Invalid timezone. Example: Europe/Moscow")
		return
	}
	if err := r.updateSettings(ctx, from, func(s *domain.NotificationSettings) {
		s.TZ = tz
	}); err != nil {
		r.log.Error("save timezone failed", zap.Error(err))
		r.sendText(chatID, "Could not save timezone.")
		return
	}
	r.sendText(chatID, "Timezone updated: "+tz)
}

// updateSettings loads, mutates and saves the user's settings row.
func (r *Router) updateSettings(ctx context.Context, from *tgbotapi.User, mutate func(*domain.NotificationSettings)) error {
	u, err := r.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	s, err := r.loadSettings(ctx, u.ID)
	if err != nil {
		return err
	}
	mutate(s)
	return r.repo.SaveSettings(ctx, s)
}

// --- Notification type toggles ---

func (r *Router) showTypeToggles(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery) {
	_ = r.answerCallback(cb.ID, "")
	u, err := r.ensureUser(ctx, cb.From)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		return
	}
	subs, err := r.repo.ListSubscriptions(ctx, u.ID)
	if err != nil {
		r.log.Error("list subscriptions failed", zap.Error(err))
		return
	}
	msg := tgbotapi.NewMessage(chatID, "Tap a type to toggle it:")
	msg.ReplyMarkup = typeTogglesKeyboard(subs)
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleToggleCallback(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery, data string) {
	kind, ok := parseKind(strings.TrimPrefix(data, "toggle:"))
	if !ok {
		_ = r.answerCallback(cb.ID, "")
		return
	}
	u, err := r.ensureUser(ctx, cb.From)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		_ = r.answerCallback(cb.ID, "")
		return
	}

	active := true
	subs, err := r.repo.ListSubscriptions(ctx, u.ID)
	if err == nil {
		for _, sub := range subs {
			if sub.Kind == kind {
				active = !sub.Active
			}
		}
	}
	if err := r.repo.SetSubscription(ctx, u.ID, kind, active); err != nil {
		r.log.Error("toggle subscription failed", zap.Error(err))
		_ = r.answerCallback(cb.ID, "Failed to update")
		return
	}
	// Per-type settings flags mirror the subscription so both gates agree.
	_ = r.updateSettings(ctx, cb.From, func(s *domain.NotificationSettings) {
		switch kind {
		case domain.KindDaily:
			s.DailyReminders = active
		case domain.KindWeekly:
			s.WeeklyReminders = active
		case domain.KindHalfway:
			s.HalfwayReminders = active
		}
	})

	state := "off"
	if active {
		state = "on"
	}
	_ = r.answerCallback(cb.ID, kindLabels[kind]+" "+state)

	if subs, err := r.repo.ListSubscriptions(ctx, u.ID); err == nil {
		edit := tgbotapi.NewEditMessageReplyMarkup(chatID, cb.Message.MessageID, typeTogglesKeyboard(subs))
		_, _ = r.bot.Request(edit)
	}
}

// --- Free-form dispatcher (for all "Custom" inputs) ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, from *tgbotapi.User, text string) {
	pending := r.getPending(chatID)
	if pending == "" {
		return
	}
	r.clearPending(chatID)

	switch pending {
	case pendingHour:
		r.applyHour(ctx, chatID, from, text)
	case pendingQuiet:
		r.applyQuiet(ctx, chatID, from, text)
	case pendingDays:
		r.applyDays(ctx, chatID, from, text)
	case pendingWarning:
		r.applyWarning(ctx, chatID, from, text)
	case pendingTZ:
		r.applyTZ(ctx, chatID, from, text)
	case pendingEmail:
		r.saveEmail(ctx, chatID, text)
	}
}

// --- Admin commands ---

func (r *Router) requireAdmin(chatID, telegramID int64) bool {
	if r.verifier.IsAdmin(telegramID) {
		return true
	}
	r.sendText(chatID, "Admins only.")
	return false
}

func (r *Router) handleVerifications(ctx context.Context, chatID, telegramID int64) {
	if !r.requireAdmin(chatID, telegramID) {
		return
	}
	pending, err := r.verifier.Pending(ctx)
	if err != nil {
		r.log.Error("list verifications failed", zap.Error(err))
		r.sendText(chatID, "Error listing verifications.")
		return
	}
	if len(pending) == 0 {
		r.sendText(chatID, "No pending verifications.")
		return
	}
	for _, v := range pending {
		d, err := r.repo.GetDeadline(ctx, v.DeadlineID)
		if err != nil {
			continue
		}
		body := fmt.Sprintf("Request #%d\nDeadline: %s (#%d)", v.ID, d.Title, d.ID)
		if v.UserComment != "" {
			body += "\nComment: " + v.UserComment
		}
		msg := tgbotapi.NewMessage(chatID, body)
		msg.ReplyMarkup = verificationKeyboard(v.ID)
		_, _ = r.bot.Send(msg)
	}
}

func (r *Router) handleResolveCallback(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery, data string) {
	action, idStr, _ := strings.Cut(data, ":")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		_ = r.answerCallback(cb.ID, "")
		return
	}

	v, err := r.verifier.Resolve(ctx, id, cb.From.ID, action == "approve", "")
	switch {
	case errors.Is(err, verify.ErrUnauthorized):
		_ = r.answerCallback(cb.ID, "Admins only")
	case errors.Is(err, verify.ErrInvalidState):
		_ = r.answerCallback(cb.ID, "Already resolved")
	case err != nil:
		r.log.Error("resolve verification failed", zap.Error(err))
		_ = r.answerCallback(cb.ID, "Failed")
	default:
		_ = r.answerCallback(cb.ID, "Done")
		r.sendText(chatID, fmt.Sprintf("Request #%d %s.", v.ID, v.Status))
		r.notifyRequester(ctx, v)
	}
}

// notifyRequester tells the deadline owner how their request was resolved.
func (r *Router) notifyRequester(ctx context.Context, v *domain.DeadlineVerification) {
	u, err := r.repo.GetUser(ctx, v.UserID)
	if err != nil {
		return
	}
	text := fmt.Sprintf("Your completion request #%d was rejected.", v.ID)
	if v.Status == domain.VerificationApproved {
		text = fmt.Sprintf("Your completion request #%d was approved ✅", v.ID)
	}
	_ = r.SendMessage(u.TelegramID, text)
}

func (r *Router) handleBlock(ctx context.Context, chatID, telegramID int64, args string) {
	if !r.requireAdmin(chatID, telegramID) {
		return
	}
	ident, reason, _ := strings.Cut(args, " ")
	target, err := r.resolveTelegramID(ctx, ident)
	if err != nil {
		r.sendText(chatID, "Usage: /block <telegram id or @username> [reason]")
		return
	}
	b := &domain.BlockedUser{TelegramID: target, Reason: strings.TrimSpace(reason), BlockedBy: telegramID}
	if err := r.repo.BlockUser(ctx, b); err != nil {
		r.log.Error("block failed", zap.Error(err))
		r.sendText(chatID, "Failed to block.")
		return
	}
	r.sendText(chatID, fmt.Sprintf("Blocked %d.", target))
}

func (r *Router) handleUnblock(ctx context.Context, chatID, telegramID int64, args string) {
	if !r.requireAdmin(chatID, telegramID) {
		return
	}
	target, err := r.resolveTelegramID(ctx, args)
	if err != nil {
		r.sendText(chatID, "Usage: /unblock <telegram id or @username>")
		return
	}
	if err := r.repo.UnblockUser(ctx, target); err != nil {
		r.log.Error("unblock failed", zap.Error(err))
		r.sendText(chatID, "Failed to unblock.")
		return
	}
	r.sendText(chatID, fmt.Sprintf("Unblocked %d.", target))
}

// resolveTelegramID accepts a raw telegram id or an @username known to the
// bot.
func (r *Router) resolveTelegramID(ctx context.Context, ident string) (int64, error) {
	ident = strings.TrimSpace(ident)
	if ident == "" {
		return 0, store.ErrNotFound
	}
	if id, err := strconv.ParseInt(ident, 10, 64); err == nil {
		return id, nil
	}
	u, err := r.repo.FindUserByIdentifier(ctx, strings.TrimPrefix(ident, "@"))
	if err != nil {
		return 0, err
	}
	return u.TelegramID, nil
}

func (r *Router) handleSync(ctx context.Context, chatID, telegramID int64) {
	if !r.requireAdmin(chatID, telegramID) {
		return
	}
	if r.syncer == nil {
		r.sendText(chatID, "No deadline feed configured.")
		return
	}
	summary, err := r.syncer.RunOnce(ctx)
	if err != nil {
		r.log.Error("manual sync failed", zap.Error(err))
		r.sendText(chatID, "Sync failed: "+err.Error())
		return
	}
	r.sendText(chatID, fmt.Sprintf(
		"Sync %s: %d inserted, %d updated, %d unchanged, %d rejected, %d pruned.",
		summary.RunID, summary.Inserted, summary.Updated, summary.Unchanged, summary.Rejected, summary.Pruned))
}

func (r *Router) handleStats(ctx context.Context, chatID, telegramID int64) {
	if !r.requireAdmin(chatID, telegramID) {
		return
	}
	st, err := r.repo.Stats(ctx)
	if err != nil {
		r.log.Error("stats failed", zap.Error(err))
		r.sendText(chatID, "Error reading stats.")
		return
	}
	r.sendText(chatID, fmt.Sprintf(
		"📊 Users: %d\nActive deadlines: %d\nOverdue: %d\nPending verifications: %d\nBlocked: %d",
		st.Users, st.ActiveDeadlines, st.OverdueDeadlines, st.PendingVerifications, st.BlockedUsers))
}
