package telegram

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladmir0512/deadline-bot/internal/domain"
)

// UI texts in English
const (
	startText = "👋 I track your deadlines and remind you before they slip.\n\n" +
		"• /deadlines — what is on your plate\n" +
		"• /settings — when and how I ping you\n" +
		"• /done <id> — ask an admin to confirm a deadline is finished\n" +
		"• /email — link the email used by imported deadlines\n\n" +
		"Use /help for the full command list."

	helpText = "Commands:\n" +
		"/deadlines — list active and overdue deadlines\n" +
		"/status — current notification settings\n" +
		"/settings — change hour, quiet hours, weekly days, types, timezone\n" +
		"/pause /resume — stop or restart all notifications\n" +
		"/subscribe <type> /unsubscribe <type> — daily, weekly, halfway, overdue_warning\n" +
		"/done <id> [comment] — request completion verification\n" +
		"/email [address] — set your email for deadline imports"
)

var kindLabels = map[domain.NotificationKind]string{
	domain.KindDaily:          "Daily reminders",
	domain.KindWeekly:         "Weekly summary",
	domain.KindHalfway:        "Halfway reminder",
	domain.KindOverdueWarning: "Due-soon warnings",
}

// mainMenuKeyboard builds a reply keyboard with a single toggle button:
// if enabled is true -> "/pause", else -> "/resume".
func mainMenuKeyboard(enabled bool) tgbotapi.ReplyKeyboardMarkup {
	toggle := "/pause"
	if !enabled {
		toggle = "/resume"
	}
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/deadlines"),
			tgbotapi.NewKeyboardButton("/status"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/settings"),
			tgbotapi.NewKeyboardButton(toggle),
		),
	)
}

// Inline keyboards
func settingsInlineKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🕘 Hour", "set_hour"),
			tgbotapi.NewInlineKeyboardButtonData("🌙 Quiet hours", "set_quiet"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Weekly days", "set_days"),
			tgbotapi.NewInlineKeyboardButtonData("⏰ Due warning", "set_warn"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔔 Types", "set_types"),
			tgbotapi.NewInlineKeyboardButtonData("🌍 Timezone", "set_tz"),
		),
	)
}

func hourPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("08:00", "hour:8"),
			tgbotapi.NewInlineKeyboardButtonData("09:00", "hour:9"),
			tgbotapi.NewInlineKeyboardButtonData("12:00", "hour:12"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("18:00", "hour:18"),
			tgbotapi.NewInlineKeyboardButtonData("21:00", "hour:21"),
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "hour:custom"),
		),
	)
}

func quietPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("22:00-08:00", "quiet:22:00-08:00"),
			tgbotapi.NewInlineKeyboardButtonData("23:00-07:00", "quiet:23:00-07:00"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔕 Off", "quiet:off"),
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "quiet:custom"),
		),
	)
}

func daysPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Mon-Fri", "days:mon-fri"),
			tgbotapi.NewInlineKeyboardButtonData("Every day", "days:mon-sun"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Mon only", "days:mon"),
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "days:custom"),
		),
	)
}

func warningPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("1 day", "warn:1"),
			tgbotapi.NewInlineKeyboardButtonData("2 days", "warn:2"),
			tgbotapi.NewInlineKeyboardButtonData("3 days", "warn:3"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("7 days", "warn:7"),
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "warn:custom"),
		),
	)
}

func tzPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Europe/Moscow", "tz:Europe/Moscow"),
			tgbotapi.NewInlineKeyboardButtonData("Europe/Tallinn", "tz:Europe/Tallinn"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Asia/Almaty", "tz:Asia/Almaty"),
			tgbotapi.NewInlineKeyboardButtonData("UTC", "tz:UTC"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "tz:custom"),
		),
	)
}

// typeTogglesKeyboard renders one row per notification kind with its current
// state.
func typeTogglesKeyboard(subs []domain.Subscription) tgbotapi.InlineKeyboardMarkup {
	active := make(map[domain.NotificationKind]bool, len(subs))
	for _, sub := range subs {
		active[sub.Kind] = sub.Active
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(domain.Kinds))
	for _, kind := range domain.Kinds {
		mark := "❌"
		if active[kind] {
			mark = "✅"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(mark+" "+kindLabels[kind], "toggle:"+string(kind)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func verificationKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", fmt.Sprintf("approve:%d", id)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", fmt.Sprintf("reject:%d", id)),
		),
	)
}

func renderSettings(s *domain.NotificationSettings, subs []domain.Subscription) string {
	enabled := "✅ Enabled"
	if !s.Enabled {
		enabled = "⏸ Paused"
	}
	quiet := "off"
	if s.QuietStartM != s.QuietEndM {
		quiet = domain.FormatMinutes(s.QuietStartM) + "-" + domain.FormatMinutes(s.QuietEndM)
	}

	active := make(map[domain.NotificationKind]bool, len(subs))
	for _, sub := range subs {
		active[sub.Kind] = sub.Active
	}
	var types []string
	for _, kind := range domain.Kinds {
		if active[kind] {
			types = append(types, string(kind))
		}
	}
	if len(types) == 0 {
		types = []string{"none"}
	}

	return fmt.Sprintf("🧾 Your current settings:\n"+
		"• Notifications: %s\n"+
		"• Daily hour: %02d:00\n"+
		"• Quiet hours: %s\n"+
		"• Weekly days: %s\n"+
		"• Due warning: %d day(s) before\n"+
		"• Types: %s\n"+
		"• TZ: %s",
		enabled,
		s.NotificationHour,
		quiet,
		domain.FormatWeeklyDays(s.WeeklyDays),
		s.DaysBeforeWarning,
		strings.Join(types, ", "),
		s.TZ,
	)
}

func renderDeadlines(active, overdue []domain.Deadline, tz string) string {
	if len(active) == 0 && len(overdue) == 0 {
		return "No deadlines on your plate 🎉"
	}

	var b strings.Builder
	if len(active) > 0 {
		b.WriteString("📌 Active:\n")
		for _, d := range active {
			writeDeadlineLine(&b, d, tz)
		}
	}
	if len(overdue) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("🔥 Overdue:\n")
		for _, d := range overdue {
			writeDeadlineLine(&b, d, tz)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeDeadlineLine(b *strings.Builder, d domain.Deadline, tz string) {
	due := "no due date"
	if d.DueDate != nil {
		due = domain.LocalizeTime(*d.DueDate, tz) + " (" + timeLeft(*d.DueDate) + ")"
	}
	fmt.Fprintf(b, "#%d %s — %s\n", d.ID, d.Title, due)
}

// timeLeft renders a coarse countdown: days when more than one remains,
// hours below that.
func timeLeft(due time.Time) string {
	left := time.Until(due)
	switch {
	case left < 0:
		return "past due"
	case left >= 48*time.Hour:
		return fmt.Sprintf("%dd left", int(left.Hours())/24)
	case left >= time.Hour:
		return fmt.Sprintf("%dh left", int(left.Hours()))
	default:
		return "less than an hour"
	}
}
