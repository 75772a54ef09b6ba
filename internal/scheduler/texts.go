package scheduler

import (
	"fmt"

	"github.com/vladmir0512/deadline-bot/internal/domain"
)

var kindHeaders = map[domain.NotificationKind]string{
	domain.KindDaily:          "⏰ Daily reminder",
	domain.KindWeekly:         "📆 Weekly reminder",
	domain.KindHalfway:        "⏳ Halfway there",
	domain.KindOverdueWarning: "🔴 Deadline closing in",
}

// renderNotification builds the message text for one (deadline, kind) pair.
func renderNotification(kind domain.NotificationKind, d domain.Deadline, tz string) string {
	header, ok := kindHeaders[kind]
	if !ok {
		header = "⏰ Reminder"
	}
	text := fmt.Sprintf("%s\n\n%s", header, d.Title)
	if d.Description != "" {
		text += "\n" + d.Description
	}
	if d.DueDate != nil {
		text += "\n\nDue: " + domain.LocalizeTime(*d.DueDate, tz)
	}
	return text
}
