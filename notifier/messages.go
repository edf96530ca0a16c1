package notifier

import (
	"fmt"
	"strings"
	"time"

	"medibot/config"
	"medibot/types"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	dateTimeFormat = "02.01.2006 at 15:04"
	dateFormat     = "02.01.2006"
)

// ComposeDoctorMessage builds the notification for one doctor. Line order is
// fixed: header, early-slot block, next slot (hourly mode), booking link.
func ComposeDoctorMessage(cfg *config.Config, doctor types.Doctor, res types.AvailabilityResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👨‍⚕️👩‍⚕️ %s\n", escape(doctor.Name))

	if res.Reason == types.ReasonEarlySlot {
		plural := ""
		if res.Total != 1 {
			plural = "s"
		}
		fmt.Fprintf(&b, "🔥 %d appointment%s within the next %d days!\n", res.Total, plural, cfg.UpcomingDays)

		if res.Earliest != nil {
			fmt.Fprintf(&b, "📅 Earliest appointment: %s\n", res.Earliest.Format(dateTimeFormat))
		}
		if doctor.MoveBookingURL != "" {
			fmt.Fprintf(&b, "<a href=\"%s\">🚚 Move existing appointment</a>\n", escape(doctor.MoveBookingURL))
		}
	}

	if cfg.NotifyHourly && res.NextSlot != nil {
		fmt.Fprintf(&b, "🐌 Next available appointment: %s\n", res.NextSlot.Format(dateFormat))
	}

	fmt.Fprintf(&b, "📞 <a href=\"%s\">Book now on Doctolib</a>", escape(doctor.BookingURL))
	return b.String()
}

// ComposeSummary reports a pass in which no doctor had anything to notify
func ComposeSummary(checked int, now time.Time) string {
	return fmt.Sprintf(
		"📋 Medibot summary\n🔍 %d doctors checked\n😴 No new appointments found\n🕐 %s\n⏰ Next check follows the schedule",
		checked, now.Format(dateTimeFormat),
	)
}

// ComposeStartupError reports a run that failed before finishing
func ComposeStartupError(err error, now time.Time) string {
	return fmt.Sprintf(
		"⚠️ Medibot startup error\n💥 %s\n🕐 %s\n🔧 Please check the configuration",
		escape(err.Error()), now.Format(dateTimeFormat),
	)
}

// escape covers text and double-quoted attribute values alike
func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}
