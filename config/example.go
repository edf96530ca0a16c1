package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const ExampleYAML = `# medibot config.yaml
# Secrets can also come from TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID or a .env file
# next to this file.

telegram:
  bot_token: "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"  # from @BotFather
  chat_id: "-123456789"                                   # group chats are negative

# availabilities_url: open the booking page, F12 -> Network -> Fetch/XHR,
# start a booking and copy the full availabilities.json request URL.
doctors:
  - name: "Dr. Müller (GP)"
    booking_url: "https://www.doctolib.de/allgemeinmedizin/berlin/dr-mueller"
    availabilities_url: "https://www.doctolib.de/availabilities.json?visit_motive_ids=123456&agenda_ids=456789&practice_ids=789012&insurance_sector=public&limit=5"
  - name: "Dr. Schmidt (Orthopedics)"
    booking_url: "https://www.doctolib.de/orthopade/berlin/dr-schmidt"
    availabilities_url: "https://www.doctolib.de/availabilities.json?visit_motive_ids=654321&agenda_ids=987654&practice_ids=345678&insurance_sector=public&limit=5"
    move_booking_url: ""

upcoming_days: 15          # max 15 (Doctolib limit)
notify_hourly: false       # also report later appointments at the top of each hour
request_delay_seconds: 3   # pause between doctors
timeout_seconds: 30
timezone: "Europe/Berlin"

log:
  file: "medibot.log"
  level: "info"

# Optional: prevents overlapping cron invocations
redis:
  addr: ""
  db: 0
  lock_ttl_seconds: 600

# Used by "medibot schedule" only
schedule:
  cron: "*/10 * * * *"
`

// WriteExample creates the example config at path unless a file already exists.
// It reports whether a file was written.
func WriteExample(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("unable to access config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	// 0600: the file carries the bot token
	if err := os.WriteFile(path, []byte(ExampleYAML), 0o600); err != nil {
		return false, fmt.Errorf("failed to create example config file: %w", err)
	}
	return true, nil
}
