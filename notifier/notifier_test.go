package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"medibot/config"
	"medibot/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(endpoint string) *config.Config {
	return &config.Config{
		Telegram: config.TelegramConfig{
			BotToken:    "123:abc",
			ChatID:      "-100200",
			APIEndpoint: endpoint,
		},
		UpcomingDays:   15,
		TimeoutSeconds: 2,
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestComposeDoctorMessage_EarlySlot(t *testing.T) {
	cfg := testConfig("")
	doctor := types.Doctor{
		Name:           "Dr. Müller <GP>",
		BookingURL:     "https://www.doctolib.de/dr-mueller?a=1&b=2",
		MoveBookingURL: "https://www.doctolib.de/move",
	}
	res := types.AvailabilityResult{
		Total:    3,
		Earliest: timePtr(time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)),
		Reason:   types.ReasonEarlySlot,
	}

	msg := ComposeDoctorMessage(cfg, doctor, res)
	lines := strings.Split(msg, "\n")

	require.Len(t, lines, 5)
	assert.Equal(t, "👨‍⚕️👩‍⚕️ Dr. Müller &lt;GP&gt;", lines[0])
	assert.Equal(t, "🔥 3 appointments within the next 15 days!", lines[1])
	assert.Equal(t, "📅 Earliest appointment: 05.01.2024 at 09:30", lines[2])
	assert.Equal(t, `<a href="https://www.doctolib.de/move">🚚 Move existing appointment</a>`, lines[3])
	assert.Equal(t, `📞 <a href="https://www.doctolib.de/dr-mueller?a=1&amp;b=2">Book now on Doctolib</a>`, lines[4])
}

func TestComposeDoctorMessage_SingularAndNoMoveLink(t *testing.T) {
	res := types.AvailabilityResult{Total: 1, Reason: types.ReasonEarlySlot}
	msg := ComposeDoctorMessage(testConfig(""), types.Doctor{Name: "Dr. A", BookingURL: "https://b"}, res)

	assert.Contains(t, msg, "🔥 1 appointment within the next 15 days!")
	assert.NotContains(t, msg, "Earliest")
	assert.NotContains(t, msg, "Move existing")
}

func TestComposeDoctorMessage_QuoteInURLStaysInsideAttribute(t *testing.T) {
	res := types.AvailabilityResult{Total: 1, Reason: types.ReasonEarlySlot}
	doctor := types.Doctor{Name: "Dr. A", BookingURL: `https://b/"><b>x`}

	msg := ComposeDoctorMessage(testConfig(""), doctor, res)

	assert.Contains(t, msg, `<a href="https://b/&#34;&gt;&lt;b&gt;x">Book now on Doctolib</a>`)
	assert.NotContains(t, msg, `"><b>`)
}

func TestComposeDoctorMessage_HourlyNextSlot(t *testing.T) {
	cfg := testConfig("")
	cfg.NotifyHourly = true
	res := types.AvailabilityResult{
		Total:    4,
		NextSlot: timePtr(time.Date(2024, 2, 20, 8, 0, 0, 0, time.UTC)),
		Reason:   types.ReasonHourly,
	}

	msg := ComposeDoctorMessage(cfg, types.Doctor{Name: "Dr. A", BookingURL: "https://b", MoveBookingURL: "https://m"}, res)

	assert.Equal(t, "👨‍⚕️👩‍⚕️ Dr. A\n🐌 Next available appointment: 20.02.2024\n📞 <a href=\"https://b\">Book now on Doctolib</a>", msg)
}

func TestComposeDoctorMessage_NextSlotHiddenWithoutHourlyMode(t *testing.T) {
	res := types.AvailabilityResult{
		Total:    2,
		NextSlot: timePtr(time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)),
		Reason:   types.ReasonEarlySlot,
	}
	msg := ComposeDoctorMessage(testConfig(""), types.Doctor{Name: "Dr. A", BookingURL: "https://b"}, res)
	assert.NotContains(t, msg, "Next available")
}

func TestComposeSummaryAndStartupError(t *testing.T) {
	now := time.Date(2024, 1, 2, 10, 5, 0, 0, time.UTC)

	summary := ComposeSummary(3, now)
	assert.Contains(t, summary, "3 doctors checked")
	assert.Contains(t, summary, "No new appointments found")
	assert.Contains(t, summary, "02.01.2024 at 10:05")

	startup := ComposeStartupError(errors.New("redis <down>"), now)
	assert.Contains(t, startup, "redis &lt;down&gt;")
}

type sentMessage struct {
	path string
	form map[string]string
}

func fakeTelegram(t *testing.T, status int, body string) (*httptest.Server, func() []sentMessage) {
	t.Helper()
	var (
		mu   sync.Mutex
		sent []sentMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		mu.Lock()
		sent = append(sent, sentMessage{path: r.URL.Path, form: form})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, func() []sentMessage {
		mu.Lock()
		defer mu.Unlock()
		return append([]sentMessage(nil), sent...)
	}
}

const okResponse = `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":-100200,"type":"group"}}}`

func TestTelegramSend(t *testing.T) {
	srv, sent := fakeTelegram(t, http.StatusOK, okResponse)

	tg, err := NewTelegram(testConfig(srv.URL + "/bot%s/%s"))
	require.NoError(t, err)

	require.NoError(t, tg.Send(context.Background(), "<b>hello</b> & bye"))

	msgs := sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "/bot123:abc/sendMessage", msgs[0].path)
	assert.Equal(t, "-100200", msgs[0].form["chat_id"])
	assert.Equal(t, "<b>hello</b> & bye", msgs[0].form["text"])
	assert.Equal(t, "HTML", msgs[0].form["parse_mode"])
	assert.Equal(t, "true", msgs[0].form["disable_web_page_preview"])
}

func TestTelegramSend_ChannelUsername(t *testing.T) {
	srv, sent := fakeTelegram(t, http.StatusOK, okResponse)

	cfg := testConfig(srv.URL + "/bot%s/%s")
	cfg.Telegram.ChatID = "@medibot"
	tg, err := NewTelegram(cfg)
	require.NoError(t, err)

	require.NoError(t, tg.Send(context.Background(), "hi"))
	assert.Equal(t, "@medibot", sent()[0].form["chat_id"])
}

func TestTelegramSend_APIErrorIsDeliveryError(t *testing.T) {
	srv, _ := fakeTelegram(t, http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)

	tg, err := NewTelegram(testConfig(srv.URL + "/bot%s/%s"))
	require.NoError(t, err)

	err = tg.Send(context.Background(), "hi")
	require.ErrorIs(t, err, ErrDelivery)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramSend_UnreachableIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/bot%s/%s"
	srv.Close()

	tg, err := NewTelegram(testConfig(endpoint))
	require.NoError(t, err)
	assert.ErrorIs(t, tg.Send(context.Background(), "hi"), ErrDelivery)
}

func TestNewTelegram_RejectsBadChatID(t *testing.T) {
	cfg := testConfig("")
	cfg.Telegram.ChatID = "not-a-chat"
	_, err := NewTelegram(cfg)
	assert.Error(t, err)
}
