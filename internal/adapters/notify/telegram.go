package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

// Min interval between two messages to the same chat (~30/min limit).
const telegramSendInterval = 2 * time.Second

const telegramQueueSize = 100

// BotSender is the subset of *tgbotapi.BotAPI the notifier needs.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends alerts for fills, exits, gate halts and failed cycles.
// Quiet cycles produce no message. Messages go out from a background
// goroutine, paced by limiter.
type Telegram struct {
	bot     BotSender
	chatID  int64
	limiter *rate.Limiter

	queue chan string
	wg    sync.WaitGroup
	once  sync.Once

	mu         sync.Mutex
	lastStatus domain.GateStatus
}

// NewTelegram connects to the bot API with token.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram.NewBotAPI: %w", err)
	}
	bot.Debug = false
	slog.Info("telegram notifier initialized", "bot", bot.Self.UserName, "chat_id", chatID)
	return NewTelegramWithBot(bot, chatID, telegramSendInterval), nil
}

// NewTelegramWithBot builds the notifier over any sender. interval <= 0
// disables pacing.
func NewTelegramWithBot(bot BotSender, chatID int64, interval time.Duration) *Telegram {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	t := &Telegram{
		bot:     bot,
		chatID:  chatID,
		limiter: rate.NewLimiter(limit, 1),
		queue:   make(chan string, telegramQueueSize),
	}
	t.wg.Add(1)
	go t.sender()
	return t
}

// NotifyCycle implements ports.Notifier. A full queue drops the message.
func (t *Telegram) NotifyCycle(_ context.Context, r domain.CycleReport) error {
	for _, msg := range t.messages(r) {
		select {
		case t.queue <- msg:
		default:
			slog.Warn("telegram queue full, dropping message", "cycle_id", r.CycleID)
		}
	}
	return nil
}

// Close drains the queue and stops the sender.
func (t *Telegram) Close() {
	t.once.Do(func() {
		close(t.queue)
		t.wg.Wait()
	})
}

func (t *Telegram) sender() {
	defer t.wg.Done()
	for text := range t.queue {
		if err := t.limiter.Wait(context.Background()); err != nil {
			slog.Warn("telegram limiter", "err", err)
		}
		msg := tgbotapi.NewMessage(t.chatID, text)
		if _, err := t.bot.Send(msg); err != nil {
			slog.Warn("telegram send failed", "err", err)
		}
	}
}

func (t *Telegram) messages(r domain.CycleReport) []string {
	var out []string

	t.mu.Lock()
	halted := r.Risk.Status.Halted() && r.Risk.Status != t.lastStatus
	t.lastStatus = r.Risk.Status
	t.mu.Unlock()
	if halted {
		out = append(out, fmt.Sprintf("⛔ Gate %s\n%s\nDaily P&L: $%s",
			r.Risk.Status, r.Risk.HaltReason, r.Risk.DailyRealizedPnL.StringFixed(2)))
	}

	var fills []string
	for _, d := range r.Decisions {
		if !d.Executed() {
			continue
		}
		base := d.Order.Opportunity.Base()
		fills = append(fills, fmt.Sprintf("• %s %s %s $%s @ %.4f (edge %+.2f%%)",
			kindLabel(d.Order.Opportunity.Kind()),
			domain.TruncateQuestion(base.Question, base.MarketID, 60),
			d.Order.Side, d.Order.Stake.StringFixed(2), d.Fill.Price, base.ExpectedEdge*100))
	}
	if len(fills) > 0 {
		out = append(out, "✅ Filled\n"+strings.Join(fills, "\n"))
	}

	var exits []string
	for _, p := range r.Exits {
		exits = append(exits, fmt.Sprintf("• %s %s %s pnl $%s",
			p.ExitReason, domain.TruncateQuestion(p.Question, p.MarketID, 60),
			p.Side, p.RealizedPnL.StringFixed(2)))
	}
	if len(exits) > 0 {
		out = append(out, "💰 Closed\n"+strings.Join(exits, "\n"))
	}

	if r.Err != nil {
		out = append(out, fmt.Sprintf("⚠️ Cycle %s failed: %v", r.CycleID, r.Err))
	}
	return out
}
