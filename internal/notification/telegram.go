package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"fxsignal/internal/execution"
	"fxsignal/internal/strategy"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends signals via Telegram Bot API.
type TelegramNotifier struct {
	botToken   string
	chatID     string
	bot        string
	riskAmount float64
	apiBase    string
	client     *http.Client
}

// NewTelegramNotifier creates a Telegram notifier.
// botToken: Bot API token from @BotFather
// chatID: Target chat/group/channel ID
// bot: robot name shown in the footer
// riskAmount: account currency risked per trade, used for the lot line
func NewTelegramNotifier(botToken, chatID, bot string, riskAmount float64) *TelegramNotifier {
	return &TelegramNotifier{
		botToken:   botToken,
		chatID:     chatID,
		bot:        bot,
		riskAmount: riskAmount,
		apiBase:    telegramAPI,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) Notify(ctx context.Context, sig *strategy.Signal) error {
	body, _ := json.Marshal(map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       t.formatSignal(sig),
		"parse_mode": "MarkdownV2",
	})

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}

	log.Printf("[telegram] sent %s %s", sig.Type, sig.Instrument)
	return nil
}

func (t *TelegramNotifier) formatSignal(sig *strategy.Signal) string {
	arrow := "🟢"
	if sig.Type == strategy.ActionSell {
		arrow = "🔴"
	}
	d := sig.Digits
	title := fmt.Sprintf("%s %s (%s)", sig.Type, sig.Instrument, sig.Strategy)
	body := fmt.Sprintf("Entry: %.*f\nStop: %.*f (%d pips)\nTarget: %.*f (%d pips)\nR:R %.2f",
		d, sig.Entry, d, sig.StopLoss, sig.RiskInPips, d, sig.Target, sig.RewardInPips, sig.RewardToRiskRatio)
	// Lot line is dropped when no risk amount is configured.
	if lot, err := execution.LotSize(t.riskAmount, sig.RiskInPips); err == nil {
		body += fmt.Sprintf("\nLot: %.2f", lot)
	}
	if t.bot != "" {
		body += "\n\nBot: " + t.bot
	}
	return fmt.Sprintf("%s *%s*\n\n%s", arrow, escapeMarkdown(title), escapeMarkdown(body))
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
func escapeMarkdown(s string) string {
	specials := []byte{'_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!'}
	var buf bytes.Buffer
	for i := 0; i < len(s); i++ {
		for _, sp := range specials {
			if s[i] == sp {
				buf.WriteByte('\\')
				break
			}
		}
		buf.WriteByte(s[i])
	}
	return buf.String()
}
