package notify

import (
	"context"
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	qrcode "github.com/skip2/go-qrcode"

	"eventdesk/internal/calendar"
	"eventdesk/internal/models"
)

// TelegramSender delivers intents through the Bot API. Registration
// approvals carry the event as an ICS document plus a QR code of the event
// link so attendees can open it from a phone at the venue.
type TelegramSender struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramSender(token string) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramSender{bot: bot}, nil
}

func (s *TelegramSender) Send(ctx context.Context, intent Intent) error {
	_ = ctx // the Bot API client has no context support in this version
	chatID, err := strconv.ParseInt(intent.TargetExternalID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad telegram target %q: %w", intent.TargetExternalID, err)
	}

	text := intent.Subject
	if intent.Body != "" {
		text += "\n\n" + intent.Body
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}

	if intent.Event != nil && intent.AttachICS {
		s.sendAttachments(chatID, intent.Event)
	}
	return nil
}

func (s *TelegramSender) sendAttachments(chatID int64, e *models.Event) {
	ics := calendar.GenerateICS(*e)
	doc := tgbotapi.NewDocumentUpload(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("event_%s.ics", e.ID),
		Bytes: ics,
	})
	if _, err := s.bot.Send(doc); err != nil {
		log.Printf("notify telegram ics failed event=%s err=%v", e.ID, err)
	}

	if models.IsSentinelURL(e.SourceURL) {
		return
	}
	png, err := qrcode.Encode(e.SourceURL, qrcode.Medium, 256)
	if err != nil {
		log.Printf("notify qr encode failed event=%s err=%v", e.ID, err)
		return
	}
	photo := tgbotapi.NewPhotoUpload(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("event_%s.png", e.ID),
		Bytes: png,
	})
	if _, err := s.bot.Send(photo); err != nil {
		log.Printf("notify telegram qr failed event=%s err=%v", e.ID, err)
	}
}
