package infrastructure

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"commitbet/events"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Discord color constants
const (
	ColorPrimary = 0x5865F2 // Discord blurple
	ColorSuccess = 0x57F287 // Green
)

// DefaultWebhookTimeout bounds a single announcement post
const DefaultWebhookTimeout = 10 * time.Second

// webhookExecutor posts a message to a Discord webhook
type webhookExecutor interface {
	Execute(ctx context.Context, webhookID, token string, params *discordgo.WebhookParams) error
}

// sessionWebhook executes webhooks through a discordgo session
type sessionWebhook struct {
	session *discordgo.Session
}

func (w sessionWebhook) Execute(ctx context.Context, webhookID, token string, params *discordgo.WebhookParams) error {
	_, err := w.session.WebhookExecute(webhookID, token, false, params, discordgo.WithContext(ctx))
	return err
}

// DiscordNotifier announces market openings and resolutions on a Discord webhook
type DiscordNotifier struct {
	webhook   webhookExecutor
	webhookID string
	token     string
	timeout   time.Duration
}

// NewDiscordNotifier creates a notifier for a webhook URL of the form
// https://discord.com/api/webhooks/{id}/{token}
func NewDiscordNotifier(webhookURL string) (*DiscordNotifier, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}

	// Webhook execution is authorized by the token in the URL, not a bot token
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	return &DiscordNotifier{
		webhook:   sessionWebhook{session: session},
		webhookID: id,
		token:     token,
		timeout:   DefaultWebhookTimeout,
	}, nil
}

// ParseWebhookURL extracts the webhook id and token from a Discord webhook URL
func ParseWebhookURL(webhookURL string) (id, token string, err error) {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", "", fmt.Errorf("invalid webhook URL scheme %q", u.Scheme)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("webhook URL %q has no webhooks/{id}/{token} path", u.Redacted())
}

// Register subscribes the notifier to the market events it announces
func (n *DiscordNotifier) Register(bus *events.Bus) {
	bus.Subscribe(events.EventTypeMarketCreated, n.Handle)
	bus.Subscribe(events.EventTypeMarketResolved, n.Handle)
}

// Handle posts an announcement for the event, logging failures
func (n *DiscordNotifier) Handle(ctx context.Context, event events.Event) {
	embed := buildAnnouncementEmbed(event)
	if embed == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	err := n.webhook.Execute(ctx, n.webhookID, n.token, &discordgo.WebhookParams{
		Username: "commitbet",
		Embeds:   []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to post Discord announcement")
	}
}

// buildAnnouncementEmbed renders an event, or returns nil when it is not announced
func buildAnnouncementEmbed(event events.Event) *discordgo.MessageEmbed {
	switch e := event.(type) {
	case events.MarketCreatedEvent:
		question := e.Question
		if question == "" {
			question = "_no question_"
		}
		return &discordgo.MessageEmbed{
			Title:       "📈 **New Market** 📈",
			Description: question,
			Color:       ColorPrimary,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Commit Deadline", Value: fmt.Sprintf("<t:%d:F>", e.Deadline.Unix()), Inline: true},
				{Name: "Reveal Deadline", Value: fmt.Sprintf("<t:%d:F>", e.RevealDeadline.Unix()), Inline: true},
				{Name: "Oracle", Value: string(e.Oracle), Inline: false},
			},
			Footer: &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf("Market %s", e.MarketKey),
			},
		}

	case events.MarketResolvedEvent:
		return &discordgo.MessageEmbed{
			Title:       "🏁 **Market Resolved** 🏁",
			Description: fmt.Sprintf("Outcome: **%s**", e.Outcome),
			Color:       ColorSuccess,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Yes Pool", Value: formatUnits(e.YesPool), Inline: true},
				{Name: "No Pool", Value: formatUnits(e.NoPool), Inline: true},
				{Name: "Unrevealed", Value: formatUnits(e.UnrevealedPool), Inline: true},
			},
			Footer: &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf("Market %s", e.MarketKey),
			},
		}
	}
	return nil
}

// formatUnits formats an amount with thousands separators
func formatUnits(amount uint64) string {
	str := fmt.Sprintf("%d", amount)

	n := len(str)
	if n <= 3 {
		return str
	}

	var result strings.Builder
	for i, digit := range str {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(digit)
	}

	return result.String()
}
