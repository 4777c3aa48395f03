package notify

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
)

// CommandSink runs a shell command per alert, e.g.
// "notify-send 'Almanac' 'index {{.Op}} {{.Kind}}/{{.ID}} failed'".
type CommandSink struct {
	Template string
}

// Name implements Sink.
func (CommandSink) Name() string { return "command" }

// Send implements Sink.
func (s CommandSink) Send(ctx context.Context, a Alert) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", templateAlert(s.Template, a))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// templateAlert replaces placeholders in the command template with alert values.
func templateAlert(command string, a Alert) string {
	r := strings.NewReplacer(
		"{{.Kind}}", a.Kind,
		"{{.ID}}", strconv.FormatUint(uint64(a.EntityID), 10),
		"{{.Op}}", a.Op,
		"{{.Error}}", a.Error,
		"{{.Attempts}}", strconv.Itoa(a.Attempts),
	)
	return r.Replace(command)
}

// SlackSink posts alerts to a Slack incoming webhook.
type SlackSink struct {
	url string
}

// NewSlackSink returns a sink for the given webhook URL.
func NewSlackSink(webhookURL string) *SlackSink {
	return &SlackSink{url: webhookURL}
}

// Name implements Sink.
func (*SlackSink) Name() string { return "slack" }

// Send implements Sink.
func (s *SlackSink) Send(ctx context.Context, a Alert) error {
	msg := &slackapi.WebhookMessage{
		Text: summary(a),
		Attachments: []slackapi.Attachment{{
			Color:    "#d97706",
			Fallback: summary(a),
			Text:     a.Error,
			Fields: []slackapi.AttachmentField{
				{Title: "Entity", Value: fmt.Sprintf("%s/%d", a.Kind, a.EntityID), Short: true},
				{Title: "Attempts", Value: strconv.Itoa(a.Attempts), Short: true},
			},
		}},
	}
	if err := slackapi.PostWebhookContext(ctx, s.url, msg); err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	return nil
}

// webhookExecutor abstracts the discordgo.Session method we use, enabling test mocks.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSink posts alerts to a Discord webhook.
type DiscordSink struct {
	id    string
	token string
	exec  webhookExecutor
}

// NewDiscordSink parses a webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscordSink(webhookURL string) (*DiscordSink, error) {
	id, token, err := parseDiscordWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	sess, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	return &DiscordSink{id: id, token: token, exec: sess}, nil
}

// Name implements Sink.
func (*DiscordSink) Name() string { return "discord" }

// Send implements Sink.
func (s *DiscordSink) Send(ctx context.Context, a Alert) error {
	params := &discordgo.WebhookParams{
		Content: summary(a),
		Embeds: []*discordgo.MessageEmbed{{
			Title:       fmt.Sprintf("%s/%d", a.Kind, a.EntityID),
			Description: a.Error,
			Color:       0xd97706,
		}},
	}
	if _, err := s.exec.WebhookExecute(s.id, s.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: execute webhook: %w", err)
	}
	return nil
}

func parseDiscordWebhook(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("discord: parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord: webhook url %q has no /webhooks/<id>/<token> path", raw)
}

func summary(a Alert) string {
	return fmt.Sprintf("Search index %s failed for %s/%d (attempt %d)", a.Op, a.Kind, a.EntityID, a.Attempts)
}
