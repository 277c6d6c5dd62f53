package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dlmm-notifier/internal/domain"
)

// Embed defaults.
const (
	DiscordColor     = 3447003
	DiscordThumbnail = "https://pbs.twimg.com/profile_images/1623689233813864450/XDk-DpAP_400x400.jpg"
	PoolURLPrefix    = "https://app.meteora.ag/dlmm/"
)

// DiscordNotifier posts an embed to a Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// DiscordOption configures DiscordNotifier.
type DiscordOption func(*DiscordNotifier)

// WithDiscordHTTPClient sets a custom http.Client.
func WithDiscordHTTPClient(client *http.Client) DiscordOption {
	return func(n *DiscordNotifier) {
		n.client = client
	}
}

// NewDiscordNotifier creates a notifier for webhookURL.
func NewDiscordNotifier(webhookURL string, opts ...DiscordOption) *DiscordNotifier {
	n := &DiscordNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var _ Notifier = (*DiscordNotifier)(nil)

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Fields      []discordField   `json:"fields"`
	URL         string           `json:"url"`
	Color       int              `json:"color"`
	Timestamp   string           `json:"timestamp"`
	Thumbnail   discordThumbnail `json:"thumbnail"`
}

type discordField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type discordThumbnail struct {
	URL string `json:"url"`
}

// Name implements Notifier.
func (n *DiscordNotifier) Name() string { return "discord" }

// Notify posts the embed for pc. Any non-2xx status is an error.
func (n *DiscordNotifier) Notify(ctx context.Context, pc *domain.PoolCreation) error {
	body, err := json.Marshal(discordPayload{Embeds: []discordEmbed{n.embed(pc)}})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send webhook: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (n *DiscordNotifier) embed(pc *domain.PoolCreation) discordEmbed {
	name := pc.TokenXName
	if name == "" {
		name = domain.UnknownLabel
	}
	symbol := pc.Symbol
	if symbol == "" {
		symbol = domain.UnknownLabel
	}

	tokenY := pc.TokenY
	if pc.QuoteFallback && pc.QuoteMint != "" {
		tokenY = fmt.Sprintf("%s (unrecognised quote mint %s)", pc.TokenY, pc.QuoteMint)
	}

	return discordEmbed{
		Title:       fmt.Sprintf("New %s-%s DLMM created", symbol, pc.TokenY),
		Description: "tokenX: " + pc.TokenX,
		Fields: []discordField{
			{Name: "tokenX", Value: name},
			{Name: "tokenY", Value: tokenY},
		},
		URL:       PoolURLPrefix + pc.LbPair,
		Color:     DiscordColor,
		Timestamp: n.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Thumbnail: discordThumbnail{URL: DiscordThumbnail},
	}
}
