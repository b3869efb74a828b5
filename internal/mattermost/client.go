// Package mattermost provides webhook client for sending notifications to Mattermost.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/maplenou/maplenou-api/internal/config"
	"github.com/maplenou/maplenou-api/pkg/logger"
)

// Client handles Mattermost webhook notifications.
type Client struct {
	webhookURL string
	channel    string
	enabled    bool
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new Mattermost client.
func NewClient(cfg *config.MattermostConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.Enabled,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Enabled reports whether messages are actually sent.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Message represents a Mattermost message payload.
type Message struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback string  `json:"fallback,omitempty"`
	Color    string  `json:"color,omitempty"`
	Pretext  string  `json:"pretext,omitempty"`
	Title    string  `json:"title,omitempty"`
	Text     string  `json:"text,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
	Footer   string  `json:"footer,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// SendMessage sends a message to Mattermost.
func (c *Client) SendMessage(ctx context.Context, msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Mattermost is disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Mattermost: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent message to Mattermost")

	return nil
}

// SendSimpleMessage sends a simple text message.
func (c *Client) SendSimpleMessage(ctx context.Context, text string) error {
	return c.SendMessage(ctx, &Message{
		Text: text,
	})
}

// VendorSales is one vendor line of the daily report.
type VendorSales struct {
	Name         string
	Accepted     int
	Rejected     int
	Pending      int
	Revenue      int64
	StockAlloue  int
	StockRestant int
}

// DailyReport is the end-of-day summary posted to the channel.
type DailyReport struct {
	Day            string
	Vendors        []VendorSales
	StreaksRevoked int
}

// SendDailySalesReport posts the sales of the day, one attachment per vendor.
func (c *Client) SendDailySalesReport(ctx context.Context, report DailyReport) error {
	var (
		accepted int
		revenue  int64
	)
	attachments := make([]Attachment, 0, len(report.Vendors))
	for _, v := range report.Vendors {
		accepted += v.Accepted
		revenue += v.Revenue

		color := "#2eb886"
		if v.StockAlloue > 0 && v.StockRestant == v.StockAlloue {
			color = "#daa038" // stock granted but nothing sold
		}

		attachments = append(attachments, Attachment{
			Fallback: fmt.Sprintf("%s: %d served, %d Ar", v.Name, v.Accepted, v.Revenue),
			Color:    color,
			Title:    v.Name,
			Fields: []Field{
				{Short: true, Title: "Servies", Value: fmt.Sprintf("%d", v.Accepted)},
				{Short: true, Title: "Annulées", Value: fmt.Sprintf("%d", v.Rejected)},
				{Short: true, Title: "En attente", Value: fmt.Sprintf("%d", v.Pending)},
				{Short: true, Title: "Chiffre d'affaires", Value: fmt.Sprintf("%d Ar", v.Revenue)},
				{Short: true, Title: "Stock", Value: fmt.Sprintf("%d / %d", v.StockRestant, v.StockAlloue)},
			},
		})
	}

	var text strings.Builder
	fmt.Fprintf(&text, "### 🥐 Ventes du %s\n\n", report.Day)
	if len(report.Vendors) == 0 {
		text.WriteString("Aucune vente ni allocation ce jour.\n")
	} else {
		fmt.Fprintf(&text, "**%d** commandes servies pour **%d Ar** chez %d vendeurs.\n", accepted, revenue, len(report.Vendors))
	}
	if report.StreaksRevoked > 0 {
		fmt.Fprintf(&text, "\n%d séries interrompues cette nuit.", report.StreaksRevoked)
	}

	return c.SendMessage(ctx, &Message{
		Username:    "Maplénou",
		Text:        text.String(),
		Attachments: attachments,
	})
}
