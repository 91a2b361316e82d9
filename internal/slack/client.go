// Package slack sends watering-event notifications to a Slack channel.
package slack

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
)

// Client wraps the slack API client. A nil *Client is valid and silently
// drops every message, so callers never need to check whether notifications
// are configured.
type Client struct {
	api       *slack.Client
	channelID string

	mu           sync.Mutex
	backoffUntil time.Time
}

// NewClient creates a new notifier, or nil when Slack is not configured.
func NewClient(token, channelID string) *Client {
	if token == "" || channelID == "" {
		log.Println("Slack token or channel ID is not configured. Slack notifications will be disabled.")
		return nil
	}
	return &Client{
		api:       slack.New(token),
		channelID: channelID,
	}
}

// NotifyWateringStarted announces a pump activation.
func (c *Client) NotifyWateringStarted(plantName, mode string) {
	c.send(fmt.Sprintf(":potted_plant: Watering started for *%s* (%s)", plantName, mode))
}

// NotifyWateringCompleted announces a finished activation.
func (c *Client) NotifyWateringCompleted(plantName string, durationSec int) {
	c.send(fmt.Sprintf(":white_check_mark: Watering completed for *%s* (%ds)", plantName, durationSec))
}

// NotifyFailure announces a pump command or store failure.
func (c *Client) NotifyFailure(context string, err error) {
	c.send(fmt.Sprintf(":rotating_light: %s: %v", context, err))
}

func (c *Client) send(message string) {
	if c == nil || c.api == nil {
		return
	}

	c.mu.Lock()
	if time.Now().Before(c.backoffUntil) {
		c.mu.Unlock()
		log.Printf("Skipping Slack message due to rate limit backoff")
		return
	}
	c.mu.Unlock()

	_, _, err := c.api.PostMessage(c.channelID, slack.MsgOptionText(message, false))
	if err != nil {
		if isRateLimitError(err) {
			c.handleRateLimit(err)
		} else {
			log.Printf("Failed to send Slack message: %v", err)
		}
	}
}

// isRateLimitError checks if the error is related to rate limiting.
func isRateLimitError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate_limited") ||
		strings.Contains(errStr, "message_limit_exceeded") ||
		strings.Contains(errStr, "too_many_requests")
}

// handleRateLimit suppresses messages for a while after a rate limit error.
func (c *Client) handleRateLimit(err error) {
	backoff := 1 * time.Minute
	if strings.Contains(strings.ToLower(err.Error()), "message_limit_exceeded") {
		backoff = 5 * time.Minute
	}

	c.mu.Lock()
	c.backoffUntil = time.Now().Add(backoff)
	c.mu.Unlock()

	log.Printf("Slack rate limit detected (%v). Messages will be suppressed for %v", err, backoff)
}

// IsRateLimited reports whether messages are currently suppressed.
func (c *Client) IsRateLimited() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Before(c.backoffUntil)
}
