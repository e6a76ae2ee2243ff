// Package slack implements the Notifier port against a Slack incoming
// webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/ericfisherdev/prmonitor/internal/domain/model"
	"github.com/ericfisherdev/prmonitor/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Notifier = (*Notifier)(nil)

// maxBodyPreview bounds how much of a PR body is quoted in the attachment.
const maxBodyPreview = 200

// Notifier posts pull request change notifications to a Slack incoming
// webhook.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewNotifier creates a Notifier posting to the given webhook URL.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// message is the incoming-webhook payload shape.
type message struct {
	Text        string       `json:"text"`
	Attachments []attachment `json:"attachments"`
}

type attachment struct {
	Color     string  `json:"color"`
	Title     string  `json:"title"`
	TitleLink string  `json:"title_link"`
	Text      string  `json:"text,omitempty"`
	Fields    []field `json:"fields"`
	Footer    string  `json:"footer"`
	Timestamp int64   `json:"ts"`
}

type field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// NotifyPRChange posts one change notification.
func (n *Notifier) NotifyPRChange(ctx context.Context, pr model.PullRequest, kind model.ChangeKind) error {
	payload, err := json.Marshal(buildMessage(pr, kind, time.Now()))
	if err != nil {
		return fmt.Errorf("marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post slack notification for %s: %w", pr.Key(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post slack notification for %s: HTTP %d", pr.Key(), resp.StatusCode)
	}

	return nil
}

func buildMessage(pr model.PullRequest, kind model.ChangeKind, now time.Time) message {
	fields := []field{
		{Title: "Repository", Value: pr.RepoFullName, Short: true},
		{Title: "Author", Value: pr.Author, Short: true},
		{Title: "PR Number", Value: fmt.Sprintf("#%d", pr.Number), Short: true},
		{Title: "Status", Value: string(pr.Status), Short: true},
	}

	body := truncateBody(pr.Body)

	return message{
		Text: fmt.Sprintf("%s: %s", kindTitle(kind), pr.Title),
		Attachments: []attachment{{
			Color:     kindColor(kind),
			Title:     pr.Title,
			TitleLink: pr.URL,
			Text:      body,
			Fields:    fields,
			Footer:    "prmonitor",
			Timestamp: now.Unix(),
		}},
	}
}

// truncateBody caps the preview at maxBodyPreview bytes, backing up to the
// nearest rune boundary so a multibyte character is never cut in half.
func truncateBody(body string) string {
	if len(body) <= maxBodyPreview {
		return body
	}
	cut := maxBodyPreview
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "..."
}

func kindColor(kind model.ChangeKind) string {
	switch kind {
	case model.ChangeNew:
		return "#f1c21b"
	case model.ChangeUpdated:
		return "#0f62fe"
	case model.ChangeClosed:
		return "#8d8d8d"
	default:
		return "#0f62fe"
	}
}

func kindTitle(kind model.ChangeKind) string {
	switch kind {
	case model.ChangeNew:
		return "New pull request"
	case model.ChangeUpdated:
		return "Pull request updated"
	case model.ChangeClosed:
		return "Pull request closed"
	default:
		return "Pull request notification"
	}
}
