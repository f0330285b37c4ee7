package notifications

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/trendzee/live-trends/internal/models"
)

// Service posts run summaries to a Teams incoming webhook
type Service struct {
	webhookURL string
	client     *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service. An empty webhookURL
// turns SendRunReport into a no-op.
func NewService(webhookURL string) *Service {
	return &Service{
		webhookURL: webhookURL,
		client:     resty.New().SetTimeout(30 * time.Second),
	}
}

// SendRunReport posts a summary of report to the webhook
func (s *Service) SendRunReport(ctx context.Context, report *models.RunReport) error {
	if s.webhookURL == "" {
		return nil
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(BuildTeamsMessage(report)).
		Post(s.webhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	logrus.WithField("run_id", report.RunID).Info("Sent run summary to Teams")
	return nil
}

// BuildTeamsMessage renders a run report as a MessageCard
func BuildTeamsMessage(report *models.RunReport) *TeamsMessage {
	failed := 0
	for _, o := range report.Outcomes {
		if o.Candidates == 0 && o.Error != "" {
			failed++
		}
	}

	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		Title:      "Live Trends Fetch Report",
		Text:       fmt.Sprintf("Created %d and updated %d trends from %d sources", report.Created, report.Updated, len(report.Sources)),
		ThemeColor: "0078D4",
	}
	if failed > 0 {
		message.ThemeColor = "D13438"
	}

	facts := []TeamsFact{
		{Name: "Run", Value: report.RunID},
		{Name: "Started", Value: report.StartedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
		{Name: "Duration", Value: report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond).String()},
		{Name: "Store Size", Value: fmt.Sprintf("%d", report.StoreSize)},
	}
	if report.Cleared > 0 {
		facts = append(facts, TeamsFact{Name: "Cleared", Value: fmt.Sprintf("%d", report.Cleared)})
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts:         facts,
		Markdown:      true,
	})

	if len(report.Outcomes) > 0 {
		var lines []string
		for _, o := range report.Outcomes {
			counts := report.PerSource[o.Source]
			line := fmt.Sprintf("**%s**: %d fetched, %d created, %d updated", o.Source, o.Candidates, counts.Created, counts.Updated)
			if o.Fallback {
				line += " (feed fallback)"
			}
			if o.ErrorKind != "" {
				line += fmt.Sprintf(" [%s]", strings.ReplaceAll(o.ErrorKind, "_", " "))
			}
			lines = append(lines, line)
		}
		sort.Strings(lines)

		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Sources",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}

	return message
}
