package notify

import (
	"fmt"

	"github.com/slack-go/slack"
)

// Severity governs a Slack notification's color bar.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) color() string {
	switch s {
	case SeverityCritical:
		return "danger"
	case SeverityWarning:
		return "warning"
	default:
		return "good"
	}
}

// SlackNotifier posts formatted alerts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
}

// NewSlackNotifier constructs a SlackNotifier bound to a webhook URL.
func NewSlackNotifier(webhookURL, channel, username string) *SlackNotifier {
	if username == "" {
		username = "agentkernel"
	}
	return &SlackNotifier{webhookURL: webhookURL, channel: channel, username: username}
}

// Field is one labeled value attached to a Slack alert.
type Field struct {
	Title string
	Value string
	Short bool
}

// Notify posts a single-attachment alert to Slack.
func (n *SlackNotifier) Notify(title, summary string, severity Severity, fields []Field) error {
	if n.webhookURL == "" {
		return fmt.Errorf("slack webhook URL not configured")
	}

	attachmentFields := make([]slack.AttachmentField, 0, len(fields))
	for _, f := range fields {
		attachmentFields = append(attachmentFields, slack.AttachmentField{
			Title: f.Title,
			Value: f.Value,
			Short: f.Short,
		})
	}

	msg := &slack.WebhookMessage{
		Channel:  n.channel,
		Username: n.username,
		Text:     summary,
		Attachments: []slack.Attachment{
			{
				Color:  severity.color(),
				Title:  title,
				Fields: attachmentFields,
			},
		},
	}

	return slack.PostWebhook(n.webhookURL, msg)
}

// NotifyBudgetEscalation formats a Budget Guardian escalation decision.
func (n *SlackNotifier) NotifyBudgetEscalation(stage string, tokens int64, avgLatencyMs float64) error {
	return n.Notify(
		"Budget Guardian Escalation",
		fmt.Sprintf("Stage %q exceeded budget and has no sensitive tasks left to drop", stage),
		SeverityCritical,
		[]Field{
			{Title: "Stage", Value: stage, Short: true},
			{Title: "Tokens", Value: fmt.Sprintf("%d", tokens), Short: true},
			{Title: "Avg latency (ms)", Value: fmt.Sprintf("%.1f", avgLatencyMs), Short: true},
		},
	)
}

// NotifySandboxMergeFailure formats a Sandbox Manager merge-precondition
// failure.
func (n *SlackNotifier) NotifySandboxMergeFailure(reason string, lanes []string) error {
	return n.Notify(
		"Sandbox Merge Failed",
		reason,
		SeverityWarning,
		[]Field{
			{Title: "Lanes", Value: fmt.Sprintf("%v", lanes), Short: false},
		},
	)
}

// NotifyEvidenceCritical formats a critical evidence-ledger record (e.g.
// a failed signer or a tampered replay).
func (n *SlackNotifier) NotifyEvidenceCritical(subject, detail string) error {
	return n.Notify(
		"Evidence Ledger Critical Record",
		detail,
		SeverityCritical,
		[]Field{
			{Title: "Subject", Value: subject, Short: true},
		},
	)
}
