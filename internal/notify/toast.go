// Package notify implements the alert sinks that carry Budget Guardian
// escalations, Sandbox merge failures, and evidence-ledger critical
// records out to an operator: a Windows toast notifier and a Slack
// webhook notifier.
package notify

import (
	"fmt"
	"runtime"

	"github.com/go-toast/toast"
)

// ToastNotifier surfaces a desktop toast notification on Windows hosts.
type ToastNotifier struct {
	appID        string
	dashboardURL string
}

// NewToastNotifier constructs a ToastNotifier for appID, falling back to
// a default app identity and dashboard URL when unset.
func NewToastNotifier(appID, dashboardURL string) *ToastNotifier {
	if appID == "" {
		appID = "agentkernel"
	}
	if dashboardURL == "" {
		dashboardURL = "http://localhost:8080"
	}
	return &ToastNotifier{appID: appID, dashboardURL: dashboardURL}
}

// IsSupported reports whether toast notifications can be delivered on
// the current platform.
func (t *ToastNotifier) IsSupported() bool {
	return runtime.GOOS == "windows"
}

// Notify pushes a toast with the given title/message, using the Instant
// Message sound for urgent severities.
func (t *ToastNotifier) Notify(title, message string, urgent bool) error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("toast notifications only supported on Windows")
	}

	sound := toast.Default
	if urgent {
		sound = toast.IM
	}

	notification := toast.Notification{
		AppID:   t.appID,
		Title:   title,
		Message: message,
		Audio:   sound,
		Actions: []toast.Action{
			{Type: "protocol", Label: "Open Dashboard", Arguments: t.dashboardURL},
		},
	}
	return notification.Push()
}
