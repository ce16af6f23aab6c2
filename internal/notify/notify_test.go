package notify

import (
	"runtime"
	"testing"
)

func TestToastNotifyFailsOffWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("this assertion only holds on non-Windows hosts")
	}
	n := NewToastNotifier("", "")
	if n.IsSupported() {
		t.Fatal("expected IsSupported false on non-Windows host")
	}
	if err := n.Notify("title", "message", true); err == nil {
		t.Fatal("expected error pushing a toast on a non-Windows host")
	}
}

func TestSlackNotifyRequiresWebhookURL(t *testing.T) {
	n := NewSlackNotifier("", "#alerts", "")
	if err := n.Notify("title", "summary", SeverityWarning, nil); err == nil {
		t.Fatal("expected error when webhook URL is unconfigured")
	}
}

func TestSeverityColorMapping(t *testing.T) {
	cases := map[Severity]string{
		SeverityInfo:     "good",
		SeverityWarning:  "warning",
		SeverityCritical: "danger",
	}
	for sev, want := range cases {
		if got := sev.color(); got != want {
			t.Errorf("%s.color() = %q, want %q", sev, got, want)
		}
	}
}

func TestNotifyBudgetEscalationRequiresWebhook(t *testing.T) {
	n := NewSlackNotifier("", "", "")
	if err := n.NotifyBudgetEscalation("plan-stage", 5000, 900.0); err == nil {
		t.Fatal("expected error without a configured webhook")
	}
}
