package ui

import (
	"fmt"
	"os/exec"
	"runtime"

	"igharvest/pkg/config"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	cmd := exec.Command("notify-send", title, message)
	return cmd.Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("igharvest").Show($toast)
	`, title, message)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Run()
}

func platformSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	default:
		return nil
	}
}

// Notifier prints run events to the console and, for the desktop type,
// raises a desktop notification. It satisfies guard.Alerter.
type Notifier struct {
	sender NotificationSender
	cfg    config.NotificationConfig
}

// NewNotifier creates a desktop Notifier with every event enabled
func NewNotifier() *Notifier {
	return &Notifier{
		sender: platformSender(),
		cfg: config.NotificationConfig{
			Enabled:          true,
			OnComplete:       true,
			OnError:          true,
			OnViolation:      true,
			NotificationType: "desktop",
		},
	}
}

// NewNotifierFor creates a Notifier honoring the notifications config
func NewNotifierFor(cfg config.NotificationConfig) *Notifier {
	n := &Notifier{cfg: cfg}
	if cfg.Enabled && cfg.NotificationType == "desktop" {
		n.sender = platformSender()
	}
	return n
}

func (n *Notifier) silent() bool {
	return !n.cfg.Enabled || n.cfg.NotificationType == "none"
}

func (n *Notifier) send(title, message string) {
	if n.sender != nil {
		// Ignore errors as notifications are not critical
		_ = n.sender.Send(title, message)
	}
}

// SendNotification sends an informational notification
func (n *Notifier) SendNotification(title, message string) {
	if n.silent() {
		return
	}
	fmt.Printf("\n%s: %s\n", Cyan(title), Yellow(message))
	n.send(title, message)
}

// SendError sends an error notification. Guard violations arrive here.
func (n *Notifier) SendError(title, message string) {
	if n.silent() || !(n.cfg.OnError || n.cfg.OnViolation) {
		return
	}
	fmt.Printf("\n%s: %s\n", Red(title), Red(message))
	n.send(title, message)
}

// SendSuccess sends a completion notification
func (n *Notifier) SendSuccess(title, message string) {
	if n.silent() || !n.cfg.OnComplete {
		return
	}
	fmt.Printf("\n%s: %s\n", Green(title), Green(message))
	n.send(title, message)
}
