package notifications

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// Errors for notifier setup and rendering.
var (
	// errSenderFailed indicates Shoutrrr rejected the configured service URLs.
	errSenderFailed = errors.New("failed to initialize shoutrrr notifications")
	// errTemplateFailed indicates a notification template could not be parsed or executed.
	errTemplateFailed = errors.New("notification template error")
)

// titleSubject is the subject line of every notification before the host is appended.
const titleSubject = "container updates"

// NewNotifier creates a notifier from the notification flags of the command.
//
// It returns a nil notifier and no error when no notification URL is configured.
func NewNotifier(c *cobra.Command) (types.Notifier, error) {
	flags := c.PersistentFlags()

	urls, _ := flags.GetStringArray("notification-url")
	if len(urls) == 0 {
		return nil, nil
	}

	tplString, _ := flags.GetString("notification-template")
	stdout, _ := flags.GetBool("notification-log-stdout")
	seconds, _ := flags.GetInt("notifications-delay")

	delay := time.Duration(0)
	if seconds > 0 {
		delay = time.Duration(seconds) * time.Second
	}

	data := GetTemplateData(c)

	logrus.WithFields(logrus.Fields{
		"services": len(urls),
		"template": tplString,
		"stdout":   stdout,
		"delay":    delay,
		"hostname": data.Host,
		"title":    data.Title,
	}).Debug("Creating notifier with configuration")

	notifier, err := createNotifier(urls, tplString, data, stdout, delay)
	if err != nil {
		return nil, err
	}

	notifier.start()

	return notifier, nil
}

// GetTitle formats the notification title for the host and optional tag.
func GetTitle(hostname string, tag string) string {
	titleBuilder := strings.Builder{}
	if tag != "" {
		titleBuilder.WriteRune('[')
		titleBuilder.WriteString(tag)
		titleBuilder.WriteString("] ")
	}

	titleBuilder.WriteString(cases.Title(language.English).String(titleSubject))

	if hostname != "" {
		titleBuilder.WriteString(" on ")
		titleBuilder.WriteString(hostname)
	}

	return titleBuilder.String()
}

// GetTemplateData populates the static notification data from flags and the host name.
func GetTemplateData(c *cobra.Command) StaticData {
	flags := c.PersistentFlags()

	hostname, _ := flags.GetString("notifications-hostname")
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	title := ""
	if skip, _ := flags.GetBool("notification-skip-title"); !skip {
		tag, _ := flags.GetString("notification-title-tag")
		title = GetTitle(hostname, tag)
	}

	return StaticData{
		Host:  hostname,
		Title: title,
	}
}
