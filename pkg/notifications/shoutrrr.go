package notifications

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/sirupsen/logrus"

	shoutrrrTypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/nicholas-fedor/docker-monitor/pkg/notifications/templates"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// messageQueueSize is the number of rendered messages buffered ahead of the sender.
const messageQueueSize = 16

// router sends one message to every configured service.
type router interface {
	Send(message string, params *shoutrrrTypes.Params) []error
}

// shoutrrrNotifier implements types.Notifier on top of a Shoutrrr router.
type shoutrrrNotifier struct {
	urls     []string
	router   router
	template *template.Template
	params   *shoutrrrTypes.Params
	data     StaticData
	delay    time.Duration
	messages chan string
	done     chan bool

	mu     sync.RWMutex
	closed bool
}

var _ types.Notifier = (*shoutrrrNotifier)(nil)

// GetScheme extracts the scheme part of a Shoutrrr URL.
// It returns "invalid" if no scheme is found.
func GetScheme(url string) string {
	schemeEnd := strings.Index(url, ":")
	if schemeEnd <= 0 {
		return "invalid"
	}

	return url[:schemeEnd]
}

// GetNames returns the service names derived from the URL schemes.
func (n *shoutrrrNotifier) GetNames() []string {
	names := make([]string, len(n.urls))
	for i, u := range n.urls {
		names[i] = GetScheme(u)
	}

	return names
}

// createNotifier builds a notifier for the URLs without starting its sender.
//
// An unusable template is reported and replaced by the default one. Shoutrrr logs go to stdout
// when requested and to the logrus trace level otherwise.
func createNotifier(
	urls []string,
	tplString string,
	data StaticData,
	stdout bool,
	delay time.Duration,
) (*shoutrrrNotifier, error) {
	tpl, err := getShoutrrrTemplate(tplString)
	if err != nil {
		logrus.WithError(err).Error("Could not use configured notification template, using default template")
	}

	var logger shoutrrrTypes.StdLogger
	if stdout {
		logger = log.New(os.Stdout, ``, 0)
	} else {
		logger = log.New(logrus.StandardLogger().WriterLevel(logrus.TraceLevel), "Shoutrrr: ", 0)
	}

	sender, err := shoutrrr.NewSender(logger, urls...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errSenderFailed, err)
	}

	params := &shoutrrrTypes.Params{}
	if data.Title != "" {
		params.SetTitle(data.Title)
	}

	return &shoutrrrNotifier{
		urls:     urls,
		router:   sender,
		template: tpl,
		params:   params,
		data:     data,
		delay:    delay,
		messages: make(chan string, messageQueueSize),
		done:     make(chan bool),
	}, nil
}

// start launches the goroutine delivering queued messages.
func (n *shoutrrrNotifier) start() {
	go n.sendNotifications()
}

// sendNotifications delivers queued messages until the queue is closed.
func (n *shoutrrrNotifier) sendNotifications() {
	for msg := range n.messages {
		time.Sleep(n.delay)

		errs := n.router.Send(msg, n.params)
		for i, err := range errs {
			if err == nil {
				continue
			}

			service := "unknown"
			if i < len(n.urls) {
				service = GetScheme(n.urls[i])
			}

			logrus.WithFields(logrus.Fields{
				"service": service,
				"index":   i,
			}).WithError(err).Error("Failed to send notification")
		}
	}

	n.done <- true
}

// buildMessage renders the template for one event.
func (n *shoutrrrNotifier) buildMessage(event types.UpdateEvent) (string, error) {
	var body bytes.Buffer

	if err := n.template.Execute(&body, Data{StaticData: n.data, Event: event}); err != nil {
		return "", fmt.Errorf("%w: %w", errTemplateFailed, err)
	}

	return strings.TrimSpace(body.String()), nil
}

// Notify renders the event and queues it for delivery. Events after Close are dropped.
func (n *shoutrrrNotifier) Notify(event types.UpdateEvent) {
	clog := logrus.WithFields(logrus.Fields{
		"container": event.Container,
		"image":     event.Image,
	})

	msg, err := n.buildMessage(event)
	if err != nil {
		clog.WithError(err).Error("Notification template error")

		return
	}

	if msg == "" {
		clog.Debug("Skipping notification due to empty message")

		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		clog.Debug("Dropping notification, notifier is closed")

		return
	}

	n.messages <- msg
}

// Close stops accepting events and waits until every queued message is sent.
func (n *shoutrrrNotifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()

		return
	}

	n.closed = true
	close(n.messages)
	n.mu.Unlock()

	logrus.Debug("Waiting for the notification goroutine to finish")

	<-n.done
}

// getShoutrrrTemplate resolves a built-in template name or parses a custom template string.
// An empty string selects the default template.
func getShoutrrrTemplate(tplString string) (*template.Template, error) {
	tplBase := template.New("").Funcs(templates.Funcs)

	if builtin, found := commonTemplates[tplString]; found {
		logrus.WithField("template", tplString).Debug("Using common template")

		tplString = builtin
	}

	if tplString != "" {
		tpl, err := tplBase.Parse(tplString)
		if err == nil {
			return tpl, nil
		}

		return template.Must(template.New("").Funcs(templates.Funcs).Parse(commonTemplates["default"])),
			fmt.Errorf("%w: %w", errTemplateFailed, err)
	}

	return template.Must(tplBase.Parse(commonTemplates["default"])), nil
}
