// Package notifications sends update outcome messages through Shoutrrr.
//
// A notifier is built from the notification flags of the root command. Every recreation attempt
// is rendered with a text template (a built-in one by name, or a custom template string) and
// queued to a background goroutine which delivers it to every configured service URL.
//
// Usage example:
//
//	notifier, err := notifications.NewNotifier(cmd)
//	if err != nil {
//		return err
//	}
//	defer notifier.Close()
//	notifier.Notify(types.UpdateEvent{Container: "web", Image: "nginx:latest", Updated: true})
package notifications
