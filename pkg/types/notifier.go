package types

// UpdateEvent describes the outcome of one container recreation attempt.
type UpdateEvent struct {
	Container string
	Image     string
	Updated   bool
	Err       error
}

// Notifier defines the common interface for notification services.
type Notifier interface {
	Notify(event UpdateEvent) // Send a message for the event.
	GetNames() []string       // Service names.
	Close()                   // Stop and flush notifications.
}
