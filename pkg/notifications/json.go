package notifications

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var _ json.Marshaler = &Data{}

// Errors for JSON marshaling.
var (
	// errMarshalFailed indicates a failure to marshal notification data to JSON.
	errMarshalFailed = errors.New("failed to marshal notification data")
)

// jsonMap is a type alias for a JSON-compatible map.
type jsonMap = map[string]any

// MarshalJSON implements json.Marshaler for Data.
//
// The event is flattened next to the static data. The error key is only present for failed
// attempts.
func (d Data) MarshalJSON() ([]byte, error) {
	data := jsonMap{
		"title":     d.Title,
		"host":      d.Host,
		"container": d.Event.Container,
		"image":     d.Event.Image,
		"updated":   d.Event.Updated,
	}

	if d.Event.Err != nil {
		data["error"] = d.Event.Err.Error()
	}

	bytes, err := json.Marshal(data)
	if err != nil {
		logrus.WithError(err).
			WithField("container", d.Event.Container).
			Error("Failed to marshal notification data to JSON")

		return nil, fmt.Errorf("%w: %w", errMarshalFailed, err)
	}

	return bytes, nil
}
