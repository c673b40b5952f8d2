package update

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/docker-monitor/internal/actions"
	"github.com/nicholas-fedor/docker-monitor/pkg/api"
)

// Path is the endpoint path of the update handler.
const Path = "/v1/update"

const (
	messageUpToDate  = "already up to date"
	messageRecreated = "container recreated with latest image"
	selfUpdateDetail = "this service cannot update its own container through the API, update it with Docker directly"
)

const maxRequestBodyLen = 1 << 16

// Updater recreates a container with the latest image of its reference.
type Updater interface {
	Update(ctx context.Context, name string) (actions.UpdateResult, error)
}

// Request is the body of an update request.
type Request struct {
	Name string `json:"name"`
}

// Response is the body of a successful update.
type Response struct {
	Message  string   `json:"message"`
	Updated  bool     `json:"updated"`
	Warnings []string `json:"warnings,omitempty"`
}

// Handler triggers container updates via HTTP.
type Handler struct {
	updater Updater
	locks   sync.Map // Container name to a lock channel of capacity one.
}

// New creates a Handler.
func New(updater Updater) *Handler {
	return &Handler{updater: updater}
}

// Handle recreates the container named in the request body.
func (handle *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	var request Request

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyLen)).Decode(&request)

	name := strings.TrimSpace(request.Name)
	if err != nil || name == "" {
		logrus.WithError(err).Debug("Rejected update request without a container name")
		api.WriteProblem(w, http.StatusBadRequest, api.CodeMissingName, "missing 'name'")

		return
	}

	fields := logrus.Fields{"container": name}

	logrus.WithFields(fields).Info("Received HTTP API update request")

	lock := handle.lockFor(name)

	select {
	case chanValue := <-lock:
		defer func() { lock <- chanValue }()
	default:
		logrus.WithFields(fields).Debug("Skipped update, another update of this container is in progress")
		w.Header().Set("Retry-After", "30")
		api.WriteProblem(w, http.StatusConflict, api.CodeUpdateInProgress, "")

		return
	}

	result, err := handle.updater.Update(context.WithoutCancel(r.Context()), name)
	if err != nil {
		writeUpdateError(w, fields, err)

		return
	}

	response := Response{Message: messageUpToDate, Updated: result.Updated}
	if result.Updated {
		response.Message = messageRecreated
	}

	response.Warnings = warningMessages(result.Warnings)

	api.WriteJSON(w, http.StatusOK, response)
}

func (handle *Handler) lockFor(name string) chan bool {
	if lock, found := handle.locks.Load(name); found {
		return lock.(chan bool)
	}

	lock := make(chan bool, 1)
	lock <- true

	actual, _ := handle.locks.LoadOrStore(name, lock)

	return actual.(chan bool)
}

func writeUpdateError(w http.ResponseWriter, fields logrus.Fields, err error) {
	status, code, detail := http.StatusInternalServerError, api.CodeRuntimeError, err.Error()

	switch {
	case errors.Is(err, actions.ErrSelfUpdate):
		status, code, detail = http.StatusConflict, api.CodeSelfUpdateBlocked, selfUpdateDetail
	case errors.Is(err, actions.ErrContainerNotFound):
		status, code = http.StatusNotFound, api.CodeNotFound
	case errors.Is(err, actions.ErrNoImageReference):
		status, code = http.StatusBadRequest, api.CodeNoImageReference
	case errors.Is(err, actions.ErrPullFailed) && cerrdefs.IsNotFound(err):
		status, code = http.StatusNotFound, api.CodeImageNotFound
	}

	logrus.WithFields(fields).WithError(err).WithField("code", code).Info("Update request failed")

	api.WriteProblem(w, status, code, detail)
}

func warningMessages(warnings error) []string {
	if warnings == nil {
		return nil
	}

	var merr *multierror.Error
	if !errors.As(warnings, &merr) {
		return []string{warnings.Error()}
	}

	messages := make([]string, 0, len(merr.Errors))
	for _, warning := range merr.Errors {
		messages = append(messages, warning.Error())
	}

	return messages
}
