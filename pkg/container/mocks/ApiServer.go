// Package mocks provides ghttp handlers that impersonate the Docker Engine API.
package mocks

import (
	"encoding/json"
	"net/http"

	"github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	dockerContainer "github.com/docker/docker/api/types/container"
	dockerImage "github.com/docker/docker/api/types/image"
	dockerNetwork "github.com/docker/docker/api/types/network"
)

// FoundStatus selects between a found and a missing response.
type FoundStatus bool

const (
	Found   FoundStatus = true
	Missing FoundStatus = false
)

// errorMessage mirrors the engine's error body.
type errorMessage struct {
	Message string `json:"message"`
}

// Mock response fixture for no-content status (204).
var noContentStatusResponse = ghttp.RespondWith(http.StatusNoContent, nil)

// containerNotFoundResponse includes a standard "No such container" message with the ID.
func containerNotFoundResponse(containerID string) http.HandlerFunc {
	return ghttp.RespondWithJSONEncoded(http.StatusNotFound, errorMessage{Message: "No such container: " + containerID})
}

func foundOr(found FoundStatus, containerID string, response http.HandlerFunc) http.HandlerFunc {
	if !found {
		return containerNotFoundResponse(containerID)
	}

	return response
}

// ListContainersHandler serves the container summaries for an All=true listing.
func ListContainersHandler(summaries ...dockerContainer.Summary) http.HandlerFunc {
	if summaries == nil {
		summaries = []dockerContainer.Summary{}
	}

	return ghttp.CombineHandlers(
		ghttp.VerifyRequest(http.MethodGet, gomega.HaveSuffix("/containers/json"), "all=1"),
		ghttp.RespondWithJSONEncoded(http.StatusOK, summaries),
	)
}

// GetContainerHandler returns a 404 if containerInfo is nil; otherwise, serves the provided info.
func GetContainerHandler(containerID string, containerInfo *dockerContainer.InspectResponse) http.HandlerFunc {
	responseHandler := containerNotFoundResponse(containerID)
	if containerInfo != nil {
		responseHandler = ghttp.RespondWithJSONEncoded(http.StatusOK, containerInfo)
	}

	return ghttp.CombineHandlers(
		ghttp.VerifyRequest(http.MethodGet, gomega.HaveSuffix("/containers/%s/json", containerID)),
		responseHandler,
	)
}

// GetImageHandler serves the provided image info, or a 404 for imageID when it is nil.
func GetImageHandler(imageID string, imageInfo *dockerImage.InspectResponse) http.HandlerFunc {
	responseHandler := ghttp.RespondWithJSONEncoded(http.StatusNotFound, errorMessage{Message: "No such image: " + imageID})
	if imageInfo != nil {
		responseHandler = ghttp.RespondWithJSONEncoded(http.StatusOK, imageInfo)
	}

	return ghttp.CombineHandlers(
		ghttp.VerifyRequest(http.MethodGet, gomega.HaveSuffix("/images/%s/json", imageID)),
		responseHandler,
	)
}

// PullImageHandler verifies the pulled reference and streams a short progress body.
func PullImageHandler(fromImage, tag string, status int) http.HandlerFunc {
	body := `{"status":"Pulling from ` + fromImage + `"}` + "\n" + `{"status":"Digest: sha256:0"}` + "\n"
	if status != http.StatusOK {
		body = `{"message":"manifest for ` + fromImage + `:` + tag + ` not found"}`
	}

	return ghttp.CombineHandlers(
		ghttp.VerifyRequest(http.MethodPost, gomega.HaveSuffix("/images/create"), "fromImage="+fromImage+"&tag="+tag),
		ghttp.RespondWith(status, body),
	)
}

// PullImageStreamErrorHandler answers a pull with 200 and a progress stream that ends in an
// error message, as the engine does when a layer fails after the pull started.
func PullImageStreamErrorHandler(fromImage, tag, message string) http.HandlerFunc {
	body := `{"status":"Pulling from ` + fromImage + `"}` + "\n" +
		`{"errorDetail":{"message":"` + message + `"},"error":"` + message + `"}` + "\n"

	return ghttp.CombineHandlers(
		ghttp.VerifyRequest(http.MethodPost, gomega.HaveSuffix("/images/create"), "fromImage="+fromImage+"&tag="+tag),
		ghttp.RespondWith(http.StatusOK, body),
	)
}

// StopContainerHandler verifies the stop timeout and returns 204, or 404 when missing.
func StopContainerHandler(containerID string, timeoutSeconds string, found FoundStatus) http.HandlerFunc {
	return ghttp.CombineHandlers(
		ghttp.VerifyRequest(http.MethodPost, gomega.HaveSuffix("/containers/%s/stop", containerID), "t="+timeoutSeconds),
		foundOr(found, containerID, noContentStatusResponse),
	)
}

// RemoveContainerHandler returns 204 if found, 404 if not.
func RemoveContainerHandler(containerID string, found FoundStatus) http.HandlerFunc {
	return ghttp.CombineHandlers(
		ghttp.VerifyRequest(http.MethodDelete, gomega.HaveSuffix("/containers/%s", containerID)),
		foundOr(found, containerID, noContentStatusResponse),
	)
}

// CreateContainerHandler verifies the container name and passes the decoded create body to
// inspect before answering with newID.
func CreateContainerHandler(name, newID string, inspect func(dockerContainer.CreateRequest)) http.HandlerFunc {
	return ghttp.CombineHandlers(
		ghttp.VerifyRequest(http.MethodPost, gomega.HaveSuffix("/containers/create"), "name="+name),
		func(_ http.ResponseWriter, r *http.Request) {
			var request dockerContainer.CreateRequest
			gomega.Expect(json.NewDecoder(r.Body).Decode(&request)).To(gomega.Succeed())

			if inspect != nil {
				inspect(request)
			}
		},
		ghttp.RespondWithJSONEncoded(http.StatusCreated, dockerContainer.CreateResponse{ID: newID, Warnings: []string{}}),
	)
}

// ConnectNetworkHandler passes the decoded connect body to inspect and returns 200.
func ConnectNetworkHandler(network string, inspect func(dockerNetwork.ConnectOptions)) http.HandlerFunc {
	return ghttp.CombineHandlers(
		ghttp.VerifyRequest(http.MethodPost, gomega.HaveSuffix("/networks/%s/connect", network)),
		func(_ http.ResponseWriter, r *http.Request) {
			var request dockerNetwork.ConnectOptions
			gomega.Expect(json.NewDecoder(r.Body).Decode(&request)).To(gomega.Succeed())

			if inspect != nil {
				inspect(request)
			}
		},
		ghttp.RespondWith(http.StatusOK, nil),
	)
}

// StartContainerHandler returns 204 if found, 404 if not.
func StartContainerHandler(containerID string, found FoundStatus) http.HandlerFunc {
	return ghttp.CombineHandlers(
		ghttp.VerifyRequest(http.MethodPost, gomega.HaveSuffix("/containers/%s/start", containerID)),
		foundOr(found, containerID, noContentStatusResponse),
	)
}

// StatsHandler serves a raw one-shot stats body.
func StatsHandler(containerID string, body string) http.HandlerFunc {
	return ghttp.CombineHandlers(
		ghttp.VerifyRequest(http.MethodGet, gomega.HaveSuffix("/containers/%s/stats", containerID), "one-shot=1&stream=0"),
		ghttp.RespondWith(http.StatusOK, body),
	)
}
