package container

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	cerrdefs "github.com/containerd/errdefs"
	dockerContainer "github.com/docker/docker/api/types/container"
	dockerImage "github.com/docker/docker/api/types/image"
	dockerNetwork "github.com/docker/docker/api/types/network"
	dockerClient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/nicholas-fedor/docker-monitor/pkg/container/mocks"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

// newMockClient starts a fake engine and returns a client talking to it.
func newMockClient() (*ghttp.Server, types.Client) {
	server := ghttp.NewServer()

	docker, err := dockerClient.NewClientWithOpts(
		dockerClient.WithHost(server.URL()),
		dockerClient.WithHTTPClient(server.HTTPTestServer.Client()),
	)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	return server, NewClientWithAPI(docker, ClientOptions{})
}

var _ = ginkgo.Describe("the client", func() {
	var (
		mockServer *ghttp.Server
		cli        types.Client
		ctx        context.Context
	)

	ginkgo.BeforeEach(func() {
		ginkgo.GinkgoT().Setenv("DOCKER_CONFIG", ginkgo.GinkgoT().TempDir())
		ginkgo.GinkgoT().Setenv("REPO_USER", "")
		ginkgo.GinkgoT().Setenv("REPO_PASS", "")

		mockServer, cli = newMockClient()
		ctx = context.Background()
	})

	ginkgo.AfterEach(func() {
		mockServer.Close()
	})

	ginkgo.Describe("NewClientWithAPI", func() {
		ginkgo.It("should apply default timeouts", func() {
			wrapped, ok := cli.(*client)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(wrapped.PullTimeout).To(gomega.Equal(DefaultPullTimeout))
			gomega.Expect(wrapped.RuntimeTimeout).To(gomega.Equal(DefaultRuntimeTimeout))
		})
	})

	ginkgo.Describe("ListAllContainers", func() {
		ginkgo.It("should skip containers removed during the listing", func() {
			web := inspectResponse("web-id", "web", "sha256:web", "")
			mockServer.AppendHandlers(
				mocks.ListContainersHandler(
					dockerContainer.Summary{ID: "gone-id"},
					dockerContainer.Summary{ID: "web-id"},
				),
				mocks.GetContainerHandler("gone-id", nil),
				mocks.GetContainerHandler("web-id", web),
				mocks.GetImageHandler("sha256:web", &dockerImage.InspectResponse{
					ID:       "sha256:web",
					RepoTags: []string{"ghcr.io/org/web:latest"},
				}),
			)

			containers, err := cli.ListAllContainers(ctx)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(containers).To(gomega.HaveLen(1))
			gomega.Expect(containers[0].Name()).To(gomega.Equal("web"))
			gomega.Expect(containers[0].ImageTags()).To(gomega.ConsistOf("ghcr.io/org/web:latest"))
		})

		ginkgo.It("should return an empty list for an idle host", func() {
			mockServer.AppendHandlers(mocks.ListContainersHandler())

			containers, err := cli.ListAllContainers(ctx)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(containers).To(gomega.BeEmpty())
		})

		ginkgo.It("should fail when the daemon rejects the listing", func() {
			mockServer.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, `{"message":"boom"}`))

			_, err := cli.ListAllContainers(ctx)
			gomega.Expect(err).To(gomega.MatchError(errListContainersFailed))
		})
	})

	ginkgo.Describe("GetContainer", func() {
		ginkgo.It("should return the container without image info when the image is missing", func() {
			mockServer.AppendHandlers(
				mocks.GetContainerHandler("web", inspectResponse("web-id", "web", "sha256:web", "")),
				mocks.GetImageHandler("sha256:web", nil),
			)

			c, err := cli.GetContainer(ctx, "web")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(c.ID()).To(gomega.Equal(types.ContainerID("web-id")))
			gomega.Expect(c.HasImageInfo()).To(gomega.BeFalse())
		})

		ginkgo.It("should report missing containers as not found", func() {
			mockServer.AppendHandlers(mocks.GetContainerHandler("ghost", nil))

			_, err := cli.GetContainer(ctx, "ghost")
			gomega.Expect(err).To(gomega.MatchError(errInspectContainerFailed))
			gomega.Expect(cerrdefs.IsNotFound(err)).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("PullImage", func() {
		ginkgo.It("should pull the reference and read the progress stream", func() {
			mockServer.AppendHandlers(mocks.PullImageHandler("ghcr.io/org/app", "v1", http.StatusOK))

			gomega.Expect(cli.PullImage(ctx, "ghcr.io/org/app:v1")).To(gomega.Succeed())
			gomega.Expect(mockServer.ReceivedRequests()).To(gomega.HaveLen(1))
		})

		ginkgo.It("should default to the latest tag on Docker Hub", func() {
			mockServer.AppendHandlers(mocks.PullImageHandler("docker.io/library/nginx", "latest", http.StatusOK))

			gomega.Expect(cli.PullImage(ctx, "nginx")).To(gomega.Succeed())
		})

		ginkgo.It("should fail on an error reported inside the progress stream", func() {
			mockServer.AppendHandlers(mocks.PullImageStreamErrorHandler(
				"ghcr.io/org/app", "v1", "failed to register layer: no space left on device"))

			err := cli.PullImage(ctx, "ghcr.io/org/app:v1")
			gomega.Expect(err).To(gomega.MatchError(errReadPullResponseFailed))
			gomega.Expect(err.Error()).To(gomega.ContainSubstring("no space left on device"))

			var streamErr *jsonmessage.JSONError
			gomega.Expect(errors.As(err, &streamErr)).To(gomega.BeTrue())
		})

		ginkgo.It("should keep not found errors detectable", func() {
			mockServer.AppendHandlers(mocks.PullImageHandler("ghcr.io/org/app", "v9", http.StatusNotFound))

			err := cli.PullImage(ctx, "ghcr.io/org/app:v9")
			gomega.Expect(err).To(gomega.MatchError(errPullImageFailed))
			gomega.Expect(cerrdefs.IsNotFound(err)).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("StopContainer and RemoveContainer", func() {
		var web types.Container

		ginkgo.BeforeEach(func() {
			web = NewContainer(inspectResponse("web-id", "web", "sha256:web", ""), nil)
		})

		ginkgo.It("should pass the grace period in seconds", func() {
			mockServer.AppendHandlers(
				mocks.StopContainerHandler("web-id", "10", mocks.Found),
				mocks.RemoveContainerHandler("web-id", mocks.Found),
			)

			gomega.Expect(cli.StopContainer(ctx, web, 10*time.Second)).To(gomega.Succeed())
			gomega.Expect(cli.RemoveContainer(ctx, web)).To(gomega.Succeed())
		})

		ginkgo.It("should wrap failures", func() {
			mockServer.AppendHandlers(
				mocks.StopContainerHandler("web-id", "10", mocks.Missing),
				mocks.RemoveContainerHandler("web-id", mocks.Missing),
			)

			gomega.Expect(cli.StopContainer(ctx, web, 10*time.Second)).To(gomega.MatchError(errStopContainerFailed))
			gomega.Expect(cli.RemoveContainer(ctx, web)).To(gomega.MatchError(errRemoveContainerFailed))
		})
	})

	ginkgo.Describe("CreateContainer", func() {
		ginkgo.It("should create the container from the snapshot on its primary network", func() {
			snapshot := types.ContainerSnapshot{
				Name:          "web",
				Image:         "ghcr.io/org/web@sha256:aaa",
				Env:           []string{"A=1"},
				Labels:        map[string]string{"app": "web"},
				Binds:         []string{"/data:/data"},
				RestartPolicy: "always",
				NetworkMode:   "netA",
				Networks: map[string]types.NetworkAttachment{
					"netA": {Aliases: []string{"x"}, IPv4Address: "10.0.0.5"},
					"netB": {Aliases: []string{"y"}},
				},
			}

			var received dockerContainer.CreateRequest

			mockServer.AppendHandlers(mocks.CreateContainerHandler("web", "new-id", func(request dockerContainer.CreateRequest) {
				received = request
			}))

			id, err := cli.CreateContainer(ctx, snapshot, "ghcr.io/org/web:latest")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(id).To(gomega.Equal(types.ContainerID("new-id")))

			gomega.Expect(received.Config).NotTo(gomega.BeNil())
			gomega.Expect(received.Image).To(gomega.Equal("ghcr.io/org/web:latest"))
			gomega.Expect(received.Env).To(gomega.Equal([]string{"A=1"}))
			gomega.Expect(received.Labels).To(gomega.HaveKeyWithValue("app", "web"))
			gomega.Expect(received.HostConfig).NotTo(gomega.BeNil())
			gomega.Expect(received.HostConfig.Binds).To(gomega.Equal([]string{"/data:/data"}))
			gomega.Expect(string(received.HostConfig.RestartPolicy.Name)).To(gomega.Equal("always"))
			gomega.Expect(string(received.HostConfig.NetworkMode)).To(gomega.Equal("netA"))
			gomega.Expect(received.NetworkingConfig).NotTo(gomega.BeNil())
			gomega.Expect(received.NetworkingConfig.EndpointsConfig).To(gomega.HaveLen(1))

			endpoint := received.NetworkingConfig.EndpointsConfig["netA"]
			gomega.Expect(endpoint).NotTo(gomega.BeNil())
			gomega.Expect(endpoint.Aliases).To(gomega.Equal([]string{"x"}))
			gomega.Expect(endpoint.IPAMConfig).NotTo(gomega.BeNil())
			gomega.Expect(endpoint.IPAMConfig.IPv4Address).To(gomega.Equal("10.0.0.5"))
		})

		ginkgo.It("should attach the bridge endpoint for the default network mode", func() {
			var received dockerContainer.CreateRequest

			mockServer.AppendHandlers(mocks.CreateContainerHandler("web", "new-id", func(request dockerContainer.CreateRequest) {
				received = request
			}))

			_, err := cli.CreateContainer(ctx, types.ContainerSnapshot{
				Name:        "web",
				NetworkMode: "default",
				Networks:    map[string]types.NetworkAttachment{"bridge": {Links: []string{"/db:/web/db"}}},
			}, "nginx:latest")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(received.NetworkingConfig).NotTo(gomega.BeNil())
			gomega.Expect(received.NetworkingConfig.EndpointsConfig).To(gomega.HaveKey("bridge"))
			gomega.Expect(received.NetworkingConfig.EndpointsConfig["bridge"].Links).To(gomega.Equal([]string{"/db:/web/db"}))
		})

		ginkgo.It("should send no endpoints in host mode", func() {
			var received dockerContainer.CreateRequest

			mockServer.AppendHandlers(mocks.CreateContainerHandler("web", "new-id", func(request dockerContainer.CreateRequest) {
				received = request
			}))

			_, err := cli.CreateContainer(ctx, types.ContainerSnapshot{
				Name:        "web",
				NetworkMode: "host",
				Networks:    map[string]types.NetworkAttachment{"host": {}},
			}, "nginx:latest")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(received.NetworkingConfig).To(gomega.BeNil())
		})

		ginkgo.It("should leave the restart policy unset when none was captured", func() {
			var received dockerContainer.CreateRequest

			mockServer.AppendHandlers(mocks.CreateContainerHandler("web", "new-id", func(request dockerContainer.CreateRequest) {
				received = request
			}))

			_, err := cli.CreateContainer(ctx, types.ContainerSnapshot{Name: "web"}, "nginx:latest")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(received.HostConfig.RestartPolicy.Name).To(gomega.BeEmpty())
		})

		ginkgo.It("should wrap a rejected creation", func() {
			mockServer.AppendHandlers(ghttp.RespondWith(http.StatusConflict, `{"message":"name in use"}`))

			_, err := cli.CreateContainer(ctx, types.ContainerSnapshot{Name: "web"}, "nginx:latest")
			gomega.Expect(err).To(gomega.MatchError(errCreateContainerFailed))
		})
	})

	ginkgo.Describe("ConnectNetwork", func() {
		ginkgo.It("should restore aliases and static addresses", func() {
			var received dockerNetwork.ConnectOptions

			mockServer.AppendHandlers(mocks.ConnectNetworkHandler("netA", func(request dockerNetwork.ConnectOptions) {
				received = request
			}))

			err := cli.ConnectNetwork(ctx, "new-id", "netA", types.NetworkAttachment{
				Aliases:     []string{"x"},
				IPv4Address: "10.0.0.5",
			})
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(received.Container).To(gomega.Equal("new-id"))
			gomega.Expect(received.EndpointConfig).NotTo(gomega.BeNil())
			gomega.Expect(received.EndpointConfig.Aliases).To(gomega.Equal([]string{"x"}))
			gomega.Expect(received.EndpointConfig.IPAMConfig).NotTo(gomega.BeNil())
			gomega.Expect(received.EndpointConfig.IPAMConfig.IPv4Address).To(gomega.Equal("10.0.0.5"))
		})

		ginkgo.It("should omit the IPAM config without addresses", func() {
			var received dockerNetwork.ConnectOptions

			mockServer.AppendHandlers(mocks.ConnectNetworkHandler("netB", func(request dockerNetwork.ConnectOptions) {
				received = request
			}))

			gomega.Expect(cli.ConnectNetwork(ctx, "new-id", "netB", types.NetworkAttachment{})).To(gomega.Succeed())
			gomega.Expect(received.EndpointConfig.IPAMConfig).To(gomega.BeNil())
		})
	})

	ginkgo.Describe("StartContainer", func() {
		ginkgo.It("should start the container", func() {
			mockServer.AppendHandlers(mocks.StartContainerHandler("new-id", mocks.Found))

			gomega.Expect(cli.StartContainer(ctx, "new-id")).To(gomega.Succeed())
		})

		ginkgo.It("should wrap a failed start", func() {
			mockServer.AppendHandlers(mocks.StartContainerHandler("new-id", mocks.Missing))

			gomega.Expect(cli.StartContainer(ctx, "new-id")).To(gomega.MatchError(errStartContainerFailed))
		})
	})

	ginkgo.Describe("ContainerStats", func() {
		ginkgo.It("should compute figures from a one-shot sample", func() {
			mockServer.AppendHandlers(mocks.StatsHandler("web-id", `{
				"memory_stats": {"usage": 50, "limit": 200},
				"networks": {"eth0": {"rx_bytes": 3, "tx_bytes": 4}}
			}`))

			stats, err := cli.ContainerStats(ctx, "web-id")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(*stats.MemoryPercent).To(gomega.BeNumerically("~", 25.0))
			gomega.Expect(*stats.NetworkRx).To(gomega.BeEquivalentTo(3))
			gomega.Expect(*stats.NetworkTx).To(gomega.BeEquivalentTo(4))
			gomega.Expect(stats.CPUPercent).To(gomega.BeNil())
		})

		ginkgo.It("should reject an undecodable body", func() {
			mockServer.AppendHandlers(mocks.StatsHandler("web-id", "not json"))

			_, err := cli.ContainerStats(ctx, "web-id")
			gomega.Expect(err).To(gomega.MatchError(errStatsFailed))
		})
	})

	ginkgo.Describe("dangling images", func() {
		ginkgo.It("should list dangling images with empty tag lists", func() {
			mockServer.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, gomega.HaveSuffix("/images/json")),
				ghttp.RespondWithJSONEncoded(http.StatusOK, []dockerImage.Summary{{ID: "sha256:old"}}),
			))

			images, err := cli.ListDanglingImages(ctx)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(images).To(gomega.Equal([]types.ImageSummary{{ID: "sha256:old", Tags: []string{}}}))

			query := mockServer.ReceivedRequests()[0].URL.Query()
			gomega.Expect(query.Get("filters")).To(gomega.ContainSubstring("dangling"))
		})

		ginkgo.It("should report deleted images and reclaimed space", func() {
			mockServer.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, gomega.HaveSuffix("/images/prune")),
				ghttp.RespondWithJSONEncoded(http.StatusOK, dockerImage.PruneReport{
					ImagesDeleted: []dockerImage.DeleteResponse{
						{Untagged: "app@sha256:old"},
						{Deleted: "sha256:old"},
					},
					SpaceReclaimed: 1024,
				}),
			))

			report, err := cli.PruneDanglingImages(ctx)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(report.ImagesDeleted).To(gomega.Equal([]string{"sha256:old"}))
			gomega.Expect(report.SpaceReclaimed).To(gomega.BeEquivalentTo(1024))
		})
	})

	ginkgo.Describe("Ping", func() {
		ginkgo.It("should succeed when the daemon answers", func() {
			mockServer.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodHead, gomega.HaveSuffix("/_ping")),
				ghttp.RespondWith(http.StatusOK, nil),
			))

			gomega.Expect(cli.Ping(ctx)).To(gomega.Succeed())
		})

		ginkgo.It("should fail against an unreachable daemon", func() {
			mockServer.Close()

			gomega.Expect(cli.Ping(ctx)).To(gomega.MatchError(errPingFailed))
		})
	})
})
