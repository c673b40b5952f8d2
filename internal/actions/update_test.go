package actions_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	cerrdefs "github.com/containerd/errdefs"
	dockerContainer "github.com/docker/docker/api/types/container"
	dockerImage "github.com/docker/docker/api/types/image"
	dockerNetwork "github.com/docker/docker/api/types/network"

	"github.com/nicholas-fedor/docker-monitor/internal/actions"
	"github.com/nicholas-fedor/docker-monitor/internal/actions/mocks"
	"github.com/nicholas-fedor/docker-monitor/pkg/metrics"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

var errRuntime = errors.New("runtime failure")

// fakeNotifier records update events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []types.UpdateEvent
}

func (n *fakeNotifier) Notify(event types.UpdateEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.events = append(n.events, event)
}

func (n *fakeNotifier) GetNames() []string { return []string{"fake"} }

func (n *fakeNotifier) Close() {}

func webContainer(networkMode string) types.Container {
	return mocks.CreateMockContainerWithConfig(
		"old-id",
		"web",
		&dockerContainer.Config{
			Image:  webRef,
			Env:    []string{"A=1"},
			Labels: map[string]string{"app": "web"},
		},
		&dockerContainer.HostConfig{
			NetworkMode:   dockerContainer.NetworkMode(networkMode),
			RestartPolicy: dockerContainer.RestartPolicy{Name: "always"},
		},
		map[string]*dockerNetwork.EndpointSettings{
			"netA": {
				Aliases:    []string{"x"},
				IPAMConfig: &dockerNetwork.EndpointIPAMConfig{IPv4Address: "10.0.0.5"},
			},
			"netB": {
				Aliases: []string{"y"},
			},
		},
		mocks.CreateMockImageInfo("sha256:old", []string{webRef}, "ghcr.io/org/web@sha256:aaa"),
	)
}

var _ = ginkgo.Describe("the recreator", func() {
	var (
		ctx        context.Context
		digests    *fakeDigests
		recorder   *fakeRecorder
		notifier   *fakeNotifier
		client     *mocks.MockClient
		classifier *actions.Classifier
		recreator  *actions.Recreator
	)

	build := func(containers ...types.Container) {
		client = mocks.CreateMockClient(&mocks.TestData{
			Containers: containers,
			Pulled: map[string]*dockerImage.InspectResponse{
				webRef: mocks.CreateMockImageInfo("sha256:new", []string{webRef}, "ghcr.io/org/web@sha256:bbb"),
			},
		})
		classifier = actions.NewClassifier(digests, 1, nil)
		recreator = actions.NewRecreator(client, classifier, actions.RecreatorOptions{
			SelfName: "docker-monitor",
			Notifier: notifier,
			Recorder: recorder,
		})
	}

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		digests = newFakeDigests(map[string]string{webRef: "sha256:bbb"})
		recorder = &fakeRecorder{}
		notifier = &fakeNotifier{}
		build(webContainer("netA"))
	})

	ginkgo.It("should bring an outdated container up to date", func() {
		before := client.TestData.Containers[0]
		gomega.Expect(classifier.Classify(ctx, before, false)).To(gomega.Equal(types.StatusUpdateAvailable))

		result, err := recreator.Update(ctx, "web")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(result.Updated).To(gomega.BeTrue())
		gomega.Expect(result.Image).To(gomega.Equal(webRef))
		gomega.Expect(result.NewID).To(gomega.Equal(types.ContainerID("created-1")))
		gomega.Expect(result.Warnings).NotTo(gomega.HaveOccurred())

		gomega.Expect(client.CallsSnapshot()).To(gomega.Equal([]string{
			mocks.OpGet, mocks.OpPull, mocks.OpStop, mocks.OpRemove, mocks.OpCreate, "connect:netB", mocks.OpStart,
		}))
		gomega.Expect(client.StopTimeout).To(gomega.Equal(10 * time.Second))

		after, err := client.GetContainer(ctx, "web")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(after.ID()).To(gomega.Equal(types.ContainerID("created-1")))
		gomega.Expect(classifier.Classify(ctx, after, false)).To(gomega.Equal(types.StatusUpToDate))

		gomega.Expect(recorder.updates).To(gomega.Equal([]string{metrics.ResultUpdated}))
		gomega.Expect(notifier.events).To(gomega.Equal([]types.UpdateEvent{
			{Container: "web", Image: webRef, Updated: true},
		}))
	})

	ginkgo.It("should reuse the captured configuration", func() {
		_, err := recreator.Update(ctx, "web")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		gomega.Expect(client.Creations).To(gomega.HaveLen(1))
		creation := client.Creations[0]
		gomega.Expect(creation.Image).To(gomega.Equal(webRef))
		gomega.Expect(creation.Snapshot.Name).To(gomega.Equal("web"))
		gomega.Expect(creation.Snapshot.Env).To(gomega.Equal([]string{"A=1"}))
		gomega.Expect(creation.Snapshot.Labels).To(gomega.HaveKeyWithValue("app", "web"))
		gomega.Expect(creation.Snapshot.RestartPolicy).To(gomega.Equal("always"))
		gomega.Expect(creation.Snapshot.NetworkMode).To(gomega.Equal("netA"))
		gomega.Expect(creation.Snapshot.Networks).To(gomega.HaveKeyWithValue("netA", types.NetworkAttachment{
			Aliases:     []string{"x"},
			IPv4Address: "10.0.0.5",
		}))
	})

	ginkgo.It("should reconnect only the networks not attached at creation", func() {
		_, err := recreator.Update(ctx, "web")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		gomega.Expect(client.Connections).To(gomega.Equal([]mocks.Connection{{
			ID:         "created-1",
			Network:    "netB",
			Attachment: types.NetworkAttachment{Aliases: []string{"y"}},
		}}))
		gomega.Expect(client.CallsSnapshot()).NotTo(gomega.ContainElement("connect:netA"))
	})

	ginkgo.It("should not reconnect networks in host mode", func() {
		build(webContainer("host"))

		result, err := recreator.Update(ctx, "web")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(result.Updated).To(gomega.BeTrue())
		gomega.Expect(client.Connections).To(gomega.BeEmpty())
		gomega.Expect(client.CallsSnapshot()).NotTo(gomega.ContainElement(gomega.HavePrefix(mocks.OpConnect)))
	})

	ginkgo.It("should refuse to update its own container without runtime calls", func() {
		_, err := recreator.Update(ctx, "docker-monitor")

		gomega.Expect(err).To(gomega.MatchError(actions.ErrSelfUpdate))
		gomega.Expect(client.CallsSnapshot()).To(gomega.BeEmpty())
		gomega.Expect(notifier.events).To(gomega.BeEmpty())
	})

	ginkgo.It("should refuse to update its own container addressed by ID", func() {
		build(webContainer("netA"), mocks.CreateMockContainer("self-id", "docker-monitor", "ghcr.io/org/monitor:latest",
			mocks.CreateMockImageInfo("sha256:self", []string{"ghcr.io/org/monitor:latest"})))

		_, err := recreator.Update(ctx, "self-id")

		gomega.Expect(err).To(gomega.MatchError(actions.ErrSelfUpdate))
		gomega.Expect(client.CallsSnapshot()).To(gomega.Equal([]string{mocks.OpGet}))
		gomega.Expect(client.Pulls).To(gomega.BeEmpty())
		gomega.Expect(client.TestData.Containers).To(gomega.HaveLen(2))
		gomega.Expect(notifier.events).To(gomega.BeEmpty())
	})

	ginkgo.It("should report a missing container", func() {
		_, err := recreator.Update(ctx, "ghost")

		gomega.Expect(err).To(gomega.MatchError(actions.ErrContainerNotFound))
		gomega.Expect(client.CallsSnapshot()).To(gomega.Equal([]string{mocks.OpGet}))
	})

	ginkgo.It("should leave an up to date container alone", func() {
		digests.Set(webRef, "sha256:aaa")

		result, err := recreator.Update(ctx, "web")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(result.Updated).To(gomega.BeFalse())
		gomega.Expect(client.CallsSnapshot()).To(gomega.Equal([]string{mocks.OpGet}))
		gomega.Expect(digests.forced).To(gomega.Equal([]bool{true}))
		gomega.Expect(recorder.updates).To(gomega.Equal([]string{metrics.ResultSkipped}))
		gomega.Expect(notifier.events).To(gomega.BeEmpty())
	})

	ginkgo.It("should proceed when the pre-check cannot reach the registry", func() {
		digests.Set(webRef, "")

		result, err := recreator.Update(ctx, "web")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(result.Updated).To(gomega.BeTrue())
	})

	ginkgo.It("should keep the old container when the pull fails", func() {
		client.TestData.Errors[mocks.OpPull] = cerrdefs.ErrNotFound

		result, err := recreator.Update(ctx, "web")
		gomega.Expect(err).To(gomega.MatchError(actions.ErrPullFailed))
		gomega.Expect(cerrdefs.IsNotFound(err)).To(gomega.BeTrue())
		gomega.Expect(result.Updated).To(gomega.BeFalse())
		gomega.Expect(client.CallsSnapshot()).To(gomega.Equal([]string{mocks.OpGet, mocks.OpPull}))
		gomega.Expect(recorder.updates).To(gomega.Equal([]string{metrics.ResultFailed}))
		gomega.Expect(notifier.events).To(gomega.HaveLen(1))
		gomega.Expect(notifier.events[0].Err).To(gomega.MatchError(actions.ErrPullFailed))
	})

	ginkgo.It("should continue past stop, remove and network failures", func() {
		client.TestData.Errors[mocks.OpStop] = errRuntime
		client.TestData.Errors[mocks.OpRemove] = errRuntime
		client.TestData.Errors["connect:netB"] = errRuntime

		result, err := recreator.Update(ctx, "web")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(result.Updated).To(gomega.BeTrue())
		gomega.Expect(result.Warnings).To(gomega.MatchError(errRuntime))
		gomega.Expect(result.Warnings.Error()).To(gomega.ContainSubstring("3 errors occurred"))
		gomega.Expect(client.Started).To(gomega.Equal([]types.ContainerID{"created-1"}))
	})

	ginkgo.It("should stop at a failed creation", func() {
		client.TestData.Errors[mocks.OpCreate] = errRuntime

		result, err := recreator.Update(ctx, "web")
		gomega.Expect(err).To(gomega.MatchError(actions.ErrCreateFailed))
		gomega.Expect(err).To(gomega.MatchError(errRuntime))
		gomega.Expect(result.Updated).To(gomega.BeFalse())
		gomega.Expect(client.CallsSnapshot()).NotTo(gomega.ContainElement(mocks.OpStart))
	})

	ginkgo.It("should report a failed start", func() {
		client.TestData.Errors[mocks.OpStart] = errRuntime

		result, err := recreator.Update(ctx, "web")
		gomega.Expect(err).To(gomega.MatchError(actions.ErrStartFailed))
		gomega.Expect(result.Updated).To(gomega.BeFalse())
		gomega.Expect(result.NewID).To(gomega.Equal(types.ContainerID("created-1")))
	})

	ginkgo.It("should fail without any image reference", func() {
		build(mocks.CreateMockContainer("old-id", "web", "", mocks.CreateMockImageInfo("sha256:old", nil)))

		_, err := recreator.Update(ctx, "web")
		gomega.Expect(err).To(gomega.MatchError(actions.ErrNoImageReference))
		gomega.Expect(client.CallsSnapshot()).To(gomega.Equal([]string{mocks.OpGet}))
	})
})

var _ = ginkgo.Describe("TargetImage", func() {
	ginkgo.DescribeTable("should pick the reference to pull",
		func(configured string, imageInfo *dockerImage.InspectResponse, want string) {
			c := mocks.CreateMockContainer("id", "web", configured, imageInfo)

			gomega.Expect(actions.TargetImage(c)).To(gomega.Equal(want))
		},
		ginkgo.Entry("configured image", "nginx:1.27", nil, "nginx:1.27"),
		ginkgo.Entry("digest pinned image", "nginx@sha256:abc", nil, "nginx:latest"),
		ginkgo.Entry("digest pinned tagged image", "ghcr.io/org/web:v2@sha256:abc", nil, "ghcr.io/org/web:latest"),
		ginkgo.Entry("sha512 pinned image", "nginx@sha512:abc", nil, "nginx:latest"),
		ginkgo.Entry("pinned image behind a registry port", "localhost:5000/app:v1@sha256:abc", nil,
			"localhost:5000/app:latest"),
		ginkgo.Entry("first tag without configured image", "",
			mocks.CreateMockImageInfo("sha256:1", []string{"redis:7"}), "redis:7"),
		ginkgo.Entry("repository digest without tags", "",
			mocks.CreateMockImageInfo("sha256:1", nil, "redis@sha256:abc"), "redis:latest"),
		ginkgo.Entry("nothing known", "", nil, ""),
	)
})
