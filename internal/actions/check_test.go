package actions_test

import (
	"context"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/nicholas-fedor/docker-monitor/internal/actions"
	"github.com/nicholas-fedor/docker-monitor/internal/actions/mocks"
	"github.com/nicholas-fedor/docker-monitor/pkg/metrics"
	"github.com/nicholas-fedor/docker-monitor/pkg/types"
)

const webRef = "ghcr.io/org/web:latest"

func metricsFor(checked, upToDate, available, unknown, registryErrors, errored int) metrics.Metric {
	return metrics.Metric{
		Checked:         checked,
		UpToDate:        upToDate,
		UpdateAvailable: available,
		Unknown:         unknown,
		RegistryErrors:  registryErrors,
		Errors:          errored,
	}
}

var _ = ginkgo.Describe("ImageReference", func() {
	ginkgo.It("should prefer the first tag", func() {
		c := mocks.CreateMockContainer("id", "web", "ignored", mocks.CreateMockImageInfo(
			"sha256:img", []string{webRef, "ghcr.io/org/web:v1"}, "ghcr.io/org/web@sha256:aaa"))

		gomega.Expect(actions.ImageReference(c)).To(gomega.Equal(webRef))
	})

	ginkgo.It("should derive latest from the first repository digest", func() {
		c := mocks.CreateMockContainer("id", "web", "", mocks.CreateMockImageInfo(
			"sha256:img", nil, "ghcr.io/org/web@sha256:aaa"))

		gomega.Expect(actions.ImageReference(c)).To(gomega.Equal(webRef))
	})

	ginkgo.It("should be empty without tags or digests", func() {
		c := mocks.CreateMockContainer("id", "web", "", mocks.CreateMockImageInfo("sha256:img", nil))

		gomega.Expect(actions.ImageReference(c)).To(gomega.BeEmpty())
	})
})

var _ = ginkgo.Describe("the classifier", func() {
	var (
		ctx        context.Context
		digests    *fakeDigests
		recorder   *fakeRecorder
		classifier *actions.Classifier
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		digests = newFakeDigests(map[string]string{webRef: "sha256:aaa"})
		recorder = &fakeRecorder{}
		classifier = actions.NewClassifier(digests, 2, recorder)
	})

	withImage := func(tags []string, repoDigests ...string) types.Container {
		return mocks.CreateMockContainer("id", "web", webRef, mocks.CreateMockImageInfo("sha256:img", tags, repoDigests...))
	}

	ginkgo.DescribeTable("Classify",
		func(c func() types.Container, want types.UpdateStatus) {
			gomega.Expect(classifier.Classify(ctx, c(), false)).To(gomega.Equal(want))
		},
		ginkgo.Entry("missing image metadata",
			func() types.Container { return mocks.CreateMockContainer("id", "web", webRef, nil) },
			types.ErrorStatus("image info unavailable")),
		ginkgo.Entry("no reference",
			func() types.Container { return withImage(nil) },
			types.StatusUnknownImage),
		ginkgo.Entry("no local digest",
			func() types.Container { return withImage([]string{webRef}) },
			types.StatusUnknownLocalDigest),
		ginkgo.Entry("absent remote digest",
			func() types.Container {
				return withImage([]string{"ghcr.io/org/other:latest"}, "ghcr.io/org/other@sha256:aaa")
			},
			types.StatusRegistryError),
		ginkgo.Entry("matching digest",
			func() types.Container { return withImage([]string{webRef}, "ghcr.io/org/web@sha256:aaa") },
			types.StatusUpToDate),
		ginkgo.Entry("matching digest after normalization",
			func() types.Container { return withImage([]string{webRef}, " 'ghcr.io/org/web@SHA256:AAA' ") },
			types.StatusUpToDate),
		ginkgo.Entry("matching any of several digests",
			func() types.Container {
				return withImage([]string{webRef}, "mirror.io/web@sha256:ccc", "ghcr.io/org/web@sha256:aaa")
			},
			types.StatusUpToDate),
		ginkgo.Entry("different digest",
			func() types.Container { return withImage([]string{webRef}, "ghcr.io/org/web@sha256:bbb") },
			types.StatusUpdateAvailable),
	)

	ginkgo.It("should pass the force flag to the digest source", func() {
		classifier.Classify(ctx, withImage([]string{webRef}, "ghcr.io/org/web@sha256:aaa"), true)

		gomega.Expect(digests.lookups).To(gomega.Equal([]string{webRef}))
		gomega.Expect(digests.forced).To(gomega.Equal([]bool{true}))
	})

	ginkgo.It("should not look anything up without a local digest", func() {
		classifier.Classify(ctx, withImage([]string{webRef}), false)

		gomega.Expect(digests.lookups).To(gomega.BeEmpty())
	})

	ginkgo.Describe("ClassifyAll", func() {
		ginkgo.It("should classify every container and record a batch metric", func() {
			containers := []types.Container{
				mocks.CreateMockContainer("1", "web", webRef,
					mocks.CreateMockImageInfo("sha256:1", []string{webRef}, "ghcr.io/org/web@sha256:aaa")),
				mocks.CreateMockContainer("2", "db", "postgres:16",
					mocks.CreateMockImageInfo("sha256:2", []string{"postgres:16"}, "postgres@sha256:ddd")),
				mocks.CreateMockContainer("3", "cache", "redis", nil),
				mocks.CreateMockContainer("4", "job", "local",
					mocks.CreateMockImageInfo("sha256:4", nil)),
			}
			digests.Set("postgres:16", "sha256:eee")

			statuses := classifier.ClassifyAll(ctx, containers, false)

			gomega.Expect(statuses).To(gomega.Equal(map[string]types.UpdateStatus{
				"web":   types.StatusUpToDate,
				"db":    types.StatusUpdateAvailable,
				"cache": types.ErrorStatus("image info unavailable"),
				"job":   types.StatusUnknownImage,
			}))
			gomega.Expect(recorder.batches).To(gomega.HaveLen(1))
			gomega.Expect(*recorder.batches[0]).To(gomega.Equal(metricsFor(4, 1, 1, 1, 0, 1)))
		})

		ginkgo.It("should isolate a panicking classification", func() {
			source := &panickingDigests{fakeDigests: fakeDigests{digests: map[string]string{webRef: "sha256:aaa"}}, ref: "boom:latest"}
			classifier = actions.NewClassifier(source, 0, nil)

			statuses := classifier.ClassifyAll(ctx, []types.Container{
				mocks.CreateMockContainer("1", "web", webRef,
					mocks.CreateMockImageInfo("sha256:1", []string{webRef}, "ghcr.io/org/web@sha256:aaa")),
				mocks.CreateMockContainer("2", "boom", "boom:latest",
					mocks.CreateMockImageInfo("sha256:2", []string{"boom:latest"}, "boom@sha256:fff")),
			}, false)

			gomega.Expect(statuses["web"]).To(gomega.Equal(types.StatusUpToDate))
			gomega.Expect(statuses["boom"].IsError()).To(gomega.BeTrue())
			gomega.Expect(statuses["boom"].Message()).To(gomega.Equal("registry exploded"))
		})

		ginkgo.It("should return an empty map for no containers", func() {
			gomega.Expect(classifier.ClassifyAll(ctx, nil, false)).To(gomega.BeEmpty())
		})
	})
})
