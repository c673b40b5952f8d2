package registry_test

import (
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/nicholas-fedor/docker-monitor/pkg/registry"
)

func setEnv(key, value string) {
	original, present := os.LookupEnv(key)
	gomega.Expect(os.Setenv(key, value)).To(gomega.Succeed())
	ginkgo.DeferCleanup(func() {
		if present {
			_ = os.Setenv(key, original)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

func writeDockerConfig(content string) {
	dir := ginkgo.GinkgoT().TempDir()
	gomega.Expect(os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0o600)).To(gomega.Succeed())
	setEnv("DOCKER_CONFIG", dir)
}

var _ = ginkgo.Describe("Registry credential helpers", func() {
	ginkgo.BeforeEach(func() {
		setEnv(registry.UserEnv, "")
		setEnv(registry.PasswordEnv, "")
	})

	ginkgo.Describe("EnvCredentials", func() {
		ginkgo.It("should return an error if repo envs are unset", func() {
			_, err := registry.EnvCredentials()
			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("should return the credentials when both are set", func() {
			setEnv(registry.UserEnv, "monitor-user")
			setEnv(registry.PasswordEnv, "monitor-pass")

			auth, err := registry.EnvCredentials()
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(auth.Username).To(gomega.Equal("monitor-user"))
			gomega.Expect(auth.Password).To(gomega.Equal("monitor-pass"))
		})
	})

	ginkgo.Describe("EncodedAuth", func() {
		ginkgo.It("should encode env credentials as engine auth", func() {
			setEnv(registry.UserEnv, "monitor-user")
			setEnv(registry.PasswordEnv, "monitor-pass")

			encoded, err := registry.EncodedAuth("ghcr.io/org/app:latest")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())

			decoded, err := base64.URLEncoding.DecodeString(encoded)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(string(decoded)).To(gomega.ContainSubstring(`"username":"monitor-user"`))
			gomega.Expect(string(decoded)).To(gomega.ContainSubstring(`"password":"monitor-pass"`))
		})

		ginkgo.It("should return an error if the config file cannot be read", func() {
			setEnv("DOCKER_CONFIG", "/dev/null/should-fail")

			_, err := registry.EncodedAuth("ghcr.io/org/app:latest")
			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("should return nothing when the config has no matching entry", func() {
			writeDockerConfig(`{"auths":{}}`)

			gomega.Expect(registry.EncodedAuth("ghcr.io/org/app:latest")).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("BasicCredentials", func() {
		ginkgo.It("should read the docker config for the host", func() {
			writeDockerConfig(`{"auths":{"ghcr.io":{"auth":"` +
				base64.StdEncoding.EncodeToString([]byte("octo:token")) + `"}}}`)

			gomega.Expect(registry.BasicCredentials("ghcr.io")).
				To(gomega.Equal(base64.StdEncoding.EncodeToString([]byte("octo:token"))))
			gomega.Expect(registry.BasicCredentials("quay.io")).To(gomega.BeEmpty())
		})

		ginkgo.It("should map the manifest host of Docker Hub to its config entry", func() {
			writeDockerConfig(`{"auths":{"https://index.docker.io/v1/":{"auth":"` +
				base64.StdEncoding.EncodeToString([]byte("hub:secret")) + `"}}}`)

			gomega.Expect(registry.BasicCredentials("registry-1.docker.io")).
				To(gomega.Equal(base64.StdEncoding.EncodeToString([]byte("hub:secret"))))
		})

		ginkgo.It("should prefer environment credentials", func() {
			setEnv(registry.UserEnv, "monitor-user")
			setEnv(registry.PasswordEnv, "monitor-pass")

			gomega.Expect(registry.BasicCredentials("ghcr.io")).
				To(gomega.Equal(base64.StdEncoding.EncodeToString([]byte("monitor-user:monitor-pass"))))
		})

		ginkgo.It("should stay anonymous when the config is unreadable", func() {
			setEnv("DOCKER_CONFIG", "/dev/null/should-fail")

			gomega.Expect(registry.BasicCredentials("ghcr.io")).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("GetPullOptions", func() {
		ginkgo.It("should carry no auth without credentials", func() {
			writeDockerConfig(`{"auths":{}}`)

			options, err := registry.GetPullOptions("ghcr.io/org/app:latest")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(options.RegistryAuth).To(gomega.BeEmpty())
			gomega.Expect(options.PrivilegeFunc).To(gomega.BeNil())
		})

		ginkgo.It("should set auth and a privilege func with credentials", func() {
			setEnv(registry.UserEnv, "monitor-user")
			setEnv(registry.PasswordEnv, "monitor-pass")

			options, err := registry.GetPullOptions("ghcr.io/org/app:latest")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(options.RegistryAuth).NotTo(gomega.BeEmpty())
			gomega.Expect(options.PrivilegeFunc).NotTo(gomega.BeNil())
		})

		ginkgo.It("should fail on an invalid reference", func() {
			_, err := registry.GetPullOptions("")
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})
})
