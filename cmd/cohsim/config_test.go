package main

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"
)

var _ = Describe("Config", func() {
	It("should accept the defaults", func() {
		Expect(DefaultConfig().Validate()).To(Succeed())
	})

	It("should reject an unknown protocol", func() {
		c := DefaultConfig()
		c.Protocol = "moesi"

		Expect(c.Validate()).NotTo(Succeed())
	})

	It("should reject an empty system", func() {
		c := DefaultConfig()
		c.Cores = 0

		_, err := c.SystemBuilder()

		Expect(err).To(HaveOccurred())
	})

	It("should read the environment", func() {
		env := map[string]string{
			"COHSIM_PROTOCOL": "incoherent",
			"COHSIM_CORES":    "3",
			"COHSIM_PREFETCH": "true",
			"COHSIM_SEED":     "",
		}
		lookup := func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		}

		c := DefaultConfig()
		Expect(c.ApplyEnv(lookup)).To(Succeed())

		Expect(c.Protocol).To(Equal("incoherent"))
		Expect(c.Cores).To(Equal(3))
		Expect(c.Prefetch).To(BeTrue())
		Expect(c.Seed).To(Equal(int64(1)))
	})

	It("should report a malformed variable", func() {
		lookup := func(key string) (string, bool) {
			if key == "COHSIM_CORES" {
				return "many", true
			}

			return "", false
		}

		c := DefaultConfig()
		err := c.ApplyEnv(lookup)

		Expect(err).To(MatchError(ContainSubstring("COHSIM_CORES")))
	})

	It("should read a YAML file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "run.yaml")
		Expect(os.WriteFile(path,
			[]byte("protocol: incoherent\nrequests: 20\nhome_capacity: 2\n"),
			0o644)).To(Succeed())

		c := DefaultConfig()
		Expect(c.ApplyFile(path)).To(Succeed())

		Expect(c.Protocol).To(Equal("incoherent"))
		Expect(c.Requests).To(Equal(20))
		Expect(c.HomeCapacity).To(Equal(2))
		Expect(c.Cores).To(Equal(4))
	})

	It("should fail on a missing file", func() {
		c := DefaultConfig()

		Expect(c.ApplyFile("no-such-file.yaml")).NotTo(Succeed())
	})

	It("should let flags override the file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "run.yaml")
		Expect(os.WriteFile(path, []byte("cores: 8\nrequests: 20\n"),
			0o644)).To(Succeed())

		flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
		addConfigFlags(flags)
		Expect(flags.Parse([]string{
			"--config", path, "--cores", "2", "--prefetch",
		})).To(Succeed())

		c, err := resolveConfig(flags)

		Expect(err).NotTo(HaveOccurred())
		Expect(c.Cores).To(Equal(2))
		Expect(c.Requests).To(Equal(20))
		Expect(c.Prefetch).To(BeTrue())
	})

	It("should load an env file without overriding the environment", func() {
		path := filepath.Join(GinkgoT().TempDir(), ".env")
		Expect(os.WriteFile(path,
			[]byte("COHSIM_TEST_A=1\nCOHSIM_TEST_B=2\n"), 0o644)).To(Succeed())

		os.Setenv("COHSIM_TEST_B", "3")
		DeferCleanup(func() {
			os.Unsetenv("COHSIM_TEST_A")
			os.Unsetenv("COHSIM_TEST_B")
		})

		Expect(loadEnvFile(path)).To(Succeed())

		Expect(os.Getenv("COHSIM_TEST_A")).To(Equal("1"))
		Expect(os.Getenv("COHSIM_TEST_B")).To(Equal("3"))
	})

	It("should ignore a missing env file", func() {
		Expect(loadEnvFile("no-such-file.env")).To(Succeed())
	})
})
