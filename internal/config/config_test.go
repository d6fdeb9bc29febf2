package config_test

import (
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/nitronplus/ts/internal/config"
)

func TestValidateRequiresSourcesAndTarget(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	g.Expect(config.Config{}.Validate()).To(HaveOccurred())
	g.Expect(config.Config{Sources: []string{"a"}}.Validate()).To(HaveOccurred())
	g.Expect(config.Config{Sources: []string{"a"}, Target: "b"}.Validate()).To(Succeed())
}

func TestConfigDescriptionAndVersionAreNonEmpty(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	g.Expect(config.Config{}.Description()).NotTo(BeEmpty())
	g.Expect(config.Config{}.Version()).NotTo(BeEmpty())
}

func TestOpenOutputFailuresNoopsWhenUnset(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	f, err := config.Config{}.OpenOutputFailures()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(f).To(BeNil())
}

func TestOpenOutputFailuresCreatesFile(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "failures.jsonl")

	cfg := config.Config{OutputFailures: path}

	f, err := cfg.OpenOutputFailures()
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(f).NotTo(BeNil())
	g.Expect(f.Close()).To(Succeed())

	g.Expect(path).To(BeAnExistingFile())
}
