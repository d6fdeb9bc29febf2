package aliasstore_test

import (
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/nitronplus/ts/internal/aliasstore"
)

func TestSetThenResolveRoundTrips(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "aliases.json")

	store, err := aliasstore.Open(path)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(store.Set("box", "deploy", "box.example.com", 2222)).To(Succeed())

	rec, ok := store.Resolve("box")
	g.Expect(ok).To(BeTrue())
	g.Expect(rec.User).To(Equal("deploy"))
	g.Expect(rec.Host).To(Equal("box.example.com"))
	g.Expect(rec.Port).To(Equal(2222))

	reopened, err := aliasstore.Open(path)
	g.Expect(err).NotTo(HaveOccurred())

	rec2, ok := reopened.Resolve("box")
	g.Expect(ok).To(BeTrue())
	g.Expect(rec2).To(Equal(rec))
}

func TestResolveUnknownAliasReturnsFalse(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	store, err := aliasstore.Open(filepath.Join(t.TempDir(), "aliases.json"))
	g.Expect(err).NotTo(HaveOccurred())

	_, ok := store.Resolve("nope")
	g.Expect(ok).To(BeFalse())
}

func TestRemoveDeletesAlias(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "aliases.json")

	store, err := aliasstore.Open(path)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(store.Set("box", "deploy", "box.example.com", 22)).To(Succeed())
	g.Expect(store.Remove("box")).To(Succeed())

	_, ok := store.Resolve("box")
	g.Expect(ok).To(BeFalse())
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	store, err := aliasstore.Open(filepath.Join(t.TempDir(), "does-not-exist.json"))
	g.Expect(err).NotTo(HaveOccurred())

	_, ok := store.Resolve("anything")
	g.Expect(ok).To(BeFalse())
}
