package enumerate_test

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/nitronplus/ts/internal/enumerate"
)

func collect(t *testing.T, sources []string) ([]enumerate.Entry, uint64, error) {
	t.Helper()

	var got []enumerate.Entry

	total, err := enumerate.Local(sources, func(e enumerate.Entry) error {
		got = append(got, e)
		return nil
	})

	return got, total, err
}

func relKinds(entries []enumerate.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Rel + ":" + e.Kind.String()
	}

	sort.Strings(out)

	return out
}

func TestLocalSingleFile(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	g.Expect(os.WriteFile(file, []byte("abc"), 0o644)).To(Succeed())

	entries, total, err := collect(t, []string{file})

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(total).To(Equal(uint64(3)))
	g.Expect(entries).To(HaveLen(1))
	g.Expect(entries[0].Rel).To(Equal("a.txt"))
	g.Expect(entries[0].Kind).To(Equal(enumerate.File))
	g.Expect(*entries[0].Size).To(Equal(uint64(3)))
}

func TestLocalMissingSource(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	_, _, err := collect(t, []string{"/nonexistent/path/definitely"})
	g.Expect(err).To(HaveOccurred())
}

func buildTree(t *testing.T, root string) {
	t.Helper()

	g := NewWithT(t)

	g.Expect(os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644)).To(Succeed())
	g.Expect(os.MkdirAll(filepath.Join(root, "nested", "sub"), 0o755)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(root, "nested", "b.txt"), []byte("yy"), 0o644)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(root, "nested", "sub", "c.txt"), []byte("zzz"), 0o644)).To(Succeed())
}

func TestLocalDirAndTrailingSlashAreEquivalent(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	root := t.TempDir()
	buildTree(t, root)

	plain, totalPlain, err := collect(t, []string{root})
	g.Expect(err).NotTo(HaveOccurred())

	slash, totalSlash, err := collect(t, []string{root + "/"})
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(totalPlain).To(Equal(totalSlash))
	g.Expect(relKinds(plain)).To(Equal(relKinds(slash)))

	for _, e := range plain {
		g.Expect(e.Rel).NotTo(Equal(""))
	}
}

func TestLocalGlobNonRecursion(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	root := t.TempDir()
	g.Expect(os.MkdirAll(filepath.Join(root, "d1"), 0o755)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(root, "d1", "f1.txt"), []byte("1"), 0o644)).To(Succeed())
	g.Expect(os.MkdirAll(filepath.Join(root, "d2", "sub"), 0o755)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(root, "d2", "sub", "f2.txt"), []byte("22"), 0o644)).To(Succeed())

	entries, _, err := collect(t, []string{filepath.Join(root, "d*")})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(entries).To(HaveLen(2))

	for _, e := range entries {
		g.Expect(e.Kind).To(Equal(enumerate.Dir))
		g.Expect(e.Rel).NotTo(ContainSubstring("/"))
	}
}

func TestLocalGlobNoMatches(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	root := t.TempDir()

	_, _, err := collect(t, []string{filepath.Join(root, "nothing*")})
	g.Expect(err).To(HaveOccurred())
}
