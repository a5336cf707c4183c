package segment_test

import (
	"strings"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quillworksco/folio/pkg/segment"
)

var _ = Describe("Split", func() {
	Describe("configuration validation", func() {
		It("rejects overlap equal to chunk size", func() {
			_, err := segment.Split("some text", 100, 100)
			Expect(err).To(MatchError(segment.ErrInvalidConfiguration))
		})

		It("rejects overlap greater than chunk size", func() {
			_, err := segment.Split("some text", 100, 150)
			Expect(err).To(MatchError(segment.ErrInvalidConfiguration))
		})

		It("rejects negative overlap", func() {
			_, err := segment.Split("some text", 100, -1)
			Expect(err).To(MatchError(segment.ErrInvalidConfiguration))
		})

		It("rejects non-positive chunk size", func() {
			_, err := segment.Split("some text", 0, 0)
			Expect(err).To(MatchError(segment.ErrInvalidConfiguration))
		})
	})

	Describe("empty input", func() {
		It("returns no pieces for empty text", func() {
			pieces, err := segment.Split("", 100, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(pieces).To(BeEmpty())
		})

		It("returns no pieces for whitespace-only text", func() {
			pieces, err := segment.Split("  \n\n\t  \n ", 100, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(pieces).To(BeEmpty())
		})
	})

	Describe("basic chunking", func() {
		It("returns a single piece when the text fits one chunk", func() {
			pieces, err := segment.Split("short text", 100, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(pieces).To(HaveLen(1))
			Expect(pieces[0].Index).To(Equal(0))
			Expect(pieces[0].Text).To(Equal("short text"))
		})

		It("keeps 800 characters in exactly one chunk at size 1000", func() {
			text := strings.Repeat("b", 800)
			pieces, err := segment.Split(text, 1000, 200)
			Expect(err).NotTo(HaveOccurred())
			Expect(pieces).To(HaveLen(1))
		})

		It("packs small paragraphs together up to the chunk size", func() {
			text := "first paragraph\n\nsecond paragraph\n\nthird paragraph"
			pieces, err := segment.Split(text, 200, 20)
			Expect(err).NotTo(HaveOccurred())
			Expect(pieces).To(HaveLen(1))
			Expect(pieces[0].Text).To(ContainSubstring("first paragraph"))
			Expect(pieces[0].Text).To(ContainSubstring("third paragraph"))
		})

		It("assigns consecutive 0-based indices", func() {
			text := strings.Repeat("x", 2500)
			pieces, err := segment.Split(text, 1000, 200)
			Expect(err).NotTo(HaveOccurred())
			for i, p := range pieces {
				Expect(p.Index).To(Equal(i))
			}
		})
	})

	Describe("hard splitting", func() {
		It("splits a 2500 character paragraph into 3 bounded chunks", func() {
			text := strings.Repeat("a", 2500)
			pieces, err := segment.Split(text, 1000, 200)
			Expect(err).NotTo(HaveOccurred())
			Expect(pieces).To(HaveLen(3))
			for _, p := range pieces {
				Expect(len(p.Text)).To(BeNumerically("<=", 1000))
			}
		})

		It("overlaps consecutive hard-split chunks by the configured tail", func() {
			text := strings.Repeat("a", 1500) + strings.Repeat("b", 1000)
			pieces, err := segment.Split(text, 1000, 200)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(pieces)).To(BeNumerically(">=", 2))

			first := pieces[0].Text
			second := pieces[1].Text
			Expect(second[:200]).To(Equal(first[len(first)-200:]))
		})

		It("cuts multi-byte text on rune boundaries", func() {
			text := strings.Repeat("héllo wörld ", 250)
			pieces, err := segment.Split(text, 1000, 200)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(pieces)).To(BeNumerically(">", 1))

			for _, p := range pieces {
				Expect(utf8.ValidString(p.Text)).To(BeTrue())
			}
		})

		It("keeps every chunk of pure multi-byte text valid", func() {
			text := strings.Repeat("日本語の文章", 500)
			pieces, err := segment.Split(text, 1000, 200)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(pieces)).To(BeNumerically(">", 1))

			for _, p := range pieces {
				Expect(utf8.ValidString(p.Text)).To(BeTrue())
			}
		})

		It("carries the previous window's overlap into the first hard-split chunk", func() {
			text := strings.Repeat("a", 900) + "\n\n" + strings.Repeat("b", 3000)
			pieces, err := segment.Split(text, 1000, 200)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(pieces)).To(BeNumerically(">=", 2))

			first := pieces[0].Text
			carried := first[len(first)-200:]
			Expect(pieces[1].Text).To(HavePrefix(carried + "\n\n"))
		})

		It("bounds every chunk for mixed paragraph sizes", func() {
			text := strings.Repeat("c", 2500) + "\n\n" + "a tail paragraph" + "\n\n" + strings.Repeat("d", 400)
			pieces, err := segment.Split(text, 1000, 200)
			Expect(err).NotTo(HaveOccurred())
			for _, p := range pieces {
				Expect(len(p.Text)).To(BeNumerically("<=", 1000))
			}
		})
	})

	Describe("overlap across packed windows", func() {
		It("starts each follow-on window with the previous window's tail", func() {
			paragraphs := make([]string, 8)
			for i := range paragraphs {
				paragraphs[i] = strings.Repeat(string(rune('a'+i)), 300)
			}
			text := strings.Join(paragraphs, "\n\n")

			pieces, err := segment.Split(text, 1000, 200)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(pieces)).To(BeNumerically(">", 1))

			for i := 1; i < len(pieces); i++ {
				prev := pieces[i-1].Text
				expected := prev[len(prev)-200:]
				Expect(pieces[i].Text).To(HavePrefix(expected))
			}
		})
	})

	Describe("determinism", func() {
		It("produces identical sequences on repeated calls", func() {
			text := strings.Repeat("lorem ipsum dolor sit amet. ", 120) +
				"\n\n" + strings.Repeat("consectetur adipiscing elit. ", 80)

			a, err := segment.Split(text, 500, 100)
			Expect(err).NotTo(HaveOccurred())
			b, err := segment.Split(text, 500, 100)
			Expect(err).NotTo(HaveOccurred())

			Expect(b).To(Equal(a))
		})

		It("allows zero overlap", func() {
			text := strings.Repeat("z", 2000)
			pieces, err := segment.Split(text, 1000, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(pieces).To(HaveLen(2))
			Expect(pieces[0].Text).To(Equal(strings.Repeat("z", 1000)))
			Expect(pieces[1].Text).To(Equal(strings.Repeat("z", 1000)))
		})
	})
})
