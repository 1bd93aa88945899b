package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
)

var _ = Describe("Step", func() {
	It("prints a success mark and returns nil", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "Connecting", func() error { return nil })
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("Connecting"))
		Expect(buf.String()).To(ContainSubstring("✓"))
	})

	It("prints a fail mark and returns the error", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")
		err := cliui.Step(&buf, "Connecting", func() error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring("✗"))
	})
})

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below one second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("uses seconds above one second", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("MaskSecret", func() {
	DescribeTable("masking",
		func(in, want string) {
			Expect(cliui.MaskSecret(in)).To(Equal(want))
		},
		Entry("empty stays empty", "", ""),
		Entry("short is fully hidden", "abc", "****"),
		Entry("long keeps the last four", "sk-abcdef1234", "****1234"),
	)
})

var _ = Describe("RenderMarkdown", func() {
	It("renders the content text", func() {
		out, err := cliui.RenderMarkdown("**hello** world")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("hello"))
		Expect(out).To(ContainSubstring("world"))
	})
})
