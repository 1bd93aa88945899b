package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/dotdir"
)

var _ = Describe("SessionState", func() {
	var (
		tmpDir string
		m      *dotdir.Manager
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-session-*")
		Expect(err).NotTo(HaveOccurred())
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadSession", func() {
		It("returns nil when no session file exists", func() {
			state, err := m.LoadSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("returns an error for a corrupt session file", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte("{not json"), 0o600)).To(Succeed())

			_, err := m.LoadSession(tmpDir)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("parsing session state"))
		})
	})

	Describe("SaveSession", func() {
		It("round-trips the session state", func() {
			now := time.Now().UTC().Truncate(time.Second)
			in := &dotdir.SessionState{
				SessionID: "b7e4c1d2",
				Target:    "http://localhost:8080",
				UpdatedAt: now,
			}
			Expect(m.SaveSession(in, tmpDir)).To(Succeed())

			out, err := m.LoadSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).NotTo(BeNil())
			Expect(out.SessionID).To(Equal("b7e4c1d2"))
			Expect(out.Target).To(Equal("http://localhost:8080"))
			Expect(out.UpdatedAt.Equal(now)).To(BeTrue())
		})

		It("writes the file with owner-only permissions", func() {
			Expect(m.SaveSession(&dotdir.SessionState{SessionID: "s"}, tmpDir)).To(Succeed())

			info, err := os.Stat(filepath.Join(tmpDir, "session.json"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
		})

		It("rejects a nil state", func() {
			Expect(m.SaveSession(nil, tmpDir)).To(HaveOccurred())
		})

		It("creates ~/.chatrelay when no directory resolves", func() {
			cwd := filepath.Join(tmpDir, "cwd")
			Expect(os.Mkdir(cwd, 0o755)).To(Succeed())

			origDir, err := os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(cwd)).To(Succeed())
			DeferCleanup(func() { os.Chdir(origDir) })

			origHome := os.Getenv("HOME")
			Expect(os.Setenv("HOME", tmpDir)).To(Succeed())
			DeferCleanup(func() { os.Setenv("HOME", origHome) })

			Expect(m.SaveSession(&dotdir.SessionState{SessionID: "home"}, "")).To(Succeed())
			Expect(filepath.Join(tmpDir, ".chatrelay", "session.json")).To(BeAnExistingFile())
		})
	})

	Describe("ClearSession", func() {
		It("removes a saved session", func() {
			Expect(m.SaveSession(&dotdir.SessionState{SessionID: "gone"}, tmpDir)).To(Succeed())
			Expect(m.ClearSession(tmpDir)).To(Succeed())

			state, err := m.LoadSession(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("is a no-op when nothing is saved", func() {
			Expect(m.ClearSession(tmpDir)).To(Succeed())
		})
	})
})
