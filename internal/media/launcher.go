package media

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

// Launcher hands article and image URLs to an external program.
type Launcher struct {
	opener string
	start  func(cmd *exec.Cmd) error
}

// NewLauncher uses opener when set, otherwise the platform default.
func NewLauncher(opener string) *Launcher {
	if opener == "" {
		opener = DefaultOpener(runtime.GOOS)
	}
	return &Launcher{
		opener: opener,
		start:  startDetached,
	}
}

// DefaultOpener returns the URL opener command for a GOOS value.
func DefaultOpener(goos string) string {
	switch goos {
	case "darwin":
		return "open"
	case "windows":
		return "rundll32 url.dll,FileProtocolHandler"
	default:
		return "xdg-open"
	}
}

func (l *Launcher) Opener() string {
	return l.opener
}

// Open launches the opener on rawURL. Only absolute http(s) URLs are
// accepted.
func (l *Launcher) Open(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("refusing to open %q: not an http(s) URL", rawURL)
	}

	fields := strings.Fields(l.opener)
	if len(fields) == 0 {
		return fmt.Errorf("no application found to open URL")
	}
	args := append(fields[1:], u.String())
	cmd := exec.Command(fields[0], args...)

	if err := l.start(cmd); err != nil {
		return fmt.Errorf("failed to start %s: %w", fields[0], err)
	}
	return nil
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
