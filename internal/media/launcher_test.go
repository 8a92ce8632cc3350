package media

import (
	"errors"
	"os/exec"
	"testing"
)

func recordingLauncher(opener string) (*Launcher, *[]string) {
	var got []string
	l := NewLauncher(opener)
	l.start = func(cmd *exec.Cmd) error {
		got = cmd.Args
		return nil
	}
	return l, &got
}

func TestDefaultOpener(t *testing.T) {
	tests := map[string]string{
		"darwin":  "open",
		"linux":   "xdg-open",
		"freebsd": "xdg-open",
		"windows": "rundll32 url.dll,FileProtocolHandler",
	}
	for goos, want := range tests {
		if got := DefaultOpener(goos); got != want {
			t.Errorf("DefaultOpener(%q) = %q, want %q", goos, got, want)
		}
	}
}

func TestLauncher_Open(t *testing.T) {
	l, got := recordingLauncher("firefox --new-tab")

	if err := l.Open(" https://example.com/story?id=1 "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"firefox", "--new-tab", "https://example.com/story?id=1"}
	if len(*got) != len(want) {
		t.Fatalf("expected args %v, got %v", want, *got)
	}
	for i := range want {
		if (*got)[i] != want[i] {
			t.Errorf("arg %d: expected %q, got %q", i, want[i], (*got)[i])
		}
	}
}

func TestLauncher_RejectsNonHTTP(t *testing.T) {
	l, got := recordingLauncher("open")

	for _, bad := range []string{"", "file:///etc/passwd", "javascript:alert(1)", "example.com/path", "ftp://example.com"} {
		if err := l.Open(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
	if len(*got) != 0 {
		t.Errorf("no command should have started, got %v", *got)
	}
}

func TestLauncher_StartError(t *testing.T) {
	l := NewLauncher("missing-opener")
	l.start = func(*exec.Cmd) error { return errors.New("not found") }

	if err := l.Open("https://example.com"); err == nil {
		t.Error("expected start failure to be reported")
	}
}

func TestNewLauncher_Default(t *testing.T) {
	if NewLauncher("").Opener() == "" {
		t.Error("expected a platform default opener")
	}
}
