package service

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func testParams() Params {
	return Params{
		Label:  DefaultLabel,
		Binary: "/usr/local/bin/hark",
		Config: "/home/me/.config/hark/config.toml",
		Log:    "/home/me/.local/state/hark/hark.log",
		Env:    map[string]string{"HARK_METRICS_ADDR": "127.0.0.1:9318", "HARK_LOG_LEVEL": "debug"},
	}
}

func TestRenderSystemdUnit(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, "linux", testParams()); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"ExecStart=/usr/local/bin/hark serve --config /home/me/.config/hark/config.toml",
		"Environment=HARK_LOG_LEVEL=debug\nEnvironment=HARK_METRICS_ADDR=127.0.0.1:9318",
		"WantedBy=default.target",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("unit missing %q:\n%s", want, out)
		}
	}
}

func TestRenderLaunchdPlist(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, "darwin", testParams()); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<string>dev.hark.listener</string>",
		"<string>serve</string>",
		"<key>HARK_LOG_LEVEL</key><string>debug</string>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("plist missing %q:\n%s", want, out)
		}
	}
}

func TestInstallStatusUninstall(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path, err := Install(testParams())
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("definition not written: %v", err)
	}
	if p, ok := Status(DefaultLabel); !ok || p != path {
		t.Fatalf("status = %s %v", p, ok)
	}
	if _, err := Uninstall(DefaultLabel); err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if _, ok := Status(DefaultLabel); ok {
		t.Fatalf("definition still present")
	}
	if _, err := Uninstall(DefaultLabel); err != nil {
		t.Fatalf("second uninstall: %v", err)
	}
}
