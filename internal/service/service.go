// Package service writes per-user service definitions that run the daemon at
// login: a launchd plist on macOS and a systemd user unit elsewhere.
package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"text/template"
)

// DefaultLabel names the installed service.
const DefaultLabel = "dev.hark.listener"

const launchdTemplate = `<?xml version='1.0' encoding='UTF-8'?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
  <key>Label</key><string>{{.Label}}</string>
  <key>ProgramArguments</key>
  <array>
    <string>{{.Binary}}</string>
    <string>serve</string>
    <string>--config</string>
    <string>{{.Config}}</string>
  </array>
  <key>RunAtLoad</key><true/>
  <key>KeepAlive</key><dict><key>SuccessfulExit</key><false/></dict>
  <key>StandardOutPath</key><string>{{.Log}}</string>
  <key>StandardErrorPath</key><string>{{.Log}}</string>
  {{- if .Env }}
  <key>EnvironmentVariables</key>
  <dict>
    {{- range .Env }}
    <key>{{.Key}}</key><string>{{.Value}}</string>
    {{- end }}
  </dict>
  {{- end }}
</dict>
</plist>
`

const systemdTemplate = `[Unit]
Description=hark speech listener ({{.Label}})
After=sound.target

[Service]
ExecStart={{.Binary}} serve --config {{.Config}}
Restart=on-failure
{{- range .Env }}
Environment={{.Key}}={{.Value}}
{{- end }}

[Install]
WantedBy=default.target
`

// Params describes the service to install.
type Params struct {
	Label  string
	Binary string
	Config string
	Log    string
	Env    map[string]string
}

type envPair struct{ Key, Value string }

type view struct {
	Params
	Env []envPair
}

func (p Params) view() view {
	keys := make([]string, 0, len(p.Env))
	for k := range p.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	v := view{Params: p}
	for _, k := range keys {
		v.Env = append(v.Env, envPair{Key: k, Value: p.Env[k]})
	}
	return v
}

// Path returns where the definition for label lives on goos.
func Path(goos, label string) string {
	home := os.Getenv("HOME")
	if goos == "darwin" {
		return filepath.Join(home, "Library", "LaunchAgents", label+".plist")
	}
	return filepath.Join(home, ".config", "systemd", "user", label+".service")
}

// Render writes the definition for goos to w.
func Render(w io.Writer, goos string, p Params) error {
	src := systemdTemplate
	if goos == "darwin" {
		src = launchdTemplate
	}
	tpl, err := template.New(goos).Parse(src)
	if err != nil {
		return err
	}
	return tpl.Execute(w, p.view())
}

// Install writes the definition for the running platform and returns its path.
func Install(p Params) (string, error) {
	path := Path(runtime.GOOS, p.Label)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := Render(f, runtime.GOOS, p); err != nil {
		return "", fmt.Errorf("render %s: %w", path, err)
	}
	return path, f.Close()
}

// Uninstall removes the definition, if present.
func Uninstall(label string) (string, error) {
	path := Path(runtime.GOOS, label)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return path, err
	}
	return path, nil
}

// Status returns the definition path and whether it exists.
func Status(label string) (string, bool) {
	path := Path(runtime.GOOS, label)
	_, err := os.Stat(path)
	return path, err == nil
}
