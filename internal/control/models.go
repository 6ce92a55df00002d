package control

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hark/internal/config"

	"github.com/spf13/cobra"
)

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// known ggml models; values are relative to modelBaseURL.
var modelRegistry = map[string]string{
	"ggml-tiny.en.bin":             "ggml-tiny.en.bin",
	"ggml-base.en.bin":             "ggml-base.en.bin",
	"ggml-base.bin":                "ggml-base.bin",
	"ggml-small.en.bin":            "ggml-small.en.bin",
	"ggml-small-q5_1.bin":          "ggml-small-q5_1.bin",
	"ggml-medium-q5_1.bin":         "ggml-medium-q5_1.bin",
	"ggml-large-v3-q5_0.bin":       "ggml-large-v3-q5_0.bin",
	"ggml-large-v3-turbo-q8_0.bin": "ggml-large-v3-turbo-q8_0.bin",
	"ggml-large-v3-turbo.bin":      "ggml-large-v3-turbo.bin",
}

// NewModelsCmd wires up the models subcommands (list/download/set).
func NewModelsCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List/download/set whisper models",
	}
	cmd.AddCommand(newModelsListCmd(cfgPath))
	cmd.AddCommand(newModelsDownloadCmd(cfgPath))
	cmd.AddCommand(newModelsSetCmd(cfgPath))
	return cmd
}

func newModelsListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known models and those present locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			listModels(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func listModels(w io.Writer, cfg *config.Config) {
	local := map[string]bool{}
	entries, _ := os.ReadDir(cfg.Paths.ModelDir)
	for _, e := range entries {
		if !e.IsDir() && !strings.HasSuffix(e.Name(), ".part") {
			local[e.Name()] = true
		}
	}
	names := make([]string, 0, len(modelRegistry)+len(local))
	for n := range modelRegistry {
		names = append(names, n)
	}
	for n := range local {
		if _, known := modelRegistry[n]; !known {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	active := filepath.Base(cfg.Transcribe.ModelPath)
	for _, n := range names {
		var tags []string
		if local[n] {
			tags = append(tags, "downloaded")
		}
		if n == active {
			tags = append(tags, "active")
		}
		line := "- " + n
		if len(tags) > 0 {
			line += " (" + strings.Join(tags, ", ") + ")"
		}
		fmt.Fprintln(w, line)
	}
}

func newModelsDownloadCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "download [model]",
		Short: "Download a model (default: the configured one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			name := filepath.Base(cfg.Transcribe.ModelPath)
			dest := os.ExpandEnv(cfg.Transcribe.ModelPath)
			if len(args) == 1 {
				name = args[0]
				dest = filepath.Join(cfg.Paths.ModelDir, name)
			}
			rel, ok := modelRegistry[name]
			if !ok {
				return fmt.Errorf("unknown model %q; run models list", name)
			}
			if _, err := os.Stat(dest); err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "model already present at", dest)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "downloading %s -> %s\n", name, dest)
			return downloadModel(cmd.Context(), modelBaseURL+rel, dest)
		},
	}
}

// downloadModel fetches url into dest through a .part file.
func downloadModel(ctx context.Context, url, dest string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}
	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

func newModelsSetCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <model-name-or-path>",
		Short: "Set transcribe.model_path in config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			val := resolveModelPath(cfg, args[0])
			cfg.Transcribe.ModelPath = val
			if err := config.Save(cfg, cfg.Paths.ConfigPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "model set to %s\n", val)
			return nil
		},
	}
}

// resolveModelPath maps a bare model name into the model directory.
func resolveModelPath(cfg *config.Config, val string) string {
	if strings.ContainsRune(val, filepath.Separator) || strings.Contains(val, "/") {
		return val
	}
	return filepath.Join(cfg.Paths.ModelDir, val)
}
