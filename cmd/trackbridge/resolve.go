package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"trackbridge/internal/core"
	"trackbridge/pkg/musiclink"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [text...]",
	Short: "Resolve the links in text (or stdin) and print their equivalents",
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().Bool("expand-albums", false, "Also print the playable track list per catalog")
	resolveCmd.Flags().String("output", "text", "Output format (text, json)")
}

type resolveOutput struct {
	Result   *core.Result                         `json:"result"`
	Playable map[core.Service][]core.ResourceRef `json:"playable,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer func() {
		_ = logger.Sync()
	}()

	text := strings.Join(args, " ")
	if text == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}

	orchestrator, err := buildOrchestrator(ctx, config, core.NopRecorder{})
	if err != nil {
		return err
	}

	result, err := orchestrator.Resolve(ctx, text)
	if err != nil {
		return err
	}

	out := resolveOutput{Result: result}
	if expand, _ := cmd.Flags().GetBool("expand-albums"); expand {
		out.Playable = orchestrator.Playable(ctx, result)
	}

	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	case "text":
		writeText(cmd.OutOrStdout(), &out)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeText(w io.Writer, out *resolveOutput) {
	if len(out.Result.Items) == 0 {
		fmt.Fprintln(w, "No catalog links found.")
		return
	}

	for i, item := range out.Result.Items {
		fmt.Fprintf(w, "%d. %s", i+1, musiclink.CanonicalURL(item.Source))
		if item.Title != "" {
			fmt.Fprintf(w, " (%s - %s)", item.Artist, item.Title)
		}
		fmt.Fprintln(w)

		for _, service := range core.Services {
			if service == item.Source.Service {
				continue
			}
			if ref, ok := item.Equivalents[service]; ok {
				fmt.Fprintf(w, "   %-8s %s\n", service, musiclink.CanonicalURL(ref))
			}
		}
		if item.Err != nil {
			fmt.Fprintf(w, "   error    %s: %v\n", core.ErrorKind(item.Err), item.Err)
		}
	}

	for _, service := range core.Services {
		refs := out.Playable[service]
		if len(refs) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s playable (%d):\n", service, len(refs))
		for _, ref := range refs {
			fmt.Fprintf(w, "   %s\n", musiclink.CanonicalURL(ref))
		}
	}
}
