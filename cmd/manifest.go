package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cat-wiki/docwatcher/internal/manifest"
)

func newManifestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manifest",
		Short: "Prints the URLs the manifest yields",
		Long: `Fetches and parses the URL manifest exactly as a scrape would and prints
the valid, de-duplicated URLs one per line. Nothing is rendered or saved.`,
		Args: cobra.NoArgs,
		RunE: runManifestCommand,
	}
}

func runManifestCommand(cmd *cobra.Command, _ []string) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	w := newWiring(e.cfg, e.logger)
	defer w.Close()

	src, format, err := w.manifestSource(cmd.Context())
	if err != nil {
		return err
	}
	urls, err := manifest.Load(cmd.Context(), src, format, e.logger.Named("manifest"))
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, u := range urls {
		if _, err := fmt.Fprintln(out, u); err != nil {
			return fmt.Errorf("write url: %w", err)
		}
	}
	return nil
}
