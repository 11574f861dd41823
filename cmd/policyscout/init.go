package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tldrprivacy/policyscout/internal/config"
)

//go:embed templates/policyscout.yaml
var configTemplate embed.FS

// configTemplatePath is the location of the template inside configTemplate.
const configTemplatePath = "templates/policyscout.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new policyscout configuration file",
		Long: `Initialize creates a new .policyscout configuration file in the current directory.

The generated file includes:
- Default crawl settings applied to every site
- Commented examples of site-specific overrides
- An empty topSites list for the refresh command

Examples:
  # Create .policyscout in current directory
  policyscout init

  # Create config file at a specific path
  policyscout init -o myconfig.yaml

  # Force overwrite existing file
  policyscout init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(configTemplatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - Page budget and retry threshold per site")
	fmt.Fprintln(out, "  - Link tokens and URL patterns to skip")
	fmt.Fprintln(out, "  - The topSites list used by refresh")

	return nil
}
