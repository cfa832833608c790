package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/trunkgo/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration, including file and env overrides",
	RunE:  runConfigShow,
}

var configSchemaCmd = &cobra.Command{
	Use:   "generate-schema [path]",
	Short: "Write a JSON Schema for Trunk.toml to path (default: stdout)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigGenerateSchema,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSchemaCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func runConfigGenerateSchema(cmd *cobra.Command, args []string) error {
	schema, err := jsonschema.For[config.Config](nil)
	if err != nil {
		return fmt.Errorf("generating schema: %w", err)
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}

	if len(args) == 0 {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(args[0], data, 0644); err != nil {
		return fmt.Errorf("writing schema file: %w", err)
	}
	return nil
}
