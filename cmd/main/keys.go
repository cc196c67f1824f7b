package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newKeyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the API keys that guard /api/server",
	}
	cmd.AddCommand(newKeyCreateCmd(opts))
	cmd.AddCommand(newKeyListCmd(opts))
	return cmd
}

func newKeyCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		scopes      []string
		description string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key and store its hash in the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := LoadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			rawKey, err := generateAPIKey()
			if err != nil {
				return err
			}
			config.Server.APIKeys = append(config.Server.APIKeys, APIKey{
				Hash:        hashAPIKey(rawKey),
				Scopes:      scopes,
				Description: description,
			})
			if err = config.Validate(); err != nil {
				return err
			}
			if err = SaveConfig(opts.configPath, config); err != nil {
				return err
			}

			// The raw key is shown once and never stored.
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rawKey)
			return err
		},
	}

	cmd.Flags().StringSliceVar(&scopes, "scope", []string{scopeServerRead, scopeServerManage}, "scopes to grant: server:read, server:manage or *")
	cmd.Flags().StringVar(&description, "description", "", "note stored next to the key")
	return cmd
}

func newKeyListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the configured API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := LoadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(config.Server.APIKeys) == 0 {
				_, err = fmt.Fprintln(out, "No API keys configured.")
				return err
			}

			rows := make([][]string, 0, len(config.Server.APIKeys))
			for i, key := range config.Server.APIKeys {
				hash := key.Hash
				if len(hash) > 12 {
					hash = hash[:12]
				}
				rows = append(rows, []string{
					strconv.Itoa(i),
					hash,
					strings.Join(key.Scopes, ","),
					key.Description,
				})
			}
			headers := []string{"#", "HASH", "SCOPES", "DESCRIPTION"}
			return writeLines(out, formatTable(headers, rows, map[int]bool{0: true}, shouldUseColor(out)))
		},
	}
}
