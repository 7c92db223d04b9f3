package main

import (
	"encoding/json"
	"fmt"
	"os"

	"assistctl/internal/adminapi"

	"github.com/spf13/cobra"
)

// getAdminClient creates an Orchestrator admin client from environment variables.
func getAdminClient() (*adminapi.Client, error) {
	baseURL := os.Getenv("ORCHESTRATOR_URL")
	adminToken := os.Getenv("ADMIN_TOKEN")

	if baseURL == "" {
		return nil, fmt.Errorf("ORCHESTRATOR_URL environment variable is required")
	}
	if adminToken == "" {
		return nil, fmt.Errorf("ADMIN_TOKEN environment variable is required")
	}

	return adminapi.NewClient(baseURL, adminToken), nil
}

// orgsCmd returns the orgs subcommand for managing org configurations.
func orgsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orgs",
		Short: "Manage organization configurations",
		Long:  `Create, inspect, soft-delete and restore per-organization assistant configurations.`,
	}

	cmd.AddCommand(orgsGetCmd())
	cmd.AddCommand(orgsApplyCmd())
	cmd.AddCommand(orgsDeleteCmd())
	cmd.AddCommand(orgsRestoreCmd())

	return cmd
}

func orgsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <org-id>",
		Short: "Show one org configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getAdminClient()
			if err != nil {
				return err
			}
			raw, err := client.GetOrg(args[0])
			if err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
}

func orgsApplyCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or replace an org configuration from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getAdminClient()
			if err != nil {
				return err
			}
			body, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading config file: %w", err)
			}
			raw, err := client.UpsertOrg(body)
			if err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the org config JSON document (required)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func orgsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <org-id>",
		Short: "Soft-delete an org configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getAdminClient()
			if err != nil {
				return err
			}
			if err := client.DeleteOrg(args[0]); err != nil {
				return err
			}
			fmt.Printf("org %s deactivated\n", args[0])
			return nil
		},
	}
}

func orgsRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <org-id>",
		Short: "Restore a soft-deleted org configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getAdminClient()
			if err != nil {
				return err
			}
			if err := client.RestoreOrg(args[0]); err != nil {
				return err
			}
			fmt.Printf("org %s restored\n", args[0])
			return nil
		},
	}
}

// statusCmd returns the status subcommand for service inspection.
func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Inspect orchestrator status",
	}

	cmd.AddCommand(statusProvidersCmd())
	cmd.AddCommand(statusUsageCmd())

	return cmd
}

func statusProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Show LLM provider health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getAdminClient()
			if err != nil {
				return err
			}
			raw, err := client.ProviderStatus()
			if err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
}

func statusUsageCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "usage <org-id>",
		Short: "Show today's usage counters for an org",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := getAdminClient()
			if err != nil {
				return err
			}
			raw, err := client.Usage(args[0], userID)
			if err != nil {
				return err
			}
			return printJSON(raw)
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "also include one user's counter")
	return cmd
}

func printJSON(raw json.RawMessage) error {
	var buf interface{}
	if err := json.Unmarshal(raw, &buf); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	pretty, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}
