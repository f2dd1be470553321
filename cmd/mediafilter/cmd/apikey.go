package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/mediafilter/internal/core/auth"
	"github.com/solatis/mediafilter/internal/core/config"
	"github.com/solatis/mediafilter/internal/core/db"
	"github.com/solatis/mediafilter/internal/types"
)

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apiKeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue an API key for a tenant",
	RunE:  runAPIKeyCreate,
}

var apiKeyRevokeCmd = &cobra.Command{
	Use:   "revoke <api-key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyRevoke,
}

func init() {
	rootCmd.AddCommand(apiKeyCmd)
	apiKeyCmd.AddCommand(apiKeyCreateCmd, apiKeyRevokeCmd)
	apiKeyCmd.PersistentFlags().String("data-dir", "./data", "directory for the default SQLite database")

	apiKeyCreateCmd.Flags().String("tenant", "", "tenant the key authenticates as")
	apiKeyCreateCmd.Flags().String("name", "", "human readable key name")
	apiKeyCreateCmd.Flags().String("secret-id", "", "HMAC secret to sign with (required when several are configured)")
	_ = apiKeyCreateCmd.MarkFlagRequired("tenant")
}

// openAuthenticator opens and migrates the database and builds an
// authenticator over the configured secrets.
func openAuthenticator(cmd *cobra.Command) (*auth.Authenticator, map[string][]byte, func(), error) {
	cfg, err := config.LoadConfigWithFlags(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	secrets, err := config.HMACSecrets()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return nil, nil, nil, fmt.Errorf("no HMAC secrets configured (set MF_HMAC_SECRET environment variable)")
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	closeDB := func() { database.Close() }
	if err := db.MigrateUp(database); err != nil {
		closeDB()
		return nil, nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		closeDB()
		return nil, nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return auth.NewAuthenticator(secrets, queries, logger.Named("auth")), secrets, closeDB, nil
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	authenticator, secrets, closeDB, err := openAuthenticator(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	tenant, _ := cmd.Flags().GetString("tenant")
	name, _ := cmd.Flags().GetString("name")
	secretID, _ := cmd.Flags().GetString("secret-id")
	if secretID == "" {
		if len(secrets) > 1 {
			ids := make([]string, 0, len(secrets))
			for id := range secrets {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			return fmt.Errorf("--secret-id required, configured secrets: %v", ids)
		}
		for id := range secrets {
			secretID = id
		}
	}

	apiKeyID, apiKey, err := authenticator.IssueAPIKey(cmd.Context(), types.TenantID(tenant), name, secretID)
	if err != nil {
		return err
	}

	logger.Info("api key issued", zap.String("api_key_id", apiKeyID), zap.String("tenant_id", tenant))
	fmt.Fprintf(cmd.OutOrStdout(), "id:  %s\nkey: %s\n", apiKeyID, apiKey)
	return nil
}

func runAPIKeyRevoke(cmd *cobra.Command, args []string) error {
	authenticator, _, closeDB, err := openAuthenticator(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := authenticator.RevokeAPIKey(cmd.Context(), args[0]); err != nil {
		return err
	}
	logger.Info("api key revoked", zap.String("api_key_id", args[0]))
	return nil
}
