package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/ponto/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/repository"
)

var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a terminal API key and its stored hash",
	Long: `Prints a new key and the SHA-256 hash stored in terminals.api_key_hash.
With --hash, prints the hash of an existing key instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if existing := mustGetString(cmd, "hash"); existing != "" {
			fmt.Printf("HASH=%s\n", middleware.HashAPIKey(existing))
			return nil
		}

		key, hash, err := middleware.GenerateAPIKey()
		if err != nil {
			return err
		}
		fmt.Printf("KEY=%s\nHASH=%s\n", key, hash)
		return nil
	},
}

var terminalCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Manage kiosk terminals",
}

var terminalCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a kiosk and print its API key",
	Long: `Registers a kiosk at a location. The API key is printed once; only its
hash is stored.

Examples:
  pontoctl terminal create --name "Front door" --location 0e4e8a1c-3b55-4c3b-9c1f-2f0d5b7a9e11`,
	Args: cobra.NoArgs,
	RunE: runTerminalCreate,
}

func init() {
	rootCmd.AddCommand(genkeyCmd)
	rootCmd.AddCommand(terminalCmd)
	terminalCmd.AddCommand(terminalCreateCmd)

	genkeyCmd.Flags().String("hash", "", "Hash an existing key instead of generating one")

	terminalCreateCmd.Flags().String("name", "", "Terminal name")
	terminalCreateCmd.Flags().String("location", "", "Location UUID")
}

func runTerminalCreate(cmd *cobra.Command, _ []string) error {
	name := mustGetString(cmd, "name")
	if name == "" {
		return fmt.Errorf("--name is required")
	}
	locationID, err := uuidFlag(cmd, "location")
	if err != nil {
		return err
	}

	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := repository.NewLocationRepository(e.pool).GetByID(cmd.Context(), locationID); err != nil {
		return err
	}

	key, hash, err := middleware.GenerateAPIKey()
	if err != nil {
		return err
	}

	terminal := &domain.Terminal{
		Name:       name,
		LocationID: locationID,
		APIKeyHash: hash,
		IsActive:   true,
	}
	if err := repository.NewTerminalRepository(e.pool).Create(cmd.Context(), terminal); err != nil {
		return err
	}

	fmt.Printf("TERMINAL_ID=%s\nKEY=%s\n", terminal.ID, key)
	return nil
}
