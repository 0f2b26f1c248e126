// Command corefs-vkey creates, inspects, and rotates a bucket's volume
// encryption key.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/s3fuse/corefs/internal/bootstrap"
	"github.com/s3fuse/corefs/internal/config"
	"github.com/s3fuse/corefs/internal/storage/s3"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "corefs-vkey",
		Short: "Manage a bucket's volume encryption key",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")

	root.AddCommand(createCmd(&configPath), rotateCmd(&configPath), statusCmd(&configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "corefs-vkey:", err)
		os.Exit(1)
	}
}

func createCmd(configPath *string) *cobra.Command {
	var passphrase string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Generate and store a new volume key for the bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, backend, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer backend.Close()

			wrapKey, err := bootstrap.DeriveWrapKey(cfg, passphrase)
			if err != nil {
				return err
			}
			manager := bootstrap.NewVolumeKeyManager(backend, cfg, wrapKey)
			if _, err := manager.Load(ctx); err == nil {
				return fmt.Errorf("a volume key already exists for this bucket")
			}
			if _, err := manager.Create(ctx); err != nil {
				return fmt.Errorf("creating volume key: %w", err)
			}
			fmt.Println("volume key created")
			return nil
		},
	}
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "wrap-key passphrase")
	return cmd
}

func rotateCmd(configPath *string) *cobra.Command {
	var oldPassphrase, newPassphrase string
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Re-wrap the volume key under a new passphrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, backend, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer backend.Close()

			oldWrapKey, err := bootstrap.DeriveWrapKey(cfg, oldPassphrase)
			if err != nil {
				return err
			}
			newWrapKey, err := bootstrap.DeriveWrapKey(cfg, newPassphrase)
			if err != nil {
				return err
			}
			manager := bootstrap.NewVolumeKeyManager(backend, cfg, oldWrapKey)
			if err := manager.Rotate(ctx, newWrapKey); err != nil {
				return fmt.Errorf("rotating volume key: %w", err)
			}
			fmt.Println("volume key rotated")
			return nil
		},
	}
	cmd.Flags().StringVar(&oldPassphrase, "old-passphrase", "", "current wrap-key passphrase")
	cmd.Flags().StringVar(&newPassphrase, "new-passphrase", "", "new wrap-key passphrase")
	return cmd
}

func statusCmd(configPath *string) *cobra.Command {
	var passphrase string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether a volume key exists and unlocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, backend, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer backend.Close()

			wrapKey, err := bootstrap.DeriveWrapKey(cfg, passphrase)
			if err != nil {
				return err
			}
			manager := bootstrap.NewVolumeKeyManager(backend, cfg, wrapKey)
			if _, err := manager.Load(ctx); err != nil {
				fmt.Printf("volume key object %q: not present or did not unlock (%v)\n", cfg.Security.Encryption.VolumeKeyID, err)
				return nil
			}
			fmt.Printf("volume key object %q: present and unlocks with the given passphrase\n", cfg.Security.Encryption.VolumeKeyID)
			return nil
		},
	}
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "wrap-key passphrase")
	return cmd
}

func setup(configPath string) (*config.Configuration, *s3.Backend, error) {
	cfg, err := bootstrap.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	backend, err := bootstrap.BuildBackend(context.Background(), cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to bucket: %w", err)
	}
	return cfg, backend, nil
}

