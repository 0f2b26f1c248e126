// Command corefs-mount mounts an object storage bucket as a local FUSE
// filesystem.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/s3fuse/corefs/internal/bootstrap"
	"github.com/s3fuse/corefs/internal/config"
	"github.com/s3fuse/corefs/internal/fuse"
	"github.com/s3fuse/corefs/internal/health"
	"github.com/s3fuse/corefs/internal/storage/s3"
)

func main() {
	var (
		configPath string
		readOnly   bool
		allowOther bool
		foreground bool
		passphrase string
	)

	root := &cobra.Command{
		Use:   "corefs-mount <mountpoint>",
		Short: "Mount an object storage bucket as a local filesystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mountPoint := args[0]

			cfg, err := bootstrap.LoadConfig(configPath)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			backend, err := bootstrap.BuildBackend(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connecting to bucket: %w", err)
			}
			defer backend.Close()

			var volumeKey []byte
			if cfg.Security.Encryption.UseEncryption {
				volumeKey, err = unlockVolumeKey(ctx, backend, cfg, passphrase)
				if err != nil {
					return fmt.Errorf("unlocking volume key: %w", err)
				}
			}

			logger, err := bootstrap.NewLogger(cfg, "corefs-mount")
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			defer logger.Close()

			fsConfig := &fuse.Config{
				MountPoint:       mountPoint,
				ReadOnly:         readOnly,
				AllowOther:       allowOther,
				DefaultUID:       uint32(os.Getuid()),
				DefaultGID:       uint32(os.Getgid()),
				LocalDir:         cfg.LocalStore.Directory,
				PersistOnRelease: cfg.LocalStore.PersistOnRelease,
				Concurrency:      cfg.Performance.MaxConcurrency,
				Logger:           logger,
			}

			filesystem, err := fuse.NewFileSystem(backend, fsConfig)
			if err != nil {
				return fmt.Errorf("building filesystem: %w", err)
			}
			if volumeKey != nil {
				filesystem.SetVolumeKey(volumeKey)
			}

			mountConfig := &fuse.MountConfig{
				MountPoint: mountPoint,
				Options: &fuse.MountOptions{
					ReadOnly:     readOnly,
					AllowOther:   allowOther,
					DefaultPerms: true,
					FSName:       "corefs",
					Subtype:      cfg.Bucket.Service,
				},
				Permissions: &fuse.Permissions{
					UID:      fsConfig.DefaultUID,
					GID:      fsConfig.DefaultGID,
					FileMode: 0644,
					DirMode:  0755,
				},
			}
			manager := fuse.NewMountManager(filesystem, mountConfig)

			if cfg.Monitoring.HealthChecks.Enabled {
				monitor, err := startHealthMonitor(ctx, backend, cfg)
				if err != nil {
					logger.Warnf("health monitor disabled: %v", err)
				} else {
					defer monitor.Stop()
				}
			}

			if err := manager.Mount(ctx); err != nil {
				return fmt.Errorf("mounting: %w", err)
			}
			logger.Infof("corefs mounted at %s", mountPoint)

			if !foreground {
				manager.Wait()
				return nil
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-sigCh:
			case <-ctx.Done():
			}
			return manager.Unmount()
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file")
	root.Flags().BoolVar(&readOnly, "read-only", false, "mount read-only")
	root.Flags().BoolVar(&allowOther, "allow-other", false, "allow other users to access the mount")
	root.Flags().BoolVarP(&foreground, "foreground", "f", false, "stay attached and unmount on SIGINT/SIGTERM")
	root.Flags().StringVar(&passphrase, "passphrase", "", "volume key passphrase (unused when a volume key file is configured)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "corefs-mount:", err)
		os.Exit(1)
	}
}

// unlockVolumeKey derives the bucket's wrap key (from a passphrase or a
// local key file) and loads the existing volume-key object, creating one
// if this is the bucket's first mount with encryption enabled.
func unlockVolumeKey(ctx context.Context, backend *s3.Backend, cfg *config.Configuration, passphrase string) ([]byte, error) {
	wrapKey, err := bootstrap.DeriveWrapKey(cfg, passphrase)
	if err != nil {
		return nil, err
	}

	manager := bootstrap.NewVolumeKeyManager(backend, cfg, wrapKey)
	dataKey, err := manager.Load(ctx)
	if err == nil {
		return dataKey, nil
	}
	return manager.Create(ctx)
}

// backendHealthComponent adapts *s3.Backend to health.HealthyComponent.
type backendHealthComponent struct {
	backend *s3.Backend
	name    string
}

func (c *backendHealthComponent) HealthCheck(ctx context.Context) error {
	return c.backend.HealthCheck(ctx)
}
func (c *backendHealthComponent) GetComponentName() string { return c.name }
func (c *backendHealthComponent) GetComponentType() string { return "storage_backend" }

func startHealthMonitor(ctx context.Context, backend *s3.Backend, cfg *config.Configuration) (*health.Monitor, error) {
	monitor, err := health.NewMonitor(&health.MonitorConfig{
		Enabled:            true,
		MonitorInterval:    cfg.Monitoring.HealthChecks.Interval,
		AlertingEnabled:    false,
		ReportingEnabled:   false,
		MetricsIntegration: cfg.Monitoring.Metrics.Enabled,
		LoggingIntegration: cfg.Monitoring.Logging.Structured,
	})
	if err != nil {
		return nil, err
	}
	if err := monitor.RegisterComponent(&backendHealthComponent{backend: backend, name: cfg.Bucket.Name}); err != nil {
		return nil, err
	}
	if err := monitor.Start(ctx); err != nil {
		return nil, err
	}
	return monitor, nil
}
