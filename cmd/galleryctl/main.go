package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/sakhistudio/gallery-service/internal/catalog"
	"github.com/sakhistudio/gallery-service/internal/config"
	"github.com/sakhistudio/gallery-service/internal/database"
	"github.com/sakhistudio/gallery-service/internal/model"
	"github.com/sakhistudio/gallery-service/internal/queue"
	"github.com/sakhistudio/gallery-service/internal/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "galleryctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "galleryctl",
		Short:        "Gallery service administration CLI",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newAdminCmd(),
		newImagesCmd(),
		newCleanupCmd(),
	)
	return cmd
}

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin role assignments",
	}
	cmd.AddCommand(newAdminGrantCmd(), newAdminRevokeCmd(), newAdminShowCmd())
	return cmd
}

func newAdminGrantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant <email>",
		Short: "Grant the admin role to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(cmd.Context(), func(ctx context.Context, users *repository.UserRepository) error {
				user, err := users.GetByEmail(ctx, args[0])
				if err != nil {
					return fmt.Errorf("look up user: %w", err)
				}
				if err := users.SetRole(ctx, user.ID, model.RoleAdmin); err != nil {
					return fmt.Errorf("set role: %w", err)
				}
				fmt.Printf("granted admin to %s\n", user.Email)
				return nil
			})
		},
	}
}

func newAdminRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <email>",
		Short: "Revoke the admin role from a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(cmd.Context(), func(ctx context.Context, users *repository.UserRepository) error {
				user, err := users.GetByEmail(ctx, args[0])
				if err != nil {
					return fmt.Errorf("look up user: %w", err)
				}
				if err := users.ClearRole(ctx, user.ID); err != nil {
					return fmt.Errorf("clear role: %w", err)
				}
				fmt.Printf("revoked admin from %s\n", user.Email)
				return nil
			})
		},
	}
}

func newAdminShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <email>",
		Short: "Show the role assigned to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(cmd.Context(), func(ctx context.Context, users *repository.UserRepository) error {
				user, err := users.GetByEmail(ctx, args[0])
				if err != nil {
					return fmt.Errorf("look up user: %w", err)
				}
				role, err := users.Role(ctx, user.ID)
				if errors.Is(err, repository.ErrNotFound) {
					fmt.Printf("%s has no role\n", user.Email)
					return nil
				}
				if err != nil {
					return fmt.Errorf("look up role: %w", err)
				}
				fmt.Printf("%s: %s\n", user.Email, role)
				return nil
			})
		},
	}
}

func newImagesCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "images",
		Short: "List gallery image records",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			pool, err := database.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			images, err := repository.NewImageRepository(pool).List(ctx)
			if err != nil {
				return fmt.Errorf("list images: %w", err)
			}
			if category != "" {
				images = catalog.Filter(images, model.Category(category))
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tFEATURED\tUPLOADED")
			for _, img := range images {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n",
					img.ID, img.Title, img.Category, img.Featured,
					img.UploadedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "Filter by category (Blouses, Dresses, Embroidery, Gowns, Wedding)")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <object-key>",
		Short: "Enqueue a storage cleanup task for an orphaned object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			client := queue.NewClient(asynq.NewClient(asynq.RedisClientOpt{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}))
			defer client.Close()

			if err := client.EnqueueCleanup(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("enqueue cleanup: %w", err)
			}
			fmt.Printf("cleanup enqueued for %s\n", args[0])
			return nil
		},
	}
}

func withUsers(ctx context.Context, fn func(context.Context, *repository.UserRepository) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, repository.NewUserRepository(pool))
}
