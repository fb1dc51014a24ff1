package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/deepresearch/config"
	"github.com/mohammad-safakhou/deepresearch/internal/keystore"
	srv "github.com/mohammad-safakhou/deepresearch/internal/server"
)

func main() {
	var root = &cobra.Command{Use: "deepresearch"}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			return srv.Run(cfg)
		},
	}

	var genUser string
	var genkey = &cobra.Command{
		Use:   "genkey",
		Short: "Generate an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if genUser == "" {
				return fmt.Errorf("--user is required")
			}
			cfg := config.LoadConfig(configPath)
			ctx := context.Background()
			var store keystore.Store
			if cfg.Redis.Host != "" {
				client, err := keystore.Conn(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Timeout)
				if err != nil {
					return err
				}
				store = keystore.NewRedis(client)
			} else {
				return fmt.Errorf("genkey requires a redis-backed key store; set redis.host")
			}
			key, err := store.Issue(ctx, genUser)
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}
	genkey.Flags().StringVar(&genUser, "user", "", "user the key belongs to")

	root.AddCommand(serve, genkey)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
