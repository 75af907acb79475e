package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bakeline/ordersync/internal/config"
	"github.com/bakeline/ordersync/internal/conn"
	"github.com/bakeline/ordersync/internal/domain"
	"github.com/bakeline/ordersync/internal/engine"
	"github.com/bakeline/ordersync/internal/notify"
)

type cliFlags struct {
	configPath string
	apiURL     string
	socketURL  string
	token      string
	userID     string
	role       string
	branchID   string
	chefID     string
	department string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}
	root := &cobra.Command{
		Use:           "ordersync-watch",
		Short:         "Tail order and production events for one session",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", envOrDefault("ORDERSYNC_CONFIG", "ordersync.yaml"), "config file path")
	root.PersistentFlags().StringVar(&flags.apiURL, "api-url", "", "REST API base URL (overrides config)")
	root.PersistentFlags().StringVar(&flags.socketURL, "socket-url", "", "push-channel URL (overrides config)")
	root.PersistentFlags().StringVar(&flags.token, "token", strings.TrimSpace(os.Getenv("ORDERSYNC_TOKEN")), "API bearer token")
	root.PersistentFlags().StringVar(&flags.userID, "user", strings.TrimSpace(os.Getenv("ORDERSYNC_USER")), "user id")
	root.PersistentFlags().StringVar(&flags.role, "role", envOrDefault("ORDERSYNC_ROLE", "admin"), "session role: admin, branch, chef, production")
	root.PersistentFlags().StringVar(&flags.branchID, "branch", "", "branch id (branch role)")
	root.PersistentFlags().StringVar(&flags.chefID, "chef", "", "chef id (chef role)")
	root.PersistentFlags().StringVar(&flags.department, "department", "", "department id (production role)")
	root.PersistentFlags().BoolVar(&flags.verbose, "verbose", false, "debug logging")

	root.AddCommand(newSnapshotCmd(flags))
	return root
}

func newSnapshotCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot [orderId...]",
		Short: "Fetch the given orders once and print the projection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd.Context(), flags, args)
		},
	}
}

func buildClient(flags *cliFlags, sink notify.Sink) (*engine.Client, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.apiURL != "" {
		cfg.APIBaseURL = flags.apiURL
	}
	if flags.socketURL != "" {
		cfg.SocketURL = flags.socketURL
	}
	if strings.TrimSpace(flags.token) == "" {
		return nil, fmt.Errorf("token is required (--token or ORDERSYNC_TOKEN)")
	}

	level := slog.LevelInfo
	if flags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return engine.NewClient(engine.ClientOptions{
		Config:   cfg,
		APIToken: flags.token,
		Sink:     sink,
		Logger:   logger,
		Session: domain.Session{
			UserID:       flags.userID,
			Role:         domain.Role(flags.role),
			BranchID:     flags.branchID,
			ChefID:       flags.chefID,
			DepartmentID: flags.department,
		},
	})
}

func runWatch(parent context.Context, flags *cliFlags) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := notify.NewChanSink(128)
	client, err := buildClient(flags, sink)
	if err != nil {
		return err
	}
	defer client.Stop()

	client.OnConnState(func(state conn.State) {
		fmt.Printf("-- connection %s\n", state)
	})
	if err := client.Start(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-sink.Notifications():
			fmt.Printf("%s\n", n.Message)
		}
	}
}

func runSnapshot(parent context.Context, flags *cliFlags, orderIDs []string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := buildClient(flags, nil)
	if err != nil {
		return err
	}

	keys := make([]domain.EntityKey, 0, len(orderIDs))
	for _, id := range orderIDs {
		keys = append(keys, domain.EntityKey{Kind: domain.KindOrder, ID: id})
	}
	if err := client.Prime(ctx, keys); err != nil {
		return err
	}
	out, err := json.MarshalIndent(client.Store().Orders(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}
