package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dayparty/internal/agenda"
	"dayparty/internal/config"
	"dayparty/internal/ops"
	"dayparty/internal/remote"
)

var (
	syncWatch bool

	loginEmail string

	backupOut     string
	restoreTarget string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push dirty tasks and pull the server copy",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to a day.party server and store the session token",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Archive the local data directory to a tar.gz",
	Args:  cobra.NoArgs,
	RunE:  runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <archive>",
	Short: "Restore a data directory from a backup archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

func init() {
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "keep syncing in the background until interrupted")
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	backupCmd.Flags().StringVar(&backupOut, "out", "", "output archive path (.tar.gz)")
	restoreCmd.Flags().StringVar(&restoreTarget, "target-dir", "", "restore target directory (default: data dir)")
}

// flushSync pushes any dirty tasks after a mutating command. Sync failures
// never fail the command; the local change already happened.
func flushSync(cmd *cobra.Command, store *agenda.Store) error {
	if err := store.ForceSync(cmd.Context()); err != nil {
		fmt.Fprintln(os.Stderr, "sync:", err)
	}
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	store, cfg, err := openStore(cmd)
	if err != nil {
		return err
	}
	if !cfg.Sync.Enabled || cfg.ServerURL == "" {
		return fmt.Errorf("sync is not configured; set server_url and sync.enabled in %s", config.ClientConfigPath())
	}

	if !syncWatch {
		if err := store.ForceSync(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("synced")
		return nil
	}

	ctx := cmd.Context()
	store.StartAutoSync(ctx, time.Duration(cfg.Sync.IntervalMinutes)*time.Minute)
	fmt.Printf("watching, syncing every %dm (ctrl-c to stop)\n", cfg.Sync.IntervalMinutes)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfgPath := config.ClientConfigPath()
	cfg, err := config.LoadClient(cfgPath)
	if err != nil {
		return err
	}
	if cfg.ServerURL == "" {
		return fmt.Errorf("set server_url in %s first", cfgPath)
	}

	email := strings.TrimSpace(loginEmail)
	if email == "" {
		fmt.Print("email: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return err
		}
		email = strings.TrimSpace(line)
	}

	client := remote.NewClient(cfg.ServerURL, "")
	if err := client.RequestLoginLink(cmd.Context(), email); err != nil {
		return err
	}
	fmt.Println("check your inbox, then paste the token from the link:")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return err
	}

	token, err := client.VerifyLoginLink(cmd.Context(), strings.TrimSpace(line))
	if err != nil {
		return err
	}

	cfg.Token = token
	if err := saveClientConfig(cfgPath, cfg); err != nil {
		return err
	}
	fmt.Println("signed in")
	return nil
}

func saveClientConfig(path string, cfg *config.ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return config.SaveClient(path, cfg)
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadClient(config.ClientConfigPath())
	if err != nil {
		return err
	}
	out := backupOut
	if out == "" {
		ts := time.Now().UTC().Format("20060102T150405Z")
		out = filepath.Join("backups", "dayparty-"+ts+".tar.gz")
	}
	if err := ops.BackupDataDir(cfg.DataDir, out); err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadClient(config.ClientConfigPath())
	if err != nil {
		return err
	}
	target := restoreTarget
	if target == "" {
		target = cfg.DataDir
	}

	m, err := ops.ReadManifest(args[0])
	if err != nil {
		return fmt.Errorf("not a dayparty backup: %w", err)
	}
	if err := ops.RestoreDataDir(args[0], target); err != nil {
		return err
	}
	fmt.Printf("restored %d file(s) from %s into %s\n", m.FileCount, m.CreatedAt.Format("2006-01-02 15:04 MST"), target)
	return nil
}
