// daypartyctl is the command-line agenda client. All task state lives in
// local JSON files; a configured server is only ever touched by the sync
// engine, never by a task command itself.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dayparty/internal/agenda"
	"dayparty/internal/config"
	"dayparty/internal/daykey"
	"dayparty/internal/model"
	"dayparty/internal/remote"
)

var rootCmd = &cobra.Command{
	Use:   "daypartyctl",
	Short: "day.party agenda client",
	Long: `daypartyctl plans one day at a time: tasks in 15-minute blocks,
a capacity budget per day, and at most one thing ongoing.
State is stored as JSON under ~/.dayparty/ and optionally synced
to a day.party server in the background.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(doneCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(ungroupCmd)
	rootCmd.AddCommand(capacityCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

// openStore loads the client config and builds an initialized store. The
// confirmer asks on the terminal when a day would run over its budget.
func openStore(cmd *cobra.Command) (*agenda.Store, *config.ClientConfig, error) {
	cfg, err := config.LoadClient(config.ClientConfigPath())
	if err != nil {
		return nil, nil, err
	}

	storage, err := agenda.NewFileStorage(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	var rem agenda.Remote
	if cfg.Sync.Enabled && cfg.ServerURL != "" {
		rem = remote.NewClient(cfg.ServerURL, cfg.Token)
	}

	store := agenda.NewStore(agenda.Options{
		Storage:          storage,
		Remote:           rem,
		Logger:           log.New(os.Stderr, "", 0),
		Confirm:          terminalConfirm,
		DayCapacityHours: cfg.DayCapacityHours,
	})
	store.Initialize(cmd.Context())
	return store, cfg, nil
}

func terminalConfirm(p agenda.CapacityPrompt) bool {
	fmt.Fprintf(os.Stderr, "%q would put %s at %dm of %dm. Schedule it for the next day instead? [y/N] ",
		p.Title, p.Day.Format("2006-01-02"), p.TotalMinutes, p.CapacityMinutes)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// resolveTask finds a single task whose id starts with the given prefix.
func resolveTask(store *agenda.Store, prefix string) (model.Task, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return model.Task{}, fmt.Errorf("task id is required")
	}

	var matches []model.Task
	for _, bucket := range store.TasksByDate() {
		for _, t := range bucket {
			if strings.HasPrefix(string(t.ID), prefix) {
				matches = append(matches, t)
			}
		}
	}
	switch len(matches) {
	case 0:
		return model.Task{}, fmt.Errorf("no task matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return model.Task{}, fmt.Errorf("%d tasks match %q, be more specific", len(matches), prefix)
	}
}

// parseDay accepts YYYY-MM-DD in local time; empty means today.
func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return daykey.Midnight(time.Now()), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}
