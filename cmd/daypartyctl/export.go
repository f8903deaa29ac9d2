package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"dayparty/internal/agenda"
)

var (
	exportDate  string
	exportOut   string
	exportStart int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a day's agenda as an iCalendar (.ics) feed",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDate, "date", "", "day (YYYY-MM-DD, default today)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
	exportCmd.Flags().IntVar(&exportStart, "start-hour", 9, "hour the first task starts at")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	day, err := parseDay(exportDate)
	if err != nil {
		return err
	}

	ics := agenda.BuildDayCalendarICS(store.TasksForDate(day), day, exportStart, time.Now())
	if exportOut == "" {
		fmt.Print(ics)
		return nil
	}
	if err := os.WriteFile(exportOut, []byte(ics), 0o644); err != nil {
		return err
	}
	fmt.Println(exportOut)
	return nil
}
