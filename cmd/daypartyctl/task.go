package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dayparty/internal/agenda"
	"dayparty/internal/config"
	"dayparty/internal/model"
)

var (
	addSize int
	addTag  string
	addDate string

	listDate string
	listAll  bool

	setTitle    string
	setSize     int
	setDuration int
	setTag      string
	setDate     string

	clearDate string
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task to a day",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show a day's agenda",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var setCmd = &cobra.Command{
	Use:   "set <task-id>",
	Short: "Edit a task's fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runSet,
}

var startCmd = &cobra.Command{
	Use:   "start <task-id>",
	Short: "Mark a task ongoing (pausing any other ongoing task)",
	Args:  cobra.ExactArgs(1),
	RunE:  statusRunner(model.StatusOngoing),
}

var pauseCmd = &cobra.Command{
	Use:   "pause <task-id>",
	Short: "Pause a task",
	Args:  cobra.ExactArgs(1),
	RunE:  statusRunner(model.StatusPaused),
}

var doneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(1),
	RunE:  statusRunner(model.StatusDone),
}

var deleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every task on a day",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var capacityCmd = &cobra.Command{
	Use:   "capacity [hours]",
	Short: "Show or set the day capacity budget",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCapacity,
}

func init() {
	addCmd.Flags().IntVar(&addSize, "size", 1, "size in 15-minute blocks")
	addCmd.Flags().StringVar(&addTag, "tag", "", "tag key")
	addCmd.Flags().StringVar(&addDate, "date", "", "day (YYYY-MM-DD, default today)")

	listCmd.Flags().StringVar(&listDate, "date", "", "day (YYYY-MM-DD, default today)")
	listCmd.Flags().BoolVar(&listAll, "all", false, "list every day with tasks")

	setCmd.Flags().StringVar(&setTitle, "title", "", "new title")
	setCmd.Flags().IntVar(&setSize, "size", 0, "new size in 15-minute blocks")
	setCmd.Flags().IntVar(&setDuration, "duration", 0, "new duration in minutes")
	setCmd.Flags().StringVar(&setTag, "tag", "", "new tag key")
	setCmd.Flags().StringVar(&setDate, "date", "", "reschedule to day (YYYY-MM-DD)")

	clearCmd.Flags().StringVar(&clearDate, "date", "", "day (YYYY-MM-DD, default today)")
}

func runAdd(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}

	title := strings.Join(args, " ")
	day, err := parseDay(addDate)
	if err != nil {
		return err
	}

	t, ok := store.AddTask(title, addSize, &day, addTag)
	if !ok {
		fmt.Println("not added")
		return nil
	}
	fmt.Printf("added %s (%dm on %s)\n", shortID(t.ID), t.Duration, t.ScheduledAt.Format("2006-01-02"))
	return flushSync(cmd, store)
}

func runList(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}

	if listAll {
		byDate := store.TasksByDate()
		days := make([]time.Time, 0, len(byDate))
		for _, bucket := range byDate {
			if len(bucket) > 0 {
				days = append(days, bucket[0].ScheduledAt)
			}
		}
		sortDays(days)
		for _, day := range days {
			printDay(store, day)
		}
		return nil
	}

	day, err := parseDay(listDate)
	if err != nil {
		return err
	}
	printDay(store, day)
	return nil
}

func printDay(store *agenda.Store, day time.Time) {
	tasks := store.TasksForDate(day)
	total := 0
	for _, t := range tasks {
		if !t.IsGroup && t.TopLevel() {
			total += t.Duration
		}
	}
	fmt.Printf("%s  %dm / %dm\n", day.Format("Mon 2006-01-02"), total, store.DayCapacityHours()*60)
	for _, t := range tasks {
		if !t.TopLevel() {
			continue
		}
		printTask(t, tasks, "  ")
	}
}

func printTask(t model.Task, all []model.Task, indent string) {
	marker := " "
	switch t.Status {
	case model.StatusOngoing:
		marker = ">"
	case model.StatusPaused:
		marker = "="
	case model.StatusDone:
		marker = "x"
	}
	kind := ""
	if t.IsGroup {
		kind = " [group]"
	}
	tag := ""
	if t.TagKey != "" {
		tag = " #" + t.TagKey
	}
	fmt.Printf("%s%s %s  %-30s %4dm%s%s\n", indent, marker, shortID(t.ID), t.Title, t.Duration, tag, kind)
	if t.IsGroup {
		for _, subID := range t.Subtasks {
			for _, sub := range all {
				if sub.ID == subID {
					printTask(sub, all, indent+"    ")
				}
			}
		}
	}
}

func runSet(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	t, err := resolveTask(store, args[0])
	if err != nil {
		return err
	}

	var p agenda.Patch
	if cmd.Flags().Changed("title") {
		p.Title = &setTitle
	}
	if cmd.Flags().Changed("size") {
		p.Size = &setSize
	}
	if cmd.Flags().Changed("duration") {
		p.Duration = &setDuration
	}
	if cmd.Flags().Changed("tag") {
		p.TagKey = &setTag
	}
	if cmd.Flags().Changed("date") {
		day, err := parseDay(setDate)
		if err != nil {
			return err
		}
		p.ScheduledAt = &day
	}

	updated, ok := store.UpdateTask(t.ID, p)
	if !ok {
		fmt.Println("not updated")
		return nil
	}
	fmt.Printf("updated %s\n", shortID(updated.ID))
	return flushSync(cmd, store)
}

func statusRunner(status model.Status) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		t, err := resolveTask(store, args[0])
		if err != nil {
			return err
		}
		st := status
		updated, ok := store.UpdateTask(t.ID, agenda.Patch{Status: &st})
		if !ok {
			fmt.Println("not updated")
			return nil
		}
		fmt.Printf("%s is now %s\n", shortID(updated.ID), updated.Status)
		return flushSync(cmd, store)
	}
}

func runDelete(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	t, err := resolveTask(store, args[0])
	if err != nil {
		return err
	}
	if store.DeleteTask(t.ID) {
		fmt.Printf("deleted %s\n", shortID(t.ID))
	}
	return flushSync(cmd, store)
}

func runClear(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	day, err := parseDay(clearDate)
	if err != nil {
		return err
	}
	n := store.DeleteAllDayTasks(day)
	fmt.Printf("deleted %d task(s) on %s\n", n, day.Format("2006-01-02"))
	return flushSync(cmd, store)
}

func runCapacity(cmd *cobra.Command, args []string) error {
	store, cfg, err := openStore(cmd)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		var hours int
		if _, err := fmt.Sscanf(args[0], "%d", &hours); err != nil || hours <= 0 {
			return fmt.Errorf("invalid hours %q", args[0])
		}
		store.SetDayCapacity(hours)

		// The store only lives for this invocation; the config carries the
		// new capacity to the next one.
		cfg.DayCapacityHours = hours
		if err := saveClientConfig(config.ClientConfigPath(), cfg); err != nil {
			return err
		}
	}
	fmt.Printf("day capacity: %dh\n", store.DayCapacityHours())
	return nil
}

func shortID(id model.TaskID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func sortDays(days []time.Time) {
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
}
