package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var moveCmd = &cobra.Command{
	Use:   "move <task-id> <before-task-id>",
	Short: "Reorder a task within its day",
	Args:  cobra.ExactArgs(2),
	RunE:  runMove,
}

var groupCmd = &cobra.Command{
	Use:   "group <task-id> <target-task-id>",
	Short: "Drop a task onto another, forming or extending a group",
	Args:  cobra.ExactArgs(2),
	RunE:  runGroup,
}

var ungroupCmd = &cobra.Command{
	Use:   "ungroup <task-id>",
	Short: "Pull a subtask back out of its group",
	Args:  cobra.ExactArgs(1),
	RunE:  runUngroup,
}

func runMove(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	active, err := resolveTask(store, args[0])
	if err != nil {
		return err
	}
	over, err := resolveTask(store, args[1])
	if err != nil {
		return err
	}
	if !store.MoveTask(active.ID, over.ID) {
		fmt.Println("not moved")
		return nil
	}
	fmt.Printf("moved %s\n", shortID(active.ID))
	return flushSync(cmd, store)
}

func runGroup(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	active, err := resolveTask(store, args[0])
	if err != nil {
		return err
	}
	target, err := resolveTask(store, args[1])
	if err != nil {
		return err
	}
	group, ok := store.GroupTasks(active.ID, target.ID)
	if !ok {
		fmt.Println("not grouped")
		return nil
	}
	fmt.Printf("grouped under %s (%d subtasks, %dm)\n", shortID(group.ID), len(group.Subtasks), group.Duration)
	return flushSync(cmd, store)
}

func runUngroup(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	sub, err := resolveTask(store, args[0])
	if err != nil {
		return err
	}
	if !store.Ungroup(sub.ID) {
		fmt.Println("not ungrouped")
		return nil
	}
	fmt.Printf("ungrouped %s\n", shortID(sub.ID))
	return flushSync(cmd, store)
}
