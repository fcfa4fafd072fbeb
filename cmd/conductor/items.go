package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/conductor/memory"
)

func newAddCmd(configPath *string) *cobra.Command {
	var project, itemType, itemContext string
	var domains []string

	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Add a learning item",
		Example: `  conductor add --project p1 --type pattern "always run migrations in a transaction"
  conductor add --project p1 --type decision --domains coding,devops "we standardized on sqlite"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.manager()
			if err != nil {
				return err
			}
			item, err := m.AddItem(cmd.Context(), project, memory.ItemType(itemType), args[0], itemContext, domains)
			if err != nil {
				return err
			}
			fmt.Printf("Added %s item %s\n", item.Type, item.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project ID")
	cmd.Flags().StringVarP(&itemType, "type", "t", "pattern", "Item type (pattern, antipattern, decision, invariant, golden_path)")
	cmd.Flags().StringVar(&itemContext, "context", "", "Optional explanatory context")
	cmd.Flags().StringSliceVar(&domains, "domains", nil, "Domain tags")
	cmd.MarkFlagRequired("project")

	return cmd
}

// newItemActionCmd builds the pin/mute/unpin/verify family, which differ
// only in the manager method they call.
func newItemActionCmd(configPath *string, use, short string, action func(*memory.Manager, *cobra.Command, string, string) error) *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   use + " <item-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.manager()
			if err != nil {
				return err
			}
			if err := action(m, cmd, project, args[0]); err != nil {
				return err
			}
			fmt.Printf("Done: %s %s\n", use, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project ID")
	cmd.MarkFlagRequired("project")

	return cmd
}

func newPinCmd(configPath *string) *cobra.Command {
	return newItemActionCmd(configPath, "pin", "Pin an item (always injected, never decayed)",
		func(m *memory.Manager, cmd *cobra.Command, project, id string) error {
			return m.PinItem(cmd.Context(), project, id)
		})
}

func newMuteCmd(configPath *string) *cobra.Command {
	return newItemActionCmd(configPath, "mute", "Mute an item (never surfaced)",
		func(m *memory.Manager, cmd *cobra.Command, project, id string) error {
			return m.MuteItem(cmd.Context(), project, id)
		})
}

func newUnpinCmd(configPath *string) *cobra.Command {
	return newItemActionCmd(configPath, "unpin", "Clear pin and mute",
		func(m *memory.Manager, cmd *cobra.Command, project, id string) error {
			return m.UnpinItem(cmd.Context(), project, id)
		})
}

func newVerifyCmd(configPath *string) *cobra.Command {
	return newItemActionCmd(configPath, "verify", "Mark an item as externally verified",
		func(m *memory.Manager, cmd *cobra.Command, project, id string) error {
			return m.VerifyItem(cmd.Context(), project, id)
		})
}

func newFeedbackCmd(configPath *string) *cobra.Command {
	var project string
	var negative bool

	cmd := &cobra.Command{
		Use:   "feedback <item-id>",
		Short: "Record interaction feedback for an item",
		Example: `  conductor feedback --project p1 item-id
  conductor feedback --project p1 --negative item-id`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.manager()
			if err != nil {
				return err
			}
			if err := m.RecordFeedback(cmd.Context(), project, args[0], !negative); err != nil {
				return err
			}
			fmt.Printf("Feedback recorded for %s (positive=%t)\n", args[0], !negative)
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project ID")
	cmd.Flags().BoolVar(&negative, "negative", false, "Record negative feedback")
	cmd.MarkFlagRequired("project")

	return cmd
}
