package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newMemoryCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and edit a user's long-term memory",
	}
	cmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user ID (required)")
	cmd.MarkPersistentFlagRequired("user")

	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "List stored fragments, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.Close()) }()

			store, err := a.registry.GetOrCreate(userID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %d/%d fragments, %d dims\n",
				color.CyanString(userID+":"), store.Len(), store.MaxSize(), store.Dimensions())
			for i, text := range store.Texts() {
				fmt.Fprintf(out, "%4d  %s\n", i, text)
			}
			return nil
		},
	}

	var k int
	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the fragments closest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.Close()) }()

			results, err := a.registry.SearchContext(cmd.Context(), userID, strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "no memories")
			}
			for i, text := range results {
				fmt.Fprintf(out, "%d. %s\n", i+1, text)
			}
			return nil
		},
	}
	search.Flags().IntVarP(&k, "k", "k", 0, "number of results (default $NIM_MEMORY_SEARCH_K)")

	add := &cobra.Command{
		Use:   "add <text>",
		Short: "Store a fragment",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.Close()) }()

			if err := a.registry.AddFragment(cmd.Context(), userID, strings.Join(args, " ")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("stored"))
			return nil
		},
	}

	cmd.AddCommand(inspect, search, add)
	return cmd
}
