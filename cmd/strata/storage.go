package main

import (
	"fmt"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/presentation/tui"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/spf13/cobra"
)

func newFacilityCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facility",
		Short: "Manage storage facilities",
	}

	var info domain.FacilityInfo
	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a facility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *strata.App) error {
				item, err := app.Storage.CreateFacility(cmd.Context(), args[0], info)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), item.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&info.Phone, "phone", "", "Phone number")
	add.Flags().StringVar(&info.Email, "email", "", "Email address")
	add.Flags().StringVar(&info.Address.Street, "street", "", "Street address")
	add.Flags().StringVar(&info.Address.City, "city", "", "City")
	add.Flags().StringVar(&info.Address.Zip, "zip", "", "Postal code")
	add.Flags().StringVar(&info.Address.Country, "country", "", "Country")

	list := &cobra.Command{
		Use:   "list",
		Short: "List facilities with usage, samples and capacity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *strata.App) error {
				rows, err := app.Storage.ListFacilities(cmd.Context())
				if err != nil {
					return err
				}
				return tui.Print(cmd.OutOrStdout(), tui.FacilitiesMarkdown(rows))
			})
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func newContainerCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "container",
		Short: "Manage containers and sample boxes",
	}

	var (
		rows, columns int
		box           bool
	)
	add := &cobra.Command{
		Use:   "add <parent-id> <title>",
		Short: "Create a container (or a sample box with --box) below a parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := domain.KindContainer
			if box {
				kind = domain.KindSamplesContainer
			}
			return o.withApp(cmd, func(app *strata.App) error {
				item, err := app.Storage.CreateContainer(cmd.Context(), args[0], kind, args[1], rows, columns)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), item.ID)
				return nil
			})
		},
	}
	add.Flags().IntVar(&rows, "rows", 1, "Grid rows")
	add.Flags().IntVar(&columns, "columns", 1, "Grid columns")
	add.Flags().BoolVar(&box, "box", false, "Create a samples container")

	move := &cobra.Command{
		Use:   "move <id> <new-parent-id>",
		Short: "Move a container into another holder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *strata.App) error {
				return app.Storage.Move(cmd.Context(), args[0], args[1])
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an empty container or facility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *strata.App) error {
				return app.Storage.Delete(cmd.Context(), args[0])
			})
		},
	}

	children := &cobra.Command{
		Use:   "children <id>",
		Short: "List the occupied slots of a holder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *strata.App) error {
				slots, err := app.Storage.Children(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, s := range slots {
					fmt.Fprintf(cmd.OutOrStdout(), "%d:%d\t%s\t%s\t%s\n", s.Row, s.Column, s.Ref.Kind, s.Ref.ID, s.Title)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(add, move, del, children)
	return cmd
}

func newTreeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree [id]",
		Short: "Show the storage tree below an item, or every facility",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var root string
			if len(args) > 0 {
				root = args[0]
			}
			return o.withApp(cmd, func(app *strata.App) error {
				node, err := app.Storage.Tree(cmd.Context(), root)
				if err != nil {
					return err
				}
				return tui.Print(cmd.OutOrStdout(), tui.TreeMarkdown(node))
			})
		},
	}
}
