package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"raceline/internal/app"
	"raceline/internal/contract"
	"raceline/internal/types"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}
	cmd.AddCommand(userListCmd())
	cmd.AddCommand(userCreateCmd())
	cmd.AddCommand(userLoginCmd())
	return cmd
}

func userListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				users := a.Engine.Repos.Users
				list, err := users.All(ctx)
				if role != "" {
					list, err = users.ByRole(ctx, types.RoleName(role))
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(list)
				}
				tw := newTable("ID", "Name", "Email", "Role")
				for _, u := range list {
					tw.AppendRow(table.Row{u.ID(), u.Name(), u.Email(), u.RoleName()})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role filter")
	return cmd
}

func userCreateCmd() *cobra.Command {
	var name, email, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user; the password is read from RACELINE_PASSWORD",
		RunE: func(cmd *cobra.Command, args []string) error {
			roleName, err := types.ParseRoleName(role)
			if err != nil {
				return fmt.Errorf("--role: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				r, ok, err := a.Engine.Repos.Roles.FindByName(ctx, roleName)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("role %s is not seeded", roleName)
				}
				u, err := a.Engine.CreateUser(ctx, contract.Attributes{
					"name": name, "email": email, "role_id": r.ID(), "password": viper.GetString("password"),
				}, actorID())
				if err != nil {
					return err
				}
				return printJSON(u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", "", "role name, e.g. jury_president")
	return cmd
}

func userLoginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check credentials and print the user id to use as --actor-id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				u, err := a.Engine.Authenticate(ctx, email, viper.GetString("password"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(u)
				}
				fmt.Printf("%d\n", u.ID())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}
