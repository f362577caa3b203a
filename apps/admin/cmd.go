package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/sciencequest/core/school"
	"github.com/trezcool/sciencequest/core/user"
	"github.com/trezcool/sciencequest/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	gooseRunFunc     database.GooseRunFunc // mockable; nil runs goose

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	usrRepo user.Repository
	usrSvc  user.Service
	schSvc  *school.Service
	out     io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "ScienceQuest operations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	migrateCmd := &cobra.Command{
		Use:   "migrate <command> [args]",
		Short: "Run a goose command (up, up-to, down, down-to, redo, reset, status, version, create, fix)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.migrate(args)
		},
	}

	addUserCmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create an admin account, or promote an existing one. The password is prompted next.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			uname, _ := cmd.Flags().GetString("username")
			email, _ := cmd.Flags().GetString("email")
			if uname == "" && email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), name, uname, email, pwd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %q saved (id %s)\n", usr.Name, usr.ID)
			return nil
		},
	}
	addUserCmd.Flags().String("name", "Administrador", "Display name")
	addUserCmd.Flags().String("username", "", "Username")
	addUserCmd.Flags().String("email", "", "E-mail")

	resetPasswordCmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted next.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			uname, _ := cmd.Flags().GetString("username")
			if uname == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.resetPassword(cmd.Context(), uname, pwd)
		},
	}
	resetPasswordCmd.Flags().String("username", "", "The user's username or email")

	approveCmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve a pending teacher account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			uname, _ := cmd.Flags().GetString("username")
			if uname == "" {
				_ = cmd.Usage()
				return errHelp
			}
			usr, err := cli.approve(cmd.Context(), uname)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "teacher %q approved\n", usr.Name)
			return nil
		},
	}
	approveCmd.Flags().String("username", "", "The teacher's e-mail")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the bundled cities and schools (existing ones are kept)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cities, schools, err := cli.seed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d cities and %d schools created\n", cities, schools)
			return nil
		},
	}

	root.AddCommand(migrateCmd, addUserCmd, resetPasswordCmd, approveCmd, seedCmd)
	return root
}

func (cli *commandLine) promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter password:")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		_ = cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if cli.out == nil {
		cli.out = os.Stdout
	}
	root := cli.rootCmd()
	root.SetArgs(args[1:])
	return root.Execute()
}
