package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spec-kit/service-ticket/internal/domain"
	"github.com/spec-kit/service-ticket/internal/service"
	"github.com/spec-kit/service-ticket/internal/workflow"
)

var (
	exportStatus string
	exportOut    string
	importActor  string
	newUser      struct {
		username string
		email    string
		password string
		role     string
	}
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the schema to the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			if err := rt.store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema up to date (%s)\n", ok(), rt.store.Driver)
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tickets of one status as CSV",
	Long: `Export writes every ticket with the given status (PENDING by default)
as CSV. Without --out the CSV is written to stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status domain.TicketStatus
		if exportStatus != "" {
			parsed, err := domain.ParseTicketStatus(exportStatus)
			if err != nil {
				return err
			}
			status = parsed
		}
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			var w io.Writer = cmd.OutOrStdout()
			summary := cmd.ErrOrStderr()
			if exportOut != "" {
				f, err := os.Create(exportOut)
				if err != nil {
					return fmt.Errorf("create %s: %w", exportOut, err)
				}
				defer f.Close()
				w = f
				summary = cmd.OutOrStdout()
			}
			count, err := rt.csv.Export(cmd.Context(), w, status)
			if err != nil {
				return err
			}
			fmt.Fprintf(summary, "%s exported %d tickets\n", ok(), count)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Apply status updates from a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			actor := importActor
			if actor == "" {
				actor = cfg.Tickets.SystemActorID
			}
			result, err := rt.csv.ImportFile(cmd.Context(), args[0], actor)
			if err != nil {
				return err
			}
			printImportResult(cmd.OutOrStdout(), result)
			return nil
		})
	},
}

var automateCmd = &cobra.Command{
	Use:   "automate",
	Short: "Run the automated status sweep once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			result, err := rt.automation.Run(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s processed %d tickets, updated %d\n", ok(), result.Processed, result.Updated)
			if result.Failed > 0 {
				fmt.Fprintf(out, "%s %d updates failed, see logs\n", warn(), result.Failed)
			}
			return nil
		})
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user account",
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := domain.ParseUserRole(newUser.role)
		if err != nil {
			return err
		}
		return withRuntime(cmd.Context(), func(rt *runtime) error {
			user, err := rt.auth.CreateUser(cmd.Context(), service.RegisterInput{
				Username: newUser.username,
				Email:    newUser.email,
				Password: newUser.password,
				Role:     role,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s created %s %s (%s)\n", ok(), user.Role, user.Username, user.ID)
			return nil
		})
	},
}

var transitionsCmd = &cobra.Command{
	Use:   "transitions",
	Short: "Print the ticket status transition table",
	Run: func(cmd *cobra.Command, args []string) {
		printTransitions(cmd.OutOrStdout())
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportStatus, "status", "s", "", "status to export (default PENDING)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write CSV to this file instead of stdout")

	importCmd.Flags().StringVar(&importActor, "actor", "", "user ID recorded as the actor (default system actor)")

	userCreateCmd.Flags().StringVar(&newUser.username, "username", "", "login name")
	userCreateCmd.Flags().StringVar(&newUser.email, "email", "", "email address")
	userCreateCmd.Flags().StringVar(&newUser.password, "password", "", "initial password")
	userCreateCmd.Flags().StringVar(&newUser.role, "role", string(domain.UserRoleAssociate), "ASSOCIATE or MANAGER")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")
	userCmd.AddCommand(userCreateCmd)
}

func printImportResult(w io.Writer, result *service.ImportResult) {
	fmt.Fprintf(w, "%s processed %d rows, updated %d\n", ok(), result.Processed, result.Updated)
	if len(result.Errors) == 0 {
		return
	}
	fmt.Fprintf(w, "%s %d rows rejected\n", warn(), len(result.Errors))
	for _, rowErr := range result.Errors {
		fmt.Fprintf(w, "  row %d: %s\n", rowErr.Row, rowErr.Error)
	}
}

func printTransitions(w io.Writer) {
	fmt.Fprintf(w, "initial: %s\n", workflow.InitialStatus())
	for _, status := range domain.TicketStatuses {
		next := workflow.AllowedTransitions(status)
		targets := make([]string, 0, len(next))
		for _, to := range next {
			targets = append(targets, string(to))
		}
		if len(targets) == 0 {
			fmt.Fprintf(w, "  %-9s -> %s\n", status, color.New(color.FgYellow).Sprint("(terminal)"))
			continue
		}
		fmt.Fprintf(w, "  %-9s -> %s\n", status, strings.Join(targets, ", "))
	}
}

func ok() string {
	return color.New(color.FgGreen).Sprint("✓")
}

func warn() string {
	return color.New(color.FgYellow).Sprint("!")
}
