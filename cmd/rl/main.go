package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"raceline/internal/app"
	"raceline/internal/contract"
	"raceline/internal/domain"
	"raceline/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:   "rl",
	Short: "Raceline CLI",
	Long: `Raceline keeps the incident records of ski mountaineering races.
- Competition: an event over one or more days, holding races.
- Race: one heat of a race type (Sprint, Vertical, ...) with its course locations.
- Report: what a referee saw, about one bib, optionally at a location.
- Incident: reports grouped for the jury; made official, then decided.
- Event log: every change, view with 'rl log tail'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A workspace .env may carry RACELINE_* settings; the real environment wins.
		path := filepath.Join(viper.GetString("workspace"), ".env")
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("RACELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.Int64("actor-id", 0, "id of the acting user")
	flags.String("db-driver", "", "database driver (sqlite or postgres), overrides raceline.yml")
	flags.String("db-dsn", "", "database dsn, overrides raceline.yml")
	flags.String("log-level", "", "log level, overrides raceline.yml")
	for _, name := range []string{"workspace", "json", "actor-id", "db-driver", "db-dsn", "log-level"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(competitionCmd())
	rootCmd.AddCommand(raceCmd())
	rootCmd.AddCommand(locationCmd())
	rootCmd.AddCommand(athleteCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(incidentCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create raceline.yml and the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			wrote, err := app.Init(workspace)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Engine.Repos.Users.Count(ctx, repo.Criteria{})
				if err != nil {
					return err
				}
				if wrote {
					fmt.Printf("Wrote %s\n", filepath.Join(workspace, "raceline.yml"))
				}
				fmt.Printf("Database ready (%s, %d users)\n", a.DB.Dialect, n)
				if n == 0 {
					fmt.Println("Create the first referee manager with: rl user create --role referee_manager ...")
				}
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "log", Short: "Event log"}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var n int
	var after int64
	var entityKind string
	var entityID int64
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var (
					list []domain.Event
					err  error
				)
				switch {
				case entityID > 0:
					list, err = a.Engine.Repos.Events.ForEntity(ctx, entityKind, entityID)
				case after > 0 || entityKind != "":
					list, err = a.Engine.Repos.Events.EventsAfter(ctx, n, after, entityKind)
				default:
					list, err = a.Engine.Repos.Events.Latest(ctx, n)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(list)
				}
				tw := newTable("ID", "TS", "Type", "Entity", "Actor", "Payload")
				for _, e := range list {
					tw.AppendRow(table.Row{e.ID, e.TS.Format("2006-01-02 15:04:05"), e.Type,
						fmt.Sprintf("%s/%d", e.EntityKind, e.EntityID), optionalID(e.ActorID), e.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().Int64Var(&after, "after", 0, "only events after this id, oldest first")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind filter")
	cmd.Flags().Int64Var(&entityID, "entity-id", 0, "history of one entity (needs --entity-kind)")
	return cmd
}

// --- helpers ---

func overrides() app.Overrides {
	return app.Overrides{
		Driver:   viper.GetString("db-driver"),
		DSN:      viper.GetString("db-dsn"),
		LogLevel: viper.GetString("log-level"),
	}
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(ctx, viper.GetString("workspace"), overrides())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func actorID() int64 { return viper.GetInt64("actor-id") }

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(header))
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printError(err error) {
	var verr *contract.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintf(os.Stderr, "error: invalid %s\n", strings.ReplaceAll(verr.Contract, "_", " "))
		fields := verr.Errors()
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", name, strings.Join(fields[name], ", "))
		}
		return
	}
	fmt.Fprintln(os.Stderr, "error:", err)
}

func optionalID(id int64) string {
	if id == 0 {
		return ""
	}
	return fmt.Sprint(id)
}

// setIf copies a flag into attrs only when the user set it.
func setIf(cmd *cobra.Command, attrs contract.Attributes, flag, key string, value any) {
	if cmd.Flags().Changed(flag) {
		attrs[key] = value
	}
}
