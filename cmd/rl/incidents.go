package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"raceline/internal/app"
	"raceline/internal/contract"
	"raceline/internal/types"
)

func athleteCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "athlete", Short: "Manage athletes and start lists"}
	cmd.AddCommand(athleteImportCmd())
	return cmd
}

func athleteImportCmd() *cobra.Command {
	var raceID int64
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Enter athletes into a race from a JSON or CSV start list",
		Long: `The file holds one row per athlete with bib_number, first_name, last_name,
gender, country and optionally license_number. A JSON file is an array of
objects; a CSV file has those names as its header. Bad rows are reported and
the others are imported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readRows(file)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Engine.ImportAthletes(ctx, contract.Attributes{"race_id": raceID, "athletes": rows}, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Imported %d of %d athletes into race %d\n", len(res.Imported), len(rows), raceID)
				if len(res.Failures) > 0 {
					tw := newTable("Row", "Bib", "Problems")
					for _, f := range res.Failures {
						tw.AppendRow(table.Row{f.Row, f.Bib, strings.Join(f.Messages, "; ")})
					}
					tw.Render()
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&raceID, "race", 0, "race id")
	cmd.Flags().StringVar(&file, "file", "", "start list (.json or .csv)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readRows loads a start list. CSV cells stay strings; the contracts coerce.
func readRows(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return readCSVRows(f)
	}
	var rows []map[string]any
	if err := json.NewDecoder(f).Decode(&rows); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

func readCSVRows(r io.Reader) ([]map[string]any, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty start list")
	}
	header := records[0]
	rows := make([]map[string]any, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := map[string]any{}
		for i, name := range header {
			if i < len(rec) && strings.TrimSpace(rec[i]) != "" {
				row[strings.TrimSpace(name)] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Manage referee reports"}
	cmd.AddCommand(reportListCmd())
	cmd.AddCommand(reportCreateCmd())
	cmd.AddCommand(reportDeleteCmd())
	return cmd
}

func reportListCmd() *cobra.Command {
	var raceID int64
	var unlinked bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the reports of a race",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				reports := a.Engine.Repos.Reports
				list, err := reports.ByRace(ctx, raceID)
				if unlinked {
					list, err = reports.Unlinked(ctx, raceID)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(list)
				}
				tw := newTable("ID", "Bib", "Incident", "Filed")
				for _, r := range list {
					tw.AppendRow(table.Row{r.ID(), r.BibNumber().Padded(3), optionalID(r.IncidentID()), r.CreatedAt().Format("15:04:05")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&raceID, "race", 0, "race id")
	cmd.Flags().BoolVar(&unlinked, "unlinked", false, "only reports not yet in an incident")
	return cmd
}

func reportCreateCmd() *cobra.Command {
	var raceID, locationID, incidentID int64
	var bib int
	var desc, video string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "File a report as the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs := contract.Attributes{
				"race_id": raceID, "user_id": actorID(), "bib_number": bib, "description": desc,
			}
			setIf(cmd, attrs, "location", "race_location_id", locationID)
			setIf(cmd, attrs, "incident", "incident_id", incidentID)
			setIf(cmd, attrs, "video", "video_url", video)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				r, err := a.Engine.CreateReport(ctx, attrs)
				if err != nil {
					return err
				}
				return printJSON(r)
			})
		},
	}
	cmd.Flags().Int64Var(&raceID, "race", 0, "race id")
	cmd.Flags().IntVar(&bib, "bib", 0, "bib number")
	cmd.Flags().StringVar(&desc, "description", "", "what was seen")
	cmd.Flags().Int64Var(&locationID, "location", 0, "race location id")
	cmd.Flags().Int64Var(&incidentID, "incident", 0, "attach to an existing incident")
	cmd.Flags().StringVar(&video, "video", "", "video link")
	return cmd
}

func reportDeleteCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a report not attached to an incident",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.DeleteReport(ctx, id, actorID()); err != nil {
					return err
				}
				fmt.Printf("Deleted report %d\n", id)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "report id")
	return cmd
}

func incidentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "incident", Short: "Manage incidents"}
	cmd.AddCommand(incidentListCmd())
	cmd.AddCommand(incidentShowCmd())
	cmd.AddCommand(incidentCreateCmd())
	cmd.AddCommand(incidentOfficializeCmd())
	cmd.AddCommand(incidentDecideCmd())
	cmd.AddCommand(incidentDeleteCmd())
	return cmd
}

func incidentListCmd() *cobra.Command {
	var raceID int64
	var pending bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the incidents of a race",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				incidents := a.Engine.Repos.Incidents
				list, err := incidents.ByRace(ctx, raceID)
				if pending {
					list, err = incidents.Pending(ctx, raceID)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(list)
				}
				tw := newTable("ID", "Status", "Decision", "Opened")
				for _, i := range list {
					tw.AppendRow(table.Row{i.ID(), i.Status(), i.Decision(), i.CreatedAt().Format("15:04:05")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&raceID, "race", 0, "race id")
	cmd.Flags().BoolVar(&pending, "pending", false, "only incidents awaiting a decision")
	return cmd
}

func incidentShowCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show an incident with its reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				inc, err := a.Engine.Repos.Incidents.MustFind(ctx, id)
				if err != nil {
					return err
				}
				reports, err := a.Engine.Repos.Reports.ByIncident(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"incident": inc, "reports": reports})
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "incident id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func incidentCreateCmd() *cobra.Command {
	var raceID, locationID int64
	var desc string
	var reports []int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open an incident from reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs := contract.Attributes{"race_id": raceID, "description": desc}
			setIf(cmd, attrs, "location", "race_location_id", locationID)
			setIf(cmd, attrs, "report", "report_ids", reports)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				inc, err := a.Engine.CreateIncident(ctx, attrs, actorID())
				if err != nil {
					return err
				}
				return printJSON(inc)
			})
		},
	}
	cmd.Flags().Int64Var(&raceID, "race", 0, "race id")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().Int64Var(&locationID, "location", 0, "race location id")
	cmd.Flags().Int64SliceVar(&reports, "report", nil, "report ids to attach")
	return cmd
}

func incidentOfficializeCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "officialize",
		Short: "Make an incident official",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				inc, err := a.Engine.OfficializeIncident(ctx, id, actorID())
				if err != nil {
					return err
				}
				return printJSON(inc)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "incident id")
	return cmd
}

func incidentDecideCmd() *cobra.Command {
	var id int64
	var decision, notes string
	var penalty int
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Record the jury decision on an official incident",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := types.ParseDecision(decision)
			if err != nil {
				return fmt.Errorf("--decision: %w", err)
			}
			attrs := contract.Attributes{"id": id, "decision": string(d)}
			setIf(cmd, attrs, "notes", "decision_notes", notes)
			setIf(cmd, attrs, "penalty", "penalty_seconds", penalty)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				inc, err := a.Engine.DecideIncident(ctx, attrs, actorID())
				if err != nil {
					return err
				}
				return printJSON(inc)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "incident id")
	cmd.Flags().StringVar(&decision, "decision", "", "approved, rejected or no_action")
	cmd.Flags().StringVar(&notes, "notes", "", "decision notes")
	cmd.Flags().IntVar(&penalty, "penalty", 0, "time penalty in seconds")
	return cmd
}

func incidentDeleteCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete an undecided incident; its reports are kept",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.DeleteIncident(ctx, id, actorID()); err != nil {
					return err
				}
				fmt.Printf("Deleted incident %d\n", id)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "incident id")
	return cmd
}
