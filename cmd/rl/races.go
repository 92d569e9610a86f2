package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"raceline/internal/app"
	"raceline/internal/contract"
	"raceline/internal/types"
)

func competitionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "competition", Short: "Manage competitions"}
	cmd.AddCommand(competitionListCmd())
	cmd.AddCommand(competitionShowCmd())
	cmd.AddCommand(competitionCreateCmd())
	return cmd
}

func competitionListCmd() *cobra.Command {
	var ongoing bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List competitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				repo := a.Engine.Repos.Competitions
				list, err := repo.All(ctx)
				if ongoing {
					list, err = repo.Ongoing(ctx, a.Engine.Now())
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(list)
				}
				tw := newTable("ID", "Name", "Place", "Country", "Start", "End")
				for _, c := range list {
					tw.AppendRow(table.Row{c.ID(), c.Name(), c.Place(), c.Country(),
						c.StartDate().Format(time.DateOnly), c.EndDate().Format(time.DateOnly)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&ongoing, "ongoing", false, "only competitions running today")
	return cmd
}

func competitionShowCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a competition and its races",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.Repos.Competitions.MustFind(ctx, id)
				if err != nil {
					return err
				}
				races, err := a.Engine.Repos.Races.ByCompetition(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"competition": c, "races": races})
				}
				fmt.Printf("%s, %s (%s) %s to %s\n", c.Name(), c.Place(), c.Country(),
					c.StartDate().Format(time.DateOnly), c.EndDate().Format(time.DateOnly))
				tw := newTable("ID", "Type", "Name", "Stage", "Category", "Status", "Pos")
				for _, r := range races {
					tw.AppendRow(table.Row{r.ID(), r.RaceTypeName(), r.Name(), r.StageName(), r.GenderCategory(), r.Status(), r.Position()})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "competition id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func competitionCreateCmd() *cobra.Command {
	var name, place, country, start, end, desc, url string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a competition",
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs := contract.Attributes{
				"name": name, "place": place, "country": country,
				"start_date": start, "end_date": end,
			}
			setIf(cmd, attrs, "description", "description", desc)
			setIf(cmd, attrs, "url", "webpage_url", url)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Engine.CreateCompetition(ctx, attrs, actorID())
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "competition name")
	cmd.Flags().StringVar(&place, "place", "", "venue")
	cmd.Flags().StringVar(&country, "country", "", "ISO alpha-3 country code")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&url, "url", "", "web page")
	return cmd
}

func raceCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "race", Short: "Manage races"}
	cmd.AddCommand(raceListCmd())
	cmd.AddCommand(raceShowCmd())
	cmd.AddCommand(raceCreateCmd())
	cmd.AddCommand(raceStatusCmd())
	return cmd
}

func raceListCmd() *cobra.Command {
	var competitionID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List races of a competition, or the races in progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				races := a.Engine.Repos.Races
				list, err := races.Active(ctx)
				if competitionID > 0 {
					list, err = races.ByCompetition(ctx, competitionID)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(list)
				}
				tw := newTable("ID", "Competition", "Type", "Name", "Stage", "Category", "Status")
				for _, r := range list {
					tw.AppendRow(table.Row{r.ID(), r.CompetitionID(), r.RaceTypeName(), r.Name(), r.StageName(), r.GenderCategory(), r.Status()})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&competitionID, "competition", 0, "competition id")
	return cmd
}

func raceShowCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a race with its locations and start list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				r, err := a.Engine.Repos.Races.MustFind(ctx, id)
				if err != nil {
					return err
				}
				locations, err := a.Engine.Repos.Locations.ByRace(ctx, id)
				if err != nil {
					return err
				}
				starters, err := a.Engine.Repos.Participations.ByRace(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"race": r, "locations": locations, "participations": starters})
				}
				fmt.Printf("%s %s %s [%s], %d starters\n", r.RaceTypeName(), r.Name(), r.StageName(), r.Status(), len(starters))
				tw := newTable("Order", "ID", "Location", "Segment")
				for _, l := range locations {
					tw.AppendRow(table.Row{l.DisplayOrder(), l.ID(), l.Name(), l.CourseSegment()})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "race id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func raceCreateCmd() *cobra.Command {
	var competitionID int64
	var raceType, name, stage, category, scheduled string
	var heat int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a race with its race type's locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				rt, ok, err := a.Engine.Repos.RaceTypes.FindByName(ctx, raceType)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("unknown race type %q", raceType)
				}
				attrs := contract.Attributes{
					"competition_id": competitionID, "race_type_id": rt.ID(),
					"name": name, "stage_type": stage, "gender_category": category,
				}
				setIf(cmd, attrs, "heat", "heat_number", heat)
				setIf(cmd, attrs, "scheduled-at", "scheduled_at", scheduled)
				r, err := a.Engine.CreateRace(ctx, attrs, actorID())
				if err != nil {
					return err
				}
				return printJSON(r)
			})
		},
	}
	cmd.Flags().Int64Var(&competitionID, "competition", 0, "competition id")
	cmd.Flags().StringVar(&raceType, "type", "", "race type name, e.g. Sprint")
	cmd.Flags().StringVar(&name, "name", "", "race name")
	cmd.Flags().StringVar(&stage, "stage", "", "stage type, e.g. Qualification")
	cmd.Flags().IntVar(&heat, "heat", 0, "heat number")
	cmd.Flags().StringVar(&category, "category", "", "gender category (M or W)")
	cmd.Flags().StringVar(&scheduled, "scheduled-at", "", "start time (RFC 3339)")
	return cmd
}

func raceStatusCmd() *cobra.Command {
	var id int64
	var status string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Move a race along its lifecycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := types.ParseRaceStatus(status)
			if err != nil {
				return fmt.Errorf("--status: %w", err)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				r, err := a.Engine.UpdateRaceStatus(ctx, id, st, actorID())
				if err != nil {
					return err
				}
				return printJSON(r)
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "race id")
	cmd.Flags().StringVar(&status, "status", "", "scheduled, in_progress, completed or cancelled")
	return cmd
}

func locationCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "location", Short: "Manage race locations"}
	cmd.AddCommand(locationCreateCmd())
	cmd.AddCommand(locationReorderCmd())
	return cmd
}

func locationCreateCmd() *cobra.Command {
	var raceID int64
	var name, segment, desc string
	var order int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a location to a race",
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs := contract.Attributes{"race_id": raceID, "name": name, "course_segment": segment}
			setIf(cmd, attrs, "order", "display_order", order)
			setIf(cmd, attrs, "description", "description", desc)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				l, err := a.Engine.CreateLocation(ctx, attrs, actorID())
				if err != nil {
					return err
				}
				return printJSON(l)
			})
		},
	}
	cmd.Flags().Int64Var(&raceID, "race", 0, "race id")
	cmd.Flags().StringVar(&name, "name", "", "location name")
	cmd.Flags().StringVar(&segment, "segment", "", "course segment, e.g. uphill")
	cmd.Flags().IntVar(&order, "order", 0, "display order (default: after the last one)")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	return cmd
}

func locationReorderCmd() *cobra.Command {
	var raceID int64
	var set []string
	cmd := &cobra.Command{
		Use:     "reorder",
		Short:   "Set the display order of locations",
		Example: "rl location reorder --race 4 --set 12=0 --set 11=1",
		RunE: func(cmd *cobra.Command, args []string) error {
			positions := map[string]any{}
			for _, pair := range set {
				id, pos, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("--set %q: want location_id=order", pair)
				}
				positions[strings.TrimSpace(id)] = strings.TrimSpace(pos)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				list, err := a.Engine.ReorderLocations(ctx, contract.Attributes{"race_id": raceID, "positions": positions}, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(list)
				}
				tw := newTable("Order", "ID", "Location", "Segment")
				for _, l := range list {
					tw.AppendRow(table.Row{l.DisplayOrder(), l.ID(), l.Name(), l.CourseSegment()})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&raceID, "race", 0, "race id")
	cmd.Flags().StringArrayVar(&set, "set", nil, "location_id=order, repeatable")
	return cmd
}
