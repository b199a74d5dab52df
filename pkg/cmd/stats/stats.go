package stats

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/zenride/pkg/achievement"
	"github.com/mpapenbr/zenride/pkg/cmd/setup"
	"github.com/mpapenbr/zenride/pkg/places"
	"github.com/mpapenbr/zenride/pkg/store"
)

var format string

func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "shows driving statistics, achievements and place suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup.Logger(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			storage, closeStorage, err := setup.Storage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage()
			report := Build(
				store.NewRecordStore(ctx, storage),
				places.NewStore(ctx, storage),
				time.Now().Hour())
			return Print(cmd.OutOrStdout(), format, &report)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format (text, yaml)")
	return cmd
}

type (
	recordLine struct {
		Name     string `yaml:"name"`
		Sessions int    `yaml:"sessions"`
		Saved    string `yaml:"saved"`
	}
	// Report is everything the stats command shows
	Report struct {
		Stats        store.Stats               `yaml:"stats"`
		Achievements []achievement.Achievement `yaml:"achievements"`
		Earned       int                       `yaml:"earned"`
		MostDriven   *recordLine               `yaml:"mostDriven,omitempty"`
		Bookmarked   []recordLine              `yaml:"bookmarked,omitempty"`
		Suggestions  []string                  `yaml:"suggestions,omitempty"`
	}
)

func Build(records *store.RecordStore, placeStore *places.Store, hour int) Report {
	ret := Report{
		Stats:        records.Stats(),
		Achievements: achievement.Compute(records),
		Earned:       achievement.EarnedCount(records),
	}
	if r, ok := records.MostDriven(); ok {
		ret.MostDriven = &recordLine{
			Name: r.DestinationName, Sessions: r.SessionCount(),
			Saved: r.AllTimeMoneySaved().StringFixed(2),
		}
	}
	for _, r := range records.Bookmarked() {
		ret.Bookmarked = append(ret.Bookmarked, recordLine{
			Name: r.DestinationName, Sessions: r.SessionCount(),
			Saved: r.AllTimeMoneySaved().StringFixed(2),
		})
	}
	for _, p := range placeStore.Suggestions(hour) {
		ret.Suggestions = append(ret.Suggestions, places.PromptText(&p, hour))
	}
	return ret
}

func Print(w io.Writer, format string, r *Report) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}
	s := &r.Stats
	fmt.Fprintf(w, "rides:         %d\n", s.TotalRideCount)
	fmt.Fprintf(w, "saved:         $%s (%d cameras)\n",
		s.TotalSavedAllTime.StringFixed(2), s.TotalSavedCameras)
	fmt.Fprintf(w, "distance:      %.1f mi (today %.1f mi)\n", s.TotalDistanceMiles, s.TodayMiles)
	fmt.Fprintf(w, "time driven:   %s\n",
		(time.Duration(s.TotalTimeDrivenSeconds) * time.Second).String())
	fmt.Fprintf(w, "top speed:     %.0f mph\n", s.AllTimeTopSpeedMph)
	fmt.Fprintf(w, "avg zen score: %d\n", s.AvgZenScore)
	fmt.Fprintf(w, "streak:        %d days\n", s.CurrentStreak)
	if r.MostDriven != nil {
		fmt.Fprintf(w, "most driven:   %s (%d rides)\n", r.MostDriven.Name, r.MostDriven.Sessions)
	}
	fmt.Fprintf(w, "\nachievements (%d/%d)\n", r.Earned, len(r.Achievements))
	for _, a := range r.Achievements {
		mark := " "
		if a.Earned {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s] %-20s %3.0f%%  %s\n", mark, a.Title, a.Progress*100, a.Subtitle)
	}
	for _, sug := range r.Suggestions {
		fmt.Fprintf(w, "\n%s", sug)
	}
	if len(r.Suggestions) > 0 {
		fmt.Fprintln(w)
	}
	return nil
}
