package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/cmd/setup"
	"github.com/mpapenbr/zenride/pkg/model"
	"github.com/mpapenbr/zenride/pkg/routing"
)

var (
	from   string
	to     string
	format string
)

func NewRoutesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "calculates hazard scored routes between two points",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup.Logger(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()
			return calculate(ctx, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "origin as lat,lng")
	cmd.Flags().StringVar(&to, "to", "", "destination as lat,lng")
	cmd.Flags().StringVar(&format, "format", "text", "output format (text, json)")
	//nolint:errcheck // flags exist
	cmd.MarkFlagRequired("from")
	//nolint:errcheck // flags exist
	cmd.MarkFlagRequired("to")
	return cmd
}

func calculate(ctx context.Context, w io.Writer) error {
	origin, err := setup.ParseCoordinate(from)
	if err != nil {
		return err
	}
	destination, err := setup.ParseCoordinate(to)
	if err != nil {
		return err
	}
	client, err := setup.RoutingClient()
	if err != nil {
		return err
	}
	source, _ := setup.HazardSource()
	catalog, err := source.Catalog(ctx)
	if err != nil {
		return err
	}
	prefs := setup.Preferences()
	p := routing.NewProvider(client, routing.WithPreferences(prefs))
	routes, err := p.CalculateRoutes(ctx, origin, destination, catalog.All(), prefs)
	if err != nil {
		return err
	}
	log.Debug("routes calculated", log.Int("routes", len(routes)))
	return Print(w, format, routes, p.Result().DefaultIndex, setup.Fine())
}

type routeView struct {
	model.Route
	Default    bool            `json:"default"`
	SavedFines decimal.Decimal `json:"savedFines"`
}

// Print writes the routes as table or json
//
//nolint:whitespace // editor/linter issue
func Print(
	w io.Writer,
	format string,
	routes []model.Route,
	defaultIdx int,
	fine decimal.Decimal,
) error {
	if format == "json" {
		views := make([]routeView, 0, len(routes))
		for i := range routes {
			views = append(views, routeView{
				Route:      routes[i],
				Default:    i == defaultIdx,
				SavedFines: routes[i].SavedFines(fine),
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDEFAULT\tKM\tMIN\tDELAY\tCAMERAS\tHAZARD-FREE\tTAGS")
	for i := range routes {
		r := &routes[i]
		def := ""
		if i == defaultIdx {
			def = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%.0f\t%.0fs\t%d\t%t\t%v\n",
			i, def, r.LengthMeters/1000, r.TravelTimeSeconds/60,
			r.TrafficDelaySeconds, r.HazardCount, r.HazardFree, r.Tags)
	}
	return tw.Flush()
}
