package simulate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/zenride/log"
	"github.com/mpapenbr/zenride/pkg/cmd/setup"
	"github.com/mpapenbr/zenride/pkg/drive"
	"github.com/mpapenbr/zenride/pkg/geo"
	"github.com/mpapenbr/zenride/pkg/hazard"
	"github.com/mpapenbr/zenride/pkg/model"
	"github.com/mpapenbr/zenride/pkg/places"
	"github.com/mpapenbr/zenride/pkg/processing"
	"github.com/mpapenbr/zenride/pkg/processing/proximity"
	"github.com/mpapenbr/zenride/pkg/processing/ride"
	"github.com/mpapenbr/zenride/pkg/routing"
	"github.com/mpapenbr/zenride/pkg/simulator"
	"github.com/mpapenbr/zenride/pkg/store"
)

type options struct {
	from         string
	to           string
	destination  string
	routeIndex   int
	speedMph     float64
	speedFactor  float64
	mood         string
	printSamples bool
}

func NewSimulateCmd() *cobra.Command {
	o := options{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "simulates a drive along a calculated route and records it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup.Logger(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()
			shutdown := setup.Telemetry(ctx)
			defer shutdown()
			return run(ctx, cmd.OutOrStdout(), &o)
		},
	}
	cmd.Flags().StringVar(&o.from, "from", "", "origin as lat,lng")
	cmd.Flags().StringVar(&o.to, "to", "", "destination as lat,lng")
	cmd.Flags().StringVar(&o.destination, "destination", "",
		"name of the destination (recorded as place visit)")
	cmd.Flags().IntVar(&o.routeIndex, "route", -1,
		"index of the route to drive (default: recommended route)")
	cmd.Flags().Float64Var(&o.speedMph, "speed", simulator.DefaultSpeedMph,
		"simulated speed in mph")
	cmd.Flags().Float64Var(&o.speedFactor, "speed-factor", 1,
		"run the simulation faster than real time")
	cmd.Flags().StringVar(&o.mood, "mood", "", "mood recorded with the drive")
	cmd.Flags().BoolVar(&o.printSamples, "print-samples", false,
		"print every processed sample")
	//nolint:errcheck // flags exist
	cmd.MarkFlagRequired("from")
	//nolint:errcheck // flags exist
	cmd.MarkFlagRequired("to")
	return cmd
}

//nolint:funlen,cyclop // wiring
func run(ctx context.Context, w io.Writer, o *options) error {
	origin, err := setup.ParseCoordinate(o.from)
	if err != nil {
		return err
	}
	dest, err := setup.ParseCoordinate(o.to)
	if err != nil {
		return err
	}
	storage, closeStorage, err := setup.Storage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage()

	engine := proximity.NewEngine()
	source, watched := setup.HazardSource(hazard.WithChangeHandler(engine.SetCatalog))
	catalog, err := source.Catalog(ctx)
	if err != nil {
		return err
	}
	engine.SetCatalog(catalog)
	if watched != nil {
		if err := watched.Watch(ctx); err != nil {
			log.Warn("hazard feed is not watched", log.ErrorField(err))
		}
	}

	client, err := setup.RoutingClient()
	if err != nil {
		return err
	}
	prefs := setup.Preferences()
	provider := routing.NewProvider(client, routing.WithPreferences(prefs))
	routes, err := provider.CalculateRoutes(ctx, origin, dest, catalog.All(), prefs)
	if err != nil {
		return err
	}
	idx := o.routeIndex
	if idx < 0 {
		idx = provider.Result().DefaultIndex
	}
	active, err := routing.Select(routes, idx)
	if err != nil {
		return err
	}

	records := store.NewRecordStore(ctx, storage)
	placeStore := places.NewStore(ctx, storage)
	nav := drive.NewNavigator(
		processing.NewProcessor(
			processing.WithEngine(engine),
			processing.WithTracker(ride.NewTracker()),
		),
		records,
		drive.WithSimulator(simulator.New(simulator.WithSpeedFactor(o.speedFactor))),
		drive.WithPlaces(placeStore),
		drive.WithRerouter(provider),
		drive.WithFine(setup.Fine()),
		drive.WithSimulation(o.speedMph, simulator.DefaultTick),
	)
	defer nav.Close()

	updates := nav.Subscribe()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for u := range updates {
			printUpdate(w, &u, o.printSamples)
		}
	}()

	trip := &ride.Trip{
		Origin:                 origin,
		Destination:            dest,
		DestinationName:        o.destination,
		PlannedDurationSeconds: active.Route.TravelTimeSeconds,
	}
	done, err := nav.StartSimulation(ctx, trip, active)
	if err != nil {
		return err
	}

	var sum model.DriveSummary
	select {
	case s, ok := <-done:
		if !ok {
			return fmt.Errorf("simulation ended without summary")
		}
		sum = s
		if o.mood != "" {
			if err := attachMood(ctx, records, o.mood); err != nil {
				log.Warn("could not attach mood", log.ErrorField(err))
			}
		}
	case <-ctx.Done():
		log.Info("interrupted, stopping drive")
		var mood *string
		if o.mood != "" {
			mood = &o.mood
		}
		sum, err = nav.StopDrive(context.WithoutCancel(ctx), mood)
		if errors.Is(err, drive.ErrNoDrive) {
			// destination was reached meanwhile
			if s, ok := <-done; ok {
				sum, err = s, nil
			}
		}
		if err != nil {
			return err
		}
	}
	nav.Unsubscribe(updates)
	<-printed
	PrintSummary(w, &sum)
	return nil
}

// the session just recorded is the first one of the first record
func attachMood(ctx context.Context, records *store.RecordStore, mood string) error {
	all := records.Records()
	if len(all) == 0 || len(all[0].Sessions) == 0 {
		return store.ErrSessionNotFound
	}
	return records.AttachMood(context.WithoutCancel(ctx), all[0].Sessions[0].ID, mood)
}

func printUpdate(w io.Writer, u *drive.Update, samples bool) {
	if samples {
		fmt.Fprintf(w, "%s %.5f,%.5f %5.1f mph  zone=%s\n",
			u.Sample.Timestamp.Format("15:04:05"),
			u.Sample.Location.Lat, u.Sample.Location.Lng,
			geo.MpsToMph(u.Sample.SpeedMps), u.Result.State.Zone)
	}
	for i := range u.Result.Alerts {
		a := &u.Result.Alerts[i]
		fmt.Fprintf(w, "ALERT %-8s %s (limit %d mph) at %.0f ft, %.1f mph\n",
			a.Kind, a.Hazard.Street, a.Hazard.SpeedLimitMph, a.DistanceFeet, a.SpeedMph)
	}
	if u.Result.Reroute != nil {
		fmt.Fprintln(w, "off route, rerouting")
	}
}

func PrintSummary(w io.Writer, sum *model.DriveSummary) {
	fmt.Fprintf(w, "distance: %.2f mi\nzen score: %d\nsaved: $%s\n",
		sum.DistanceMiles, sum.ZenScore, sum.MoneySavedDollars.StringFixed(2))
}
