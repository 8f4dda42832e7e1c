package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wlocate/wlocate/internal/wloc"
)

// locator is the part of wloc.Service the commands use.
type locator interface {
	Resolve(ctx context.Context, bssid string) (*wloc.WifiObservation, error)
	Locate(ctx context.Context, bssids []string, opts wloc.QueryOptions) (wloc.Response, error)
}

func newLocateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "locate <bssid>...",
		Short: "Print the coordinates of each BSSID",
		Long: `Resolve each BSSID with its own request and print "bssid: lat, lon".
Failures are reported per BSSID and make the command exit non-zero.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newLocator()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, bssid := range args {
				ctx, cancel := context.WithTimeout(cmd.Context(), a.flags.Timeout)
				obs, err := svc.Resolve(ctx, bssid)
				cancel()
				if err != nil {
					failed++
					a.logger.Debug().Err(err).Str("bssid", bssid).Msg("lookup failed")
					fmt.Fprintf(out, "%s: %v\n", bssid, err)
					continue
				}
				fmt.Fprintf(out, "%s: %.8f, %.8f\n", bssid, obs.Location.Latitude, obs.Location.Longitude)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d lookups failed", failed, len(args))
			}
			return nil
		},
	}
}

type lookupFlags struct {
	Signal    int32
	Noise     int32
	Source    string
	KnownOnly bool
	JSON      bool
}

func newLookupCmd(a *app) *cobra.Command {
	var flags lookupFlags

	cmd := &cobra.Command{
		Use:   "lookup <bssid>...",
		Short: "Query all BSSIDs in one request and print every observation",
		Long: `Send one request for all BSSIDs and print every observation the service
returns, including nearby access points that were not asked for.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newLocator()
			if err != nil {
				return err
			}

			opts := wloc.QueryOptions{Signal: &flags.Signal, Noise: &flags.Noise, Source: flags.Source}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.flags.Timeout)
			defer cancel()

			resp, err := svc.Locate(ctx, args, opts)
			if err != nil {
				return err
			}
			if flags.KnownOnly {
				resp = resp.Known()
			}
			a.logger.Debug().Int("observations", len(resp)).Msg("lookup completed")

			out := cmd.OutOrStdout()
			if flags.JSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			for _, obs := range resp {
				if obs.Location == nil {
					fmt.Fprintf(out, "%s: unknown\n", obs.BSSID)
					continue
				}
				loc := obs.Location
				fmt.Fprintf(out, "%s: %.8f, %.8f accuracy=%dm altitude=%dm altitude_accuracy=%dm\n",
					obs.BSSID, loc.Latitude, loc.Longitude, loc.Accuracy, loc.Altitude, loc.AltitudeAccuracy)
			}
			return nil
		},
	}

	cmd.Flags().Int32Var(&flags.Signal, "signal", wloc.DefaultSignal, "signal value sent with the request")
	cmd.Flags().Int32Var(&flags.Noise, "noise", wloc.DefaultNoise, "noise value sent with the request")
	cmd.Flags().StringVar(&flags.Source, "source", "", "request source tag")
	cmd.Flags().BoolVar(&flags.KnownOnly, "known", false, "only print observations with a location")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print JSON instead of text")

	return cmd
}
