package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nekogravitycat/massage-booking-backend/internal/app"
	"github.com/nekogravitycat/massage-booking-backend/internal/booking"
	"github.com/nekogravitycat/massage-booking-backend/internal/pkg/request"
)

func NewSlotsCmd() *cobra.Command {
	var (
		day         string
		serviceType string
		duration    int
	)

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print the free start times of a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			d, err := request.ParseDay(day, cfg.Location)
			if err != nil {
				return err
			}

			cat, err := app.LoadCatalog(cfg)
			if err != nil {
				return err
			}

			repo, closeRepo, err := app.OpenRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeRepo()

			svc := booking.NewService(repo, booking.Options{
				Rules:           cfg.Rules,
				Catalog:         cat,
				DefaultDuration: cfg.DefaultDuration,
				Logger:          logger,
			})

			slots, err := svc.Slots(ctx, booking.SlotsRequest{
				Day:             d,
				ServiceType:     serviceType,
				DurationMinutes: duration,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(slots) == 0 {
				fmt.Fprintln(out, "no free slots")
				return nil
			}
			for _, s := range slots {
				fmt.Fprintln(out, request.FormatSlot(s, cfg.Location))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "day to inspect, YYYY-MM-DD")
	cmd.Flags().StringVar(&serviceType, "service", "", "service type from the catalog")
	cmd.Flags().IntVar(&duration, "duration", 0, "session length in minutes, overrides the service")
	_ = cmd.MarkFlagRequired("day")
	return cmd
}
