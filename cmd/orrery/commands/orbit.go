package commands

import (
	"time"

	"github.com/spf13/cobra"
	"go.trai.ch/orrery/internal/app"
	"go.trai.ch/orrery/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	defaultOrbitSteps     = 36
	defaultPrecessSamples = 90
)

func (c *CLI) newOrbitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orbit <body>",
		Short: "Sample positions and velocities of a body at equal time steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			orbits, _ := cmd.Flags().GetInt("orbits")
			from, _ := cmd.Flags().GetInt64("from")
			at, _ := cmd.Flags().GetString("at")
			elements, _ := cmd.Flags().GetString("elements")
			jsonl, _ := cmd.Flags().GetBool("jsonl")

			opts := app.OrbitOptions{
				Steps:    steps,
				Orbits:   orbits,
				From:     from,
				Elements: elements,
				JSONL:    jsonl,
			}
			if at != "" {
				t, err := parseTime(at)
				if err != nil {
					return err
				}
				opts.At = t
			}
			return c.app.Orbit(cmd.Context(), args[0], opts)
		},
	}
	cmd.Flags().IntP("steps", "s", defaultOrbitSteps, "Samples per orbit")
	cmd.Flags().IntP("orbits", "n", 1, "Number of orbits to sample")
	cmd.Flags().Int64("from", 0, "Index of the first sample; 0 is the periapsis passage")
	cmd.Flags().String("at", "", "Start at this time (RFC 3339 or YYYY-MM-DD) instead of --from")
	cmd.Flags().String("elements", "", "Cache key whose newest observation supplies the elements")
	cmd.Flags().Bool("jsonl", false, "Write samples as JSON Lines")
	return cmd
}

func (c *CLI) newPrecessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "precess <body>",
		Short: "Estimate apsidal precession and trace the rosette orbit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orbits, _ := cmd.Flags().GetInt("orbits")
			samples, _ := cmd.Flags().GetInt("samples")
			strict, _ := cmd.Flags().GetBool("strict")
			jsonl, _ := cmd.Flags().GetBool("jsonl")

			return c.app.Precess(cmd.Context(), args[0], app.PrecessOptions{
				Orbits:  orbits,
				Samples: samples,
				Strict:  strict,
				JSONL:   jsonl,
			})
		},
	}
	cmd.Flags().IntP("orbits", "n", 3, "Number of orbits to trace")
	cmd.Flags().Int("samples", defaultPrecessSamples, "Positions sampled per orbit")
	cmd.Flags().Bool("strict", false, "Fail when the estimate is outside first-order validity")
	cmd.Flags().Bool("jsonl", false, "Write the trace as JSON Lines")
	return cmd
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, zerr.With(zerr.Wrap(domain.ErrInvalidStep, "unrecognized time"), "at", s)
}
