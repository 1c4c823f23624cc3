// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/relabs-tech/imu_calibration/internal/analysis"
	"github.com/relabs-tech/imu_calibration/internal/pipeline"
	"github.com/relabs-tech/imu_calibration/internal/store"
)

// PrintSummary writes the human-readable run report. At most maxWindows
// temperature windows are listed; 0 lists all of them.
func PrintSummary(w io.Writer, s pipeline.Summary, maxWindows int) {
	fmt.Fprintf(w, "\n[Acquisition Report] run %s (%s, %s)\n", s.RunID, s.Mode, s.Source)
	fmt.Fprintf(w, "Raw samples:       %d\n", s.Counts.Samples)
	fmt.Fprintf(w, "Filtered samples:  %d\n", s.Counts.Filtered)
	fmt.Fprintf(w, "Quaternions:       %d\n", s.Counts.Quaternions)
	fmt.Fprintf(w, "Invalid lines:     %d\n", s.Counts.Invalid)
	if s.Counts.Skipped > 0 {
		fmt.Fprintf(w, "Skipped lines:     %d\n", s.Counts.Skipped)
	}
	fmt.Fprintf(w, "Lines / bytes:     %d / %d\n", s.Counts.Lines, s.Counts.Bytes)
	if s.Counts.FallbackDecodes > 0 {
		fmt.Fprintf(w, "Latin-1 decodes:   %d\n", s.Counts.FallbackDecodes)
	}
	fmt.Fprintf(w, "Elapsed:           %.2f s\n", s.ElapsedSeconds)
	if s.Mode == pipeline.ModeLive {
		fmt.Fprintf(w, "Effective rate:    %.1f Hz\n", s.EffectiveRateHz)
	}
	if s.Error != "" {
		fmt.Fprintf(w, "Stopped early:     %s\n", s.Error)
	}

	fmt.Fprintln(w, "\n[Statistics]")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "channel\tunit\tbias_x\tbias_y\tbias_z\tstd_x\tstd_y\tstd_z\tn\t")
	printChannel(tw, "accel", s.Accel)
	printChannel(tw, "gyro", s.Gyro)
	tw.Flush()

	fmt.Fprintf(w, "\n[Tilt]     ROLL=%7.2f  PITCH=%7.2f\n", s.Tilt.Roll, s.Tilt.Pitch)
	if a := s.Attitude; a != nil {
		fmt.Fprintf(w, "[Attitude] ROLL=%7.2f  PITCH=%7.2f  YAW=%7.2f\n", a.Roll, a.Pitch, a.Yaw)
	}

	fmt.Fprintf(w, "\n[Temperature] %d windows\n", len(s.Windows))
	shown := s.Windows
	if maxWindows > 0 && len(shown) > maxWindows {
		shown = shown[:maxWindows]
	}
	for _, win := range shown {
		fmt.Fprintf(w, "  t=%8.2f s  avg=%7.2f  (n=%d)\n", win.Center, win.Average, win.Count)
	}
	if rest := len(s.Windows) - len(shown); rest > 0 {
		fmt.Fprintf(w, "  ... %d more\n", rest)
	}
}

func printChannel(w io.Writer, name string, c analysis.ChannelStatistics) {
	fmt.Fprintf(w, "%s\t%s\t%.5f\t%.5f\t%.5f\t%.5f\t%.5f\t%.5f\t%d\t\n",
		name, c.Unit,
		c.Mean[0], c.Mean[1], c.Mean[2],
		c.StdDev[0], c.StdDev[1], c.StdDev[2],
		c.Count,
	)
}

// PrintRuns lists stored runs, one per line.
func PrintRuns(w io.Writer, runs []store.RunRow) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no stored runs")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tMODE\tSOURCE\tSAMPLES\tINVALID\tRATE_HZ\tACCEL_BIAS\tGYRO_BIAS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%.1f\t%.4f,%.4f,%.4f\t%.4f,%.4f,%.4f\n",
			r.RunID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Mode, r.Source,
			r.Samples, r.Invalid, r.EffectiveRateHz,
			r.AccelBias[0], r.AccelBias[1], r.AccelBias[2],
			r.GyroBias[0], r.GyroBias[1], r.GyroBias[2],
		)
	}
	tw.Flush()
}
