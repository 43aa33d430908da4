/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dantesync/dantesync/status"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current PTP/NTP sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := dial(socketFlag, 2*time.Second)
		if err != nil {
			return err
		}
		defer conn.Close()

		snap, err := status.Query(conn, 2*time.Second)
		if err != nil {
			return err
		}

		if verboseFlag {
			spew.Dump(snap)
			return nil
		}
		printSnapshot(snap)
		return nil
	},
}

func printSnapshot(snap status.Snapshot) {
	lockIndicator := color.RedString("UNLOCKED")
	if snap.IsLocked {
		lockIndicator = color.GreenString("LOCKED")
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetColWidth(20)
	table.SetHeader([]string{"field", "value"})
	table.Append([]string{"mode", snap.Mode})
	table.Append([]string{"lock", lockIndicator})
	table.Append([]string{"smoothed rate (ns/s)", fmt.Sprintf("%.2f", snap.SmoothedRateNSPerS)})
	table.Append([]string{"applied ppm", fmt.Sprintf("%.2f", snap.AppliedPPM)})
	table.Append([]string{"grandmaster", snap.GrandmasterID})
	table.Append([]string{"ntp last offset (ns)", fmt.Sprintf("%d", snap.NTPLastOffsetNS)})
	table.Append([]string{"ntp failed", boolStr(snap.NTPFailed)})
	table.Append([]string{"ptp offline", boolStr(snap.PTPOffline)})
	table.Append([]string{"last packet", snap.LastPacketHostTime.Format(time.RFC3339)})
	table.Append([]string{"daemon uptime", fmt.Sprintf("%ds", snap.UptimeSeconds)})
	table.Append([]string{"daemon rss", fmt.Sprintf("%d bytes", snap.RSSBytes)})
	table.Append([]string{"daemon goroutines", fmt.Sprintf("%d", snap.GoroutineCount)})
	table.Render()
}

func boolStr(v bool) string {
	if v {
		return color.YellowString("true")
	}
	return "false"
}
