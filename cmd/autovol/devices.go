package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/autovol/internal/audio"
	"github.com/jmylchreest/autovol/internal/dbus"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture devices and media players",
	Long: `List the capture devices autovold can listen on and the MPRIS media
players it can control. Use the names with device and player in the
[source] and [sink] sections of the daemon config.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	fmt.Println("Capture devices:")
	devices, err := audio.CaptureDevices()
	switch {
	case err != nil:
		fmt.Printf("  unavailable: %v\n", err)
	case len(devices) == 0:
		fmt.Println("  none")
	default:
		for _, d := range devices {
			fmt.Printf("  %s\n", d)
		}
	}

	fmt.Println("Media players:")
	players, err := dbus.ListPlayers()
	switch {
	case err != nil:
		fmt.Printf("  unavailable: %v\n", err)
	case len(players) == 0:
		fmt.Println("  none")
	default:
		for _, p := range players {
			fmt.Printf("  %-24s %s\n", dbus.PlayerName(p.BusName), p.Status)
		}
	}
	return nil
}
