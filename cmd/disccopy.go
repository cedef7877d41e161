/*
Copyright © 2018 Andreas Eckleder
*/
package cmd

import (
	"bytes"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/weirdsoul/uno2iec/pkg/config"
	"github.com/weirdsoul/uno2iec/pkg/drive"
	"github.com/weirdsoul/uno2iec/pkg/iec"
)

// disccopyCmd represents the disccopy command
var disccopyCmd = &cobra.Command{
	Use:   "disccopy",
	Short: "Copy a .d64 disk image to a physical drive",
	Long: `Disccopy connects to the bridge, resets the IEC bus and copies
every sector of a .d64 image to the target drive, optionally formatting
the disc first and verifying each written sector by reading it back.
Verification mismatches are reported but do not abort the copy.`,

	Run: func(cmd *cobra.Command, args []string) {
		if err := runDiscCopy(cmd); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

var (
	serialDevice string
	serialSpeed  int
	source       string
	target       int
	format       bool
	verify       bool
)

func init() {
	rootCmd.AddCommand(disccopyCmd)
	disccopyCmd.Flags().StringVar(&serialDevice, "serial", "", "serial interface to use")
	disccopyCmd.Flags().IntVar(&serialSpeed, "speed", 0, "baud rate")
	disccopyCmd.Flags().StringVar(&source, "source", "", "disk image to copy from")
	disccopyCmd.Flags().IntVar(&target, "target", 0, "device to copy to")
	disccopyCmd.Flags().BoolVar(&format, "format", false, "format disc prior to copying")
	disccopyCmd.Flags().BoolVar(&verify, "verify", false, "verify copy")
}

// loadConfig merges the optional configuration file with the flags the
// user actually set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return cfg, err
		}
	}
	if cmd.Flags().Changed("serial") {
		cfg.Serial.Device = serialDevice
	}
	if cmd.Flags().Changed("speed") {
		cfg.Serial.Speed = serialSpeed
	}
	if cmd.Flags().Changed("target") {
		cfg.Target.Device = target
	}
	if err := config.Validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// bridgeLog prints bridge debug traffic the way the bridge firmware
// formats it on its own console.
func bridgeLog(level byte, channel string, message string) {
	fmt.Printf("%c:%s: %s\n", level, channel, message)
}

func runDiscCopy(cmd *cobra.Command) error {
	log.SetFlags(log.Lmsgprefix | log.Lmicroseconds)
	log.SetPrefix("disccopy: ")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if source == "" {
		return fmt.Errorf("no source image specified (--source)")
	}

	connection, err := iec.Connect(cfg.Serial.Device, cfg.Serial.Speed, cfg.Pins, bridgeLog)
	if err != nil {
		return err
	}
	defer connection.Close()

	if err := connection.Reset(); err != nil {
		return fmt.Errorf("Reset: %w", err)
	}

	device := byte(cfg.Target.Device)

	// Accessing the command channel is always ok, no open call necessary.
	response, err := connection.ReadFromChannel(device, 15)
	if err != nil {
		return fmt.Errorf("ReadFromChannel: %w", err)
	}
	fmt.Printf("Initial drive status: %s\n", response)

	cbm := drive.NewCBM1541Drive(connection, device)

	if format {
		fmt.Println("Formatting disc...")
		if err := cbm.FormatDiscLowLevel(drive.MaxTracks); err != nil {
			return fmt.Errorf("FormatDiscLowLevel: %w", err)
		}
		fmt.Println("Formatting complete.")
	}

	fmt.Printf("Opening source '%s'.\n", source)
	reader, err := drive.OpenImageD64(source, true /* readOnly */)
	if err != nil {
		return err
	}
	defer reader.Close()

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	numSectors := reader.GetNumSectors()
	for s := 0; s < numSectors; s++ {
		if interactive {
			fmt.Printf("\rsector %d/%d", s+1, numSectors)
		}
		content, err := reader.ReadSector(s)
		if err != nil {
			return fmt.Errorf("ReadSector: %w", err)
		}
		if err := cbm.WriteSector(s, content); err != nil {
			return fmt.Errorf("WriteSector: %w", err)
		}
		if verify {
			verifyContent, err := cbm.ReadSector(s)
			if err != nil {
				return fmt.Errorf("ReadSector: %w", err)
			}
			if !bytes.Equal(content, verifyContent) {
				fmt.Printf("\nVerification failed (sector %d):\n", s)
				fmt.Printf("Original sector (%d bytes):\n%s\n",
					len(content), bytesToHex(content))
				fmt.Printf("Read sector (%d bytes):\n%s\n",
					len(verifyContent), bytesToHex(verifyContent))
			}
		}
	}
	if interactive {
		fmt.Println()
	}

	// Get the final result.
	response, err = connection.ReadFromChannel(device, 15)
	if err != nil {
		return fmt.Errorf("ReadFromChannel: %w", err)
	}
	fmt.Printf("Copying status: %s\n", response)
	return nil
}

// bytesToHex converts input to a string of hex digit pairs.
func bytesToHex(input []byte) string {
	var b bytes.Buffer
	for _, c := range input {
		fmt.Fprintf(&b, "%02x", c)
	}
	return b.String()
}
