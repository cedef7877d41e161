/*
Copyright © 2018 Andreas Eckleder
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "uno2iec",
	Short: "Operate IEC bus peripherals through a serial bridge",
	Long: `uno2iec talks to Commodore IEC bus peripherals (notably the
CBM 1541 floppy drive) through an Arduino acting as a serial-to-IEC
bridge. The disccopy subcommand copies a .d64 disk image onto a real
disc; the monitor subcommand opens an interactive drive shell.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"bridge configuration file (pins, serial defaults)")
}
