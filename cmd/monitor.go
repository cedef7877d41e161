/*
Copyright © 2018 Andreas Eckleder
*/
package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/weirdsoul/uno2iec/pkg/drive"
	"github.com/weirdsoul/uno2iec/pkg/iec"
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive drive shell",
	Long: `Monitor connects to the bridge and opens an interactive shell
on the target drive. Commands:

  status           read the drive status line from channel 15
  reset            reset the IEC bus
  cmd <string>     send a raw command over channel 15 (e.g. UJ, N:NAME,ID)
  read <sector>    read a sector and hex dump it
  quit             leave the shell`,

	Run: func(cmd *cobra.Command, args []string) {
		if err := runMonitor(cmd); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&serialDevice, "serial", "", "serial interface to use")
	monitorCmd.Flags().IntVar(&serialSpeed, "speed", 0, "baud rate")
	monitorCmd.Flags().IntVar(&target, "target", 0, "device to talk to")
}

func runMonitor(cmd *cobra.Command) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("monitor requires an interactive terminal")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	connection, err := iec.Connect(cfg.Serial.Device, cfg.Serial.Speed, cfg.Pins, bridgeLog)
	if err != nil {
		return err
	}
	defer connection.Close()

	device := byte(cfg.Target.Device)
	cbm := drive.NewCBM1541Drive(connection, device)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      fmt.Sprintf("1541#%d> ", device),
		HistoryFile: os.ExpandEnv("$HOME/.uno2iec_history"),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		if done := monitorProcess(connection, cbm, device, strings.TrimSpace(line)); done {
			return nil
		}
	}
}

// monitorProcess runs one shell command; it returns true when the shell
// should exit.
func monitorProcess(connection *iec.BusConnection, cbm *drive.CBM1541Drive, device byte, line string) bool {
	verb, rest := line, ""
	if i := strings.IndexByte(line, ' '); i >= 0 {
		verb, rest = line[:i], strings.TrimSpace(line[i+1:])
	}

	switch verb {
	case "":
	case "quit", "exit":
		return true
	case "status":
		response, err := connection.ReadFromChannel(device, 15)
		if err != nil {
			fmt.Println(err)
			break
		}
		fmt.Println(strings.TrimRight(string(response), "\r\n"))
	case "reset":
		if err := connection.Reset(); err != nil {
			fmt.Println(err)
		}
	case "cmd":
		if rest == "" {
			fmt.Println("usage: cmd <string>")
			break
		}
		status, err := cbm.Command(rest)
		if err != nil {
			fmt.Println(err)
			break
		}
		fmt.Println(status)
	case "read":
		sector, err := strconv.Atoi(rest)
		if err != nil {
			fmt.Println("usage: read <sector>")
			break
		}
		content, err := cbm.ReadSector(sector)
		if err != nil {
			fmt.Println(err)
			break
		}
		fmt.Print(hexDump(content))
	default:
		fmt.Printf("Unrecognized command: %s\n", verb)
	}
	return false
}

// hexDump renders data as 16-byte lines with offsets and a printable
// column.
func hexDump(data []byte) string {
	var b strings.Builder
	for offset := 0; offset < len(data); offset += 16 {
		end := offset + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(&b, "%04x  ", offset)
		for i := offset; i < offset+16; i++ {
			if i < end {
				fmt.Fprintf(&b, "%02x ", data[i])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteString(" ")
		for i := offset; i < end; i++ {
			if data[i] >= 32 && data[i] < 127 {
				b.WriteByte(data[i])
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
