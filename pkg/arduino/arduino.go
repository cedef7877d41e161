// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

// Package arduino provides buffered serial I/O to the Arduino that
// bridges the host to the IEC bus. The bridge speaks a '\r'-framed
// dialect with an escape code for binary payloads; this package owns
// the byte transport, the framing and the escape codec, but not the
// dialect itself.

// The serial port object of go.bug.st/serial is not threadsafe between
// Read() and Close() (a blocking Read racing a Close from another
// goroutine fires the race detector). All reads here therefore use a
// finite read timeout, and the owner of a Port must make sure the
// reading goroutine has returned before calling Close(). The bus layer
// enforces exactly that ordering during teardown.

package arduino

import (
	"fmt"
	"log"
	"syscall"
	"time"

	"go.bug.st/serial"
)

// Opening the port at 1200 baud and holding it there makes the bridge
// microcontroller reset, so every connection starts from a known
// firmware state. The delay gives the bootloader time to come back up
// before we switch to the real speed.
const resetBaudRate = 1200
const resetDelay = 1 * time.Second

var debug bool = false

func setDebug(setting bool) {
	debug = setting
}

// The bridge firmware only understands the classic termios rates.
var supportedBaudRates = []int{
	0, 50, 75, 110, 134, 150, 200, 300, 600, 1200, 2400, 4800,
	9600, 19200, 38400, 57600, 115200, 230400,
}

// Port is the byte-level connection to the bridge. The concrete
// implementation is a serial device; tests substitute an in-memory one.
type Port interface {
	// ReadFor reads up to len(p) bytes. It returns (0, nil) only if
	// the timeout elapsed without any byte arriving.
	ReadFor(p []byte, timeout time.Duration) (int, error)

	// Write writes p, possibly short.
	Write(p []byte) (int, error)

	// Close releases the underlying device. No reader may be blocked
	// in ReadFor when Close is called.
	Close() error
}

type UnsupportedSpeedError int

func (e UnsupportedSpeedError) Error() string {
	return fmt.Sprintf("unknown speed setting: #%d baud", int(e))
}

type serialPort struct {
	port serial.Port
}

// Open opens the serial device in raw 8N1 mode at the requested speed,
// resetting the bridge on the way (see resetBaudRate above). The input
// buffer is flushed after the reset so the handshake starts clean.
func Open(deviceName string, baudRate int) (Port, error) {
	if !speedSupported(baudRate) {
		return nil, UnsupportedSpeedError(baudRate)
	}

	mode := &serial.Mode{
		BaudRate: resetBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(deviceName, mode)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", deviceName, err)
	}

	// Hold the line at 1200 baud until the bridge has reset.
	time.Sleep(resetDelay)

	mode.BaudRate = baudRate
	if err := port.SetMode(mode); err != nil {
		port.Close()
		return nil, fmt.Errorf("set mode on %q: %w", deviceName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("flush %q: %w", deviceName, err)
	}
	return &serialPort{port: port}, nil
}

func speedSupported(baudRate int) bool {
	for _, b := range supportedBaudRates {
		if b == baudRate {
			return true
		}
	}
	return false
}

func (sp *serialPort) ReadFor(p []byte, timeout time.Duration) (int, error) {
	var n int
	var err error

	sp.port.SetReadTimeout(timeout)
	// The for-loop is -solely- to handle EINTR, which occurs constantly
	// as a result of Golang's Goroutine-level context switching mechanism.
	for {
		n, err = sp.port.Read(p)
		if !isRetryableSyscallError(err) {
			break
		}
		if n != 0 {
			panic("bytes returned despite EINTR")
		}
	}
	if err != nil {
		return 0, err
	}
	if debug && n > 0 {
		log.Printf("serial read: % X\n", p[:n])
	}
	return n, nil
}

func (sp *serialPort) Write(p []byte) (int, error) {
	var n int
	var err error

	if debug {
		log.Printf("serial write: % X\n", p)
	}
	// The for-loop is -solely- to handle EINTR, see ReadFor.
	for {
		n, err = sp.port.Write(p)
		if !isRetryableSyscallError(err) {
			break
		}
		if n != 0 {
			panic("bytes written despite EINTR")
		}
	}
	return n, err
}

func (sp *serialPort) Close() error {
	if sp.port == nil {
		return fmt.Errorf("internal error: close(): port not open")
	}
	if err := sp.port.Close(); err != nil {
		log.Printf("close serial port: %s", err)
		return err
	}
	sp.port = nil
	return nil
}

func isRetryableSyscallError(err error) bool {
	const eIntr = 4
	if errno, ok := err.(syscall.Errno); ok {
		return errno == eIntr
	}
	return false
}
