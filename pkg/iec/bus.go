// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

package iec

// BusConnection owns the serial channel to the bridge. The caller
// thread writes requests; a background goroutine (demux.go) is the only
// reader after the handshake. Exactly one request is in flight at a
// time: a mutex serializes the install-promise / write / await triple,
// and the promise is installed strictly before the request bytes go out
// so a rapidly-returned status cannot be lost.

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/weirdsoul/uno2iec/pkg/arduino"
	"github.com/weirdsoul/uno2iec/pkg/config"
)

// LogFunc receives bridge debug traffic: a level character ('I', 'W',
// 'E', 'D'), the name of the debug channel, and the message.
type LogFunc func(level byte, channel string, message string)

// Commands understood by the bridge's serial interface.
const (
	cmdReset   = 'r' // Reset the IEC bus.
	cmdOpen    = 'o' // Open a channel on a device.
	cmdClose   = 'c' // Close a channel on a device.
	cmdGetData = 'g' // Get data from a channel on a device.
	cmdPutData = 'p' // Put data onto a channel on a device.
)

// Maximum size of one data packet sent to the bridge. The length byte
// of a full packet wraps to zero; the bridge reads zero as 256.
const maxSendPacketSize = 256

// Maximum length of the command string accompanying an open request.
// The length byte leaves no room for more.
const maxOpenCommandSize = 255

const connectionStringPrefix = "connect_arduino:"

// Needs to support host mode.
const minProtocolVersion = 3

// Number of tries for successfully reading the connection string prefix.
const numHandshakeAttempts = 5

// We request to be the host, so we specify a device number of zero
// (which is special cased on the bridge). Device zero, the C64
// keyboard, is normally not addressed through the IEC bus.
const hostDeviceNumber = 0

// How long to wait after a bus reset before expecting the drive to
// answer again.
const driveResetDelay = 2 * time.Second

type response struct {
	payload []byte
	err     *Status
}

type BusConnection struct {
	port arduino.Port
	rw   *arduino.BufferedReadWriter
	pins config.Pins
	logf LogFunc

	// reqMu serializes whole request/response exchanges.
	reqMu sync.Mutex

	// promiseMu guards pending and fatal. pending is the single
	// in-flight promise; fatal is set once the demux goroutine has
	// exited and poisons every later request.
	promiseMu sync.Mutex
	pending   chan response
	fatal     *Status

	quit chan struct{}
	done sync.WaitGroup

	closeOnce sync.Once

	// Owned by the demux goroutine, see demux.go.
	debugChannels map[byte]string
	lastResponse  []byte
}

// Connect opens the serial device, performs the handshake and starts
// the response demultiplexer. On success the connection is ready for
// requests.
func Connect(device string, speed int, pins config.Pins, logf LogFunc) (*BusConnection, error) {
	port, err := arduino.Open(device, speed)
	if err != nil {
		return nil, Errorf(ConnectionFailure, "%v", err)
	}
	conn := New(port, pins, logf)
	if err := conn.Initialize(); err != nil {
		port.Close()
		return nil, err
	}
	return conn, nil
}

// New wraps an already-open port. The port must be ready to use; call
// Initialize before issuing requests.
func New(port arduino.Port, pins config.Pins, logf LogFunc) *BusConnection {
	if logf == nil {
		logf = func(byte, string, string) {}
	}
	return &BusConnection{
		port:          port,
		rw:            arduino.NewBufferedReadWriter(port),
		pins:          pins,
		logf:          logf,
		quit:          make(chan struct{}),
		debugChannels: make(map[byte]string),
	}
}

// Initialize performs the handshake. The bridge announces itself with a
// connection string carrying its protocol version; the host replies
// with its configuration and the local time, then spawns the demux
// goroutine. Up to four junk lines before the connection string are
// tolerated (the bridge may still be flushing its boot chatter).
func (c *BusConnection) Initialize() error {
	var line []byte
	for i := 0; i < numHandshakeAttempts; i++ {
		var err error
		line, err = c.rw.ReadUntil(arduino.FrameTerminator, arduino.MaxFrameLength)
		if err != nil {
			return Errorf(ConnectionFailure, "reading connection string: %v", err)
		}
		if strings.HasPrefix(string(line), connectionStringPrefix) {
			break
		}
		if i >= numHandshakeAttempts-1 {
			return Errorf(ConnectionFailure, "unknown protocol response: '%s'", printableString(line))
		}
		c.logf('W', "CLIENT", fmt.Sprintf("Malformed connection string '%s'", printableString(line)))
	}

	var version int
	rest := string(line[len(connectionStringPrefix):])
	if n, err := fmt.Sscanf(rest, "%d", &version); n <= 0 || err != nil || version < minProtocolVersion {
		return Errorf(ConnectionFailure, "unsupported protocol: '%s'", string(line))
	}

	now := time.Now()
	configString := fmt.Sprintf("OK>%d|%d|%d|%d|%d|%d|%d-%d-%d.%d:%d:%d\r",
		hostDeviceNumber, c.pins.Atn, c.pins.Clock, c.pins.Data,
		c.pins.Reset, c.pins.SrqIn,
		now.Year(), int(now.Month()), now.Day(),
		now.Hour(), now.Minute(), now.Second())
	if err := c.rw.WriteAll([]byte(configString)); err != nil {
		return Errorf(ConnectionFailure, "writing configuration: %v", err)
	}

	c.done.Add(1)
	go c.processResponses()
	return nil
}

// Reset resets the IEC bus, then gives the drives time to come back up
// before the status is awaited.
func (c *BusConnection) Reset() error {
	_, err := c.transact([]byte{cmdReset}, driveResetDelay)
	return err
}

// OpenChannel opens a channel on a device, optionally sending a command
// string such as a filename. The command string is limited to 255
// bytes.
func (c *BusConnection) OpenChannel(device byte, channel byte, cmd []byte) error {
	if len(cmd) > maxOpenCommandSize {
		return Errorf(InvalidArgument, "command string too long: %d bytes", len(cmd))
	}
	request := append([]byte{cmdOpen, device, channel, byte(len(cmd))}, cmd...)
	_, err := c.transact(request, 0)
	return err
}

// ReadFromChannel reads from a channel until EOI. The payload is the
// decoded data-response received since the last status.
func (c *BusConnection) ReadFromChannel(device byte, channel byte) ([]byte, error) {
	return c.transact([]byte{cmdGetData, device, channel}, 0)
}

// WriteToChannel writes data to a channel, fragmenting it into packets
// of at most 256 bytes. Each packet is its own request/response
// exchange.
func (c *BusConnection) WriteToChannel(device byte, channel byte, data []byte) error {
	for pos := 0; pos < len(data); {
		toWrite := len(data) - pos
		if toWrite > maxSendPacketSize {
			toWrite = maxSendPacketSize
		}
		request := append([]byte{cmdPutData, device, channel, byte(toWrite)},
			data[pos:pos+toWrite]...)
		if _, err := c.transact(request, 0); err != nil {
			return err
		}
		pos += toWrite
	}
	return nil
}

// CloseChannel closes a channel on a device.
func (c *BusConnection) CloseChannel(device byte, channel byte) error {
	_, err := c.transact([]byte{cmdClose, device, channel}, 0)
	return err
}

// Close signals the demux goroutine, joins it, and only then closes the
// serial port. Closing the port first could leave the goroutine blocked
// forever.
func (c *BusConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.quit)
		c.done.Wait()
		err = c.port.Close()
	})
	return err
}

// transact performs one serialized request/response exchange. The
// promise is installed before the request bytes are written; delay, if
// nonzero, is slept between the write and the await.
func (c *BusConnection) transact(request []byte, delay time.Duration) ([]byte, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	promise, err := c.installPromise()
	if err != nil {
		return nil, err
	}
	if err := c.rw.WriteAll(request); err != nil {
		return nil, Errorf(ConnectionFailure, "writing request: %v", err)
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	r := <-promise
	if r.err != nil {
		return nil, r.err
	}
	return r.payload, nil
}

// installPromise replaces the in-flight promise with a fresh one. Once
// the demux goroutine has exited, every request fails immediately with
// the stored error.
func (c *BusConnection) installPromise() (chan response, error) {
	c.promiseMu.Lock()
	defer c.promiseMu.Unlock()
	if c.fatal != nil {
		return nil, c.fatal
	}
	c.pending = make(chan response, 1)
	return c.pending, nil
}

// complete resolves the in-flight promise, if any. Called by the demux
// goroutine exactly once per request.
func (c *BusConnection) complete(r response) {
	c.promiseMu.Lock()
	promise := c.pending
	c.pending = nil
	c.promiseMu.Unlock()
	if promise != nil {
		promise <- r
	}
}

// poison marks the connection as unusable and fails the in-flight
// promise, if any, so no caller is left waiting.
func (c *BusConnection) poison(err *Status) {
	c.promiseMu.Lock()
	c.fatal = err
	promise := c.pending
	c.pending = nil
	c.promiseMu.Unlock()
	if promise != nil {
		promise <- response{err: err}
	}
}

// printableString renders a raw frame for logging: control characters
// are replaced by readable placeholders.
func printableString(raw []byte) string {
	var b strings.Builder
	for _, ch := range raw {
		switch ch {
		case '\r':
			b.WriteString("\\r")
		case '\n':
			b.WriteString("\\n")
		default:
			if ch < 32 {
				fmt.Fprintf(&b, "#%d", ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	return b.String()
}
