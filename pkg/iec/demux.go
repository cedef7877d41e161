// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

package iec

// The response demultiplexer. One goroutine per connection reads frames
// off the serial channel and routes them by their class byte:
//
//   '!'  debug channel configuration: frame[0] is the channel id,
//        the remainder its human-readable name.
//   'D'  debug log message: level, channel id, text. Forwarded to the
//        log collaborator.
//   'r'  data response, escape-coded. Remembered until the next status.
//   's'  status. Empty body: the pending request succeeded, carrying
//        the remembered data response. Non-empty body: the IEC device
//        reported the body as its error message.
//
// Any other class byte, any framing violation and any malformed debug
// frame is fatal: partial-frame states in a serial dialect are not
// recoverable without a re-sync byte, so the goroutine logs, poisons
// the connection and exits. Debug frames may arrive at any time between
// a request and its status; only an 's' frame completes a request.

import (
	"time"

	"github.com/weirdsoul/uno2iec/pkg/arduino"
)

// Poll cadence for the quit check while the line is idle.
const idlePollTimeout = 100 * time.Millisecond

func (c *BusConnection) processResponses() {
	defer c.done.Done()
	for {
		if !c.rw.HasBufferedData() {
			select {
			case <-c.quit:
				c.poison(Errorf(ConnectionFailure, "connection closed"))
				return
			default:
			}
			n, err := c.rw.Fill(idlePollTimeout)
			if err != nil {
				c.fail(Errorf(ConnectionFailure, "reading from bridge: %v", err))
				return
			}
			if n == 0 {
				continue
			}
		}

		kind, err := c.rw.ReadByte()
		if err != nil {
			c.fail(Errorf(ConnectionFailure, "reading from bridge: %v", err))
			return
		}
		switch kind {
		case '!':
			frame, err := c.readFrame()
			if err != nil {
				c.fail(err)
				return
			}
			if len(frame) < 2 {
				c.fail(Errorf(ConnectionFailure,
					"Malformed channel configuration string '%s'", printableString(frame)))
				return
			}
			c.debugChannels[frame[0]] = string(frame[1:])
		case 'D':
			frame, err := c.readFrame()
			if err != nil {
				c.fail(err)
				return
			}
			name, known := "", false
			if len(frame) >= 3 {
				name, known = c.debugChannels[frame[1]]
			}
			if !known {
				c.fail(Errorf(ConnectionFailure,
					"Malformed debug message '%s'", printableString(frame)))
				return
			}
			c.logf(frame[0], name, string(frame[2:]))
		case 'r':
			frame, err := c.readFrame()
			if err != nil {
				c.fail(err)
				return
			}
			decoded, uerr := arduino.Unescape(frame)
			if uerr != nil {
				c.fail(Errorf(ConnectionFailure, "%v", uerr))
				return
			}
			c.lastResponse = decoded
		case 's':
			frame, err := c.readFrame()
			if err != nil {
				c.fail(err)
				return
			}
			var st *Status
			if len(frame) > 0 {
				// The status string is not escaped; use it directly.
				st = Errorf(IECConnectionFailure, "%s", frame)
			}
			c.complete(response{payload: c.lastResponse, err: st})
			// Forget the last response so we won't return it again.
			c.lastResponse = nil
		default:
			c.fail(Errorf(ConnectionFailure,
				"Unknown response msg type %#x", kind))
			return
		}
	}
}

func (c *BusConnection) readFrame() ([]byte, *Status) {
	frame, err := c.rw.ReadUntil(arduino.FrameTerminator, arduino.MaxFrameLength)
	if err != nil {
		return nil, Errorf(ConnectionFailure, "reading frame: %v", err)
	}
	return frame, nil
}

func (c *BusConnection) fail(err *Status) {
	c.logf('E', "CLIENT", err.Message)
	c.poison(err)
}
