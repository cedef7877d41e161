// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

package drive

// CBM1541Drive drives a physical 1541 through the bridge. All control
// dialog runs over the command channel (15); sector payloads move over
// a data channel opened on the drive's direct-access buffer. Before any
// sector operation the matching firmware fragment must be resident in
// drive RAM; the drive tracks what it uploaded last and only re-uploads
// on a mode change.

import (
	"strings"

	"github.com/weirdsoul/uno2iec/pkg/iec"
)

const commandChannel = 15
const dataChannel = 2

// One M-W command is a six-byte header ("M-W", address low/high, length)
// followed by the data; 32 bytes of data per command keeps the whole
// command inside the 1541 command buffer.
const maxMemoryWriteData = 32

type CBM1541Drive struct {
	bus          Bus
	deviceNumber byte
	fwState      firmwareState
}

// NewCBM1541Drive attaches to the device with the given IEC device
// number (8..15). The bus stays owned by the caller; the device must be
// managed exclusively through this instance, or the firmware state
// tracking is no longer accurate.
func NewCBM1541Drive(bus Bus, deviceNumber byte) *CBM1541Drive {
	return &CBM1541Drive{
		bus:          bus,
		deviceNumber: deviceNumber,
		fwState:      fwNoCustomCode,
	}
}

func (d *CBM1541Drive) GetNumSectors() int {
	return NumSectors
}

// ReadSector reads one sector through the resident read routine: patch
// the parameter block, jump to the read entry, then collect the sector
// from the data channel.
func (d *CBM1541Drive) ReadSector(sector int) ([]byte, error) {
	track, trackSector, err := TrackAndSector(sector)
	if err != nil {
		return nil, err
	}
	if err := d.setFirmwareState(fwReadWriteCode); err != nil {
		return nil, err
	}
	if err := d.writeMemory(rwParamTrack, []byte{byte(track), byte(trackSector)}); err != nil {
		return nil, err
	}
	if err := d.execute(rwReadEntry); err != nil {
		return nil, err
	}
	if err := d.bus.OpenChannel(d.deviceNumber, dataChannel, []byte("#")); err != nil {
		return nil, err
	}
	content, err := d.bus.ReadFromChannel(d.deviceNumber, dataChannel)
	if cerr := d.bus.CloseChannel(d.deviceNumber, dataChannel); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	if len(content) != SectorSize {
		return nil, iec.Errorf(iec.IECConnectionFailure,
			"short sector read: got %d bytes", len(content))
	}
	return content, nil
}

// WriteSector writes one sector: push the payload into the data
// channel, then let the write routine commit it to disc.
func (d *CBM1541Drive) WriteSector(sector int, content []byte) error {
	track, trackSector, err := TrackAndSector(sector)
	if err != nil {
		return err
	}
	if len(content) != SectorSize {
		return iec.Errorf(iec.InvalidArgument,
			"sector content must be %d bytes, got %d", SectorSize, len(content))
	}
	if err := d.setFirmwareState(fwReadWriteCode); err != nil {
		return err
	}
	if err := d.bus.OpenChannel(d.deviceNumber, dataChannel, []byte("#")); err != nil {
		return err
	}
	err = d.writeSectorOnChannel(track, trackSector, content)
	if cerr := d.bus.CloseChannel(d.deviceNumber, dataChannel); err == nil {
		err = cerr
	}
	return err
}

func (d *CBM1541Drive) writeSectorOnChannel(track, trackSector int, content []byte) error {
	if err := d.bus.WriteToChannel(d.deviceNumber, dataChannel, content); err != nil {
		return err
	}
	if err := d.writeMemory(rwParamTrack, []byte{byte(track), byte(trackSector)}); err != nil {
		return err
	}
	return d.executeAndWait(rwWriteEntry)
}

// FormatDiscLowLevel lays out numTracks empty tracks. The formatting
// routine replaces the read/write routine in drive RAM, so the drive
// transitions back to read/write code before returning.
func (d *CBM1541Drive) FormatDiscLowLevel(numTracks int) error {
	if numTracks < 1 || numTracks > MaxTracks {
		return iec.Errorf(iec.InvalidArgument,
			"track count out of range: %d", numTracks)
	}
	if err := d.setFirmwareState(fwFormattingCode); err != nil {
		return err
	}
	if err := d.writeMemory(fmtParamTracks, []byte{byte(numTracks)}); err != nil {
		return err
	}
	// The format run takes up to a minute; the status read blocks
	// until the drive reports completion.
	if err := d.executeAndWait(fmtEntry); err != nil {
		return err
	}
	return d.setFirmwareState(fwReadWriteCode)
}

// Command sends a raw command string over the command channel and
// returns the drive's status line verbatim. Raw commands may overwrite
// drive RAM, so the recorded firmware state is reset.
func (d *CBM1541Drive) Command(cmd string) (string, error) {
	d.fwState = fwNoCustomCode
	if err := d.bus.WriteToChannel(d.deviceNumber, commandChannel, []byte(cmd)); err != nil {
		return "", err
	}
	line, err := d.bus.ReadFromChannel(d.deviceNumber, commandChannel)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}

// setFirmwareState uploads the fragment required for the target state.
// Idempotent: nothing is sent if the state already matches.
func (d *CBM1541Drive) setFirmwareState(target firmwareState) error {
	if d.fwState == target {
		return nil
	}
	frag, ok := fwFragments[target]
	if !ok {
		return iec.Errorf(iec.InvalidArgument, "no firmware fragment for %v", target)
	}
	if err := d.writeMemory(frag.loadAddress, frag.binary); err != nil {
		// RAM contents are now unknown.
		d.fwState = fwNoCustomCode
		return err
	}
	d.fwState = target
	return nil
}

// writeMemory stores data into drive RAM via M-W commands, chunked to
// stay within the 1541 command buffer.
func (d *CBM1541Drive) writeMemory(addr uint16, data []byte) error {
	for pos := 0; pos < len(data); pos += maxMemoryWriteData {
		chunk := data[pos:]
		if len(chunk) > maxMemoryWriteData {
			chunk = chunk[:maxMemoryWriteData]
		}
		target := addr + uint16(pos)
		cmd := append([]byte{'M', '-', 'W',
			byte(target & 0xff), byte(target >> 8), byte(len(chunk))}, chunk...)
		if err := d.bus.WriteToChannel(d.deviceNumber, commandChannel, cmd); err != nil {
			return err
		}
		if err := d.readDriveStatus(); err != nil {
			return err
		}
	}
	return nil
}

// execute jumps into drive RAM via M-E without waiting for a status.
// Used for the read entry, which reports through the data channel
// instead.
func (d *CBM1541Drive) execute(addr uint16) error {
	cmd := []byte{'M', '-', 'E', byte(addr & 0xff), byte(addr >> 8)}
	return d.bus.WriteToChannel(d.deviceNumber, commandChannel, cmd)
}

// executeAndWait jumps into drive RAM and blocks on the drive's status
// line.
func (d *CBM1541Drive) executeAndWait(addr uint16) error {
	if err := d.execute(addr); err != nil {
		return err
	}
	return d.readDriveStatus()
}

// readDriveStatus reads one status line from the command channel. The
// line has the form "NN, MESSAGE,TRK,SEC"; NN of "00" is success,
// anything else is surfaced verbatim.
func (d *CBM1541Drive) readDriveStatus() error {
	line, err := d.bus.ReadFromChannel(d.deviceNumber, commandChannel)
	if err != nil {
		return err
	}
	status := strings.TrimRight(string(line), "\r\n")
	if len(status) < 2 || status[:2] != "00" {
		return iec.Errorf(iec.IECConnectionFailure, "%s", status)
	}
	return nil
}

var _ Drive = (*CBM1541Drive)(nil)
