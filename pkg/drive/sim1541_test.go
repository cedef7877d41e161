// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

package drive

// A behavioral 1541 stand-in: it honors the M-W/M-E dialect on the
// command channel and the firmware fragment ABI, so the full sector
// read/write flow can be exercised without hardware.

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simRAMBase = 0x0300
const simRAMSize = 0x0500

type sim1541 struct {
	ram     [simRAMSize]byte
	sectors map[[2]byte][]byte

	dataIn  []byte // pushed by the host on the data channel
	dataOut []byte // served to the host on the data channel
	status  []byte
}

func newSim1541() *sim1541 {
	return &sim1541{
		sectors: make(map[[2]byte][]byte),
		status:  []byte("00, OK,00,00"),
	}
}

func (s *sim1541) setStatus(format string, args ...interface{}) {
	s.status = []byte(fmt.Sprintf(format, args...))
}

func (s *sim1541) ramAt(addr uint16) []byte {
	return s.ram[int(addr)-simRAMBase:]
}

func (s *sim1541) Reset() error { return nil }

func (s *sim1541) OpenChannel(device byte, channel byte, cmd []byte) error {
	return nil
}

func (s *sim1541) CloseChannel(device byte, channel byte) error {
	return nil
}

func (s *sim1541) ReadFromChannel(device byte, channel byte) ([]byte, error) {
	if channel == commandChannel {
		status := s.status
		s.setStatus("00, OK,00,00")
		return status, nil
	}
	out := s.dataOut
	s.dataOut = nil
	return out, nil
}

func (s *sim1541) WriteToChannel(device byte, channel byte, data []byte) error {
	if channel != commandChannel {
		s.dataIn = append(s.dataIn, data...)
		if len(s.dataIn) > SectorSize {
			s.dataIn = s.dataIn[len(s.dataIn)-SectorSize:]
		}
		return nil
	}
	switch {
	case bytes.HasPrefix(data, []byte("M-W")):
		addr := uint16(data[3]) | uint16(data[4])<<8
		length := int(data[5])
		copy(s.ramAt(addr)[:length], data[6:6+length])
	case bytes.HasPrefix(data, []byte("M-E")):
		addr := uint16(data[3]) | uint16(data[4])<<8
		s.execute(addr)
	default:
		s.setStatus("31,SYNTAX ERROR,00,00")
	}
	return nil
}

func (s *sim1541) execute(addr uint16) {
	params := s.ramAt(rwParamTrack)
	key := [2]byte{params[0], params[1]}
	switch addr {
	case rwReadEntry:
		if content, ok := s.sectors[key]; ok {
			s.dataOut = append([]byte(nil), content...)
		} else {
			s.dataOut = make([]byte, SectorSize)
		}
	case rwWriteEntry:
		s.sectors[key] = append([]byte(nil), s.dataIn...)
		s.dataIn = nil
	case fmtEntry:
		s.sectors = make(map[[2]byte][]byte)
	default:
		s.setStatus("39,FILE NOT FOUND,00,00")
	}
}

func TestSectorRoundTrip(t *testing.T) {
	sim := newSim1541()
	d := NewCBM1541Drive(sim, 8)

	for _, sector := range []int{0, 1, 356, 357, 682} {
		content := bytes.Repeat([]byte{byte(sector)}, SectorSize)
		require.NoError(t, d.WriteSector(sector, content), "sector %d", sector)
		read, err := d.ReadSector(sector)
		require.NoError(t, err, "sector %d", sector)
		assert.Equal(t, content, read, "sector %d", sector)
	}
}

func TestSectorRoundTripAfterFormat(t *testing.T) {
	sim := newSim1541()
	d := NewCBM1541Drive(sim, 8)

	content := bytes.Repeat([]byte{0x77}, SectorSize)
	require.NoError(t, d.WriteSector(42, content))
	require.NoError(t, d.FormatDiscLowLevel(NumTracks))

	// Formatting wiped the disc.
	read, err := d.ReadSector(42)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, SectorSize), read)

	// And the drive is immediately usable for sector I/O again.
	require.NoError(t, d.WriteSector(42, content))
	read, err = d.ReadSector(42)
	require.NoError(t, err)
	assert.Equal(t, content, read)
}
