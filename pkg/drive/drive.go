// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

// Package drive operates disc drives: the physical CBM 1541 reached
// through the IEC bridge, and a .d64 image file standing in for one.
// Both honor the same capability contract so tools can copy between
// them without caring which side is real hardware.
package drive

// Drive is the capability contract shared by all drive variants.
// Sector numbers are linear; SectorSize bytes per sector.
type Drive interface {
	// FormatDiscLowLevel formats numTracks tracks, destroying all
	// data. On the physical drive this can take around a minute.
	FormatDiscLowLevel(numTracks int) error

	// GetNumSectors returns the number of addressable sectors.
	GetNumSectors() int

	// ReadSector returns the SectorSize bytes of the given sector.
	ReadSector(sector int) ([]byte, error)

	// WriteSector writes SectorSize bytes to the given sector.
	WriteSector(sector int, content []byte) error
}

// Bus is the subset of the bus connection the drive layer needs. It is
// satisfied by *iec.BusConnection.
type Bus interface {
	Reset() error
	OpenChannel(device byte, channel byte, cmd []byte) error
	ReadFromChannel(device byte, channel byte) ([]byte, error)
	WriteToChannel(device byte, channel byte, data []byte) error
	CloseChannel(device byte, channel byte) error
}
