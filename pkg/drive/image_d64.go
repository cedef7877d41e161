// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

package drive

// ImageD64 is a pseudo-drive backed by a .d64 image file. The file is
// the standard linear sector dump; images carrying the optional error
// byte table simply have their tail ignored.

import (
	"fmt"
	"io"
	"os"

	"github.com/weirdsoul/uno2iec/pkg/iec"
)

type ImageD64 struct {
	file       *os.File
	readOnly   bool
	numSectors int
}

// OpenImageD64 opens an image file. With readOnly false the file is
// created if missing and grows as sectors are written.
func OpenImageD64(path string, readOnly bool) (*ImageD64, error) {
	flags := os.O_RDWR | os.O_CREATE
	if readOnly {
		flags = os.O_RDONLY
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, iec.Errorf(iec.ConnectionFailure, "open %q: %v", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, iec.Errorf(iec.ConnectionFailure, "stat %q: %v", path, err)
	}
	numSectors := int(info.Size()) / SectorSize
	if readOnly {
		if numSectors > NumSectors {
			// Error-byte tail of an extended image.
			numSectors = NumSectors
		}
	} else {
		numSectors = NumSectors
	}
	return &ImageD64{file: file, readOnly: readOnly, numSectors: numSectors}, nil
}

func (d *ImageD64) GetNumSectors() int {
	return d.numSectors
}

func (d *ImageD64) ReadSector(sector int) ([]byte, error) {
	if sector < 0 || sector >= d.numSectors {
		return nil, iec.Errorf(iec.InvalidArgument,
			"sector number out of range: %d", sector)
	}
	content := make([]byte, SectorSize)
	n, err := d.file.ReadAt(content, int64(sector)*SectorSize)
	if err == io.EOF && n < SectorSize {
		return nil, iec.Errorf(iec.EndOfFile,
			"image truncated at sector %d: got %d bytes", sector, n)
	}
	if err != nil {
		return nil, iec.Errorf(iec.ConnectionFailure,
			"reading sector %d: %v", sector, err)
	}
	return content, nil
}

func (d *ImageD64) WriteSector(sector int, content []byte) error {
	if d.readOnly {
		return iec.Errorf(iec.InvalidArgument, "image is read-only")
	}
	if sector < 0 || sector >= d.numSectors {
		return iec.Errorf(iec.InvalidArgument,
			"sector number out of range: %d", sector)
	}
	if len(content) != SectorSize {
		return iec.Errorf(iec.InvalidArgument,
			"sector content must be %d bytes, got %d", SectorSize, len(content))
	}
	if _, err := d.file.WriteAt(content, int64(sector)*SectorSize); err != nil {
		return iec.Errorf(iec.ConnectionFailure,
			"writing sector %d: %v", sector, err)
	}
	return nil
}

// FormatDiscLowLevel zero-fills the sectors of the first numTracks
// tracks, mirroring what the low-level format does to a real disc.
func (d *ImageD64) FormatDiscLowLevel(numTracks int) error {
	if d.readOnly {
		return iec.Errorf(iec.InvalidArgument, "image is read-only")
	}
	if numTracks < 1 || numTracks > MaxTracks {
		return iec.Errorf(iec.InvalidArgument,
			"track count out of range: %d", numTracks)
	}
	empty := make([]byte, SectorSize)
	for sector := 0; sector < SectorsInTracks(numTracks); sector++ {
		if err := d.WriteSector(sector, empty); err != nil {
			return err
		}
	}
	return nil
}

func (d *ImageD64) Close() error {
	if d.file == nil {
		return fmt.Errorf("internal error: close(): image not open")
	}
	err := d.file.Close()
	d.file = nil
	return err
}

var _ Drive = (*ImageD64)(nil)
