// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

package drive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weirdsoul/uno2iec/pkg/iec"
)

func TestImageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.d64")
	img, err := OpenImageD64(path, false)
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, NumSectors, img.GetNumSectors())

	content := bytes.Repeat([]byte{0xa5}, SectorSize)
	require.NoError(t, img.WriteSector(682, content))
	read, err := img.ReadSector(682)
	require.NoError(t, err)
	assert.Equal(t, content, read)
}

func TestImageReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.d64")
	require.NoError(t, os.WriteFile(path, make([]byte, NumSectors*SectorSize), 0644))

	img, err := OpenImageD64(path, true)
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, NumSectors, img.GetNumSectors())
	err = img.WriteSector(0, make([]byte, SectorSize))
	assert.Equal(t, iec.InvalidArgument, iec.KindOf(err))
	err = img.FormatDiscLowLevel(NumTracks)
	assert.Equal(t, iec.InvalidArgument, iec.KindOf(err))
}

func TestImageWithErrorBytesIsCapped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.d64")
	// Extended image: sector data plus one error byte per sector.
	require.NoError(t, os.WriteFile(path, make([]byte, NumSectors*SectorSize+NumSectors), 0644))

	img, err := OpenImageD64(path, true)
	require.NoError(t, err)
	defer img.Close()
	assert.Equal(t, NumSectors, img.GetNumSectors())
}

func TestImageTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.d64")
	// Ten full sectors and a ragged tail.
	require.NoError(t, os.WriteFile(path, make([]byte, 10*SectorSize+7), 0644))

	img, err := OpenImageD64(path, true)
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, 10, img.GetNumSectors())
	_, err = img.ReadSector(10)
	assert.Equal(t, iec.InvalidArgument, iec.KindOf(err))
}

func TestImageReadPastEndOfData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.d64")
	img, err := OpenImageD64(path, false)
	require.NoError(t, err)
	defer img.Close()

	// Writable images report the full geometry, but reading past the
	// data actually present hits the end of the file.
	_, err = img.ReadSector(5)
	assert.Equal(t, iec.EndOfFile, iec.KindOf(err))
}

func TestImageFormatZeroFills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.d64")
	img, err := OpenImageD64(path, false)
	require.NoError(t, err)
	defer img.Close()

	require.NoError(t, img.WriteSector(0, bytes.Repeat([]byte{0xff}, SectorSize)))
	require.NoError(t, img.FormatDiscLowLevel(NumTracks))
	read, err := img.ReadSector(0)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, SectorSize), read)
}

func TestImageBoundarySectors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.d64")
	img, err := OpenImageD64(path, false)
	require.NoError(t, err)
	defer img.Close()

	_, err = img.ReadSector(-1)
	assert.Equal(t, iec.InvalidArgument, iec.KindOf(err))
	_, err = img.ReadSector(NumSectors)
	assert.Equal(t, iec.InvalidArgument, iec.KindOf(err))
}
