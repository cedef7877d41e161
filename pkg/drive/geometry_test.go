// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

package drive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weirdsoul/uno2iec/pkg/iec"
)

func TestTrackAndSector(t *testing.T) {
	for _, tc := range []struct {
		linear int
		track  int
		sector int
	}{
		{0, 1, 0},
		{20, 1, 20},
		{21, 2, 0},
		{356, 17, 20},  // last sector of the 21-sector zone
		{357, 18, 0},   // first directory track sector
		{375, 18, 18},  // last sector of track 18
		{376, 19, 0},
		{682, 35, 16},  // very last sector
	} {
		track, sector, err := TrackAndSector(tc.linear)
		require.NoError(t, err, "sector %d", tc.linear)
		assert.Equal(t, tc.track, track, "sector %d", tc.linear)
		assert.Equal(t, tc.sector, sector, "sector %d", tc.linear)
	}
}

func TestTrackAndSectorOutOfRange(t *testing.T) {
	for _, linear := range []int{-1, NumSectors, NumSectors + 100} {
		_, _, err := TrackAndSector(linear)
		assert.Equal(t, iec.InvalidArgument, iec.KindOf(err), "sector %d", linear)
	}
}

func TestSectorsInTrack(t *testing.T) {
	assert.Equal(t, 21, SectorsInTrack(1))
	assert.Equal(t, 21, SectorsInTrack(17))
	assert.Equal(t, 19, SectorsInTrack(18))
	assert.Equal(t, 19, SectorsInTrack(24))
	assert.Equal(t, 18, SectorsInTrack(25))
	assert.Equal(t, 18, SectorsInTrack(30))
	assert.Equal(t, 17, SectorsInTrack(31))
	assert.Equal(t, 17, SectorsInTrack(35))
	assert.Equal(t, 0, SectorsInTrack(0))
	assert.Equal(t, 0, SectorsInTrack(36))
}

func TestSectorsInTracksCoversWholeDisc(t *testing.T) {
	assert.Equal(t, NumSectors, SectorsInTracks(NumTracks))
	assert.Equal(t, 21, SectorsInTracks(1))
	// Tracks beyond the standard geometry add nothing.
	assert.Equal(t, NumSectors, SectorsInTracks(MaxTracks))
}
