// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

package drive

// 1541 disc geometry. Tracks are numbered from 1 and hold fewer sectors
// towards the center of the disc; linear sector numbers follow the
// standard .d64 order, track 1 sector 0 first.

import "github.com/weirdsoul/uno2iec/pkg/iec"

// SectorSize is the number of bytes in one sector.
const SectorSize = 256

// NumSectors is the total sector count of a standard 35-track disc.
const NumSectors = 683

// NumTracks is the track count of a standard disc. The mechanism can
// reach 40; formatting accepts up to MaxTracks.
const NumTracks = 35
const MaxTracks = 40

var zones = []struct {
	lastTrack  int
	numSectors int
}{
	{17, 21},
	{24, 19},
	{30, 18},
	{35, 17},
}

// SectorsInTrack returns the sector count of a track, or zero for
// tracks outside 1..35.
func SectorsInTrack(track int) int {
	if track < 1 {
		return 0
	}
	for _, z := range zones {
		if track <= z.lastTrack {
			return z.numSectors
		}
	}
	return 0
}

// TrackAndSector converts a linear sector number to its physical
// (track, sector) address.
func TrackAndSector(sector int) (int, int, error) {
	if sector < 0 || sector >= NumSectors {
		return 0, 0, iec.Errorf(iec.InvalidArgument,
			"sector number out of range: %d", sector)
	}
	track := 1
	for _, z := range zones {
		for ; track <= z.lastTrack; track++ {
			if sector < z.numSectors {
				return track, sector, nil
			}
			sector -= z.numSectors
		}
	}
	// Unreachable: the zone table covers all NumSectors sectors.
	return 0, 0, iec.Errorf(iec.InvalidArgument, "sector number out of range")
}

// SectorsInTracks returns the number of sectors contained in the first
// numTracks tracks, capped at the standard geometry.
func SectorsInTracks(numTracks int) int {
	total := 0
	for track := 1; track <= numTracks && track <= NumTracks; track++ {
		total += SectorsInTrack(track)
	}
	return total
}
