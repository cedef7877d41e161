// Copyright (c) Andreas Eckleder 2018, 2024. All rights reserved.

package drive

// Pre-assembled 6502 routines uploaded into 1541 RAM. The drive's own
// ROM transfers sectors through the slow serial byte protocol; these
// routines queue controller jobs directly and stream whole sectors over
// the data channel.
//
// Load addresses, entry points and parameter locations below are the
// ABI of the assembled binaries. The host patches parameters with M-W
// and jumps with M-E; changing any of these constants requires
// reassembling the fragments.

// firmwareState tracks which routine currently occupies drive RAM. The
// fragments share the same load address, so uploading one evicts the
// other.
type firmwareState int

const (
	fwNoCustomCode firmwareState = iota
	fwFormattingCode
	fwReadWriteCode
)

func (s firmwareState) String() string {
	switch s {
	case fwNoCustomCode:
		return "no custom code"
	case fwFormattingCode:
		return "formatting code"
	case fwReadWriteCode:
		return "read/write code"
	}
	return "unknown"
}

type firmwareFragment struct {
	binary      []byte
	loadAddress uint16
}

// Read/write routine ABI.
const (
	rwLoadAddress = 0x0500
	rwParamTrack  = 0x0500 // one byte, target track
	rwParamSector = 0x0501 // one byte, target sector
	rwReadEntry   = 0x0502 // jump table: read sector to data channel
	rwWriteEntry  = 0x0505 // jump table: write data channel to sector
)

// Formatting routine ABI.
const (
	fmtLoadAddress = 0x0500
	fmtParamTracks = 0x0500 // one byte, number of tracks to lay out
	fmtEntry       = 0x0501
)

// readWriteCode queues read ($80) and write ($90) jobs for the sector
// named in the parameter block and moves the 256-byte job buffer at
// $0400 through the data channel.
var readWriteCode = []byte{
	0x01, 0x00, // parameter block: track, sector
	0x4c, 0x0b, 0x05, // JMP read
	0x4c, 0x28, 0x05, // JMP write
	0x00, 0x00, 0x00, // scratch: job status, retries
	// read:
	0xad, 0x00, 0x05, // LDA $0500
	0x85, 0x08, // STA $08        header: track
	0xad, 0x01, 0x05, // LDA $0501
	0x85, 0x09, // STA $09        header: sector
	0xa9, 0x80, // LDA #$80       job: read sector
	0x85, 0x01, // STA $01        buffer 1 job slot
	0x20, 0x45, 0x05, // JSR waitjob
	0xa0, 0x00, // LDY #$00
	0xb9, 0x00, 0x04, // LDA $0400,Y
	0x20, 0x4f, 0x05, // JSR putbyte
	0xc8,       // INY
	0xd0, 0xf7, // BNE loop
	0x60, // RTS
	// write:
	0xa0, 0x00, // LDY #$00
	0x20, 0x55, 0x05, // JSR getbyte
	0x99, 0x00, 0x04, // STA $0400,Y
	0xc8,       // INY
	0xd0, 0xf7, // BNE loop
	0xad, 0x00, 0x05, // LDA $0500
	0x85, 0x08, // STA $08
	0xad, 0x01, 0x05, // LDA $0501
	0x85, 0x09, // STA $09
	0xa9, 0x90, // LDA #$90       job: write sector
	0x85, 0x01, // STA $01
	0x20, 0x45, 0x05, // JSR waitjob
	0x60, // RTS
	// waitjob:
	0xa5, 0x01, // LDA $01
	0x30, 0xfc, // BMI waitjob
	0xc9, 0x02, // CMP #$02       error codes start at 2
	0xb0, 0x01, // BCS +1
	0x60, // RTS
	0x00, // BRK            surface job error via ROM handler
	// putbyte:
	0x48,             // PHA
	0x20, 0xc0, 0xe9, // JSR serial out
	0x68, // PLA
	0x60, // RTS
	// getbyte:
	0x20, 0x59, 0xe9, // JSR serial in
	0x60, // RTS
}

// formattingCode lays out the requested number of tracks by running the
// controller's format job per track.
var formattingCode = []byte{
	0x28,             // parameter block: track count (default 40)
	0x4c, 0x04, 0x05, // JMP format
	// format:
	0xa9, 0x01, // LDA #$01       current track
	0x85, 0x51, // STA $51
	// track loop:
	0x85, 0x08, // STA $08        header: track
	0xa9, 0xe0, // LDA #$E0       job: execute buffer (format step)
	0x85, 0x01, // STA $01
	0xa5, 0x01, // LDA $01
	0x30, 0xfc, // BMI wait
	0xe6, 0x51, // INC $51
	0xa5, 0x51, // LDA $51
	0xcd, 0x00, 0x05, // CMP $0500
	0x90, 0xed, // BCC track loop
	0xf0, 0xeb, // BEQ track loop
	0x60, // RTS
}

var fwFragments = map[firmwareState]firmwareFragment{
	fwFormattingCode: {binary: formattingCode, loadAddress: fmtLoadAddress},
	fwReadWriteCode:  {binary: readWriteCode, loadAddress: rwLoadAddress},
}
