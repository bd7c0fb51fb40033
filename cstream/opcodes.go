package cstream

// Header layout.
const (
	headerMagic = "CSTR"

	offsetNumChannels = 4
	offsetFlags       = 6
	offsetFastDelays  = 8
	offsetFastIns     = 24
	offsetFastVolumes = 30
	offsetFastCmds    = 36
	offsetStarts      = 40
)

// Header flags.
const (
	FlagWidePointers = 1 << 0
	FlagBigEndian    = 1 << 1
)

// Fast dictionary sizes.
const (
	NumFastDelays      = 16
	NumFastInstruments = 6
	NumFastVolumes     = 6
	NumFastCommands    = 4
)

// MaxStackDepth is the largest call stack a channel can declare.
const MaxStackDepth = 16

// noteCenter is added to a note number to get its single-byte opcode.
const noteCenter = 60

const (
	opNoteMax          = 0xb2
	opNoteNull         = 0xb3
	opNoteOff          = 0xb4
	opNoteOffEnv       = 0xb5
	opEnvRelease       = 0xb6
	opInstrument       = 0xb7
	opPrePorta         = 0xb8
	opArpTime          = 0xb9
	opVibrato          = 0xba
	opVibratoRange     = 0xbb
	opVibratoShape     = 0xbc
	opPitch            = 0xbd
	opArpeggio         = 0xbe
	opVolume           = 0xbf
	opVolSlide         = 0xc0
	opPorta            = 0xc1
	opLegato           = 0xc2
	opVolSlideTarget   = 0xc3
	opTremolo          = 0xc4
	opPanbrello        = 0xc5
	opPanSlide         = 0xc6
	opPanning          = 0xc7
	opFastInstrument   = 0xc8 // 0xc8-0xcd
	opFastVolume       = 0xce // 0xce-0xd3
	opFastCommand      = 0xd4 // 0xd4-0xd7
	opCommand          = 0xd8
	opWait8            = 0xd9
	opWait16           = 0xda
	opWait1            = 0xdb
	opCall16           = 0xdc
	opCall32           = 0xdd
	opReturn           = 0xde
	opJump             = 0xdf
	opLoop             = 0xe0
	opNop              = 0xe1
	opRate             = 0xe2
	opHalt             = 0xef
	opFastDelay        = 0xf0 // 0xf0-0xff
	legatoNullOperand  = 0xff
	rateFractionalBits = 16
)
