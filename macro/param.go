package macro

import (
	"fmt"
)

// Param identifies a macro slot.
// The slots are dense: any Param below NumParams is a valid array index.
type Param uint8

const (
	ParamVol Param = iota
	ParamArp
	ParamDuty
	ParamWave
	ParamPitch
	ParamEx1
	ParamEx2
	ParamEx3
	ParamEx4
	ParamEx5
	ParamEx6
	ParamEx7
	ParamEx8
	ParamEx9
	ParamEx10
	ParamAlg
	ParamFB
	ParamFMS
	ParamAMS
	ParamPanL
	ParamPanR
	ParamPhaseReset
	ParamFMS2
	ParamAMS2
	ParamOp1TL
	ParamOp2TL
	ParamOp3TL
	ParamOp4TL

	NumParams
)

var paramNames = [NumParams]string{
	ParamVol:        "vol",
	ParamArp:        "arp",
	ParamDuty:       "duty",
	ParamWave:       "wave",
	ParamPitch:      "pitch",
	ParamEx1:        "ex1",
	ParamEx2:        "ex2",
	ParamEx3:        "ex3",
	ParamEx4:        "ex4",
	ParamEx5:        "ex5",
	ParamEx6:        "ex6",
	ParamEx7:        "ex7",
	ParamEx8:        "ex8",
	ParamEx9:        "ex9",
	ParamEx10:       "ex10",
	ParamAlg:        "alg",
	ParamFB:         "fb",
	ParamFMS:        "fms",
	ParamAMS:        "ams",
	ParamPanL:       "pan_l",
	ParamPanR:       "pan_r",
	ParamPhaseReset: "phase_reset",
	ParamFMS2:       "fms2",
	ParamAMS2:       "ams2",
	ParamOp1TL:      "op1_tl",
	ParamOp2TL:      "op2_tl",
	ParamOp3TL:      "op3_tl",
	ParamOp4TL:      "op4_tl",
}

func (p Param) String() string {
	if p < NumParams {
		return paramNames[p]
	}
	return fmt.Sprintf("param(%d)", uint8(p))
}

// Table is an instrument macro table.
// A nil entry means the instrument has no macro for that slot.
type Table [NumParams]*Source
