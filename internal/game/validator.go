package game

import (
	"fmt"
	"reflect"

	"github.com/sebastiandperez/hascill-crypto-race/internal/cipher"
)

// Outcome is the result of validating one step_answer.
type Outcome struct {
	Accepted bool
	For      string // "TPW", "TMSG", or "block<i>_phaseX"
	Expected []int64
	Message  string // gate/diagnostic message, set only when !Accepted and Expected is nil
}

// vecEqual compares two int64 vectors for exact equality.
func vecEqual(a, b []int64) bool {
	return reflect.DeepEqual(a, b)
}

func stepLabel(block int, phase Phase) string {
	return fmt.Sprintf("block%d_phase%s", block, phase)
}

// Validate is the authoritative step oracle described in spec §4.4. It
// never mutates state on a gate failure, and a wrong-vector rejection
// changes nothing but Errors (incremented by one); on acceptance it
// applies every transition for that phase atomically.
// Gate failures ("complete phase X first") are reported idempotently and
// do not count as a submission error — they indicate a client/protocol
// bug, not an incorrect cryptographic answer.
func Validate(s *State, phase Phase, vector []int64) Outcome {
	switch phase {
	case PhaseTPW:
		return validateTPW(s, vector)
	case PhaseTMSG:
		return validateTMSG(s, vector)
	case PhaseA:
		return validatePhaseA(s, vector)
	case PhaseB:
		return validatePhaseB(s, vector)
	case PhaseC:
		return validatePhaseC(s, vector)
	case PhaseD:
		return validatePhaseD(s, vector)
	default:
		return Outcome{Accepted: false, Message: fmt.Sprintf("no such phase %q", phase)}
	}
}

func validateTPW(s *State, vector []int64) Outcome {
	if s.AsciiPwDone {
		return Outcome{Accepted: false, Message: "TPW already completed"}
	}
	if !vecEqual(vector, s.ExpectedPwdAscii) {
		s.Errors++
		return Outcome{Accepted: false, For: "TPW", Expected: s.ExpectedPwdAscii}
	}
	s.AsciiPwDone = true
	return Outcome{Accepted: true, For: "TPW"}
}

func validateTMSG(s *State, vector []int64) Outcome {
	if !s.AsciiPwDone {
		return Outcome{Accepted: false, Message: "complete TPW first"}
	}
	if s.AsciiMsgDone {
		return Outcome{Accepted: false, Message: "TMSG already completed"}
	}
	if !vecEqual(vector, s.ExpectedMsgAscii) {
		s.Errors++
		return Outcome{Accepted: false, For: "TMSG", Expected: s.ExpectedMsgAscii}
	}
	s.AsciiMsgDone = true
	s.CurrentPhase = PhaseA
	return Outcome{Accepted: true, For: "TMSG"}
}

func validatePhaseA(s *State, vector []int64) Outcome {
	if s.CurrentPhase != PhaseA {
		return Outcome{Accepted: false, Message: "not currently phase A"}
	}
	t := s.Tweak()
	v := s.CurrentV()
	expected := cipher.PhaseA(v, s.PrevVec, t, s.Params.M)
	if !vecEqual(vector, expected) {
		s.Errors++
		return Outcome{Accepted: false, For: stepLabel(s.CurrentBlock, PhaseA), Expected: expected}
	}
	s.U = append([]int64(nil), vector...)
	s.CurrentPhase = PhaseB
	return Outcome{Accepted: true, For: stepLabel(s.CurrentBlock, PhaseA)}
}

func validatePhaseB(s *State, vector []int64) Outcome {
	if s.CurrentPhase != PhaseB {
		return Outcome{Accepted: false, Message: "not currently phase B"}
	}
	if s.U == nil {
		return Outcome{Accepted: false, Message: "complete phase A first"}
	}
	expected := cipher.PhaseB(s.U, s.Params.M)
	if !vecEqual(vector, expected) {
		s.Errors++
		return Outcome{Accepted: false, For: stepLabel(s.CurrentBlock, PhaseB), Expected: expected}
	}
	s.UPrime = append([]int64(nil), vector...)
	s.CurrentPhase = PhaseC
	return Outcome{Accepted: true, For: stepLabel(s.CurrentBlock, PhaseB)}
}

func validatePhaseC(s *State, vector []int64) Outcome {
	if s.CurrentPhase != PhaseC {
		return Outcome{Accepted: false, Message: "not currently phase C"}
	}
	if s.UPrime == nil {
		return Outcome{Accepted: false, Message: "complete phase B first"}
	}
	expected := cipher.PhaseC(s.Params.Matrix, s.UPrime, s.Params.M)
	if !vecEqual(vector, expected) {
		s.Errors++
		return Outcome{Accepted: false, For: stepLabel(s.CurrentBlock, PhaseC), Expected: expected}
	}
	s.W = append([]int64(nil), vector...)
	s.CurrentPhase = PhaseD
	return Outcome{Accepted: true, For: stepLabel(s.CurrentBlock, PhaseC)}
}

func validatePhaseD(s *State, vector []int64) Outcome {
	if s.CurrentPhase != PhaseD {
		return Outcome{Accepted: false, Message: "not currently phase D"}
	}
	if s.W == nil {
		return Outcome{Accepted: false, Message: "complete phase C first"}
	}
	t := s.Tweak()
	expected := cipher.PhaseD(s.W, s.Params.B, t, s.Params.M)
	if !vecEqual(vector, expected) {
		s.Errors++
		return Outcome{Accepted: false, For: stepLabel(s.CurrentBlock, PhaseD), Expected: expected}
	}

	c := append([]int64(nil), vector...)
	s.CBlocks = append(s.CBlocks, c)
	s.PrevVec = c
	s.U, s.UPrime, s.W = nil, nil, nil
	s.CurrentBlock++
	s.CurrentPhase = PhaseA
	if s.CurrentBlock >= len(s.VBlocks) {
		s.Finished = true
		s.CurrentPhase = PhaseDone
	}
	return Outcome{Accepted: true, For: stepLabel(s.CurrentBlock-1, PhaseD)}
}
