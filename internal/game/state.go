// Package game implements the per-team cipher progression (GameState) and
// the step validator that is the server's authoritative oracle for every
// player submission.
package game

import "github.com/sebastiandperez/hascill-crypto-race/internal/cipher"

// Phase is the step a team must currently answer.
type Phase string

const (
	PhaseTPW  Phase = "TPW"
	PhaseTMSG Phase = "TMSG"
	PhaseA    Phase = "A"
	PhaseB    Phase = "B"
	PhaseC    Phase = "C"
	PhaseD    Phase = "D"
	PhaseDone Phase = "DONE"
)

// State is one team's progression through the challenge. Exactly one
// phase is pending at any time; u/u'/w are non-nil only for phases
// strictly later than their producing phase within the current block.
type State struct {
	Password []byte
	Message  []byte

	Params *cipher.Params

	VBlocks [][]int64

	ExpectedPwdAscii []int64
	ExpectedMsgAscii []int64
	AsciiPwDone      bool
	AsciiMsgDone     bool

	CurrentBlock int
	CurrentPhase Phase

	PrevVec []int64

	U      []int64
	UPrime []int64
	W      []int64

	CBlocks [][]int64

	Errors   int
	Finished bool
}

// New constructs a GameState for a (password, message) challenge with
// block size n, deriving all cipher parameters and padding the message
// into blocks.
func New(password, message []byte, n int) (*State, error) {
	p, err := cipher.DeriveAll(password, n)
	if err != nil {
		return nil, err
	}
	padded := cipher.Pkcs7Pad(message, n)
	blocks := cipher.ToBlocks(padded, n)

	return &State{
		Password:         password,
		Message:          message,
		Params:           p,
		VBlocks:          blocks,
		ExpectedPwdAscii: cipher.AsciiCodepoints(string(password)),
		ExpectedMsgAscii: cipher.AsciiCodepoints(string(message)),
		CurrentBlock:     0,
		CurrentPhase:     PhaseTPW,
		PrevVec:          p.IV,
		CBlocks:          make([][]int64, 0, len(blocks)),
	}, nil
}

// TotalBlocks returns the number of plaintext blocks in this challenge.
func (s *State) TotalBlocks() int {
	return len(s.VBlocks)
}

// Tweak returns the tweak vector for the current block.
func (s *State) Tweak() []int64 {
	return s.Params.Tweak(s.CurrentBlock)
}

// CurrentV returns the plaintext vector for the current block, or nil
// once the game is finished.
func (s *State) CurrentV() []int64 {
	if s.CurrentBlock >= len(s.VBlocks) {
		return nil
	}
	return s.VBlocks[s.CurrentBlock]
}
