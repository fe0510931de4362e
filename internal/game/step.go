package game

// StepInfo describes the next step a team must answer: everything the
// MatchController needs to build a wire "step" message, and nothing the
// player couldn't otherwise compute from public data.
type StepInfo struct {
	Block      int
	Phase      Phase
	Op         string
	OutputName string
	Arity      int
	Inputs     map[string]interface{}
}

// NextStep computes the public inputs for whatever phase s is currently
// waiting on. Dispatch is a table keyed by phase, per the design note
// against inheritance-based polymorphism.
func NextStep(s *State) *StepInfo {
	switch s.CurrentPhase {
	case PhaseTPW:
		return &StepInfo{
			Phase: PhaseTPW, Op: "ascii(password)", OutputName: "password_ascii", Arity: 4,
			Inputs: map[string]interface{}{"password_hint": string(s.Password), "len": 4},
		}
	case PhaseTMSG:
		return &StepInfo{
			Phase: PhaseTMSG, Op: "ascii(message)", OutputName: "message_ascii", Arity: 4,
			Inputs: map[string]interface{}{"message_hint": string(s.Message), "len": 4},
		}
	case PhaseA:
		return &StepInfo{
			Block: s.CurrentBlock, Phase: PhaseA, Op: "(v + prev + t) mod m", OutputName: "u", Arity: s.Params.N,
			Inputs: map[string]interface{}{"v": s.CurrentV(), "prev": s.PrevVec, "t": s.Tweak(), "m": s.Params.M},
		}
	case PhaseB:
		return &StepInfo{
			Block: s.CurrentBlock, Phase: PhaseB, Op: "x^3 mod m", OutputName: "u_prime", Arity: s.Params.N,
			Inputs: map[string]interface{}{"u": s.U, "m": s.Params.M, "sbox": "x^3 mod m"},
		}
	case PhaseC:
		return &StepInfo{
			Block: s.CurrentBlock, Phase: PhaseC, Op: "M . u_prime mod m", OutputName: "w", Arity: s.Params.N,
			Inputs: map[string]interface{}{"M": s.Params.Matrix, "u_prime": s.UPrime, "m": s.Params.M},
		}
	case PhaseD:
		return &StepInfo{
			Block: s.CurrentBlock, Phase: PhaseD, Op: "(w + b + t) mod m", OutputName: "c", Arity: s.Params.N,
			Inputs: map[string]interface{}{"w": s.W, "b": s.Params.B, "t": s.Tweak(), "m": s.Params.M},
		}
	default:
		return nil
	}
}

// ExpectedArity returns the vector length the current phase expects.
func ExpectedArity(phase Phase, n int) int {
	switch phase {
	case PhaseTPW, PhaseTMSG:
		return 4
	default:
		return n
	}
}
