package match

import (
	"time"

	"github.com/sebastiandperez/hascill-crypto-race/internal/game"
	"github.com/sebastiandperez/hascill-crypto-race/internal/turn"
)

// TeamState is one team's lobby and in-match state. All access happens
// under MatchController's mutex.
type TeamState struct {
	TeamID int

	conns     map[int]*ClientConn
	connOrder []int // insertion order, since map iteration order is not a substitute for it

	ready map[int]bool

	turns *turn.Scheduler
	game  *game.State

	winTime *time.Time
}

func newTeamState(id int) *TeamState {
	return &TeamState{
		TeamID:    id,
		conns:     make(map[int]*ClientConn),
		connOrder: make([]int, 0, 4),
		ready:     make(map[int]bool),
		turns:     turn.New(),
	}
}

func (t *TeamState) addConn(c *ClientConn) {
	t.conns[c.ID] = c
	t.connOrder = append(t.connOrder, c.ID)
}

func (t *TeamState) removeConn(id int) {
	delete(t.conns, id)
	delete(t.ready, id)
	t.turns.Remove(id)
	for i, cid := range t.connOrder {
		if cid == id {
			t.connOrder = append(t.connOrder[:i], t.connOrder[i+1:]...)
			break
		}
	}
}

// connectedIDs returns connected client IDs in join order.
func (t *TeamState) connectedIDs() []int {
	out := make([]int, len(t.connOrder))
	copy(out, t.connOrder)
	return out
}

func (t *TeamState) readyCount() int {
	n := 0
	for cid := range t.ready {
		if _, ok := t.conns[cid]; ok {
			n++
		}
	}
	return n
}

func (t *TeamState) readyAll() bool {
	if len(t.conns) == 0 {
		return false
	}
	return t.readyCount() == len(t.conns)
}

func (t *TeamState) clearReady() {
	t.ready = make(map[int]bool)
}

func (t *TeamState) inMatch() bool {
	return t.game != nil
}
