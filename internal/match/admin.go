package match

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/sebastiandperez/hascill-crypto-race/internal/game"
	"github.com/sebastiandperez/hascill-crypto-race/internal/wire"
)

// ErrInvalidChallenge is returned when an admin-supplied password or
// message is not exactly 4 ASCII bytes.
var ErrInvalidChallenge = errors.New("challenge text must be exactly 4 ASCII bytes")

func validateChallengeText(b []byte) error {
	if len(b) != 4 {
		return ErrInvalidChallenge
	}
	for _, c := range b {
		if c > 127 {
			return ErrInvalidChallenge
		}
	}
	return nil
}

// Kick closes one connection (clientID > 0) or every connection on a
// team (clientID == 0). Failures closing individual sockets are
// aggregated, never silently dropped — this is the one admin command
// that can partially fail.
func (m *Controller) Kick(team, clientID int) error {
	m.mu.Lock()
	t, ok := m.teams[team]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("no such team %d", team)
	}

	var targets []*ClientConn
	if clientID == 0 {
		targets = make([]*ClientConn, 0, len(t.conns))
		for _, c := range t.conns {
			targets = append(targets, c)
		}
	} else if c, ok := t.conns[clientID]; ok {
		targets = []*ClientConn{c}
	} else {
		m.mu.Unlock()
		return fmt.Errorf("no such client %d on team %d", clientID, team)
	}
	for _, c := range targets {
		t.removeConn(c.ID)
	}
	statusSnap := m.snapshotTeamStatus(t)
	turnSnap := m.snapshotTurn(t)
	m.mu.Unlock()

	var merr *multierror.Error
	for _, c := range targets {
		if err := c.Close(); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("client %d: %w", c.ID, err))
		}
	}
	broadcastTeamStatus(statusSnap)
	broadcastTurn(turnSnap)
	m.recordAudit("admin_kick", team, map[string]interface{}{"client_id": clientID})
	return merr.ErrorOrNil()
}

// StartNow marks every connected client ready and runs the shortened
// admin countdown, bypassing the normal READY gate.
func (m *Controller) StartNow() {
	m.mu.Lock()
	if m.startFlag || m.gameOver {
		m.mu.Unlock()
		return
	}
	for _, t := range m.teams {
		for cid := range t.conns {
			t.ready[cid] = true
		}
	}
	m.startFlag = true
	m.mu.Unlock()

	m.recordAudit("admin_start_now", 0, nil)
	go m.runCountdownAndStart(2)
}

// resetLocked clears every team's game, the global match flags, and
// READY, leaving connections and turn order untouched. Must be called
// with mu held.
func (m *Controller) resetLocked() {
	m.startFlag = false
	m.gameOver = false
	m.winner = nil
	for _, t := range m.teams {
		t.game = nil
		t.winTime = nil
		t.clearReady()
	}
}

// Reset clears game state and the winner but keeps connections and turn
// order, then re-requests READY from everyone.
func (m *Controller) Reset() {
	m.mu.Lock()
	m.resetLocked()
	recipients := m.allConnsLocked()
	m.mu.Unlock()

	task := wire.TaskMsg{Type: "task", Task: "ready", Msg: "match reset, mark yourself ready"}
	for _, c := range recipients {
		_ = c.Send(task)
	}
	m.recordAudit("admin_reset", 0, nil)
}

// SetMessage replaces the challenge plaintext, clears every team's game,
// and re-requests READY. Parameters are not re-derived since the
// password is unchanged.
func (m *Controller) SetMessage(msg []byte) error {
	if err := validateChallengeText(msg); err != nil {
		return err
	}
	m.mu.Lock()
	m.message = msg
	m.resetLocked()
	recipients := m.allConnsLocked()
	m.mu.Unlock()

	m.announceRekey(recipients, "the challenge message has changed")
	m.recordAudit("admin_set_message", 0, nil)
	return nil
}

// SetPassword replaces the challenge password, re-validates that cipher
// parameters can still be derived from it, clears every team's game, and
// re-requests READY.
func (m *Controller) SetPassword(pw []byte) error {
	if err := validateChallengeText(pw); err != nil {
		return err
	}
	m.mu.Lock()
	n := m.n
	message := m.message
	m.mu.Unlock()

	if _, err := game.New(pw, message, n); err != nil {
		return errors.Wrap(err, "admin: set-password: deriving cipher parameters")
	}

	m.mu.Lock()
	m.password = pw
	m.resetLocked()
	recipients := m.allConnsLocked()
	m.mu.Unlock()

	m.announceRekey(recipients, "the challenge password has changed")
	m.recordAudit("admin_set_password", 0, nil)
	return nil
}

func (m *Controller) announceRekey(recipients []*ClientConn, note string) {
	info := wire.InfoMsg{Type: "info", Msg: note}
	task := wire.TaskMsg{Type: "task", Task: "ready", Msg: "mark yourself ready to start"}
	for _, c := range recipients {
		_ = c.Send(info)
		_ = c.Send(task)
	}
}

// Pause halts step dispatch: step_answer is refused with "match frozen"
// until Resume.
func (m *Controller) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
	m.recordAudit("admin_pause", 0, nil)
}

// Resume continues step dispatch and re-pushes the current step to
// every team so nobody's client is left waiting on a stale prompt.
func (m *Controller) Resume() {
	m.mu.Lock()
	m.paused = false
	var snaps []*stepSnapshot
	for _, t := range m.teams {
		if t.game != nil {
			snaps = append(snaps, m.snapshotStep(t))
		}
	}
	m.mu.Unlock()

	for _, s := range snaps {
		broadcastStep(s)
	}
	m.recordAudit("admin_resume", 0, nil)
}

// SetRotate changes the rotation policy. Only valid outside an active
// match.
func (m *Controller) SetRotate(policy RotationPolicy) error {
	if policy != RotatePhase && policy != RotateBlock {
		return fmt.Errorf("unknown rotation policy %q", policy)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.teams {
		if t.inMatch() {
			return fmt.Errorf("cannot change rotation policy during an active match")
		}
	}
	m.rotate = policy
	return nil
}

// Broadcast sends an info frame to every connection.
func (m *Controller) Broadcast(text string) {
	msg := wire.InfoMsg{Type: "info", Msg: text}
	for _, c := range m.allConns() {
		_ = c.Send(msg)
	}
	m.recordAudit("admin_broadcast", 0, map[string]interface{}{"text": text})
}

// StatusSnapshot is the data the admin console's status command prints.
type StatusSnapshot struct {
	Rotate    RotationPolicy
	StartFlag bool
	Paused    bool
	GameOver  bool
	Winner    *int
	Teams     []TeamSummary
}

// TeamSummary is one row of the admin status report.
type TeamSummary struct {
	TeamID    int
	Connected int
	ReadyCnt  int
	InMatch   bool
	Finished  bool
}

// Status reports the whole match's current state for the admin console.
func (m *Controller) Status() StatusSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := StatusSnapshot{
		Rotate: m.rotate, StartFlag: m.startFlag, Paused: m.paused,
		GameOver: m.gameOver, Winner: m.winner,
	}
	ids := make([]int, 0, len(m.teams))
	for id := range m.teams {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		t := m.teams[id]
		finished := t.game != nil && t.game.Finished
		out.Teams = append(out.Teams, TeamSummary{
			TeamID: id, Connected: len(t.conns), ReadyCnt: t.readyCount(),
			InMatch: t.inMatch(), Finished: finished,
		})
	}
	return out
}

// TeamInfo reports per-client detail for one team.
type TeamInfo struct {
	TeamID  int
	Clients []int
	Ready   []int
	Turn    []int
	Current int
	HasGame bool
	Phase   string
	Block   int
	Errors  int
}

// TeamInfo returns detail for one team, or an error if it doesn't exist.
func (m *Controller) TeamInfo(team int) (TeamInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[team]
	if !ok {
		return TeamInfo{}, fmt.Errorf("no such team %d", team)
	}
	out := TeamInfo{TeamID: team, Clients: t.connectedIDs(), Turn: t.turns.Order()}
	for cid := range t.ready {
		out.Ready = append(out.Ready, cid)
	}
	if cur, has := t.turns.Current(); has {
		out.Current = cur
	}
	if t.game != nil {
		out.HasGame = true
		out.Phase = string(t.game.CurrentPhase)
		out.Block = t.game.CurrentBlock
		out.Errors = t.game.Errors
	}
	return out, nil
}

// Quit publishes a final scoreboard and closes every connection. The
// caller is responsible for exiting the process afterward.
func (m *Controller) Quit() {
	m.mu.Lock()
	scoreboard := m.buildScoreboardLocked()
	recipients := m.allConnsLocked()
	m.mu.Unlock()

	for _, c := range recipients {
		_ = c.Send(*scoreboard)
	}
	for _, c := range recipients {
		_ = c.Close()
	}
	m.recordAudit("admin_quit", 0, nil)
}
