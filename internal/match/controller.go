package match

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/sebastiandperez/hascill-crypto-race/internal/audit"
	"github.com/sebastiandperez/hascill-crypto-race/internal/dashboard"
	"github.com/sebastiandperez/hascill-crypto-race/internal/game"
	"github.com/sebastiandperez/hascill-crypto-race/internal/metrics"
	"github.com/sebastiandperez/hascill-crypto-race/internal/wire"
)

// RotationPolicy selects when a team's turn queue rotates.
type RotationPolicy string

const (
	RotatePhase RotationPolicy = "phase"
	RotateBlock RotationPolicy = "block"
)

// MaxTeams is the highest team number a client may join.
const MaxTeams = 6

// DisclosureLevel controls whether a rejected step_answer's error frame
// includes the expected vector — the reference implementation always
// does; this makes that Open Question from spec.md §9 a concrete,
// configurable knob instead of a silent constant.
type DisclosureLevel string

const (
	DisclosureFull     DisclosureLevel = "full"
	DisclosureRedacted DisclosureLevel = "redacted"
)

// Config configures a new Controller.
type Config struct {
	Password   []byte
	Message    []byte
	Rotate     RotationPolicy
	BlockSize  int // n; defaults to 2
	Disclosure DisclosureLevel
	Audit      *audit.Store
	Spectators *dashboard.Hub
	Metrics    *metrics.Metrics
}

// Controller owns every team, the active challenge, and the global match
// flags. All mutation happens under mu; network writes always happen
// after mu is released, against a snapshot of recipients taken while
// holding the lock.
type Controller struct {
	mu sync.Mutex

	password []byte
	message  []byte
	rotate   RotationPolicy
	n        int
	disclose DisclosureLevel

	startFlag   bool
	paused      bool
	gameOver    bool
	winner      *int
	startTime   time.Time
	fingerprint string

	teams        map[int]*TeamState
	nextClientID int

	audit      *audit.Store
	spectators *dashboard.Hub
	metrics    *metrics.Metrics
}

// New constructs a Controller for the given challenge and policy.
func New(cfg Config) *Controller {
	n := cfg.BlockSize
	if n == 0 {
		n = 2
	}
	disclose := cfg.Disclosure
	if disclose == "" {
		disclose = DisclosureFull
	}
	return &Controller{
		password:     cfg.Password,
		message:      cfg.Message,
		rotate:       cfg.Rotate,
		n:            n,
		disclose:     disclose,
		teams:        make(map[int]*TeamState),
		nextClientID: 1,
		audit:        cfg.Audit,
		spectators:   cfg.Spectators,
		metrics:      cfg.Metrics,
	}
}

// DashboardSnapshot implements dashboard.MatchInfo.
func (m *Controller) DashboardSnapshot() dashboard.Snapshot {
	st := m.Status()
	rows := make([]dashboard.TeamRow, 0, len(st.Teams))
	for _, t := range st.Teams {
		rows = append(rows, dashboard.TeamRow{
			TeamID: t.TeamID, Connected: t.Connected, ReadyCnt: t.ReadyCnt,
			InMatch: t.InMatch, Finished: t.Finished,
		})
	}
	return dashboard.Snapshot{
		Rotate: string(st.Rotate), StartFlag: st.StartFlag, Paused: st.Paused,
		GameOver: st.GameOver, Winner: st.Winner, Teams: rows,
	}
}

// DashboardScoreboard implements dashboard.MatchInfo.
func (m *Controller) DashboardScoreboard() []byte {
	m.mu.Lock()
	sb := m.buildScoreboardLocked()
	m.mu.Unlock()
	data, err := json.Marshal(sb)
	if err != nil {
		return []byte(`{}`)
	}
	return data
}

func (m *Controller) recordAudit(kind string, team int, detail map[string]interface{}) {
	if m.audit == nil {
		return
	}
	m.mu.Lock()
	fp := m.fingerprint
	m.mu.Unlock()
	m.audit.Record(fp, kind, team, detail)
}

func (m *Controller) pushToSpectators(v interface{}) {
	if m.spectators == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	m.spectators.Broadcast(data)
}

// teamStatusSnapshot is the data needed to build a team_status frame,
// captured while holding mu.
type teamStatusSnapshot struct {
	team       int
	connected  int
	readyCnt   int
	readyAll   bool
	recipients []*ClientConn
}

func (m *Controller) snapshotTeamStatus(t *TeamState) teamStatusSnapshot {
	recips := make([]*ClientConn, 0, len(t.conns))
	for _, c := range t.conns {
		recips = append(recips, c)
	}
	return teamStatusSnapshot{
		team:       t.TeamID,
		connected:  len(t.conns),
		readyCnt:   t.readyCount(),
		readyAll:   t.readyAll(),
		recipients: recips,
	}
}

func broadcastTeamStatus(snap teamStatusSnapshot) {
	msg := wire.TeamStatusMsg{
		Type:      "team_status",
		Team:      snap.team,
		Connected: snap.connected,
		ReadyCnt:  snap.readyCnt,
		ReadyAll:  snap.readyAll,
	}
	for _, c := range snap.recipients {
		_ = c.Send(msg)
	}
}

// turnSnapshot captures the data needed for a turn frame per recipient
// (you_turn differs per recipient, so the broadcast is built once the
// lock is released using this snapshot).
type turnSnapshot struct {
	current    *int
	order      []int
	recipients []*ClientConn
}

func (m *Controller) snapshotTurn(t *TeamState) turnSnapshot {
	var current *int
	if cid, ok := t.turns.Current(); ok {
		v := cid
		current = &v
	}
	recips := make([]*ClientConn, 0, len(t.conns))
	for _, c := range t.conns {
		recips = append(recips, c)
	}
	return turnSnapshot{current: current, order: t.turns.Order(), recipients: recips}
}

func broadcastTurn(snap turnSnapshot) {
	for _, c := range snap.recipients {
		youTurn := snap.current != nil && *snap.current == c.ID
		_ = c.Send(wire.TurnMsg{
			Type:    "turn",
			Current: snap.current,
			YouTurn: youTurn,
			Order:   snap.order,
		})
	}
}

func (m *Controller) getOrCreateTeam(id int) *TeamState {
	t, ok := m.teams[id]
	if !ok {
		t = newTeamState(id)
		m.teams[id] = t
	}
	return t
}

// sendError is a small convenience for sending an error frame.
func sendError(c *ClientConn, msg string) {
	_ = c.Send(wire.ErrorMsg{Type: "error", Msg: msg})
}

func (m *Controller) allConnsLocked() []*ClientConn {
	out := make([]*ClientConn, 0)
	for _, t := range m.teams {
		for _, c := range t.conns {
			out = append(out, c)
		}
	}
	return out
}

func (m *Controller) allConns() []*ClientConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allConnsLocked()
}

// stepSnapshot is the data needed to push a "step" frame, captured once
// and fanned out per recipient with you_turn set individually.
type stepSnapshot struct {
	base       wire.StepMsg
	recipients []*ClientConn
}

func (m *Controller) snapshotStep(t *TeamState) *stepSnapshot {
	if t.game == nil {
		return nil
	}
	info := game.NextStep(t.game)
	if info == nil {
		return nil
	}
	turnCid, _ := t.turns.Current()
	recips := make([]*ClientConn, 0, len(t.conns))
	for _, c := range t.conns {
		recips = append(recips, c)
	}
	return &stepSnapshot{
		base: wire.StepMsg{
			Type: "step", Block: info.Block, Phase: string(info.Phase),
			Inputs: info.Inputs, Op: info.Op, OutputName: info.OutputName,
			TurnCid: turnCid,
		},
		recipients: recips,
	}
}

func broadcastStep(snap *stepSnapshot) {
	if snap == nil {
		return
	}
	for _, c := range snap.recipients {
		msg := snap.base
		msg.YouTurn = msg.TurnCid == c.ID
		_ = c.Send(msg)
	}
}

// snapshotStepFor builds the same step frame snapshotStep does, but
// addressed to a single connection only. Used to re-push a step after a
// rejected submission: per spec §4.9, a wrong-arity or failed-validation
// answer re-prompts the offending client, not the whole team.
func (m *Controller) snapshotStepFor(t *TeamState, cc *ClientConn) *stepSnapshot {
	if t.game == nil {
		return nil
	}
	info := game.NextStep(t.game)
	if info == nil {
		return nil
	}
	turnCid, _ := t.turns.Current()
	return &stepSnapshot{
		base: wire.StepMsg{
			Type: "step", Block: info.Block, Phase: string(info.Phase),
			Inputs: info.Inputs, Op: info.Op, OutputName: info.OutputName,
			TurnCid: turnCid,
		},
		recipients: []*ClientConn{cc},
	}
}

// Join registers a new connection to teamID, per spec §4.8 steps 1-5.
// It returns the ClientConn the session loop should own. Broadcasts are
// fanned out after the lock is released, against a snapshot taken while
// holding it.
func (m *Controller) Join(teamID int, conn net.Conn) (*ClientConn, error) {
	if teamID < 1 || teamID > MaxTeams {
		return nil, fmt.Errorf("team %d out of range 1..%d", teamID, MaxTeams)
	}

	m.mu.Lock()
	id := m.nextClientID
	m.nextClientID++
	cc := newClientConn(id, teamID, conn)
	t := m.getOrCreateTeam(teamID)
	t.addConn(cc)
	if !t.inMatch() {
		t.turns.Append(id)
	}
	joined := wire.JoinedMsg{
		Type: "joined", Team: teamID, YourID: id,
		Info: wire.JoinedInfo{
			Password: string(m.password),
			Message:  string(m.message),
			Note:     "password and message are disclosed for learning purposes",
			Rotate:   string(m.rotate),
		},
	}
	statusSnap := m.snapshotTeamStatus(t)
	turnSnap := m.snapshotTurn(t)
	m.mu.Unlock()

	_ = cc.Send(joined)
	broadcastTeamStatus(statusSnap)
	_ = cc.Send(wire.TaskMsg{Type: "task", Task: "ready", Msg: "mark yourself ready to start"})
	broadcastTurn(turnSnap)

	if m.metrics != nil {
		m.metrics.ConnectionOpened()
	}
	m.recordAudit("join", teamID, map[string]interface{}{"client_id": id})
	return cc, nil
}

// SetReady marks cc's client ready and, if every connected team is now
// fully ready, flips the global start gate and kicks off the countdown
// in its own goroutine (so the lock is never held across the sleeps).
func (m *Controller) SetReady(cc *ClientConn) {
	m.mu.Lock()
	t, ok := m.teams[cc.TeamID]
	if !ok || t.inMatch() {
		m.mu.Unlock()
		return
	}
	t.ready[cc.ID] = true
	statusSnap := m.snapshotTeamStatus(t)
	trigger := m.checkStartGateLocked()
	m.mu.Unlock()

	broadcastTeamStatus(statusSnap)
	if trigger {
		go m.runCountdownAndStart(3)
	}
}

// checkStartGateLocked implements the global start gate of spec §4.7:
// every team with at least one connected client must have ready ==
// connected, and at least one team must be connected at all. Must be
// called with mu held.
func (m *Controller) checkStartGateLocked() bool {
	if m.startFlag || m.gameOver {
		return false
	}
	any := false
	for _, t := range m.teams {
		if len(t.conns) == 0 {
			continue
		}
		any = true
		if t.readyCount() != len(t.conns) {
			return false
		}
	}
	if !any {
		return false
	}
	m.startFlag = true
	return true
}

// runCountdownAndStart broadcasts seconds, seconds-1, ..., 1 one per
// second, then begins the match. Intended to run on its own goroutine.
func (m *Controller) runCountdownAndStart(seconds int) {
	for s := seconds; s >= 1; s-- {
		msg := wire.CountdownMsg{Type: "countdown", Seconds: s}
		for _, c := range m.allConns() {
			_ = c.Send(msg)
		}
		time.Sleep(time.Second)
	}
	m.beginMatch()
}

// beginMatch constructs GameState for every team with at least one
// connection, seeds its turn queue from connected clients in join
// order, and pushes the first step to each.
func (m *Controller) beginMatch() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.fingerprint = audit.Fingerprint(m.password, m.message, m.startTime)
	var stepSnaps []*stepSnapshot
	for _, t := range m.teams {
		if len(t.conns) == 0 {
			continue
		}
		ids := t.connectedIDs()
		g, err := game.New(m.password, m.message, m.n)
		if err != nil {
			log.Printf("match: team %d: deriving challenge: %v", t.TeamID, err)
			continue
		}
		t.game = g
		t.turns.Seed(ids)
		t.clearReady()
		stepSnaps = append(stepSnaps, m.snapshotStep(t))
	}
	recipients := m.allConnsLocked()
	m.mu.Unlock()

	startMsg := wire.StartMsg{Type: "start", Msg: "match starting"}
	for _, c := range recipients {
		_ = c.Send(startMsg)
	}
	m.pushToSpectators(startMsg)
	for _, s := range stepSnaps {
		broadcastStep(s)
		if s != nil {
			m.pushToSpectators(s.base)
		}
	}
	m.recordAudit("match_start", 0, nil)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// buildScoreboardLocked assembles the scoreboard per spec §4.9's sort
// order: finished desc, time asc, blocks_done desc, team_id asc. Must be
// called with mu held.
func (m *Controller) buildScoreboardLocked() *wire.ScoreboardMsg {
	rows := make([]wire.ScoreRow, 0, len(m.teams))
	errCounts := make([]float64, 0, len(m.teams))
	var times []float64
	reportingTeams := 0

	for _, t := range m.teams {
		if t.game == nil {
			continue
		}
		var timeSec *float64
		if t.winTime != nil {
			sec := round3(t.winTime.Sub(m.startTime).Seconds())
			timeSec = &sec
			times = append(times, sec)
		}
		rows = append(rows, wire.ScoreRow{
			Team:       t.TeamID,
			Finished:   t.game.Finished,
			BlocksDone: t.game.CurrentBlock,
			TotalBlock: t.game.TotalBlocks(),
			Phase:      string(t.game.CurrentPhase),
			Errors:     t.game.Errors,
			TimeSec:    timeSec,
		})
		errCounts = append(errCounts, float64(t.game.Errors))
		if t.game.Errors > 0 || t.winTime != nil {
			reportingTeams++
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		ri, rj := rows[i], rows[j]
		if ri.Finished != rj.Finished {
			return ri.Finished
		}
		ti, tj := math.MaxFloat64, math.MaxFloat64
		if ri.TimeSec != nil {
			ti = *ri.TimeSec
		}
		if rj.TimeSec != nil {
			tj = *rj.TimeSec
		}
		if ti != tj {
			return ti < tj
		}
		if ri.BlocksDone != rj.BlocksDone {
			return ri.BlocksDone > rj.BlocksDone
		}
		return ri.Team < rj.Team
	})

	// Per spec, the stats block is pure enrichment: it only appears once
	// at least two teams have something to compare (an error or a
	// finish), never gating gameplay.
	var statsOut *wire.MatchStats
	if reportingTeams >= 2 {
		mean, _ := stats.Mean(errCounts)
		median, _ := stats.Median(errCounts)
		var spread float64
		if len(times) > 1 {
			hi, _ := stats.Max(times)
			lo, _ := stats.Min(times)
			spread = hi - lo
		}
		statsOut = &wire.MatchStats{
			MeanErrors:   round3(mean),
			MedianErrors: round3(median),
			TimeSpread:   round3(spread),
		}
	}

	return &wire.ScoreboardMsg{Type: "scoreboard", Winner: m.winner, Rows: rows, Stats: statsOut}
}

// StepAnswer dispatches one step_answer per spec §4.8/§4.9: rate limit,
// frozen/turn authorization, arity, then the StepValidator oracle.
func (m *Controller) StepAnswer(cc *ClientConn, msg wire.StepAnswerMsg) {
	if !cc.AllowSubmission(time.Now()) {
		sendError(cc, "rate limit exceeded")
		if m.metrics != nil {
			m.metrics.StepValidated("rate_limited")
		}
		return
	}

	m.mu.Lock()

	t, ok := m.teams[cc.TeamID]
	if !ok || t.game == nil {
		m.mu.Unlock()
		sendError(cc, "match has not started")
		return
	}
	if m.gameOver || m.paused {
		m.mu.Unlock()
		sendError(cc, "match frozen")
		return
	}
	current, has := t.turns.Current()
	if !has || current != cc.ID {
		m.mu.Unlock()
		sendError(cc, "not your turn")
		return
	}

	phase := game.Phase(msg.Phase)
	if len(msg.Vector) != game.ExpectedArity(phase, m.n) {
		t.game.Errors++
		snap := m.snapshotStepFor(t, cc)
		m.mu.Unlock()
		sendError(cc, "wrong vector arity")
		broadcastStep(snap)
		if m.metrics != nil {
			m.metrics.StepValidated("arity_error")
		}
		return
	}

	outcome := game.Validate(t.game, phase, msg.Vector)
	if !outcome.Accepted {
		text := outcome.Message
		if text == "" {
			if m.disclose == DisclosureFull {
				text = fmt.Sprintf("rejected for %s, expected %v", outcome.For, outcome.Expected)
			} else {
				text = fmt.Sprintf("rejected for %s", outcome.For)
			}
		}
		snap := m.snapshotStepFor(t, cc)
		m.mu.Unlock()
		sendError(cc, text)
		broadcastStep(snap)
		if m.metrics != nil {
			m.metrics.StepValidated("rejected")
		}
		return
	}

	if m.rotate == RotatePhase || (m.rotate == RotateBlock && phase == game.PhaseD) {
		t.turns.Rotate()
	}

	becameWinner := false
	if t.game.Finished && t.winTime == nil {
		now := time.Now()
		t.winTime = &now
		if m.winner == nil {
			w := t.TeamID
			m.winner = &w
			m.gameOver = true
			becameWinner = true
		}
	}

	ok2 := wire.OkMsg{Type: "ok", For: outcome.For}
	var stepSnap *stepSnapshot
	if !t.game.Finished {
		stepSnap = m.snapshotStep(t)
	}
	turnSnap := m.snapshotTurn(t)

	var scoreboard *wire.ScoreboardMsg
	var gameOver *wire.GameOverMsg
	var everyone []*ClientConn
	if becameWinner {
		scoreboard = m.buildScoreboardLocked()
		gameOver = &wire.GameOverMsg{Type: "game_over", Winner: *m.winner}
		everyone = m.allConnsLocked()
	}
	winningTeam := t.TeamID
	m.mu.Unlock()

	_ = cc.Send(ok2)
	broadcastTurn(turnSnap)
	broadcastStep(stepSnap)
	if stepSnap != nil {
		m.pushToSpectators(stepSnap.base)
	}
	if m.metrics != nil {
		m.metrics.StepValidated("accepted")
	}
	if becameWinner {
		for _, c := range everyone {
			_ = c.Send(*scoreboard)
		}
		for _, c := range everyone {
			_ = c.Send(*gameOver)
		}
		m.pushToSpectators(*scoreboard)
		m.pushToSpectators(*gameOver)
		if m.metrics != nil {
			m.metrics.MatchCompleted()
		}
		m.recordAudit("game_over", winningTeam, map[string]interface{}{"winner": winningTeam})
	}
}

// Pong handles a keepalive reply. Ignored beyond its role in keeping the
// connection's read loop alive.
func (m *Controller) Pong(cc *ClientConn, msg wire.PongMsg) {}

// Disconnect tears down cc's membership in its team. If cc held the
// current turn, the queue's remaining order already makes the next
// player current — no answer is synthesized or validated for the slot
// that was vacated, per the boundary behavior in spec §8.
func (m *Controller) Disconnect(cc *ClientConn) {
	m.mu.Lock()
	t, ok := m.teams[cc.TeamID]
	if !ok {
		m.mu.Unlock()
		_ = cc.Close()
		return
	}
	t.removeConn(cc.ID)
	statusSnap := m.snapshotTeamStatus(t)
	turnSnap := m.snapshotTurn(t)
	m.mu.Unlock()

	_ = cc.Close()
	broadcastTeamStatus(statusSnap)
	broadcastTurn(turnSnap)
	if m.metrics != nil {
		m.metrics.ConnectionClosed()
	}
	m.recordAudit("disconnect", cc.TeamID, map[string]interface{}{"client_id": cc.ID})
}

// StartHeartbeat runs the 20s ping loop described in spec §4.9/§5. The
// caller should run it on its own goroutine; it returns only when stop
// is closed.
func (m *Controller) StartHeartbeat(stop <-chan struct{}) {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ping := wire.PingMsg{Type: "ping", Ts: float64(time.Now().UnixMilli()) / 1000, Proto: wire.ProtoVersion}
			for _, c := range m.allConns() {
				_ = c.Send(ping)
			}
		}
	}
}
