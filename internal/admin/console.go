// Package admin implements the synchronous operator REPL described in
// spec §4.10. It reads lines from stdin on its own goroutine so it never
// blocks the connection-accept loop or the heartbeat timer, and every
// command it dispatches goes through MatchController's own locking, the
// same serialization boundary network handlers use.
package admin

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sebastiandperez/hascill-crypto-race/internal/match"
	"github.com/sebastiandperez/hascill-crypto-race/internal/metrics"
)

// Console is the admin REPL bound to one match controller.
type Console struct {
	ctl     *match.Controller
	metrics *metrics.Metrics
	out     io.Writer
	quit    chan struct{}
}

// New returns a Console that writes its output to out.
func New(ctl *match.Controller, m *metrics.Metrics, out io.Writer) *Console {
	return &Console{ctl: ctl, metrics: m, out: out, quit: make(chan struct{})}
}

// Done returns a channel that's closed once "quit" has been processed.
func (c *Console) Done() <-chan struct{} {
	return c.quit
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

// Run reads commands from r until EOF or "quit". Intended to run on its
// own goroutine, typically fed from os.Stdin.
func (c *Console) Run(r io.Reader) {
	scanner := bufio.NewScanner(r)
	c.printf("hascill admin console ready; type 'help' for commands\n")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		args, err := splitShellWords(line)
		if err != nil {
			c.printf("error: %v\n", err)
			continue
		}
		if c.dispatch(args) {
			return
		}
	}
}

// dispatch runs one parsed command line and returns true if the console
// should stop (i.e. "quit" was issued).
func (c *Console) dispatch(args []string) bool {
	if len(args) == 0 {
		return false
	}
	cmd, rest := args[0], args[1:]
	if c.metrics != nil {
		c.metrics.AdminCommand(cmd)
	}

	switch cmd {
	case "kick":
		c.cmdKick(rest)
	case "start-now":
		c.ctl.StartNow()
		c.printf("ok: countdown started, ignoring ready gate\n")
	case "set-message":
		c.cmdSetMessage(rest)
	case "set-password":
		c.cmdSetPassword(rest)
	case "pause":
		c.ctl.Pause()
		c.printf("ok: paused\n")
	case "resume":
		c.ctl.Resume()
		c.printf("ok: resumed\n")
	case "reset":
		c.ctl.Reset()
		c.printf("ok: match reset\n")
	case "set-rotate":
		c.cmdSetRotate(rest)
	case "status":
		c.cmdStatus()
	case "team-info":
		c.cmdTeamInfo(rest)
	case "broadcast":
		c.cmdBroadcast(rest)
	case "audit-status":
		c.printf("audit log is wired through MatchController; see status for match state\n")
	case "stats":
		c.printf("%s\n", c.ctl.DashboardScoreboard())
	case "help":
		c.printHelp()
	case "quit":
		c.ctl.Quit()
		close(c.quit)
		return true
	default:
		c.printf("unknown command %q; type 'help'\n", cmd)
	}
	return false
}

func (c *Console) cmdKick(args []string) {
	if len(args) < 1 {
		c.printf("usage: kick <team> [client_id]\n")
		return
	}
	team, err := strconv.Atoi(args[0])
	if err != nil {
		c.printf("error: bad team %q\n", args[0])
		return
	}
	clientID := 0
	if len(args) >= 2 {
		clientID, err = strconv.Atoi(args[1])
		if err != nil {
			c.printf("error: bad client_id %q\n", args[1])
			return
		}
	}
	if err := c.ctl.Kick(team, clientID); err != nil {
		c.printf("error: %v\n", err)
		return
	}
	c.printf("ok: kicked team %d client %d\n", team, clientID)
}

func (c *Console) cmdSetMessage(args []string) {
	if len(args) != 1 {
		c.printf("usage: set-message <4-ASCII>\n")
		return
	}
	if err := c.ctl.SetMessage([]byte(args[0])); err != nil {
		c.printf("error: %v\n", err)
		return
	}
	c.printf("ok: message updated\n")
}

func (c *Console) cmdSetPassword(args []string) {
	if len(args) != 1 {
		c.printf("usage: set-password <4-ASCII>\n")
		return
	}
	if err := c.ctl.SetPassword([]byte(args[0])); err != nil {
		c.printf("error: %v\n", err)
		return
	}
	c.printf("ok: password updated\n")
}

func (c *Console) cmdSetRotate(args []string) {
	if len(args) != 1 {
		c.printf("usage: set-rotate phase|block\n")
		return
	}
	if err := c.ctl.SetRotate(match.RotationPolicy(args[0])); err != nil {
		c.printf("error: %v\n", err)
		return
	}
	c.printf("ok: rotation policy set to %s\n", args[0])
}

func (c *Console) cmdStatus() {
	st := c.ctl.Status()
	winner := "none"
	if st.Winner != nil {
		winner = strconv.Itoa(*st.Winner)
	}
	c.printf("rotate=%s start=%v paused=%v game_over=%v winner=%s\n", st.Rotate, st.StartFlag, st.Paused, st.GameOver, winner)
	for _, t := range st.Teams {
		c.printf("  team %d: connected=%d ready=%d in_match=%v finished=%v\n", t.TeamID, t.Connected, t.ReadyCnt, t.InMatch, t.Finished)
	}
}

func (c *Console) cmdTeamInfo(args []string) {
	if len(args) != 1 {
		c.printf("usage: team-info <team>\n")
		return
	}
	team, err := strconv.Atoi(args[0])
	if err != nil {
		c.printf("error: bad team %q\n", args[0])
		return
	}
	info, err := c.ctl.TeamInfo(team)
	if err != nil {
		c.printf("error: %v\n", err)
		return
	}
	c.printf("team %d: clients=%v ready=%v turn_order=%v current=%d\n", info.TeamID, info.Clients, info.Ready, info.Turn, info.Current)
	if info.HasGame {
		c.printf("  block=%d phase=%s errors=%d\n", info.Block, info.Phase, info.Errors)
	}
}

func (c *Console) cmdBroadcast(args []string) {
	if len(args) < 1 {
		c.printf("usage: broadcast \"<text>\"\n")
		return
	}
	c.ctl.Broadcast(strings.Join(args, " "))
	c.printf("ok: broadcast sent\n")
}

func (c *Console) printHelp() {
	c.printf(`commands:
  kick <team> [client_id]     close one or all connections on a team
  start-now                   ready everyone and count down, ignoring the gate
  set-message <4-ASCII>       replace the challenge plaintext
  set-password <4-ASCII>      replace the challenge password and re-derive
  pause / resume              halt or continue step dispatch
  reset                       clear game state, keep connections
  set-rotate phase|block      change rotation policy (outside a match)
  status                      summarize match and team state
  team-info <team>            detail one team
  broadcast "<text>"          send an info message to everyone
  audit-status                report audit log wiring
  stats                       print the current scoreboard JSON
  help                        this text
  quit                        publish a final scoreboard and exit
`)
}
