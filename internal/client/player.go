// Package client implements the player side of the game protocol: a
// connection loop that mirrors the server's view of the hand and asks a
// Strategy for every decision.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scc-project/scc/internal/game"
	"github.com/scc-project/scc/internal/protocol"
)

const (
	// MaxID is the largest id drawn when none is given.
	MaxID = 100

	// MaxGames is the number of hands the automatic strategy plays.
	MaxGames = 50

	// DefaultReadTimeout bounds the wait for the next server message.
	DefaultReadTimeout = 60 * time.Second
)

// Reasons sent in ERRO when the server misbehaves.
const (
	ReasonUnexpected = "Unexpected message"
	ReasonDiceState  = "Dice command not possible"
)

// ErrStopped is returned by a Strategy that wants to leave the game.
var ErrStopped = errors.New("player stopped")

// ErrReservedID is returned for an id the server already uses for itself.
var ErrReservedID = errors.New("player id is reserved by the server")

// RandomID draws an id in 1..MaxID other than serverPort, which a solo
// server uses as the house id.
func RandomID(serverPort int) int {
	for {
		id := game.DefaultRand.IntN(MaxID) + 1
		if id != serverPort {
			return id
		}
	}
}

// ValidateID checks a player id chosen for a server on serverPort. The
// solo house plays under the port number, so that id would make the house
// dice look like the player's own.
func ValidateID(id, serverPort int) error {
	if id <= 0 {
		return fmt.Errorf("invalid player id %d", id)
	}
	if id == serverPort {
		return fmt.Errorf("%w: %d is the server port", ErrReservedID, id)
	}
	return nil
}

// Turn is what a strategy sees when it has to act on its own dice.
type Turn struct {
	// Dice mirrors the server's dice for this hand. Strategies may read it
	// but must not modify it.
	Dice *game.DiceSet
	// First is true while the opponent has not revealed a score.
	First bool
	// Target is the opponent's score when First is false.
	Target int
}

// Move is a decision on a turn: pass, or take the listed 1-based
// positions.
type Move struct {
	Pass bool
	Take []int
}

// Strategy makes the player's decisions.
type Strategy interface {
	// Rebet is asked on every CASH whether to play another hand.
	Rebet(coins, played int) (bool, error)
	// Play is asked on each of the player's own rolls while rolls remain.
	Play(turn Turn) (Move, error)
}

// Stats counts the hands a player finished.
type Stats struct {
	Played int
	Won    int
	Lost   int
	Tied   int
	Cash   int
}

type phase int

const (
	phaseConnecting phase = iota // STRT sent, waiting for CASH
	phaseIdle                    // CASH received
	phaseBetting                 // BETT sent, waiting for LOOT and PLAY
	phasePlaying                 // hand in progress
	phaseSettled                 // WINS received, waiting for CASH
)

// Player runs one client connection.
type Player struct {
	id          int
	strategy    Strategy
	out         io.Writer
	readTimeout time.Duration
	logger      zerolog.Logger

	conn net.Conn
	dec  *protocol.Decoder
	enc  *protocol.Encoder

	phase       phase
	dice        *game.DiceSet
	targetKnown bool
	target      int
	stats       Stats
}

// NewPlayer creates a player speaking over conn. Progress is written to
// out.
func NewPlayer(conn net.Conn, id int, strategy Strategy, out io.Writer) *Player {
	if out == nil {
		out = io.Discard
	}
	return &Player{
		id:          id,
		strategy:    strategy,
		out:         out,
		readTimeout: DefaultReadTimeout,
		logger: log.With().
			Str("component", "client").
			Int("player", id).
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
		conn: conn,
		dec:  protocol.NewDecoder(conn),
		enc:  protocol.NewEncoder(conn),
		dice: game.NewDiceSet(),
	}
}

// Dial connects to a game server and returns a player on that connection.
func Dial(ctx context.Context, addr string, id int, strategy Strategy, out io.Writer) (*Player, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewPlayer(conn, id, strategy, out), nil
}

// SetReadTimeout changes how long the player waits for the server.
func (p *Player) SetReadTimeout(d time.Duration) {
	p.readTimeout = d
}

// ID returns the player id.
func (p *Player) ID() int { return p.id }

// Run starts the game and plays until the strategy leaves, the server
// ends the session or ctx is cancelled. The connection is closed on return.
func (p *Player) Run(ctx context.Context) (Stats, error) {
	defer p.conn.Close()

	stop := context.AfterFunc(ctx, func() { p.conn.Close() })
	defer stop()

	p.logger.Info().Msg("connected")
	if err := p.send(protocol.Start(p.id)); err != nil {
		return p.stats, err
	}

	for {
		if p.readTimeout > 0 {
			p.conn.SetReadDeadline(time.Now().Add(p.readTimeout))
		}
		msg, err := p.dec.Decode()
		if err != nil {
			var syntax *protocol.SyntaxError
			if errors.As(err, &syntax) {
				return p.stats, p.abort(syntax.Reason)
			}
			if ctx.Err() != nil {
				return p.stats, ctx.Err()
			}
			return p.stats, fmt.Errorf("failed to read from server: %w", err)
		}

		done, err := p.handle(msg)
		if err != nil {
			return p.stats, err
		}
		if done {
			p.logger.Info().Int("played", p.stats.Played).Msg("left the game")
			return p.stats, nil
		}
	}
}

// handle reacts to one server message and reports whether the game is
// over.
func (p *Player) handle(msg protocol.Message) (bool, error) {
	switch msg.Tag() {
	case protocol.TagCash:
		return p.onCash(msg.Coins())
	case protocol.TagLoot:
		if p.phase != phaseBetting {
			return true, p.abort(ReasonUnexpected)
		}
		fmt.Fprintf(p.out, "The loot of this hand is %d\n", msg.Coins())
	case protocol.TagPlay:
		if p.phase != phaseBetting {
			return true, p.abort(ReasonUnexpected)
		}
		if msg.Player() == 0 {
			fmt.Fprintln(p.out, "You roll first")
		} else {
			fmt.Fprintln(p.out, "Your opponent rolls first")
		}
		p.phase = phasePlaying
	case protocol.TagDice:
		if p.phase != phasePlaying {
			return true, p.abort(ReasonUnexpected)
		}
		return p.onDice(msg.ID(), msg.Dice())
	case protocol.TagTake, protocol.TagPass:
		if p.phase != phasePlaying {
			return true, p.abort(ReasonUnexpected)
		}
	case protocol.TagPnts:
		if p.phase != phasePlaying {
			return true, p.abort(ReasonUnexpected)
		}
		p.onPoints(msg.ID(), msg.Points())
	case protocol.TagWins:
		if p.phase != phasePlaying {
			return true, p.abort(ReasonUnexpected)
		}
		p.onWins(msg.Winner())
	case protocol.TagErro:
		fmt.Fprintln(p.out, msg.Reason())
		p.logger.Warn().Str("reason", msg.Reason()).Msg("server reported an error")
		return true, p.send(protocol.Exit())
	default:
		return true, p.abort(ReasonUnexpected)
	}
	return false, nil
}

func (p *Player) onCash(coins int) (bool, error) {
	if p.phase != phaseConnecting && p.phase != phaseSettled {
		return true, p.abort(ReasonUnexpected)
	}
	p.stats.Cash = coins
	fmt.Fprintf(p.out, "Your cash is %d\n", coins)
	p.phase = phaseIdle

	again, err := p.strategy.Rebet(coins, p.stats.Played)
	if errors.Is(err, ErrStopped) {
		again, err = false, nil
	}
	if err != nil {
		return true, err
	}
	if !again {
		return true, p.send(protocol.Exit())
	}

	p.dice = game.NewDiceSet()
	p.targetKnown, p.target = false, 0
	p.phase = phaseBetting
	return false, p.send(protocol.Bet())
}

func (p *Player) onDice(id int, values []int) (bool, error) {
	if id != p.id {
		fmt.Fprintf(p.out, "Opponent rolled %s\n", formatDice(values))
		return false, nil
	}

	if err := p.dice.Observe(values); err != nil {
		return true, p.abort(ReasonDiceState)
	}
	fmt.Fprintf(p.out, "You rolled %s\n", p.dice)

	if !p.dice.CanRoll() {
		return false, nil
	}

	move, err := p.strategy.Play(Turn{Dice: p.dice, First: !p.targetKnown, Target: p.target})
	if errors.Is(err, ErrStopped) {
		return true, p.send(protocol.Exit())
	}
	if err != nil {
		return true, err
	}

	if move.Pass {
		return false, p.send(protocol.Pass(p.id))
	}
	if err := p.dice.Take(move.Take); err != nil {
		return true, fmt.Errorf("strategy chose an invalid take %v: %w", move.Take, err)
	}
	return false, p.send(protocol.Take(p.id, move.Take))
}

func (p *Player) onPoints(id, points int) {
	if id == p.id {
		fmt.Fprintf(p.out, "Your score is %d\n", points)
		return
	}
	fmt.Fprintf(p.out, "Opponent's score is %d\n", points)
	p.targetKnown, p.target = true, points
}

func (p *Player) onWins(winner int) {
	p.stats.Played++
	switch winner {
	case 0:
		p.stats.Won++
		fmt.Fprintln(p.out, "You won the hand")
	case 1:
		p.stats.Lost++
		fmt.Fprintln(p.out, "Your opponent won the hand")
	default:
		p.stats.Tied++
		fmt.Fprintln(p.out, "The hand is tied, the loot stays on the table")
	}
	p.phase = phaseSettled
}

// abort reports a protocol violation to the server and leaves.
func (p *Player) abort(reason string) error {
	p.logger.Warn().Str("reason", reason).Msg("protocol error")
	if err := p.send(protocol.ProtocolError(reason)); err != nil {
		return err
	}
	if err := p.send(protocol.Exit()); err != nil {
		return err
	}
	return &protocol.SyntaxError{Reason: reason}
}

func (p *Player) send(msg protocol.Message) error {
	if err := p.enc.Encode(msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Tag(), err)
	}
	p.logger.Debug().Str("msg", msg.String()).Msg("sent")
	return nil
}

func formatDice(values []int) string {
	out := make([]byte, 0, 2*len(values))
	for i, v := range values {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, byte('0'+v))
	}
	return string(out)
}
