package client

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/scc-project/scc/internal/game"
)

// PassScore is the score the automatic strategy stands on when it rolls
// first.
const PassScore = 7

// Automatic plays every hand the same way: it takes whatever the take
// order allows and, once ship, captain and crew are set aside, stands on a
// good enough score.
type Automatic struct {
	// MaxGames caps the number of hands; 0 means MaxGames.
	MaxGames int
}

// Rebet bets while hands remain and the player has gems.
func (a Automatic) Rebet(coins, played int) (bool, error) {
	limit := a.MaxGames
	if limit <= 0 {
		limit = MaxGames
	}
	return played < limit && coins > 0, nil
}

// Play takes every eligible die, or passes once crewed with a score of at
// least PassScore when first or above the opponent's when second.
func (a Automatic) Play(turn Turn) (Move, error) {
	taken := turn.Dice.Eligible()

	after := *turn.Dice
	if err := after.Take(taken); err != nil {
		return Move{}, err
	}
	if after.State() == game.StateCrew {
		score := after.Score()
		if (turn.First && score >= PassScore) || (!turn.First && score > turn.Target) {
			return Move{Pass: true}, nil
		}
	}
	return Move{Take: taken}, nil
}

// Interactive asks a person for every decision, one line at a time.
type Interactive struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewInteractive reads answers from in and writes prompts to out.
func NewInteractive(in io.Reader, out io.Writer) *Interactive {
	return &Interactive{in: bufio.NewScanner(in), out: out}
}

func (s *Interactive) readLine() (string, error) {
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", ErrStopped
	}
	return strings.ToLower(strings.TrimSpace(s.in.Text())), nil
}

// Rebet asks whether to bet on another hand.
func (s *Interactive) Rebet(coins, played int) (bool, error) {
	for {
		fmt.Fprintln(s.out, "Type 'bet' to play a hand or 'exit' to leave")
		line, err := s.readLine()
		if err != nil {
			return false, err
		}
		switch line {
		case "bet", "b", "yes", "y":
			if coins <= 0 {
				fmt.Fprintln(s.out, "You have no gems left")
				continue
			}
			return true, nil
		case "exit", "quit", "q", "no", "n":
			return false, nil
		default:
			fmt.Fprintln(s.out, "Invalid answer, try again")
		}
	}
}

// Play asks for "pass" or "take <positions>" until the answer is legal
// for the current dice.
func (s *Interactive) Play(turn Turn) (Move, error) {
	for {
		hint := turn.Dice.Eligible()
		fmt.Fprintf(s.out, "Dice: %s  (taken dice are marked *, you can take %v)\n", turn.Dice, hint)
		if !turn.First {
			fmt.Fprintf(s.out, "Score to beat: %d\n", turn.Target)
		}
		fmt.Fprintln(s.out, "Type 'take <positions>', 'pass' or 'exit'")

		line, err := s.readLine()
		if err != nil {
			return Move{}, err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "exit", "quit", "q":
			return Move{}, ErrStopped
		case "pass", "p":
			trial := *turn.Dice
			if trial.Score() < 2 {
				fmt.Fprintln(s.out, "You need ship, captain and crew before passing")
				continue
			}
			return Move{Pass: true}, nil
		case "take", "t":
			positions, err := parsePositions(fields[1:])
			if err != nil {
				fmt.Fprintln(s.out, err)
				continue
			}
			trial := *turn.Dice
			if err := trial.Take(positions); err != nil {
				fmt.Fprintf(s.out, "%v, try again\n", err)
				continue
			}
			return Move{Take: positions}, nil
		default:
			fmt.Fprintln(s.out, "Invalid answer, try again")
		}
	}
}

func parsePositions(fields []string) ([]int, error) {
	if len(fields) > 3 {
		return nil, fmt.Errorf("you can take at most 3 dice")
	}
	positions := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > game.NumDice {
			return nil, fmt.Errorf("invalid position %q, use 1-%d", f, game.NumDice)
		}
		positions = append(positions, n)
	}
	return positions, nil
}
