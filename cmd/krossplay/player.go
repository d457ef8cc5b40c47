package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"krosswordle/internal/puzzle"
)

const helpText = `commands:
  start              start today's attempt
  sel X Y            select a cell; again on the same cell switches word
  next X Y           switch to the other word crossing X Y
  type LETTERS       type from the cursor onwards
  back               clear the cursor cell or step back
  power TYPE         middle, swap or bomb
  board              redraw
  leaders            show the monthly leaderboard
  quit               save and exit`

var powerAliases = map[string]puzzle.PowerType{
	"middle":        puzzle.MiddleLetter,
	"middle_letter": puzzle.MiddleLetter,
	"swap":          puzzle.SwapReveal,
	"swap_reveal":   puzzle.SwapReveal,
	"bomb":          puzzle.Bomb,
}

type game interface {
	Start(ctx context.Context) error
	SelectCell(x, y int) bool
	SelectNextWordAtSameCell(x, y int) bool
	TypeLetter(x, y int, ch rune) bool
	Backspace() bool
	UsePower(t puzzle.PowerType) bool
	Autosave(ctx context.Context) error
	Flush()
	Close()
	View() puzzle.View
}

type player struct {
	game    game
	out     io.Writer
	timeout time.Duration
}

func newPlayer(g game, out io.Writer) *player {
	return &player{game: g, out: out, timeout: 10 * time.Second}
}

func (p *player) prompt() {
	fmt.Fprint(p.out, "> ")
}

func (p *player) render() {
	fmt.Fprintln(p.out, renderView(p.game.View()))
}

func (p *player) say(format string, args ...interface{}) {
	fmt.Fprintln(p.out, styles.notice.Render(fmt.Sprintf(format, args...)))
}

// handle runs one command line and reports whether the player asked to quit
func (p *player) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	args := fields[1:]

	switch strings.ToLower(fields[0]) {
	case "quit", "q", "exit":
		return true
	case "help", "h", "?":
		fmt.Fprintln(p.out, helpText)
		return false
	case "board", "b":
	case "leaders", "l":
		fmt.Fprintln(p.out, renderLeaderboard(p.game.View().Leaderboard))
		return false
	case "start":
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		if err := p.game.Start(ctx); err != nil {
			if errors.Is(err, puzzle.ErrNotStartable) {
				p.say("nothing to start: %s", p.game.View().State)
			} else {
				p.say("%v", err)
			}
			return false
		}
	case "sel", "s", "select":
		x, y, ok := p.coords(args)
		if !ok {
			return false
		}
		if !p.game.SelectCell(x, y) {
			p.say("no word at %d %d", x, y)
			return false
		}
	case "next", "n":
		x, y, ok := p.coords(args)
		if !ok {
			return false
		}
		if !p.game.SelectNextWordAtSameCell(x, y) {
			p.say("no other word crosses %d %d", x, y)
			return false
		}
	case "type", "t":
		if len(args) == 0 {
			p.say("usage: type LETTERS")
			return false
		}
		if !p.typeLetters(strings.Join(args, "")) {
			return false
		}
	case "back", "del":
		if !p.game.Backspace() {
			p.say("nothing to clear")
			return false
		}
	case "power", "p":
		if len(args) != 1 {
			p.say("usage: power middle|swap|bomb")
			return false
		}
		t, ok := powerAliases[strings.ToLower(args[0])]
		if !ok {
			p.say("unknown power %q", args[0])
			return false
		}
		if !p.game.UsePower(t) {
			p.say("%s had no effect", t)
			return false
		}
	default:
		p.say("unknown command %q, type help", fields[0])
		return false
	}

	p.render()
	return false
}

func (p *player) coords(args []string) (int, int, bool) {
	if len(args) != 2 {
		p.say("usage: X Y")
		return 0, 0, false
	}
	x, errX := strconv.Atoi(args[0])
	y, errY := strconv.Atoi(args[1])
	if errX != nil || errY != nil {
		p.say("coordinates must be numbers")
		return 0, 0, false
	}
	return x, y, true
}

// typeLetters fills the active word from the cursor onwards, stepping over revealed cells
func (p *player) typeLetters(s string) bool {
	v := p.game.View()
	if v.Cursor == nil || v.ActiveWord == nil {
		p.say("select a cell first")
		return false
	}
	cells := v.ActiveWord.Cells()
	idx := v.ActiveWord.IndexOf(v.Cursor.X, v.Cursor.Y)
	if idx < 0 {
		idx = 0
	}

	typed := 0
	for _, r := range s {
		for idx < len(cells) && revealed(v.Grid, cells[idx]) {
			idx++
		}
		if idx >= len(cells) {
			break
		}
		if !p.game.TypeLetter(cells[idx].X, cells[idx].Y, r) {
			break
		}
		idx++
		typed++
	}
	if typed == 0 {
		p.say("nothing typed")
	}
	return typed > 0
}

func revealed(g puzzle.Grid, p puzzle.Position) bool {
	c := g.At(p.X, p.Y)
	return c != nil && c.IsRevealed
}

// shutdown saves unfinished progress, waits for a pending score and stops the game loops
func (p *player) shutdown() {
	if p.game.View().State == puzzle.StatePlaying {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.game.Autosave(ctx); err != nil {
			p.say("progress not saved: %v", err)
		}
		cancel()
	}
	p.game.Flush()
	p.game.Close()
}
