package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"krosswordle/internal/puzzle"
)

var (
	colorAccent  = lipgloss.Color("#8BC34A")
	colorInfo    = lipgloss.Color("#2196F3")
	colorWarning = lipgloss.Color("#FFC107")
	colorDanger  = lipgloss.Color("#e53935")
	colorMuted   = lipgloss.Color("#6b7280")
)

var styles = struct {
	title, notice, muted        lipgloss.Style
	cell, inert, active, cursor lipgloss.Style
	revealed, solved, bomb      lipgloss.Style
	panel                       lipgloss.Style
}{
	title:    lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
	notice:   lipgloss.NewStyle().Foreground(colorWarning),
	muted:    lipgloss.NewStyle().Foreground(colorMuted),
	cell:     lipgloss.NewStyle().Padding(0, 1),
	inert:    lipgloss.NewStyle().Padding(0, 1).Foreground(colorMuted),
	active:   lipgloss.NewStyle().Padding(0, 1).Underline(true).Foreground(colorInfo),
	cursor:   lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true),
	revealed: lipgloss.NewStyle().Padding(0, 1).Italic(true).Foreground(colorWarning),
	solved:   lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(colorAccent),
	bomb:     lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(colorDanger),
	panel:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorMuted).Padding(0, 1),
}

func renderView(v puzzle.View) string {
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		styles.title.Render("KrossWordle"), "  ",
		styles.muted.Render(v.Date), "  ",
		formatClock(v.ElapsedSeconds))

	switch v.State {
	case puzzle.StateNoLevel:
		return header + "\n" + styles.notice.Render("No puzzle today. Come back tomorrow.")
	case puzzle.StateFrozen:
		parts := []string{header, styles.notice.Render("The month is over. Play opens again on the 1st.")}
		if v.Winners != nil {
			parts = append(parts, renderWinners(v.Winners))
		}
		return strings.Join(append(parts, renderLeaderboard(v.Leaderboard)), "\n")
	}

	parts := []string{header, styles.panel.Render(renderGrid(v)), renderPowers(v.Powers), renderClues(v)}
	switch v.State {
	case puzzle.StateUnstarted:
		parts = append(parts, styles.notice.Render("Type start to begin. The clock starts with it."))
	case puzzle.StateCompleted:
		if v.Score != nil {
			parts = append(parts, styles.title.Render(fmt.Sprintf("Solved in %s for %d points!",
				formatClock(v.Score.CompletionTimeSeconds), v.Score.Points)))
		} else {
			parts = append(parts, styles.title.Render("Solved!"))
		}
		if len(v.Leaderboard) > 0 {
			parts = append(parts, renderLeaderboard(v.Leaderboard))
		}
	}
	return strings.Join(parts, "\n")
}

func formatClock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func renderGrid(v puzzle.View) string {
	solved := make(map[puzzle.Position]bool)
	if v.Level != nil {
		correct := make(map[string]bool, len(v.Results))
		for _, r := range v.Results {
			correct[r.ID] = r.IsCorrect
		}
		for _, w := range v.Level.Words {
			if correct[w.ID] {
				for _, p := range w.Cells() {
					solved[p] = true
				}
			}
		}
	}
	inActive := make(map[puzzle.Position]bool)
	if v.ActiveWord != nil {
		for _, p := range v.ActiveWord.Cells() {
			inActive[p] = true
		}
	}

	var b strings.Builder
	b.WriteString("  ")
	for x := 0; x < puzzle.GridSize; x++ {
		b.WriteString(styles.muted.Render(fmt.Sprintf(" %d ", x)))
	}
	for y := 0; y < puzzle.GridSize; y++ {
		b.WriteString("\n")
		b.WriteString(styles.muted.Render(fmt.Sprintf("%d ", y)))
		for x := 0; x < puzzle.GridSize; x++ {
			b.WriteString(renderCell(v, puzzle.Position{X: x, Y: y}, solved, inActive))
		}
	}
	return b.String()
}

func renderCell(v puzzle.View, p puzzle.Position, solved, inActive map[puzzle.Position]bool) string {
	cell := v.Grid.At(p.X, p.Y)
	if cell == nil {
		return styles.inert.Render("·")
	}
	letter := cell.Letter
	if letter == "" {
		letter = "_"
	}

	switch {
	case v.Cursor != nil && *v.Cursor == p:
		return styles.cursor.Render(letter)
	case cell.IsBombEffect:
		return styles.bomb.Render(letter)
	case solved[p]:
		return styles.solved.Render(letter)
	case cell.IsRevealed:
		return styles.revealed.Render(letter)
	case inActive[p]:
		return styles.active.Render(letter)
	}
	return styles.cell.Render(letter)
}

func renderPowers(powers []puzzle.PowerState) string {
	items := make([]string, 0, len(powers))
	for _, ps := range powers {
		s := fmt.Sprintf("%s x%d", ps.Type, ps.Uses)
		if ps.Uses == 0 {
			s = styles.muted.Render(s)
		}
		items = append(items, s)
	}
	return "powers: " + strings.Join(items, "  ")
}

func renderClues(v puzzle.View) string {
	if v.Level == nil {
		return ""
	}
	correct := make(map[string]bool, len(v.Results))
	for _, r := range v.Results {
		correct[r.ID] = r.IsCorrect
	}

	lines := make([]string, 0, len(v.Level.Words))
	for _, w := range v.Level.Words {
		mark := "[ ]"
		if correct[w.ID] {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s (%d,%d) %s, %d letters: %s",
			mark, w.ID, w.X, w.Y, w.Direction, len([]rune(w.Word)), w.Clue)
		switch {
		case v.ActiveWord != nil && v.ActiveWord.ID == w.ID:
			line = styles.active.UnsetPadding().Render(line)
		case correct[w.ID]:
			line = styles.solved.UnsetPadding().Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderLeaderboard(entries []puzzle.LeaderboardEntry) string {
	if len(entries) == 0 {
		return styles.muted.Render("No scores yet this month.")
	}
	lines := []string{styles.title.Render("Leaderboard")}
	for i, e := range entries {
		if i == 10 {
			break
		}
		lines = append(lines, fmt.Sprintf("%2d. %-20s %5d pts  best %s  %d played",
			e.Rank, e.DisplayName, e.TotalScore, formatClock(e.BestTime), e.GamesPlayed))
	}
	return styles.panel.Render(strings.Join(lines, "\n"))
}

func renderWinners(w *puzzle.MonthWinners) string {
	lines := []string{styles.title.Render("Winners of " + w.Month)}
	if w.Prize != "" {
		lines = append(lines, "Prize: "+w.Prize)
	}
	if len(w.Entries) == 0 {
		lines = append(lines, styles.muted.Render("Nobody finished a puzzle this month."))
	}
	for _, e := range w.Entries {
		lines = append(lines, fmt.Sprintf("%d. %-20s best %s", e.Rank, e.DisplayName, formatClock(e.BestTime)))
	}
	return styles.panel.Render(strings.Join(lines, "\n"))
}
