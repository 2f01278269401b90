package ui

import (
	"fmt"

	"github.com/crashsight/crashsight/internal/scenario"

	"github.com/gdamore/tcell/v2"
)

var (
	panelStyle  = tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)
	titleStyle  = panelStyle.Bold(true)
	keyStyle    = panelStyle.Foreground(tcell.ColorYellow)
	bannerStyle = tcell.StyleDefault.Background(tcell.ColorRed).Foreground(tcell.ColorWhite).Bold(true)
)

// Draw paints the stats panel, the key help and, while an alert is active, the
// accident banner.
func (s *Shell) Draw(screen tcell.Screen) {
	s.mu.Lock()
	st := s.stats
	alerting := s.now().Before(s.alertUntil)
	s.mu.Unlock()

	lines := []struct {
		text  string
		style tcell.Style
	}{
		{" Accident Detection Stats ", titleStyle},
		{fmt.Sprintf(" Detection Confidence: %s ", st.confidence), panelStyle},
		{fmt.Sprintf(" Collision Type: %s ", st.collisionType), panelStyle},
		{fmt.Sprintf(" Estimated Impact Force: %s ", st.impactForce), panelStyle},
	}
	for i, l := range lines {
		putString(screen, 0, i, l.text, l.style)
	}

	_, h := screen.Size()
	putString(screen, 0, h-1, helpLine(), keyStyle)

	if alerting {
		w, _ := screen.Size()
		text := "  " + alertText + "  "
		putString(screen, (w-len(text))/2, h/2-4, text, bannerStyle)
	}
}

func helpLine() string {
	line := ""
	for i, id := range scenario.IDs() {
		line += fmt.Sprintf(" [%d] %s ", i+1, scenario.Name(id))
	}
	return line + " [r] restart  [←↑↓→] orbit  [q] quit "
}

func putString(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	w, h := screen.Size()
	if y < 0 || y >= h {
		return
	}
	for _, r := range text {
		if x >= w {
			return
		}
		if x >= 0 {
			screen.SetContent(x, y, r, nil, style)
		}
		x++
	}
}
