package main

import (
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

var namedKeys = map[ebiten.Key]string{
	ebiten.KeySpace:       "space",
	ebiten.KeyEnter:       "return",
	ebiten.KeyNumpadEnter: "return",
	ebiten.KeyEscape:      "escape",
	ebiten.KeyArrowUp:     "up",
	ebiten.KeyArrowDown:   "down",
	ebiten.KeyArrowLeft:   "left",
	ebiten.KeyArrowRight:  "right",
	ebiten.KeyBackspace:   "backspace",
	ebiten.KeyTab:         "tab",
	ebiten.KeyComma:       "comma",
	ebiten.KeyPeriod:      "period",
	ebiten.KeySlash:       "slash",
	ebiten.KeyMinus:       "minus",
	ebiten.KeyEqual:       "equal",
}

// keyName maps k to the lowercase name used in settings files: letters and
// digits by themselves, arrows by direction, keypad digits as num_N.
func keyName(k ebiten.Key) string {
	if name, ok := namedKeys[k]; ok {
		return name
	}
	s := k.String()
	switch {
	case strings.HasPrefix(s, "Digit"):
		return strings.TrimPrefix(s, "Digit")
	case strings.HasPrefix(s, "Numpad") && len(s) == len("Numpad")+1:
		return "num_" + strings.TrimPrefix(s, "Numpad")
	}
	return strings.ToLower(s)
}

// pressedKeys returns the names of the keys pressed since the last tick.
// The slice is reused across calls.
func (g *Game) pressedKeys() []string {
	g.keyBuf = inpututil.AppendJustPressedKeys(g.keyBuf[:0])
	g.nameBuf = g.nameBuf[:0]
	for _, k := range g.keyBuf {
		g.nameBuf = append(g.nameBuf, keyName(k))
	}
	return g.nameBuf
}
