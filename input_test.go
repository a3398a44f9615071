package main

import (
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/stretchr/testify/assert"
)

func TestKeyName(t *testing.T) {
	for k, want := range map[ebiten.Key]string{
		ebiten.KeyM:          "m",
		ebiten.KeyZ:          "z",
		ebiten.KeyT:          "t",
		ebiten.KeySpace:      "space",
		ebiten.KeyEnter:      "return",
		ebiten.KeyArrowUp:    "up",
		ebiten.KeyArrowRight: "right",
		ebiten.KeyDigit1:     "1",
		ebiten.KeyNumpad5:    "num_5",
	} {
		assert.Equal(t, want, keyName(k), k.String())
	}
}
