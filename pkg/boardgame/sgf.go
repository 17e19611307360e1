package boardgame

import "fmt"

// sgfLetters maps 0..51 to the SGF coordinate letters: a-z then A-Z.
const sgfLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// letterValue maps an SGF coordinate letter back to 0..51, or -1 if the
// byte is not a valid SGF letter.
func letterValue(b byte) int {
	switch {
	case b >= 'a' && b <= 'z':
		return int(b - 'a')
	case b >= 'A' && b <= 'Z':
		return int(b-'A') + 26
	default:
		return -1
	}
}

// EncodeSgfPoint renders (x,y) as the two-letter column-then-row SGF
// coordinate. x and y must be in [0,52).
func EncodeSgfPoint(p SgfPoint) (string, error) {
	if p.X < 0 || p.X > 51 || p.Y < 0 || p.Y > 51 {
		return "", fmt.Errorf("boardgame: sgf point %+v out of range", p)
	}
	return string([]byte{sgfLetters[p.X], sgfLetters[p.Y]}), nil
}

// DecodeSgfPoint parses a two-letter SGF coordinate into (x,y).
func DecodeSgfPoint(s string) (SgfPoint, error) {
	if len(s) != 2 {
		return SgfPoint{}, fmt.Errorf("boardgame: sgf point %q must be 2 characters", s)
	}
	x := letterValue(s[0])
	y := letterValue(s[1])
	if x < 0 || y < 0 {
		return SgfPoint{}, fmt.Errorf("boardgame: sgf point %q contains an invalid letter", s)
	}
	return SgfPoint{X: x, Y: y}, nil
}
