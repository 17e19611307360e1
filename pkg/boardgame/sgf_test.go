package boardgame

import "testing"

func TestSgfRoundTrip(t *testing.T) {
	for y := 0; y < 52; y++ {
		for x := 0; x < 52; x++ {
			s, err := EncodeSgfPoint(SgfPoint{X: x, Y: y})
			if err != nil {
				t.Fatalf("encode(%d,%d): %v", x, y, err)
			}
			got, err := DecodeSgfPoint(s)
			if err != nil {
				t.Fatalf("decode(%q): %v", s, err)
			}
			if got.X != x || got.Y != y {
				t.Fatalf("round trip (%d,%d) -> %q -> (%d,%d)", x, y, s, got.X, got.Y)
			}
		}
	}
}

func TestEncodeSgfPointKnownValues(t *testing.T) {
	cases := []struct {
		p    SgfPoint
		want string
	}{
		{SgfPoint{0, 0}, "aa"},
		{SgfPoint{3, 3}, "dd"},
		{SgfPoint{25, 0}, "za"},
		{SgfPoint{26, 0}, "Aa"},
		{SgfPoint{51, 51}, "ZZ"},
		{SgfPoint{15, 3}, "pd"},
	}
	for _, c := range cases {
		got, err := EncodeSgfPoint(c.p)
		if err != nil {
			t.Fatalf("encode(%+v): %v", c.p, err)
		}
		if got != c.want {
			t.Errorf("encode(%+v) = %q, want %q", c.p, got, c.want)
		}
	}
}

func TestEncodeSgfPointOutOfRange(t *testing.T) {
	if _, err := EncodeSgfPoint(SgfPoint{X: 52, Y: 0}); err == nil {
		t.Error("expected error for x=52")
	}
	if _, err := EncodeSgfPoint(SgfPoint{X: -1, Y: 0}); err == nil {
		t.Error("expected error for x=-1")
	}
}

func TestDecodeSgfPointInvalid(t *testing.T) {
	for _, s := range []string{"", "a", "abc", "1a", "a1", "!!"} {
		if _, err := DecodeSgfPoint(s); err == nil {
			t.Errorf("expected error decoding %q", s)
		}
	}
}
