package boardgame

// group is a maximal 4-connected set of intersections of one color.
type group struct {
	stones    []int // row-major indices
	liberties int
}

// findGroup flood-fills the group containing index `start`, which must
// hold a stone (not CellEmpty/CellObscured), and counts its liberties
// (distinct empty neighbors).
func findGroup(b Board, start int) group {
	color := b.Cells[start]
	visited := make(map[int]bool)
	libertySet := make(map[int]bool)
	stack := []int{start}
	visited[start] = true

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := b.Shape.XY(i)
		for _, n := range neighbors(b.Shape, x, y) {
			switch b.Cells[n] {
			case CellEmpty:
				libertySet[n] = true
			case color:
				if !visited[n] {
					visited[n] = true
					stack = append(stack, n)
				}
			default:
				// other color or obscured: neither a liberty nor part of the group
			}
		}
	}

	stones := make([]int, 0, len(visited))
	for i := range visited {
		stones = append(stones, i)
	}
	return group{stones: stones, liberties: len(libertySet)}
}

// neighbors returns the row-major indices of the 4-connected neighbors of
// (x,y) that lie on the board.
func neighbors(shape BoardShape, x, y int) []int {
	var out []int
	if x > 0 {
		out = append(out, shape.Index(x-1, y))
	}
	if x < shape.Width-1 {
		out = append(out, shape.Index(x+1, y))
	}
	if y > 0 {
		out = append(out, shape.Index(x, y-1))
	}
	if y < shape.Height-1 {
		out = append(out, shape.Index(x, y+1))
	}
	return out
}

// ApplyMove places a stone of color c at p on a clone of board, removes
// every opposing group adjacent to p left with zero liberties, then
// removes the just-placed group itself if it too is left with zero
// liberties (suicide is permitted — the core does not enforce Go rules,
// it only executes the transformation consistent with what will be
// observed on the physical board).
func ApplyMove(board Board, c Color, p SgfPoint) Board {
	result := board.Clone()
	if !result.Shape.Contains(p.X, p.Y) {
		return result
	}
	idx := result.Shape.Index(p.X, p.Y)
	result.Cells[idx] = c.Cell()

	opponent := c.Opposite().Cell()
	for _, n := range neighbors(result.Shape, p.X, p.Y) {
		if result.Cells[n] != opponent {
			continue
		}
		g := findGroup(result, n)
		if g.liberties == 0 {
			for _, s := range g.stones {
				result.Cells[s] = CellEmpty
			}
		}
	}

	selfGroup := findGroup(result, idx)
	if selfGroup.liberties == 0 {
		for _, s := range selfGroup.stones {
			result.Cells[s] = CellEmpty
		}
	}

	return result
}
