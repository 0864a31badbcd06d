package game

import "github.com/cartela-live/backend/models"

// Winning pattern names.
const (
	PatternLine        = "line"
	PatternFullHouse   = "full_house"
	PatternFourCorners = "four_corners"
	PatternCross       = "cross"
)

// Result describes the outcome of a pattern check, including the
// tie-breaking context for line wins.
type Result struct {
	Winner   bool   `json:"winner"`
	Variant  string `json:"variant,omitempty"`  // horizontal_line, vertical_line, diagonal_line, full_house, four_corners, cross
	Line     int    `json:"line"`               // row or column index for straight-line wins, -1 otherwise
	Diagonal string `json:"diagonal,omitempty"` // main | anti
}

func noWin() Result { return Result{Line: -1} }

// Evaluate re-derives the marked grid of a card and checks it against the
// named pattern. Pure: never mutates the card. Unknown pattern names yield
// a no-winner result rather than an error so this can run unattended
// inside the draw reconciliation loop.
func Evaluate(card *models.Card, pattern string) Result {
	grid := card.Grid()
	marked := card.MarkedSet()

	// The free center cell counts as marked everywhere.
	isMarked := func(row, col int) bool {
		if row == 2 && col == 2 {
			return true
		}
		return marked[grid[row][col]]
	}

	switch pattern {
	case PatternLine:
		// Check order is part of the contract: rows top to bottom, then
		// columns left to right, then main diagonal, then anti-diagonal.
		// The first full line wins.
		for row := 0; row < 5; row++ {
			if fullRow(isMarked, row) {
				return Result{Winner: true, Variant: "horizontal_line", Line: row}
			}
		}
		for col := 0; col < 5; col++ {
			if fullColumn(isMarked, col) {
				return Result{Winner: true, Variant: "vertical_line", Line: col}
			}
		}
		if fullDiagonal(isMarked, false) {
			return Result{Winner: true, Variant: "diagonal_line", Line: -1, Diagonal: "main"}
		}
		if fullDiagonal(isMarked, true) {
			return Result{Winner: true, Variant: "diagonal_line", Line: -1, Diagonal: "anti"}
		}

	case PatternFullHouse:
		for row := 0; row < 5; row++ {
			for col := 0; col < 5; col++ {
				if !isMarked(row, col) {
					return noWin()
				}
			}
		}
		return Result{Winner: true, Variant: PatternFullHouse, Line: -1}

	case PatternFourCorners:
		if isMarked(0, 0) && isMarked(0, 4) && isMarked(4, 0) && isMarked(4, 4) {
			return Result{Winner: true, Variant: PatternFourCorners, Line: -1}
		}

	case PatternCross:
		// Both arms required: the middle row and the middle column.
		if fullRow(isMarked, 2) && fullColumn(isMarked, 2) {
			return Result{Winner: true, Variant: PatternCross, Line: -1}
		}
	}

	return noWin()
}

func fullRow(isMarked func(int, int) bool, row int) bool {
	for col := 0; col < 5; col++ {
		if !isMarked(row, col) {
			return false
		}
	}
	return true
}

func fullColumn(isMarked func(int, int) bool, col int) bool {
	for row := 0; row < 5; row++ {
		if !isMarked(row, col) {
			return false
		}
	}
	return true
}

func fullDiagonal(isMarked func(int, int) bool, anti bool) bool {
	for i := 0; i < 5; i++ {
		col := i
		if anti {
			col = 4 - i
		}
		if !isMarked(i, col) {
			return false
		}
	}
	return true
}
