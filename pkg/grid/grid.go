// Package grid maps linear indexes onto rows of fixed-width cells.
package grid

// GetGridCoords returns the column and row of cell index in a grid that is
// cols cells wide.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// Rows returns how many rows of cols cells are needed to hold n cells.
func Rows(n, cols int) int {
	if n <= 0 {
		return 0
	}
	return (n + cols - 1) / cols
}
