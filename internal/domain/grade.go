package domain

// Letter-grade ranking. Grades run A+ (best) down to F; a trailing "+" or
// "-" shifts the base rank by a fractional step. Unknown or empty grades
// rank below everything so ungraded tiles sink to the bottom of the board.

const gradeModifierStep = 0.3

var gradeBase = map[byte]float64{
	'A': 4,
	'B': 3,
	'C': 2,
	'D': 1,
	'F': 0,
}

// GradeRank maps a letter grade to a sortable rank. Higher is better.
// Unrecognized input returns -1.
func GradeRank(grade string) float64 {
	if grade == "" {
		return -1
	}
	base, ok := gradeBase[grade[0]]
	if !ok {
		return -1
	}
	if len(grade) > 1 {
		switch grade[1] {
		case '+':
			base += gradeModifierStep
		case '-':
			base -= gradeModifierStep
		}
	}
	return base
}
