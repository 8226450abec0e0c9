package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeRank_Order(t *testing.T) {
	order := []string{"A+", "A", "A-", "B+", "B", "B-", "C", "D", "F"}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, GradeRank(order[i-1]), GradeRank(order[i]),
			"%s should rank above %s", order[i-1], order[i])
	}
}

func TestGradeRank_Unknown(t *testing.T) {
	assert.Equal(t, -1.0, GradeRank(""))
	assert.Equal(t, -1.0, GradeRank("Z"))
	assert.Equal(t, -1.0, GradeRank("??"))
}

func TestGradeRank_ModifierIsFractional(t *testing.T) {
	// A- must still outrank a bare B+.
	assert.Greater(t, GradeRank("A-"), GradeRank("B+"))
	assert.Greater(t, GradeRank("F"), GradeRank("unknown"))
}
