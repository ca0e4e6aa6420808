package matching

import (
	"reflect"
	"testing"
)

func TestAssignSquare(t *testing.T) {
	cases := []struct {
		cost [][]float64
		want []int
	}{
		{[][]float64{{1, 2}, {2, 1}}, []int{0, 1}},
		{[][]float64{{2, 1}, {1, 2}}, []int{1, 0}},
		{
			[][]float64{
				{4, 1, 3},
				{2, 0, 5},
				{3, 2, 2},
			},
			[]int{1, 0, 2},
		},
	}
	for _, c := range cases {
		if got := assign(c.cost); !reflect.DeepEqual(got, c.want) {
			t.Errorf("assign(%v) = %v, want %v", c.cost, got, c.want)
		}
	}
}

func TestAssignRectangular(t *testing.T) {
	cost := [][]float64{
		{1, 9, 9, 9},
		{9, 9, 1, 9},
	}
	if got := assign(cost); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("assign = %v, want [0 2]", got)
	}
}

func TestAssignTiesAreDeterministic(t *testing.T) {
	cost := [][]float64{
		{0, 0, 0},
		{0, 0, 0},
	}
	// Equal weights resolve to the smallest indices.
	if got := assign(cost); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("assign = %v, want [0 1]", got)
	}
	for i := 0; i < 5; i++ {
		if got := assign(cost); !reflect.DeepEqual(got, []int{0, 1}) {
			t.Fatalf("assignment changed across runs: %v", got)
		}
	}
}

func TestAssignEmpty(t *testing.T) {
	if got := assign(nil); got != nil {
		t.Errorf("assign(nil) = %v", got)
	}
}
