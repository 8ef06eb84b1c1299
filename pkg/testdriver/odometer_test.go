package testdriver

import "testing"

func collect(mods []int) [][]int {
	o := NewOdometer(mods)
	var out [][]int

	for {
		cur := append([]int(nil), o.Current()...)
		out = append(out, cur)
		if !o.Next() {
			break
		}
	}
	return out
}

func TestOdometer_EmptyModsYieldsOneCombination(t *testing.T) {
	combos := collect(nil)
	if len(combos) != 1 || len(combos[0]) != 0 {
		t.Fatalf("expected exactly one empty combination, got %v", combos)
	}
}

func TestOdometer_SingleDimension(t *testing.T) {
	combos := collect([]int{3})
	want := [][]int{{0}, {1}, {2}}
	if !equalCombos(combos, want) {
		t.Fatalf("got %v, want %v", combos, want)
	}
}

func TestOdometer_LeastSignificantFirst(t *testing.T) {
	combos := collect([]int{2, 3})
	want := [][]int{
		{0, 0}, {1, 0},
		{0, 1}, {1, 1},
		{0, 2}, {1, 2},
	}
	if !equalCombos(combos, want) {
		t.Fatalf("got %v, want %v", combos, want)
	}
}

func TestOdometer_ExactlyOnceEachVisitsTotalProduct(t *testing.T) {
	mods := []int{2, 3, 4}
	combos := collect(mods)
	if len(combos) != 2*3*4 {
		t.Fatalf("expected %d combinations, got %d", 2*3*4, len(combos))
	}

	seen := make(map[string]bool)
	for _, c := range combos {
		key := ""
		for _, v := range c {
			key += string(rune('0' + v))
		}
		if seen[key] {
			t.Fatalf("combination %v visited more than once", c)
		}
		seen[key] = true
	}
}

func equalCombos(a, b [][]int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}
