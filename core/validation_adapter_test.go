package core

import "testing"

func TestValidationResultMergeAssociativeErrorConcat(t *testing.T) {
	a := NewInvalidResult[struct{}](ErrNotFound("a"))
	b := NewInvalidResult[struct{}](ErrNotFound("b"))
	c := NewInvalidResult[struct{}](ErrNotFound("c"))

	ab := a.Merge(b)
	abc1 := ab.Merge(c)
	bc := b.Merge(c)
	abc2 := a.Merge(bc)

	if len(abc1.Errors) != 3 || len(abc2.Errors) != 3 {
		t.Fatalf("expected 3 errors in both groupings, got %d and %d", len(abc1.Errors), len(abc2.Errors))
	}
	for i := range abc1.Errors {
		if abc1.Errors[i].Error() != abc2.Errors[i].Error() {
			t.Fatalf("merge not associative at index %d: %v vs %v", i, abc1.Errors[i], abc2.Errors[i])
		}
	}
}

func TestValidationResultMergeDataLastWins(t *testing.T) {
	a := NewValidResult(1)
	b := ValidationResult[int]{}
	c := NewValidResult(3)

	merged := a.Merge(b).Merge(c)
	if !merged.HasData() || merged.Data != 3 {
		t.Fatalf("expected last-set data to win, got %v (hasData=%v)", merged.Data, merged.HasData())
	}

	mergedNoOverwrite := a.Merge(b)
	if !mergedNoOverwrite.HasData() || mergedNoOverwrite.Data != 1 {
		t.Fatalf("expected data-less operand not to clear existing data, got %v", mergedNoOverwrite.Data)
	}
}
