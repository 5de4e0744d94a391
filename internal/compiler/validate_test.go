package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickloop/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateJobValid(t *testing.T) {
	valid := []ir.JobSpec{
		{Name: "a", Kind: ir.JobOnce},
		{Name: "b", Kind: ir.JobOnce, After: 10},
		{Name: "c", Kind: ir.JobEvery, Every: 3},
		{Name: "d", Kind: ir.JobEveryOffset, Every: 3, Offset: 7},
		{Name: "e", Kind: ir.JobTick, Every: 1},
		{Name: "f", Kind: ir.JobTock, Every: 1},
		{Name: "g", Kind: ir.JobCount, Every: 1, Start: 1, End: 3},
		{Name: "h", Kind: ir.JobCount, Every: 1, Start: 2, End: 2, Offset: 4},
		{Name: "i", Kind: ir.JobCount2, Every: 1, Start: 0, End: 1, Start2: 0, End2: 2},
	}

	for _, j := range valid {
		t.Run(j.Name, func(t *testing.T) {
			assert.Empty(t, ValidateJob(&j))
		})
	}
}

func TestValidateJobErrors(t *testing.T) {
	tests := []struct {
		name string
		job  ir.JobSpec
		want []string
	}{
		{"empty name", ir.JobSpec{Name: " ", Kind: ir.JobOnce}, []string{ErrJobNameEmpty}},
		{"unknown kind", ir.JobSpec{Name: "x", Kind: "weekly"}, []string{ErrInvalidKind}},
		{"repeating without every", ir.JobSpec{Name: "x", Kind: ir.JobTick}, []string{ErrIntervalTooSmall}},
		{"negative after", ir.JobSpec{Name: "x", Kind: ir.JobOnce, After: -1}, []string{ErrNegativeDelay}},
		{"negative offset", ir.JobSpec{Name: "x", Kind: ir.JobEveryOffset, Every: 1, Offset: -1}, []string{ErrNegativeDelay}},
		{"after on repeating", ir.JobSpec{Name: "x", Kind: ir.JobEvery, Every: 1, After: 2}, []string{ErrFieldNotForKind}},
		{"offset on tick", ir.JobSpec{Name: "x", Kind: ir.JobTick, Every: 1, Offset: 2}, []string{ErrFieldNotForKind}},
		{"count range", ir.JobSpec{Name: "x", Kind: ir.JobCount, Every: 1, Start: 4, End: 3}, []string{ErrCounterRange}},
		{"count with inner digit", ir.JobSpec{Name: "x", Kind: ir.JobCount, Every: 1, End2: 3}, []string{ErrFieldNotForKind}},
		{"count2 inner range", ir.JobSpec{Name: "x", Kind: ir.JobCount2, Every: 1, Start2: 9, End2: 0}, []string{ErrCounterRange}},
		{"counter on once", ir.JobSpec{Name: "x", Kind: ir.JobOnce, End: 5}, []string{ErrFieldNotForKind}},
		{
			"multiple",
			ir.JobSpec{Name: "", Kind: ir.JobEvery, Every: 0, After: 1},
			[]string{ErrJobNameEmpty, ErrIntervalTooSmall, ErrFieldNotForKind},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateJob(&tt.job)
			assert.Equal(t, tt.want, codes(errs))
		})
	}
}

func TestValidateJobUnknownKindStopsEarly(t *testing.T) {
	errs := ValidateJob(&ir.JobSpec{Name: "x", Kind: "weekly", Every: -5, After: -1})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "once, every, every_offset, tick, tock, count, count2")
}

func TestValidateProgramDuplicateNames(t *testing.T) {
	errs := ValidateProgram([]ir.JobSpec{
		{Name: "blink", Kind: ir.JobTick, Every: 1},
		{Name: "blink", Kind: ir.JobTock, Every: 1},
	})

	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateName, errs[0].Code)
	assert.Equal(t, "job.blink", errs[0].Field)
}

func TestValidateProgramPrefixesField(t *testing.T) {
	errs := ValidateProgram([]ir.JobSpec{
		{Name: "slow", Kind: ir.JobEvery},
	})

	require.Len(t, errs, 1)
	assert.Equal(t, "job.slow.every", errs[0].Field)
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "every", Message: "too small", Code: ErrIntervalTooSmall}
	assert.Equal(t, "[E103] every: too small", e.Error())

	e.Line = 4
	assert.Equal(t, "[E103] line 4: every: too small", e.Error())
}
