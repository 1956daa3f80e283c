package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	splits "attorney-splits/internal/splits/domain"
)

func TestBuildOriginatorDemo(t *testing.T) {
	jane := splits.Attorney{ID: "1", Name: "Jane Doe"}
	bob := splits.Attorney{ID: "2", Name: "Bob Roe"}
	matters := BuildOriginatorDemo(jane, bob, splits.DefaultPolicy())
	require.Len(t, matters, 3)

	first, ok := matters[0].Originator()
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", first.Name)
	assertDec(t, "4250", first.Amount)
	assertDec(t, "4250", matters[0].Others()[0].Amount)
	assertDec(t, "4250", matters[0].Attribution.WorkingAmount)
	assertDec(t, "1900", matters[1].Attribution.OriginatorAmount)
	assertDec(t, "5100", matters[1].Others()[0].Amount)

	third := matters[2]
	origin, _ := third.Originator()
	assert.Equal(t, "Bob Roe", origin.Name)
	assertDec(t, "8100", origin.Amount)
	assert.Equal(t, "Jane Doe", third.Others()[0].Name)
	assertDec(t, "900", third.Others()[0].Amount)

	report := BuildReport(testNow, "f", matters)
	require.Len(t, report.ByOriginator(), 2)
	assertDec(t, "24500", report.GrandTotal())
}

func TestFindAttorney(t *testing.T) {
	attorneys := []splits.Attorney{{ID: "1", Name: "Jane  Doe"}, {ID: "2", Name: "Bob Roe"}}

	a, ok := FindAttorney(attorneys, " jane doe ")
	require.True(t, ok)
	assert.Equal(t, "1", a.ID)

	_, ok = FindAttorney(attorneys, "nobody")
	assert.False(t, ok)
	_, ok = FindAttorney(attorneys, "")
	assert.False(t, ok)

	assert.Equal(t, "2", OtherAttorney(attorneys, a).ID)
	assert.Equal(t, "1", OtherAttorney(attorneys[:1], a).ID)
}
