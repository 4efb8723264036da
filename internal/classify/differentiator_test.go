package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Acme Corp!!":  "acme_corp",
		"  leading  ":  "leading",
		"UPPER-CASE_1": "upper_case_1",
		"":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := map[string]string{
		"2024-03-05":       "20240305",
		"2024/03/05":       "20240305",
		"03/05/2024":       "20240305",
		"March 5, 2024":    "20240305",
		"not-a-date-at-all": "not_a_date_at_all",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeDate(in), "NormalizeDate(%q)", in)
	}
}

func TestDifferentiate_PicksFirstNonCollidingPriorityField(t *testing.T) {
	candidate := map[string]string{"brand": "Acme", "version": "v2"}
	siblings := []Sibling{
		{NodeID: "n1", Fields: map[string]string{"brand": "acme"}},
	}

	result := Differentiate(candidate, siblings, "11111111-2222-3333-4444-555555555555")

	assert.False(t, result.Collision)
	assert.Equal(t, "version", result.Field)
	assert.Equal(t, "v2", result.Tail)
}

func TestDifferentiate_SkipsEmptyFields(t *testing.T) {
	candidate := map[string]string{"brand": "", "variant": "Pro"}
	result := Differentiate(candidate, nil, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")

	assert.Equal(t, "variant", result.Field)
	assert.Equal(t, "pro", result.Tail)
	assert.False(t, result.Collision)
}

func TestDifferentiate_FallsBackToUUIDOnPriorityExhaustion(t *testing.T) {
	candidate := map[string]string{"brand": "Acme"}
	siblings := []Sibling{
		{NodeID: "n1", Fields: map[string]string{"brand": "acme"}},
	}
	nodeUUID := "deadbeef-0000-0000-0000-000000000000"

	result := Differentiate(candidate, siblings, nodeUUID)

	assert.True(t, result.Collision)
	assert.True(t, result.PriorityExhausted)
	assert.Equal(t, "unique_id", result.Field)
	assert.Equal(t, strings.ToLower(nodeUUID[:8]), result.Tail)
}

func TestDifferentiate_NoCandidateFieldsFallsBackImmediately(t *testing.T) {
	result := Differentiate(map[string]string{}, nil, "CAFEBABE-0000-0000-0000-000000000000")
	assert.True(t, result.Collision)
	assert.Equal(t, "cafebabe", result.Tail)
}
