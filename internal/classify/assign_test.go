package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignCodes_FunctionOnly(t *testing.T) {
	c := &Classification{Segment: "engineering", Category: "tools", ContentType: "article"}
	codes, fnResult, orgResult := AssignCodes(c, map[string]string{"brand": "Acme"}, nil, "", nil, "uuid-1234")

	assert.Equal(t, "engineering.tools.article.acme", codes.FunctionCode)
	assert.Empty(t, codes.OrganizationCode)
	assert.Equal(t, "brand", fnResult.Field)
	assert.False(t, fnResult.Collision)
	assert.Equal(t, DifferentiatorResult{}, orgResult)
}

func TestAssignCodes_WithOrganizationAndCollision(t *testing.T) {
	c := &Classification{Segment: "engineering", Category: "tools", ContentType: "article", Organization: "Acme"}
	existingFn := []string{"engineering.tools.article.acme"}
	existingOrg := []string{"acme.acme"}

	codes, fnResult, orgResult := AssignCodes(
		c, map[string]string{"brand": "Acme"},
		existingFn, "acme", existingOrg,
		"deadbeef-0000-0000-0000-000000000000",
	)

	assert.True(t, fnResult.Collision, "brand 'acme' collides with the existing sibling tail")
	assert.Equal(t, "engineering.tools.article.deadbeef", codes.FunctionCode)

	assert.True(t, orgResult.Collision)
	assert.Equal(t, "acme.deadbeef", codes.OrganizationCode)
}

func TestAssignCodes_DistinctSiblingsNoCollision(t *testing.T) {
	c := &Classification{Segment: "eng", Category: "tools", ContentType: "article"}
	existingFn := []string{"eng.tools.article.other_brand"}

	codes, fnResult, _ := AssignCodes(c, map[string]string{"brand": "Acme"}, existingFn, "", nil, "uuid")

	assert.False(t, fnResult.Collision)
	assert.Equal(t, "eng.tools.article.acme", codes.FunctionCode)
}
