package classify

import "strings"

// siblingsFromCodes reduces a list of full sibling hierarchy codes sharing
// prefix to their differentiator tail (the path segment immediately after
// prefix), so Differentiate can check a candidate tail for collisions
// without needing to know each sibling's original field values.
func siblingsFromCodes(prefix string, codes []string) []Sibling {
	out := make([]Sibling, 0, len(codes))
	for _, code := range codes {
		rest := strings.TrimPrefix(code, prefix+".")
		if rest == code {
			continue
		}
		tail := rest
		if idx := strings.Index(rest, "."); idx >= 0 {
			tail = rest[:idx]
		}
		out = append(out, Sibling{Fields: map[string]string{
			"brand": tail, "version": tail, "variant": tail, "creator": tail, "date": tail, "unique_id": tail,
		}})
	}
	return out
}

// AssignCodes builds the function and organization hierarchy codes for a
// newly classified node: each is segment.category.contentType (function)
// or organization-prefix (organization) concatenated with a differentiator
// tail chosen to be distinct from existingFunctionCodes/
// existingOrganizationCodes at that prefix (spec.md §4.5).
//
// candidate supplies the raw (un-normalized) differentiator field values
// extracted from the node (brand, version, variant, creator, date,
// unique_id); nodeUUID backs the final unique_id fallback.
func AssignCodes(
	c *Classification,
	candidate map[string]string,
	existingFunctionCodes []string,
	organizationPrefix string,
	existingOrganizationCodes []string,
	nodeUUID string,
) (HierarchyCodes, DifferentiatorResult, DifferentiatorResult) {
	functionPrefix := c.Segment + "." + c.Category + "." + c.ContentType
	fnResult := Differentiate(candidate, siblingsFromCodes(functionPrefix, existingFunctionCodes), nodeUUID)
	functionCode := functionPrefix + "." + fnResult.Tail

	var orgCode string
	var orgResult DifferentiatorResult
	if organizationPrefix != "" {
		orgResult = Differentiate(candidate, siblingsFromCodes(organizationPrefix, existingOrganizationCodes), nodeUUID)
		orgCode = organizationPrefix + "." + orgResult.Tail
	}

	return HierarchyCodes{FunctionCode: functionCode, OrganizationCode: orgCode}, fnResult, orgResult
}
