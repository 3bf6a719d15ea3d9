package publish

// ShouldSkip reports whether a candidate title is already known, either
// because this job published it in some run (postedIDs) or because it was
// observed on the remote service (existingTitles).
//
// Matching is exact and case-sensitive: the title is the business key, and the
// check must compare the same bytes that get published and stored.
func ShouldSkip(title string, postedIDs, existingTitles map[string]struct{}) bool {
	if _, ok := postedIDs[title]; ok {
		return true
	}
	_, ok := existingTitles[title]
	return ok
}
