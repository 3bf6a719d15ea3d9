package hosting

// Post is one unit of content to publish. Title doubles as the business key
// for deduplication, so it is never rewritten on the way out.
type Post struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Labels  []string `json:"labels,omitempty"`
}

// PostRef is the slice of a remote post the lister cares about.
type PostRef struct {
	Title string `json:"title"`
}

// PostList is one page of the remote blog's post listing.
type PostList struct {
	Items         []PostRef `json:"items"`
	NextPageToken string    `json:"nextPageToken,omitempty"`
}

// InsertedPost identifies a freshly published post.
type InsertedPost struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
