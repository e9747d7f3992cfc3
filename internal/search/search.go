package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultListing ResultType = "listing"
	ResultPost    ResultType = "post"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Snippet  string     `json:"snippet"`
	Category string     `json:"category,omitempty"`
	Location string     `json:"location,omitempty"`
}

// Query describes a search request. Only ACTIVE listings are searchable.
type Query struct {
	Text           string
	FilterType     ResultType // empty = all types
	FilterCategory string
	FilterLocation string
	Limit          int
	Offset         int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexListing(l ListingRecord) error
	IndexPost(p PostRecord) error
	DeleteListing(id string) error
	DeletePost(id string) error
}

// ListingRecord is the data we index for an investment listing.
type ListingRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Pitch    string `json:"pitch"`
	Category string `json:"category"`
	Location string `json:"location"`
	Status   string `json:"status"`
}

// PostRecord is the data we index for a community post.
type PostRecord struct {
	ID         string `json:"id"`
	Body       string `json:"body"`
	AuthorName string `json:"authorName"`
}
