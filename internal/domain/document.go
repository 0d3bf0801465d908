package domain

// Document is a stored headline with its embedding.
// Documents are immutable once stored; the ID is derived from the content
// hash, so re-ingesting the same headline overwrites the same key.
type Document struct {
	ID        string
	Content   string
	Embedding []float32
}

// FeedItem is a single headline extracted from the source feed.
type FeedItem struct {
	Title string
	Link  string
}

// Content joins the item's title and link into document content.
func (f FeedItem) Content() string {
	return f.Title + "\n" + f.Link
}
