package domain

// Domain contains core models shared by the harvest loop and the sinks.

// Article is one deduplicated news item ready to be persisted.
type Article struct {
	ID          string `json:"id"`
	PublishedAt int64  `json:"publish_date_timestamp"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Title       string `json:"title"`
}

// Batch is the ordered set of new articles produced by a single page.
type Batch []Article

// IDs returns the article identifiers in batch order.
func (b Batch) IDs() []string {
	ids := make([]string, 0, len(b))
	for _, a := range b {
		ids = append(ids, a.ID)
	}
	return ids
}
