package kafka

import "time"

// ArticleEvent announces a new or changed article on the article topic.
type ArticleEvent struct {
	ArticleID string    `json:"article_id"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryEvent announces a new or changed query on the query topic.
type QueryEvent struct {
	QueryID   string    `json:"query_id"`
	Timestamp time.Time `json:"timestamp"`
}

// KeywordsExtractedEvent is published once an article's keyword set is
// stored.
type KeywordsExtractedEvent struct {
	ArticleID string    `json:"article_id"`
	Keywords  int       `json:"keywords"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidationRequest asks the validator to score one (query, article) pair.
type ValidationRequest struct {
	QueryID   string    `json:"query_id"`
	ArticleID string    `json:"article_id"`
	Timestamp time.Time `json:"timestamp"`
}
