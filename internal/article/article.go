// Package article defines the ingested news article record.
package article

import (
	"strings"

	apperrors "github.com/eventdetection/event-detection/pkg/errors"
)

// Article is an ingested news article. TitleTagged and BodyTagged hold
// {word}_{TAG} text; when empty the extractor tags Title and Body itself.
type Article struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body,omitempty"`
	TitleTagged string `json:"title_tagged,omitempty"`
	BodyTagged  string `json:"body_tagged,omitempty"`
	URL         string `json:"url,omitempty"`
	SourceID    string `json:"source_id,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

// Validate checks the fields every article must carry.
func (a Article) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return apperrors.New(apperrors.ErrInvalidInput, 0, "article id is required")
	}
	if strings.TrimSpace(a.Title) == "" && strings.TrimSpace(a.TitleTagged) == "" {
		return apperrors.Newf(apperrors.ErrInvalidInput, 0, "article %s has no title", a.ID)
	}
	return nil
}

// HasTaggedText reports whether both title and body arrived pre-tagged.
func (a Article) HasTaggedText() bool {
	return a.TitleTagged != "" && (a.BodyTagged != "" || a.Body == "")
}
