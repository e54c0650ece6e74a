package harvest

import (
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/news-archiver/internal/domain"
	"github.com/samvad-hq/news-archiver/pkg/newsapi"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"

	nbsp = "\u00a0"
)

// Converter turns API items into storable articles in a fixed time zone.
type Converter struct {
	loc          *time.Location
	defaultTitle string
}

// NewConverter loads zone by IANA name.
func NewConverter(zone, defaultTitle string) (Converter, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Converter{}, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	return Converter{loc: loc, defaultTitle: defaultTitle}, nil
}

// Article converts the UTC millisecond timestamp into a local date and time
// of day and normalizes the title.
func (c Converter) Article(it newsapi.Item) domain.Article {
	local := time.UnixMilli(it.PublishDateTimestamp).In(c.loc)
	return domain.Article{
		ID:          it.ID.String(),
		PublishedAt: it.PublishDateTimestamp,
		Date:        local.Format(DateLayout),
		Time:        local.Format(TimeLayout),
		Title:       NormalizeTitle(it.TitleOr(c.defaultTitle)),
	}
}

// NormalizeTitle replaces non-breaking spaces with regular ones.
func NormalizeTitle(title string) string {
	return strings.ReplaceAll(title, nbsp, " ")
}
