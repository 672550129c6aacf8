package journal

import (
	"time"

	"github.com/lib/pq"
)

type Category string

const (
	CategoryDaily Category = "daily"
	CategoryTrip  Category = "trip"
)

func (c Category) Valid() bool {
	return c == CategoryDaily || c == CategoryTrip
}

// Details is the category payload of a memo: DailyDetails or TripDetails.
type Details interface {
	Category() Category
	details()
}

type DailyDetails struct {
	Date *time.Time
}

type TripDetails struct {
	Name      string
	StartDate *time.Time
	EndDate   *time.Time
	Day       string
}

func (DailyDetails) Category() Category { return CategoryDaily }
func (TripDetails) Category() Category  { return CategoryTrip }
func (DailyDetails) details()           {}
func (TripDetails) details()            {}

// Memo is a private photo + note. The category columns are only written
// through SetDetails so daily and trip fields never coexist.
type Memo struct {
	ID     uint64 `gorm:"primaryKey"`
	UserID uint64 `gorm:"index;not null"`

	Category Category `gorm:"type:text;not null"`
	Title    string   `gorm:"type:text;not null"`
	Content  string   `gorm:"type:text;not null;default:''"`
	ImageURL string   `gorm:"type:text;not null"`

	ThumbnailURL *string `gorm:"type:text"`

	Date *time.Time `gorm:"type:timestamptz"`

	TripName      *string    `gorm:"type:text"`
	TripStartDate *time.Time `gorm:"type:timestamptz"`
	TripEndDate   *time.Time `gorm:"type:timestamptz"`
	Day           *string    `gorm:"type:text"`

	GroupID    string  `gorm:"type:text;index;not null"`
	GroupTitle *string `gorm:"type:text"`

	IsAnonymous bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"index;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (m *Memo) Details() Details {
	if m.Category == CategoryTrip {
		return TripDetails{
			Name:      deref(m.TripName),
			StartDate: m.TripStartDate,
			EndDate:   m.TripEndDate,
			Day:       deref(m.Day),
		}
	}
	return DailyDetails{Date: m.Date}
}

func (m *Memo) SetDetails(d Details) {
	m.Date, m.TripName, m.TripStartDate, m.TripEndDate, m.Day = nil, nil, nil, nil, nil
	switch d := d.(type) {
	case TripDetails:
		m.Category = CategoryTrip
		m.TripName = optional(d.Name)
		m.TripStartDate = d.StartDate
		m.TripEndDate = d.EndDate
		m.Day = optional(d.Day)
	case DailyDetails:
		m.Category = CategoryDaily
		m.Date = d.Date
		m.ThumbnailURL = nil
	}
}

// Post is the public projection of memos. It has no memo foreign key; it is
// correlated by (user, group) and (user, image url).
type Post struct {
	ID     uint64 `gorm:"primaryKey"`
	UserID uint64 `gorm:"index;not null"`
	Number int64  `gorm:"uniqueIndex;not null"`

	Category Category `gorm:"type:text;not null"`
	Title    string   `gorm:"type:text;not null"`
	Content  string   `gorm:"type:text;not null;default:''"`

	ThumbnailURL *string        `gorm:"type:text"`
	FileURL      pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	IsAnonymous bool `gorm:"not null;default:false"`

	GroupID    string  `gorm:"type:text;index;not null"`
	GroupTitle *string `gorm:"type:text"`
	Day        *string `gorm:"type:text"`

	ViewLogs []ViewLog `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"index;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ViewLog is one entry of a post's view log.
type ViewLog struct {
	ID        uint64    `gorm:"primaryKey"`
	PostID    uint64    `gorm:"index;not null"`
	IP        string    `gorm:"type:text;not null;default:''"`
	UserAgent string    `gorm:"type:text;not null;default:''"`
	CreatedAt time.Time `gorm:"not null"`
}

func (ViewLog) TableName() string { return "post_views" }

// ResolvedThumbnail: trip posts use their stored thumbnail, daily posts
// their first image.
func (p *Post) ResolvedThumbnail() *string {
	return ResolveThumbnail(p.Category, p.ThumbnailURL, p.FileURL)
}

func ResolveThumbnail(c Category, thumbnailURL *string, files []string) *string {
	if c == CategoryTrip {
		if thumbnailURL == nil || *thumbnailURL == "" {
			return nil
		}
		return thumbnailURL
	}
	if len(files) == 0 || files[0] == "" {
		return nil
	}
	first := files[0]
	return &first
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
