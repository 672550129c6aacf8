package handler

import (
	"time"

	"photomemo/internal/auth"
	"photomemo/internal/journal"
)

type userDTO struct {
	ID          uint64     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName"`
	Role        auth.Role  `json:"role"`
	IsActive    bool       `json:"isActive"`
	IsLoggedIn  bool       `json:"isLoggedIn"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toUser(u *auth.User) userDTO {
	return userDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		IsActive:    u.IsActive,
		IsLoggedIn:  u.IsLoggedIn,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

type memoDTO struct {
	ID            uint64           `json:"id"`
	UserID        uint64           `json:"userId"`
	Category      journal.Category `json:"category"`
	Title         string           `json:"title"`
	Content       string           `json:"content"`
	ImageURL      string           `json:"imageUrl"`
	ThumbnailURL  *string          `json:"thumbnailUrl"`
	Date          *time.Time       `json:"date,omitempty"`
	TripName      *string          `json:"tripName,omitempty"`
	TripStartDate *time.Time       `json:"tripStartDate,omitempty"`
	TripEndDate   *time.Time       `json:"tripEndDate,omitempty"`
	Day           *string          `json:"day,omitempty"`
	GroupID       string           `json:"groupId"`
	GroupTitle    *string          `json:"groupTitle"`
	IsAnonymous   bool             `json:"isAnonymous"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

func toMemo(m journal.Memo) memoDTO {
	return memoDTO{
		ID:            m.ID,
		UserID:        m.UserID,
		Category:      m.Category,
		Title:         m.Title,
		Content:       m.Content,
		ImageURL:      m.ImageURL,
		ThumbnailURL:  m.ThumbnailURL,
		Date:          m.Date,
		TripName:      m.TripName,
		TripStartDate: m.TripStartDate,
		TripEndDate:   m.TripEndDate,
		Day:           m.Day,
		GroupID:       m.GroupID,
		GroupTitle:    m.GroupTitle,
		IsAnonymous:   m.IsAnonymous,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toMemos(ms []journal.Memo) []memoDTO {
	out := make([]memoDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMemo(m))
	}
	return out
}

type groupDTO struct {
	GroupID      string           `json:"groupId"`
	GroupTitle   string           `json:"groupTitle"`
	Category     journal.Category `json:"category"`
	ThumbnailURL *string          `json:"thumbnailUrl"`
	Items        []memoDTO        `json:"items"`
}

type viewDTO struct {
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	Timestamp time.Time `json:"timestamp"`
}

type postDTO struct {
	ID                uint64           `json:"id"`
	Number            int64            `json:"number"`
	UserID            uint64           `json:"userId"`
	Author            string           `json:"author"`
	Category          journal.Category `json:"category"`
	Title             string           `json:"title"`
	Content           string           `json:"content"`
	ThumbnailURL      *string          `json:"thumbnailUrl"`
	FileURL           []string         `json:"fileUrl"`
	ResolvedThumbnail *string          `json:"resolvedThumbnail"`
	GroupThumbnail    *string          `json:"groupThumbnail"`
	IsAnonymous       bool             `json:"isAnonymous"`
	GroupID           string           `json:"groupId"`
	GroupTitle        *string          `json:"groupTitle"`
	Day               *string          `json:"day,omitempty"`
	ViewCount         int              `json:"viewCount"`
	ViewLogs          []viewDTO        `json:"viewLogs,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

func toPost(p journal.PublicPost, withViews bool) postDTO {
	out := postDTO{
		ID:                p.ID,
		Number:            p.Number,
		UserID:            p.UserID,
		Author:            p.Author,
		Category:          p.Category,
		Title:             p.Title,
		Content:           p.Content,
		ThumbnailURL:      p.ThumbnailURL,
		FileURL:           []string(p.FileURL),
		ResolvedThumbnail: p.ResolvedThumbnail,
		GroupThumbnail:    p.GroupThumbnail,
		IsAnonymous:       p.IsAnonymous,
		GroupID:           p.GroupID,
		GroupTitle:        p.GroupTitle,
		Day:               p.Day,
		ViewCount:         p.ViewCount,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if out.FileURL == nil {
		out.FileURL = []string{}
	}
	if withViews {
		out.ViewLogs = make([]viewDTO, 0, len(p.ViewLogs))
		for _, v := range p.ViewLogs {
			out.ViewLogs = append(out.ViewLogs, viewDTO{IP: v.IP, UserAgent: v.UserAgent, Timestamp: v.CreatedAt})
		}
	}
	return out
}
