package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"photomemo/internal/apperr"
	"photomemo/internal/auth"
	"photomemo/internal/journal"
)

type MemoHandler struct {
	Svc *journal.Service
	Log logrus.FieldLogger
}

type detailsReq struct {
	Category      journal.Category `json:"category"`
	Date          *string          `json:"date"`
	TripName      string           `json:"tripName"`
	TripStartDate *string          `json:"tripStartDate"`
	TripEndDate   *string          `json:"tripEndDate"`
	Day           string           `json:"day"`
}

func (d detailsReq) empty() bool {
	return d.Date == nil && d.TripName == "" && d.TripStartDate == nil && d.TripEndDate == nil && d.Day == ""
}

func (d detailsReq) batch() (journal.BatchInput, error) {
	in := journal.BatchInput{
		Category: journal.Category(strings.ToLower(strings.TrimSpace(string(d.Category)))),
		TripName: d.TripName,
		Day:      d.Day,
	}
	var err error
	if in.Date, err = parseDate(d.Date, "date"); err != nil {
		return in, err
	}
	if in.TripStartDate, err = parseDate(d.TripStartDate, "tripStartDate"); err != nil {
		return in, err
	}
	if in.TripEndDate, err = parseDate(d.TripEndDate, "tripEndDate"); err != nil {
		return in, err
	}
	return in, nil
}

type createMemoReq struct {
	detailsReq
	GroupID     string              `json:"groupId"`
	GroupTitle  string              `json:"groupTitle"`
	IsAnonymous bool                `json:"isAnonymous"`
	Items       []journal.ItemInput `json:"items"`

	// single-item form
	journal.ItemInput
}

// Create accepts either an items array or a single memo at the top level.
func (h *MemoHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req createMemoReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	in, err := req.batch()
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	in.GroupID = req.GroupID
	in.GroupTitle = req.GroupTitle
	in.IsAnonymous = req.IsAnonymous
	in.Items = req.Items
	if len(in.Items) == 0 && (req.Title != "" || req.ImageURL != "") {
		in.Items = []journal.ItemInput{req.ItemInput}
	}

	memos, err := h.Svc.CreateBatch(r.Context(), uid, in)
	if err != nil {
		if len(memos) > 0 {
			logger(h.Log).WithField("created", len(memos)).Warn("batch stopped after partial success")
		}
		writeError(w, r, h.Log, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"groupId":    memos[0].GroupID,
		"groupTitle": memos[0].GroupTitle,
		"items":      toMemos(memos),
	})
}

func (h *MemoHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	memos, err := h.Svc.ListMine(r.Context(), uid)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toMemos(memos)})
}

func (h *MemoHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	g, err := h.Svc.GetGroup(r.Context(), uid, chi.URLParam(r, "groupId"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, groupDTO{
		GroupID:      g.GroupID,
		GroupTitle:   g.GroupTitle,
		Category:     g.Category,
		ThumbnailURL: g.ThumbnailURL,
		Items:        toMemos(g.Items),
	})
}

type itemEditReq struct {
	ID           uint64                     `json:"id"`
	Title        *string                    `json:"title"`
	Content      *string                    `json:"content"`
	ImageURL     *string                    `json:"imageUrl"`
	IsAnonymous  *bool                      `json:"isAnonymous"`
	Delete       bool                       `json:"delete"`
	Thumbnail    journal.ThumbnailDirective `json:"thumbnail"`
	ThumbnailURL string                     `json:"thumbnailUrl"`
}

type editGroupReq struct {
	GroupTitle *string       `json:"groupTitle"`
	Items      []itemEditReq `json:"items"`
}

func (h *MemoHandler) EditGroup(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req editGroupReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	in := journal.GroupEdit{GroupTitle: req.GroupTitle}
	for _, it := range req.Items {
		in.Items = append(in.Items, journal.ItemEdit{
			ID:           it.ID,
			Title:        it.Title,
			Content:      it.Content,
			ImageURL:     it.ImageURL,
			IsAnonymous:  it.IsAnonymous,
			Delete:       it.Delete,
			Thumbnail:    it.Thumbnail,
			ThumbnailURL: it.ThumbnailURL,
		})
	}

	groupID := chi.URLParam(r, "groupId")
	memos, err := h.Svc.EditGroup(r.Context(), uid, groupID, in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groupId": groupID, "items": toMemos(memos)})
}

func (h *MemoHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	if err := h.Svc.DeleteGroup(r.Context(), uid, chi.URLParam(r, "groupId")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateMemoReq struct {
	detailsReq
	Title       *string `json:"title"`
	Content     *string `json:"content"`
	ImageURL    *string `json:"imageUrl"`
	IsAnonymous *bool   `json:"isAnonymous"`
}

func (h *MemoHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, ok := urlID(r, "id")
	if !ok {
		writeError(w, r, h.Log, apperr.Validation("invalid id", "id"))
		return
	}
	var req updateMemoReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	in := journal.MemoEdit{
		Title:       req.Title,
		Content:     req.Content,
		ImageURL:    req.ImageURL,
		IsAnonymous: req.IsAnonymous,
	}
	if req.Category != "" || !req.empty() {
		b, err := req.batch()
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		if in.Details = b.Details(); in.Details == nil {
			writeError(w, r, h.Log, apperr.Validation("category is required with date or trip fields", "category"))
			return
		}
	}

	m, err := h.Svc.UpdateMemo(r.Context(), uid, id, in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemo(*m))
}

func (h *MemoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, ok := urlID(r, "id")
	if !ok {
		writeError(w, r, h.Log, apperr.Validation("invalid id", "id"))
		return
	}
	if err := h.Svc.DeleteMemo(r.Context(), uid, id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
