package handler

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"photomemo/internal/apperr"
	"photomemo/internal/auth"
	"photomemo/internal/journal"
)

type PostHandler struct {
	Svc *journal.Service
	Log logrus.FieldLogger
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	f := journal.PostFilter{GroupID: strings.TrimSpace(r.URL.Query().Get("groupId"))}
	h.list(w, r, f)
}

func (h *PostHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	f := journal.PostFilter{UserID: uid, GroupID: strings.TrimSpace(r.URL.Query().Get("groupId"))}
	h.list(w, r, f)
}

func (h *PostHandler) list(w http.ResponseWriter, r *http.Request, f journal.PostFilter) {
	posts, err := h.Svc.ListPosts(r.Context(), f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out := make([]postDTO, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPost(p, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": out})
}

// Get records a view. A malformed id reads as a missing post.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		writeError(w, r, h.Log, apperr.NotFound("post"))
		return
	}

	p, err := h.Svc.GetPost(r.Context(), id, journal.ViewLog{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPost(*p, true))
}

type updatePostReq struct {
	Title       *string `json:"title"`
	Content     *string `json:"content"`
	IsAnonymous *bool   `json:"isAnonymous"`
}

func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, ok := urlID(r, "id")
	if !ok {
		writeError(w, r, h.Log, apperr.NotFound("post"))
		return
	}
	var req updatePostReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	p, err := h.Svc.UpdatePost(r.Context(), uid, id, journal.PostEdit{
		Title:       req.Title,
		Content:     req.Content,
		IsAnonymous: req.IsAnonymous,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPost(journal.PublicPost{Post: *p, ResolvedThumbnail: p.ResolvedThumbnail()}, false))
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, ok := urlID(r, "id")
	if !ok {
		writeError(w, r, h.Log, apperr.NotFound("post"))
		return
	}
	if err := h.Svc.DeletePost(r.Context(), uid, id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "deleted"})
}
