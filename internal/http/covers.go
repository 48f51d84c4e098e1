package http

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookkeeper/internal/covers"
	"github.com/mrlokans/bookkeeper/internal/session"
)

// CoversController uploads and serves book cover images.
type CoversController struct {
	session *session.Session
	store   *covers.Store
}

func NewCoversController(s *session.Session, store *covers.Store) *CoversController {
	return &CoversController{
		session: s,
		store:   store,
	}
}

// UploadCover copies a multipart "cover" file into local storage and points
// the book at it.
// POST /api/books/:id/cover
func (cc *CoversController) UploadCover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if cur := cc.session.GetBook(c.Request.Context(), id); !cur.OK() {
		respondFailure(c, cur)
		return
	}

	header, err := c.FormFile("cover")
	if err != nil {
		respondBadRequest(c, "cover file is required")
		return
	}
	if header.Size > covers.MaxCoverBytes {
		respondBadRequest(c, "cover image too large")
		return
	}

	file, err := header.Open()
	if err != nil {
		respondInternalError(c, err, "open uploaded cover")
		return
	}
	defer file.Close()

	ref, err := cc.store.Import(file, filepath.Ext(header.Filename))
	if errors.Is(err, covers.ErrTooLarge) {
		respondBadRequest(c, "cover image too large")
		return
	}
	if err != nil {
		respondInternalError(c, err, "import cover")
		return
	}

	res := cc.session.SetCover(c.Request.Context(), id, ref)
	if !res.OK() {
		_ = cc.store.Remove(ref)
		respondFailure(c, res)
		return
	}
	c.JSON(http.StatusOK, res.Book)
}

// GetCover serves a locally stored cover or redirects to a remote one.
// GET /api/books/:id/cover
func (cc *CoversController) GetCover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res := cc.session.GetBook(c.Request.Context(), id)
	if !res.OK() {
		respondFailure(c, res)
		return
	}

	ref := res.Book.CoverRef
	switch {
	case cc.store.Owns(ref):
		c.File(ref)
	case strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://"):
		c.Redirect(http.StatusTemporaryRedirect, ref)
	default:
		respondNotFound(c, "cover")
	}
}
