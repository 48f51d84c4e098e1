package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookkeeper/internal/entities"
	"github.com/mrlokans/bookkeeper/internal/session"
)

// DefaultStreamHeartbeat is how often an idle book stream sends a ping.
const DefaultStreamHeartbeat = 15 * time.Second

// bookRequest carries the fields a client may set on a book. Ownership and
// timestamps are managed server side.
type bookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
	ISBN        string `json:"isbn"`
	CoverRef    string `json:"cover_ref"`
	CoverColor  uint32 `json:"cover_color"`
	Status      string `json:"status"`
	TotalPages  int    `json:"total_pages"`
	CurrentPage int    `json:"current_page"`
	Rating      int    `json:"rating"`
	IsFavorite  bool   `json:"is_favorite"`
}

func (r bookRequest) applyTo(book *entities.Book) {
	book.Title = r.Title
	book.Author = r.Author
	book.Description = r.Description
	book.Notes = r.Notes
	book.ISBN = r.ISBN
	book.CoverRef = r.CoverRef
	book.CoverColor = r.CoverColor
	book.Status = entities.BookStatus(r.Status)
	book.TotalPages = r.TotalPages
	book.CurrentPage = r.CurrentPage
	book.Rating = r.Rating
	book.IsFavorite = r.IsFavorite
}

type progressRequest struct {
	Page int `json:"page"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type isbnRequest struct {
	ISBN string `json:"isbn"`
}

type BooksController struct {
	session   *session.Session
	heartbeat time.Duration
}

func NewBooksController(s *session.Session, heartbeat time.Duration) *BooksController {
	if heartbeat <= 0 {
		heartbeat = DefaultStreamHeartbeat
	}
	return &BooksController{session: s, heartbeat: heartbeat}
}

// ListBooks returns the current user's shelf, optionally filtered by ?status=.
// GET /api/books
func (bc *BooksController) ListBooks(c *gin.Context) {
	books, res := bc.session.ListBooks(c.Request.Context(), c.Query("status"))
	if !res.OK() {
		respondFailure(c, res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books, "count": len(books)})
}

// Stats counts books per status.
// GET /api/books/stats
func (bc *BooksController) Stats(c *gin.Context) {
	stats, res := bc.session.ShelfStats(c.Request.Context())
	if !res.OK() {
		respondFailure(c, res)
		return
	}
	var total int64
	for _, n := range stats {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "total": total})
}

// GetBook returns one book.
// GET /api/books/:id
func (bc *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res := bc.session.GetBook(c.Request.Context(), id)
	respondResult(c, res, http.StatusOK, res.Book)
}

// CreateBook adds a manually entered book.
// POST /api/books
func (bc *BooksController) CreateBook(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	var book entities.Book
	req.applyTo(&book)
	res := bc.session.SaveBook(c.Request.Context(), book)
	respondResult(c, res, http.StatusCreated, res.Book)
}

// UpdateBook replaces the editable fields of a book on the shelf.
// PUT /api/books/:id
func (bc *BooksController) UpdateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	current := bc.session.GetBook(c.Request.Context(), id)
	if !current.OK() {
		respondFailure(c, current)
		return
	}
	book := *current.Book
	req.applyTo(&book)
	res := bc.session.UpdateBook(c.Request.Context(), book)
	respondResult(c, res, http.StatusOK, res.Book)
}

// DeleteBook removes a book.
// DELETE /api/books/:id
func (bc *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	res := bc.session.DeleteBook(c.Request.Context(), id)
	respondResult(c, res, http.StatusOK, nil)
}

// UpdateProgress sets the current page.
// PUT /api/books/:id/progress
func (bc *BooksController) UpdateProgress(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	res := bc.session.UpdateProgress(c.Request.Context(), id, req.Page)
	respondResult(c, res, http.StatusOK, gin.H{"book": res.Book, "message": res.Message})
}

// UpdateNotes replaces the book's notes.
// PUT /api/books/:id/notes
func (bc *BooksController) UpdateNotes(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req notesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	res := bc.session.UpdateBookNotes(c.Request.Context(), id, req.Notes)
	respondResult(c, res, http.StatusOK, res.Book)
}

// SetStatus moves the book to another shelf section.
// PUT /api/books/:id/status
func (bc *BooksController) SetStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	res := bc.session.SetStatus(c.Request.Context(), id, req.Status)
	respondResult(c, res, http.StatusOK, res.Book)
}

// AddByISBN looks the ISBN up and saves the result.
// POST /api/books/isbn
func (bc *BooksController) AddByISBN(c *gin.Context) {
	var req isbnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	res := bc.session.SearchAndSaveBook(c.Request.Context(), req.ISBN)
	respondResult(c, res, http.StatusCreated, gin.H{"book": res.Book, "message": res.Message})
}

// Lookup returns catalogue data for an ISBN without saving anything.
// GET /api/lookup/:isbn
func (bc *BooksController) Lookup(c *gin.Context) {
	found, res := bc.session.LookupISBN(c.Request.Context(), c.Param("isbn"))
	respondResult(c, res, http.StatusOK, found)
}

// Stream pushes the live shelf as server-sent "books" events until the
// client disconnects. An empty shelf is sent while nobody is logged in.
// GET /api/books/stream
func (bc *BooksController) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	updates := bc.session.WatchBooks(ctx)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	heartbeat := time.NewTicker(bc.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case shelf, ok := <-updates:
			if !ok {
				return
			}
			c.SSEvent("books", gin.H{"books": shelf, "count": len(shelf)})
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().Unix())
		}
		c.Writer.Flush()
	}
}
