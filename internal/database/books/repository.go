// Package books provides database operations for a user's shelf.
//
// Every query is scoped by the owning user id. Lists are ordered by title
// ascending by the folded title key.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	shelf, err := repo.GetBooksForUser(userID)
package books

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/bookkeeper/internal/entities"
)

const shelfOrder = "title_key ASC, id ASC"

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetBooksForUser returns the user's shelf ordered by title.
func (r *Repository) GetBooksForUser(userID uint) ([]entities.Book, error) {
	books := []entities.Book{}
	err := r.db.Where("user_id = ?", userID).Order(shelfOrder).Find(&books).Error
	return books, err
}

// GetBookByID retrieves a book by ID.
func (r *Repository) GetBookByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.First(&book, id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetBookForUser retrieves a book only if it belongs to userID.
func (r *Repository) GetBookForUser(userID, id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// FindBookByTitle finds a book on the user's shelf with the same title, ignoring case.
func (r *Repository) FindBookByTitle(userID uint, title string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Where("user_id = ? AND title_key = ?", userID, entities.TitleKeyFor(title)).
		First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// SaveBook inserts the book, or replaces the stored row with the same primary key.
func (r *Repository) SaveBook(book *entities.Book) error {
	book.TitleKey = entities.TitleKeyFor(book.Title)
	return r.db.Save(book).Error
}

// UpdateBook replaces an existing book. Returns gorm.ErrRecordNotFound for unknown ids.
func (r *Repository) UpdateBook(book *entities.Book) error {
	if book.ID == 0 {
		return gorm.ErrRecordNotFound
	}
	book.TitleKey = entities.TitleKeyFor(book.Title)
	result := r.db.Model(book).Select("*").Omit("created_at").Updates(book)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SwapCoverRef sets cover_ref to newRef only while the stored value is still
// oldRef. No other column is written. Reports whether a row changed.
func (r *Repository) SwapCoverRef(userID, id uint, oldRef, newRef string) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND user_id = ? AND cover_ref = ?", id, userID, oldRef).
		Updates(map[string]any{"cover_ref": newRef, "updated_at": time.Now()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// BackfillTitleKeys fills title_key for rows written before the column existed.
func (r *Repository) BackfillTitleKeys() (int, error) {
	var rows []entities.Book
	if err := r.db.Select("id", "title").Where("title_key = '' OR title_key IS NULL").Find(&rows).Error; err != nil {
		return 0, err
	}
	for _, row := range rows {
		err := r.db.Model(&entities.Book{}).Where("id = ?", row.ID).
			UpdateColumn("title_key", entities.TitleKeyFor(row.Title)).Error
		if err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

// DeleteBook removes a book by ID.
func (r *Repository) DeleteBook(id uint) error {
	result := r.db.Delete(&entities.Book{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountBooksForUser returns the number of books per status for the user.
func (r *Repository) CountBooksForUser(userID uint) (map[entities.BookStatus]int64, error) {
	var rows []struct {
		Status entities.BookStatus
		Count  int64
	}
	err := r.db.Model(&entities.Book{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[entities.BookStatus]int64, len(entities.BookStatuses))
	for _, status := range entities.BookStatuses {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// GetCoverRefs returns every non-empty cover reference across all shelves.
func (r *Repository) GetCoverRefs() ([]string, error) {
	var refs []string
	err := r.db.Model(&entities.Book{}).
		Where("cover_ref <> ''").
		Distinct().
		Pluck("cover_ref", &refs).Error
	return refs, err
}
