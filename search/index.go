package search

import (
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
)

// SuggestionTerm is one autocomplete candidate. Terms are stored
// lower-cased and deduplicated.
type SuggestionTerm struct {
	ID        uint      `gorm:"primary_key;autoIncrement"`
	Term      string    `gorm:"unique;not null;index"`
	UpdatedAt time.Time `gorm:"index"`
}

// Index maintains the autocomplete term store on its own database.
// A nil *Index is valid and does nothing, the same way the analytics
// side of the app degrades when its database is not configured.
type Index struct {
	db *gorm.DB
}

// NewIndex creates the suggestion index on the given database.
func NewIndex(db *gorm.DB) *Index {
	if db == nil {
		log.Println("Search DB is nil, autocomplete indexing will be disabled")
		return nil
	}

	if err := db.AutoMigrate(&SuggestionTerm{}); err != nil {
		log.Printf("Error migrating suggestion_terms table: %v", err)
		return nil
	}

	log.Println("Suggestion index initialized successfully")
	return &Index{db: db}
}

// Record registers terms for autocomplete. Writes happen asynchronously
// so request handlers never wait on the index; failures are logged and
// otherwise ignored (the index is rebuildable, losing a term is fine).
func (idx *Index) Record(terms ...string) {
	if idx == nil || idx.db == nil {
		return
	}

	cleaned := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if len(term) < 2 {
			continue
		}
		cleaned = append(cleaned, term)
	}
	if len(cleaned) == 0 {
		return
	}

	go func() {
		for _, term := range cleaned {
			var existing SuggestionTerm
			err := idx.db.Where("term = ?", term).First(&existing).Error
			if err == gorm.ErrRecordNotFound {
				if err := idx.db.Create(&SuggestionTerm{Term: term, UpdatedAt: time.Now()}).Error; err != nil {
					log.Printf("Error recording suggestion term %q: %v", term, err)
				}
				continue
			}
			if err != nil {
				log.Printf("Error looking up suggestion term %q: %v", term, err)
				continue
			}
			idx.db.Model(&existing).Update("updated_at", time.Now())
		}
	}()
}

// Forget drops terms from the index, used when the entity that
// produced them is deleted.
func (idx *Index) Forget(terms ...string) {
	if idx == nil || idx.db == nil {
		return
	}

	cleaned := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		cleaned = append(cleaned, term)
	}
	if len(cleaned) == 0 {
		return
	}

	go func() {
		if err := idx.db.Where("term IN ?", cleaned).Delete(&SuggestionTerm{}).Error; err != nil {
			log.Printf("Error forgetting suggestion terms: %v", err)
		}
	}()
}

// Suggest returns up to limit terms starting with the given prefix,
// most recently touched first.
func (idx *Index) Suggest(prefix string, limit int) ([]string, error) {
	if idx == nil || idx.db == nil {
		return nil, nil
	}

	prefix = strings.ToLower(strings.TrimSpace(prefix))

	var terms []string
	err := idx.db.Model(&SuggestionTerm{}).
		Where("term LIKE ?", prefix+"%").
		Order("updated_at DESC").
		Limit(limit).
		Pluck("term", &terms).Error
	if err != nil {
		return nil, err
	}

	return terms, nil
}
