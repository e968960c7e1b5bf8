package models

import "time"

// Folder types. A folder only ever contains content of its own type,
// and its whole ancestor chain shares that type.
const (
	FolderTypeRecipe    = "recipe"
	FolderTypeChecklist = "checklist"
	FolderTypeReminder  = "reminder"
	FolderTypeProject   = "project"
)

// List kinds. Checklists and reminders share one table and one item shape.
const (
	ListKindChecklist = "checklist"
	ListKindReminder  = "reminder"
)

// Recipe block types.
const (
	BlockTypeText        = "text"
	BlockTypeHeading     = "heading"
	BlockTypeImage       = "image"
	BlockTypeIngredients = "ingredients"
	BlockTypeSteps       = "steps"
	BlockTypeDivider     = "divider"
	BlockTypeQuote       = "quote"
)

type User struct {
	ID           int    `gorm:"primary_key;autoIncrement" json:"id"`
	Email        string `gorm:"unique;not null" json:"email"`
	Name         string `json:"name"`
	PasswordHash string `gorm:"not null" json:"-"` // json:"-" prevents password from being exposed in API
}

type Folder struct {
	ID        int       `gorm:"primary_key;autoIncrement" json:"id"`
	Name      string    `gorm:"not null;index" json:"name"`
	ParentID  *int      `gorm:"index" json:"parent_id"` // nil = root
	Type      string    `gorm:"not null;index" json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// List is the shared parent entity for checklists and reminders.
type List struct {
	ID        int        `gorm:"primary_key;autoIncrement" json:"id"`
	Kind      string     `gorm:"not null;index" json:"kind"`
	Title     string     `gorm:"not null" json:"title"`
	FolderID  *int       `gorm:"index" json:"folder_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Items     []ListItem `gorm:"foreignKey:ListID" json:"items,omitempty"`
}

type ListItem struct {
	ID          int        `gorm:"primary_key;autoIncrement" json:"id"`
	ListID      int        `gorm:"not null;index" json:"list_id"`
	Text        string     `gorm:"not null" json:"text"`
	Done        bool       `gorm:"default:false" json:"done"`
	CompletedAt *time.Time `json:"completed_at"` // non-nil iff Done
	Position    int        `gorm:"not null;index" json:"position"`
	FileURL     string     `json:"file_url,omitempty"`
}

type Recipe struct {
	ID          int       `gorm:"primary_key;autoIncrement" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	FolderID    *int      `gorm:"index" json:"folder_id"`
	PrepTime    string    `json:"prep_time,omitempty"`
	Servings    int       `json:"servings,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RecipeBlock is one entry of a recipe's ordered content sequence.
// Content and Metadata hold raw JSON keyed by Type; positions stay
// contiguous 0..N-1 after every insert, move and delete.
type RecipeBlock struct {
	ID       int    `gorm:"primary_key;autoIncrement" json:"id"`
	RecipeID int    `gorm:"not null;index" json:"recipe_id"`
	Type     string `gorm:"not null" json:"type"`
	Content  string `gorm:"type:text" json:"content"`
	Metadata string `gorm:"type:text" json:"metadata,omitempty"`
	Position int    `gorm:"not null;index" json:"position"`
}

// Ingredient name is a natural key: stored lower-cased, deduplicated.
type Ingredient struct {
	ID   int    `gorm:"primary_key;autoIncrement" json:"id"`
	Name string `gorm:"unique;not null" json:"name"`
}

type RecipeIngredient struct {
	ID           int    `gorm:"primary_key;autoIncrement" json:"id"`
	RecipeID     int    `gorm:"not null;index" json:"recipe_id"`
	IngredientID int    `gorm:"not null;index" json:"ingredient_id"`
	Quantity     string `json:"quantity,omitempty"`
	Unit         string `json:"unit,omitempty"`
}

// Tag name is a natural key: stored lower-cased, deduplicated.
type Tag struct {
	ID   int    `gorm:"primary_key;autoIncrement" json:"id"`
	Name string `gorm:"unique;not null" json:"name"`
}

type RecipeTag struct {
	ID       int `gorm:"primary_key;autoIncrement" json:"id"`
	RecipeID int `gorm:"not null;index" json:"recipe_id"`
	TagID    int `gorm:"not null;index" json:"tag_id"`
}
