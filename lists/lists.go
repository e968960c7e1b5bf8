package lists

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hearth/auth"
	"hearth/models"
	"hearth/search"
)

// ListsModule serves checklists and reminders with one implementation:
// both are a titled parent owning an ordered run of toggleable items.
type ListsModule struct {
	db    *gorm.DB
	auth  *auth.AuthModule
	index *search.Index
}

func NewListsModule(db *gorm.DB, authModule *auth.AuthModule, index *search.Index) *ListsModule {
	return &ListsModule{db: db, auth: authModule, index: index}
}

func (l *ListsModule) RegisterRoutes(router *gin.Engine) {
	l.registerKind(router, "/checklists", models.ListKindChecklist)
	l.registerKind(router, "/reminders", models.ListKindReminder)
}

func (l *ListsModule) registerKind(router *gin.Engine, prefix, kind string) {
	group := router.Group(prefix)
	group.Use(l.auth.RequireAuth)
	{
		group.GET("", l.listParents(kind))
		group.POST("", l.createParent(kind))
		group.GET("/:id", l.getParent(kind))
		group.PUT("/:id", l.updateParent(kind))
		group.DELETE("/:id", l.deleteParent(kind))

		group.POST("/:id/items", l.addItem(kind))
		group.PUT("/:id/items/:itemId", l.updateItem(kind))
		group.DELETE("/:id/items/:itemId", l.deleteItem(kind))

		group.POST("/:id/reorder", l.reorderItems(kind))
		group.POST("/:id/reset", l.resetParent(kind))
	}

	// The checklist UI historically calls the same item endpoints under
	// a /tasks sub-resource, keep both shapes answering.
	if kind == models.ListKindChecklist {
		group.POST("/:id/tasks", l.addItem(kind))
		group.PUT("/:id/tasks/:itemId", l.updateItem(kind))
		group.DELETE("/:id/tasks/:itemId", l.deleteItem(kind))
	}
}

// findParent resolves :id to a list of the right kind.
func (l *ListsModule) findParent(c *gin.Context, kind string) (*models.List, bool) {
	listID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}

	var list models.List
	if err := l.db.Where("id = ? AND kind = ?", listID, kind).First(&list).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": kind + " not found"})
		return nil, false
	}
	return &list, true
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}

func (l *ListsModule) listParents(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := l.db.Where("kind = ?", kind).Order("created_at DESC")
		if folderID := c.Query("folderId"); folderID != "" {
			query = query.Where("folder_id = ?", folderID)
		}

		var lists []models.List
		if err := query.Preload("Items", orderedItems).Find(&lists).Error; err != nil {
			log.Printf("Error listing %ss: %v", kind, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, lists)
	}
}

func (l *ListsModule) createParent(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Title    string `json:"title"`
			FolderID *int   `json:"folder_id"`
		}

		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		request.Title = strings.TrimSpace(request.Title)
		if request.Title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": gin.H{"title": "required"}})
			return
		}

		if request.FolderID != nil {
			var folder models.Folder
			if err := l.db.First(&folder, *request.FolderID).Error; err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
				return
			}
			if folder.Type != kind {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "validation failed",
					"details": gin.H{"folder_id": "folder has a different type"},
				})
				return
			}
		}

		list := models.List{
			Kind:      kind,
			Title:     request.Title,
			FolderID:  request.FolderID,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}

		if err := l.db.Create(&list).Error; err != nil {
			log.Printf("Error creating %s: %v", kind, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		l.index.Record(list.Title)

		list.Items = []models.ListItem{}
		c.JSON(http.StatusCreated, list)
	}
}

func (l *ListsModule) getParent(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, ok := l.findParent(c, kind)
		if !ok {
			return
		}

		if err := l.db.Preload("Items", orderedItems).First(list, list.ID).Error; err != nil {
			log.Printf("Error loading %s %d: %v", kind, list.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, list)
	}
}

// updateParent retitles and/or refolders a list. A blank title means
// "keep the current title".
func (l *ListsModule) updateParent(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, ok := l.findParent(c, kind)
		if !ok {
			return
		}

		var request struct {
			Title    string `json:"title"`
			FolderID *int   `json:"folder_id"`
		}

		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if title := strings.TrimSpace(request.Title); title != "" {
			list.Title = title
		}

		if request.FolderID != nil {
			var folder models.Folder
			if err := l.db.First(&folder, *request.FolderID).Error; err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
				return
			}
			if folder.Type != kind {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "validation failed",
					"details": gin.H{"folder_id": "folder has a different type"},
				})
				return
			}
			list.FolderID = request.FolderID
		}

		list.UpdatedAt = time.Now()

		if err := l.db.Save(list).Error; err != nil {
			log.Printf("Error updating %s %d: %v", kind, list.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		l.index.Record(list.Title)

		c.JSON(http.StatusOK, list)
	}
}

func (l *ListsModule) deleteParent(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, ok := l.findParent(c, kind)
		if !ok {
			return
		}

		err := l.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("list_id = ?", list.ID).Delete(&models.ListItem{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.List{}, list.ID).Error
		})
		if err != nil {
			log.Printf("Error deleting %s %d: %v", kind, list.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		l.index.Forget(list.Title)

		c.JSON(http.StatusOK, gin.H{"message": kind + " deleted"})
	}
}

func (l *ListsModule) addItem(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, ok := l.findParent(c, kind)
		if !ok {
			return
		}

		var request struct {
			Text    string `json:"text"`
			FileURL string `json:"file_url"`
		}

		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		request.Text = strings.TrimSpace(request.Text)
		if request.Text == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": gin.H{"text": "required"}})
			return
		}

		// Append after the current last position; 0 when the list is empty.
		var maxPosition *int
		if err := l.db.Model(&models.ListItem{}).
			Where("list_id = ?", list.ID).
			Select("MAX(position)").
			Scan(&maxPosition).Error; err != nil {
			log.Printf("Error reading max position for list %d: %v", list.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		position := 0
		if maxPosition != nil {
			position = *maxPosition + 1
		}

		item := models.ListItem{
			ListID:   list.ID,
			Text:     request.Text,
			Position: position,
			FileURL:  request.FileURL,
		}

		if err := l.db.Create(&item).Error; err != nil {
			log.Printf("Error adding item to list %d: %v", list.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusCreated, item)
	}
}

// updateItem edits text, file_url and the done flag. CompletedAt is set
// and cleared in the same update as Done so the pair never drifts apart.
func (l *ListsModule) updateItem(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, ok := l.findParent(c, kind)
		if !ok {
			return
		}

		itemID, err := strconv.Atoi(c.Param("itemId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
			return
		}

		var item models.ListItem
		if err := l.db.Where("id = ? AND list_id = ?", itemID, list.ID).First(&item).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}

		var request struct {
			Text    *string `json:"text"`
			Done    *bool   `json:"done"`
			FileURL *string `json:"file_url"`
		}

		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		updates := map[string]interface{}{}

		if request.Text != nil {
			text := strings.TrimSpace(*request.Text)
			if text == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": gin.H{"text": "must not be blank"}})
				return
			}
			updates["text"] = text
		}

		if request.FileURL != nil {
			updates["file_url"] = *request.FileURL
		}

		if request.Done != nil {
			updates["done"] = *request.Done
			if *request.Done {
				updates["completed_at"] = time.Now()
			} else {
				updates["completed_at"] = nil
			}
		}

		if len(updates) == 0 {
			c.JSON(http.StatusOK, item)
			return
		}

		if err := l.db.Model(&item).Updates(updates).Error; err != nil {
			log.Printf("Error updating item %d: %v", itemID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if err := l.db.First(&item, itemID).Error; err != nil {
			log.Printf("Error reloading item %d: %v", itemID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, item)
	}
}

func (l *ListsModule) deleteItem(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, ok := l.findParent(c, kind)
		if !ok {
			return
		}

		itemID, err := strconv.Atoi(c.Param("itemId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
			return
		}

		result := l.db.Where("id = ? AND list_id = ?", itemID, list.ID).Delete(&models.ListItem{})
		if result.Error != nil {
			log.Printf("Error deleting item %d: %v", itemID, result.Error)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "item deleted"})
	}
}

// reorderItems renumbers positions 0..N-1 to match the requested order.
// The given ids must be exactly the list's items. All updates run in one
// transaction so two concurrent reorders cannot interleave into a
// half-applied ordering.
func (l *ListsModule) reorderItems(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, ok := l.findParent(c, kind)
		if !ok {
			return
		}

		var request struct {
			ItemIDs []int `json:"item_ids"`
		}

		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		var currentIDs []int
		if err := l.db.Model(&models.ListItem{}).Where("list_id = ?", list.ID).Pluck("id", &currentIDs).Error; err != nil {
			log.Printf("Error loading items for list %d: %v", list.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if !sameIDSet(request.ItemIDs, currentIDs) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation failed",
				"details": gin.H{"item_ids": "must contain every item of the list exactly once"},
			})
			return
		}

		err := l.db.Transaction(func(tx *gorm.DB) error {
			for position, itemID := range request.ItemIDs {
				if err := tx.Model(&models.ListItem{}).
					Where("id = ? AND list_id = ?", itemID, list.ID).
					Update("position", position).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			log.Printf("Error reordering list %d: %v", list.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		var items []models.ListItem
		if err := orderedItems(l.db.Where("list_id = ?", list.ID)).Find(&items).Error; err != nil {
			log.Printf("Error reloading items for list %d: %v", list.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, items)
	}
}

// resetParent unticks every item in one bulk statement.
func (l *ListsModule) resetParent(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, ok := l.findParent(c, kind)
		if !ok {
			return
		}

		err := l.db.Transaction(func(tx *gorm.DB) error {
			return tx.Model(&models.ListItem{}).
				Where("list_id = ?", list.ID).
				Updates(map[string]interface{}{"done": false, "completed_at": nil}).Error
		})
		if err != nil {
			log.Printf("Error resetting list %d: %v", list.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		var items []models.ListItem
		if err := orderedItems(l.db.Where("list_id = ?", list.ID)).Find(&items).Error; err != nil {
			log.Printf("Error reloading items for list %d: %v", list.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, items)
	}
}

func sameIDSet(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}

	seen := make(map[int]int, len(a))
	for _, id := range a {
		seen[id]++
		if seen[id] > 1 {
			return false
		}
	}
	for _, id := range b {
		if seen[id] != 1 {
			return false
		}
		seen[id] = 0
	}
	return true
}
