package folders

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hearth/auth"
	"hearth/models"
)

// maxPathDepth bounds the upward walk in folderPath so it terminates
// even if the table somehow contains a cycle.
const maxPathDepth = 100

var validFolderTypes = map[string]bool{
	models.FolderTypeRecipe:    true,
	models.FolderTypeChecklist: true,
	models.FolderTypeReminder:  true,
	models.FolderTypeProject:   true,
}

type FoldersModule struct {
	db   *gorm.DB
	auth *auth.AuthModule
}

func NewFoldersModule(db *gorm.DB, authModule *auth.AuthModule) *FoldersModule {
	return &FoldersModule{db: db, auth: authModule}
}

func (f *FoldersModule) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/folders")
	group.Use(f.auth.RequireAuth)
	{
		group.GET("", f.listFolders)
		group.POST("", f.createFolder)
		group.PUT("/:id", f.updateFolder)
		group.DELETE("/:id", f.deleteFolder)
		group.GET("/:id/path", f.folderPath)
	}

	router.POST("/move-item", f.auth.RequireAuth, f.moveItem)
}

func (f *FoldersModule) listFolders(c *gin.Context) {
	folderType := c.Query("type")

	query := f.db.Order("name ASC")
	if folderType != "" {
		query = query.Where("type = ?", folderType)
	}

	var folders []models.Folder
	if err := query.Find(&folders).Error; err != nil {
		log.Printf("Error listing folders: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, folders)
}

func (f *FoldersModule) createFolder(c *gin.Context) {
	var request struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		ParentID *int   `json:"parent_id"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	request.Name = strings.TrimSpace(request.Name)
	details := gin.H{}
	if request.Name == "" {
		details["name"] = "required"
	}
	if !validFolderTypes[request.Type] {
		details["type"] = "must be one of recipe, checklist, reminder, project"
	}
	if len(details) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": details})
		return
	}

	if request.ParentID != nil {
		var parent models.Folder
		if err := f.db.First(&parent, *request.ParentID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "parent folder not found"})
			return
		}
		if parent.Type != request.Type {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation failed",
				"details": gin.H{"parent_id": "parent folder has a different type"},
			})
			return
		}
	}

	folder := models.Folder{
		Name:      request.Name,
		Type:      request.Type,
		ParentID:  request.ParentID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := f.db.Create(&folder).Error; err != nil {
		log.Printf("Error creating folder: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, folder)
}

// updateFolder renames and/or re-parents a folder. A blank name is
// treated as "keep the current name", not an error. parent_id is
// tri-state: absent = keep, null = move to root, number = move there.
func (f *FoldersModule) updateFolder(c *gin.Context) {
	folderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var folder models.Folder
	if err := f.db.First(&folder, folderID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
		return
	}

	var request struct {
		Name     string          `json:"name"`
		ParentID json.RawMessage `json:"parent_id"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if name := strings.TrimSpace(request.Name); name != "" {
		folder.Name = name
	}

	if len(request.ParentID) > 0 {
		if string(request.ParentID) == "null" {
			folder.ParentID = nil
		} else {
			var newParentID int
			if err := json.Unmarshal(request.ParentID, &newParentID); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parent_id"})
				return
			}

			var parent models.Folder
			if err := f.db.First(&parent, newParentID).Error; err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "parent folder not found"})
				return
			}
			if parent.Type != folder.Type {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "validation failed",
					"details": gin.H{"parent_id": "parent folder has a different type"},
				})
				return
			}

			ok, err := f.canReparent(folder.ID, newParentID)
			if err != nil {
				log.Printf("Error checking folder ancestry: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "validation failed",
					"details": gin.H{"parent_id": "cannot move a folder into itself or its own descendant"},
				})
				return
			}

			folder.ParentID = &newParentID
		}
	}

	folder.UpdatedAt = time.Now()

	if err := f.db.Save(&folder).Error; err != nil {
		log.Printf("Error updating folder: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, folder)
}

// canReparent reports whether newParentID is neither the folder itself
// nor one of its descendants. The upward walk keeps a visited set so it
// terminates even on corrupt data.
func (f *FoldersModule) canReparent(folderID, newParentID int) (bool, error) {
	if folderID == newParentID {
		return false, nil
	}

	visited := map[int]bool{}
	currentID := newParentID
	for !visited[currentID] {
		visited[currentID] = true

		var current models.Folder
		if err := f.db.First(&current, currentID).Error; err != nil {
			return false, err
		}

		if current.ParentID == nil {
			return true, nil
		}
		if *current.ParentID == folderID {
			return false, nil
		}
		currentID = *current.ParentID
	}

	// Walk revisited a folder: the chain above newParentID is already
	// cyclic, refuse to attach anything to it.
	return false, nil
}

func (f *FoldersModule) deleteFolder(c *gin.Context) {
	folderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var folder models.Folder
	if err := f.db.First(&folder, folderID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
		return
	}

	err = f.db.Transaction(func(tx *gorm.DB) error {
		ids, err := collectSubtreeIDs(tx, folderID)
		if err != nil {
			return err
		}

		// Lists and their items.
		var listIDs []int
		if err := tx.Model(&models.List{}).Where("folder_id IN ?", ids).Pluck("id", &listIDs).Error; err != nil {
			return err
		}
		if len(listIDs) > 0 {
			if err := tx.Where("list_id IN ?", listIDs).Delete(&models.ListItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", listIDs).Delete(&models.List{}).Error; err != nil {
				return err
			}
		}

		// Recipes with their blocks and join rows.
		var recipeIDs []int
		if err := tx.Model(&models.Recipe{}).Where("folder_id IN ?", ids).Pluck("id", &recipeIDs).Error; err != nil {
			return err
		}
		if len(recipeIDs) > 0 {
			if err := tx.Where("recipe_id IN ?", recipeIDs).Delete(&models.RecipeBlock{}).Error; err != nil {
				return err
			}
			if err := tx.Where("recipe_id IN ?", recipeIDs).Delete(&models.RecipeIngredient{}).Error; err != nil {
				return err
			}
			if err := tx.Where("recipe_id IN ?", recipeIDs).Delete(&models.RecipeTag{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", recipeIDs).Delete(&models.Recipe{}).Error; err != nil {
				return err
			}
		}

		return tx.Where("id IN ?", ids).Delete(&models.Folder{}).Error
	})
	if err != nil {
		log.Printf("Error deleting folder %d: %v", folderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "folder deleted", "parent_id": folder.ParentID})
}

// collectSubtreeIDs returns the folder id plus all descendant folder
// ids, breadth-first. The visited set guards against cyclic rows.
func collectSubtreeIDs(tx *gorm.DB, rootID int) ([]int, error) {
	ids := []int{rootID}
	visited := map[int]bool{rootID: true}
	frontier := []int{rootID}

	for len(frontier) > 0 {
		var children []int
		if err := tx.Model(&models.Folder{}).Where("parent_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for _, id := range children {
			if visited[id] {
				continue
			}
			visited[id] = true
			ids = append(ids, id)
			frontier = append(frontier, id)
		}
	}

	return ids, nil
}

// folderPath walks parent links upward and returns the root-to-leaf
// chain. The walk is bounded by a visited set and maxPathDepth so a
// corrupt cycle can never hang the request.
func (f *FoldersModule) folderPath(c *gin.Context) {
	folderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var path []models.Folder
	visited := map[int]bool{}
	currentID := folderID

	for depth := 0; depth < maxPathDepth; depth++ {
		if visited[currentID] {
			break
		}
		visited[currentID] = true

		var folder models.Folder
		if err := f.db.First(&folder, currentID).Error; err != nil {
			if currentID == folderID {
				c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
				return
			}
			// Dangling parent reference: return what we have.
			break
		}

		path = append([]models.Folder{folder}, path...)
		if folder.ParentID == nil {
			break
		}
		currentID = *folder.ParentID
	}

	c.JSON(http.StatusOK, path)
}

// moveItem reassigns a recipe or a folder to a new parent folder.
func (f *FoldersModule) moveItem(c *gin.Context) {
	var request struct {
		ItemID      int    `json:"itemId"`
		ItemType    string `json:"itemType"`
		NewFolderID *int   `json:"newFolderId"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	switch request.ItemType {
	case "recipe":
		var recipe models.Recipe
		if err := f.db.First(&recipe, request.ItemID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "recipe not found"})
			return
		}

		if request.NewFolderID != nil {
			var target models.Folder
			if err := f.db.First(&target, *request.NewFolderID).Error; err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "target folder not found"})
				return
			}
			if target.Type != models.FolderTypeRecipe {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "validation failed",
					"details": gin.H{"newFolderId": "target folder is not a recipe folder"},
				})
				return
			}
		}

		recipe.FolderID = request.NewFolderID
		recipe.UpdatedAt = time.Now()
		if err := f.db.Save(&recipe).Error; err != nil {
			log.Printf("Error moving recipe %d: %v", request.ItemID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, recipe)

	case "folder":
		var folder models.Folder
		if err := f.db.First(&folder, request.ItemID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
			return
		}

		if request.NewFolderID != nil {
			var target models.Folder
			if err := f.db.First(&target, *request.NewFolderID).Error; err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "target folder not found"})
				return
			}
			if target.Type != folder.Type {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "validation failed",
					"details": gin.H{"newFolderId": "target folder has a different type"},
				})
				return
			}

			ok, err := f.canReparent(folder.ID, *request.NewFolderID)
			if err != nil {
				log.Printf("Error checking folder ancestry: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "validation failed",
					"details": gin.H{"newFolderId": "cannot move a folder into itself or its own descendant"},
				})
				return
			}
		}

		folder.ParentID = request.NewFolderID
		folder.UpdatedAt = time.Now()
		if err := f.db.Save(&folder).Error; err != nil {
			log.Printf("Error moving folder %d: %v", request.ItemID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, folder)

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported itemType"})
	}
}
