package recipes

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hearth/models"
)

var validBlockTypes = map[string]bool{
	models.BlockTypeText:        true,
	models.BlockTypeHeading:     true,
	models.BlockTypeImage:       true,
	models.BlockTypeIngredients: true,
	models.BlockTypeSteps:       true,
	models.BlockTypeDivider:     true,
	models.BlockTypeQuote:       true,
}

// defaultBlockContent returns the empty content shape for a block type,
// so a freshly inserted block always carries well-formed JSON.
func defaultBlockContent(blockType string) string {
	switch blockType {
	case models.BlockTypeHeading:
		return `{"text":"","level":2}`
	case models.BlockTypeImage:
		return `{"url":"","caption":"","alt":""}`
	case models.BlockTypeIngredients:
		return `{"items":[]}`
	case models.BlockTypeSteps:
		return `{"steps":[]}`
	case models.BlockTypeQuote:
		return `{"text":"","attribution":""}`
	case models.BlockTypeDivider:
		return `{}`
	default:
		return `{"text":""}`
	}
}

// addBlock inserts a block at the requested position, shifting every
// later block up by one. The shift and the insert share a transaction
// so positions stay contiguous under concurrent edits.
func (r *RecipesModule) addBlock(c *gin.Context) {
	recipe, ok := r.findRecipe(c)
	if !ok {
		return
	}

	var request struct {
		Type     string `json:"type"`
		Content  string `json:"content"`
		Metadata string `json:"metadata"`
		Position *int   `json:"position"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if !validBlockTypes[request.Type] {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"details": gin.H{"type": "unknown block type"},
		})
		return
	}

	content := request.Content
	if content == "" {
		content = defaultBlockContent(request.Type)
	}

	var block models.RecipeBlock
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.RecipeBlock{}).Where("recipe_id = ?", recipe.ID).Count(&count).Error; err != nil {
			return err
		}

		// Append when no position was given; otherwise clamp into 0..N.
		position := int(count)
		if request.Position != nil {
			position = *request.Position
			if position < 0 {
				position = 0
			}
			if position > int(count) {
				position = int(count)
			}
		}

		if err := tx.Model(&models.RecipeBlock{}).
			Where("recipe_id = ? AND position >= ?", recipe.ID, position).
			Update("position", gorm.Expr("position + 1")).Error; err != nil {
			return err
		}

		block = models.RecipeBlock{
			RecipeID: recipe.ID,
			Type:     request.Type,
			Content:  content,
			Metadata: request.Metadata,
			Position: position,
		}
		return tx.Create(&block).Error
	})
	if err != nil {
		log.Printf("Error adding block to recipe %d: %v", recipe.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	clearRenderedCache(recipe.ID)

	c.JSON(http.StatusCreated, block)
}

// updateBlock replaces the block's content wholesale. Callers send the
// complete content object; there is no partial-field merge here.
func (r *RecipesModule) updateBlock(c *gin.Context) {
	recipe, ok := r.findRecipe(c)
	if !ok {
		return
	}

	blockID, err := strconv.Atoi(c.Param("blockId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid block id"})
		return
	}

	var block models.RecipeBlock
	if err := r.db.Where("id = ? AND recipe_id = ?", blockID, recipe.ID).First(&block).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}

	var request struct {
		Content  string  `json:"content"`
		Metadata *string `json:"metadata"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if request.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"details": gin.H{"content": "required"},
		})
		return
	}

	block.Content = request.Content
	if request.Metadata != nil {
		block.Metadata = *request.Metadata
	}

	if err := r.db.Save(&block).Error; err != nil {
		log.Printf("Error updating block %d: %v", blockID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	clearRenderedCache(recipe.ID)

	c.JSON(http.StatusOK, block)
}

// moveBlock removes the block from its slot and reinserts it at
// to_index, then renumbers the whole sequence 0..N-1.
func (r *RecipesModule) moveBlock(c *gin.Context) {
	recipe, ok := r.findRecipe(c)
	if !ok {
		return
	}

	blockID, err := strconv.Atoi(c.Param("blockId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid block id"})
		return
	}

	var request struct {
		ToIndex int `json:"to_index"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		var ids []int
		if err := tx.Model(&models.RecipeBlock{}).
			Where("recipe_id = ?", recipe.ID).
			Order("position ASC, id ASC").
			Pluck("id", &ids).Error; err != nil {
			return err
		}

		fromIndex := -1
		for i, id := range ids {
			if id == blockID {
				fromIndex = i
				break
			}
		}
		if fromIndex == -1 {
			return gorm.ErrRecordNotFound
		}

		toIndex := request.ToIndex
		if toIndex < 0 {
			toIndex = 0
		}
		if toIndex > len(ids)-1 {
			toIndex = len(ids) - 1
		}

		ids = append(ids[:fromIndex], ids[fromIndex+1:]...)
		ids = append(ids[:toIndex], append([]int{blockID}, ids[toIndex:]...)...)

		for position, id := range ids {
			if err := tx.Model(&models.RecipeBlock{}).
				Where("id = ?", id).
				Update("position", position).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	if err != nil {
		log.Printf("Error moving block %d: %v", blockID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	clearRenderedCache(recipe.ID)

	var blocks []models.RecipeBlock
	if err := r.db.Where("recipe_id = ?", recipe.ID).Order("position ASC, id ASC").Find(&blocks).Error; err != nil {
		log.Printf("Error reloading blocks for recipe %d: %v", recipe.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, blocks)
}

// deleteBlock removes the block and renumbers the survivors so the
// sequence stays 0..N-1 with no gaps.
func (r *RecipesModule) deleteBlock(c *gin.Context) {
	recipe, ok := r.findRecipe(c)
	if !ok {
		return
	}

	blockID, err := strconv.Atoi(c.Param("blockId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid block id"})
		return
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND recipe_id = ?", blockID, recipe.ID).Delete(&models.RecipeBlock{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return renumberBlocks(tx, recipe.ID)
	})
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	if err != nil {
		log.Printf("Error deleting block %d: %v", blockID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	clearRenderedCache(recipe.ID)

	c.JSON(http.StatusOK, gin.H{"message": "block deleted"})
}

func renumberBlocks(tx *gorm.DB, recipeID int) error {
	var ids []int
	if err := tx.Model(&models.RecipeBlock{}).
		Where("recipe_id = ?", recipeID).
		Order("position ASC, id ASC").
		Pluck("id", &ids).Error; err != nil {
		return err
	}

	for position, id := range ids {
		if err := tx.Model(&models.RecipeBlock{}).
			Where("id = ?", id).
			Update("position", position).Error; err != nil {
			return err
		}
	}
	return nil
}
