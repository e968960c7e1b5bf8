package recipes

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hearth/auth"
	"hearth/cache"
	"hearth/models"
	"hearth/search"
)

type RecipesModule struct {
	db    *gorm.DB
	auth  *auth.AuthModule
	index *search.Index
}

func NewRecipesModule(db *gorm.DB, authModule *auth.AuthModule, index *search.Index) *RecipesModule {
	return &RecipesModule{db: db, auth: authModule, index: index}
}

func (r *RecipesModule) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/recipes")
	group.Use(r.auth.RequireAuth)
	{
		group.GET("", r.listRecipes)
		group.POST("", r.createRecipe)
		group.GET("/:id", r.getRecipe)
		group.PUT("/:id", r.updateRecipe)
		group.DELETE("/:id", r.deleteRecipe)

		group.GET("/:id/rendered", cache.PageMiddleware(renderCacheScope, renderCacheTTL), r.renderedRecipe)

		group.POST("/:id/blocks", r.addBlock)
		group.PUT("/:id/blocks/:blockId", r.updateBlock)
		group.POST("/:id/blocks/:blockId/move", r.moveBlock)
		group.DELETE("/:id/blocks/:blockId", r.deleteBlock)

		// The step editor calls the same block endpoints under /steps.
		group.POST("/:id/steps", r.addBlock)
		group.PUT("/:id/steps/:blockId", r.updateBlock)
		group.POST("/:id/steps/:blockId/move", r.moveBlock)
		group.DELETE("/:id/steps/:blockId", r.deleteBlock)
	}
}

type ingredientInput struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
}

type blockInput struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Metadata string `json:"metadata"`
}

type recipeRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	FolderID    *int              `json:"folder_id"`
	PrepTime    string            `json:"prep_time"`
	Servings    int               `json:"servings"`
	ImageURL    string            `json:"image_url"`
	Ingredients []ingredientInput `json:"ingredients"`
	Tags        []string          `json:"tags"`
	Blocks      []blockInput      `json:"blocks"`
}

type ingredientDetail struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity,omitempty"`
	Unit     string `json:"unit,omitempty"`
}

type recipeDetail struct {
	models.Recipe
	Ingredients []ingredientDetail   `json:"ingredients"`
	Tags        []string             `json:"tags"`
	Blocks      []models.RecipeBlock `json:"blocks"`
}

func (r *RecipesModule) findRecipe(c *gin.Context) (*models.Recipe, bool) {
	recipeID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return nil, false
	}

	var recipe models.Recipe
	if err := r.db.First(&recipe, recipeID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recipe not found"})
		return nil, false
	}
	return &recipe, true
}

func (r *RecipesModule) listRecipes(c *gin.Context) {
	query := r.db.Order("created_at DESC")
	if folderID := c.Query("folderId"); folderID != "" {
		query = query.Where("folder_id = ?", folderID)
	}

	var recipes []models.Recipe
	if err := query.Find(&recipes).Error; err != nil {
		log.Printf("Error listing recipes: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, recipes)
}

func (r *RecipesModule) getRecipe(c *gin.Context) {
	recipe, ok := r.findRecipe(c)
	if !ok {
		return
	}

	detail, err := r.loadDetail(recipe)
	if err != nil {
		log.Printf("Error loading recipe %d: %v", recipe.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (r *RecipesModule) loadDetail(recipe *models.Recipe) (*recipeDetail, error) {
	detail := &recipeDetail{
		Recipe:      *recipe,
		Ingredients: []ingredientDetail{},
		Tags:        []string{},
		Blocks:      []models.RecipeBlock{},
	}

	var links []models.RecipeIngredient
	if err := r.db.Where("recipe_id = ?", recipe.ID).Order("id ASC").Find(&links).Error; err != nil {
		return nil, err
	}
	for _, link := range links {
		var ingredient models.Ingredient
		if err := r.db.First(&ingredient, link.IngredientID).Error; err != nil {
			continue
		}
		detail.Ingredients = append(detail.Ingredients, ingredientDetail{
			Name:     ingredient.Name,
			Quantity: link.Quantity,
			Unit:     link.Unit,
		})
	}

	var tagLinks []models.RecipeTag
	if err := r.db.Where("recipe_id = ?", recipe.ID).Find(&tagLinks).Error; err != nil {
		return nil, err
	}
	for _, link := range tagLinks {
		var tag models.Tag
		if err := r.db.First(&tag, link.TagID).Error; err != nil {
			continue
		}
		detail.Tags = append(detail.Tags, tag.Name)
	}

	if err := r.db.Where("recipe_id = ?", recipe.ID).
		Order("position ASC, id ASC").
		Find(&detail.Blocks).Error; err != nil {
		return nil, err
	}

	return detail, nil
}

func (r *RecipesModule) createRecipe(c *gin.Context) {
	var request recipeRequest
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
		if err := r.db.First(&folder, *request.FolderID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
			return
		}
		if folder.Type != models.FolderTypeRecipe {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation failed",
				"details": gin.H{"folder_id": "folder is not a recipe folder"},
			})
			return
		}
	}

	recipe := models.Recipe{
		Title:       request.Title,
		Description: request.Description,
		FolderID:    request.FolderID,
		PrepTime:    request.PrepTime,
		Servings:    request.Servings,
		ImageURL:    request.ImageURL,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&recipe).Error; err != nil {
			return err
		}
		return r.saveRelations(tx, &recipe, &request)
	})
	if err != nil {
		log.Printf("Error creating recipe: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	r.recordTerms(&recipe, &request)

	detail, err := r.loadDetail(&recipe)
	if err != nil {
		log.Printf("Error loading recipe %d: %v", recipe.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// updateRecipe persists the full recipe shape: scalar fields plus the
// whole ingredient, tag and block arrays. The block list is overwritten
// wholesale, there is no per-block diffing; the last writer wins.
func (r *RecipesModule) updateRecipe(c *gin.Context) {
	recipe, ok := r.findRecipe(c)
	if !ok {
		return
	}

	var request recipeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if title := strings.TrimSpace(request.Title); title != "" {
		recipe.Title = title
	}
	recipe.Description = request.Description
	recipe.PrepTime = request.PrepTime
	recipe.Servings = request.Servings
	recipe.ImageURL = request.ImageURL

	if request.FolderID != nil {
		var folder models.Folder
		if err := r.db.First(&folder, *request.FolderID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "folder not found"})
			return
		}
		if folder.Type != models.FolderTypeRecipe {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation failed",
				"details": gin.H{"folder_id": "folder is not a recipe folder"},
			})
			return
		}
		recipe.FolderID = request.FolderID
	}

	recipe.UpdatedAt = time.Now()

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(recipe).Error; err != nil {
			return err
		}
		return r.saveRelations(tx, recipe, &request)
	})
	if err != nil {
		log.Printf("Error updating recipe %d: %v", recipe.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	r.recordTerms(recipe, &request)
	clearRenderedCache(recipe.ID)

	detail, err := r.loadDetail(recipe)
	if err != nil {
		log.Printf("Error loading recipe %d: %v", recipe.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// saveRelations rewrites the join rows and the block sequence for a
// recipe. Ingredients and tags are upserted by their lower-cased name
// before any join row is written, so the foreign keys always resolve.
func (r *RecipesModule) saveRelations(tx *gorm.DB, recipe *models.Recipe, request *recipeRequest) error {
	if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeIngredient{}).Error; err != nil {
		return err
	}
	for _, input := range request.Ingredients {
		name := strings.ToLower(strings.TrimSpace(input.Name))
		if name == "" {
			continue
		}

		ingredient, err := upsertIngredient(tx, name)
		if err != nil {
			return err
		}

		link := models.RecipeIngredient{
			RecipeID:     recipe.ID,
			IngredientID: ingredient.ID,
			Quantity:     input.Quantity,
			Unit:         input.Unit,
		}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
	}

	if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeTag{}).Error; err != nil {
		return err
	}
	for _, name := range request.Tags {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}

		tag, err := upsertTag(tx, name)
		if err != nil {
			return err
		}

		var existing models.RecipeTag
		err = tx.Where("recipe_id = ? AND tag_id = ?", recipe.ID, tag.ID).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			if err := tx.Create(&models.RecipeTag{RecipeID: recipe.ID, TagID: tag.ID}).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}

	if request.Blocks == nil {
		return nil
	}

	if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeBlock{}).Error; err != nil {
		return err
	}
	for position, input := range request.Blocks {
		if !validBlockTypes[input.Type] {
			return fmt.Errorf("unknown block type %q", input.Type)
		}
		content := input.Content
		if content == "" {
			content = defaultBlockContent(input.Type)
		}
		block := models.RecipeBlock{
			RecipeID: recipe.ID,
			Type:     input.Type,
			Content:  content,
			Metadata: input.Metadata,
			Position: position,
		}
		if err := tx.Create(&block).Error; err != nil {
			return err
		}
	}

	return nil
}

func upsertIngredient(tx *gorm.DB, name string) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	err := tx.Where("name = ?", name).First(&ingredient).Error
	if err == gorm.ErrRecordNotFound {
		ingredient = models.Ingredient{Name: name}
		if err := tx.Create(&ingredient).Error; err != nil {
			return nil, err
		}
		return &ingredient, nil
	}
	if err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func upsertTag(tx *gorm.DB, name string) (*models.Tag, error) {
	var tag models.Tag
	err := tx.Where("name = ?", name).First(&tag).Error
	if err == gorm.ErrRecordNotFound {
		tag = models.Tag{Name: name}
		if err := tx.Create(&tag).Error; err != nil {
			return nil, err
		}
		return &tag, nil
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *RecipesModule) recordTerms(recipe *models.Recipe, request *recipeRequest) {
	terms := []string{recipe.Title}
	for _, input := range request.Ingredients {
		terms = append(terms, input.Name)
	}
	terms = append(terms, request.Tags...)
	r.index.Record(terms...)
}

func (r *RecipesModule) deleteRecipe(c *gin.Context) {
	recipe, ok := r.findRecipe(c)
	if !ok {
		return
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeBlock{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Recipe{}, recipe.ID).Error
	})
	if err != nil {
		log.Printf("Error deleting recipe %d: %v", recipe.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	r.index.Forget(recipe.Title)
	clearRenderedCache(recipe.ID)

	c.JSON(http.StatusOK, gin.H{"message": "recipe deleted"})
}
