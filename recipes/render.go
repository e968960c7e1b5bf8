package recipes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"

	"hearth/cache"
	"hearth/models"
)

const (
	renderCacheScope = "recipes"
	renderCacheTTL   = 10 * time.Minute
)

// markdown renderer configured with Goldmark and useful extensions
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,     // tables, strikethrough, task lists, autolinks (GFM set)
		extension.Linkify, // linkify raw URLs
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(), // allow raw HTML passthrough in Markdown
	),
)

func clearRenderedCache(recipeID int) {
	cache.Clear(renderCacheScope, fmt.Sprintf("/recipes/%d/rendered", recipeID))
}

// renderedRecipe serves the read-only HTML view of a recipe: the block
// sequence rendered top to bottom, markdown for text and quote blocks.
func (r *RecipesModule) renderedRecipe(c *gin.Context) {
	recipe, ok := r.findRecipe(c)
	if !ok {
		return
	}

	var blocks []models.RecipeBlock
	if err := r.db.Where("recipe_id = ?", recipe.ID).
		Order("position ASC, id ASC").
		Find(&blocks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	var buf bytes.Buffer
	buf.WriteString("<article class=\"recipe\">\n")
	buf.WriteString("<h1>" + template.HTMLEscapeString(recipe.Title) + "</h1>\n")
	if recipe.Description != "" {
		buf.WriteString("<p class=\"description\">" + template.HTMLEscapeString(recipe.Description) + "</p>\n")
	}

	for _, block := range blocks {
		buf.WriteString(renderBlock(block))
	}

	buf.WriteString("</article>\n")

	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func renderBlock(block models.RecipeBlock) string {
	switch block.Type {
	case models.BlockTypeText, models.BlockTypeQuote:
		var content struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(block.Content), &content); err != nil {
			return ""
		}
		html := renderMarkdown(content.Text)
		if block.Type == models.BlockTypeQuote {
			return "<blockquote>" + html + "</blockquote>\n"
		}
		return "<div class=\"text\">" + html + "</div>\n"

	case models.BlockTypeHeading:
		var content struct {
			Text  string `json:"text"`
			Level int    `json:"level"`
		}
		if err := json.Unmarshal([]byte(block.Content), &content); err != nil {
			return ""
		}
		level := content.Level
		if level < 1 || level > 6 {
			level = 2
		}
		return fmt.Sprintf("<h%d>%s</h%d>\n", level, template.HTMLEscapeString(content.Text), level)

	case models.BlockTypeImage:
		var content struct {
			URL     string `json:"url"`
			Caption string `json:"caption"`
			Alt     string `json:"alt"`
		}
		if err := json.Unmarshal([]byte(block.Content), &content); err != nil || content.URL == "" {
			return ""
		}
		img := fmt.Sprintf("<img src=%q alt=%q>", content.URL, content.Alt)
		if content.Caption != "" {
			return "<figure>" + img + "<figcaption>" + template.HTMLEscapeString(content.Caption) + "</figcaption></figure>\n"
		}
		return img + "\n"

	case models.BlockTypeIngredients:
		var content struct {
			Items []string `json:"items"`
		}
		if err := json.Unmarshal([]byte(block.Content), &content); err != nil {
			return ""
		}
		var sb strings.Builder
		sb.WriteString("<ul class=\"ingredients\">\n")
		for _, item := range content.Items {
			sb.WriteString("<li>" + template.HTMLEscapeString(item) + "</li>\n")
		}
		sb.WriteString("</ul>\n")
		return sb.String()

	case models.BlockTypeSteps:
		var content struct {
			Steps []string `json:"steps"`
		}
		if err := json.Unmarshal([]byte(block.Content), &content); err != nil {
			return ""
		}
		var sb strings.Builder
		sb.WriteString("<ol class=\"steps\">\n")
		for _, step := range content.Steps {
			sb.WriteString("<li>" + template.HTMLEscapeString(step) + "</li>\n")
		}
		sb.WriteString("</ol>\n")
		return sb.String()

	case models.BlockTypeDivider:
		return "<hr>\n"

	default:
		return ""
	}
}

func renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		// On a converter error, fall back to the raw text rather than
		// breaking the page.
		return template.HTMLEscapeString(content)
	}
	return buf.String()
}
