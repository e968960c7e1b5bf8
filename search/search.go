package search

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hearth/auth"
	"hearth/cache"
)

const (
	maxSuggestions = 10
	minQueryLength = 2

	// resultCacheTTL keeps repeated keystrokes for the same prefix off
	// the index database for a short while.
	resultCacheTTL = 5 * time.Minute
	cacheScope     = "autocomplete"
)

type SearchModule struct {
	db    *gorm.DB
	auth  *auth.AuthModule
	index *Index
}

func NewSearchModule(db *gorm.DB, authModule *auth.AuthModule, index *Index) *SearchModule {
	return &SearchModule{db: db, auth: authModule, index: index}
}

func (s *SearchModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/autocomplete", s.auth.RequireAuth, s.autocomplete)
}

// autocomplete never fails toward the client: any backend problem is
// logged and answered with an empty list, since a broken suggestion
// dropdown should not surface as an error in the UI.
func (s *SearchModule) autocomplete(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))

	if len(query) < minQueryLength {
		c.JSON(http.StatusOK, []string{})
		return
	}

	if cached, found := cache.Read(cacheScope, strings.ToLower(query), resultCacheTTL); found {
		var suggestions []string
		if err := json.Unmarshal([]byte(cached), &suggestions); err == nil {
			c.Header("X-Cache", "HIT")
			c.JSON(http.StatusOK, suggestions)
			return
		}
	}

	suggestions, err := s.index.Suggest(query, maxSuggestions)
	if err != nil {
		log.Printf("Error fetching suggestions for %q: %v", query, err)
		c.JSON(http.StatusOK, []string{})
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	if payload, err := json.Marshal(suggestions); err == nil {
		cache.Write(cacheScope, strings.ToLower(query), string(payload))
	}

	c.JSON(http.StatusOK, suggestions)
}
