package main

import (
	"log"
	"os"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"hearth/auth"
	"hearth/common"
	"hearth/database"
	"hearth/folders"
	"hearth/lists"
	"hearth/recipes"
	"hearth/search"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment as-is")
	}

	db := common.ConnectDb()
	if db == nil {
		log.Fatal("Failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	router := gin.Default()

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		log.Fatal("SESSION_SECRET environment variable not set")
	}

	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   false,
	})

	router.Use(sessions.Sessions("hearth-session", store))

	searchIndex := search.NewIndex(common.ConnectSearchDb())

	authModule := auth.NewAuthModule(db)
	authModule.RegisterRoutes(router)

	foldersModule := folders.NewFoldersModule(db, authModule)
	foldersModule.RegisterRoutes(router)

	listsModule := lists.NewListsModule(db, authModule, searchIndex)
	listsModule.RegisterRoutes(router)

	recipesModule := recipes.NewRecipesModule(db, authModule, searchIndex)
	recipesModule.RegisterRoutes(router)

	searchModule := search.NewSearchModule(db, authModule, searchIndex)
	searchModule.RegisterRoutes(router)

	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"service": "hearth", "status": "ok"})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting server on port %s...", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
