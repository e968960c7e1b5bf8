package auth

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"hearth/models"
)

// adminUserID is the session user id recorded for the fixed-credential
// bypass, which has no row in the users table.
const adminUserID = 0

type AuthModule struct {
	db         *gorm.DB
	strategies []strategy
}

// strategy checks one credential source. Strategies are tried in order;
// the first match wins.
type strategy func(a *AuthModule, email, password string) (userID int, ok bool)

func NewAuthModule(db *gorm.DB) *AuthModule {
	a := &AuthModule{db: db}
	a.strategies = []strategy{adminBypassStrategy, userTableStrategy}
	return a
}

func (a *AuthModule) RegisterRoutes(router *gin.Engine) {
	router.POST("/login", a.login)
	router.POST("/logout", a.logout)
	router.POST("/register", a.register)
	router.GET("/session", a.sessionInfo)
}

// RequireAuth gates API routes: no session, no access.
func (a *AuthModule) RequireAuth(c *gin.Context) {
	session := sessions.Default(c)
	userID := session.Get("user_id")

	if userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		c.Abort()
		return
	}

	c.Set("user_id", userID)
	c.Next()
}

// adminBypassStrategy accepts the fixed credential pair from the
// environment. It is live only when ADMIN_BYPASS=1 and both values are
// configured, so the bypass never ships enabled by accident.
func adminBypassStrategy(a *AuthModule, email, password string) (int, bool) {
	if os.Getenv("ADMIN_BYPASS") != "1" {
		return 0, false
	}

	adminUser := os.Getenv("ADMIN_USER")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminUser == "" || adminPassword == "" {
		return 0, false
	}

	userMatch := subtle.ConstantTimeCompare([]byte(email), []byte(adminUser)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(adminPassword)) == 1
	if userMatch && passMatch {
		return adminUserID, true
	}
	return 0, false
}

// userTableStrategy looks the email up in the users table and checks the
// bcrypt hash.
func userTableStrategy(a *AuthModule, email, password string) (int, bool) {
	var user models.User
	if err := a.db.Where("email = ?", email).First(&user).Error; err != nil {
		return 0, false
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return 0, false
	}
	return user.ID, true
}

func (a *AuthModule) login(c *gin.Context) {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	for _, try := range a.strategies {
		if userID, ok := try(a, request.Email, request.Password); ok {
			session := sessions.Default(c)
			session.Set("user_id", userID)
			if err := session.Save(); err != nil {
				log.Printf("Error saving session: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"authenticated": true, "user_id": userID})
			return
		}
	}

	c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
}

func (a *AuthModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.JSON(http.StatusOK, gin.H{"authenticated": false})
}

func (a *AuthModule) sessionInfo(c *gin.Context) {
	session := sessions.Default(c)
	userID := session.Get("user_id")

	if userID == nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user_id": userID})
}

func (a *AuthModule) register(c *gin.Context) {
	var request struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	request.Email = strings.TrimSpace(request.Email)
	details := gin.H{}
	if request.Email == "" {
		details["email"] = "required"
	}
	if request.Password == "" {
		details["password"] = "required"
	}
	if len(details) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required fields", "details": details})
		return
	}

	var existingUser models.User
	if err := a.db.Where("email = ?", request.Email).First(&existingUser).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
		return
	}

	passwordHash, err := HashPassword(request.Password)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	user := models.User{
		Email:        request.Email,
		Name:         request.Name,
		PasswordHash: passwordHash,
	}

	if err := a.db.Create(&user).Error; err != nil {
		log.Printf("Error creating user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, user)
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
