package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/middleware"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/utils"
	"gorm.io/gorm"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	DisplayName  string `json:"display_name"`
	HomeCurrency string `json:"home_currency" validate:"omitempty,iso4217"`
}

// RefreshRequest carries the long-lived token used to mint a new pair
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// register handles account creation
func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var regReq RegisterRequest
	if err := json.NewDecoder(req.Body).Decode(&regReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := r.validate.Struct(regReq); err != nil {
		respondError(w, http.StatusBadRequest, "Registration needs a valid email and a password of at least 8 characters")
		return
	}

	// 1. Hash Password
	hashedPassword, err := utils.HashPassword(regReq.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	// 2. Create User
	user := models.User{
		Email:       regReq.Email,
		Password:    hashedPassword,
		DisplayName: regReq.DisplayName,
		IsActive:    true,
	}
	if regReq.HomeCurrency != "" {
		user.HomeCurrency = regReq.HomeCurrency
	}

	if err := r.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondError(w, http.StatusConflict, "Email is already registered")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	// 3. Generate Tokens for immediate login
	accessToken, refreshToken, err := utils.GenerateTokens(&user, r.cfg)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "User created but failed to generate tokens")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"tokens": map[string]string{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
		"user": user,
	})
}

// login handles user login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var loginReq LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&loginReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	// 1. Find User
	var user models.User
	if err := r.db.Where("email = ? AND is_active = ?", loginReq.Email, true).First(&user).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// 2. Check Password
	if !utils.CheckPasswordHash(loginReq.Password, user.Password) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// 3. Update Last Login
	now := time.Now().UTC()
	user.LastLogin = &now
	r.db.Save(&user)

	// 4. Generate Tokens
	accessToken, refreshToken, err := utils.GenerateTokens(&user, r.cfg)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": map[string]string{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
		"user": user,
	})
}

// refresh exchanges a refresh token for a new token pair
func (r *Router) refresh(w http.ResponseWriter, req *http.Request) {
	var refReq RefreshRequest
	if err := json.NewDecoder(req.Body).Decode(&refReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	// 1. Validate the refresh token
	claims, err := utils.ValidateToken(refReq.RefreshToken, r.cfg.JWTSecret)
	if err != nil || !utils.IsRefreshToken(claims) {
		respondError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	userID, _ := claims["id"].(string)
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	// 2. The account must still exist and be active
	var user models.User
	if err := r.db.Where("id = ? AND is_active = ?", userID, true).First(&user).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Account no longer active")
		return
	}

	// 3. Mint a fresh pair
	accessToken, refreshToken, err := utils.GenerateTokens(&user, r.cfg)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate tokens")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": map[string]string{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
		"user": user,
	})
}

// me returns the authenticated user's account
func (r *Router) me(w http.ResponseWriter, req *http.Request) {
	userID, ok := middleware.UserID(req)
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var user models.User
	if err := r.db.Where("id = ?", userID).First(&user).Error; err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	respondJSON(w, http.StatusOK, user)
}
