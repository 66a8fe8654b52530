package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codyseavey/game-tracker/internal/models"
)

type ListHandler struct {
	db *gorm.DB
}

func NewListHandler(db *gorm.DB) *ListHandler {
	return &ListHandler{db: db}
}

func (h *ListHandler) GetLists(c *gin.Context) {
	var lists []models.CustomList
	if err := h.db.Order("created_at DESC").Find(&lists).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if lists == nil {
		lists = []models.CustomList{}
	}
	c.JSON(http.StatusOK, lists)
}

func (h *ListHandler) CreateList(c *gin.Context) {
	var req models.CreateListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	list := models.CustomList{
		ID:    uuid.New().String(),
		Name:  name,
		Color: strings.TrimSpace(req.Color),
	}
	if err := h.db.Create(&list).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "List already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, list)
}
