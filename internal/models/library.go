package models

import (
	"strings"
	"time"
)

// GameStatus is the play state of a library title
type GameStatus string

const (
	StatusPending   GameStatus = "Pending"
	StatusPlaying   GameStatus = "Playing"
	StatusCompleted GameStatus = "Completed"
	StatusWishlist  GameStatus = "Wishlist"
)

// NoList is the list value for titles not assigned to a custom list
const NoList = "None"

// MaxUserRating is the top of the star scale
const MaxUserRating = 5

// AllGameStatuses returns all valid statuses
func AllGameStatuses() []GameStatus {
	return []GameStatus{
		StatusPending,
		StatusPlaying,
		StatusCompleted,
		StatusWishlist,
	}
}

// ParseGameStatus maps a case-insensitive status name to a GameStatus.
// The bool is false for unknown values.
func ParseGameStatus(s string) (GameStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, true
	case "playing":
		return StatusPlaying, true
	case "completed":
		return StatusCompleted, true
	case "wishlist":
		return StatusWishlist, true
	default:
		return "", false
	}
}

// CustomList is a user-defined grouping of library titles
type CustomList struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null;uniqueIndex"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateListRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

// UpdateGameRequest carries the personal tracking fields; nil means unchanged
type UpdateGameRequest struct {
	Status     *string `json:"status"`
	UserRating *int    `json:"userRating"`
	List       *string `json:"list"`
	IsFavorite *bool   `json:"isFavorite"`
}

type LibraryStats struct {
	TotalGames    int                `json:"totalGames"`
	ByStatus      map[GameStatus]int `json:"byStatus"`
	Favorites     int                `json:"favorites"`
	RatedGames    int                `json:"ratedGames"`
	AverageRating float64            `json:"averageRating"`
	FreeGames     int                `json:"freeGames"`
}
