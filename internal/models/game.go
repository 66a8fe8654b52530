package models

import (
	"time"
)

// UnknownReleaseYear is used when the store gives no parseable release date
const UnknownReleaseYear = "Unknown"

// UntitledGame is the placeholder title for store entries without a name
const UntitledGame = "Untitled Game"

// Platforms reports which desktop operating systems a title supports
type Platforms struct {
	Windows bool `json:"windows"`
	Mac     bool `json:"mac"`
	Linux   bool `json:"linux"`
}

// GameRecord is the normalized shape of a store title, built fresh for every search
type GameRecord struct {
	ExternalID  string     `json:"externalId" binding:"required"`
	Title       string     `json:"title" binding:"required"`
	ImageURL    string     `json:"imageUrl"`
	Genres      []string   `json:"genres"`
	ReleaseYear string     `json:"releaseYear"`
	CriticScore *int       `json:"criticScore"`
	Developers  []string   `json:"developers"`
	Publishers  []string   `json:"publishers"`
	Price       *PriceInfo `json:"price"`
	Categories  []string   `json:"categories"`
	Platforms   Platforms  `json:"platforms"`
	Description string     `json:"description"`
	IsFree      bool       `json:"isFree"`
}

// SearchResponse is the body returned by the search endpoint
type SearchResponse struct {
	Games []GameRecord `json:"games"`
	Total int          `json:"total"`
	Query string       `json:"query"`
}

// Game is a title imported into the personal library
type Game struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	ExternalID  string     `json:"externalId" gorm:"not null;uniqueIndex"`
	Title       string     `json:"title" gorm:"not null;index"`
	ImageURL    string     `json:"imageUrl"`
	Genres      []string   `json:"genres" gorm:"serializer:json"`
	ReleaseYear string     `json:"releaseYear"`
	CriticScore *int       `json:"criticScore"`
	Developers  []string   `json:"developers" gorm:"serializer:json"`
	Publishers  []string   `json:"publishers" gorm:"serializer:json"`
	Price       *PriceInfo `json:"price" gorm:"serializer:json"`
	Categories  []string   `json:"categories" gorm:"serializer:json"`
	Platforms   Platforms  `json:"platforms" gorm:"serializer:json"`
	Description string     `json:"description"`
	IsFree      bool       `json:"isFree"`

	// Personal tracking fields
	UserRating int        `json:"userRating" gorm:"default:0"`
	Status     GameStatus `json:"status" gorm:"not null;index;default:'Pending'"`
	List       string     `json:"list" gorm:"default:'None'"`
	IsFavorite bool       `json:"isFavorite" gorm:"default:false"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewGameFromRecord builds a library row from a search result with tracking defaults
func NewGameFromRecord(id string, r GameRecord) Game {
	return Game{
		ID:          id,
		ExternalID:  r.ExternalID,
		Title:       r.Title,
		ImageURL:    r.ImageURL,
		Genres:      nonNil(r.Genres),
		ReleaseYear: r.ReleaseYear,
		CriticScore: r.CriticScore,
		Developers:  nonNil(r.Developers),
		Publishers:  nonNil(r.Publishers),
		Price:       r.Price,
		Categories:  nonNil(r.Categories),
		Platforms:   r.Platforms,
		Description: r.Description,
		IsFree:      r.IsFree,
		UserRating:  0,
		Status:      StatusPending,
		List:        NoList,
		IsFavorite:  false,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
