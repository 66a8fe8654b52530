package services

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/codyseavey/game-tracker/internal/metrics"
	"github.com/codyseavey/game-tracker/internal/models"
)

// releaseDateLayouts are the date formats the store emits across locales
var releaseDateLayouts = []string{
	"2 Jan, 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"2 January, 2006",
	"2 January 2006",
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"Jan 2006",
	"January 2006",
	"2006",
}

// yearToken finds a standalone four digit year in free text such as "Q3 2024"
var yearToken = regexp.MustCompile(`(?:^|[^0-9])((?:19|20)[0-9]{2})(?:[^0-9]|$)`)

// GameNormalizer turns raw detail records into GameRecords
type GameNormalizer struct {
	currency *CurrencyNormalizer
}

// NewGameNormalizer creates a normalizer that converts prices with c
func NewGameNormalizer(c *CurrencyNormalizer) *GameNormalizer {
	return &GameNormalizer{currency: c}
}

// Normalize maps a raw record to a GameRecord. It returns nil when the record
// was not successful or does not describe a game (DLC, soundtracks, videos).
func (n *GameNormalizer) Normalize(raw RawDetailRecord, externalID string) *models.GameRecord {
	if !raw.Success {
		metrics.NormalizerDropped.WithLabelValues("unsuccessful").Inc()
		return nil
	}
	d := raw.Data
	if d.Type != "game" {
		metrics.NormalizerDropped.WithLabelValues("type").Inc()
		return nil
	}

	id := strings.TrimSpace(externalID)
	if id == "" {
		id = strings.TrimSpace(string(d.SteamAppID))
	}

	title := strings.TrimSpace(d.Name)
	if title == "" {
		title = models.UntitledGame
	}

	rec := &models.GameRecord{
		ExternalID:  id,
		Title:       title,
		ImageURL:    strings.TrimSpace(d.HeaderImage),
		Genres:      descriptions(d.Genres),
		ReleaseYear: parseReleaseYear(d.ReleaseDate.Value.Date),
		Developers:  cleanStrings(d.Developers.Value),
		Publishers:  cleanStrings(d.Publishers.Value),
		Categories:  descriptions(d.Categories),
		Description: strings.TrimSpace(html.UnescapeString(d.ShortDescription)),
	}

	if d.Platforms.OK {
		rec.Platforms = models.Platforms{
			Windows: d.Platforms.Value.Windows,
			Mac:     d.Platforms.Value.Mac,
			Linux:   d.Platforms.Value.Linux,
		}
	}

	if d.Metacritic.OK && d.Metacritic.Value.Score > 0 {
		score := int(d.Metacritic.Value.Score)
		rec.CriticScore = &score
	}

	rec.Price, rec.IsFree = n.price(d.PriceOverview)
	return rec
}

// price converts the store's minor-unit price block. A missing block or a
// zero final price means the title is free and carries no price.
func (n *GameNormalizer) price(block lenient[steamPriceOverview]) (*models.PriceInfo, bool) {
	if !block.OK || block.Value.Final <= 0 {
		return nil, true
	}
	p := block.Value

	final := n.currency.Normalize(float64(p.Final)/100, p.Currency)
	initial := final
	if p.Initial > 0 {
		initial = n.currency.Normalize(float64(p.Initial)/100, p.Currency)
	}

	discount := int(p.DiscountPercent)
	if discount < 0 || discount > 100 {
		discount = 0
	}

	return &models.PriceInfo{
		Currency:         n.currency.DisplayCurrency(),
		Initial:          initial,
		Final:            final,
		DiscountPercent:  discount,
		FormattedFinal:   n.currency.Format(final),
		FormattedInitial: n.currency.Format(initial),
	}, false
}

// parseReleaseYear extracts the year from a store date string, or returns
// models.UnknownReleaseYear when nothing parses
func parseReleaseYear(date string) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return models.UnknownReleaseYear
	}

	for _, layout := range releaseDateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Format("2006")
		}
	}

	if m := yearToken.FindStringSubmatch(date); m != nil {
		return m[1]
	}
	return models.UnknownReleaseYear
}

func descriptions(block lenient[[]steamDescription]) []string {
	out := make([]string, 0, len(block.Value))
	for _, d := range block.Value {
		if s := strings.TrimSpace(d.Description); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
