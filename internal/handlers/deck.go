// internal/handlers/deck.go
package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/czar/internal/auth"
	"github.com/jason-s-yu/czar/internal/database"
	"github.com/jason-s-yu/czar/internal/models"
	"github.com/sirupsen/logrus"
)

var blankRun = regexp.MustCompile(`_{3,}`)

// blackCardInput is a prompt card. Pick defaults to the number of blanks in Text, or 1.
type blackCardInput struct {
	Text string `json:"text"`
	Pick int    `json:"pick,omitempty"`
}

type createDeckRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	IsPublic    bool             `json:"isPublic"`
	Black       []blackCardInput `json:"black"`
	White       []string         `json:"white"`
}

// DecksHandler serves GET (list visible decks) and POST (import a deck) on /decks.
func DecksHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listDecks(w, r, logger)
		case http.MethodPost:
			createDeck(w, r, logger)
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func listDecks(w http.ResponseWriter, r *http.Request, logger *logrus.Logger) {
	var viewer *uuid.UUID
	if userID, err := auth.UserFromRequest(r); err == nil {
		viewer = &userID
	}
	decks, err := database.ListDecks(r.Context(), viewer)
	if err != nil {
		logger.WithError(err).Error("list decks")
		http.Error(w, "error listing decks", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, decks)
}

func createDeck(w http.ResponseWriter, r *http.Request, logger *logrus.Logger) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createDeckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "deck name is required", http.StatusBadRequest)
		return
	}

	cards := make([]models.Card, 0, len(req.Black)+len(req.White))
	for _, b := range req.Black {
		text := strings.TrimSpace(b.Text)
		if text == "" {
			http.Error(w, "black card text is required", http.StatusBadRequest)
			return
		}
		pick := b.Pick
		if pick < 1 {
			pick = max(1, len(blankRun.FindAllString(text, -1)))
		}
		cards = append(cards, models.Card{Kind: models.CardKindBlack, Text: text, Pick: pick})
	}
	for _, text := range req.White {
		text = strings.TrimSpace(text)
		if text == "" {
			http.Error(w, "white card text is required", http.StatusBadRequest)
			return
		}
		cards = append(cards, models.Card{Kind: models.CardKindWhite, Text: text})
	}
	if len(cards) == 0 {
		http.Error(w, "a deck needs at least one card", http.StatusBadRequest)
		return
	}

	deck := models.Deck{
		OwnerUserID: &userID,
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
	}
	if err := database.CreateDeck(r.Context(), &deck, cards); err != nil {
		logger.WithError(err).Error("create deck")
		http.Error(w, "error creating deck", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, deck)
}
