// Package apitest はテスト用のインメモリなAPIサーバーを提供します。
// 文字起こし・評価・言い換えの結果は固定値を返します。
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go_voicecards/internal/middleware"
	"go_voicecards/internal/model"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
)

// ルート名。FailWith や Calls で使う
const (
	RouteLogin          = "login"
	RouteSignup         = "signup"
	RouteListDecks      = "list-decks"
	RouteCreateDeck     = "create-deck"
	RouteGetDeck        = "get-deck"
	RouteDeleteDeck     = "delete-deck"
	RouteListCards      = "list-cards"
	RouteCreateCard     = "create-card"
	RouteDeleteCard     = "delete-card"
	RouteNextCard       = "next-card"
	RouteStudyCard      = "study-card"
	RouteTranscribe     = "transcribe"
	RouteEvaluate       = "evaluate"
	RouteParaphrase     = "paraphrase"
	RouteReview         = "review"
	RouteResetCard      = "reset-card"
	RouteResetDeck      = "reset-deck"
	SigningKey          = "apitest-secret"
	DefaultPassword     = "password"
	defaultTokenTTL     = time.Hour
	defaultDeckOwnerID  = 1
	defaultTranscript   = "a unit of data"
	defaultSimilarity   = 0.9
	defaultParaphrase   = "In other words, "
	unauthorizedMessage = "Could not validate credentials"
)

// Server はチャイルーターで組んだ偽のAPIサーバーです。
type Server struct {
	*httptest.Server
	logger *slog.Logger

	mu          sync.Mutex
	users       map[string]string
	decks       map[int]*model.Deck
	cards       map[int]*model.Card
	due         map[int][]int // deckID → 復習期限の来ているカードID (期限順)
	nextID      int
	transcript  string
	evaluation  *model.EvaluationResult
	paraphrases []string
	failures    map[string]int
	calls       map[string]int
	reviews     []model.SubmitReviewRequest
	audio       []string
	hold        map[string]chan struct{}
}

// Option はサーバーの設定
type Option func(*Server)

// WithLogger はアクセスログの出力先を設定します。既定では捨てる。
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer はサーバーを起動します。t.Cleanup で Close してください。
func NewServer(opts ...Option) *Server {
	s := &Server{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		users:      map[string]string{"alice": DefaultPassword},
		decks:      map[int]*model.Deck{},
		cards:      map[int]*model.Card{},
		due:        map[int][]int{},
		nextID:     1,
		transcript: defaultTranscript,
		failures:   map[string]int{},
		calls:      map[string]int{},
		hold:       map[string]chan struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.NewStructuredLogger(s.logger))
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handle(RouteLogin, false, s.login))
		r.Post("/auth/signup", s.handle(RouteSignup, false, s.signup))

		r.Get("/decks/", s.handle(RouteListDecks, true, s.listDecks))
		r.Post("/decks/", s.handle(RouteCreateDeck, true, s.createDeck))
		r.Get("/decks/{id}", s.handle(RouteGetDeck, true, s.getDeck))
		r.Delete("/decks/{id}", s.handle(RouteDeleteDeck, true, s.deleteDeck))

		r.Get("/cards/deck/{id}", s.handle(RouteListCards, true, s.listCards))
		r.Post("/cards/", s.handle(RouteCreateCard, true, s.createCard))
		r.Delete("/cards/{id}", s.handle(RouteDeleteCard, true, s.deleteCard))

		r.Get("/study/deck/{id}/next", s.handle(RouteNextCard, true, s.nextCard))
		r.Get("/study/card/{id}", s.handle(RouteStudyCard, true, s.studyCard))
		r.Post("/study/transcribe", s.handle(RouteTranscribe, true, s.transcribe))
		r.Post("/study/evaluate", s.handle(RouteEvaluate, true, s.evaluate))
		r.Post("/study/paraphrase", s.handle(RouteParaphrase, true, s.paraphrase))
		r.Post("/study/review", s.handle(RouteReview, true, s.review))
		r.Delete("/study/progress/card/{id}", s.handle(RouteResetCard, true, s.resetCard))
		r.Delete("/study/progress/deck/{id}", s.handle(RouteResetDeck, true, s.resetDeck))
	})
	return r
}

// handle は呼び出し回数の記録、強制失敗、認証チェックを共通化します
func (s *Server) handle(route string, auth bool, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		status, failing := s.failures[route]
		hold := s.hold[route]
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}

		if failing {
			writeDetail(w, status, fmt.Sprintf("forced failure on %s", route))
			return
		}
		if auth && !s.authorized(r) {
			writeDetail(w, http.StatusUnauthorized, unauthorizedMessage)
			return
		}
		fn(w, r)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	_, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return []byte(SigningKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err == nil
}

// IssueToken はこのサーバーが受け付けるアクセストークンを発行します。
func IssueToken(username string, ttl time.Duration) string {
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(SigningKey))
	if err != nil {
		panic(err)
	}
	return signed
}

// --- テストからの設定・検証用 ---

// AddDeck はデッキを追加してIDを返します。
func (s *Server) AddDeck(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addDeckLocked(name, nil)
}

// AddCard はカードを追加し、due が true なら復習キューの末尾に入れます。
func (s *Server) AddCard(deckID int, concept, definition string, due bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.addCardLocked(deckID, concept, definition)
	if due {
		s.due[deckID] = append(s.due[deckID], id)
	}
	return id
}

// SetTranscript は文字起こしの戻り値を設定します。
func (s *Server) SetTranscript(transcript string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = transcript
}

// SetEvaluation は評価の戻り値を固定します。
func (s *Server) SetEvaluation(result model.EvaluationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluation = &result
}

// SetParaphrases は言い換えの戻り値を固定します。
func (s *Server) SetParaphrases(p []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paraphrases = p
}

// FailWith は route への以降のリクエストを status で失敗させます。
func (s *Server) FailWith(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = status
}

// Recover は FailWith を解除します。
func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// Hold は route へのリクエストを返された関数が呼ばれるまで待たせます。
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.hold[route] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.hold, route)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Calls は route が呼ばれた回数を返します。
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Reviews は受け付けたレビューを返します。
func (s *Server) Reviews() []model.SubmitReviewRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SubmitReviewRequest(nil), s.reviews...)
}

// ReceivedAudio は受け付けた音声 (base64) を返します。
func (s *Server) ReceivedAudio() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.audio...)
}

// --- ハンドラ ---

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	pw, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || pw != req.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	writeJSON(w, http.StatusOK, model.LoginResponse{AccessToken: IssueToken(req.Username, defaultTokenTTL), TokenType: "bearer"})
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Username]; exists {
		writeDetail(w, http.StatusBadRequest, "Username already registered")
		return
	}
	s.users[req.Username] = req.Password
	writeJSON(w, http.StatusCreated, model.User{ID: len(s.users), Username: req.Username, CreatedAt: time.Now().UTC()})
}

func (s *Server) listDecks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	decks := make([]model.Deck, 0, len(s.decks))
	for _, d := range s.decks {
		deck := *d
		deck.CardCount = s.countCardsLocked(d.ID)
		decks = append(decks, deck)
	}
	sort.Slice(decks, func(i, j int) bool { return decks[i].ID < decks[j].ID })
	writeJSON(w, http.StatusOK, decks)
}

func (s *Server) createDeck(w http.ResponseWriter, r *http.Request) {
	var req model.CreateDeckRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.addDeckLocked(req.Name, req.Description)
	writeJSON(w, http.StatusCreated, s.decks[id])
}

func (s *Server) getDeck(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, found := s.decks[id]
	if !found {
		writeDetail(w, http.StatusNotFound, "Deck not found")
		return
	}
	deck := *d
	deck.CardCount = s.countCardsLocked(id)
	writeJSON(w, http.StatusOK, deck)
}

func (s *Server) deleteDeck(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.decks[id]; !found {
		writeDetail(w, http.StatusNotFound, "Deck not found")
		return
	}
	delete(s.decks, id)
	delete(s.due, id)
	for cid, c := range s.cards {
		if c.DeckID == id {
			delete(s.cards, cid)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCards(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.decks[id]; !found {
		writeDetail(w, http.StatusNotFound, "Deck not found")
		return
	}
	cards := make([]model.Card, 0)
	for _, c := range s.cards {
		if c.DeckID == id {
			cards = append(cards, *c)
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) createCard(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCardRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.decks[req.DeckID]; !found {
		writeDetail(w, http.StatusNotFound, "Deck not found")
		return
	}
	id := s.addCardLocked(req.DeckID, req.Concept, req.Definition)
	// 新しいカードはすぐに復習対象になる
	s.due[req.DeckID] = append(s.due[req.DeckID], id)
	writeJSON(w, http.StatusCreated, s.cards[id])
}

func (s *Server) deleteCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.cards[id]
	if !found {
		writeDetail(w, http.StatusNotFound, "Card not found")
		return
	}
	s.removeDueLocked(c.DeckID, id)
	delete(s.cards, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) nextCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, found := s.decks[id]
	if !found {
		writeDetail(w, http.StatusNotFound, "Deck not found")
		return
	}
	resp := model.NextCardResponse{DeckName: d.Name, CardsRemaining: len(s.due[id])}
	if q := s.due[id]; len(q) > 0 {
		card := *s.cards[q[0]]
		resp.Card = &card
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) studyCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.cards[id]
	if !found {
		writeDetail(w, http.StatusNotFound, "Card not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) {
	var req model.TranscriptionRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, req.AudioBase64)
	writeJSON(w, http.StatusOK, model.TranscriptionResponse{Transcript: s.transcript})
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	var req model.EvaluationRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evaluation != nil {
		writeJSON(w, http.StatusOK, s.evaluation)
		return
	}
	writeJSON(w, http.StatusOK, model.EvaluationResult{
		SimilarityScore:       defaultSimilarity,
		MatchedKeywords:       []string{},
		HighlightedUserAnswer: req.UserAnswer,
		HighlightedDefinition: req.CorrectDefinition,
	})
}

func (s *Server) paraphrase(w http.ResponseWriter, r *http.Request) {
	var req model.ParaphraseRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paraphrases != nil {
		writeJSON(w, http.StatusOK, model.ParaphraseResponse{Paraphrases: s.paraphrases})
		return
	}
	writeJSON(w, http.StatusOK, model.ParaphraseResponse{Paraphrases: []string{defaultParaphrase + strings.ToLower(req.Definition)}})
}

func (s *Server) review(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitReviewRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.cards[req.CardID]
	if !found {
		writeDetail(w, http.StatusNotFound, "Card not found")
		return
	}
	s.reviews = append(s.reviews, req)
	// 「もう一度」以外は復習キューから外す。「もう一度」は末尾に回す
	s.removeDueLocked(c.DeckID, c.ID)
	if req.Quality == model.QualityAgain {
		s.due[c.DeckID] = append(s.due[c.DeckID], c.ID)
	}
	writeJSON(w, http.StatusOK, model.ReviewResponse{
		ID:              len(s.reviews),
		CardID:          c.ID,
		SimilarityScore: defaultSimilarity,
		Quality:         req.Quality,
		MatchedKeywords: []string{},
		ReviewedAt:      time.Now().UTC(),
	})
}

func (s *Server) resetCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, found := s.cards[id]
	if !found {
		writeDetail(w, http.StatusNotFound, "Card not found")
		return
	}
	s.removeDueLocked(c.DeckID, id)
	s.due[c.DeckID] = append([]int{id}, s.due[c.DeckID]...)
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Card progress reset successfully"})
}

func (s *Server) resetDeck(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.decks[id]; !found {
		writeDetail(w, http.StatusNotFound, "Deck not found")
		return
	}
	ids := make([]int, 0)
	for cid, c := range s.cards {
		if c.DeckID == id {
			ids = append(ids, cid)
		}
	}
	sort.Ints(ids)
	s.due[id] = ids
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: fmt.Sprintf("Reset progress for %d cards", len(ids))})
}

// --- ヘルパー ---

func (s *Server) addDeckLocked(name string, description *string) int {
	id := s.nextID
	s.nextID++
	s.decks[id] = &model.Deck{ID: id, UserID: defaultDeckOwnerID, Name: name, Description: description, CreatedAt: time.Now().UTC()}
	return id
}

func (s *Server) addCardLocked(deckID int, concept, definition string) int {
	id := s.nextID
	s.nextID++
	s.cards[id] = &model.Card{ID: id, DeckID: deckID, Concept: concept, Definition: definition, CreatedAt: time.Now().UTC()}
	return id
}

func (s *Server) countCardsLocked(deckID int) int {
	n := 0
	for _, c := range s.cards {
		if c.DeckID == deckID {
			n++
		}
	}
	return n
}

func (s *Server) removeDueLocked(deckID, cardID int) {
	q := s.due[deckID]
	out := q[:0]
	for _, id := range q {
		if id != cardID {
			out = append(out, id)
		}
	}
	s.due[deckID] = out
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid id")
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, model.APIErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
