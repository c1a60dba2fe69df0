package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/randomtoy/tarot-backend/internal/app"
	"github.com/randomtoy/tarot-backend/internal/domain"
	"github.com/randomtoy/tarot-backend/internal/metrics"
)

const maxQuestionLength = 500

type Handler struct {
	readings *app.ReadingService
	catalog  *app.CatalogService
	accounts *app.AccountService
}

func NewHandler(readings *app.ReadingService, catalog *app.CatalogService, accounts *app.AccountService) *Handler {
	return &Handler{readings: readings, catalog: catalog, accounts: accounts}
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	v1 := e.Group("/v1")
	v1.POST("/auth/register", h.RegisterUser)
	v1.POST("/auth/login", h.Login)
	v1.GET("/cards", h.ListCards)
	v1.GET("/cards/:id", h.GetCard)
	v1.GET("/spreads", h.ListSpreads)
	v1.GET("/spreads/:name", h.GetSpread)
	v1.GET("/draw", h.Draw)
	v1.GET("/zodiac/signs", h.ZodiacSigns)
	v1.GET("/zodiac/compatibility", h.ZodiacCompatibility)

	auth := AuthMiddleware(h.accounts)
	staff := RequireRole(domain.RoleReader, domain.RoleAdmin)
	admin := RequireRole(domain.RoleAdmin)

	v1.GET("/users/me", h.Me, auth)

	v1.POST("/cards", h.CreateCard, auth, admin)
	v1.PUT("/cards/:id", h.UpdateCard, auth, admin)
	v1.DELETE("/cards/:id", h.DeleteCard, auth, admin)
	v1.POST("/spreads", h.CreateSpread, auth, admin)
	v1.PUT("/spreads/:name", h.UpdateSpread, auth, admin)
	v1.DELETE("/spreads/:name", h.DeactivateSpread, auth, admin)

	v1.POST("/readings", h.CreateReading, auth)
	v1.POST("/readings/random", h.CreateRandomReading, auth)
	v1.GET("/readings", h.ListReadings, auth)
	v1.GET("/readings/:id", h.GetReading, auth)
	v1.GET("/readings/:id/auto-interpretation", h.AutoInterpretation, auth)
	v1.POST("/readings/:id/interpretation", h.Interpret, auth, staff)
	v1.POST("/readings/:id/ai-interpretation", h.AIInterpret, auth, staff)
	v1.POST("/readings/:id/feedback", h.AddFeedback, auth)
	v1.PATCH("/readings/:id", h.UpdateReading, auth, admin)
	v1.DELETE("/readings/:id", h.DeleteReading, auth, admin)
}

func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Accounts.

func (h *Handler) RegisterUser(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	sess, err := h.accounts.Register(c.Request().Context(), app.RegisterRequest{
		Username:   req.Username,
		Password:   req.Password,
		ZodiacSign: req.ZodiacSign,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *Handler) Login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	sess, err := h.accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) Me(c echo.Context) error {
	p, err := h.accounts.Me(c.Request().Context(), callerFrom(c))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Catalog.

func (h *Handler) ListCards(c echo.Context) error {
	cards, err := h.catalog.ListCards(c.Request().Context(), c.QueryParam("deck"))
	if err != nil {
		return mapError(c, err)
	}
	if cards == nil {
		cards = []domain.Card{}
	}
	return c.JSON(http.StatusOK, cards)
}

func (h *Handler) GetCard(c echo.Context) error {
	card, err := h.catalog.GetCard(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, card)
}

func (h *Handler) CreateCard(c echo.Context) error {
	var card domain.Card
	if err := c.Bind(&card); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	created, err := h.catalog.CreateCard(c.Request().Context(), callerFrom(c), card)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateCard(c echo.Context) error {
	var card domain.Card
	if err := c.Bind(&card); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	card.ID = c.Param("id")
	updated, err := h.catalog.UpdateCard(c.Request().Context(), callerFrom(c), card)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteCard(c echo.Context) error {
	if err := h.catalog.DeleteCard(c.Request().Context(), callerFrom(c), c.Param("id")); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListSpreads(c echo.Context) error {
	spreads, err := h.catalog.ListSpreads(c.Request().Context())
	if err != nil {
		return mapError(c, err)
	}
	if spreads == nil {
		spreads = []domain.Spread{}
	}
	return c.JSON(http.StatusOK, spreads)
}

func (h *Handler) GetSpread(c echo.Context) error {
	spread, err := h.catalog.GetSpread(c.Request().Context(), c.Param("name"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, spread)
}

func (h *Handler) CreateSpread(c echo.Context) error {
	var spread domain.Spread
	if err := c.Bind(&spread); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	created, err := h.catalog.CreateSpread(c.Request().Context(), callerFrom(c), spread)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateSpread(c echo.Context) error {
	var spread domain.Spread
	if err := c.Bind(&spread); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	spread.Name = c.Param("name")
	updated, err := h.catalog.UpdateSpread(c.Request().Context(), callerFrom(c), spread)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeactivateSpread(c echo.Context) error {
	if err := h.catalog.DeactivateSpread(c.Request().Context(), callerFrom(c), c.Param("name")); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Readings.

func (h *Handler) Draw(c echo.Context) error {
	req := app.DrawRequest{
		SpreadType:    c.QueryParam("spread"),
		Deck:          c.QueryParam("deck"),
		AllowReversed: true,
	}
	if raw := c.QueryParam("reversed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "reversed must be a boolean")
		}
		req.AllowReversed = v
	}

	drawn, err := h.readings.Draw(c.Request().Context(), req)
	if err != nil {
		return mapError(c, err)
	}
	deck := req.Deck
	if deck == "" && len(drawn) > 0 {
		deck = drawn[0].Card.Deck
	}
	return c.JSON(http.StatusOK, DrawResponse{Spread: req.SpreadType, Deck: deck, Cards: drawn})
}

func (h *Handler) CreateRandomReading(c echo.Context) error {
	var req randomReadingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if utf8.RuneCountInString(req.Question) > maxQuestionLength {
		return badRequest(c, "question must be at most 500 characters")
	}

	reading, err := h.readings.CreateRandom(c.Request().Context(), callerFrom(c), app.RandomReadingRequest{
		Spread:        req.Spread,
		Question:      req.Question,
		Deck:          req.Deck,
		AllowReversed: req.AllowReversed,
	})
	if errors.Is(err, domain.ErrNotFound) {
		// The named spread is part of the request body.
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, reading)
}

func (h *Handler) CreateReading(c echo.Context) error {
	var req explicitReadingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if utf8.RuneCountInString(req.Question) > maxQuestionLength {
		return badRequest(c, "question must be at most 500 characters")
	}

	cards := make([]domain.ReadingCard, len(req.Cards))
	for i, rc := range req.Cards {
		position := rc.Position
		if position == 0 {
			position = i + 1
		}
		cards[i] = domain.ReadingCard{CardID: rc.CardID, Position: position, Reversed: rc.Reversed}
	}

	reading, err := h.readings.CreateExplicit(c.Request().Context(), callerFrom(c), app.ExplicitReadingRequest{
		Spread:   req.SpreadType,
		Question: req.Question,
		Cards:    cards,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, reading)
}

func (h *Handler) ListReadings(c echo.Context) error {
	limit, err := intQuery(c, "limit")
	if err != nil {
		return badRequest(c, "limit must be an integer")
	}
	offset, err := intQuery(c, "offset")
	if err != nil {
		return badRequest(c, "offset must be an integer")
	}

	readings, err := h.readings.ListMine(c.Request().Context(), callerFrom(c), limit, offset)
	if err != nil {
		return mapError(c, err)
	}
	if readings == nil {
		readings = []domain.Reading{}
	}
	return c.JSON(http.StatusOK, ReadingList{Readings: readings, Count: len(readings)})
}

func (h *Handler) GetReading(c echo.Context) error {
	reading, err := h.readings.Get(c.Request().Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, reading)
}

func (h *Handler) AutoInterpretation(c echo.Context) error {
	text, err := h.readings.AutoInterpretation(c.Request().Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, InterpretationResponse{Interpretation: text})
}

func (h *Handler) Interpret(c echo.Context) error {
	var req interpretationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	reading, err := h.readings.Interpret(c.Request().Context(), callerFrom(c), c.Param("id"), req.Interpretation)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, reading)
}

func (h *Handler) AIInterpret(c echo.Context) error {
	reading, err := h.readings.AIInterpret(c.Request().Context(), callerFrom(c), c.Param("id"), c.QueryParam("lang"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, reading)
}

func (h *Handler) AddFeedback(c echo.Context) error {
	var f domain.Feedback
	if err := c.Bind(&f); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	reading, err := h.readings.AddFeedback(c.Request().Context(), callerFrom(c), c.Param("id"), f)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, reading)
}

func (h *Handler) UpdateReading(c echo.Context) error {
	var req patchReadingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	reading, err := h.readings.Update(c.Request().Context(), callerFrom(c), c.Param("id"), domain.ReadingPatch{
		Question:       req.Question,
		Interpretation: req.Interpretation,
		ReaderID:       req.ReaderID,
		Public:         req.Public,
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, reading)
}

func (h *Handler) DeleteReading(c echo.Context) error {
	hard := false
	if raw := c.QueryParam("hard"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "hard must be a boolean")
		}
		hard = v
	}
	if err := h.readings.Delete(c.Request().Context(), callerFrom(c), c.Param("id"), hard); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Zodiac.

func (h *Handler) ZodiacSigns(c echo.Context) error {
	signs := make([]ZodiacSignResponse, len(domain.ZodiacSigns))
	for i, s := range domain.ZodiacSigns {
		signs[i] = ZodiacSignResponse{Sign: s, Element: s.Element()}
	}
	return c.JSON(http.StatusOK, signs)
}

func (h *Handler) ZodiacCompatibility(c echo.Context) error {
	first, err := domain.ParseZodiacSign(c.QueryParam("first"))
	if err != nil {
		return mapError(c, err)
	}
	second, err := domain.ParseZodiacSign(c.QueryParam("second"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, domain.CompatibilityOf(first, second))
}

func intQuery(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func mapError(c echo.Context, err error) error {
	requestID, _ := c.Get(keyRequestID).(string)
	ctx := c.Request().Context()

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrLLMDisabled):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUpstreamLLM), errors.Is(err, domain.ErrInvalidLLMJSON):
		slog.ErrorContext(ctx, "upstream LLM failure", "request_id", requestID, "error", err)
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "upstream LLM failure"})
	default:
		slog.ErrorContext(ctx, "internal error", "request_id", requestID, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
