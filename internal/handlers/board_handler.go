package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/httpclient"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
)

// BoardHandler exposes the board catalog and on-demand advisor analysis.
type BoardHandler struct {
	boards   interfaces.BoardStorage
	advisor  interfaces.Advisor
	client   *httpclient.Client
	engines  map[models.EngineType]interfaces.Engine
	validate *validator.Validate
	config   common.AdvisorConfig
	logger   arbor.ILogger
}

// NewBoardHandler creates a board handler. advisor and client may be nil;
// the analyze endpoint then reports unavailable.
func NewBoardHandler(boards interfaces.BoardStorage, advisor interfaces.Advisor, client *httpclient.Client, engineSet []interfaces.Engine, config common.AdvisorConfig) *BoardHandler {
	engines := make(map[models.EngineType]interfaces.Engine, len(engineSet))
	for _, e := range engineSet {
		engines[e.Type()] = e
	}
	return &BoardHandler{
		boards:   boards,
		advisor:  advisor,
		client:   client,
		engines:  engines,
		validate: validator.New(),
		config:   config,
		logger:   common.GetLogger(),
	}
}

// BoardsHandler handles GET (list) and POST (upsert) on /api/boards.
func (h *BoardHandler) BoardsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listBoards(w, r)
	case http.MethodPost, http.MethodPut:
		h.upsertBoard(w, r)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *BoardHandler) listBoards(w http.ResponseWriter, r *http.Request) {
	filter := interfaces.BoardFilter{
		Engine:   models.EngineType(r.URL.Query().Get("engine")),
		Region:   r.URL.Query().Get("region"),
		Category: r.URL.Query().Get("category"),
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active := v == "true"
		filter.Active = &active
	}

	boards, err := h.boards.ListBoards(r.Context(), filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"boards": boards,
		"count":  len(boards),
	})
}

func (h *BoardHandler) upsertBoard(w http.ResponseWriter, r *http.Request) {
	var board models.JobBoard
	if !DecodeBody(w, r, &board) {
		return
	}
	if board.Engine == "" {
		board.Engine = models.EngineAuto
	}
	if err := h.validate.Struct(&board); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid board: "+err.Error())
		return
	}

	if err := h.boards.UpsertBoard(r.Context(), &board); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info().Str("board_id", board.ID).Msg("Board saved via API")
	WriteJSON(w, http.StatusOK, &board)
}

// BoardByIDHandler dispatches /api/boards/{id} plus the analyze and probe
// sub-resources.
func (h *BoardHandler) BoardByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/boards/")
	if rest == "" {
		WriteError(w, http.StatusNotFound, "board ID missing")
		return
	}

	if id, ok := strings.CutSuffix(rest, "/analyze"); ok {
		h.analyzeBoard(w, r, id)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/probe"); ok {
		h.probeBoard(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getBoard(w, r, rest)
	case http.MethodDelete:
		h.deleteBoard(w, r, rest)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *BoardHandler) getBoard(w http.ResponseWriter, r *http.Request, id string) {
	board, err := h.boards.GetBoard(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, board)
}

func (h *BoardHandler) deleteBoard(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.boards.DeleteBoard(r.Context(), id); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.Info().Str("board_id", id).Msg("Board deleted via API")
	WriteSuccess(w, "board deleted")
}

// analyzeBoard runs a forced advisor analysis and persists the outcome.
func (h *BoardHandler) analyzeBoard(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if h.advisor == nil {
		WriteError(w, http.StatusServiceUnavailable, "advisor is not configured")
		return
	}

	board, err := h.boards.GetBoard(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	sample := h.fetchSample(r, board)
	analysis, err := h.advisor.AnalyzeBoard(r.Context(), board.BaseURL, sample)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "analysis failed: "+err.Error())
		return
	}
	analysis.BoardID = board.ID

	if err := h.boards.UpdateBoardAnalysis(r.Context(), board.ID, analysis); err != nil {
		h.logger.Warn().Err(err).Str("board_id", board.ID).Msg("Failed to persist board analysis")
	}
	WriteJSON(w, http.StatusOK, analysis)
}

func (h *BoardHandler) fetchSample(r *http.Request, board *models.JobBoard) string {
	if h.client == nil {
		return ""
	}
	resp, err := h.client.Get(r.Context(), board.BaseURL, board.Headers)
	if err != nil {
		h.logger.Debug().Err(err).Str("board_id", board.ID).Msg("Sample fetch for analysis failed")
		return ""
	}

	limit := h.config.HTMLSampleBytes
	if limit <= 0 {
		limit = 8192
	}
	if len(resp.Body) > limit {
		return string(resp.Body[:limit])
	}
	return string(resp.Body)
}

// probeBoard checks reachability with the board's effective engine.
func (h *BoardHandler) probeBoard(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	board, err := h.boards.GetBoard(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	engineType := board.EffectiveEngine()
	engine, ok := h.engines[engineType]
	if !ok {
		WriteError(w, http.StatusServiceUnavailable, "no engine available for "+string(engineType))
		return
	}

	started := time.Now()
	reachable := engine.Probe(r.Context(), board.BaseURL)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"board_id":    board.ID,
		"engine":      string(engineType),
		"reachable":   reachable,
		"duration_ms": time.Since(started).Milliseconds(),
	})
}
