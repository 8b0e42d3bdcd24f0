package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tadawul/internal/common"
	"github.com/ternarybob/tadawul/internal/models"
	"github.com/ternarybob/tadawul/internal/services/market"
)

// ActionMarketStatus reports the trading session without touching any source.
const ActionMarketStatus = "market_status"

// marketQuery is the validated form of the /api query string.
type marketQuery struct {
	Action    string `validate:"required,oneof=market_overview stock_data indicators sector_data market_status"`
	Symbol    string `validate:"required_if=Action stock_data,max=32"`
	Symbols   string `validate:"max=2048"`
	Sector    string `validate:"required_if=Action sector_data,max=64"`
	StartDate string `validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `validate:"omitempty,datetime=2006-01-02"`
}

// MarketHandler serves GET /api?action=... for the dashboard.
type MarketHandler struct {
	service  MarketService
	validate *validator.Validate
	logger   arbor.ILogger
}

func NewMarketHandler(service MarketService, logger arbor.ILogger) *MarketHandler {
	return &MarketHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// ServeHTTP dispatches on the action query parameter.
func (h *MarketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	values := r.URL.Query()
	query := marketQuery{
		Action:    strings.ToLower(strings.TrimSpace(values.Get("action"))),
		Symbol:    strings.TrimSpace(values.Get("symbol")),
		Symbols:   strings.TrimSpace(values.Get("symbols")),
		Sector:    strings.TrimSpace(values.Get("sector")),
		StartDate: strings.TrimSpace(values.Get("start_date")),
		EndDate:   strings.TrimSpace(values.Get("end_date")),
	}
	if err := h.validate.Struct(query); err != nil {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, describeValidation(err))
		return
	}

	ctx := r.Context()
	var result *market.Result
	switch query.Action {
	case common.EndpointMarketOverview:
		var symbols []string
		if query.Symbols != "" {
			symbols = strings.Split(query.Symbols, ",")
		}
		result = h.service.MarketOverview(ctx, symbols)
	case common.EndpointStockData:
		result = h.service.StockData(ctx, query.Symbol)
	case common.EndpointIndicators:
		result = h.service.Indicators(ctx)
	case common.EndpointSectorData:
		result = h.service.SectorData(ctx, query.Sector, query.StartDate, query.EndDate)
	case ActionMarketStatus:
		WriteData(w, h.service.CurrentStatus(), false, false)
		return
	}

	h.writeResult(w, result)
}

func (h *MarketHandler) writeResult(w http.ResponseWriter, result *market.Result) {
	if result.Outcome != market.OutcomeFailure {
		WriteData(w, result.Payload, result.Partial, result.Cached)
		return
	}

	if market.IsRequestError(result.Err) {
		WriteError(w, http.StatusBadRequest, CodeBadRequest, result.Err.Error())
		return
	}
	if errors.Is(result.Err, market.ErrAllSourcesFailed) {
		omitted := result.Omitted
		if omitted == nil {
			omitted = []models.Omission{}
		}
		WriteErrorData(w, http.StatusOK, CodeUnavailable, "No data source is currently reachable", map[string]interface{}{
			"omitted": omitted,
		})
		return
	}

	h.logger.Error().Err(result.Err).Str("endpoint", result.Endpoint).Msg("Unexpected aggregation failure")
	WriteError(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
}

// describeValidation turns validator errors into a short client-facing message.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	field := map[string]string{
		"Action":    "action",
		"Symbol":    "symbol",
		"Symbols":   "symbols",
		"Sector":    "sector",
		"StartDate": "start_date",
		"EndDate":   "end_date",
	}[fe.Field()]

	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("missing required parameter: %s", field)
	case "oneof":
		return fmt.Sprintf("unknown action %q", fe.Value())
	case "datetime":
		return fmt.Sprintf("%s must be YYYY-MM-DD", field)
	default:
		return fmt.Sprintf("invalid parameter: %s", field)
	}
}
