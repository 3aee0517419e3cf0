package marketapi

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/twitchtv/twirp"

	"github.com/domino14/fpmm/pkg/fixed"
	"github.com/domino14/fpmm/pkg/fpmm"
)

type marketJSON struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Fee         float64   `json:"fee"`
	Balances    []string  `json:"balances"`
	Prices      []float64 `json:"prices"`
	LowerBound  string    `json:"lower_bound,omitempty"`
	UpperBound  string    `json:"upper_bound,omitempty"`
	IsOpen      bool      `json:"is_open"`
	DateCreated string    `json:"date_created"`
	DateClosed  string    `json:"date_closed,omitempty"`
}

type newMarketJSON struct {
	Description string   `json:"description"`
	Fee         float64  `json:"fee"`
	Balances    []string `json:"balances"`
	LowerBound  string   `json:"lower_bound"`
	UpperBound  string   `json:"upper_bound"`
}

type tradeRequestJSON struct {
	OutcomeIndex int    `json:"outcome_index"`
	Amount       string `json:"amount,omitempty"`
	// Units is the amount in whole tokens ("1.5"), for clients that do not
	// scale amounts themselves. Exactly one of Amount and Units is set.
	Units string `json:"units,omitempty"`
	// Minimum is the least a trade may return: shares for a buy, collateral
	// for a sale.
	Minimum string `json:"minimum,omitempty"`
}

func (req tradeRequestJSON) amount() (*big.Int, error) {
	switch {
	case req.Amount != "" && req.Units != "":
		return nil, twirp.InvalidArgumentError("units", "cannot be combined with amount")
	case req.Units != "":
		v, err := fixed.ParseUnits(req.Units, fixed.Decimals)
		if err != nil {
			return nil, twirp.InvalidArgumentError("units", err.Error())
		}
		return v, nil
	}
	return parseAmount("amount", req.Amount)
}

type netCostJSON struct {
	Cost string `json:"cost"`
}

type quoteJSON struct {
	Kind         string    `json:"kind"`
	OutcomeIndex int       `json:"outcome_index"`
	Collateral   string    `json:"collateral"`
	Shares       string    `json:"shares"`
	Balances     []string  `json:"balances"`
	Prices       []float64 `json:"prices"`
}

type tradeJSON struct {
	ID           string   `json:"id"`
	MarketID     string   `json:"market_id"`
	Kind         string   `json:"kind"`
	OutcomeIndex int      `json:"outcome_index"`
	Collateral   string   `json:"collateral"`
	Shares       string   `json:"shares"`
	Balances     []string `json:"balances,omitempty"`
	DateCreated  string   `json:"date_created"`
}

type predictionJSON struct {
	Price  float64 `json:"price"`
	Value  float64 `json:"value"`
	XValue float64 `json:"x_value"`
}

func amountStrings(xs []*big.Int) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = x.String()
	}
	return out
}

func amountString(x *big.Int) string {
	if x == nil {
		return ""
	}
	return x.String()
}

func toMarketJSON(m *Market) marketJSON {
	return marketJSON{
		ID:          m.ID,
		Description: m.Description,
		Fee:         m.Fee,
		Balances:    amountStrings(m.Balances),
		Prices:      fpmm.CalcPrice(m.Balances),
		LowerBound:  amountString(m.LowerBound),
		UpperBound:  amountString(m.UpperBound),
		IsOpen:      m.IsOpen,
		DateCreated: m.DateCreated,
		DateClosed:  m.DateClosed,
	}
}

func toTradeJSON(t *Trade) tradeJSON {
	return tradeJSON{
		ID:           t.ID,
		MarketID:     t.MarketID,
		Kind:         string(t.Kind),
		OutcomeIndex: t.OutcomeIndex,
		Collateral:   t.Collateral.String(),
		Shares:       t.Shares.String(),
		Balances:     amountStrings(t.Balances),
		DateCreated:  t.DateCreated,
	}
}

func parseAmount(field, s string) (*big.Int, error) {
	v, err := fixed.Parse(s)
	if err != nil {
		return nil, twirp.InvalidArgumentError(field, err.Error())
	}
	return v, nil
}

func parseOptionalAmount(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	return parseAmount(field, s)
}

func (j newMarketJSON) toNewMarket() (NewMarket, error) {
	nm := NewMarket{Description: j.Description, Fee: j.Fee}
	for _, b := range j.Balances {
		v, err := parseAmount("balances", b)
		if err != nil {
			return nm, err
		}
		nm.Balances = append(nm.Balances, v)
	}
	var err error
	if nm.LowerBound, err = parseOptionalAmount("lower_bound", j.LowerBound); err != nil {
		return nm, err
	}
	if nm.UpperBound, err = parseOptionalAmount("upper_bound", j.UpperBound); err != nil {
		return nm, err
	}
	return nm, nil
}

// twirpError turns a service error into the twirp error written to the
// client.
func twirpError(err error) twirp.Error {
	var terr twirp.Error
	switch {
	case errors.As(err, &terr):
		return terr
	case errors.Is(err, ErrMarketNotFound):
		return twirp.NewError(twirp.NotFound, err.Error())
	case errors.Is(err, ErrInvalidMarket), errors.Is(err, ErrInvalidTrade):
		return twirp.NewError(twirp.InvalidArgument, err.Error())
	case errors.Is(err, ErrClosedMarket), errors.Is(err, ErrNoQuote),
		errors.Is(err, ErrSlippage), errors.Is(err, ErrNotScalar),
		errors.Is(err, ErrNotBinary):
		return twirp.NewError(twirp.FailedPrecondition, err.Error())
	}
	return twirp.InternalErrorWith(err)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	terr := twirpError(err)
	if terr.Code() == twirp.Internal {
		log.Err(err).Str("path", r.URL.Path).Msg("internal-error")
	}
	if werr := twirp.WriteError(w, terr); werr != nil {
		log.Err(werr).Msg("write-error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("encode-response")
	}
}

// maxBodyBytes caps the size of request bodies.
const maxBodyBytes = 64 << 10

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return twirp.NewError(twirp.Malformed, err.Error())
	}
	return nil
}

type handler struct {
	svc *MarketService
}

// NewHandler serves the market API over JSON.
func NewHandler(svc *MarketService) http.Handler {
	h := &handler{svc: svc}
	r := mux.NewRouter()
	r.Use(logRequests)
	r.HandleFunc("/markets", h.createMarket).Methods(http.MethodPost)
	r.HandleFunc("/markets", h.openMarkets).Methods(http.MethodGet)
	r.HandleFunc("/markets/{id}", h.market).Methods(http.MethodGet)
	r.HandleFunc("/markets/{id}/trades", h.trades).Methods(http.MethodGet)
	r.HandleFunc("/markets/{id}/quote/buy", h.quote(Buy)).Methods(http.MethodPost)
	r.HandleFunc("/markets/{id}/quote/sell", h.quote(Sell)).Methods(http.MethodPost)
	r.HandleFunc("/markets/{id}/quote/lmsr", h.netCost).Methods(http.MethodPost)
	r.HandleFunc("/markets/{id}/buy", h.trade(Buy)).Methods(http.MethodPost)
	r.HandleFunc("/markets/{id}/sell", h.trade(Sell)).Methods(http.MethodPost)
	r.HandleFunc("/markets/{id}/prediction", h.prediction).Methods(http.MethodGet)
	r.HandleFunc("/markets/{id}/close", h.closeMarket).Methods(http.MethodPost)
	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).Msg("handled-request")
	})
}

func (h *handler) createMarket(w http.ResponseWriter, r *http.Request) {
	var req newMarketJSON
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	nm, err := req.toNewMarket()
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.svc.CreateMarket(r.Context(), nm)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMarketJSON(m))
}

func (h *handler) openMarkets(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.GetOpenMarkets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]marketJSON, len(ms))
	for i, m := range ms {
		out[i] = toMarketJSON(m)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) market(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.GetMarket(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketJSON(m))
}

func (h *handler) trades(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		if limit, err = strconv.Atoi(l); err != nil || limit < 0 {
			writeError(w, r, twirp.InvalidArgumentError("limit", "must be a non-negative integer"))
			return
		}
	}
	ts, err := h.svc.GetTrades(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]tradeJSON, len(ts))
	for i, t := range ts {
		out[i] = toTradeJSON(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) quote(kind TradeKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tradeRequestJSON
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		amount, err := req.amount()
		if err != nil {
			writeError(w, r, err)
			return
		}
		id := mux.Vars(r)["id"]
		var q *Quote
		if kind == Buy {
			q, err = h.svc.QuoteBuy(r.Context(), id, req.OutcomeIndex, amount)
		} else {
			q, err = h.svc.QuoteSell(r.Context(), id, req.OutcomeIndex, amount)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, quoteJSON{
			Kind:         string(q.Kind),
			OutcomeIndex: q.OutcomeIndex,
			Collateral:   q.Collateral.String(),
			Shares:       q.Shares.String(),
			Balances:     amountStrings(q.Balances),
			Prices:       q.Prices,
		})
	}
}

func (h *handler) trade(kind TradeKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tradeRequestJSON
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		amount, err := req.amount()
		if err != nil {
			writeError(w, r, err)
			return
		}
		minimum, err := parseOptionalAmount("minimum", req.Minimum)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id := mux.Vars(r)["id"]
		var t *Trade
		if kind == Buy {
			t, err = h.svc.Buy(r.Context(), id, req.OutcomeIndex, amount, minimum)
		} else {
			t, err = h.svc.Sell(r.Context(), id, req.OutcomeIndex, amount, minimum)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toTradeJSON(t))
	}
}

func (h *handler) netCost(w http.ResponseWriter, r *http.Request) {
	var req tradeRequestJSON
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := req.amount()
	if err != nil {
		writeError(w, r, err)
		return
	}
	cost, err := h.svc.EstimateNetCost(r.Context(), mux.Vars(r)["id"], req.OutcomeIndex, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, netCostJSON{Cost: cost.String()})
}

func (h *handler) prediction(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Prediction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, predictionJSON{Price: p.Price, Value: p.Value, XValue: p.XValue})
}

func (h *handler) closeMarket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.svc.CloseMarket(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.svc.GetMarket(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarketJSON(m))
}
