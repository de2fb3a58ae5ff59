package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SaleFinalized is the payload of TopicSaleFinalized.
type SaleFinalized struct {
	SaleID     string          `json:"saleId"`
	OperatorID string          `json:"operatorId"`
	SellerID   string          `json:"sellerId"`
	CustomerID string          `json:"customerId"`
	TotalDue   decimal.Decimal `json:"totalDue"`
	TotalPaid  decimal.Decimal `json:"totalPaid"`
	Lines      int             `json:"lines"`
	Methods    []string        `json:"methods"`
}

// SaleAborted is the payload of TopicSaleAborted.
type SaleAborted struct {
	SaleID        string   `json:"saleId"`
	OperatorID    string   `json:"operatorId"`
	ReleasedUnits []string `json:"releasedUnits"`
}

// TradeInRequested is the payload of TopicTradeInRequested.
type TradeInRequested struct {
	SaleID       string `json:"saleId"`
	OperatorID   string `json:"operatorId"`
	PaymentIndex int    `json:"paymentIndex"`
}

// Handlers consumes event tasks in the worker. They are the hand-off point
// for receipt printing and the trade-in valuation flow.
type Handlers struct {
	Logger zerolog.Logger
}

// Register attaches a handler for every topic to mux.
func (h Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskType(TopicSaleFinalized), h.SaleFinalized)
	mux.HandleFunc(TaskType(TopicSaleAborted), h.SaleAborted)
	mux.HandleFunc(TaskType(TopicTradeInRequested), h.TradeInRequested)
}

// SaleFinalized logs the completed sale.
func (h Handlers) SaleFinalized(_ context.Context, task *asynq.Task) error {
	ev, payload, err := decodeAs[SaleFinalized](task)
	if err != nil {
		return err
	}
	h.Logger.Info().
		Str("event_id", ev.ID).
		Str("sale_id", payload.SaleID).
		Str("seller_id", payload.SellerID).
		Str("customer_id", payload.CustomerID).
		Str("total_due", payload.TotalDue.StringFixed(2)).
		Strs("methods", payload.Methods).
		Msg("sale finalized")
	return nil
}

// SaleAborted logs the cancelled sale.
func (h Handlers) SaleAborted(_ context.Context, task *asynq.Task) error {
	ev, payload, err := decodeAs[SaleAborted](task)
	if err != nil {
		return err
	}
	h.Logger.Info().
		Str("event_id", ev.ID).
		Str("sale_id", payload.SaleID).
		Int("released_units", len(payload.ReleasedUnits)).
		Msg("sale aborted")
	return nil
}

// TradeInRequested logs the valuation request.
func (h Handlers) TradeInRequested(_ context.Context, task *asynq.Task) error {
	ev, payload, err := decodeAs[TradeInRequested](task)
	if err != nil {
		return err
	}
	h.Logger.Info().
		Str("event_id", ev.ID).
		Str("sale_id", payload.SaleID).
		Int("payment_index", payload.PaymentIndex).
		Msg("trade-in valuation requested")
	return nil
}

// decodeAs fails permanently on malformed payloads since retrying cannot fix them.
func decodeAs[T any](task *asynq.Task) (Event, T, error) {
	var payload T
	ev, err := Decode(task)
	if err != nil {
		return Event{}, payload, fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return ev, payload, fmt.Errorf("%w: decode %s payload: %v", asynq.SkipRetry, ev.Topic, err)
	}
	return ev, payload, nil
}
