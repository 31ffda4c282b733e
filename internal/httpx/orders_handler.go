package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-cart-reservation/internal/apperr"
	"github.com/ariefcatur/go-cart-reservation/internal/orders"
	"github.com/ariefcatur/go-cart-reservation/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	Orders *orders.Materializer
	Idem   *redisx.Idempotency
	Log    *zap.Logger
}

type placeOrderReq struct {
	ShippingAddress string `json:"shipping_address"`
	BillingAddress  string `json:"billing_address"`
}

type statusReq struct {
	Status string `json:"status"`
}

type orderLineView struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type orderView struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"order_number"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	CartID          *uuid.UUID      `json:"cart_id"`
	Status          string          `json:"order_status"`
	PaymentStatus   string          `json:"payment_status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress string          `json:"shipping_address"`
	BillingAddress  string          `json:"billing_address"`
	OrderDate       time.Time       `json:"order_date"`
	DeliveryDate    *time.Time      `json:"delivery_date"`
	Items           []orderLineView `json:"items,omitempty"`
}

func toOrderView(p orders.Placed) orderView {
	o := p.Order
	v := orderView{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		OrderDate:       o.OrderDate,
		DeliveryDate:    o.DeliveryDate,
	}
	if o.CartID.Valid {
		id := o.CartID.UUID
		v.CartID = &id
	}
	for _, l := range p.Lines {
		v.Items = append(v.Items, orderLineView{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			Price:       l.Price,
			LineTotal:   l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))),
		})
	}
	return v
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/place_order", h.placeOrder)
		r.Get("/{id}", h.getOrder)
		r.Post("/{id}/status", h.updateStatus)
	})
}

// placeOrder reads the caller from X-User-ID, set by the auth gateway. An
// Idempotency-Key header makes retries replay the first successful response.
func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID("X-User-ID header", r.Header.Get("X-User-ID"))
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	var req placeOrderReq
	if err := decode(r, &req); err != nil {
		writeError(h.Log, w, r, err)
		return
	}

	ctx := r.Context()
	idemKey := ""
	if k := r.Header.Get("Idempotency-Key"); k != "" && h.Idem != nil {
		key := redisx.PlaceOrderKey(userID.String(), k)
		stored, err := h.Idem.Claim(ctx, key)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeError(h.Log, w, r, apperr.Conflict("A request with this Idempotency-Key is still running.", err))
			return
		case err != nil:
			// Redis trouble: place the order without the replay guarantee.
			h.Log.Warn("idempotency claim", zap.String("user_id", userID.String()), zap.Error(err))
		case stored != nil:
			w.Header().Set("Idempotent-Replay", "true")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write(stored)
			return
		default:
			idemKey = key
		}
	}

	placed, err := h.Orders.PlaceForUser(ctx, userID, req.ShippingAddress, req.BillingAddress)
	if err != nil {
		if idemKey != "" {
			if rerr := h.Idem.Release(ctx, idemKey); rerr != nil {
				h.Log.Warn("idempotency release", zap.Error(rerr))
			}
		}
		writeError(h.Log, w, r, err)
		return
	}

	body, err := json.Marshal(successBody{Message: "Order placed successfully.", Data: toOrderView(placed)})
	if err != nil {
		writeError(h.Log, w, r, apperr.Internal(err))
		return
	}
	if idemKey != "" {
		if err := h.Idem.Store(ctx, idemKey, body); err != nil {
			h.Log.Warn("idempotency store", zap.Error(err))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("order id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	placed, err := h.Orders.Get(r.Context(), id)
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Message: "Order retrieved successfully.", Data: toOrderView(placed)})
}

// updateStatus identifies the caller like placeOrder does. The gateway marks
// fulfilment staff with X-User-Role: operator; everyone else may only cancel
// or return their own orders.
func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID("X-User-ID header", r.Header.Get("X-User-ID"))
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	id, err := parseID("order id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	var req statusReq
	if err := decode(r, &req); err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	to, ok := orders.ParseStatus(req.Status)
	if !ok {
		writeError(h.Log, w, r, apperr.Validationf("Unknown order status %q.", req.Status))
		return
	}
	actor := orders.Actor{UserID: userID, Operator: strings.EqualFold(r.Header.Get("X-User-Role"), "operator")}
	o, err := h.Orders.TransitionAs(r.Context(), actor, id, to)
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Message: "Order status updated.", Data: toOrderView(orders.Placed{Order: o})})
}
