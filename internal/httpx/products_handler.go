package httpx

import (
	"errors"
	"net/http"

	"github.com/ariefcatur/go-cart-reservation/internal/apperr"
	"github.com/ariefcatur/go-cart-reservation/internal/cart"
	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ProductsHandler struct {
	Store store.Reader
	Log   *zap.Logger
}

type reservationView struct {
	UserID   uuid.UUID `json:"user_id"`
	CartID   uuid.UUID `json:"cart_id"`
	Quantity int       `json:"quantity"`
}

// StockReportView compares what is on the shelf with what carts hold.
type StockReportView struct {
	ProductID       uuid.UUID         `json:"product_id"`
	Name            string            `json:"name"`
	Stock           int               `json:"stock"`
	ReservedInCarts int               `json:"reserved_in_carts"`
	TotalStock      int               `json:"total_stock"`
	Reservations    []reservationView `json:"reservations"`
}

func NewStockReportView(rep store.StockReport) StockReportView {
	v := StockReportView{
		ProductID:       rep.Product.ID,
		Name:            rep.Product.Name,
		Stock:           rep.Product.Stock,
		ReservedInCarts: rep.Reserved,
		TotalStock:      rep.TotalStock(),
		Reservations:    make([]reservationView, 0, len(rep.Reservations)),
	}
	for _, res := range rep.Reservations {
		v.Reservations = append(v.Reservations, reservationView{UserID: res.UserID, CartID: res.CartID, Quantity: res.Quantity})
	}
	return v
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products/{id}/stock", h.stockReport)
}

func (h *ProductsHandler) stockReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseID("product id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	rep, err := h.Store.StockReport(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(h.Log, w, r, apperr.NotFoundf("Product with ID %s not found.", id))
		return
	}
	if err != nil {
		writeError(h.Log, w, r, cart.Classify(err))
		return
	}
	writeJSON(w, http.StatusOK, successBody{Message: "Stock report.", Data: NewStockReportView(rep)})
}
