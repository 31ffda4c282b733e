package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-cart-reservation/internal/cart"
	"github.com/ariefcatur/go-cart-reservation/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CartHandler struct {
	Engine *cart.Engine
	Views  *cart.Views
	Log    *zap.Logger
}

type addToCartReq struct {
	UserID   string             `json:"user_id"`
	Products []cart.ItemRequest `json:"products"`
}

type addItemReq struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type userReq struct {
	UserID string `json:"user_id"`
}

type removeReq struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Post("/add_to_cart", h.addToCart)
		r.Post("/add_item", h.addItem)
		r.Get("/get_cart", h.getCart)
		r.Post("/remove_from_cart", h.removeFromCart)
		r.Post("/clear_cart", h.clearCart)
	})
}

func (h *CartHandler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartReq
	if err := decode(r, &req); err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	userID, err := parseID("user_id", req.UserID)
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	res, err := h.Engine.AddOrUpdateItems(r.Context(), userID, req.Products)
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	msg := "Items added to cart successfully."
	if !res.Changed {
		msg = "Cart unchanged."
	}
	h.respondWithCart(w, r, userID, res.Cart, http.StatusCreated, msg)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := decode(r, &req); err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	userID, err := parseID("user_id", req.UserID)
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	productID, err := parseID("product_id", req.ProductID)
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	res, err := h.Engine.AddItem(r.Context(), userID, cart.ItemRequest{ProductID: productID, Quantity: req.Quantity})
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	msg := "Item added to cart successfully."
	if !res.Changed {
		msg = "Item already in cart."
	}
	h.respondWithCart(w, r, userID, res.Cart, http.StatusCreated, msg)
}

// getCart takes user_id from the query string, or from a JSON body.
func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" && r.ContentLength > 0 {
		var req userReq
		if err := decode(r, &req); err != nil {
			writeError(h.Log, w, r, err)
			return
		}
		raw = req.UserID
	}
	userID, err := parseID("user_id", raw)
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	view, err := h.Views.Get(r.Context(), userID)
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Message: "Cart retrieved successfully.", Data: view})
}

func (h *CartHandler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	var req removeReq
	if err := decode(r, &req); err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	userID, err := parseID("user_id", req.UserID)
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	productID, err := parseID("product_id", req.ProductID)
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	res, err := h.Engine.RemoveItem(r.Context(), userID, productID)
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	h.respondWithCart(w, r, userID, res.Cart, http.StatusOK, "Item removed from cart successfully.")
}

func (h *CartHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	var req userReq
	if err := decode(r, &req); err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	userID, err := parseID("user_id", req.UserID)
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	res, err := h.Engine.ClearCart(r.Context(), userID)
	if err != nil {
		writeError(h.Log, w, r, err)
		return
	}
	h.respondWithCart(w, r, userID, res.Cart, http.StatusOK, "Cart cleared successfully.")
}

// cartRef is the fallback body when the committed cart cannot be rendered.
type cartRef struct {
	CartID *uuid.UUID `json:"cart_id"`
	UserID uuid.UUID  `json:"user_id"`
}

// respondWithCart renders the committed cart. The mutation already applied,
// so a failed render is logged and answered with the success code and the
// cart id only; the client must not retry.
func (h *CartHandler) respondWithCart(w http.ResponseWriter, r *http.Request, userID uuid.UUID, c store.Cart, code int, msg string) {
	view, err := h.Views.Refresh(r.Context(), userID)
	if err != nil {
		h.Log.Error("render cart after commit",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("user_id", userID.String()),
			zap.String("cart_id", c.ID.String()),
			zap.Error(err))
		ref := cartRef{UserID: userID}
		if c.ID != uuid.Nil {
			id := c.ID
			ref.CartID = &id
		}
		writeJSON(w, code, successBody{Message: msg, Data: ref})
		return
	}
	writeJSON(w, code, successBody{Message: msg, Data: view})
}
