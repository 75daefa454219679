package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rl1809/storefront-cart/internal/adapter/notify"
	"github.com/rl1809/storefront-cart/internal/core/domain"
	"github.com/rl1809/storefront-cart/internal/core/service"
)

const defaultNoticeLimit = 20

type HTTPHandler struct {
	cartService *service.CartService
	feed        *notify.Feed
}

type AddProductHTTPRequest struct {
	ProductID int `json:"product_id"`
}

type UpdateAmountHTTPRequest struct {
	Amount int `json:"amount"`
}

type CartHTTPResponse struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message"`
	Failure     string      `json:"failure,omitempty"`
	Cart        domain.Cart `json:"cart"`
	TotalAmount int         `json:"total_amount"`
	Subtotal    float64     `json:"subtotal"`
}

func NewHTTPHandler(cartService *service.CartService, feed *notify.Feed) *HTTPHandler {
	return &HTTPHandler{cartService: cartService, feed: feed}
}

// Register mounts the cart API on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart/products", h.AddProduct)
	mux.HandleFunc("PUT /api/cart/products/{id}", h.UpdateProductAmount)
	mux.HandleFunc("DELETE /api/cart/products/{id}", h.RemoveProduct)
	mux.HandleFunc("GET /api/notices", h.Notices)
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeCart(w, h.cartService.Cart(), nil)
}

func (h *HTTPHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req AddProductHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ProductID <= 0 {
		writeBadRequest(w, "missing required fields")
		return
	}

	cart, err := h.cartService.AddProduct(r.Context(), req.ProductID)
	writeCart(w, cart, err)
}

func (h *HTTPHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeBadRequest(w, "invalid product id")
		return
	}

	cart, err := h.cartService.RemoveProduct(r.Context(), productID)
	writeCart(w, cart, err)
}

func (h *HTTPHandler) UpdateProductAmount(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeBadRequest(w, "invalid product id")
		return
	}

	var req UpdateAmountHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	cart, err := h.cartService.UpdateProductAmount(r.Context(), service.UpdateProductAmount{
		ProductID: productID,
		Amount:    req.Amount,
	})
	writeCart(w, cart, err)
}

func (h *HTTPHandler) Notices(w http.ResponseWriter, r *http.Request) {
	limit := defaultNoticeLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeBadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	notices := []domain.Notice{}
	if h.feed != nil {
		notices = h.feed.Recent(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{"notices": notices})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeCart(w http.ResponseWriter, cart domain.Cart, err error) {
	if cart == nil {
		cart = domain.Cart{}
	}
	resp := CartHTTPResponse{
		Success:     err == nil,
		Message:     "ok",
		Cart:        cart,
		TotalAmount: cart.TotalAmount(),
		Subtotal:    cart.Subtotal(),
	}

	status := http.StatusOK
	if err != nil {
		kind := service.Classify(err)
		resp.Failure = kind.String()
		resp.Message = failureMessage(err)

		switch kind {
		case service.FailureBusinessRule:
			status = http.StatusConflict
		case service.FailureNotFound:
			status = http.StatusNotFound
		default:
			status = http.StatusBadGateway
		}
	}

	writeJSON(w, status, resp)
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrInsufficientStock):
		return "requested quantity out of stock"
	case errors.Is(err, service.ErrProductNotInCart):
		return "product not in cart"
	case errors.Is(err, service.ErrAddFailed):
		return "failed to add product"
	case errors.Is(err, service.ErrRemoveFailed):
		return "failed to remove product"
	case errors.Is(err, service.ErrUpdateFailed):
		return "failed to update product amount"
	default:
		return "internal error"
	}
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, CartHTTPResponse{
		Success: false,
		Message: message,
		Cart:    domain.Cart{},
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
