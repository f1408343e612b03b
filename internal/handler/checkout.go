package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/papegu/senegal-livres/internal/model"
	"github.com/papegu/senegal-livres/internal/service"
)

// CheckoutHandler starts payments.  The route runs behind OptionalJWT so
// both signed-in buyers and guests can check out.
type CheckoutHandler struct {
	Checkout *service.Checkout
}

type checkoutBody struct {
	PaymentMethod string   `json:"payment_method"`
	BookIDs       []string `json:"book_ids"`
	Amount        int64    `json:"amount"`
	Description   string   `json:"description"`
	CustomerEmail string   `json:"customer_email"`
	CustomerPhone string   `json:"customer_phone"`
}

// Create handles POST /v1/checkout and answers 201 with the provider
// redirect URL and the order id.
func (h *CheckoutHandler) Create(c echo.Context) error {
	var body checkoutBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Amount < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be positive"})
	}
	req := service.CheckoutRequest{
		PaymentMethod: model.PaymentMethod(body.PaymentMethod),
		BookIDs:       body.BookIDs,
		Amount:        body.Amount,
		Description:   body.Description,
		CustomerEmail: body.CustomerEmail,
		CustomerPhone: body.CustomerPhone,
	}
	if uid, ok := currentUserID(c); ok {
		req.UserID = &uid
	}
	res, err := h.Checkout.Initiate(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}
