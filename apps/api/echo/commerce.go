package echoapi

import (
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/commerce"
	"github.com/trezcool/skolar/core/user"
)

const stripeSignatureHeader = "Stripe-Signature"

type commerceApi struct {
	usrSvc   *user.Service
	svc      *commerce.Service
	validate *validator.Validate
}

func registerCommerceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := commerceApi{
		usrSvc:   deps.UserSvc,
		svc:      deps.CommerceSvc,
		validate: deps.Validate,
	}
	limit := func(name string) echo.MiddlewareFunc {
		return rateLimitMiddleware(deps.Limiter, name, deps.Logger)
	}

	cart := g.Group("/cart", jwt)
	cart.GET("", api.queryCart)
	cart.DELETE("", api.clearCart)
	cart.GET("/:courseId", api.cartContains)
	cart.POST("/:courseId", api.addToCart)
	cart.DELETE("/:courseId", api.removeFromCart)

	wl := g.Group("/wishlist", jwt)
	wl.GET("", api.queryWishlist)
	wl.GET("/:courseId", api.wishlistContains)
	wl.POST("/:courseId", api.addToWishlist)
	wl.DELETE("/:courseId", api.removeFromWishlist)

	co := g.Group("/checkout", jwt)
	co.POST("/session", api.createCheckoutSession, limit("checkout"))
	co.POST("/verify", api.verifyPayment, limit("verify"))

	g.POST("/webhooks/stripe", api.stripeWebhook, limit("stripe-webhook"))

	pg := g.Group("/purchases", jwt)
	pg.GET("", api.queryPurchases)
	pg.POST("/invoice", api.invoiceURL)

	g.POST("/courses/:courseId/product", api.registerProduct,
		jwt, courseMiddleware(deps.UserSvc, deps.CatalogSvc, catalog.CanEdit))
}

// Cart

func (api *commerceApi) queryCart(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	courses, err := api.svc.ListCart(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing cart")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *commerceApi) cartContains(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ok, err := api.svc.IsInCart(ctx.Request().Context(), usr.ID, ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "checking cart")
	}
	return ctx.JSON(http.StatusOK, ContainsResponse{Contains: ok})
}

func (api *commerceApi) addToCart(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	added, err := api.svc.AddToCart(ctx.Request().Context(), usr.ID, ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "adding to cart")
	}
	if !added {
		return ctx.JSON(http.StatusOK, MessageResponse{Message: "Course already in cart"})
	}
	return ctx.JSON(http.StatusCreated, MessageResponse{Message: "Course added to cart"})
}

func (api *commerceApi) removeFromCart(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	removed, err := api.svc.RemoveFromCart(ctx.Request().Context(), usr.ID, ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "removing from cart")
	}
	if !removed {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *commerceApi) clearCart(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	n, err := api.svc.ClearCart(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "clearing cart")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

// Wishlist

func (api *commerceApi) queryWishlist(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	courses, err := api.svc.ListWishlist(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing wishlist")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *commerceApi) wishlistContains(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ok, err := api.svc.IsInWishlist(ctx.Request().Context(), usr.ID, ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "checking wishlist")
	}
	return ctx.JSON(http.StatusOK, ContainsResponse{Contains: ok})
}

func (api *commerceApi) addToWishlist(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	added, err := api.svc.AddToWishlist(ctx.Request().Context(), usr.ID, ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "adding to wishlist")
	}
	if !added {
		return ctx.JSON(http.StatusOK, MessageResponse{Message: "Course already in wishlist"})
	}
	return ctx.JSON(http.StatusCreated, MessageResponse{Message: "Course added to wishlist"})
}

func (api *commerceApi) removeFromWishlist(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	removed, err := api.svc.RemoveFromWishlist(ctx.Request().Context(), usr.ID, ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "removing from wishlist")
	}
	if !removed {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Checkout

func (api *commerceApi) createCheckoutSession(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data commerce.CheckoutRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckoutRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.CreateCheckoutSession(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating checkout session")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *commerceApi) verifyPayment(ctx echo.Context) error {
	var data commerce.VerifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.VerifyPayment(ctx.Request().Context(), data.SessionID)
	if err != nil {
		return errors.Wrap(err, "verifying payment")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *commerceApi) stripeWebhook(ctx echo.Context) error {
	payload, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading webhook payload")
	}
	evt, err := api.svc.HandleWebhookEvent(ctx.Request().Context(), payload, ctx.Request().Header.Get(stripeSignatureHeader))
	if err != nil {
		return errors.Wrap(err, "handling stripe webhook")
	}
	return ctx.JSON(http.StatusOK, WebhookResponse{Received: true, Type: evt.Type})
}

func (api *commerceApi) registerProduct(ctx echo.Context) error {
	c, err := getContextCourse(ctx)
	if err != nil {
		return err
	}
	productID, priceID, err := api.svc.RegisterProduct(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "registering product")
	}
	return ctx.JSON(http.StatusOK, ProductResponse{ProductID: productID, PriceID: priceID})
}

// Purchases

func (api *commerceApi) queryPurchases(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	page := bindPage(ctx, commerce.DefaultPageLimit)
	res, err := api.svc.ListPurchases(ctx.Request().Context(), usr.ID, page)
	if err != nil {
		return errors.Wrap(err, "listing purchases")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *commerceApi) invoiceURL(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data commerce.InvoiceRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to InvoiceRequest")
	}

	u, err := api.svc.InvoiceURL(ctx.Request().Context(), usr.ID, data.PurchaseID)
	if err != nil {
		return errors.Wrap(err, "getting invoice url")
	}
	return ctx.JSON(http.StatusOK, InvoiceResponse{InvoiceURL: u})
}

type (
	ContainsResponse struct {
		Contains bool `json:"contains"`
	}

	InvoiceResponse struct {
		InvoiceURL string `json:"invoiceUrl"`
	}

	ProductResponse struct {
		ProductID string `json:"productId"`
		PriceID   string `json:"priceId"`
	}

	WebhookResponse struct {
		Received bool   `json:"received"`
		Type     string `json:"type,omitempty"`
	}
)
