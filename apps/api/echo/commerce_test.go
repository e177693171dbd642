package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/skolar/core"
	"github.com/trezcool/skolar/core/catalog"
	"github.com/trezcool/skolar/core/commerce"
	"github.com/trezcool/skolar/core/notification"
	"github.com/trezcool/skolar/core/user"
	"github.com/trezcool/skolar/services/email"
	"github.com/trezcool/skolar/services/payment"
	"github.com/trezcool/skolar/services/ratelimit"
	"github.com/trezcool/skolar/tests"
)

func Test_commerceApi_cart(t *testing.T) {
	stack.Reset()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	student := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)
	goCourse := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Go", 100)
	rustCourse := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Rust", 50)
	owned := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Owned", 10)
	testutil.Enroll(t, stack.CatalogSvc, owned.ID, student.ID)
	token := getToken(t, student)

	runHTTPTests(t, []httpTest{
		{name: "auth required", path: "/v1/cart", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, missingTokenErr)},
		{name: "empty", path: "/v1/cart", token: token, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{
			name: "add", method: http.MethodPost, path: "/v1/cart/" + goCourse.ID, token: token,
			wantCode: http.StatusCreated, wantData: marshallObj(t, MessageResponse{Message: "Course added to cart"}),
		},
		{
			name: "add again", method: http.MethodPost, path: "/v1/cart/" + goCourse.ID, token: token,
			wantCode: http.StatusOK, wantData: marshallObj(t, MessageResponse{Message: "Course already in cart"}),
		},
		{name: "add another", method: http.MethodPost, path: "/v1/cart/" + rustCourse.ID, token: token, wantCode: http.StatusCreated},
		{
			name: "unknown course", method: http.MethodPost, path: "/v1/cart/" + uuid.New().String(), token: token,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "course not found"}),
		},
		{
			name: "owned course", method: http.MethodPost, path: "/v1/cart/" + owned.ID, token: token,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"course_id": "you already own this course"}`),
		},
		{name: "list", path: "/v1/cart", token: token, wantCode: http.StatusOK, wantData: marshallObj(t, []catalog.Course{rustCourse, goCourse})},
		{name: "contains", path: "/v1/cart/" + goCourse.ID, token: token, wantCode: http.StatusOK, wantData: marshallObj(t, ContainsResponse{Contains: true})},
		{name: "remove", method: http.MethodDelete, path: "/v1/cart/" + goCourse.ID, token: token, wantCode: http.StatusNoContent},
		{name: "remove again", method: http.MethodDelete, path: "/v1/cart/" + goCourse.ID, token: token, wantCode: http.StatusNotFound},
		{name: "not contained", path: "/v1/cart/" + goCourse.ID, token: token, wantCode: http.StatusOK, wantData: marshallObj(t, ContainsResponse{Contains: false})},
		{name: "clear", method: http.MethodDelete, path: "/v1/cart", token: token, wantCode: http.StatusOK, wantData: marshallObj(t, CountResponse{Count: 1})},
	})
}

func Test_commerceApi_wishlist(t *testing.T) {
	stack.Reset()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	student := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)
	c := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Go", 100)
	token := getToken(t, student)

	runHTTPTests(t, []httpTest{
		{
			name: "add", method: http.MethodPost, path: "/v1/wishlist/" + c.ID, token: token,
			wantCode: http.StatusCreated, wantData: marshallObj(t, MessageResponse{Message: "Course added to wishlist"}),
		},
		{
			name: "add again", method: http.MethodPost, path: "/v1/wishlist/" + c.ID, token: token,
			wantCode: http.StatusOK, wantData: marshallObj(t, MessageResponse{Message: "Course already in wishlist"}),
		},
		{name: "list", path: "/v1/wishlist", token: token, wantCode: http.StatusOK, wantData: marshallObj(t, []catalog.Course{c})},
		{name: "contains", path: "/v1/wishlist/" + c.ID, token: token, wantCode: http.StatusOK, wantData: marshallObj(t, ContainsResponse{Contains: true})},
		{name: "remove", method: http.MethodDelete, path: "/v1/wishlist/" + c.ID, token: token, wantCode: http.StatusNoContent},
		{name: "remove again", method: http.MethodDelete, path: "/v1/wishlist/" + c.ID, token: token, wantCode: http.StatusNotFound},
	})
}

func Test_commerceApi_checkout(t *testing.T) {
	stack.Reset()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	student := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)
	stranger := testutil.CreateUser(t, stack.UserRepo, "Bob", "bob@test.cd", user.RoleStudent)
	c := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Go", 990)
	token := getToken(t, student)
	ctx := context.Background()

	_, err := stack.CommerceSvc.AddToCart(ctx, student.ID, c.ID)
	require.NoError(t, err)

	t.Run("no price registered", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/checkout/session", token, marshallObj(t, commerce.CheckoutRequest{CourseID: c.ID}))
		serve(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("only editors register products", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+c.ID+"/product", token)
		serve(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+c.ID+"/product", getToken(t, teacher))
	serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var product ProductResponse
	unmarshall(t, rec, &product)
	assert.NotEmpty(t, product.ProductID)
	assert.NotEmpty(t, product.PriceID)

	req, rec = newAuthRequest(http.MethodPost, "/v1/checkout/session", token, marshallObj(t, commerce.CheckoutRequest{CourseID: c.ID}))
	serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var checkout commerce.CheckoutResult
	unmarshall(t, rec, &checkout)
	require.NotEmpty(t, checkout.SessionID)
	assert.NotEmpty(t, checkout.URL)

	verify := func(t *testing.T) commerce.VerifyResult {
		req, rec := newAuthRequest(http.MethodPost, "/v1/checkout/verify", token, marshallObj(t, commerce.VerifyRequest{SessionID: checkout.SessionID}))
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res commerce.VerifyResult
		unmarshall(t, rec, &res)
		return res
	}

	t.Run("unpaid", func(t *testing.T) {
		res := verify(t)
		assert.False(t, res.Verified)
		assert.Nil(t, res.Purchase)
		enrolled, err := stack.CatalogSvc.IsEnrolled(ctx, c.ID, student.ID)
		require.NoError(t, err)
		assert.False(t, enrolled)
	})

	emailsvc.ResetSentMessages()
	_, ok := stack.Gateway.PaySession(checkout.SessionID)
	require.True(t, ok)

	var purchase commerce.Purchase
	t.Run("paid", func(t *testing.T) {
		res := verify(t)
		require.True(t, res.Verified)
		require.NotNil(t, res.Purchase)
		purchase = *res.Purchase
		assert.Equal(t, student.ID, purchase.UserID)
		assert.Equal(t, c.ID, purchase.CourseID)
		assert.Equal(t, 990.0, purchase.Price)
		assert.Equal(t, "Learn Go", purchase.CourseTitle)

		enrolled, err := stack.CatalogSvc.IsEnrolled(ctx, c.ID, student.ID)
		require.NoError(t, err)
		assert.True(t, enrolled)
		inCart, err := stack.CommerceSvc.IsInCart(ctx, student.ID, c.ID)
		require.NoError(t, err)
		assert.False(t, inCart)
		assert.Len(t, emailsvc.LastSentMessages(), 1)
	})

	t.Run("verify is idempotent", func(t *testing.T) {
		res := verify(t)
		require.True(t, res.Verified)
		require.NotNil(t, res.Purchase)
		assert.Equal(t, purchase.ID, res.Purchase.ID)
		assert.Len(t, emailsvc.LastSentMessages(), 1, "the receipt is sent once")

		page, err := stack.CommerceSvc.ListPurchases(ctx, student.ID, core.NewPage(1, commerce.DefaultPageLimit, commerce.DefaultPageLimit))
		require.NoError(t, err)
		assert.Equal(t, 1, page.Pagination.TotalItems)
		notes, err := stack.NotificationSvc.List(ctx, student.ID, core.NewPage(1, notification.DefaultPageLimit, notification.DefaultPageLimit))
		require.NoError(t, err)
		assert.Equal(t, 1, notes.Pagination.TotalItems)
	})

	t.Run("purchases", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/purchases", token)
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var page commerce.PurchasePage
		unmarshall(t, rec, &page)
		require.Len(t, page.Purchases, 1)
		assert.Equal(t, purchase.ID, page.Purchases[0].ID)
		assert.Equal(t, 1, page.Pagination.CurrentPage)
		assert.Equal(t, 1, page.Pagination.TotalPages)
	})

	runHTTPTests(t, []httpTest{
		{
			name: "invoice", method: http.MethodPost, path: "/v1/purchases/invoice", token: token,
			body: marshallObj(t, commerce.InvoiceRequest{PurchaseID: purchase.ID}), wantCode: http.StatusOK,
			wantData: marshallObj(t, InvoiceResponse{InvoiceURL: "https://invoice.test/in_" + checkout.SessionID}),
		},
		{
			name: "invoice of another user", method: http.MethodPost, path: "/v1/purchases/invoice", token: getToken(t, stranger),
			body: marshallObj(t, commerce.InvoiceRequest{PurchaseID: purchase.ID}), wantCode: http.StatusForbidden,
			wantData: marshallObj(t, forbiddenErr),
		},
		{
			name: "invoice without id", method: http.MethodPost, path: "/v1/purchases/invoice", token: token,
			body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "Purchase ID is required"}),
		},
		{
			name: "unknown purchase", method: http.MethodPost, path: "/v1/purchases/invoice", token: token,
			body: marshallObj(t, commerce.InvoiceRequest{PurchaseID: uuid.New().String()}), wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: "Could not find purchase record"}),
		},
		{
			name: "owned course cannot be bought again", method: http.MethodPost, path: "/v1/checkout/session", token: token,
			body: marshallObj(t, commerce.CheckoutRequest{CourseID: c.ID}), wantCode: http.StatusBadRequest,
		},
	})
}

func Test_commerceApi_stripeWebhook(t *testing.T) {
	stack.Reset()
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	student := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)
	c := testutil.CreateCourse(t, stack.CatalogSvc, teacher, "Learn Go", 100)

	sessionID := "cs_webhook_" + uuid.New().String()
	stack.Gateway.SeedSession(commerce.CheckoutSession{
		ID:            sessionID,
		PaymentStatus: commerce.PaymentStatusPaid,
		AmountTotal:   10000,
		Metadata:      map[string]string{"courseId": c.ID, "userId": student.ID, "courseTitle": c.Title},
	})
	payload := []byte(`{"id": "evt_1", "type": "checkout.session.completed", "session_id": "` + sessionID + `"}`)

	send := func(signature string, body []byte) *httpRecorder {
		req, rec := newRequest(http.MethodPost, "/v1/webhooks/stripe", body)
		if signature != "" {
			req.Header.Set(stripeSignatureHeader, signature)
		}
		return serve(req, rec)
	}

	rec := send("bad", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(paymentsvc.FakeWebhookSignature, []byte(`{"id": "evt_0", "type": "customer.created"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	ok, err := jsonBytesEqual(rec.Body.Bytes(), marshallObj(t, WebhookResponse{Received: true, Type: "customer.created"}))
	require.NoError(t, err)
	assert.True(t, ok, rec.Body.String())

	for i := 0; i < 2; i++ {
		rec = send(paymentsvc.FakeWebhookSignature, payload)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	enrolled, err := stack.CatalogSvc.IsEnrolled(context.Background(), c.ID, student.ID)
	require.NoError(t, err)
	assert.True(t, enrolled)
	page, err := stack.CommerceSvc.ListPurchases(context.Background(), student.ID, core.NewPage(1, commerce.DefaultPageLimit, commerce.DefaultPageLimit))
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.TotalItems)
}

func Test_rateLimitMiddleware(t *testing.T) {
	stack.Reset()
	student := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)
	limited := newTestServer(ratelimit.NewMemoryLimiter(2, time.Minute))
	body := marshallObj(t, commerce.VerifyRequest{SessionID: "cs_unknown"})

	codes := make([]int, 0, 3)
	var last *httpRecorder
	for i := 0; i < 3; i++ {
		req, rec := newAuthRequest(http.MethodPost, "/v1/checkout/verify", getToken(t, student), body)
		limited.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		last = rec
	}
	assert.NotEqual(t, http.StatusTooManyRequests, codes[0])
	assert.NotEqual(t, http.StatusTooManyRequests, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}
