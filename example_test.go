package bdispatch_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/advdv/bdispatch"
	"github.com/advdv/bdispatch/route"
	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
)

func Example() {
	b := route.NewBuilder[bdispatch.Handler]()
	b.Path("items").Wild().Method(http.MethodGet).Named("get-item").Handle(
		bdispatch.HandlerFunc(func(_ context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
			w.Header().Set("Content-Type", "application/json")
			return json.NewEncoder(w).Encode(map[string]string{
				"id":   r.Capture(0),
				"name": "Example Item",
			})
		}))

	routes, _ := b.Routes()
	d, _ := bdispatch.New(routes)

	// Generate URL by route name
	url, _ := d.Reverse("get-item", "123")
	fmt.Println("URL:", url)

	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	fmt.Println("Status:", rec.Code)
	fmt.Print("Body: ", rec.Body.String())
	// Output:
	// URL: /items/123
	// Status: 200
	// Body: {"id":"42","name":"Example Item"}
}

func ExampleNewError() {
	b := route.NewBuilder[bdispatch.Handler]()
	b.Path("protected").Handle(bdispatch.HandlerFunc(func(_ context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
		token := r.Header("Authorization")
		if token == "" {
			return bdispatch.NewError(bdispatch.CodeUnauthorized, errors.New("missing token"))
		}
		if token != "Bearer secret" {
			return bdispatch.NewError(bdispatch.CodeForbidden, errors.New("invalid token"))
		}
		fmt.Fprint(w, "welcome")
		return nil
	}))

	routes, _ := b.Routes()
	d, _ := bdispatch.New(routes)

	for _, token := range []string{"", "Bearer wrong", "Bearer secret"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", token)
		d.ServeHTTP(rec, req)
		fmt.Println(rec.Code, strings.TrimSpace(rec.Body.String()))
	}
	// Output:
	// 401 Unauthorized: missing token
	// 403 Forbidden: invalid token
	// 200 welcome
}

func ExampleRequest_Body() {
	b := route.NewBuilder[bdispatch.Handler]()
	b.Path("signup").Method(http.MethodPost).Handle(bdispatch.HandlerFunc(func(ctx context.Context, w bdispatch.ResponseWriter, r *bdispatch.Request) error {
		body, err := r.Body(ctx)
		if err != nil {
			return err
		}

		email, ok := body.Field("email")
		if !ok {
			return bdispatch.Errorf(bdispatch.CodeUnprocessableEntity, "email is required")
		}

		fmt.Fprintf(w, "welcome %s", email)
		return nil
	}))

	routes, _ := b.Routes()
	d, _ := bdispatch.New(routes)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader("email=ann%40example.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	d.ServeHTTP(rec, req)

	fmt.Println(rec.Body.String())
	// Output:
	// welcome ann@example.com
}
