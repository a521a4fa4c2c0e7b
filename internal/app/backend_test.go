package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const testToken = "tok-123"

// fakeBackend はテスト用のバックエンドAPI。
type fakeBackend struct {
	mu        sync.Mutex
	cartItems []map[string]any
	addBodies []map[string]any
	orders    int
	expired   bool
	requests  []string

	productForms []map[string][]string
	imageNames   []string
	jsonBodies   map[string]map[string]any
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{jsonBodies: map[string]map[string]any{}}
	srv := httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(srv.Close)
	return fb, srv
}

func (fb *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.requests = append(fb.requests, r.Method+" "+r.URL.Path)

	if r.URL.Path == "/auth/login/" {
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "secret" {
			writeTestJSON(w, http.StatusBadRequest, map[string]any{"non_field_errors": []string{"Invalid credentials"}})
			return
		}
		userType := "customer"
		if creds["email"] == "staff@example.com" {
			userType = "staff"
		}
		writeTestJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"token":     testToken,
			"user_type": userType,
			"user": map[string]any{
				"id": 7, "email": creds["email"], "username": "alice",
				"first_name": "Alice", "last_name": "Guest",
			},
			"expires_in": 3600,
		})
		return
	}

	public := r.URL.Path == "/rooms/" || (r.Method == http.MethodGet &&
		(strings.HasPrefix(r.URL.Path, "/products/") || strings.HasPrefix(r.URL.Path, "/categories/")))
	if !public && (fb.expired || r.Header.Get("Authorization") != "Token "+testToken) {
		writeTestJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
		return
	}

	switch {
	case r.URL.Path == "/auth/logout/":
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/cart/" && r.Method == http.MethodGet:
		writeTestJSON(w, http.StatusOK, map[string]any{
			"id":           1,
			"cart_items":   fb.cartItems,
			"total_amount": "1200.00",
			"total_items":  len(fb.cartItems),
		})
	case r.URL.Path == "/cart/items/" && r.Method == http.MethodPost:
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		fb.addBodies = append(fb.addBodies, body)
		fb.cartItems = append(fb.cartItems, map[string]any{
			"id": 100 + len(fb.cartItems), "quantity": body["quantity"], "subtotal": "1200.00",
			"product": map[string]any{"id": body["product_id"], "name": "Coffee"},
		})
		writeTestJSON(w, http.StatusCreated, map[string]any{})
	case r.URL.Path == "/orders/" && r.Method == http.MethodPost:
		fb.orders++
		fb.cartItems = nil
		writeTestJSON(w, http.StatusCreated, map[string]any{
			"id": 42, "order_number": "ORD-42", "status": "pending", "total_amount": "1200.00",
		})
	case r.URL.Path == "/products/" && r.Method == http.MethodPost:
		form := fb.readProductForm(r)
		writeTestJSON(w, http.StatusCreated, map[string]any{
			"id": 3, "name": first(form, "name"), "product_code": "P003", "price": first(form, "price"),
		})
	case r.URL.Path == "/products/1/" && r.Method == http.MethodGet:
		writeTestJSON(w, http.StatusOK, map[string]any{
			"id": 1, "name": "Coffee", "product_code": "P001", "description": "Drip coffee", "price": "1200.00",
			"cost": "800.00", "quantity": 5, "is_active": true, "categories": []int{1},
		})
	case r.URL.Path == "/products/1/" && r.Method == http.MethodPut:
		form := fb.readProductForm(r)
		writeTestJSON(w, http.StatusOK, map[string]any{"id": 1, "name": first(form, "name")})
	case r.URL.Path == "/products/1/" && r.Method == http.MethodPatch:
		form := fb.readProductForm(r)
		added, _ := strconv.Atoi(first(form, "replenish_quantity"))
		writeTestJSON(w, http.StatusOK, map[string]any{"id": 1, "name": "Coffee", "quantity": 5 + added})
	case r.URL.Path == "/categories/" && r.Method == http.MethodPost,
		r.URL.Path == "/categories/1/" && r.Method == http.MethodPut,
		r.URL.Path == "/feedback/5/" && r.Method == http.MethodPut:
		resp := map[string]any{"id": 1}
		if r.Method == http.MethodPost {
			resp["id"] = 2
		}
		if strings.HasPrefix(r.URL.Path, "/feedback/") {
			resp["id"] = 5
		}
		for k, v := range fb.readJSON(r) {
			resp[k] = v
		}
		writeTestJSON(w, http.StatusOK, resp)
	case r.URL.Path == "/categories/1/" && r.Method == http.MethodGet:
		writeTestJSON(w, http.StatusOK, map[string]any{"id": 1, "name": "Drinks", "description": "Hot and cold"})
	case r.Method == http.MethodDelete && (r.URL.Path == "/products/1/" || r.URL.Path == "/categories/1/" || r.URL.Path == "/feedback/5/"):
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/admin/orders/":
		writeTestJSON(w, http.StatusOK, []map[string]any{
			{"id": 42, "order_number": "ORD-42", "status": "P", "status_display": "Pending", "total_amount": "1200.00"},
			{"id": 43, "order_number": "ORD-43", "status": "D", "status_display": "Delivered", "total_amount": "900.00"},
		})
	case r.URL.Path == "/orders/42/status/" && r.Method == http.MethodPatch:
		body := fb.readJSON(r)
		writeTestJSON(w, http.StatusOK, map[string]any{
			"id": 42, "order_number": "ORD-42", "status": body["status"], "status_display": "Shipped", "total_amount": "1200.00",
		})
	case r.URL.Path == "/admin/feedback/":
		writeTestJSON(w, http.StatusOK, []map[string]any{
			{"id": 5, "full_name": "Bob Guest", "message": "Great stay", "created_at": "2026-10-01T09:00:00Z"},
		})
	case r.URL.Path == "/products/":
		writeTestJSON(w, http.StatusOK, []map[string]any{
			{"id": 1, "name": "Coffee", "product_code": "P001", "price": "1200.00", "cost": "800.00",
				"quantity": 5, "is_active": true, "categories": []int{1}, "created_at": "2026-01-10T09:00:00Z"},
			{"id": 2, "name": "Tea", "product_code": "P002", "price": "900.00", "cost": "400.00",
				"quantity": 0, "is_active": true, "categories": []int{1}, "created_at": "2026-02-10T09:00:00Z"},
		})
	case r.URL.Path == "/categories/":
		writeTestJSON(w, http.StatusOK, []map[string]any{{"id": 1, "name": "Drinks"}})
	case r.URL.Path == "/rooms/":
		writeTestJSON(w, http.StatusOK, []map[string]any{
			{"id": 1, "room_code": "R101", "categories": "Deluxe", "reserved": false, "is_active": true, "price_per_night": "50000", "capacity": 2},
			{"id": 2, "room_code": "R102", "categories": "Suite", "reserved": true, "is_active": true, "price_per_night": "90000", "capacity": 4},
		})
	case r.URL.Path == "/chat/sessions/" && r.Method == http.MethodGet:
		writeTestJSON(w, http.StatusOK, []map[string]any{
			{"id": 1, "session_id": "session_own", "customer": map[string]any{"id": 7, "username": "alice"},
				"message_count": 2, "created_at": "2026-10-01T09:00:00Z", "updated_at": "2026-10-01T10:00:00Z"},
			{"id": 2, "session_id": "session_other", "customer": 8,
				"message_count": 1, "created_at": "2026-10-01T09:00:00Z", "updated_at": "2026-10-01T10:00:00Z"},
		})
	case r.URL.Path == "/chat/sessions/1/messages/" && r.Method == http.MethodGet:
		writeTestJSON(w, http.StatusOK, []map[string]any{
			{"id": 11, "sender": "C", "message": "Hello", "timestamp": "2026-10-01T09:30:00Z"},
		})
	case r.URL.Path == "/chat/sessions/1/messages/" && r.Method == http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		var req map[string]string
		json.Unmarshal(body, &req)
		writeTestJSON(w, http.StatusCreated, map[string]any{
			"id": 12, "sender": req["sender"], "message": req["message"], "timestamp": "2026-10-01T10:30:00Z",
		})
	default:
		writeTestJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
}

// readProductForm はmultipartの商品フォームを記録して返す。fb.muを保持して呼ぶ。
func (fb *fakeBackend) readProductForm(r *http.Request) map[string][]string {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		return nil
	}
	fb.productForms = append(fb.productForms, r.MultipartForm.Value)
	if files := r.MultipartForm.File["image"]; len(files) > 0 {
		fb.imageNames = append(fb.imageNames, files[0].Filename)
	}
	return r.MultipartForm.Value
}

// readJSON はJSONボディを「メソッド パス」をキーに記録して返す。fb.muを保持して呼ぶ。
func (fb *fakeBackend) readJSON(r *http.Request) map[string]any {
	body := map[string]any{}
	json.NewDecoder(r.Body).Decode(&body)
	fb.jsonBodies[r.Method+" "+r.URL.Path] = body
	return body
}

func first(form map[string][]string, key string) string {
	if vs := form[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (fb *fakeBackend) requested(prefix string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	n := 0
	for _, r := range fb.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
