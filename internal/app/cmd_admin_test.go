package app

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hitoshi/guestdesk/internal/model"
)

// setupStaffCLI はスタッフとしてログイン済みの状態にする。
func setupStaffCLI(t *testing.T) *fakeBackend {
	t.Helper()
	fb, srv := newFakeBackend(t)
	setTestEnv(t, srv.URL)
	out, err := execute(t, "", "login", "--email", "staff@example.com", "--password", "secret")
	if err != nil {
		t.Fatalf("login error = %v", err)
	}
	if !strings.Contains(out, "(staff)") {
		t.Fatalf("login output = %q, want staff role", out)
	}
	return fb
}

func (fb *fakeBackend) jsonBody(key string) map[string]any {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.jsonBodies[key]
}

func TestAdminCommands_RejectCustomer(t *testing.T) {
	fb := setupCLI(t)

	commands := [][]string{
		{"orders", "all"},
		{"orders", "status", "42", "shipped"},
		{"products", "create", "--name", "Tea", "--cost", "1", "--price", "1"},
		{"products", "replenish", "1", "3"},
		{"products", "delete", "1", "-y"},
		{"categories", "create", "--name", "Snacks"},
		{"categories", "delete", "1", "-y"},
		{"feedback", "list"},
		{"feedback", "delete", "5", "-y"},
	}
	for _, args := range commands {
		t.Run(strings.Join(args[:2], " "), func(t *testing.T) {
			_, err := execute(t, "", args...)
			if !errors.Is(err, model.ErrForbidden) {
				t.Errorf("error = %v, want ErrForbidden", err)
			}
		})
	}

	for _, prefix := range []string{"GET /admin/", "PATCH ", "POST /products/", "POST /categories/", "DELETE "} {
		if n := fb.requested(prefix); n != 0 {
			t.Errorf("%s requests = %d, want 0", prefix, n)
		}
	}
}

func TestAdminCommands_RequireLogin(t *testing.T) {
	_, srv := newFakeBackend(t)
	setTestEnv(t, srv.URL)

	_, err := execute(t, "", "feedback", "list")
	if !errors.Is(err, model.ErrNotAuthenticated) {
		t.Errorf("error = %v, want ErrNotAuthenticated", err)
	}
}

// --- 注文 ---

func TestOrdersStatus_StaffUpdatesStatus(t *testing.T) {
	fb := setupStaffCLI(t)

	out, err := execute(t, "", "orders", "status", "42", "shipped")
	if err != nil {
		t.Fatalf("orders status error = %v", err)
	}
	if !strings.Contains(out, "Order #42 ORD-42 is now Shipped") {
		t.Errorf("output = %q", out)
	}
	if got := fb.jsonBody("PATCH /orders/42/status/")["status"]; got != "S" {
		t.Errorf("status sent = %v, want S", got)
	}
}

func TestOrdersStatus_UnknownStatusDoesNotCallBackend(t *testing.T) {
	fb := setupStaffCLI(t)

	_, err := execute(t, "", "orders", "status", "42", "lost")
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if fb.requested("PATCH ") != 0 {
		t.Error("unknown status should not reach the backend")
	}
}

func TestOrdersAll_ListsEveryCustomer(t *testing.T) {
	setupStaffCLI(t)

	out, err := execute(t, "", "orders", "all")
	if err != nil {
		t.Fatalf("orders all error = %v", err)
	}
	for _, want := range []string{"ORD-42", "Pending", "ORD-43", "Delivered"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// --- 商品 ---

func TestProductsShow_IsPublic(t *testing.T) {
	_, srv := newFakeBackend(t)
	setTestEnv(t, srv.URL)

	out, err := execute(t, "", "products", "show", "1")
	if err != nil {
		t.Fatalf("products show error = %v", err)
	}
	for _, want := range []string{"Product #1 Coffee (P001)", "Description: Drip coffee", "Stock: 5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProductsCreate_SendsMultipartForm(t *testing.T) {
	fb := setupStaffCLI(t)
	image := filepath.Join(t.TempDir(), "tea.png")
	if err := os.WriteFile(image, []byte("png"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "", "products", "create",
		"--name", "Tea", "--cost", "400", "--price", "900.5", "--quantity", "3",
		"--category", "1", "--category", "2", "--image", image)
	if err != nil {
		t.Fatalf("products create error = %v", err)
	}
	if !strings.Contains(out, "Created product #3 Tea (P003)") {
		t.Errorf("output = %q", out)
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.productForms) != 1 {
		t.Fatalf("product forms = %d, want 1", len(fb.productForms))
	}
	want := map[string][]string{
		"name":         {"Tea"},
		"description":  {""},
		"cost":         {"400.00"},
		"price":        {"900.50"},
		"quantity":     {"3"},
		"is_active":    {"true"},
		"category_ids": {"1", "2"},
	}
	if !reflect.DeepEqual(fb.productForms[0], want) {
		t.Errorf("form = %v, want %v", fb.productForms[0], want)
	}
	if !reflect.DeepEqual(fb.imageNames, []string{"tea.png"}) {
		t.Errorf("image names = %v", fb.imageNames)
	}
}

func TestProductsCreate_MissingImageFile(t *testing.T) {
	fb := setupStaffCLI(t)

	_, err := execute(t, "", "products", "create", "--name", "Tea", "--cost", "1", "--price", "1",
		"--image", filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if fb.requested("POST /products/") != 0 {
		t.Error("product should not be sent without its image")
	}
}

func TestProductsUpdate_KeepsUnchangedFields(t *testing.T) {
	fb := setupStaffCLI(t)

	out, err := execute(t, "", "products", "update", "1", "--price", "1300", "--inactive")
	if err != nil {
		t.Fatalf("products update error = %v", err)
	}
	if !strings.Contains(out, "Updated product #1 Coffee") {
		t.Errorf("output = %q", out)
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	want := map[string][]string{
		"name":         {"Coffee"},
		"description":  {"Drip coffee"},
		"cost":         {"800.00"},
		"price":        {"1300.00"},
		"quantity":     {"5"},
		"is_active":    {"false"},
		"category_ids": {"1"},
	}
	if len(fb.productForms) != 1 || !reflect.DeepEqual(fb.productForms[0], want) {
		t.Errorf("forms = %v, want %v", fb.productForms, want)
	}
}

func TestProductsReplenish(t *testing.T) {
	setupStaffCLI(t)

	out, err := execute(t, "", "products", "replenish", "1", "10")
	if err != nil {
		t.Fatalf("products replenish error = %v", err)
	}
	if !strings.Contains(out, "Product #1 stock: 15") {
		t.Errorf("output = %q", out)
	}

	if _, err := execute(t, "", "products", "replenish", "1", "ten"); !errors.Is(err, model.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestProductsDelete_AsksForConfirmation(t *testing.T) {
	fb := setupStaffCLI(t)

	out, err := execute(t, "n\n", "products", "delete", "1")
	if err != nil {
		t.Fatalf("products delete error = %v", err)
	}
	if !strings.Contains(out, "Delete product #1? [y/N]: ") || !strings.Contains(out, "Cancelled") {
		t.Errorf("output = %q", out)
	}
	if fb.requested("DELETE /products/1/") != 0 {
		t.Fatal("declined delete should not reach the backend")
	}

	out, err = execute(t, "y\n", "products", "delete", "1")
	if err != nil {
		t.Fatalf("products delete error = %v", err)
	}
	if !strings.Contains(out, "Deleted product #1") {
		t.Errorf("output = %q", out)
	}
	if fb.requested("DELETE /products/1/") != 1 {
		t.Errorf("delete requests = %d, want 1", fb.requested("DELETE /products/1/"))
	}
}

// --- カテゴリ ---

func TestCategories_ListAndShow(t *testing.T) {
	_, srv := newFakeBackend(t)
	setTestEnv(t, srv.URL)

	out, err := execute(t, "", "categories")
	if err != nil {
		t.Fatalf("categories error = %v", err)
	}
	if !strings.Contains(out, "Drinks") {
		t.Errorf("output = %q", out)
	}

	out, err = execute(t, "", "categories", "show", "1")
	if err != nil {
		t.Fatalf("categories show error = %v", err)
	}
	if !strings.Contains(out, "Category #1 Drinks") || !strings.Contains(out, "Description: Hot and cold") {
		t.Errorf("output = %q", out)
	}
}

func TestCategories_StaffManagesCategories(t *testing.T) {
	fb := setupStaffCLI(t)

	out, err := execute(t, "", "categories", "create", "--name", " Snacks ", "--description", "Light meals")
	if err != nil {
		t.Fatalf("categories create error = %v", err)
	}
	if !strings.Contains(out, "Created category #2 Snacks") {
		t.Errorf("output = %q", out)
	}
	if got := fb.jsonBody("POST /categories/"); got["name"] != "Snacks" || got["description"] != "Light meals" {
		t.Errorf("create body = %v", got)
	}

	out, err = execute(t, "", "categories", "update", "1", "--description", "Cold only")
	if err != nil {
		t.Fatalf("categories update error = %v", err)
	}
	if !strings.Contains(out, "Updated category #1 Drinks") {
		t.Errorf("output = %q", out)
	}
	if got := fb.jsonBody("PUT /categories/1/"); got["name"] != "Drinks" || got["description"] != "Cold only" {
		t.Errorf("update body = %v", got)
	}

	out, err = execute(t, "", "categories", "delete", "1", "-y")
	if err != nil {
		t.Fatalf("categories delete error = %v", err)
	}
	if !strings.Contains(out, "Deleted category #1") || fb.requested("DELETE /categories/1/") != 1 {
		t.Errorf("output = %q", out)
	}
}

func TestCategoriesCreate_RequiresName(t *testing.T) {
	fb := setupStaffCLI(t)

	if _, err := execute(t, "", "categories", "create"); !errors.Is(err, model.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
	if fb.requested("POST /categories/") != 0 {
		t.Error("invalid category should not reach the backend")
	}
}

// --- フィードバック ---

func TestFeedback_StaffManagesFeedback(t *testing.T) {
	fb := setupStaffCLI(t)

	out, err := execute(t, "", "feedback", "list")
	if err != nil {
		t.Fatalf("feedback list error = %v", err)
	}
	if !strings.Contains(out, "Bob Guest") || !strings.Contains(out, "Great stay") {
		t.Errorf("output = %q", out)
	}

	out, err = execute(t, "", "feedback", "update", "5", "--name", "Bob", "--message", "Great stay!")
	if err != nil {
		t.Fatalf("feedback update error = %v", err)
	}
	if !strings.Contains(out, "Updated feedback #5") {
		t.Errorf("output = %q", out)
	}
	if got := fb.jsonBody("PUT /feedback/5/"); got["full_name"] != "Bob" || got["message"] != "Great stay!" {
		t.Errorf("update body = %v", got)
	}

	out, err = execute(t, "", "feedback", "delete", "5", "-y")
	if err != nil {
		t.Fatalf("feedback delete error = %v", err)
	}
	if !strings.Contains(out, "Deleted feedback #5") || fb.requested("DELETE /feedback/5/") != 1 {
		t.Errorf("output = %q", out)
	}
}
