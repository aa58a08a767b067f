package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/smartstock/smartstock/internal/rbac"
	"github.com/smartstock/smartstock/internal/shared"
	"github.com/smartstock/smartstock/internal/view"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     rbac.Guard
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, guard rbac.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, guard: guard}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(shared.RoleAdmin, shared.RoleStaff))
		r.Get("/transactions", h.listTransactions)
		r.Get("/products", h.listProducts)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(shared.RoleAdmin))
		r.Post("/transactions", h.postTransaction)
		r.Get("/products/new", h.showCreateForm)
		r.Post("/products", h.createProduct)
		r.Get("/products/{id}/edit", h.showEditForm)
		r.Post("/products/{id}/edit", h.updateProduct)
		r.Post("/products/{id}/delete", h.deleteProduct)
		r.Get("/products/{id}/history", h.showHistory)
	})
}

type transactionForm struct {
	ProductID int64
	Type      string
	Quantity  string
	Remarks   string
}

type transactionsPageData struct {
	Page     TransactionPage
	Products []Product
	Form     transactionForm
	Errors   map[string]string
	CanPost  bool
	Query    string
	Type     string
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	h.renderTransactions(w, r, transactionForm{Type: string(DirectionIn)}, map[string]string{}, http.StatusOK)
}

func (h *Handler) renderTransactions(w http.ResponseWriter, r *http.Request, form transactionForm, errs map[string]string, status int) {
	q := r.URL.Query()
	filter := TransactionFilter{
		Direction: ParseDirection(q.Get("type")),
		Query:     q.Get("q"),
		Page:      shared.ParsePage(q.Get("page")),
	}
	page, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		h.logger.Error("list transactions", slog.Any("error", err))
		errs["general"] = shared.UserSafeMessage(err)
		status = http.StatusInternalServerError
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	data := transactionsPageData{
		Page:    page,
		Form:    form,
		Errors:  errs,
		CanPost: p.Is(shared.RoleAdmin),
		Query:   filter.Query,
		Type:    string(filter.Direction),
	}
	if data.CanPost {
		if data.Products, err = h.service.ListProducts(r.Context()); err != nil {
			h.logger.Error("list products", slog.Any("error", err))
		}
	}
	h.render(w, r, status, "pages/inventory/transactions.html", "Stock Transactions", data)
}

func (h *Handler) postTransaction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	form := transactionForm{
		Type:     r.PostFormValue("type"),
		Quantity: r.PostFormValue("quantity"),
		Remarks:  r.PostFormValue("remarks"),
	}
	errs := map[string]string{}
	form.ProductID, _ = strconv.ParseInt(r.PostFormValue("product"), 10, 64)
	qty, convErr := strconv.Atoi(strings.TrimSpace(form.Quantity))
	if convErr != nil {
		errs["quantity"] = "Quantity must be a whole number"
	}
	if len(errs) == 0 {
		entry, err := h.service.PostTransaction(r.Context(), TransactionInput{
			ProductID: form.ProductID,
			Direction: Direction(strings.ToLower(strings.TrimSpace(form.Type))),
			Quantity:  qty,
			Remarks:   form.Remarks,
			ActorID:   p.ID,
		})
		if err == nil {
			h.redirectWithFlash(w, r, "/inventory/transactions", shared.FlashSuccess,
				fmt.Sprintf("Recorded %s of %d unit(s) for %s.", entry.Direction, entry.Quantity, entry.ProductName))
			return
		}
		switch {
		case errors.Is(err, ErrInsufficientStock), errors.Is(err, shared.ErrNotFound):
			errs["general"] = shared.UserSafeMessage(err)
		case errors.Is(err, shared.ErrValidation):
			errs = mergeErrors(errs, err)
		default:
			h.logger.Error("post transaction", slog.Any("error", err))
			errs["general"] = shared.UserSafeMessage(err)
		}
	}
	h.renderTransactions(w, r, form, errs, http.StatusBadRequest)
}

type productPageData struct {
	Products []Product
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		h.render(w, r, http.StatusInternalServerError, "pages/inventory/products.html", "Products", productPageData{})
		return
	}
	h.render(w, r, http.StatusOK, "pages/inventory/products.html", "Products", productPageData{Products: products})
}

type productFormData struct {
	Action string
	IsEdit bool
	Form   ProductInput
	Errors map[string]string
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/inventory/product_form.html", "New Product", productFormData{
		Action: "/inventory/products",
		Form:   ProductInput{MinStock: DefaultMinStock},
		Errors: map[string]string{},
	})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	input, errs := parseProductForm(r.PostForm)
	if len(errs) == 0 {
		created, err := h.service.CreateProduct(r.Context(), input, p.ID)
		if err == nil {
			h.redirectWithFlash(w, r, "/inventory/products", shared.FlashSuccess, fmt.Sprintf("Product %s created.", created.Name))
			return
		}
		errs = h.formErrors(errs, err, "create product")
	}
	h.render(w, r, http.StatusBadRequest, "pages/inventory/product_form.html", "New Product", productFormData{
		Action: "/inventory/products",
		Form:   input,
		Errors: errs,
	})
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.handleLookupError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/inventory/product_form.html", "Edit Product", productFormData{
		Action: fmt.Sprintf("/inventory/products/%d/edit", id),
		IsEdit: true,
		Form: ProductInput{
			Name:        product.Name,
			Category:    product.Category,
			Stock:       product.Stock,
			StockWas:    product.Stock,
			Price:       product.Price,
			Description: product.Description,
			MinStock:    product.MinStock,
		},
		Errors: map[string]string{},
	})
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	input, errs := parseProductForm(r.PostForm)
	if len(errs) == 0 {
		updated, err := h.service.UpdateProduct(r.Context(), id, input, p.ID)
		if err == nil {
			h.redirectWithFlash(w, r, "/inventory/products", shared.FlashSuccess, fmt.Sprintf("Product %s updated.", updated.Name))
			return
		}
		if errors.Is(err, shared.ErrNotFound) {
			h.handleLookupError(w, r, err)
			return
		}
		errs = h.formErrors(errs, err, "update product")
	}
	h.render(w, r, http.StatusBadRequest, "pages/inventory/product_form.html", "Edit Product", productFormData{
		Action: fmt.Sprintf("/inventory/products/%d/edit", id),
		IsEdit: true,
		Form:   input,
		Errors: errs,
	})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	deleted, err := h.service.DeleteProduct(r.Context(), id, p.ID)
	if err != nil {
		h.handleLookupError(w, r, err)
		return
	}
	h.redirectWithFlash(w, r, "/inventory/products", shared.FlashSuccess, fmt.Sprintf("Product %s deleted.", deleted.Name))
}

type historyPageData struct {
	Product      Product
	Transactions []Transaction
}

func (h *Handler) showHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	product, txs, err := h.service.StockHistory(r.Context(), id)
	if err != nil {
		h.handleLookupError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/inventory/history.html", "Stock History", historyPageData{Product: product, Transactions: txs})
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.redirectWithFlash(w, r, "/inventory/products", shared.FlashError, shared.UserSafeMessage(shared.ErrNotFound))
		return 0, false
	}
	return id, true
}

func (h *Handler) handleLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error("inventory lookup", slog.Any("error", err))
	}
	h.redirectWithFlash(w, r, "/inventory/products", shared.FlashError, shared.UserSafeMessage(err))
}

func (h *Handler) formErrors(errs map[string]string, err error, op string) map[string]string {
	if errors.Is(err, shared.ErrValidation) {
		return mergeErrors(errs, err)
	}
	if !errors.Is(err, ErrInsufficientStock) {
		h.logger.Error(op, slog.Any("error", err))
	}
	errs["general"] = shared.UserSafeMessage(err)
	return errs
}

func mergeErrors(errs map[string]string, err error) map[string]string {
	fields := shared.FieldErrors(err)
	if len(fields) == 0 {
		errs["general"] = shared.UserSafeMessage(err)
		return errs
	}
	for k, v := range fields {
		errs[k] = v
	}
	return errs
}

func parseProductForm(values url.Values) (ProductInput, map[string]string) {
	errs := make(map[string]string)
	input := ProductInput{
		Name:        values.Get("name"),
		Category:    values.Get("category"),
		Description: values.Get("description"),
		MinStock:    DefaultMinStock,
	}
	if raw := strings.TrimSpace(values.Get("stock")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			input.Stock = v
		} else {
			errs["stock"] = "Stock must be a whole number"
		}
	}
	// edits posted without stock_was leave stock untouched
	input.StockWas = input.Stock
	if raw := strings.TrimSpace(values.Get("stock_was")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			input.StockWas = v
		} else {
			errs["stock"] = "Stock must be a whole number"
		}
	}
	if raw := strings.TrimSpace(values.Get("price")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			input.Price = v
		} else {
			errs["price"] = "Price must be a number"
		}
	}
	if raw := strings.TrimSpace(values.Get("min_stock")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			input.MinStock = v
		} else {
			errs["min_stock"] = "Minimum stock must be a whole number"
		}
	}
	return input, errs
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	if err := h.templates.RenderStatus(w, status, name, view.NewTemplateData(r, h.csrf, title, data)); err != nil {
		h.logger.Error("render template", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
