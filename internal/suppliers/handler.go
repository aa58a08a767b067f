package suppliers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/smartstock/smartstock/internal/inventory"
	"github.com/smartstock/smartstock/internal/rbac"
	"github.com/smartstock/smartstock/internal/shared"
	"github.com/smartstock/smartstock/internal/view"
)

// ProductLister supplies products for the purchase order form.
type ProductLister interface {
	ListProducts(ctx context.Context) ([]inventory.Product, error)
}

// Handler wires HTTP endpoints for supplier management and self-service.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	products  ProductLister
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     rbac.Guard
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, products ProductLister, templates *view.Engine, csrf *shared.CSRFManager, guard rbac.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, products: products, templates: templates, csrf: csrf, guard: guard}
}

// MountRoutes registers the back-office routes under /suppliers.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(shared.RoleAdmin))
		r.Get("/", h.listSuppliers)
		r.Post("/{id}/approve", h.approveSupplier)
		r.Post("/{id}/reject", h.rejectSupplier)
		r.Get("/requests", h.listRequests)
		r.Post("/requests/{id}/approve", h.approveRequest)
		r.Post("/requests/{id}/reject", h.rejectRequest)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(shared.RoleAdmin, shared.RoleStaff))
		r.Get("/requests/new", h.showOnBehalfRequestForm)
		r.Post("/requests/new", h.submitOnBehalfRequest)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/new", h.showOrderForm)
		r.Post("/orders", h.createOrder)
	})
}

// MountSupplierRoutes registers the supplier self-service routes under /supplier.
func (h *Handler) MountSupplierRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(shared.RoleSupplier))
		r.Get("/pending", h.showPending)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireApprovedSupplier)
		r.Get("/dashboard", h.showDashboard)
		r.Get("/orders", h.listOwnOrders)
		r.Post("/orders/{id}/status", h.updateOrderStatus)
		r.Get("/requests", h.listOwnRequests)
		r.Get("/requests/new", h.showOwnRequestForm)
		r.Post("/requests", h.submitOwnRequest)
	})
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	status := Status(r.URL.Query().Get("status"))
	list, err := h.service.ListSuppliers(r.Context(), status)
	code := http.StatusOK
	if err != nil {
		h.logger.Error("list suppliers", slog.Any("error", err))
		code = http.StatusInternalServerError
	}
	h.render(w, r, code, "pages/suppliers/list.html", "Suppliers", map[string]any{
		"Suppliers": list,
		"Status":    string(status),
	})
}

func (h *Handler) approveSupplier(w http.ResponseWriter, r *http.Request) {
	h.resolveSupplier(w, r, h.service.ApproveSupplier)
}

func (h *Handler) rejectSupplier(w http.ResponseWriter, r *http.Request) {
	h.resolveSupplier(w, r, h.service.RejectSupplier)
}

func (h *Handler) resolveSupplier(w http.ResponseWriter, r *http.Request, resolve func(context.Context, int64, int64) (SupplierResolution, error)) {
	id, ok := h.pathID(w, r, "/suppliers")
	if !ok {
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	res, err := resolve(r.Context(), id, p.ID)
	switch {
	case err != nil:
		h.flashError(w, r, "/suppliers", "resolve supplier", err)
	case res.AlreadyResolved:
		h.redirectWithFlash(w, r, "/suppliers", shared.FlashInfo, fmt.Sprintf("Supplier %s is already %s.", res.Supplier.Name, res.Supplier.Status))
	default:
		h.redirectWithFlash(w, r, "/suppliers", shared.FlashSuccess, fmt.Sprintf("Supplier %s %s.", res.Supplier.Name, res.Supplier.Status))
	}
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	status := Status(r.URL.Query().Get("status"))
	list, err := h.service.ListRequests(r.Context(), RequestFilter{Status: status})
	code := http.StatusOK
	if err != nil {
		h.logger.Error("list supplier requests", slog.Any("error", err))
		code = http.StatusInternalServerError
	}
	h.render(w, r, code, "pages/suppliers/requests.html", "Supplier Requests", map[string]any{
		"Requests": list,
		"Status":   string(status),
	})
}

func (h *Handler) approveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "/suppliers/requests")
	if !ok {
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	res, err := h.service.ApproveRequest(r.Context(), id, p.ID)
	switch {
	case err != nil:
		h.flashError(w, r, "/suppliers/requests", "approve supplier request", err)
	case res.AlreadyResolved:
		h.redirectWithFlash(w, r, "/suppliers/requests", shared.FlashInfo, fmt.Sprintf("Request for %s is already %s.", res.Request.ProductName, res.Status))
	default:
		h.redirectWithFlash(w, r, "/suppliers/requests", shared.FlashSuccess,
			fmt.Sprintf("Approved %d unit(s) of %s. Stock is now %d.", res.Request.Quantity, res.Product.Name, res.Product.Stock))
	}
}

func (h *Handler) rejectRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "/suppliers/requests")
	if !ok {
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	res, err := h.service.RejectRequest(r.Context(), id, p.ID)
	switch {
	case err != nil:
		h.flashError(w, r, "/suppliers/requests", "reject supplier request", err)
	case res.AlreadyResolved:
		h.redirectWithFlash(w, r, "/suppliers/requests", shared.FlashInfo, fmt.Sprintf("Request for %s is already %s.", res.Request.ProductName, res.Status))
	default:
		h.redirectWithFlash(w, r, "/suppliers/requests", shared.FlashSuccess, fmt.Sprintf("Request for %s rejected.", res.Request.ProductName))
	}
}

type requestFormData struct {
	Action    string
	OnBehalf  bool
	Suppliers []Supplier
	Form      RequestInput
	Errors    map[string]string
}

func (h *Handler) showOnBehalfRequestForm(w http.ResponseWriter, r *http.Request) {
	h.renderRequestForm(w, r, true, RequestInput{}, map[string]string{}, http.StatusOK)
}

func (h *Handler) showOwnRequestForm(w http.ResponseWriter, r *http.Request) {
	h.renderRequestForm(w, r, false, RequestInput{}, map[string]string{}, http.StatusOK)
}

func (h *Handler) renderRequestForm(w http.ResponseWriter, r *http.Request, onBehalf bool, form RequestInput, errs map[string]string, status int) {
	data := requestFormData{Action: "/supplier/requests", OnBehalf: onBehalf, Form: form, Errors: errs}
	if onBehalf {
		data.Action = "/suppliers/requests/new"
		list, err := h.service.ListSuppliers(r.Context(), StatusApproved)
		if err != nil {
			h.logger.Error("list approved suppliers", slog.Any("error", err))
		}
		data.Suppliers = list
	}
	h.render(w, r, status, "pages/suppliers/request_form.html", "Request Product", data)
}

func (h *Handler) submitOnBehalfRequest(w http.ResponseWriter, r *http.Request) {
	h.submitRequest(w, r, true, "/suppliers/orders")
}

func (h *Handler) submitOwnRequest(w http.ResponseWriter, r *http.Request) {
	h.submitRequest(w, r, false, "/supplier/requests")
}

func (h *Handler) submitRequest(w http.ResponseWriter, r *http.Request, onBehalf bool, next string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	input, errs := parseRequestForm(r.PostForm)
	if len(errs) == 0 {
		req, err := h.service.SubmitRequest(r.Context(), p, input)
		if err == nil {
			h.redirectWithFlash(w, r, next, shared.FlashSuccess,
				fmt.Sprintf("Request for %d unit(s) of %s submitted for approval.", req.Quantity, req.ProductName))
			return
		}
		errs = h.formErrors(errs, err, "submit supplier request")
	}
	h.renderRequestForm(w, r, onBehalf, input, errs, http.StatusBadRequest)
}

func parseRequestForm(values url.Values) (RequestInput, map[string]string) {
	errs := map[string]string{}
	input := RequestInput{
		ProductName: values.Get("product_name"),
		Description: values.Get("description"),
	}
	if raw := strings.TrimSpace(values.Get("supplier")); raw != "" {
		input.SupplierID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if price, err := strconv.ParseFloat(strings.TrimSpace(values.Get("price")), 64); err == nil {
		input.PricePerUnit = price
	} else {
		errs["price"] = "Price must be a number"
	}
	if qty, err := strconv.Atoi(strings.TrimSpace(values.Get("quantity"))); err == nil {
		input.Quantity = qty
	} else {
		errs["quantity"] = "Quantity must be a whole number"
	}
	return input, errs
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context(), OrderFilter{})
	code := http.StatusOK
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		code = http.StatusInternalServerError
	}
	h.render(w, r, code, "pages/suppliers/orders.html", "Purchase Orders", map[string]any{"Orders": orders})
}

type orderFormData struct {
	Suppliers []Supplier
	Products  []inventory.Product
	Form      OrderInput
	Errors    map[string]string
}

func (h *Handler) showOrderForm(w http.ResponseWriter, r *http.Request) {
	h.renderOrderForm(w, r, OrderInput{}, map[string]string{}, http.StatusOK)
}

func (h *Handler) renderOrderForm(w http.ResponseWriter, r *http.Request, form OrderInput, errs map[string]string, status int) {
	data := orderFormData{Form: form, Errors: errs}
	var err error
	if data.Suppliers, err = h.service.ListSuppliers(r.Context(), StatusApproved); err != nil {
		h.logger.Error("list approved suppliers", slog.Any("error", err))
	}
	if data.Products, err = h.products.ListProducts(r.Context()); err != nil {
		h.logger.Error("list products", slog.Any("error", err))
	}
	h.render(w, r, status, "pages/suppliers/order_form.html", "New Purchase Order", data)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	errs := map[string]string{}
	var input OrderInput
	input.SupplierID, _ = strconv.ParseInt(r.PostFormValue("supplier"), 10, 64)
	input.ProductID, _ = strconv.ParseInt(r.PostFormValue("product"), 10, 64)
	qty, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("quantity")))
	if err != nil {
		errs["quantity"] = "Quantity must be a whole number"
	}
	input.Quantity = qty
	if len(errs) == 0 {
		order, err := h.service.CreateOrder(r.Context(), input, p.ID)
		if err == nil {
			h.redirectWithFlash(w, r, "/suppliers/orders", shared.FlashSuccess,
				fmt.Sprintf("Order #%d for %d unit(s) of %s sent to %s.", order.ID, order.Quantity, order.ProductName, order.SupplierName))
			return
		}
		errs = h.formErrors(errs, err, "create order")
	}
	h.renderOrderForm(w, r, input, errs, http.StatusBadRequest)
}

func (h *Handler) showPending(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	if p.SupplierStatus == string(StatusApproved) {
		http.Redirect(w, r, "/supplier/dashboard", http.StatusSeeOther)
		return
	}
	data := map[string]any{"Status": p.SupplierStatus}
	if p.SupplierID != 0 {
		if sup, err := h.service.GetSupplier(r.Context(), p.SupplierID); err == nil {
			data["Supplier"] = sup
		}
	}
	h.render(w, r, http.StatusOK, "pages/supplier/pending.html", "Approval Status", data)
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	dash, err := h.service.SupplierDashboard(r.Context(), p.SupplierID)
	code := http.StatusOK
	if err != nil {
		h.logger.Error("supplier dashboard", slog.Any("error", err))
		code = http.StatusInternalServerError
	}
	h.render(w, r, code, "pages/supplier/dashboard.html", "Supplier Dashboard", dash)
}

func (h *Handler) listOwnOrders(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	orders, err := h.service.ListOrders(r.Context(), OrderFilter{SupplierID: p.SupplierID})
	code := http.StatusOK
	if err != nil {
		h.logger.Error("list own orders", slog.Any("error", err))
		code = http.StatusInternalServerError
	}
	h.render(w, r, code, "pages/supplier/orders.html", "My Orders", map[string]any{
		"Orders":   orders,
		"Statuses": []OrderStatus{OrderPending, OrderDispatched, OrderDelivered},
	})
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "/supplier/orders")
	if !ok {
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	next, err := ParseOrderStatus(r.PostFormValue("status"))
	if err == nil {
		var order PurchaseOrder
		order, err = h.service.UpdateOrderStatus(r.Context(), p, id, next)
		if err == nil {
			h.redirectWithFlash(w, r, "/supplier/orders", shared.FlashSuccess, fmt.Sprintf("Order #%d is now %s.", order.ID, order.Status))
			return
		}
	}
	h.flashError(w, r, "/supplier/orders", "update order status", err)
}

func (h *Handler) listOwnRequests(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	list, err := h.service.ListRequests(r.Context(), RequestFilter{SupplierID: p.SupplierID})
	code := http.StatusOK
	if err != nil {
		h.logger.Error("list own requests", slog.Any("error", err))
		code = http.StatusInternalServerError
	}
	h.render(w, r, code, "pages/supplier/requests.html", "My Product Requests", map[string]any{"Requests": list})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, back string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.redirectWithFlash(w, r, back, shared.FlashError, shared.UserSafeMessage(shared.ErrNotFound))
		return 0, false
	}
	return id, true
}

func (h *Handler) flashError(w http.ResponseWriter, r *http.Request, back, op string, err error) {
	if !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrInvalidState) && !errors.Is(err, shared.ErrValidation) {
		h.logger.Error(op, slog.Any("error", err))
	}
	h.redirectWithFlash(w, r, back, shared.FlashError, shared.UserSafeMessage(err))
}

func (h *Handler) formErrors(errs map[string]string, err error, op string) map[string]string {
	if fields := shared.FieldErrors(err); len(fields) > 0 {
		for k, v := range fields {
			errs[k] = v
		}
		return errs
	}
	if !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrInvalidState) && !errors.Is(err, shared.ErrValidation) {
		h.logger.Error(op, slog.Any("error", err))
	}
	errs["general"] = shared.UserSafeMessage(err)
	return errs
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
