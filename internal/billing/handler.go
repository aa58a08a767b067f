package billing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smartstock/smartstock/internal/inventory"
	"github.com/smartstock/smartstock/internal/platform/httpx"
	"github.com/smartstock/smartstock/internal/rbac"
	"github.com/smartstock/smartstock/internal/shared"
	"github.com/smartstock/smartstock/internal/view"
)

// ProductLister supplies the products offered on the bill form.
type ProductLister interface {
	ListProducts(ctx context.Context) ([]inventory.Product, error)
}

// PDFRenderer converts HTML into a PDF document.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Handler wires HTTP endpoints for billing.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	products  ProductLister
	pdf       PDFRenderer
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     rbac.Guard
}

// NewHandler constructs billing handler. pdf may be nil.
func NewHandler(logger *slog.Logger, service *Service, products ProductLister, pdf PDFRenderer, templates *view.Engine, csrf *shared.CSRFManager, guard rbac.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, products: products, pdf: pdf, templates: templates, csrf: csrf, guard: guard}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(shared.RoleStaff))
		r.Get("/new", h.showBillForm)
		r.Post("/bills", h.createBill)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(shared.RoleAdmin, shared.RoleStaff))
		r.Get("/bills", h.listBills)
		r.Get("/bills/{id}", h.showBill)
		r.Get("/bills/{id}/pdf", h.billPDF)
		r.Get("/next-invoice", h.nextInvoice)
	})
}

type billFormData struct {
	InvoiceNumber  int64
	Products       []inventory.Product
	CustomerName   string
	IdempotencyKey string
	Errors         map[string]string
}

func (h *Handler) showBillForm(w http.ResponseWriter, r *http.Request) {
	h.renderBillForm(w, r, "", map[string]string{}, http.StatusOK)
}

func (h *Handler) renderBillForm(w http.ResponseWriter, r *http.Request, customer string, errs map[string]string, status int) {
	data := billFormData{CustomerName: customer, IdempotencyKey: uuid.NewString(), Errors: errs}
	var err error
	if data.InvoiceNumber, err = h.service.NextInvoiceNumber(r.Context()); err != nil {
		h.logger.Error("next invoice number", slog.Any("error", err))
	}
	if data.Products, err = h.products.ListProducts(r.Context()); err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		errs["general"] = shared.UserSafeMessage(err)
	}
	h.render(w, r, status, "pages/billing/new.html", "New Bill", data)
}

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	p, _ := shared.PrincipalFromContext(r.Context())
	input := ParseBillForm(r.PostForm)
	input.ActorID = p.ID

	bill, err := h.service.CreateBill(r.Context(), input)
	if err == nil {
		h.logger.Info("bill created", slog.Int64("bill_id", bill.ID), slog.Int("items", len(bill.Items)), slog.Int64("user_id", p.ID))
		h.redirectWithFlash(w, r, fmt.Sprintf("/billing/bills/%d", bill.ID), shared.FlashSuccess,
			fmt.Sprintf("Bill #%d created successfully.", bill.ID))
		return
	}

	errs := map[string]string{}
	switch {
	case errors.Is(err, shared.ErrIdempotencyConflict):
		h.redirectWithFlash(w, r, "/billing/bills", shared.FlashWarning, shared.UserSafeMessage(err))
		return
	case errors.Is(err, shared.ErrValidation):
		for k, v := range shared.FieldErrors(err) {
			errs[k] = v
		}
		errs["general"] = shared.UserSafeMessage(err)
	case errors.Is(err, inventory.ErrInsufficientStock), errors.Is(err, shared.ErrNotFound):
		errs["general"] = shared.UserSafeMessage(err)
	default:
		h.logger.Error("create bill", slog.Any("error", err))
		errs["general"] = shared.UserSafeMessage(err)
	}
	h.renderBillForm(w, r, input.CustomerName, errs, http.StatusBadRequest)
}

// ParseBillForm reads the bill form. product_ids carries "<product id>:<row>"
// pairs and quantity_<row> the requested amount. Malformed pairs and rows
// with a missing or non-positive quantity are skipped.
func ParseBillForm(values url.Values) CreateBillInput {
	input := CreateBillInput{
		CustomerName:   values.Get("customer_name"),
		IdempotencyKey: strings.TrimSpace(values.Get("idempotency_key")),
	}
	for _, raw := range values["product_ids"] {
		idPart, row, ok := strings.Cut(raw, ":")
		if !ok {
			continue
		}
		productID, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
		if err != nil || productID <= 0 {
			continue
		}
		qty, err := strconv.Atoi(strings.TrimSpace(values.Get("quantity_" + strings.TrimSpace(row))))
		if err != nil || qty <= 0 {
			continue
		}
		input.Lines = append(input.Lines, LineInput{ProductID: productID, Quantity: qty})
	}
	return input
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	bills, err := h.service.ListBills(r.Context())
	status := http.StatusOK
	if err != nil {
		h.logger.Error("list bills", slog.Any("error", err))
		status = http.StatusInternalServerError
	}
	h.render(w, r, status, "pages/billing/list.html", "Bills", map[string]any{"Bills": bills})
}

func (h *Handler) loadBill(w http.ResponseWriter, r *http.Request) (Bill, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.redirectWithFlash(w, r, "/billing/bills", shared.FlashError, shared.UserSafeMessage(shared.ErrNotFound))
		return Bill{}, false
	}
	bill, err := h.service.GetBill(r.Context(), id)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("get bill", slog.Int64("bill_id", id), slog.Any("error", err))
		}
		h.redirectWithFlash(w, r, "/billing/bills", shared.FlashError, shared.UserSafeMessage(err))
		return Bill{}, false
	}
	return bill, true
}

func (h *Handler) showBill(w http.ResponseWriter, r *http.Request) {
	bill, ok := h.loadBill(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "pages/billing/detail.html", fmt.Sprintf("Bill #%d", bill.ID), map[string]any{"Bill": bill})
}

func (h *Handler) billPDF(w http.ResponseWriter, r *http.Request) {
	bill, ok := h.loadBill(w, r)
	if !ok {
		return
	}
	if h.pdf == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	var buf bytes.Buffer
	if err := h.templates.RenderDocument(&buf, "documents/invoice.html", map[string]any{
		"Bill":        bill,
		"GeneratedAt": time.Now(),
	}); err != nil {
		h.logger.Error("render invoice html", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	pdf, err := h.pdf.RenderHTML(r.Context(), buf.String())
	if err != nil {
		h.logger.Error("render invoice pdf", slog.Int64("bill_id", bill.ID), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=invoice-%d.pdf", bill.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) nextInvoice(w http.ResponseWriter, r *http.Request) {
	next, err := h.service.NextInvoiceNumber(r.Context())
	if err != nil {
		h.logger.Error("next invoice number", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"next_invoice_number": next})
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
