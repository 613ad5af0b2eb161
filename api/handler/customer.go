package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/servicecrm/backend/api/transport"
	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/pkg/httpcontext"
	"github.com/servicecrm/backend/pkg/pagination"
	"github.com/servicecrm/backend/repository"
	customerUC "github.com/servicecrm/backend/usecase/customer"
)

type CustomerHandler struct {
	baseHandler
	uc *customerUC.UseCase
}

func NewCustomerHandler(uc *customerUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List customers (offset pages)
// @Tags customers
// @Router /api/v1/customers [get]
func (h *CustomerHandler) ListCustomers(ctx *fasthttp.RequestCtx) {
	filter := h.filter(ctx)
	page := pagination.New(
		parseInt(string(ctx.QueryArgs().Peek("page")), 0),
		parseInt(string(ctx.QueryArgs().Peek("page_size")), 0),
	)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.Page(stdCtx, filter, page)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccessMeta(ctx, http.StatusOK, result.Items, transport.PageMeta{
		Page:       result.Page,
		PageSize:   result.PageSize,
		Total:      result.Total,
		TotalPages: result.TotalPages(),
	})
}

// @Summary Scroll customers (keyset cursor)
// @Tags customers
// @Router /api/v1/customers/scroll [get]
func (h *CustomerHandler) ScrollCustomers(ctx *fasthttp.RequestCtx) {
	filter := h.filter(ctx)
	cursor := pagination.NewCursor(
		string(ctx.QueryArgs().Peek("anchor")),
		ctx.QueryArgs().GetBool("backward"),
		parseInt(string(ctx.QueryArgs().Peek("page_size")), 0),
	)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.uc.Keyset(stdCtx, filter, cursor)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	meta := transport.CursorMeta{Total: result.Total}
	if len(result.Items) > 0 {
		meta.PrevAnchor = result.Items[0].ID.String()
		meta.NextAnchor = result.Items[len(result.Items)-1].ID.String()
	}
	h.respondSuccessMeta(ctx, http.StatusOK, result.Items, meta)
}

// @Summary Get customer by replaying its stream
// @Tags customers
// @Router /api/v1/customers/{id} [get]
func (h *CustomerHandler) GetCustomer(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.ByID(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state)
}

// @Summary Get customer from the read model, links resolved
// @Tags customers
// @Router /api/v1/customers/{id}/detail [get]
func (h *CustomerHandler) GetCustomerDetail(ctx *fasthttp.RequestCtx) {
	id, ok := h.pathID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.Detail(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state)
}

// @Summary Create customer
// @Tags customers
// @Router /api/v1/customers [post]
func (h *CustomerHandler) CreateCustomer(ctx *fasthttp.RequestCtx) {
	by := h.actor(ctx)
	if by == "" {
		return
	}

	var req transport.CustomerCreateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	phone, err := domain.NormalizePhone(req.Phone, req.Country)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	params := domain.CustomerParams{
		ID:        domain.CustomerID(req.ID),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     phone,
		CityID:    req.CityID,
		Address:   req.Address,
		Role:      domain.Role(req.Role),
		CentreID:  centreID(ctx),
	}
	for _, id := range req.ProductIDs {
		params.ProductIDs = append(params.ProductIDs, domain.ProductID(id))
	}
	for _, id := range req.OrderIDs {
		params.OrderIDs = append(params.OrderIDs, domain.OrderID(id))
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.Create(stdCtx, by, params)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, state)
}

// @Summary Update customer profile fields
// @Tags customers
// @Router /api/v1/customers/{id} [put]
func (h *CustomerHandler) UpdateCustomer(ctx *fasthttp.RequestCtx) {
	by, id, ok := h.command(ctx)
	if !ok {
		return
	}

	var req transport.CustomerUpdateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	params := customerUC.UpdateParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		CityID:    req.CityID,
		Address:   req.Address,
	}
	if req.Phone != nil {
		phone, err := domain.NormalizePhone(*req.Phone, req.Country)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		params.Phone = &phone
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		params.Role = &role
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.Update(stdCtx, by, id, req.ExpectedVersion, params)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state)
}

// @Summary Soft-delete customer
// @Tags customers
// @Router /api/v1/customers/{id} [delete]
func (h *CustomerHandler) DeleteCustomer(ctx *fasthttp.RequestCtx) {
	by, id, ok := h.command(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Delete(stdCtx, by, id, expectedVersion(ctx)); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}

// @Summary Restore a soft-deleted customer
// @Tags customers
// @Router /api/v1/customers/{id}/restore [post]
func (h *CustomerHandler) RestoreCustomer(ctx *fasthttp.RequestCtx) {
	h.simpleCommand(ctx, h.uc.Restore)
}

// @Summary Activate customer
// @Tags customers
// @Router /api/v1/customers/{id}/activate [post]
func (h *CustomerHandler) ActivateCustomer(ctx *fasthttp.RequestCtx) {
	h.simpleCommand(ctx, h.uc.Activate)
}

// @Summary Deactivate customer
// @Tags customers
// @Router /api/v1/customers/{id}/deactivate [post]
func (h *CustomerHandler) DeactivateCustomer(ctx *fasthttp.RequestCtx) {
	h.simpleCommand(ctx, h.uc.Deactivate)
}

// @Summary Link product to customer
// @Tags customers
// @Router /api/v1/customers/{id}/products [post]
func (h *CustomerHandler) AddProduct(ctx *fasthttp.RequestCtx) {
	by, id, ok := h.command(ctx)
	if !ok {
		return
	}
	req, ok := h.parseLink(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.AddProduct(stdCtx, by, id, req.ExpectedVersion, domain.ProductID(req.ID))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state)
}

// @Summary Unlink product from customer
// @Tags customers
// @Router /api/v1/customers/{id}/products/{productID} [delete]
func (h *CustomerHandler) RemoveProduct(ctx *fasthttp.RequestCtx) {
	by, id, ok := h.command(ctx)
	if !ok {
		return
	}
	productID, _ := ctx.UserValue("productID").(string)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.RemoveProduct(stdCtx, by, id, expectedVersion(ctx), domain.ProductID(productID))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state)
}

// @Summary Link order to customer
// @Tags customers
// @Router /api/v1/customers/{id}/orders [post]
func (h *CustomerHandler) AddOrder(ctx *fasthttp.RequestCtx) {
	by, id, ok := h.command(ctx)
	if !ok {
		return
	}
	req, ok := h.parseLink(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.AddOrder(stdCtx, by, id, req.ExpectedVersion, domain.OrderID(req.ID))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state)
}

// @Summary Unlink order from customer
// @Tags customers
// @Router /api/v1/customers/{id}/orders/{orderID} [delete]
func (h *CustomerHandler) RemoveOrder(ctx *fasthttp.RequestCtx) {
	by, id, ok := h.command(ctx)
	if !ok {
		return
	}
	orderID, _ := ctx.UserValue("orderID").(string)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.RemoveOrder(stdCtx, by, id, expectedVersion(ctx), domain.OrderID(orderID))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state)
}

type customerCommand func(ctx context.Context, by domain.AppUserID, id domain.CustomerID, expected int64) (*domain.CustomerState, error)

func (h *CustomerHandler) simpleCommand(ctx *fasthttp.RequestCtx, run customerCommand) {
	by, id, ok := h.command(ctx)
	if !ok {
		return
	}

	var req transport.VersionedRequest
	if body := ctx.PostBody(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
			return
		}
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := run(stdCtx, by, id, req.ExpectedVersion)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state)
}

func (h *CustomerHandler) command(ctx *fasthttp.RequestCtx) (domain.AppUserID, domain.CustomerID, bool) {
	by := h.actor(ctx)
	if by == "" {
		return "", "", false
	}
	id, ok := h.pathID(ctx)
	return by, id, ok
}

func (h *CustomerHandler) pathID(ctx *fasthttp.RequestCtx) (domain.CustomerID, bool) {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing customer id", nil))
		return "", false
	}
	return domain.CustomerID(id), true
}

func (h *CustomerHandler) parseLink(ctx *fasthttp.RequestCtx) (transport.LinkRequest, bool) {
	var req transport.LinkRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.ID == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return req, false
	}
	return req, true
}

func (h *CustomerHandler) filter(ctx *fasthttp.RequestCtx) repository.CustomerFilter {
	return repository.CustomerFilter{
		CentreID:       string(centreID(ctx)),
		Role:           string(ctx.QueryArgs().Peek("role")),
		IncludeDeleted: ctx.QueryArgs().GetBool("include_deleted"),
	}
}

func expectedVersion(ctx *fasthttp.RequestCtx) int64 {
	v, err := strconv.ParseInt(string(ctx.QueryArgs().Peek("expected_version")), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(value string, fallback int) int {
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}
