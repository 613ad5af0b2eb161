package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/servicecrm/backend/api/transport"
	"github.com/servicecrm/backend/domain"
	"github.com/servicecrm/backend/pkg/httpcontext"
	"github.com/servicecrm/backend/pkg/pagination"
	"github.com/servicecrm/backend/repository"
	productUC "github.com/servicecrm/backend/usecase/product"
)

type ProductHandler struct {
	baseHandler
	uc *productUC.UseCase
}

func NewProductHandler(uc *productUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary List products (offset pages)
// @Tags products
// @Router /api/v1/products [get]
func (h *ProductHandler) ListProducts(ctx *fasthttp.RequestCtx) {
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

// @Summary Scroll products (keyset cursor)
// @Tags products
// @Router /api/v1/products/scroll [get]
func (h *ProductHandler) ScrollProducts(ctx *fasthttp.RequestCtx) {
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

// @Summary Get product by replaying its stream
// @Tags products
// @Router /api/v1/products/{id} [get]
func (h *ProductHandler) GetProduct(ctx *fasthttp.RequestCtx) {
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

// @Summary Get product from the read model, links resolved
// @Tags products
// @Router /api/v1/products/{id}/detail [get]
func (h *ProductHandler) GetProductDetail(ctx *fasthttp.RequestCtx) {
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

// @Summary Create product
// @Tags products
// @Router /api/v1/products [post]
func (h *ProductHandler) CreateProduct(ctx *fasthttp.RequestCtx) {
	by := h.actor(ctx)
	if by == "" {
		return
	}

	var req transport.ProductCreateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	params, err := productParams(ctx, req)
	if err != nil {
		h.respondError(ctx, err)
		return
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

// @Summary Update product details
// @Tags products
// @Router /api/v1/products/{id} [put]
func (h *ProductHandler) UpdateProduct(ctx *fasthttp.RequestCtx) {
	by, id, ok := h.command(ctx)
	if !ok {
		return
	}

	var req transport.ProductUpdateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	params := productUC.UpdateParams{
		Brand:    req.Brand,
		Model:    req.Model,
		SerialID: req.SerialID,
	}
	if req.PurchaseDate != nil {
		purchase, err := parseDate(*req.PurchaseDate)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		params.PurchaseDate = purchase
	}
	if req.WarrantyUntil != nil {
		warranty, err := parseDate(*req.WarrantyUntil)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		params.WarrantyUntil = warranty
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

// @Summary Bulk upsert products
// @Tags products
// @Router /api/v1/products/bulk [post]
func (h *ProductHandler) UpsertProducts(ctx *fasthttp.RequestCtx) {
	by := h.actor(ctx)
	if by == "" {
		return
	}

	var req transport.ProductUpsertRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || len(req.Items) == 0 {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	items := make([]productUC.UpsertItem, 0, len(req.Items))
	for _, item := range req.Items {
		params, err := productParams(ctx, item.ProductCreateRequest)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		items = append(items, productUC.UpsertItem{Params: params, Expected: item.ExpectedVersion})
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	results, err := h.uc.UpsertMany(stdCtx, by, items)
	out := make([]upsertOutcome, len(results))
	for i, res := range results {
		out[i].State = res.State
		if res.Err != nil {
			out[i].Error = res.Err.Error()
		}
	}
	if err != nil {
		h.respondSuccessMeta(ctx, http.StatusMultiStatus, out, nil)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, out)
}

type upsertOutcome struct {
	State *domain.ProductState `json:"state,omitempty"`
	Error string               `json:"error,omitempty"`
}

// @Summary Soft-delete product
// @Tags products
// @Router /api/v1/products/{id} [delete]
func (h *ProductHandler) DeleteProduct(ctx *fasthttp.RequestCtx) {
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

// @Summary Restore a soft-deleted product
// @Tags products
// @Router /api/v1/products/{id}/restore [post]
func (h *ProductHandler) RestoreProduct(ctx *fasthttp.RequestCtx) {
	h.simpleCommand(ctx, h.uc.Restore)
}

// @Summary Activate product
// @Tags products
// @Router /api/v1/products/{id}/activate [post]
func (h *ProductHandler) ActivateProduct(ctx *fasthttp.RequestCtx) {
	h.simpleCommand(ctx, h.uc.Activate)
}

// @Summary Deactivate product
// @Tags products
// @Router /api/v1/products/{id}/deactivate [post]
func (h *ProductHandler) DeactivateProduct(ctx *fasthttp.RequestCtx) {
	h.simpleCommand(ctx, h.uc.Deactivate)
}

// @Summary Reassign product owner
// @Tags products
// @Router /api/v1/products/{id}/owner [put]
func (h *ProductHandler) UpdateOwner(ctx *fasthttp.RequestCtx) {
	h.assign(ctx, h.uc.UpdateOwner)
}

// @Summary Reassign product dealer
// @Tags products
// @Router /api/v1/products/{id}/dealer [put]
func (h *ProductHandler) UpdateDealer(ctx *fasthttp.RequestCtx) {
	h.assign(ctx, h.uc.UpdateDealer)
}

// @Summary Mark product unrepairable
// @Tags products
// @Router /api/v1/products/{id}/unrepairable [post]
func (h *ProductHandler) MarkUnrepairable(ctx *fasthttp.RequestCtx) {
	by, id, ok := h.command(ctx)
	if !ok {
		return
	}

	var req transport.UnrepairableRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := h.uc.MarkUnrepairable(stdCtx, by, id, req.ExpectedVersion, req.Reason)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state)
}

// @Summary Link order to product
// @Tags products
// @Router /api/v1/products/{id}/orders [post]
func (h *ProductHandler) AddOrder(ctx *fasthttp.RequestCtx) {
	by, id, ok := h.command(ctx)
	if !ok {
		return
	}
	var req transport.LinkRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.ID == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
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

// @Summary Unlink order from product
// @Tags products
// @Router /api/v1/products/{id}/orders/{orderID} [delete]
func (h *ProductHandler) RemoveOrder(ctx *fasthttp.RequestCtx) {
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

type productCommand func(ctx context.Context, by domain.AppUserID, id domain.ProductID, expected int64) (*domain.ProductState, error)

type productAssign func(ctx context.Context, by domain.AppUserID, id domain.ProductID, expected int64, next domain.CustomerID) (*domain.ProductState, error)

func (h *ProductHandler) simpleCommand(ctx *fasthttp.RequestCtx, run productCommand) {
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

// assign handles owner/dealer reassignment; an empty id clears the slot.
func (h *ProductHandler) assign(ctx *fasthttp.RequestCtx, run productAssign) {
	by, id, ok := h.command(ctx)
	if !ok {
		return
	}
	var req transport.LinkRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	state, err := run(stdCtx, by, id, req.ExpectedVersion, domain.CustomerID(req.ID))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, state)
}

func (h *ProductHandler) command(ctx *fasthttp.RequestCtx) (domain.AppUserID, domain.ProductID, bool) {
	by := h.actor(ctx)
	if by == "" {
		return "", "", false
	}
	id, ok := h.pathID(ctx)
	return by, id, ok
}

func (h *ProductHandler) pathID(ctx *fasthttp.RequestCtx) (domain.ProductID, bool) {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing product id", nil))
		return "", false
	}
	return domain.ProductID(id), true
}

func (h *ProductHandler) filter(ctx *fasthttp.RequestCtx) repository.ProductFilter {
	return repository.ProductFilter{
		CentreID:       string(centreID(ctx)),
		OwnerID:        string(ctx.QueryArgs().Peek("owner_id")),
		DealerID:       string(ctx.QueryArgs().Peek("dealer_id")),
		IncludeDeleted: ctx.QueryArgs().GetBool("include_deleted"),
	}
}

func productParams(ctx *fasthttp.RequestCtx, req transport.ProductCreateRequest) (domain.ProductParams, error) {
	purchase, err := parseDate(req.PurchaseDate)
	if err != nil {
		return domain.ProductParams{}, err
	}
	warranty, err := parseDate(req.WarrantyUntil)
	if err != nil {
		return domain.ProductParams{}, err
	}

	params := domain.ProductParams{
		ID:            domain.ProductID(req.ID),
		Brand:         req.Brand,
		Model:         req.Model,
		SerialID:      req.SerialID,
		OwnerID:       domain.CustomerID(req.OwnerID),
		DealerID:      domain.CustomerID(req.DealerID),
		PurchaseDate:  purchase,
		WarrantyUntil: warranty,
		CentreID:      centreID(ctx),
	}
	for _, id := range req.OrderIDs {
		params.OrderIDs = append(params.OrderIDs, domain.OrderID(id))
	}
	return params, nil
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		if parsed, err = time.Parse("2006-01-02", value); err != nil {
			return nil, domain.WrapError(domain.ErrCodeInvalid, "invalid date "+value, domain.ErrInvalidCommand)
		}
	}
	return &parsed, nil
}
