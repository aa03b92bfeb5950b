package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/orders"
)

type updateOrderRequest struct {
	Status      *string `json:"status"`
	AdminNotes  *string `json:"adminNotes" binding:"omitempty,max=2000"`
	ViberSent   *bool   `json:"viberSent"`
	ViberNumber *string `json:"viberNumber" binding:"omitempty,max=30"`
}

// adminOrderView adds the statuses the dashboard may offer next.
type adminOrderView struct {
	models.Order
	NextStatuses []models.OrderStatus `json:"nextStatuses"`
}

func ListOrders(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/orders"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := orders.ListFilter{
			Status: models.OrderStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
			Search: c.Query("search"),
			Page:   page,
			Limit:  limit,
		}

		list, total, err := svc.ListOrders(c.Request.Context(), filter)
		if err != nil {
			respondOrderError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":       list,
			"pagination": paginationMeta(page, limit, total),
		})
	}
}

func GetOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/orders/:id"
		defer handlePanic(c, route)

		id, ok := orderIDParam(c, route)
		if !ok {
			return
		}

		order, err := svc.GetOrder(c.Request.Context(), id)
		if err != nil {
			respondOrderError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, adminOrderView{
			Order:        order,
			NextStatuses: orders.NextStatuses(order.Status),
		})
	}
}

// UpdateOrder applies a partial update of status and the admin-only fields.
func UpdateOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PATCH /admin/api/orders/:id"
		defer handlePanic(c, route)

		id, ok := orderIDParam(c, route)
		if !ok {
			return
		}

		var req updateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		upd := orders.OrderUpdate{
			AdminFields: orders.AdminFields{
				AdminNotes:  req.AdminNotes,
				ViberSent:   req.ViberSent,
				ViberNumber: req.ViberNumber,
			},
		}
		if req.Status != nil {
			status, err := orders.ParseStatus(*req.Status)
			if err != nil {
				respondOrderError(c, route, err)
				return
			}
			upd.Status = &status
		}
		if upd.Status == nil && upd.AdminFields.Empty() {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}

		order, err := svc.UpdateOrder(c.Request.Context(), id, upd)
		if err != nil {
			respondOrderError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func DeleteOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/orders/:id"
		defer handlePanic(c, route)

		id, ok := orderIDParam(c, route)
		if !ok {
			return
		}

		if err := svc.DeleteOrder(c.Request.Context(), id); err != nil {
			respondOrderError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
	}
}

func orderIDParam(c *gin.Context, route string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, "invalid id")
		return primitive.NilObjectID, false
	}
	return id, true
}
