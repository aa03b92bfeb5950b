package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/logging"
	"storefront/internal/models"
)

func storefrontFilter() bson.M {
	return bson.M{
		"published": true,
		"isDeleted": bson.M{"$ne": true},
	}
}

/*
GET /products
- pagination is optional: without page and limit every product is returned
*/
func GetProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		filter := storefrontFilter()

		if category := strings.TrimSpace(c.Query("category")); category != "" {
			categoryID, err := primitive.ObjectIDFromHex(category)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid category")
				return
			}
			filter["categoryId"] = categoryID
		}

		if search := strings.TrimSpace(c.Query("search")); search != "" {
			pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
			filter["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"brand": pattern}}
		}

		findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

		pageStr, limitStr := c.Query("page"), c.Query("limit")
		paginated := pageStr != "" || limitStr != ""
		var page, limit int64
		if paginated {
			var err error
			page, limit, err = parsePaginationParams(pageStr, limitStr)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
			findOptions.SetSkip((page - 1) * limit).SetLimit(limit)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection("products").Find(ctx, filter, findOptions)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		products, err := decodeProducts(ctx, cursor)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		if !paginated {
			c.JSON(http.StatusOK, products)
			return
		}

		total, err := db.Collection("products").CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		logging.From(c).Debug("products listed", "count", len(products), "total", total)
		c.JSON(http.StatusOK, gin.H{
			"data":       products,
			"pagination": paginationMeta(page, limit, total),
		})
	}
}

/*
GET /products/sale
- products whose compare-at price is above the selling price
- pagination required
*/
func GetSaleProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/sale"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := storefrontFilter()
		filter["compareAtPrice"] = bson.M{"$exists": true}
		filter["$expr"] = bson.M{"$gt": bson.A{"$compareAtPrice", "$price"}}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		total, err := db.Collection("products").CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		cursor, err := db.Collection("products").Find(ctx, filter, options.Find().
			SetSkip((page-1)*limit).
			SetLimit(limit).
			SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		products, err := decodeProducts(ctx, cursor)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":       products,
			"pagination": paginationMeta(page, limit, total),
		})
	}
}

/*
GET /products/:id
*/
func GetProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		filter := storefrontFilter()
		filter["_id"] = id

		var product models.Product
		err = db.Collection("products").FindOne(ctx, filter).Decode(&product)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		decorateProduct(&product)
		c.JSON(http.StatusOK, product)
	}
}
