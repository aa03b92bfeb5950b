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
	"storefront/internal/uploads"
)

/* =======================
   HELPERS
======================= */

func categoryExists(ctx context.Context, db *mongo.Database, id primitive.ObjectID) (bool, error) {
	n, err := db.Collection("categories").CountDocuments(ctx, bson.M{"_id": id})
	return n > 0, err
}

// discardUpload removes a freshly written image after the write that would
// have referenced it failed.
func discardUpload(c *gin.Context, files *uploads.Store, ref string) {
	if err := files.Delete(ref); err != nil {
		logging.From(c).Warn("discard upload failed", "ref", ref, "err", err)
	}
}

func respondUploadError(c *gin.Context, route string, err error) {
	if errors.Is(err, uploads.ErrUnsupportedImage) || errors.Is(err, uploads.ErrImageTooLarge) {
		respondWithError(c, http.StatusBadRequest, route, err.Error())
		return
	}
	respondWithError(c, http.StatusInternalServerError, route, "image upload failed")
}

/* =======================
   LIST
======================= */

// GetAdminProducts lists products for the dashboard, drafts included.
// Soft-deleted products only show up with ?deleted=true.
func GetAdminProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/products"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{"isDeleted": bson.M{"$ne": true}}
		if c.Query("deleted") == "true" {
			filter["isDeleted"] = true
		}
		if q := strings.TrimSpace(c.Query("search")); q != "" {
			pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
			filter["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"brand": pattern}}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		total, err := db.Collection("products").CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		opts := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetSkip((page - 1) * limit).
			SetLimit(limit)

		cursor, err := db.Collection("products").Find(ctx, filter, opts)
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

/* =======================
   CREATE
======================= */

func CreateProduct(db *mongo.Database, files *uploads.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/products"
		defer handlePanic(c, route)

		input, err := parseProductRequest(c)
		if err != nil {
			respondValidationError(c, route, err)
			return
		}

		if input.Name == nil || *input.Name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name required")
			return
		}
		if input.Price == nil {
			respondWithError(c, http.StatusBadRequest, route, "price required")
			return
		}
		if err := validatePricing(*input.Price, input.CompareAtPrice); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if input.CategoryID != nil {
			ok, err := categoryExists(ctx, db, *input.CategoryID)
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			if !ok {
				respondWithError(c, http.StatusBadRequest, route, "category not found")
				return
			}
		}

		now := time.Now().UTC()
		product := models.Product{
			Name:           *input.Name,
			Price:          *input.Price,
			CompareAtPrice: input.CompareAtPrice,
			CategoryID:     input.CategoryID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if input.Description != nil {
			product.Description = *input.Description
		}
		if input.Brand != nil {
			product.Brand = *input.Brand
		}
		if input.Stock != nil {
			product.Stock = *input.Stock
		}
		if input.Published != nil {
			product.Published = *input.Published
		}

		if input.Image != nil {
			ref, err := files.SaveImage(input.Image, "products")
			if err != nil {
				respondUploadError(c, route, err)
				return
			}
			product.ImagePath = ref
		}

		res, err := db.Collection("products").InsertOne(ctx, product)
		if err != nil {
			discardUpload(c, files, product.ImagePath)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		product.ID = res.InsertedID.(primitive.ObjectID)
		decorateProduct(&product)

		logging.From(c).Info("product created", "product_id", product.ID.Hex(), "name", product.Name)
		c.JSON(http.StatusCreated, product)
	}
}

/* =======================
   UPDATE
======================= */

// UpdateProduct accepts multipart (with an optional new image) or JSON. A
// replaced image is removed from disk once the new document is stored.
func UpdateProduct(db *mongo.Database, files *uploads.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/products/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		input, err := parseProductRequest(c)
		if err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var existing models.Product
		err = db.Collection("products").FindOne(ctx, bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}}).Decode(&existing)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		pricing, err := resolvePricingUpdate(existing, pricingUpdate{
			Price:          input.Price,
			CompareAtPrice: input.CompareAtPrice,
			ClearCompareAt: input.ClearCompareAt,
		})
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		set := bson.M{
			"price":     pricing.Price,
			"updatedAt": time.Now().UTC(),
		}
		unset := bson.M{}

		if pricing.CompareAtPrice != nil {
			set["compareAtPrice"] = *pricing.CompareAtPrice
		} else {
			unset["compareAtPrice"] = ""
		}
		if input.Name != nil {
			if *input.Name == "" {
				respondWithError(c, http.StatusBadRequest, route, "name cannot be empty")
				return
			}
			set["name"] = *input.Name
		}
		if input.Description != nil {
			set["description"] = *input.Description
		}
		if input.Brand != nil {
			set["brand"] = *input.Brand
		}
		if input.Stock != nil {
			set["stock"] = *input.Stock
		}
		if input.Published != nil {
			set["published"] = *input.Published
		}
		switch {
		case input.ClearCategory:
			unset["categoryId"] = ""
		case input.CategoryID != nil:
			ok, err := categoryExists(ctx, db, *input.CategoryID)
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			if !ok {
				respondWithError(c, http.StatusBadRequest, route, "category not found")
				return
			}
			set["categoryId"] = *input.CategoryID
		}

		newImage := ""
		if input.Image != nil {
			newImage, err = files.SaveImage(input.Image, "products")
			if err != nil {
				respondUploadError(c, route, err)
				return
			}
			set["imagePath"] = newImage
		}

		update := bson.M{"$set": set}
		if len(unset) > 0 {
			update["$unset"] = unset
		}

		var updated models.Product
		err = db.Collection("products").FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if err != nil {
			discardUpload(c, files, newImage)
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondWithError(c, http.StatusNotFound, route, "product not found")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if newImage != "" && existing.ImagePath != "" && existing.ImagePath != newImage {
			discardUpload(c, files, existing.ImagePath)
		}

		decorateProduct(&updated)
		c.JSON(http.StatusOK, updated)
	}
}

/* =======================
   DELETE
======================= */

// DeleteProduct soft-deletes. Orders keep their item snapshots, and once
// every referencing product is deleted those orders become deletable.
func DeleteProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/products/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		now := time.Now().UTC()
		res, err := db.Collection("products").UpdateOne(ctx,
			bson.M{"_id": id, "isDeleted": bson.M{"$ne": true}},
			bson.M{"$set": bson.M{
				"isDeleted": true,
				"deletedAt": now,
				"published": false,
				"updatedAt": now,
			}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}

		c.Status(http.StatusNoContent)
	}
}
