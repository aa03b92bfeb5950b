package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
	"storefront/internal/uploads"
)

type bannerInput struct {
	Title    *string
	Link     *string
	Position *int
	IsActive *bool
}

// parseBannerForm reads the multipart banner form. The image is handled by
// the caller.
func parseBannerForm(c *gin.Context) (bannerInput, error) {
	if err := c.Request.ParseMultipartForm(maxProductForm); err != nil {
		return bannerInput{}, fmt.Errorf("invalid multipart form: %w", err)
	}

	var in bannerInput
	if v, ok := lastPostForm(c, "title"); ok {
		in.Title = &v
	}
	if v, ok := lastPostForm(c, "link"); ok {
		in.Link = &v
	}
	if v, ok := lastPostForm(c, "position"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return bannerInput{}, fmt.Errorf("invalid position: %q", v)
		}
		in.Position = &n
	}
	if v, ok := lastPostForm(c, "isActive"); ok {
		b, err := parseBoolValue(v)
		if err != nil {
			return bannerInput{}, fmt.Errorf("invalid isActive: %q", v)
		}
		in.IsActive = &b
	}
	return in, nil
}

func GetAllBanners(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/banners"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection("banners").Find(ctx, bson.M{},
			options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		banners := make([]models.Banner, 0)
		if err := cursor.All(ctx, &banners); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": banners})
	}
}

func CreateBanner(db *mongo.Database, files *uploads.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/banners"
		defer handlePanic(c, route)

		in, err := parseBannerForm(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		if in.Title == nil || *in.Title == "" {
			respondWithError(c, http.StatusBadRequest, route, "title required")
			return
		}

		file, err := c.FormFile("image")
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "image required")
			return
		}

		banner := models.Banner{
			Title:     *in.Title,
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		}
		if in.Link != nil {
			banner.Link = *in.Link
		}
		if in.Position != nil {
			banner.Position = *in.Position
		}
		if in.IsActive != nil {
			banner.IsActive = *in.IsActive
		}

		banner.ImagePath, err = files.SaveImage(file, "banners")
		if err != nil {
			respondUploadError(c, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection("banners").InsertOne(ctx, banner)
		if err != nil {
			discardUpload(c, files, banner.ImagePath)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		banner.ID = res.InsertedID.(primitive.ObjectID)

		c.JSON(http.StatusCreated, banner)
	}
}

func UpdateBanner(db *mongo.Database, files *uploads.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/banners/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		in, err := parseBannerForm(c)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		set := bson.M{}
		if in.Title != nil {
			if *in.Title == "" {
				respondWithError(c, http.StatusBadRequest, route, "title cannot be empty")
				return
			}
			set["title"] = *in.Title
		}
		if in.Link != nil {
			set["link"] = *in.Link
		}
		if in.Position != nil {
			set["position"] = *in.Position
		}
		if in.IsActive != nil {
			set["isActive"] = *in.IsActive
		}

		newImage := ""
		if file, err := c.FormFile("image"); err == nil {
			newImage, err = files.SaveImage(file, "banners")
			if err != nil {
				respondUploadError(c, route, err)
				return
			}
			set["imagePath"] = newImage
		}

		if len(set) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no fields to update")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		// The pre-image tells us which file to remove after a replacement.
		var before models.Banner
		err = db.Collection("banners").FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.Before),
		).Decode(&before)
		if err != nil {
			discardUpload(c, files, newImage)
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondWithError(c, http.StatusNotFound, route, "banner not found")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if newImage != "" && before.ImagePath != newImage {
			discardUpload(c, files, before.ImagePath)
		}

		var updated models.Banner
		if err := db.Collection("banners").FindOne(ctx, bson.M{"_id": id}).Decode(&updated); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// DeleteBanner removes the banner and its image. Banners are not referenced
// anywhere else, so the delete is hard.
func DeleteBanner(db *mongo.Database, files *uploads.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/banners/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var removed models.Banner
		err = db.Collection("banners").FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&removed)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "banner not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		discardUpload(c, files, removed.ImagePath)

		c.Status(http.StatusNoContent)
	}
}
