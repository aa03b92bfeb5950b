package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxProductForm = 32 << 20

// productInput is a create or update payload. Nil means "not sent".
type productInput struct {
	Name           *string
	Description    *string
	Brand          *string
	Price          *decimal.Decimal
	CompareAtPrice *decimal.Decimal
	ClearCompareAt bool
	Stock          *int
	CategoryID     *primitive.ObjectID
	ClearCategory  bool
	Published      *bool
	Image          *multipart.FileHeader
}

type productJSONRequest struct {
	Name                *string          `json:"name" binding:"omitempty,max=200"`
	Description         *string          `json:"description" binding:"omitempty,max=5000"`
	Brand               *string          `json:"brand" binding:"omitempty,max=100"`
	Price               *decimal.Decimal `json:"price"`
	CompareAtPrice      *decimal.Decimal `json:"compareAtPrice"`
	ClearCompareAtPrice bool             `json:"clearCompareAtPrice"`
	Stock               *int             `json:"stock" binding:"omitempty,min=0"`
	CategoryID          *string          `json:"categoryId"`
	Published           *bool            `json:"published"`
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

func parseProductRequest(c *gin.Context) (productInput, error) {
	if isMultipart(c) {
		return parseMultipartProductRequest(c)
	}

	var req productJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return productInput{}, err
	}

	input := productInput{
		Name:           trimmed(req.Name),
		Description:    trimmed(req.Description),
		Brand:          trimmed(req.Brand),
		Price:          req.Price,
		CompareAtPrice: req.CompareAtPrice,
		ClearCompareAt: req.ClearCompareAtPrice,
		Stock:          req.Stock,
		Published:      req.Published,
	}
	if req.CategoryID != nil {
		if err := input.setCategory(*req.CategoryID); err != nil {
			return productInput{}, err
		}
	}
	return input, nil
}

func parseMultipartProductRequest(c *gin.Context) (productInput, error) {
	if err := c.Request.ParseMultipartForm(maxProductForm); err != nil {
		return productInput{}, fmt.Errorf("invalid multipart form: %w", err)
	}

	input := productInput{}

	if value, ok := lastPostForm(c, "name"); ok {
		input.Name = &value
	}
	if value, ok := lastPostForm(c, "description"); ok {
		input.Description = &value
	}
	if value, ok := lastPostForm(c, "brand"); ok {
		input.Brand = &value
	}

	if value, ok := lastPostForm(c, "price"); ok {
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return productInput{}, fmt.Errorf("invalid price: %q", value)
		}
		input.Price = &parsed
	}

	if value, ok := lastPostForm(c, "compareAtPrice"); ok {
		if value == "" {
			input.ClearCompareAt = true
		} else {
			parsed, err := decimal.NewFromString(value)
			if err != nil {
				return productInput{}, fmt.Errorf("invalid compareAtPrice: %q", value)
			}
			input.CompareAtPrice = &parsed
		}
	}

	if value, ok := lastPostForm(c, "stock"); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			return productInput{}, fmt.Errorf("invalid stock: %q", value)
		}
		input.Stock = &parsed
	}

	if value, ok := lastPostForm(c, "published"); ok {
		parsed, err := parseBoolValue(value)
		if err != nil {
			return productInput{}, fmt.Errorf("invalid published: %q", value)
		}
		input.Published = &parsed
	}

	if value, ok := lastPostForm(c, "categoryId"); ok {
		if err := input.setCategory(value); err != nil {
			return productInput{}, err
		}
	}

	file, err := c.FormFile("image")
	switch {
	case err == nil:
		input.Image = file
	case errors.Is(err, http.ErrMissingFile):
	default:
		return productInput{}, err
	}

	return input, nil
}

func (in *productInput) setCategory(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		in.ClearCategory = true
		return nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return fmt.Errorf("invalid categoryId: %q", raw)
	}
	in.CategoryID = &id
	return nil
}

// lastPostForm returns the last value sent for key. Dashboard forms that
// toggle a checkbox send the hidden default first.
func lastPostForm(c *gin.Context, key string) (string, bool) {
	values, ok := c.GetPostFormArray(key)
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[len(values)-1]), true
}

func parseBoolValue(value string) (bool, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "on" {
		return true, nil
	}
	return strconv.ParseBool(value)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
