package controllers

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"learnhub/backend/config"
	"learnhub/backend/models"
	"learnhub/backend/utils"
)

type CategoryController struct {
	DB  *gorm.DB
	Cfg *config.Config
	Log *log.Logger
}

func NewCategoryController(db *gorm.DB, cfg *config.Config, logger *log.Logger) *CategoryController {
	return &CategoryController{DB: db, Cfg: cfg, Log: logger}
}

func (cc *CategoryController) GetCategories(c *fiber.Ctx) error {
	var categories []models.Category
	if err := cc.DB.Order("name").Find(&categories).Error; err != nil {
		cc.Log.Printf("Error fetching categories: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch categories.")
	}

	list := make([]fiber.Map, 0, len(categories))
	for i := range categories {
		list = append(list, categoryMap(&categories[i]))
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Categories fetched successfully.", fiber.Map{
		"categories": list,
	})
}

func (cc *CategoryController) CreateCategory(c *fiber.Ctx) error {
	type CategoryInput struct {
		Name        string `json:"category_name"`
		Description string `json:"category_description"`
	}

	var input CategoryInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Request body must be JSON.")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Category name is required.")
	}

	var existing models.Category
	if err := cc.DB.Where("LOWER(name) = LOWER(?)", name).First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Category '"+name+"' already exists.")
	}

	category := models.Category{Name: name, Description: input.Description}
	if err := cc.DB.Create(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.ErrorResponse(c, fiber.StatusConflict, "Category '"+name+"' already exists.")
		}
		cc.Log.Printf("Error creating category %q: %v", name, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create category.")
	}

	cc.Log.Printf("Category created: %s (ID: %d)", name, category.ID)
	return utils.SuccessResponse(c, fiber.StatusCreated, "Category created successfully.", categoryMap(&category))
}

var errEmptyCategoryName = errors.New("category name cannot be empty")

// getOrCreateCategory finds a category by case-insensitive name or creates
// it with the trimmed name. It runs inside the caller's transaction; the
// create attempt uses a savepoint so a lost creation race leaves the outer
// transaction usable, and the winner is returned from a single re-query.
func getOrCreateCategory(tx *gorm.DB, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errEmptyCategoryName
	}

	var category models.Category
	err := tx.Where("LOWER(name) = LOWER(?)", name).First(&category).Error
	if err == nil {
		return &category, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	category = models.Category{Name: name}
	err = tx.Transaction(func(inner *gorm.DB) error {
		return inner.Create(&category).Error
	})
	if err == nil {
		return &category, nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		var winner models.Category
		if reErr := tx.Where("LOWER(name) = LOWER(?)", name).First(&winner).Error; reErr == nil {
			return &winner, nil
		}
		return nil, fmt.Errorf("failed to create category %q due to conflict", name)
	}
	return nil, err
}
