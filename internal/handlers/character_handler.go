package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"short-drama-service/internal/models"
	"short-drama-service/internal/services"
)

type CharacterHandler struct {
	characters *services.CharacterService
}

func NewCharacterHandler(characters *services.CharacterService) *CharacterHandler {
	return &CharacterHandler{characters: characters}
}

// ListCharacters
// @Summary List characters
// @Tags characters
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string][]models.Character
// @Router /api/characters [get]
func (h *CharacterHandler) ListCharacters(c *fiber.Ctx) error {
	characters, err := h.characters.ListCharacters(userID(c))
	if err != nil {
		return serviceError(c, "listing characters", "Character not found", err)
	}
	return c.JSON(fiber.Map{"characters": characters})
}

// CreateCharacter
// @Summary Create a character
// @Description Name defaults to 新角色 and role to supporting
// @Tags characters
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param character body models.CharacterPatch true "Character data"
// @Success 201 {object} map[string]models.Character
// @Failure 400 {object} errorResponse "Invalid role"
// @Router /api/characters [post]
func (h *CharacterHandler) CreateCharacter(c *fiber.Ctx) error {
	var in models.CharacterPatch
	if ok, err := parseBody(c, &in); !ok {
		return err
	}

	character, err := h.characters.CreateCharacter(userID(c), in)
	if err != nil {
		return serviceError(c, "creating character", "Character not found", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"character": character})
}

// GetCharacter
// @Summary Get a character
// @Tags characters
// @Produce json
// @Security BearerAuth
// @Param id path string true "Character ID"
// @Success 200 {object} map[string]models.Character
// @Failure 404 {object} errorResponse "Character not found"
// @Router /api/characters/{id} [get]
func (h *CharacterHandler) GetCharacter(c *fiber.Ctx) error {
	character, err := h.characters.GetCharacter(userID(c), c.Params("id"))
	if err != nil {
		return serviceError(c, "fetching character", "Character not found", err)
	}
	return c.JSON(fiber.Map{"character": character})
}

// UpdateCharacter
// @Summary Update a character
// @Tags characters
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Character ID"
// @Param character body models.CharacterPatch true "Fields to change"
// @Success 200 {object} map[string]models.Character
// @Failure 400 {object} errorResponse "Invalid role"
// @Failure 404 {object} errorResponse "Character not found"
// @Router /api/characters/{id} [put]
func (h *CharacterHandler) UpdateCharacter(c *fiber.Ctx) error {
	var patch models.CharacterPatch
	if ok, err := parseBody(c, &patch); !ok {
		return err
	}

	character, err := h.characters.UpdateCharacter(userID(c), c.Params("id"), patch)
	if err != nil {
		return serviceError(c, "updating character", "Character not found", err)
	}
	return c.JSON(fiber.Map{"character": character})
}

// DeleteCharacter
// @Summary Delete a character
// @Tags characters
// @Produce json
// @Security BearerAuth
// @Param id path string true "Character ID"
// @Success 200 {object} successResponse
// @Failure 404 {object} errorResponse "Character not found"
// @Router /api/characters/{id} [delete]
func (h *CharacterHandler) DeleteCharacter(c *fiber.Ctx) error {
	if err := h.characters.DeleteCharacter(userID(c), c.Params("id")); err != nil {
		return serviceError(c, "deleting character", "Character not found", err)
	}
	return c.JSON(successResponse{Success: true})
}

// UploadImage stores a portrait for the character
// @Summary Upload a character image
// @Tags characters
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Character ID"
// @Param file formData file true "Image (png, jpg or webp)"
// @Success 200 {object} map[string]models.Character
// @Failure 400 {object} errorResponse "Missing or unsupported file"
// @Failure 404 {object} errorResponse "Character not found"
// @Router /api/characters/{id}/image [post]
func (h *CharacterHandler) UploadImage(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Missing file")
	}
	file, err := header.Open()
	if err != nil {
		log.Printf("Error opening uploaded file: %v", err)
		return fail(c, fiber.StatusBadRequest, "Invalid file")
	}
	defer file.Close()

	character, err := h.characters.AttachImage(c.UserContext(), userID(c), c.Params("id"), header.Filename, header.Size, file)
	if err != nil {
		return serviceError(c, "uploading character image", "Character not found", err)
	}
	return c.JSON(fiber.Map{"character": character})
}
