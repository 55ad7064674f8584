package services

import (
	"context"
	"io"
	"log"
	"strings"

	"github.com/pkg/errors"

	"short-drama-service/internal/assets"
	"short-drama-service/internal/models"
	"short-drama-service/internal/repository"
)

const defaultCharacterName = "新角色"

type CharacterService struct {
	store  repository.Store
	assets assets.Store
}

func NewCharacterService(store repository.Store, assetStore assets.Store) *CharacterService {
	return &CharacterService{store: store, assets: assetStore}
}

func (s *CharacterService) ListCharacters(userID string) ([]models.Character, error) {
	return s.store.ListCharacters(userID)
}

// CreateCharacter stores a new character. Name defaults to 新角色 and role to supporting.
func (s *CharacterService) CreateCharacter(userID string, in models.CharacterPatch) (*models.Character, error) {
	character := &models.Character{UserID: userID, Name: defaultCharacterName, Role: models.RoleSupporting}
	in.Apply(character)
	if strings.TrimSpace(character.Name) == "" {
		character.Name = defaultCharacterName
	}
	if character.Role == "" {
		character.Role = models.RoleSupporting
	}
	if !models.ValidRole(character.Role) {
		return nil, invalid("Invalid role")
	}

	if err := s.store.CreateCharacter(character); err != nil {
		return nil, err
	}
	return character, nil
}

func (s *CharacterService) GetCharacter(userID, id string) (*models.Character, error) {
	character, err := s.store.GetCharacter(id)
	if err != nil {
		return nil, err
	}
	if character == nil || character.UserID != userID {
		return nil, ErrNotFound
	}
	return character, nil
}

func (s *CharacterService) UpdateCharacter(userID, id string, patch models.CharacterPatch) (*models.Character, error) {
	if _, err := s.GetCharacter(userID, id); err != nil {
		return nil, err
	}
	if patch.Role != nil && !models.ValidRole(*patch.Role) {
		return nil, invalid("Invalid role")
	}

	character, err := s.store.UpdateCharacter(id, patch)
	if err != nil {
		return nil, err
	}
	if character == nil {
		return nil, ErrNotFound
	}
	return character, nil
}

func (s *CharacterService) DeleteCharacter(userID, id string) error {
	if _, err := s.GetCharacter(userID, id); err != nil {
		return err
	}
	return s.store.DeleteCharacter(id)
}

// AttachImage uploads a portrait for the character and stores its URL.
func (s *CharacterService) AttachImage(ctx context.Context, userID, id, filename string, size int64, r io.Reader) (*models.Character, error) {
	if _, err := s.GetCharacter(userID, id); err != nil {
		return nil, err
	}

	key, contentType, err := assets.CharacterImageKey(id, filename)
	if err != nil {
		if errors.Is(err, assets.ErrUnsupportedType) {
			return nil, invalid("Unsupported image type, use png, jpg or webp")
		}
		return nil, err
	}
	url, err := s.assets.Put(ctx, key, r, size, contentType)
	if err != nil {
		return nil, errors.Wrap(err, "store character image")
	}

	character, err := s.store.UpdateCharacter(id, models.CharacterPatch{ImageURL: &url})
	if err != nil {
		if delErr := s.assets.Delete(ctx, key); delErr != nil {
			log.Printf("Error removing orphaned asset %s: %v", key, delErr)
		}
		return nil, err
	}
	if character == nil {
		return nil, ErrNotFound
	}
	return character, nil
}
