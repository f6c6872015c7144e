package db

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wuwenbin0122/recipebox/internal/models"
)

// MemoryStore is an in-process store with the same constraints as the
// postgres schema: unique usernames and recipe owners that exist.
type MemoryStore struct {
	mu           sync.RWMutex
	nextUserID   int64
	nextRecipeID int64
	users        map[int64]models.User
	usersByName  map[string]int64
	recipes      map[int64]models.Recipe
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[int64]models.User),
		usersByName: make(map[string]int64),
		recipes:     make(map[int64]models.Recipe),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.usersByName[user.Username]; exists {
		return fmt.Errorf("memory: insert user: %w", ErrDuplicate)
	}

	m.nextUserID++
	stored := *user
	stored.ID = m.nextUserID
	m.users[stored.ID] = stored
	m.usersByName[stored.Username] = stored.ID

	user.ID = stored.ID
	return nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.usersByName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	user := m.users[id]
	return &user, nil
}

// DeleteUser removes a user and detaches its recipes, mirroring ON DELETE
// SET NULL.
func (m *MemoryStore) DeleteUser(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(m.users, id)
	delete(m.usersByName, user.Username)

	for recipeID, recipe := range m.recipes {
		if recipe.UserID != nil && *recipe.UserID == id {
			recipe.UserID = nil
			m.recipes[recipeID] = recipe
		}
	}
	return nil
}

func (m *MemoryStore) CreateRecipe(_ context.Context, recipe *models.Recipe) error {
	if err := recipe.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[*recipe.UserID]; !ok {
		return fmt.Errorf("memory: insert recipe: %w", ErrForeignKey)
	}

	m.nextRecipeID++
	ownerID := *recipe.UserID
	stored := models.Recipe{
		ID:                m.nextRecipeID,
		Title:             recipe.Title,
		Instructions:      recipe.Instructions,
		MinutesToComplete: recipe.MinutesToComplete,
		UserID:            &ownerID,
	}
	m.recipes[stored.ID] = stored

	*recipe = m.withOwnerLocked(stored)
	return nil
}

func (m *MemoryStore) ListRecipes(_ context.Context) ([]models.Recipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recipes := make([]models.Recipe, 0, len(m.recipes))
	for _, recipe := range m.recipes {
		recipes = append(recipes, m.withOwnerLocked(recipe))
	}
	sort.Slice(recipes, func(i, j int) bool { return recipes[i].ID < recipes[j].ID })

	return recipes, nil
}

func (m *MemoryStore) CountUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

func (m *MemoryStore) CountRecipes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.recipes)
}

func (m *MemoryStore) withOwnerLocked(recipe models.Recipe) models.Recipe {
	if recipe.UserID == nil {
		return recipe
	}
	ownerID := *recipe.UserID
	recipe.UserID = &ownerID
	if owner, ok := m.users[ownerID]; ok {
		recipe.User = &models.User{
			ID:       owner.ID,
			Username: owner.Username,
			ImageURL: owner.ImageURL,
			Bio:      owner.Bio,
		}
	}
	return recipe
}
