package api

import "github.com/wuwenbin0122/recipebox/internal/models"

// userResponse lists every user field that may leave the service.
type userResponse struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	ImageURL *string `json:"image_url"`
	Bio      *string `json:"bio"`
}

type recipeResponse struct {
	ID                int64         `json:"id"`
	Title             string        `json:"title"`
	Instructions      string        `json:"instructions"`
	MinutesToComplete int           `json:"minutes_to_complete"`
	User              *userResponse `json:"user"`
}

func newUserResponse(user *models.User) *userResponse {
	if user == nil {
		return nil
	}
	return &userResponse{
		ID:       user.ID,
		Username: user.Username,
		ImageURL: user.ImageURL,
		Bio:      user.Bio,
	}
}

func newRecipeResponse(recipe models.Recipe) recipeResponse {
	return recipeResponse{
		ID:                recipe.ID,
		Title:             recipe.Title,
		Instructions:      recipe.Instructions,
		MinutesToComplete: recipe.MinutesToComplete,
		User:              newUserResponse(recipe.User),
	}
}

func newRecipeResponses(recipes []models.Recipe) []recipeResponse {
	out := make([]recipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		out = append(out, newRecipeResponse(recipe))
	}
	return out
}
