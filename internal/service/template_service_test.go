package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codexcity/internal/logger"
	"codexcity/internal/model"
	"codexcity/internal/repository"
	"codexcity/internal/repository/memory"
	"codexcity/internal/service"
)

func TestTemplateServiceCRUD(t *testing.T) {
	ctx := context.Background()
	templates := service.NewTemplateService(memory.NewInMemoryTemplateRepository(), logger.Nop())

	created, err := templates.CreateTemplate(ctx, "user-1", model.CategoryBilling, "Re: [Subject]", "Hi [Name]", true)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryBilling, created.Category)
	assert.True(t, created.IsActive)

	fetched, err := templates.GetTemplate(ctx, "user-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)

	// Other users cannot see it.
	_, err = templates.GetTemplate(ctx, "user-2", created.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	body := "Hello [Name]"
	inactive := false
	updated, err := templates.UpdateTemplate(ctx, "user-1", created.ID, service.TemplateUpdate{Body: &body, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Hello [Name]", updated.Body)
	assert.Equal(t, "Re: [Subject]", updated.Subject)
	assert.False(t, updated.IsActive)

	all, err := templates.ListTemplates(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	active, err := templates.ListActiveTemplates(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, templates.DeleteTemplate(ctx, "user-2", created.ID), repository.ErrNotFound)
	require.NoError(t, templates.DeleteTemplate(ctx, "user-1", created.ID))
	_, err = templates.GetTemplate(ctx, "user-1", created.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTemplateServiceRejectsUnknownCategory(t *testing.T) {
	ctx := context.Background()
	templates := service.NewTemplateService(memory.NewInMemoryTemplateRepository(), logger.Nop())

	_, err := templates.CreateTemplate(ctx, "user-1", model.Category("spam"), "s", "b", true)
	assert.ErrorIs(t, err, service.ErrInvalidCategory)

	created, err := templates.CreateTemplate(ctx, "user-1", model.CategoryOrder, "s", "b", true)
	require.NoError(t, err)

	bad := model.Category("spam")
	_, err = templates.UpdateTemplate(ctx, "user-1", created.ID, service.TemplateUpdate{Category: &bad})
	assert.ErrorIs(t, err, service.ErrInvalidCategory)
}

func TestSeedDefaults(t *testing.T) {
	ctx := context.Background()
	templates := service.NewTemplateService(memory.NewInMemoryTemplateRepository(), logger.Nop())

	_, err := templates.CreateTemplate(ctx, "user-1", model.CategorySupport, "Custom", "Custom body", false)
	require.NoError(t, err)

	require.NoError(t, templates.SeedDefaults(ctx, "user-1"))
	require.NoError(t, templates.SeedDefaults(ctx, "user-1"))

	all, err := templates.ListTemplates(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, all, 3)

	byCategory := make(map[model.Category]*model.Template)
	for _, tmpl := range all {
		byCategory[tmpl.Category] = tmpl
	}
	assert.Equal(t, "Custom", byCategory[model.CategorySupport].Subject)
	assert.True(t, byCategory[model.CategoryOrder].IsActive)
	assert.Contains(t, byCategory[model.CategoryOrder].Body, "[Name]")
	assert.Equal(t, "Re: [Subject]", byCategory[model.CategoryGeneral].Subject)
}
