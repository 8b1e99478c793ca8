package service

import (
	"context"
	"fmt"
	"time"

	"codexcity/internal/logger"
	"codexcity/internal/model"
	"codexcity/internal/repository"
)

var defaultTemplates = map[model.Category]struct{ subject, body string }{
	model.CategoryOrder: {
		subject: "Re: [Subject]",
		body: "<p>Hi [Name],</p>" +
			"<p>Thanks for reaching out about your order. We are checking on order [OrderNumber] and will follow up shortly.</p>" +
			"<p>Reference: [TicketID]</p>",
	},
	model.CategorySupport: {
		subject: "Re: [Subject]",
		body: "<p>Hi [Name],</p>" +
			"<p>Thanks for contacting support. We have received your request and someone from the team will get back to you soon.</p>" +
			"<p>Ticket: [TicketID]</p>",
	},
	model.CategoryGeneral: {
		subject: "Re: [Subject]",
		body: "<p>Hi [Name],</p>" +
			"<p>Thanks for your email. We have received your message and will reply as soon as we can.</p>",
	},
}

type templateService struct {
	templateRepo repository.TemplateRepository
	logger       *logger.Logger
}

func NewTemplateService(templateRepo repository.TemplateRepository, logger *logger.Logger) TemplateService {
	return &templateService{
		templateRepo: templateRepo,
		logger:       logger.With("templates"),
	}
}

func (s *templateService) CreateTemplate(ctx context.Context, userID string, category model.Category, subject, body string, isActive bool) (*model.Template, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	template := model.NewTemplate(userID, category, subject, body)
	template.IsActive = isActive
	if err := s.templateRepo.Create(ctx, template); err != nil {
		s.logger.Error("Failed to create template:", err)
		return nil, err
	}
	s.logger.Info("Created template:", template.ID, "category:", category)
	return template, nil
}

// GetTemplate hides templates owned by other users behind ErrNotFound.
func (s *templateService) GetTemplate(ctx context.Context, userID, templateID string) (*model.Template, error) {
	template, err := s.templateRepo.FindByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if template.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return template, nil
}

func (s *templateService) ListTemplates(ctx context.Context, userID string) ([]*model.Template, error) {
	return s.templateRepo.FindByUserID(ctx, userID)
}

func (s *templateService) ListActiveTemplates(ctx context.Context, userID string) ([]*model.Template, error) {
	templates, err := s.templateRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	active := templates[:0]
	for _, t := range templates {
		if t.IsActive {
			active = append(active, t)
		}
	}
	return active, nil
}

func (s *templateService) UpdateTemplate(ctx context.Context, userID, templateID string, update TemplateUpdate) (*model.Template, error) {
	template, err := s.GetTemplate(ctx, userID, templateID)
	if err != nil {
		return nil, err
	}

	if update.Category != nil {
		if !update.Category.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, *update.Category)
		}
		template.Category = *update.Category
	}
	if update.Subject != nil {
		template.Subject = *update.Subject
	}
	if update.Body != nil {
		template.Body = *update.Body
	}
	if update.IsActive != nil {
		template.IsActive = *update.IsActive
	}
	template.UpdatedAt = time.Now()

	if err := s.templateRepo.Update(ctx, template); err != nil {
		s.logger.Error("Failed to update template:", err)
		return nil, err
	}
	s.logger.Info("Updated template:", template.ID)
	return template, nil
}

func (s *templateService) DeleteTemplate(ctx context.Context, userID, templateID string) error {
	template, err := s.GetTemplate(ctx, userID, templateID)
	if err != nil {
		return err
	}

	if err := s.templateRepo.Delete(ctx, template.ID); err != nil {
		s.logger.Error("Failed to delete template:", err)
		return err
	}
	s.logger.Info("Deleted template:", template.ID)
	return nil
}

// SeedDefaults creates an active default template for each base category
// the user has no template for yet. Running it again is a no-op.
func (s *templateService) SeedDefaults(ctx context.Context, userID string) error {
	existing, err := s.templateRepo.FindByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	have := make(map[model.Category]bool, len(existing))
	for _, t := range existing {
		have[t.Category] = true
	}

	for _, category := range model.BaseCategories() {
		if have[category] {
			continue
		}
		def := defaultTemplates[category]
		template := model.NewTemplate(userID, category, def.subject, def.body)
		if err := s.templateRepo.Create(ctx, template); err != nil {
			return fmt.Errorf("failed to seed %s template: %w", category, err)
		}
		s.logger.Info("Seeded default template:", category, "for user:", userID)
	}
	return nil
}
