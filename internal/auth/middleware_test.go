package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-ticket/internal/domain"
	"github.com/spec-kit/service-ticket/internal/repository"
	apperrors "github.com/spec-kit/service-ticket/pkg/util/errorutil"
)

type stubUsers struct {
	users map[string]*domain.User
}

func (s *stubUsers) Create(context.Context, *domain.User) error { return nil }

func (s *stubUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubUsers) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

func (s *stubUsers) List(context.Context) ([]domain.User, error) { return nil, nil }

func newTestApp(tm *TokenManager, users repository.UserRepository) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	mw := NewAuthMiddleware(tm, users)
	app.Get("/any", mw.Handle, func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.ID)
	})
	app.Post("/manager", mw.Handle, RequireRole(domain.UserRoleManager), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	associate := &domain.User{ID: "a-1", Username: "ash", Role: domain.UserRoleAssociate}
	manager := &domain.User{ID: "m-1", Username: "mo", Role: domain.UserRoleManager}
	ghost := &domain.User{ID: "gone", Username: "ghost", Role: domain.UserRoleManager}
	users := &stubUsers{users: map[string]*domain.User{"a-1": associate, "m-1": manager}}
	app := newTestApp(tm, users)

	token := func(u *domain.User) string {
		s, _, err := tm.GenerateToken(u)
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		return "Bearer " + s
	}

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{name: "missing header", method: http.MethodGet, path: "/any", want: http.StatusUnauthorized},
		{name: "bad scheme", method: http.MethodGet, path: "/any", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "unknown user", method: http.MethodGet, path: "/any", header: token(ghost), want: http.StatusUnauthorized},
		{name: "associate allowed", method: http.MethodGet, path: "/any", header: token(associate), want: http.StatusOK},
		{name: "associate forbidden on manager route", method: http.MethodPost, path: "/manager", header: token(associate), want: http.StatusForbidden},
		{name: "manager allowed", method: http.MethodPost, path: "/manager", header: token(manager), want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
