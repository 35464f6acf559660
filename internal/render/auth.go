package render

import "github.com/Annany2002/nebula-apigen/internal/domain"

// Auth scaffold files. They are project-wide; main.go applies the
// middleware to the whole /api/v1 group.
const (
	AuthMiddlewarePath = "middleware/auth.go"
	TokenCommandPath   = "cmd/gentoken/main.go"
)

func (r *Renderer) renderAuth(p projectData) ([]domain.RenderedFile, error) {
	middleware, err := r.execute(AuthMiddlewarePath, "auth_middleware.go.tmpl", p)
	if err != nil {
		return nil, err
	}
	command, err := r.execute(TokenCommandPath, "gentoken.go.tmpl", p)
	if err != nil {
		return nil, err
	}
	customLog.Println("Render: Added JWT auth scaffold")
	return []domain.RenderedFile{middleware, command}, nil
}
