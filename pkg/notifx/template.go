package notifx

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"io/fs"
	"path"
	"strings"
	"sync"
	texttemplate "text/template"
)

//go:embed templates/*.html
var defaultTemplates embed.FS

var defaultSubjects = map[string]string{
	TemplateEmailVerification: "Verify your email",
	TemplatePasswordReset:     "Reset your password",
}

type emailTemplate struct {
	subject *texttemplate.Template
	html    *htmltemplate.Template
}

// Rendered is a template executed against its merge fields.
type Rendered struct {
	Subject string
	HTML    string
}

// TemplateRegistry stores and renders named email templates.
type TemplateRegistry struct {
	templates map[string]emailTemplate
	mu        sync.RWMutex
}

// NewTemplateRegistry creates an empty template registry.
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{
		templates: make(map[string]emailTemplate),
	}
}

// NewDefaultTemplateRegistry returns a registry holding the built-in
// verification and password reset templates.
func NewDefaultTemplateRegistry() (*TemplateRegistry, error) {
	r := NewTemplateRegistry()
	if err := r.LoadFS(defaultTemplates, "templates"); err != nil {
		return nil, err
	}
	return r, nil
}

// Register parses and stores a template by name. subject is itself a text template.
func (r *TemplateRegistry) Register(name, subject, htmlBody string) error {
	s, err := texttemplate.New(name + ".subject").Parse(subject)
	if err != nil {
		return notifxErrors.NewWithCause(ErrTemplateParse, err).WithDetail("template", name)
	}
	h, err := htmltemplate.New(name).Option("missingkey=error").Parse(htmlBody)
	if err != nil {
		return notifxErrors.NewWithCause(ErrTemplateParse, err).WithDetail("template", name)
	}

	r.mu.Lock()
	r.templates[name] = emailTemplate{subject: s, html: h}
	r.mu.Unlock()

	return nil
}

// LoadFS registers every *.html file under dir, keyed by its base name.
// Files for keys already registered replace the previous template.
func (r *TemplateRegistry) LoadFS(fsys fs.FS, dir string) error {
	matches, err := fs.Glob(fsys, path.Join(dir, "*.html"))
	if err != nil {
		return notifxErrors.NewWithCause(ErrTemplateParse, err).WithDetail("dir", dir)
	}
	for _, file := range matches {
		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return notifxErrors.NewWithCause(ErrTemplateParse, err).WithDetail("template", file)
		}
		name := strings.TrimSuffix(path.Base(file), ".html")
		subject, ok := defaultSubjects[name]
		if !ok {
			subject = name
		}
		if err := r.Register(name, subject, string(body)); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether name is registered.
func (r *TemplateRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.templates[name]
	return ok
}

// Render executes a named template with the given data.
func (r *TemplateRegistry) Render(name string, data any) (Rendered, error) {
	r.mu.RLock()
	t, ok := r.templates[name]
	r.mu.RUnlock()

	if !ok {
		return Rendered{}, notifxErrors.New(ErrTemplateNotFound).WithDetail("template", name)
	}

	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return Rendered{}, notifxErrors.NewWithCause(ErrTemplateRender, err).WithDetail("template", name)
	}
	if err := t.html.Execute(&body, data); err != nil {
		return Rendered{}, notifxErrors.NewWithCause(ErrTemplateRender, err).WithDetail("template", name)
	}

	return Rendered{Subject: subject.String(), HTML: body.String()}, nil
}
