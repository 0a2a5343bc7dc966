// internal/template/renderer.go
package template

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"notification-dispatch/internal/common/logger"
)

// RenderedMessage is the substituted subject/content pair handed to a
// channel sender.
type RenderedMessage struct {
	Subject      string
	Content      string
	TemplateName string // empty when the fallback path was taken
}

// Renderer resolves a template by name and substitutes {{var}} tokens.
// Missing templates degrade to the verbatim fallback so the pipeline never
// blocks on template configuration.
type Renderer struct {
	store Store
	log   logger.Logger
}

func NewRenderer(store Store, log logger.Logger) *Renderer {
	return &Renderer{
		store: store,
		log:   log.WithFields(map[string]interface{}{"component": "template-renderer"}),
	}
}

func (r *Renderer) Render(ctx context.Context, templateName string, variables map[string]any, fallbackSubject, fallbackContent string) RenderedMessage {
	if templateName == "" {
		return RenderedMessage{Subject: fallbackSubject, Content: fallbackContent}
	}

	tmpl, err := r.store.GetActive(ctx, templateName)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.log.Warn("template lookup failed, using fallback", map[string]interface{}{
				"template": templateName, "error": err.Error(),
			})
		} else {
			r.log.Debug("template not found, using fallback", map[string]interface{}{
				"template": templateName,
			})
		}
		return RenderedMessage{Subject: fallbackSubject, Content: fallbackContent}
	}

	return RenderedMessage{
		Subject:      Substitute(tmpl.Subject, variables),
		Content:      Substitute(tmpl.Body, variables),
		TemplateName: tmpl.Name,
	}
}

// Substitute replaces every {{name}} token with the string form of the
// matching variable. Unknown tokens stay literally in the output so a gap
// is visible in logs and history records. No escaping is performed here;
// HTML channels escape at the sender.
func Substitute(text string, variables map[string]any) string {
	if len(variables) == 0 {
		return text
	}
	result := text
	for k, v := range variables {
		placeholder := "{{" + k + "}}"
		if !strings.Contains(result, placeholder) {
			continue
		}
		result = strings.ReplaceAll(result, placeholder, stringify(v))
	}
	return result
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		// JSON numbers decode as float64; keep integral values clean
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
