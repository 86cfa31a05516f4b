package markup

import (
	"fmt"
	"strings"

	urlkit "github.com/goliatone/go-urlkit"
	"github.com/google/uuid"
)

// Route group and route names the rewriter resolves link targets against.
const (
	DefaultRouteGroup = "site"

	routePage = "page"
	routeTag  = "tag"
)

// DefaultRoutes is the route layout used when the host application does not
// supply one: pages at /:workspace/:slug, tags at /:workspace/tags/:tag.
// Custom layouts must define the same group/route names (or name their group
// explicitly) with :workspace plus :slug or :tag parameters.
func DefaultRoutes() *urlkit.Config {
	return &urlkit.Config{
		Groups: []urlkit.GroupConfig{
			{
				Name: DefaultRouteGroup,
				Paths: map[string]string{
					routePage: "/:workspace/:slug",
					routeTag:  "/:workspace/tags/:tag",
				},
			},
		},
	}
}

// Links resolves page and tag link targets through a go-urlkit route manager,
// so the emitted URL layout is route configuration rather than code.
type Links struct {
	manager *urlkit.RouteManager
	group   string
}

// NewLinks builds a resolver from a route configuration. A nil configuration
// or empty group name falls back to the defaults.
func NewLinks(cfg *urlkit.Config, group string) *Links {
	if cfg == nil {
		cfg = DefaultRoutes()
	}
	if strings.TrimSpace(group) == "" {
		group = DefaultRouteGroup
	}
	return &Links{manager: urlkit.NewRouteManager(cfg), group: group}
}

// PageURL resolves the link target for a page reference.
func (l *Links) PageURL(workspaceID uuid.UUID, pageSlug string) (string, error) {
	return l.build(routePage, map[string]any{
		"workspace": workspaceID.String(),
		"slug":      pageSlug,
	})
}

// TagURL resolves the link target for a hashtag.
func (l *Links) TagURL(workspaceID uuid.UUID, tag string) (string, error) {
	return l.build(routeTag, map[string]any{
		"workspace": workspaceID.String(),
		"tag":       strings.ToLower(tag),
	})
}

func (l *Links) build(route string, params map[string]any) (string, error) {
	group, err := lookupGroup(l.manager, l.group)
	if err != nil {
		return "", err
	}
	builder, err := safeBuilder(group, route)
	if err != nil {
		return "", err
	}
	for key, val := range params {
		builder.WithParam(key, val)
	}
	return builder.Build()
}

// lookupGroup and safeBuilder shield callers from urlkit's panic on unknown
// group or route names, which with a custom layout is a configuration error
// rather than a programming one.
func lookupGroup(manager *urlkit.RouteManager, name string) (group *urlkit.Group, err error) {
	if manager == nil {
		return nil, fmt.Errorf("markup: route manager not configured")
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("markup: route group %q not found", name)
		}
	}()
	group = manager.Group(name)
	return group, err
}

func safeBuilder(group *urlkit.Group, route string) (builder *urlkit.Builder, err error) {
	if group == nil {
		return nil, fmt.Errorf("markup: urlkit group is nil")
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("markup: route %q not found: %v", route, rec)
		}
	}()
	builder = group.Builder(route)
	return builder, err
}
