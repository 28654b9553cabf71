// Package component names the parts of a project packler acts on and
// dispatches actions to them.
package component

import (
	"context"
	"strings"

	"git.home.luguber.info/inful/packler/internal/config"
	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/foundation/normalization"
	"git.home.luguber.info/inful/packler/internal/workspace"
)

// Kind identifies a component variant.
type Kind string

const (
	KindAssets   Kind = "assets"
	KindBackend  Kind = "backend"
	KindFrontend Kind = "frontend"
)

var kindNormalizer = normalization.NewNormalizer(map[string]Kind{
	"assets":   KindAssets,
	"backend":  KindBackend,
	"frontend": KindFrontend,
}, "")

// Action is an operation a component can be asked to perform.
type Action string

const (
	ActionBuild  Action = "build"
	ActionClean  Action = "clean"
	ActionDeploy Action = "deploy"
)

// Component is one selectable part of the project. Name is only set for
// frontends, which are addressed as frontend:<name>.
type Component struct {
	Kind Kind
	Name string
}

// Assets is the asset component.
var Assets = Component{Kind: KindAssets}

// Parse reads a component selector such as "assets", "backend" or
// "frontend:admin".
func Parse(raw string) (Component, error) {
	kindPart, name, hasName := strings.Cut(strings.TrimSpace(raw), ":")
	if strings.TrimSpace(kindPart) == "" {
		return Component{}, perrors.ValidationFailed("components", "empty component name")
	}
	kind, err := kindNormalizer.NormalizeWithError(kindPart)
	if err != nil {
		return Component{}, perrors.ValidationFailed("components", err.Error())
	}
	name = strings.TrimSpace(name)
	switch {
	case hasName && kind != KindFrontend:
		return Component{}, perrors.ValidationFailed("components", "only frontend components take a name: "+raw)
	case hasName && name == "":
		return Component{}, perrors.ValidationFailed("components", "frontend name is empty: "+raw)
	}
	return Component{Kind: kind, Name: name}, nil
}

// ParseAll parses selectors in order, dropping duplicates. An empty list
// selects fallback instead.
func ParseAll(raw, fallback []string) ([]Component, error) {
	if len(raw) == 0 {
		raw = fallback
	}
	seen := make(map[Component]bool, len(raw))
	out := make([]Component, 0, len(raw))
	for _, r := range raw {
		// kong splits repeated and comma separated flags alike
		for _, part := range strings.Split(r, ",") {
			c, err := Parse(part)
			if err != nil {
				return nil, err
			}
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

func (c Component) String() string {
	if c.Name != "" {
		return string(c.Kind) + ":" + c.Name
	}
	return string(c.Kind)
}

// Handler performs one action for the asset component.
type Handler func(ctx context.Context) error

// Dispatch runs action for c. Only the asset component is implemented; the
// others report NotImplemented.
func Dispatch(ctx context.Context, c Component, action Action, assets map[Action]Handler) error {
	switch c.Kind {
	case KindAssets:
		h, ok := assets[action]
		if !ok {
			return perrors.NotImplemented(string(action), c.String())
		}
		return h(ctx)
	case KindBackend, KindFrontend:
		return perrors.NotImplemented(string(action), c.String())
	default:
		return perrors.InternalError("unknown component kind "+string(c.Kind), nil)
	}
}

// WatchPath returns the directory whose changes should rebuild c.
func (c Component) WatchPath(paths config.Paths, ws workspace.Info, cfg config.ComponentsConfig) (string, error) {
	switch c.Kind {
	case KindAssets:
		return paths.AssetsRoot, nil
	case KindBackend:
		if cfg.Backend == "" {
			return "", perrors.ValidationFailed("components.backend", "no backend package configured")
		}
		return commandDir(ws, cfg.Backend)
	case KindFrontend:
		name := c.Name
		if name == "" && len(cfg.Frontend) > 0 {
			name = cfg.Frontend[0]
		}
		return commandDir(ws, name)
	default:
		return "", perrors.InternalError("unknown component kind "+string(c.Kind), nil)
	}
}

func commandDir(ws workspace.Info, name string) (string, error) {
	dir, ok := ws.CommandDir(name)
	if !ok {
		return "", perrors.ValidationFailed("components",
			"no package cmd/"+name+" in workspace; found: "+strings.Join(ws.CommandNames(), ", "))
	}
	return dir, nil
}
