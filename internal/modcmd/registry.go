package modcmd

import (
	"fmt"
	"sync"

	"ircservd/internal/casefold"
	"ircservd/internal/container"
	"ircservd/internal/logger"
)

// Registry owns every module, service, and pending template reference.
// A process normally has exactly one, but tests construct their own to stay
// isolated.
type Registry struct {
	mu       sync.RWMutex
	modules  map[string]*Module
	services map[string]*Service

	pendingTemplates []pendingTemplate
}

type pendingTemplate struct {
	binding *SvcCmd
	ref     string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		modules:  make(map[string]*Module),
		services: make(map[string]*Service),
	}
}

// RegisterModule creates an empty module (module_register, §4.5.1).
func (r *Registry) RegisterModule(name, logType, helpfileName string, expander func(topic string) (string, bool)) (*Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := casefold.Fold(name, casefold.RFC1459)
	if _, exists := r.modules[key]; exists {
		return nil, fmt.Errorf("modcmd: module %q already registered", name)
	}
	m := newModule(name, logType, helpfileName, expander)
	r.modules[key] = m
	return m, nil
}

// Module looks up a previously registered module by name.
func (r *Registry) Module(name string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[casefold.Fold(name, casefold.RFC1459)]
	return m, ok
}

// Modules returns every registered module, in registration order is not
// preserved (map iteration) — callers that need a stable order should sort
// explicitly, per §9's "Case-folded ordered map" note.
func (r *Registry) Modules() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	return out
}

// RegisterCommand creates a ModCmd with default rules in module
// (modcmd_register, §4.5.1).
func (r *Registry) RegisterCommand(module *Module, name string, fn Func, minArgc int, defaults Rules) (*ModCmd, error) {
	module.mu.Lock()
	defer module.mu.Unlock()
	key := casefold.Fold(name, casefold.RFC1459)
	if _, exists := module.cmds[key]; exists {
		return nil, fmt.Errorf("modcmd: command %q already registered in module %q", name, module.Name)
	}
	cmd := &ModCmd{Module: module, Name: name, Func: fn, MinArgc: minArgc, Defaults: defaults}
	module.cmds[key] = cmd
	return cmd, nil
}

// RegisterService creates a service owning an empty binding map
// (service_register, §4.5.1).
func (r *Registry) RegisterService(name string, trigger byte, privileged bool) (*Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := casefold.Fold(name, casefold.RFC1459)
	if _, exists := r.services[key]; exists {
		return nil, fmt.Errorf("modcmd: service %q already registered", name)
	}
	svc := &Service{
		Name:       name,
		Trigger:    trigger,
		Privileged: privileged,
		bindings:   container.NewOrderedMap[*SvcCmd](casefold.RFC1459),
	}
	r.services[key] = svc
	return svc, nil
}

// Service looks up a previously registered service by name.
func (r *Registry) Service(name string) (*Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[casefold.Fold(name, casefold.RFC1459)]
	return s, ok
}

// ServiceNames returns every registered service's name.
func (r *Registry) ServiceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.services))
	for _, s := range r.services {
		out = append(out, s.Name)
	}
	return out
}

// RenameService changes svc's display name (the "service rename" command,
// §6.3) and re-keys the registry under the new name, so a later
// Service(newName) lookup finds svc and the old name no longer does.
func (r *Registry) RenameService(svc *Service, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	newKey := casefold.Fold(newName, casefold.RFC1459)
	if other, exists := r.services[newKey]; exists && other != svc {
		return fmt.Errorf("modcmd: service %q already registered", newName)
	}
	oldKey := casefold.Fold(svc.Name, casefold.RFC1459)
	delete(r.services, oldKey)
	svc.mu.Lock()
	svc.Name = newName
	svc.mu.Unlock()
	r.services[newKey] = svc
	return nil
}

// RemoveService retires a service entirely ("service remove", §6.3).
func (r *Registry) RemoveService(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := casefold.Fold(name, casefold.RFC1459)
	if _, exists := r.services[key]; !exists {
		return false
	}
	delete(r.services, key)
	return true
}

// UseModule appends module to service's help-search list (§4.5.6).
func (s *Service) UseModule(m *Module) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Modules = append(s.Modules, m)
}

// BindCommand creates a SvcCmd whose rules are copied from the ModCmd's
// defaults (service_bind_modcmd, §4.5.1). If template is non-empty, the
// binding's rules are left at target's defaults until ResolveTemplates runs;
// an unresolved template at that point logs a warning and the binding keeps
// its copied defaults (§4.5.2: "unresolved entries log a warning").
func (r *Registry) BindCommand(svc *Service, target *ModCmd, name, template string) *SvcCmd {
	binding := &SvcCmd{
		Service: svc,
		Name:    name,
		Target:  target,
		Rules:   target.Defaults,
	}
	target.bindCount++

	svc.mu.Lock()
	svc.bindings.Set(name, binding)
	svc.mu.Unlock()

	if template != "" {
		binding.Template = template
		r.mu.Lock()
		r.pendingTemplates = append(r.pendingTemplates, pendingTemplate{binding: binding, ref: template})
		r.mu.Unlock()
	}
	return binding
}

// BindAlias is BindCommand for a binding whose invocation expands an alias
// token list instead of invoking target.Func directly (§4.5.4); target is
// still required so the binding participates in the same bind-count and
// permission machinery.
func (r *Registry) BindAlias(svc *Service, target *ModCmd, name, template string, tokens []string) *SvcCmd {
	b := r.BindCommand(svc, target, name, template)
	b.AliasTokens = tokens
	return b
}

// Unbind removes name from svc's binding map, decrementing the target's
// bind count, unless KeepBound forbids it while it is the last binding.
func (r *Registry) Unbind(svc *Service, name string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	binding, ok := svc.bindings.Get(name)
	if !ok {
		return errNoSuchCommand
	}
	if binding.EffectiveFlags().Has(KeepBound) && binding.Target.bindCount <= 1 {
		return fmt.Errorf("modcmd: %q is the last binding of %q and is marked KEEP_BOUND", name, binding.Target.FullName())
	}
	svc.bindings.Delete(name)
	binding.Target.bindCount--
	return nil
}

// Lookup resolves a (possibly space-joined, per §4.5.5) binding name.
func (s *Service) Lookup(name string) (*SvcCmd, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bindings.Get(name)
}

// Bindings returns every bound name in this service, in registration order.
func (s *Service) Bindings() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bindings.Keys()
}

// ResolveTemplates runs the second pass of template inheritance (§4.5.2,
// §9 "Pending-template fixup"): every binding registered with a template
// reference has its rules merged from the referenced binding (or module
// default, for "*.NAME" references). Must be called once after all modules
// and services finish registering commands.
func (r *Registry) ResolveTemplates() {
	r.mu.Lock()
	pending := r.pendingTemplates
	r.pendingTemplates = nil
	r.mu.Unlock()

	for _, p := range pending {
		rules, ok := r.resolveTemplateRef(p.ref)
		if !ok {
			logger.Warnf("modcmd: binding %q references unresolved template %q", p.binding.Name, p.ref)
			continue
		}
		p.binding.Rules = p.binding.Rules.merge(rules)
	}
}

// resolveTemplateRef resolves "service.binding" or "*.command" (a module's
// default rules for a command of that name, found by scanning modules for a
// ModCmd with that name) into a Rules value.
func (r *Registry) resolveTemplateRef(ref string) (Rules, bool) {
	svcName, cmdName, ok := splitTemplateRef(ref)
	if !ok {
		return Rules{}, false
	}
	if svcName == "*" {
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, m := range r.modules {
			if cmd, ok := m.Command(cmdName); ok {
				return cmd.Defaults, true
			}
		}
		return Rules{}, false
	}
	svc, ok := r.Service(svcName)
	if !ok {
		return Rules{}, false
	}
	binding, ok := svc.Lookup(cmdName)
	if !ok {
		return Rules{}, false
	}
	return binding.Rules, true
}

func splitTemplateRef(ref string) (service, command string, ok bool) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '.' {
			return ref[:i], ref[i+1:], true
		}
	}
	return "", "", false
}
