package authz

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Category is the permission class a role holds for a key.
type Category string

const (
	// CategoryAllow grants the key for every subject in the program.
	CategoryAllow Category = "allow"
	// CategoryScoped grants the key only for individually assigned
	// subjects.
	CategoryScoped Category = "scoped"
	// CategoryGated grants the key only behind a just-in-time grant.
	CategoryGated Category = "gated"
	// CategoryNone is the absence of a grant.
	CategoryNone Category = ""
)

// FieldVisibility is the per-field refinement a role may carry.
type FieldVisibility string

const (
	// FieldDefault defers to the general permission for the record.
	FieldDefault FieldVisibility = ""
	// FieldHidden masks the field entirely.
	FieldHidden FieldVisibility = "hidden"
	// FieldView shows the field read-only.
	FieldView FieldVisibility = "view"
	// FieldEdit shows the field and allows changes.
	FieldEdit FieldVisibility = "edit"
)

// RolePolicy is one role's slice of the permission matrix.
type RolePolicy struct {
	Permissions map[string]Category        `json:"permissions"`
	Fields      map[string]FieldVisibility `json:"fields,omitempty"`
}

// Policy is the permission-key-to-category table plus the per-field
// exception table, keyed by role. It is configuration data loaded from
// a file, so an operator can change the matrix without a rebuild.
type Policy struct {
	Label string                `json:"version"`
	Keys  []string              `json:"permission_keys"`
	Roles map[string]RolePolicy `json:"roles"`

	keySet map[string]struct{}
}

// ParsePolicy decodes and validates a policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("authz: parse policy: %w", err)
	}
	if len(p.Keys) == 0 {
		return nil, fmt.Errorf("authz: policy declares no permission keys")
	}
	p.keySet = make(map[string]struct{}, len(p.Keys))
	for _, key := range p.Keys {
		p.keySet[key] = struct{}{}
	}
	for role, rp := range p.Roles {
		for key, cat := range rp.Permissions {
			if _, ok := p.keySet[key]; !ok {
				return nil, fmt.Errorf("authz: role %q references undeclared key %q", role, key)
			}
			switch cat {
			case CategoryAllow, CategoryScoped, CategoryGated:
			default:
				return nil, fmt.Errorf("authz: role %q key %q has invalid category %q", role, key, cat)
			}
		}
		for field, vis := range rp.Fields {
			switch vis {
			case FieldHidden, FieldView, FieldEdit:
			default:
				return nil, fmt.Errorf("authz: role %q field %q has invalid visibility %q", role, field, vis)
			}
		}
	}
	return &p, nil
}

// KnownKey reports whether the key is declared at all. An undeclared
// key is a configuration defect and must fail closed.
func (p *Policy) KnownKey(key string) bool {
	_, ok := p.keySet[key]
	return ok
}

// CategoryFor returns the widest category any of the held roles grants
// for the key: allow beats scoped beats gated beats nothing.
func (p *Policy) CategoryFor(roles []string, key string) Category {
	best := CategoryNone
	for _, role := range roles {
		rp, ok := p.Roles[role]
		if !ok {
			continue
		}
		switch rp.Permissions[key] {
		case CategoryAllow:
			return CategoryAllow
		case CategoryScoped:
			best = CategoryScoped
		case CategoryGated:
			if best != CategoryScoped {
				best = CategoryGated
			}
		}
	}
	return best
}

// FieldVisibilityFor returns the widest per-field setting any held
// role declares, or FieldDefault when no role mentions the field.
func (p *Policy) FieldVisibilityFor(roles []string, field string) FieldVisibility {
	best := FieldDefault
	for _, role := range roles {
		rp, ok := p.Roles[role]
		if !ok {
			continue
		}
		switch rp.Fields[field] {
		case FieldEdit:
			return FieldEdit
		case FieldView:
			best = FieldView
		case FieldHidden:
			if best == FieldDefault {
				best = FieldHidden
			}
		}
	}
	return best
}

// PolicyStore holds the live policy and supports explicit reload. The
// owning process calls Reload after changing the file; nothing
// refreshes on a timer, so there is no hidden staleness window to
// reason about. Version increments on every successful reload and
// salts derived caches.
type PolicyStore struct {
	path    string
	current atomic.Pointer[Policy]
	version atomic.Int64
	reload  singleflight.Group
}

// LoadPolicyStore reads the initial policy from path.
func LoadPolicyStore(path string) (*PolicyStore, error) {
	s := &PolicyStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the live policy.
func (s *PolicyStore) Current() *Policy {
	return s.current.Load()
}

// Version returns the reload counter.
func (s *PolicyStore) Version() int64 {
	return s.version.Load()
}

// Reload re-reads the policy file. Concurrent callers share one read;
// a parse failure leaves the previous policy in place.
func (s *PolicyStore) Reload() error {
	_, err, _ := s.reload.Do("reload", func() (any, error) {
		return nil, s.load()
	})
	return err
}

func (s *PolicyStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("authz: read policy %s: %w", s.path, err)
	}
	policy, err := ParsePolicy(data)
	if err != nil {
		return err
	}
	s.current.Store(policy)
	s.version.Add(1)
	return nil
}
