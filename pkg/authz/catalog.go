package authz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/aquasense/identity/pkg/store"
)

// Catalog is a declarative description of the shared role and permission
// catalog, typically loaded from a YAML file at startup:
//
//	permissions:
//	  - name: orders.read
//	    description: Read access to orders
//	roles:
//	  - name: admin
//	    description: Full access
//	    permissions: [orders.read, orders.write]
type Catalog struct {
	Permissions []CatalogPermission `yaml:"permissions"`
	Roles       []CatalogRole       `yaml:"roles"`
}

// CatalogPermission declares one permission by unique name.
type CatalogPermission struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// CatalogRole declares one role and the permission names it grants.
type CatalogRole struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// LoadCatalog parses a catalog document from the reader.
func LoadCatalog(r io.Reader) (Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return Catalog{}, errors.Join(ErrInvalidCatalog, err)
	}
	if err := cat.validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

// LoadCatalogFile parses a catalog document from the file at path.
func LoadCatalogFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close() //nolint:errcheck

	return LoadCatalog(f)
}

func (c Catalog) validate() error {
	declared := make(map[string]struct{}, len(c.Permissions))
	for _, perm := range c.Permissions {
		if perm.Name == "" {
			return fmt.Errorf("%w: permission with empty name", ErrInvalidCatalog)
		}
		if _, dup := declared[perm.Name]; dup {
			return fmt.Errorf("%w: duplicate permission %q", ErrInvalidCatalog, perm.Name)
		}
		declared[perm.Name] = struct{}{}
	}

	roleNames := make(map[string]struct{}, len(c.Roles))
	for _, role := range c.Roles {
		if role.Name == "" {
			return fmt.Errorf("%w: role with empty name", ErrInvalidCatalog)
		}
		if _, dup := roleNames[role.Name]; dup {
			return fmt.Errorf("%w: duplicate role %q", ErrInvalidCatalog, role.Name)
		}
		roleNames[role.Name] = struct{}{}

		for _, permName := range role.Permissions {
			if _, ok := declared[permName]; !ok {
				return fmt.Errorf("%w: role %q references undeclared permission %q",
					ErrInvalidCatalog, role.Name, permName)
			}
		}
	}
	return nil
}

// ApplyCatalog reconciles the store with the catalog. Missing permissions
// and roles are created; existing roles gain any catalog permissions they
// lack. Grants outside the catalog are left alone, so operators can extend
// roles at runtime without the next startup undoing it. The operation is
// idempotent.
func (s *Service) ApplyCatalog(ctx context.Context, cat Catalog) error {
	if err := cat.validate(); err != nil {
		return err
	}

	permIDs := make(map[string]uuid.UUID, len(cat.Permissions))
	for _, decl := range cat.Permissions {
		perm, err := s.store.Permissions().GetByName(ctx, decl.Name)
		switch {
		case err == nil:
			permIDs[decl.Name] = perm.ID
		case errors.Is(err, store.ErrNotFound):
			created, err := s.CreatePermission(ctx, decl.Name, decl.Description)
			if err != nil {
				return fmt.Errorf("seed permission %q: %w", decl.Name, err)
			}
			permIDs[decl.Name] = created.ID
		default:
			return fmt.Errorf("look up permission %q: %w", decl.Name, err)
		}
	}

	for _, decl := range cat.Roles {
		wanted := make([]uuid.UUID, 0, len(decl.Permissions))
		for _, permName := range decl.Permissions {
			wanted = append(wanted, permIDs[permName])
		}

		role, err := s.store.Roles().GetByName(ctx, decl.Name)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if _, err := s.CreateRole(ctx, decl.Name, decl.Description, wanted...); err != nil {
				return fmt.Errorf("seed role %q: %w", decl.Name, err)
			}
			continue
		case err != nil:
			return fmt.Errorf("look up role %q: %w", decl.Name, err)
		}

		missing := make([]uuid.UUID, 0, len(wanted))
		for _, permID := range wanted {
			if !role.HasPermission(permID) {
				missing = append(missing, permID)
			}
		}
		if len(missing) == 0 {
			continue
		}

		version := role.Version
		for _, permID := range missing {
			newVersion, err := s.GrantPermission(ctx, role.ID, permID, version)
			if err != nil {
				return fmt.Errorf("seed role %q: grant %s: %w", decl.Name, permID, err)
			}
			version = newVersion
		}
	}

	return nil
}
