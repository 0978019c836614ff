package toolkit

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

const DefaultLocation = "db/migration/"

// Resources is the discovered migration set, already validated and sorted.
type Resources struct {
	Versioned  []VersionedMigration
	Repeatable []Resource
}

// LoadResources walks location in fsys and parses every .sql file.
// Empty scripts are dropped, duplicated versions fail the whole load.
func LoadResources(fsys fs.FS, location string) (Resources, error) {
	root := cleanLocation(location)

	var all []Resource
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || !strings.HasSuffix(p, ResourceSuffix) {
			return nil
		}

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read migration resource %s: %w", p, err)
		}

		r, err := ParseResource(p, content)
		if err != nil {
			return err
		}
		if r.Checksum == 0 {
			return nil
		}

		all = append(all, r)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && len(all) == 0 {
			return Resources{}, nil
		}
		return Resources{}, err
	}

	if err := ValidateResources(all); err != nil {
		return Resources{}, err
	}

	return SplitResources(all)
}

// SplitResources separates versioned from repeatable resources and sorts both.
func SplitResources(resources []Resource) (Resources, error) {
	var result Resources
	for _, r := range resources {
		if r.Repeatable {
			result.Repeatable = append(result.Repeatable, r)
			continue
		}
		vm, err := NewVersionedMigration(r)
		if err != nil {
			return Resources{}, err
		}
		result.Versioned = append(result.Versioned, vm)
	}

	SortVersioned(result.Versioned)
	SortResources(result.Repeatable)
	return result, nil
}

// readScript loads a script through fsys. A missing or empty file yields nil content.
func readScript(fsys fs.FS, script string) ([]byte, error) {
	content, err := fs.ReadFile(fsys, cleanLocation(script))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return content, err
}

func cleanLocation(location string) string {
	p := path.Clean("/" + location)
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "."
	}
	return p
}
