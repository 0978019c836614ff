package toolkit

import (
	"hash/crc32"
	"path"
	"sort"
	"strings"

	"github.com/Maksumys/migration-toolkit/internal/models"
)

const (
	ResourceSuffix        = ".sql"
	PrefixVersioned       = "V"
	PrefixRepeatable      = "R"
	descriptionSeparator  = "__"
	nameFormatDescription = "['V{ver}__{desc}.sql'|'R__{desc}.sql']"
)

type Version = models.Version

// ParseVersion parses a dotted numeric version such as "10.0.1".
func ParseVersion(value string) (Version, error) {
	return models.ParseVersion(value)
}

// Resource describes one discovered migration script.
// Exactly one of Version != "" and Repeatable holds.
type Resource struct {
	Script      string
	Repeatable  bool
	Version     string
	Description string
	// Checksum is the CRC-32 of the raw script bytes, 0 means empty or unreadable.
	Checksum uint32
}

// ParseResource parses the script name and computes the checksum of content.
func ParseResource(script string, content []byte) (Resource, error) {
	r, err := ParseResourceName(script)
	if err != nil {
		return Resource{}, err
	}
	r.Checksum = Checksum(content)
	return r, nil
}

// ParseResourceName parses a script path of the form
// [dir/]V{version}__{description}.sql or [dir/]R__{description}.sql.
func ParseResourceName(script string) (Resource, error) {
	if script == "" {
		return Resource{}, &ParseError{Script: script, Reason: "the migration item is empty"}
	}

	name := path.Base(script)
	if !strings.HasSuffix(name, ResourceSuffix) {
		return Resource{}, &ParseError{Script: script, Reason: "the migration item does not end with '" + ResourceSuffix + "'"}
	}
	name = strings.TrimSuffix(name, ResourceSuffix)

	if name == "" {
		return Resource{}, &ParseError{Script: script, Reason: "name is empty, expected " + nameFormatDescription}
	}

	result := Resource{Script: script}

	switch prefix := name[:1]; prefix {
	case PrefixVersioned:
		result.Repeatable = false
	case PrefixRepeatable:
		result.Repeatable = true
	default:
		return Resource{}, &ParseError{Script: script, Reason: "wrong prefix, values: [V, R], found: " + prefix}
	}

	parts := strings.Split(name[1:], descriptionSeparator)
	if len(parts) != 2 {
		return Resource{}, &ParseError{Script: script, Reason: "wrong parts for the version and description, expected " + nameFormatDescription}
	}

	if strings.Trim(parts[1], "_ ") == "" {
		return Resource{}, &ParseError{Script: script, Reason: "description is empty, expected " + nameFormatDescription}
	}
	result.Description = strings.ReplaceAll(parts[1], "_", " ")
	version := parts[0]

	if result.Repeatable {
		if strings.TrimSpace(version) != "" {
			return Resource{}, &ParseError{Script: script, Reason: "version is not supported for repeatable migration"}
		}
		return result, nil
	}

	if version == "" {
		return Resource{}, &ParseError{Script: script, Reason: "version is empty for versioned migration"}
	}
	if _, err := models.ParseVersion(version); err != nil {
		return Resource{}, &ParseError{Script: script, Reason: "invalid version", Err: err}
	}
	result.Version = version

	return result, nil
}

// Checksum returns the CRC-32 (IEEE) of content, 0 for empty content.
func Checksum(content []byte) uint32 {
	if len(content) == 0 {
		return 0
	}
	return crc32.ChecksumIEEE(content)
}

// Less is the natural order: versioned before repeatable, versioned by
// Version, repeatable by description.
func (r Resource) Less(other Resource) bool {
	if r.Repeatable != other.Repeatable {
		return !r.Repeatable
	}
	if r.Repeatable {
		return r.Description < other.Description
	}
	left, lerr := models.ParseVersion(r.Version)
	right, rerr := models.ParseVersion(other.Version)
	if lerr != nil || rerr != nil {
		return r.Version < other.Version
	}
	return left.LessThan(right)
}

// SortResources sorts resources in place by their natural order.
func SortResources(resources []Resource) {
	sort.SliceStable(resources, func(i, j int) bool {
		return resources[i].Less(resources[j])
	})
}

// ValidateResources fails when two versioned resources share a raw version.
func ValidateResources(resources []Resource) error {
	seen := make(map[string]string, len(resources))
	for _, r := range resources {
		if r.Repeatable {
			continue
		}
		if first, ok := seen[r.Version]; ok {
			return &DuplicateVersionError{Version: r.Version, Scripts: []string{first, r.Script}}
		}
		seen[r.Version] = r.Script
	}
	return nil
}

// VersionedMigration is a versioned Resource with its parsed Version.
type VersionedMigration struct {
	Resource
	ParsedVersion Version
}

func NewVersionedMigration(r Resource) (VersionedMigration, error) {
	if r.Repeatable {
		return VersionedMigration{}, &ParseError{Script: r.Script, Reason: "repeatable migration has no version"}
	}
	v, err := models.ParseVersion(r.Version)
	if err != nil {
		return VersionedMigration{}, &ParseError{Script: r.Script, Reason: "invalid version", Err: err}
	}
	return VersionedMigration{Resource: r, ParsedVersion: v}, nil
}

// SortVersioned sorts migrations in place by ascending version.
func SortVersioned(migrations []VersionedMigration) {
	sort.SliceStable(migrations, func(i, j int) bool {
		return migrations[i].ParsedVersion.LessThan(migrations[j].ParsedVersion)
	})
}
