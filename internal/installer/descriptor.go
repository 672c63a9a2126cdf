package installer

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/qri-io/jsonschema"
)

//go:embed descriptor.schema.json
var descriptorSchemaRaw []byte

// Descriptor is the on-disk definition of a script-driven installer.
type Descriptor struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Dependencies []string `json:"dependencies"`
	Scripts      Scripts  `json:"scripts"`
}

// Scripts holds paths relative to the descriptor's directory. An empty path means the
// capability is not provided.
type Scripts struct {
	Install       string `json:"install,omitempty"`
	Update        string `json:"update,omitempty"`
	Uninstall     string `json:"uninstall,omitempty"`
	Check         string `json:"check,omitempty"`
	Version       string `json:"version,omitempty"`
	LatestVersion string `json:"latest_version,omitempty"`
}

func (s Scripts) forAction(action Action) string {
	switch action {
	case ActionInstall:
		return s.Install
	case ActionUpdate:
		return s.Update
	case ActionUninstall:
		return s.Uninstall
	}
	return ""
}

func descriptorSchema() (*jsonschema.Schema, error) {
	rs := &jsonschema.Schema{}
	err := json.Unmarshal(descriptorSchemaRaw, rs)
	if err != nil {
		return nil, fmt.Errorf("invalid descriptor JSON schema: %s", err)
	}
	return rs, nil
}

// ParseDescriptor validates raw descriptor bytes against the descriptor schema and decodes them.
func ParseDescriptor(raw []byte) (*Descriptor, error) {
	rs, err := descriptorSchema()
	if err != nil {
		return nil, err
	}

	keyErrs, err := rs.ValidateBytes(context.Background(), raw)
	if err != nil {
		return nil, err
	}
	// Just return the first error.
	if len(keyErrs) > 0 {
		return nil, keyErrs[0]
	}

	var desc Descriptor
	err = json.Unmarshal(raw, &desc)
	if err != nil {
		return nil, err
	}
	return &desc, nil
}
