package loader

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type rawOperationsDoc struct {
	Operations map[string][]string `yaml:"operations"`
}

// LoadOperations reads the optional transforms.yaml mapping operation names
// to argv templates for the exec invoker. A missing file yields an empty
// table: every transform invocation will then fail as unavailable, which is
// the correct feasibility outcome for a host without the external tools.
func LoadOperations(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]string{}, nil
		}
		return nil, errors.Wrap(err, "read transform operations")
	}

	var doc rawOperationsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	for name, argv := range doc.Operations {
		if len(argv) == 0 {
			return nil, errors.Errorf("operation %s (%s): empty command", name, path)
		}
	}
	if doc.Operations == nil {
		doc.Operations = map[string][]string{}
	}
	return doc.Operations, nil
}
