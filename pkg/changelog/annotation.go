// SPDX-License-Identifier: Apache-2.0

package changelog

import "sigs.k8s.io/yaml"

// Annotation is the parsed form of the `--! key: value` comment lines that
// may precede a statement. Unknown keys are tolerated (parsed and ignored)
// so new annotations can be added without breaking older tokenizers.
type Annotation struct {
	// MayFail permits the executor to continue past a failure of the
	// annotated statement instead of aborting the run.
	MayFail bool `json:"may_fail,omitempty"`
}

// parseAnnotation parses the accumulated `--! ` payload lines as a flat
// YAML/JSON key-value mapping. Failure is soft: callers should emit the
// statement with a nil annotation rather than propagate the error.
func parseAnnotation(raw []byte) (*Annotation, error) {
	var a Annotation
	if err := yaml.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
