package workflows

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

type (
	// Registrar accepts workflow definitions
	Registrar interface {
		RegisterWorkflow(wf *api.Workflow) error
	}

	document struct {
		Workflows []*api.Workflow `yaml:"workflows"`
	}
)

// Built-in workflow IDs
const (
	CICDPipeline         api.WorkflowID = "ci-cd-pipeline"
	StagingDeployment    api.WorkflowID = "staging-deployment"
	ProductionDeployment api.WorkflowID = "production-deployment"
	PreviewDeployment    api.WorkflowID = "preview-deployment"
	ErrorRecovery        api.WorkflowID = "error-recovery"
)

var ErrInvalidDefinition = errors.New("invalid workflow definition")

//go:embed defaults.yaml
var defaultsYAML []byte

// Defaults returns the built-in workflow definitions
func Defaults() ([]*api.Workflow, error) {
	return Parse(defaultsYAML)
}

// Parse decodes and validates a YAML workflow document
func Parse(data []byte) ([]*api.Workflow, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	seen := map[api.WorkflowID]bool{}
	for i, wf := range doc.Workflows {
		if wf == nil {
			return nil, fmt.Errorf("%w: entry %d is empty",
				ErrInvalidDefinition, i)
		}
		if err := wf.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
		}
		if seen[wf.ID] {
			return nil, fmt.Errorf("%w: duplicate id %s",
				ErrInvalidDefinition, wf.ID)
		}
		seen[wf.ID] = true
	}
	return doc.Workflows, nil
}

// Load returns the built-in definitions, overridden and extended by those in
// the file at path. An empty path yields the built-ins alone
func Load(path string) ([]*api.Workflow, error) {
	res, err := Defaults()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return res, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	extra, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return merge(res, extra), nil
}

// Register adds every definition to r, stopping at the first failure
func Register(r Registrar, wfs []*api.Workflow) error {
	for _, wf := range wfs {
		if err := r.RegisterWorkflow(wf); err != nil {
			return fmt.Errorf("workflow %s: %w", wf.ID, err)
		}
	}
	return nil
}

func merge(base, extra []*api.Workflow) []*api.Workflow {
	idx := make(map[api.WorkflowID]int, len(base))
	res := make([]*api.Workflow, len(base), len(base)+len(extra))
	copy(res, base)
	for i, wf := range res {
		idx[wf.ID] = i
	}
	for _, wf := range extra {
		if i, ok := idx[wf.ID]; ok {
			res[i] = wf
			continue
		}
		idx[wf.ID] = len(res)
		res = append(res, wf)
	}
	return res
}
