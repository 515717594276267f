package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// scriptFile is the on-disk shape of a scripted run: one script per session,
// consumed in session-open order.
type scriptFile struct {
	Sessions []SessionScript `yaml:"sessions"`
}

// LoadScripts reads session scripts from a YAML file. The file holds a
// `sessions` list; each session has optional `fail_open` and a `steps` list
// of notify / invoke / complete / fail actions.
func LoadScripts(path string) ([]SessionScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}

	var file scriptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse script file: %w", err)
	}
	if len(file.Sessions) == 0 {
		return nil, fmt.Errorf("script file %q declares no sessions", path)
	}

	for i, s := range file.Sessions {
		for j, step := range s.Steps {
			switch step.Kind {
			case StepNotify, StepInvoke, StepComplete, StepFail:
			default:
				return nil, fmt.Errorf("session %d step %d: unknown step kind %q", i, j, step.Kind)
			}
		}
	}

	return file.Sessions, nil
}
