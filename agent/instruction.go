package agent

import (
	"fmt"
	"regexp"
)

// InstructionResolver returns the canonical instruction text for an agent
// along with whether session-state templating should be bypassed. The
// default implementation (see LlmAgent.resolveInstruction) returns the
// static configured instruction with bypassStateInjection=false; overriding
// this lets an agent inject dynamic context while suppressing templating on
// its own output.
type InstructionResolver func(ic ReadonlyContext) (text string, bypassStateInjection bool)

var templateKey = regexp.MustCompile(`\{\{([a-zA-Z0-9_]+)\}\}`)

// applyStateTemplate replaces every {{key}} occurrence in text with the
// string form of state[key]; keys absent from state are left verbatim.
func applyStateTemplate(text string, state map[string]any) string {
	return templateKey.ReplaceAllStringFunc(text, func(match string) string {
		key := templateKey.FindStringSubmatch(match)[1]
		v, ok := state[key]
		if !ok {
			return match
		}
		return fmt.Sprint(v)
	})
}
