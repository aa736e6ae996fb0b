package event

// BuildHistory constructs the ordered Content list a model call at the given
// branch should see, per the contents processor contract:
//
//  1. Keep only events whose branch is an ancestor of, or equal to, branch
//     (peer sub-agent chatter is hidden).
//  2. Map each retained event to zero or one Content.
//  3. Rearrange async function responses: walk the sequence; when a
//     function-response is encountered, move it immediately after the
//     earliest unmatched function-call sharing its id. Unmatched calls stay
//     in place at the tail.
//  4. Strip framework-generated call ids so they do not leak to the model.
//
// The input log is never mutated; BuildHistory returns a fresh slice.
func BuildHistory(log []*Event, branch Branch) []Content {
	visible := make([]Content, 0, len(log))
	for _, e := range log {
		if e == nil || e.Content == nil {
			continue
		}
		if !e.Branch.IsAncestorOf(branch) && e.Branch != branch {
			continue
		}
		visible = append(visible, *e.Content)
	}
	rearranged := rearrangeFunctionResponses(visible)
	for i := range rearranged {
		rearranged[i] = stripFrameworkCallIDs(rearranged[i])
	}
	return rearranged
}

// rearrangeFunctionResponses moves each function-response Content to
// immediately follow the earliest unmatched function-call Content sharing
// its call id, preserving relative order otherwise. A function-response
// with no matching call is left where it was encountered.
func rearrangeFunctionResponses(contents []Content) []Content {
	type pending struct {
		callIdx int
	}
	pendingCalls := map[string]pending{}
	out := make([]Content, 0, len(contents))
	insertAfter := map[int][]Content{}

	for _, c := range contents {
		if calls := c.FunctionCalls(); len(calls) > 0 {
			out = append(out, c)
			idx := len(out) - 1
			for _, call := range calls {
				if _, matched := pendingCalls[call.ID]; !matched {
					pendingCalls[call.ID] = pending{callIdx: idx}
				}
			}
			continue
		}
		if responses := c.FunctionResponses(); len(responses) > 0 {
			matchedAny := false
			for _, resp := range responses {
				if p, ok := pendingCalls[resp.ID]; ok {
					insertAfter[p.callIdx] = append(insertAfter[p.callIdx], c)
					delete(pendingCalls, resp.ID)
					matchedAny = true
					break
				}
			}
			if matchedAny {
				continue
			}
		}
		out = append(out, c)
	}

	if len(insertAfter) == 0 {
		return out
	}
	final := make([]Content, 0, len(out)+len(insertAfter))
	for i, c := range out {
		final = append(final, c)
		final = append(final, insertAfter[i]...)
	}
	return final
}

// stripFrameworkCallIDs returns a copy of c with any FunctionCall/
// FunctionResponse part's framework-generated id replaced with "".
func stripFrameworkCallIDs(c Content) Content {
	changed := false
	for _, p := range c.Parts {
		switch v := p.(type) {
		case FunctionCall:
			if len(v.ID) >= len(FrameworkIDPrefix) && v.ID[:len(FrameworkIDPrefix)] == FrameworkIDPrefix {
				changed = true
			}
		case FunctionResponse:
			if len(v.ID) >= len(FrameworkIDPrefix) && v.ID[:len(FrameworkIDPrefix)] == FrameworkIDPrefix {
				changed = true
			}
		}
	}
	if !changed {
		return c
	}
	parts := make([]Part, len(c.Parts))
	for i, p := range c.Parts {
		switch v := p.(type) {
		case FunctionCall:
			if hasFrameworkPrefix(v.ID) {
				v.ID = ""
			}
			parts[i] = v
		case FunctionResponse:
			if hasFrameworkPrefix(v.ID) {
				v.ID = ""
			}
			parts[i] = v
		default:
			parts[i] = p
		}
	}
	return Content{Role: c.Role, Parts: parts}
}

func hasFrameworkPrefix(id string) bool {
	return len(id) >= len(FrameworkIDPrefix) && id[:len(FrameworkIDPrefix)] == FrameworkIDPrefix
}
