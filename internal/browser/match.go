package browser

import (
	"context"
	"strings"
	"time"
)

// Match is the result of an ordered group scan: the index of the winning
// group and its handles.
type Match struct {
	GroupIndex int
	GroupName  string
	Handles    []Handle
}

// FirstMatch scans ordered selector groups and returns the first group
// yielding at least one element. First-match-wins: later groups are not
// consulted once a group hits. ok is false when no group matched.
func FirstMatch(ctx context.Context, cap Capability, groups []SelectorGroup) (Match, bool, error) {
	for i, group := range groups {
		handles, err := cap.FindAll(ctx, group)
		if err != nil {
			return Match{}, false, err
		}
		if len(handles) > 0 {
			return Match{GroupIndex: i, GroupName: group.Name, Handles: handles}, true, nil
		}
	}
	return Match{}, false, nil
}

// FirstPhrase returns the first phrase appearing in text, case-insensitive.
func FirstPhrase(text string, phrases []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range phrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return phrase, true
		}
	}
	return "", false
}

// DefaultPoll is the interval between element lookups inside a bounded wait.
const DefaultPoll = 500 * time.Millisecond

// WaitFor polls the group until it yields an element or the timeout elapses.
// Returns the first handle, or ErrNotFound on timeout. The wait is a
// cooperative suspension point: cancellation takes effect between polls.
func WaitFor(ctx context.Context, cap Capability, group SelectorGroup, timeout time.Duration) (Handle, error) {
	attempts := int(timeout / DefaultPoll)
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; ; i++ {
		handles, err := cap.FindAll(ctx, group)
		if err != nil {
			return nil, err
		}
		if len(handles) > 0 {
			return handles[0], nil
		}
		if i >= attempts {
			return nil, ErrNotFound
		}
		if err := cap.Sleep(ctx, DefaultPoll); err != nil {
			return nil, err
		}
	}
}
