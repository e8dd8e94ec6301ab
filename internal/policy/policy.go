// Package policy holds the attribute anonymization table: which DICOM tags
// are removed, replaced with a pseudonym, or date-shifted.
package policy

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// Action is what happens to one attribute
type Action int

const (
	Remove Action = iota + 1
	ReplaceWithPseudonym
	ShiftDate
)

func (a Action) String() string {
	switch a {
	case Remove:
		return "Remove"
	case ReplaceWithPseudonym:
		return "Replace"
	case ShiftDate:
		return "ReplaceDate"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// ErrUnknownAction is returned when a table names an action other than
// Remove, Replace or ReplaceDate.
var ErrUnknownAction = errors.New("unknown anonymization action")

// ParseAction parses the table spelling of an action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "remove":
		return Remove, nil
	case "replace":
		return ReplaceWithPseudonym, nil
	case "replacedate":
		return ShiftDate, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// Policy maps tags to actions. It is immutable after construction and safe
// to share between workers.
type Policy struct {
	actions map[tag.Tag]Action
}

// New builds a policy from a tag → action map. The map is copied.
func New(actions map[tag.Tag]Action) *Policy {
	p := &Policy{actions: make(map[tag.Tag]Action, len(actions))}
	for t, a := range actions {
		p.actions[t] = a
	}
	return p
}

// Action returns the action for t, if any.
func (p *Policy) Action(t tag.Tag) (Action, bool) {
	a, ok := p.actions[t]
	return a, ok
}

// Len returns the number of tags covered.
func (p *Policy) Len() int {
	return len(p.actions)
}

// Tags returns the tags carrying action a, sorted by group then element.
func (p *Policy) Tags(a Action) []tag.Tag {
	var tags []tag.Tag
	for t, act := range p.actions {
		if act == a {
			tags = append(tags, t)
		}
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Group != tags[j].Group {
			return tags[i].Group < tags[j].Group
		}
		return tags[i].Element < tags[j].Element
	})
	return tags
}

// WithRemoveSet returns a copy of p whose Remove entries are exactly tags.
// Replace and ReplaceDate entries are kept unless a tag is listed in tags,
// in which case removal wins.
func (p *Policy) WithRemoveSet(tags []tag.Tag) *Policy {
	next := make(map[tag.Tag]Action, len(p.actions)+len(tags))
	for t, a := range p.actions {
		if a != Remove {
			next[t] = a
		}
	}
	for _, t := range tags {
		next[t] = Remove
	}
	return &Policy{actions: next}
}

// ParseTag accepts "0x00100010", "00100010", "(0010,0010)" and "0010,0010".
func ParseTag(s string) (tag.Tag, error) {
	raw := s
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	if len(s) == 0 || len(s) > 8 {
		return tag.Tag{}, fmt.Errorf("invalid tag %q", raw)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("invalid tag %q", raw)
	}
	return tag.Tag{Group: uint16(v >> 16), Element: uint16(v)}, nil
}

// ParseTags parses a list of tags as given on the command line.
func ParseTags(values []string) ([]tag.Tag, error) {
	tags := make([]tag.Tag, 0, len(values))
	for _, v := range values {
		t, err := ParseTag(v)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}
