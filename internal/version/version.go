// Package version models a version made of user-defined parts and
// implements bumping, resetting and rendering it.
package version

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig is returned when parts do not form a valid version schema.
	ErrConfig = errors.New("invalid version config")
	// ErrBump is returned when a bump instruction cannot be applied.
	ErrBump = errors.New("invalid bump")
	// ErrNotFound is returned when a key does not name any part.
	ErrNotFound = errors.New("part not found")
)

// noPart marks a missing parent or child in a relation.
const noPart = -1

// relation holds the positions of a part's neighbours.
type relation struct {
	parent int
	child  int
}

// Version is an ordered list of parts. A part's parent is the part before
// it and its child the part after it.
type Version struct {
	parts     []Part
	relations []relation
	index     map[string]int
}

// New validates the parts and builds a Version owning copies of them.
func New(parts []Part) (*Version, error) {
	for _, p := range parts {
		if err := p.validate(); err != nil {
			return nil, err
		}
	}
	if err := ValidateKeys(parts); err != nil {
		return nil, err
	}
	if err := ValidateRequires(parts); err != nil {
		return nil, err
	}

	v := &Version{
		parts:     make([]Part, len(parts)),
		relations: setRelationships(parts),
		index:     make(map[string]int, len(parts)),
	}
	for i, p := range parts {
		v.parts[i] = p.clone()
		v.index[p.Key] = i
	}
	return v, nil
}

// ValidateKeys checks that no two parts share a key.
func ValidateKeys(parts []Part) error {
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		if seen[p.Key] {
			return fmt.Errorf("%w: duplicate part key %q", ErrConfig, p.Key)
		}
		seen[p.Key] = true
	}
	return nil
}

// ValidateRequires checks that every requires names another existing part.
func ValidateRequires(parts []Part) error {
	keys := make(map[string]bool, len(parts))
	for _, p := range parts {
		keys[p.Key] = true
	}
	for _, p := range parts {
		if p.Requires == "" {
			continue
		}
		if p.Requires == p.Key {
			return fmt.Errorf("%w: part %q cannot require itself", ErrConfig, p.Key)
		}
		if !keys[p.Requires] {
			return fmt.Errorf("%w: part %q requires unknown part %q", ErrConfig, p.Key, p.Requires)
		}
	}
	return nil
}

// setRelationships links each part to its neighbours by list position.
func setRelationships(parts []Part) []relation {
	relations := make([]relation, len(parts))
	for i := range parts {
		relations[i] = relation{parent: i - 1, child: i + 1}
		if i == len(parts)-1 {
			relations[i].child = noPart
		}
	}
	return relations
}

// Part returns a copy of the part with the given key.
func (v *Version) Part(key string) (Part, error) {
	i, err := v.lookup(key)
	if err != nil {
		return Part{}, err
	}
	return v.parts[i].clone(), nil
}

// Parts returns copies of all parts in order.
func (v *Version) Parts() []Part {
	parts := make([]Part, len(v.parts))
	for i, p := range v.parts {
		parts[i] = p.clone()
	}
	return parts
}

// Parent returns the part before key, and false for the first part.
func (v *Version) Parent(key string) (Part, bool, error) {
	i, err := v.lookup(key)
	if err != nil {
		return Part{}, false, err
	}
	return v.at(v.relations[i].parent)
}

// Child returns the part after key, and false for the last part.
func (v *Version) Child(key string) (Part, bool, error) {
	i, err := v.lookup(key)
	if err != nil {
		return Part{}, false, err
	}
	return v.at(v.relations[i].child)
}

func (v *Version) at(i int) (Part, bool, error) {
	if i == noPart {
		return Part{}, false, nil
	}
	return v.parts[i].clone(), true, nil
}

// Equal reports whether both versions have the same keys and values in
// the same order. Prefixes, labels and other options are not compared.
func (v *Version) Equal(other *Version) bool {
	if v == nil || other == nil {
		return v == other
	}
	if len(v.parts) != len(other.parts) {
		return false
	}
	for i := range v.parts {
		if !v.parts[i].Equal(other.parts[i]) {
			return false
		}
	}
	return true
}

// Bump applies tokens in order. A token is either a part key ("minor"),
// which advances the part, or "key=value", which sets it. Every part after
// a bumped part is cleared. Once all tokens are applied, parts required by
// a set part are activated.
//
// Bump is atomic: if any token fails, the version is left unchanged.
func (v *Version) Bump(tokens []string) error {
	saved := v.snapshot()
	for _, token := range tokens {
		if err := v.bumpToken(token); err != nil {
			v.restore(saved)
			return err
		}
	}
	v.resolveRequires()
	return nil
}

func (v *Version) bumpToken(token string) error {
	key, value, hasValue, err := parseToken(token)
	if err != nil {
		return err
	}
	i, err := v.lookup(key)
	if err != nil {
		return err
	}
	if err := v.parts[i].bump(value, hasValue); err != nil {
		return err
	}
	v.clearDescendants(i)
	return nil
}

// parseToken splits "key" or "key=value".
func parseToken(token string) (key, value string, hasValue bool, err error) {
	fields := strings.Split(token, "=")
	switch len(fields) {
	case 1:
		return fields[0], "", false, nil
	case 2:
		return fields[0], fields[1], true, nil
	default:
		return "", "", false, fmt.Errorf("%w: %q must be \"key\" or \"key=value\"", ErrBump, token)
	}
}

// Reset puts each named part back to its baseline and clears every part
// after it, then activates required parts. Unknown keys leave the version
// unchanged.
func (v *Version) Reset(keys []string) error {
	positions := make([]int, 0, len(keys))
	for _, key := range keys {
		i, err := v.lookup(key)
		if err != nil {
			return err
		}
		positions = append(positions, i)
	}
	for _, i := range positions {
		v.parts[i].reset()
		v.clearDescendants(i)
	}
	v.resolveRequires()
	return nil
}

// Parse renders the version up to and including the last of keys whose
// part is visible. Parts before that point are rendered whether named or
// not. It returns "" when none of the named parts is visible.
func (v *Version) Parse(keys []string) (string, error) {
	last := noPart
	for _, key := range keys {
		i, err := v.lookup(key)
		if err != nil {
			return "", err
		}
		if v.parts[i].Visible() && i > last {
			last = i
		}
	}
	return render(v.parts[:last+1]), nil
}

// String renders every visible part in order.
func (v *Version) String() string {
	return render(v.parts)
}

func render(parts []Part) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.String())
	}
	return b.String()
}

func (v *Version) lookup(key string) (int, error) {
	i, ok := v.index[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return i, nil
}

// clearDescendants clears every part following position i.
func (v *Version) clearDescendants(i int) {
	for c := v.relations[i].child; c != noPart; c = v.relations[c].child {
		v.parts[c].clear()
	}
}

// resolveRequires activates absent parts that a set part requires, until
// no more change. Each pass activates at least one part, so it ends after
// at most len(parts) passes.
func (v *Version) resolveRequires() {
	for changed := true; changed; {
		changed = false
		for _, p := range v.parts {
			if !p.set || p.Requires == "" {
				continue
			}
			req := &v.parts[v.index[p.Requires]]
			if !req.set {
				req.activate()
				changed = true
			}
		}
	}
}

// snapshot records the value of every part.
func (v *Version) snapshot() []Part {
	saved := make([]Part, len(v.parts))
	copy(saved, v.parts)
	return saved
}

func (v *Version) restore(saved []Part) {
	copy(v.parts, saved)
}
