package version

import (
	"fmt"
	"slices"
	"strconv"
)

// Kind identifies the variant of a Part.
type Kind int

const (
	// KindNumber is a part holding a non-negative counter.
	KindNumber Kind = iota
	// KindIdentifier is a part holding one string of a fixed ordered list.
	KindIdentifier
)

// String returns the config name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindIdentifier:
		return "identifier"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// NumberOptions configures a number part.
type NumberOptions struct {
	Prefix      string
	Requires    string
	Label       string
	LabelSuffix string
	Start       int
	HideStart   bool // Omit the number when it equals Start (config: show-start: false)
}

// IdentifierOptions configures an identifier part.
type IdentifierOptions struct {
	Prefix   string
	Requires string
	Strings  []string
	Start    int // Index into Strings used when the part is activated
}

// Part is a single segment of a version, e.g. "minor" or "pre".
// The zero value is not usable; build parts with NewNumberPart or
// NewIdentifierPart.
type Part struct {
	Key      string
	Kind     Kind
	Prefix   string
	Requires string

	// Number parts only.
	Label       string
	LabelSuffix string
	Start       int
	HideStart   bool

	// Identifier parts only. Start indexes into Strings.
	Strings []string

	// value is the counter for number parts and the index into Strings
	// for identifier parts. It is meaningful only when set is true.
	value int
	set   bool
}

// NewNumberPart creates a number part. A nil value leaves the part absent.
func NewNumberPart(key string, value *int, opts NumberOptions) (Part, error) {
	p := Part{
		Key:         key,
		Kind:        KindNumber,
		Prefix:      opts.Prefix,
		Requires:    opts.Requires,
		Label:       opts.Label,
		LabelSuffix: opts.LabelSuffix,
		Start:       opts.Start,
		HideStart:   opts.HideStart,
	}
	if value != nil {
		p.value, p.set = *value, true
	}
	if err := p.validate(); err != nil {
		return Part{}, err
	}
	return p, nil
}

// NewIdentifierPart creates an identifier part. A nil value leaves the part
// absent; otherwise the value must be one of opts.Strings.
func NewIdentifierPart(key string, value *string, opts IdentifierOptions) (Part, error) {
	p := Part{
		Key:      key,
		Kind:     KindIdentifier,
		Prefix:   opts.Prefix,
		Requires: opts.Requires,
		Start:    opts.Start,
		Strings:  slices.Clone(opts.Strings),
	}
	if err := p.validate(); err != nil {
		return Part{}, err
	}
	if value != nil {
		i := slices.Index(p.Strings, *value)
		if i < 0 {
			return Part{}, fmt.Errorf("%w: part %q: value %q is not one of %v", ErrConfig, key, *value, p.Strings)
		}
		p.value, p.set = i, true
	}
	return p, nil
}

// validate checks the invariants of the part's kind.
func (p Part) validate() error {
	if p.Key == "" {
		return fmt.Errorf("%w: part key cannot be empty", ErrConfig)
	}
	switch p.Kind {
	case KindNumber:
		if p.Start < 0 {
			return fmt.Errorf("%w: part %q: start cannot be negative", ErrConfig, p.Key)
		}
		if p.set && p.value < 0 {
			return fmt.Errorf("%w: part %q: value cannot be negative", ErrConfig, p.Key)
		}
	case KindIdentifier:
		if len(p.Strings) == 0 {
			return fmt.Errorf("%w: part %q: identifier must define at least one string", ErrConfig, p.Key)
		}
		if p.Start < 0 || p.Start >= len(p.Strings) {
			return fmt.Errorf("%w: part %q: start %d is out of range for %d strings", ErrConfig, p.Key, p.Start, len(p.Strings))
		}
		if p.set && p.value >= len(p.Strings) {
			return fmt.Errorf("%w: part %q: value is out of range for %d strings", ErrConfig, p.Key, len(p.Strings))
		}
	default:
		return fmt.Errorf("%w: part %q: unknown kind %v", ErrConfig, p.Key, p.Kind)
	}
	return nil
}

// IsSet reports whether the part currently holds a value.
func (p Part) IsSet() bool {
	return p.set
}

// Value returns the part's value as it appears in a version string, and
// false if the part is absent.
func (p Part) Value() (string, bool) {
	if !p.set {
		return "", false
	}
	if p.Kind == KindIdentifier {
		return p.Strings[p.value], true
	}
	return strconv.Itoa(p.value), true
}

// Number returns the counter of a number part, and false if the part is
// absent or is not a number part.
func (p Part) Number() (int, bool) {
	if !p.set || p.Kind != KindNumber {
		return 0, false
	}
	return p.value, true
}

// Visible reports whether the part contributes to the rendered version.
func (p Part) Visible() bool {
	return p.String() != ""
}

// String renders the part with its prefix, or "" when the part is not visible.
func (p Part) String() string {
	if !p.set {
		return ""
	}
	switch p.Kind {
	case KindIdentifier:
		return p.Prefix + p.Strings[p.value]
	default:
		if p.value == p.Start && p.HideStart {
			if p.Label == "" {
				return ""
			}
			return p.Prefix + p.Label
		}
		return p.Prefix + p.Label + p.LabelSuffix + strconv.Itoa(p.value)
	}
}

// Equal reports whether two parts have the same key, kind and value.
func (p Part) Equal(other Part) bool {
	if p.Key != other.Key || p.Kind != other.Kind || p.set != other.set {
		return false
	}
	a, _ := p.Value()
	b, _ := other.Value()
	return a == b
}

// clone returns a copy that shares no memory with p.
func (p Part) clone() Part {
	p.Strings = slices.Clone(p.Strings)
	return p
}

// bump advances the part to its next value, or to explicit when given.
func (p *Part) bump(explicit string, hasExplicit bool) error {
	if hasExplicit {
		return p.assign(explicit)
	}
	if !p.set {
		p.activate()
		return nil
	}
	if p.Kind == KindIdentifier && p.value == len(p.Strings)-1 {
		return fmt.Errorf("%w: part %q is already at its last value %q", ErrBump, p.Key, p.Strings[p.value])
	}
	p.value++
	return nil
}

// assign sets an explicit value given as a string.
func (p *Part) assign(raw string) error {
	switch p.Kind {
	case KindIdentifier:
		i := slices.Index(p.Strings, raw)
		if i < 0 {
			return fmt.Errorf("%w: part %q: value %q is not one of %v", ErrBump, p.Key, raw, p.Strings)
		}
		p.value, p.set = i, true
	default:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: part %q: value %q is not a number", ErrBump, p.Key, raw)
		}
		if n < 0 {
			return fmt.Errorf("%w: part %q: value %d cannot be negative", ErrBump, p.Key, n)
		}
		p.value, p.set = n, true
	}
	return nil
}

// activate sets the part to its start value.
func (p *Part) activate() {
	p.value, p.set = p.Start, true
}

// reset puts a part named in a reset back to its baseline: number parts
// that hold a value restart at Start, everything else becomes absent.
func (p *Part) reset() {
	if p.Kind == KindIdentifier || !p.set {
		p.clear()
		return
	}
	p.activate()
}

// clear makes the part absent.
func (p *Part) clear() {
	p.value, p.set = 0, false
}
