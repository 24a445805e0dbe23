package program

import "fmt"

// Convention selects which call/return opcodes a generated program uses.
type Convention uint8

const (
	Linked Convention = iota
	Fast
)

func (c Convention) String() string {
	switch c {
	case Linked:
		return "linked"
	case Fast:
		return "fast"
	}
	return fmt.Sprintf("convention(%d)", uint8(c))
}

func ParseConvention(s string) (Convention, error) {
	switch s {
	case "linked", "":
		return Linked, nil
	case "fast":
		return Fast, nil
	}
	return 0, fmt.Errorf("unknown calling convention %q", s)
}

func (c Convention) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Convention) UnmarshalText(b []byte) error {
	v, err := ParseConvention(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
