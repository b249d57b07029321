package monitor

import "fmt"

// Transform is the output rotation and mirroring. Values follow the
// wl_output transform enum.
type Transform int

const (
	TransformNormal Transform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

// Valid reports whether t is one of the eight transforms.
func (t Transform) Valid() bool {
	return t >= TransformNormal && t <= TransformFlipped270
}

// Rotated reports whether width and height swap under t.
func (t Transform) Rotated() bool {
	return t%2 == 1
}

// Flipped reports whether t mirrors the output.
func (t Transform) Flipped() bool {
	return t >= TransformFlipped
}

// Rotation returns the rotation in degrees, ignoring mirroring.
func (t Transform) Rotation() int {
	return int(t%4) * 90
}

// Next rotates t by 90 degrees clockwise, keeping mirroring.
func (t Transform) Next() Transform {
	base := t - t%4
	return base + (t+1)%4
}

func (t Transform) String() string {
	switch t {
	case TransformNormal:
		return "normal"
	case Transform90:
		return "90"
	case Transform180:
		return "180"
	case Transform270:
		return "270"
	case TransformFlipped:
		return "flipped"
	case TransformFlipped90:
		return "flipped-90"
	case TransformFlipped180:
		return "flipped-180"
	case TransformFlipped270:
		return "flipped-270"
	default:
		return fmt.Sprintf("transform(%d)", int(t))
	}
}

// ParseTransform accepts the names produced by String as well as bare
// digits 0-7.
func ParseTransform(s string) (Transform, error) {
	for t := TransformNormal; t <= TransformFlipped270; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	if len(s) == 1 && s[0] >= '0' && s[0] <= '7' {
		return Transform(s[0] - '0'), nil
	}
	return 0, fmt.Errorf("unknown transform %q", s)
}
