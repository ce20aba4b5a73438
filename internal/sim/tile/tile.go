// Package tile defines the closed set of terrain tile types.
package tile

import "fmt"

type Kind uint8

const (
	Floor Kind = iota
	Wall
	Water
	Sand
	Soil
	Tree
	Plant
)

type TreeKind uint8

const (
	Evergreen TreeKind = iota
	Deciduous
)

type PlantKind uint8

const (
	Grass PlantKind = iota
	Daisy
	Heather
)

// Type is a tile kind plus its variant. Variant is only meaningful for Tree
// and Plant and is zero otherwise.
type Type struct {
	Kind    Kind
	Variant uint8
}

var (
	FloorTile = Type{Kind: Floor}
	WallTile  = Type{Kind: Wall}
	WaterTile = Type{Kind: Water}
	SandTile  = Type{Kind: Sand}
	SoilTile  = Type{Kind: Soil}
)

func TreeOf(k TreeKind) Type   { return Type{Kind: Tree, Variant: uint8(k)} }
func PlantOf(k PlantKind) Type { return Type{Kind: Plant, Variant: uint8(k)} }

// All lists every valid tile type in code order.
func All() []Type {
	return []Type{
		FloorTile, WallTile, WaterTile, SandTile, SoilTile,
		TreeOf(Evergreen), TreeOf(Deciduous),
		PlantOf(Grass), PlantOf(Daisy), PlantOf(Heather),
	}
}

// Tree returns the tree species when t is a tree.
func (t Type) Tree() (TreeKind, bool) {
	if t.Kind != Tree {
		return 0, false
	}
	return TreeKind(t.Variant), true
}

// Plant returns the plant species when t is a plant.
func (t Type) Plant() (PlantKind, bool) {
	if t.Kind != Plant {
		return 0, false
	}
	return PlantKind(t.Variant), true
}

// Vegetable reports whether vegetation may be placed on t.
func (t Type) Vegetable() bool {
	switch t.Kind {
	case Soil, Sand:
		return true
	case Floor, Wall, Water, Tree, Plant:
		return false
	default:
		panic(fmt.Sprintf("tile: unknown kind %d", t.Kind))
	}
}

// Code packs t into a single value for compact encodings.
func (t Type) Code() uint16 { return uint16(t.Kind)<<8 | uint16(t.Variant) }

func FromCode(c uint16) (Type, error) {
	t := Type{Kind: Kind(c >> 8), Variant: uint8(c)}
	if err := t.Validate(); err != nil {
		return Type{}, err
	}
	return t, nil
}

func (t Type) Validate() error {
	switch t.Kind {
	case Floor, Wall, Water, Sand, Soil:
		if t.Variant != 0 {
			return fmt.Errorf("tile: %s carries variant %d", t.Kind, t.Variant)
		}
	case Tree:
		if TreeKind(t.Variant) > Deciduous {
			return fmt.Errorf("tile: bad tree variant %d", t.Variant)
		}
	case Plant:
		if PlantKind(t.Variant) > Heather {
			return fmt.Errorf("tile: bad plant variant %d", t.Variant)
		}
	default:
		return fmt.Errorf("tile: unknown kind %d", t.Kind)
	}
	return nil
}

func (k Kind) String() string {
	switch k {
	case Floor:
		return "Floor"
	case Wall:
		return "Wall"
	case Water:
		return "Water"
	case Sand:
		return "Sand"
	case Soil:
		return "Soil"
	case Tree:
		return "Tree"
	case Plant:
		return "Plant"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k TreeKind) String() string {
	switch k {
	case Evergreen:
		return "Evergreen"
	case Deciduous:
		return "Deciduous"
	default:
		return fmt.Sprintf("TreeKind(%d)", uint8(k))
	}
}

func (k PlantKind) String() string {
	switch k {
	case Grass:
		return "Grass"
	case Daisy:
		return "Daisy"
	case Heather:
		return "Heather"
	default:
		return fmt.Sprintf("PlantKind(%d)", uint8(k))
	}
}

func (t Type) String() string {
	switch t.Kind {
	case Tree:
		return "Tree(" + TreeKind(t.Variant).String() + ")"
	case Plant:
		return "Plant(" + PlantKind(t.Variant).String() + ")"
	default:
		return t.Kind.String()
	}
}

// ParsePlant maps a catalog species name to its kind.
func ParsePlant(name string) (PlantKind, error) {
	switch name {
	case "Grass", "grass":
		return Grass, nil
	case "Daisy", "daisy":
		return Daisy, nil
	case "Heather", "heather":
		return Heather, nil
	}
	return 0, fmt.Errorf("tile: unknown plant %q", name)
}

// Glyph is the single-character map symbol used by text dumps.
func (t Type) Glyph() rune {
	switch t.Kind {
	case Floor:
		return '.'
	case Wall:
		return '#'
	case Water:
		return '~'
	case Sand:
		return ':'
	case Soil:
		return ','
	case Tree:
		switch TreeKind(t.Variant) {
		case Evergreen:
			return '^'
		case Deciduous:
			return '♣'
		}
	case Plant:
		switch PlantKind(t.Variant) {
		case Grass:
			return '"'
		case Daisy:
			return '*'
		case Heather:
			return '%'
		}
	}
	return '?'
}

// Density counts tiles by kind.
type Density struct {
	Floor, Wall, Water, Sand, Soil int
	Evergreen, Deciduous           int
	Grass, Daisy, Heather          int
}

func (d *Density) Add(t Type) {
	switch t.Kind {
	case Floor:
		d.Floor++
	case Wall:
		d.Wall++
	case Water:
		d.Water++
	case Sand:
		d.Sand++
	case Soil:
		d.Soil++
	case Tree:
		switch TreeKind(t.Variant) {
		case Evergreen:
			d.Evergreen++
		case Deciduous:
			d.Deciduous++
		}
	case Plant:
		switch PlantKind(t.Variant) {
		case Grass:
			d.Grass++
		case Daisy:
			d.Daisy++
		case Heather:
			d.Heather++
		}
	}
}

func (d Density) Trees() int  { return d.Evergreen + d.Deciduous }
func (d Density) Plants() int { return d.Grass + d.Daisy + d.Heather }
