// Package types holds the plain, copyable value types shared across the
// battlefield engine, the persistence layer and the wire handlers: grid
// positions, directions, sect/field enums, the combatant identity ordering
// and the response codes.
package types

import "fmt"

// Code is the result of a handler call, carried on the wire in every
// response. Zero value is Ok.
type Code int16

const (
	Ok                  Code = 0
	Occupied            Code = -1000
	NotInBattle         Code = -1001
	InvalidDirection    Code = -1002
	JoinedBattle        Code = -1003
	InSameSect          Code = -1004
	InvalidOpponent     Code = -1005
	OpponentMoved       Code = -1006
	NoOpponent          Code = -1007
	NoOpponentFound     Code = -1008
	BattleFieldFull     Code = -1009
	CannotMove          Code = -1011
	CannotMoveToBornPos Code = -1012
)

func (c Code) String() string {
	switch c {
	case Ok:
		return "Ok"
	case Occupied:
		return "Occupied"
	case NotInBattle:
		return "NotInBattle"
	case InvalidDirection:
		return "InvalidDirection"
	case JoinedBattle:
		return "JoinedBattle"
	case InSameSect:
		return "InSameSect"
	case InvalidOpponent:
		return "InvalidOpponent"
	case OpponentMoved:
		return "OpponentMoved"
	case NoOpponent:
		return "NoOpponent"
	case NoOpponentFound:
		return "NoOpponentFound"
	case BattleFieldFull:
		return "BattleFieldFull"
	case CannotMove:
		return "CannotMove"
	case CannotMoveToBornPos:
		return "CannotMoveToBornPos"
	default:
		return fmt.Sprintf("Code(%d)", int16(c))
	}
}

// FieldType marks whether a cell is a sect's spawn point. A born field's
// type never changes once the battlefield is built.
type FieldType int8

const (
	DefaultField FieldType = 0
	BornField    FieldType = 1
)

// SectType is one of the eight playable factions. None is the sentinel
// used for cells nobody has ever claimed.
type SectType int8

const (
	None      SectType = 0
	Shaolin   SectType = 1
	WuDang    SectType = 2
	KunLun    SectType = 3
	EMei      SectType = 4
	HuaShan   SectType = 5
	KongTong  SectType = 6
	MingJiao  SectType = 7
	GaiBang   SectType = 8
	sectCount          = 8
)

// SectCount is the number of playable sects (None excluded). Any wire
// message describing per-sect counts must carry exactly this many
// entries, never a None bucket.
const SectCount = sectCount

// AllSects returns the eight playable sect types in ascending order.
func AllSects() []SectType {
	out := make([]SectType, 0, SectCount)
	for s := Shaolin; s <= GaiBang; s++ {
		out = append(out, s)
	}
	return out
}

func IsValidSectType(v int) bool {
	return v >= int(Shaolin) && v <= int(GaiBang)
}

// Direction is one of the four cardinal movement directions.
type Direction int8

const (
	Up    Direction = 1
	Down  Direction = 2
	Left  Direction = 3
	Right Direction = 4
)

func IsValidDirection(v int) bool {
	switch Direction(v) {
	case Up, Down, Left, Right:
		return true
	default:
		return false
	}
}

// AllDirections is the fixed iteration order used for OpponentLite's
// 4-slot layout: Up, Down, Left, Right.
var AllDirections = [4]Direction{Up, Down, Left, Right}

// DirectionIndex maps a Direction to its slot in OpponentLite.Opponents.
func DirectionIndex(d Direction) int {
	switch d {
	case Up:
		return 0
	case Down:
		return 1
	case Left:
		return 2
	case Right:
		return 3
	default:
		return -1
	}
}

// MaxPos is the highest valid coordinate on the 10x10 battlefield.
const MaxPos = 9

// Pos is a signed grid coordinate, bit-copyable, totally ordered by
// HashCode. The zero value is (0,0); use Invalid() for the sentinel.
type Pos struct {
	X, Y int16
}

// Invalid returns the sentinel position used for "not on the battlefield".
func Invalid() Pos { return Pos{X: -1, Y: -1} }

func NewPos(x, y int16) Pos { return Pos{X: x, Y: y} }

func (p Pos) Valid() bool {
	return p.X >= 0 && p.X <= MaxPos && p.Y >= 0 && p.Y <= MaxPos
}

// HashCode totally orders positions as (y<<32)|x, giving persisted
// owner-map iteration a stable, deterministic order.
func (p Pos) HashCode() int64 {
	return int64(uint32(p.Y))<<32 | int64(uint32(p.X))
}

func (p Pos) Less(o Pos) bool { return p.HashCode() < o.HashCode() }

// Apply returns the neighboring position in direction d and whether that
// neighbor is still on the board (false at the edge, in which case the
// returned Pos is meaningless).
func (p Pos) Apply(d Direction) (Pos, bool) {
	switch d {
	case Up:
		if p.Y == 0 {
			return Pos{}, false
		}
		return Pos{X: p.X, Y: p.Y - 1}, true
	case Down:
		if p.Y == MaxPos {
			return Pos{}, false
		}
		return Pos{X: p.X, Y: p.Y + 1}, true
	case Left:
		if p.X == 0 {
			return Pos{}, false
		}
		return Pos{X: p.X - 1, Y: p.Y}, true
	case Right:
		if p.X == MaxPos {
			return Pos{}, false
		}
		return Pos{X: p.X + 1, Y: p.Y}, true
	default:
		return Pos{}, false
	}
}

func (p Pos) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// UinType identifies a player account.
type UinType = uint32

// LevelType is a combatant's level, used in garrison ordering and
// opponent banding.
type LevelType = uint16

// TimeStamp is milliseconds since epoch.
type TimeStamp = int64

// CombatantIdentity is the (level, last_defeated_time, uin) triple that
// totally orders a field's garrison set. Ties are impossible because uin
// is unique among combatants of a given field.
type CombatantIdentity struct {
	Level            LevelType
	LastDefeatedTime TimeStamp
	Uin              UinType
}

// Less implements the garrison ordering: lower level first; for equal
// level, later defeated-time first (reverse on timestamp, so recently
// protected combatants sort ahead of eligible ones); for equal level and
// timestamp, lower uin first.
func (a CombatantIdentity) Less(b CombatantIdentity) bool {
	if a.Level != b.Level {
		return a.Level < b.Level
	}
	if a.LastDefeatedTime != b.LastDefeatedTime {
		return a.LastDefeatedTime > b.LastDefeatedTime
	}
	return a.Uin < b.Uin
}

const (
	MinUin         UinType   = 0
	MaxUin         UinType   = ^UinType(0)
	MinTimeStamp   TimeStamp = 0
	MaxTimeStamp   TimeStamp = 1<<63 - 1
)

// CombatantLite is the form of a combatant persisted in combatant_map:
// one entry per uin, carrying just enough to rebuild runtime state.
type CombatantLite struct {
	Pos              Pos
	Level            LevelType
	LastDefeatedTime TimeStamp
}

// OpponentLite is the fixed-layout persisted form of a combatant's
// remembered opponents, zero-padded for unused slots.
type OpponentLite struct {
	Opponents [4][5]UinType
}

func (o *OpponentLite) Set(d Direction, uins []UinType) {
	idx := DirectionIndex(d)
	if idx < 0 {
		return
	}
	var slot [5]UinType
	copy(slot[:], uins)
	o.Opponents[idx] = slot
}

func (o *OpponentLite) Get(d Direction) []UinType {
	idx := DirectionIndex(d)
	if idx < 0 {
		return nil
	}
	out := make([]UinType, 0, 5)
	for _, u := range o.Opponents[idx] {
		if u != 0 {
			out = append(out, u)
		}
	}
	return out
}
