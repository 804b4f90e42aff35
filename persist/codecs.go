package persist

import (
	"encoding/binary"

	"github.com/jacobwpeng/sectbattled/types"
)

// PosKeyCodec orders Pos by its HashCode, keeping owner_map iteration
// order stable.
type PosKeyCodec struct{}

func (PosKeyCodec) Size() int { return 4 }
func (PosKeyCodec) Encode(p types.Pos, buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], uint16(p.X))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(p.Y))
}
func (PosKeyCodec) Decode(buf []byte) types.Pos {
	return types.Pos{X: int16(binary.LittleEndian.Uint16(buf[0:2])), Y: int16(binary.LittleEndian.Uint16(buf[2:4]))}
}
func (PosKeyCodec) Less(a, b types.Pos) bool { return a.Less(b) }

// SectTypeValueCodec stores a single SectType byte.
type SectTypeValueCodec struct{}

func (SectTypeValueCodec) Size() int                       { return 1 }
func (SectTypeValueCodec) Encode(v types.SectType, b []byte) { b[0] = byte(v) }
func (SectTypeValueCodec) Decode(b []byte) types.SectType  { return types.SectType(b[0]) }

// UinKeyCodec orders by raw uin value.
type UinKeyCodec struct{}

func (UinKeyCodec) Size() int { return 4 }
func (UinKeyCodec) Encode(u types.UinType, buf []byte) {
	binary.LittleEndian.PutUint32(buf, u)
}
func (UinKeyCodec) Decode(buf []byte) types.UinType { return binary.LittleEndian.Uint32(buf) }
func (UinKeyCodec) Less(a, b types.UinType) bool    { return a < b }

// CombatantLiteValueCodec is the fixed (pos, level, last_defeated_time)
// persisted form of a combatant.
type CombatantLiteValueCodec struct{}

func (CombatantLiteValueCodec) Size() int { return 4 + 2 + 8 }
func (CombatantLiteValueCodec) Encode(v types.CombatantLite, buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], uint16(v.Pos.X))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(v.Pos.Y))
	binary.LittleEndian.PutUint16(buf[4:6], v.Level)
	binary.LittleEndian.PutUint64(buf[6:14], uint64(v.LastDefeatedTime))
}
func (CombatantLiteValueCodec) Decode(buf []byte) types.CombatantLite {
	return types.CombatantLite{
		Pos:              types.Pos{X: int16(binary.LittleEndian.Uint16(buf[0:2])), Y: int16(binary.LittleEndian.Uint16(buf[2:4]))},
		Level:            binary.LittleEndian.Uint16(buf[4:6]),
		LastDefeatedTime: int64(binary.LittleEndian.Uint64(buf[6:14])),
	}
}

// OpponentLiteValueCodec is the fixed UinType[4][5] layout, zero padded.
type OpponentLiteValueCodec struct{}

func (OpponentLiteValueCodec) Size() int { return 4 * 5 * 4 }
func (OpponentLiteValueCodec) Encode(v types.OpponentLite, buf []byte) {
	i := 0
	for d := 0; d < 4; d++ {
		for s := 0; s < 5; s++ {
			binary.LittleEndian.PutUint32(buf[i:i+4], v.Opponents[d][s])
			i += 4
		}
	}
}
func (OpponentLiteValueCodec) Decode(buf []byte) types.OpponentLite {
	var v types.OpponentLite
	i := 0
	for d := 0; d < 4; d++ {
		for s := 0; s < 5; s++ {
			v.Opponents[d][s] = binary.LittleEndian.Uint32(buf[i : i+4])
			i += 4
		}
	}
	return v
}
