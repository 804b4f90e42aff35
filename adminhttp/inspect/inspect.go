// Package inspect builds the JSON views the admin observer serves, as
// four plain functions over engine.State (ServerStatus/FieldStatus/
// PlayerStatus/SectStatus) rather than one do-everything handler.
package inspect

import (
	"github.com/jacobwpeng/sectbattled/engine"
	"github.com/jacobwpeng/sectbattled/types"
)

type Status struct {
	CombatantCount int            `json:"combatant_count"`
	CombatantCap   int            `json:"combatant_capacity"`
	SectCounts     map[string]int `json:"sect_counts"`
}

func ServerStatus(s *engine.State) Status {
	counts := make(map[string]int, types.SectCount)
	for _, sect := range types.AllSects() {
		if sc, ok := s.Sect(sect); ok {
			counts[sectName(sect)] = sc.MemberCount()
		}
	}
	return Status{
		CombatantCount: s.CombatantCount(),
		CombatantCap:   s.Maps.CombatantMap.MaxSize(),
		SectCounts:     counts,
	}
}

type Field struct {
	X         int16  `json:"x"`
	Y         int16  `json:"y"`
	Owner     string `json:"owner"`
	Type      string `json:"type"`
	Garrison  int    `json:"garrison_num"`
}

func FieldStatus(s *engine.State, pos types.Pos) (Field, bool) {
	f, ok := s.Field(pos)
	if !ok {
		return Field{}, false
	}
	typ := "default"
	if f.Type() == types.BornField {
		typ = "born"
	}
	return Field{X: pos.X, Y: pos.Y, Owner: sectName(f.Owner()), Type: typ, Garrison: f.GarrisonNum()}, true
}

type Player struct {
	Uin   types.UinType `json:"uin"`
	Sect  string        `json:"sect"`
	X     int16         `json:"x"`
	Y     int16         `json:"y"`
	Level types.LevelType `json:"level"`
}

func PlayerStatus(s *engine.State, uin types.UinType) (Player, bool) {
	c, ok := s.Combatant(uin)
	if !ok {
		return Player{}, false
	}
	return Player{
		Uin:   uin,
		Sect:  sectName(c.CurrentSect().Type()),
		X:     c.CurrentPos().X,
		Y:     c.CurrentPos().Y,
		Level: c.Level(),
	}, true
}

type Sect struct {
	Type        string `json:"type"`
	BornX       int16  `json:"born_x"`
	BornY       int16  `json:"born_y"`
	MemberCount int    `json:"member_count"`
}

func SectStatus(s *engine.State, t types.SectType) (Sect, bool) {
	sect, ok := s.Sect(t)
	if !ok {
		return Sect{}, false
	}
	return Sect{
		Type:        sectName(t),
		BornX:       sect.BornPos().X,
		BornY:       sect.BornPos().Y,
		MemberCount: sect.MemberCount(),
	}, true
}

func sectName(t types.SectType) string {
	switch t {
	case types.None:
		return "None"
	case types.Shaolin:
		return "Shaolin"
	case types.WuDang:
		return "WuDang"
	case types.KunLun:
		return "KunLun"
	case types.EMei:
		return "EMei"
	case types.HuaShan:
		return "HuaShan"
	case types.KongTong:
		return "KongTong"
	case types.MingJiao:
		return "MingJiao"
	case types.GaiBang:
		return "GaiBang"
	default:
		return "Unknown"
	}
}
