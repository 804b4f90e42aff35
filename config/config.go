// Package config loads the server's TOML configuration file and exposes
// the CLI flags as a flat struct, keeping "flags" (alecthomas/kong)
// separate from "config file" (pelletier/go-toml) concerns.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/jacobwpeng/sectbattled/types"
)

// Flags is the flat CLI flag list the server binary accepts.
type Flags struct {
	DataPath      string `kong:"required,help='directory holding the four mmap region files'"`
	BindAddr      string `kong:"default=':17000',help='datagram listen address'"`
	BackupKVAddr  string `kong:"default=':17001',help='remote KV store address for backups'"`
	ConfigPath    string `kong:"required,help='path to the TOML battlefield config'"`
	CacheTTLMs    int64  `kong:"default=0,help='battlefield snapshot cache TTL in milliseconds'"`
	Recovery      bool   `kong:"help='fetch region files from the remote KV store before starting'"`
	Daemon        bool   `kong:"help='accepted but not acted on; the process always stays in the foreground'"`
	LockFilePath  string `kong:"default='sectbattled.lock',help='process lock file path'"`
	AdminBindAddr string `kong:"default=':17002',help='admin HTTP observer bind address'"`
}

// BattleField is the TOML-loaded game configuration: one born position
// per sect and the season-boundary offset (kept configurable rather
// than hardcoded to a specific timezone rule).
type BattleField struct {
	BornPositions     map[string]BornPos `toml:"born_positions"`
	SeasonOffsetHours int                `toml:"season_offset_hours"`
}

type BornPos struct {
	X int16 `toml:"x"`
	Y int16 `toml:"y"`
}

// DefaultBattleField returns the stock eight-sect layout: one born field
// per edge/corner of the 10x10 grid, evenly spread.
func DefaultBattleField() BattleField {
	return BattleField{
		SeasonOffsetHours: 26,
		BornPositions: map[string]BornPos{
			"Shaolin":  {X: 0, Y: 0},
			"WuDang":   {X: 9, Y: 0},
			"KunLun":   {X: 0, Y: 9},
			"EMei":     {X: 9, Y: 9},
			"HuaShan":  {X: 4, Y: 0},
			"KongTong": {X: 4, Y: 9},
			"MingJiao": {X: 0, Y: 4},
			"GaiBang":  {X: 9, Y: 4},
		},
	}
}

func sectName(s types.SectType) string {
	switch s {
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
		return ""
	}
}

// BornPosOf returns the configured born position for a sect.
func (b BattleField) BornPosOf(s types.SectType) (types.Pos, error) {
	bp, ok := b.BornPositions[sectName(s)]
	if !ok {
		return types.Pos{}, fmt.Errorf("config: no born position configured for sect %v", s)
	}
	return types.NewPos(bp.X, bp.Y), nil
}

// LoadBattleField reads and validates a TOML battlefield config, filling
// in any missing sect with the stock default so a partial config file is
// still usable in tests.
func LoadBattleField(path string) (BattleField, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BattleField{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var bf BattleField
	if err := toml.Unmarshal(data, &bf); err != nil {
		return BattleField{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	def := DefaultBattleField()
	if bf.SeasonOffsetHours == 0 {
		bf.SeasonOffsetHours = def.SeasonOffsetHours
	}
	if bf.BornPositions == nil {
		bf.BornPositions = def.BornPositions
	} else {
		for name, pos := range def.BornPositions {
			if _, ok := bf.BornPositions[name]; !ok {
				bf.BornPositions[name] = pos
			}
		}
	}
	for _, s := range types.AllSects() {
		if _, err := bf.BornPosOf(s); err != nil {
			return BattleField{}, err
		}
	}
	return bf, nil
}
