// Package wire defines the decoded request/response records the seven
// handlers exchange with the dispatcher. The byte-level codec itself
// (named record -> payload bytes) is an external collaborator; this
// package only fixes the Go-side shapes that collaborator must produce
// and consume.
package wire

import "github.com/jacobwpeng/sectbattled/types"

// CellSnapshot is one of the 100 fixed-order cells in a BattleField
// snapshot.
type CellSnapshot struct {
	Pos   types.Pos
	Owner types.SectType
	Type  types.FieldType
}

// BattleField is the snapshot most responses carry: the caller's own
// position, all 100 cells in fixed order, and exactly types.SectCount
// member counts (no None bucket).
type BattleField struct {
	SelfPosition types.Pos
	Cells        [100]CellSnapshot
	SectCounts   map[types.SectType]int
}

type JoinRequest struct {
	Uin   types.UinType
	Level types.LevelType
}

type JoinResponse struct {
	Uin         types.UinType
	Code        types.Code
	Sect        types.SectType
	BattleField BattleField
}

type QueryBattleFieldRequest struct {
	Uin   types.UinType
	Level types.LevelType
}

type QueryBattleFieldResponse struct {
	Uin         types.UinType
	Code        types.Code
	BattleField BattleField
}

type MoveRequest struct {
	Uin       types.UinType
	Level     types.LevelType
	Direction types.Direction
	CanMove   bool
}

type MoveResponse struct {
	Uin         types.UinType
	Code        types.Code
	Opponents   []types.UinType
	BattleField BattleField
}

type ChangeSectRequest struct {
	Uin   types.UinType
	Level types.LevelType
	Sect  types.SectType
}

type ChangeSectResponse struct {
	Uin         types.UinType
	Code        types.Code
	BattleField BattleField
}

type ChangeOpponentRequest struct {
	Uin       types.UinType
	Level     types.LevelType
	Direction types.Direction
}

type ChangeOpponentResponse struct {
	Uin         types.UinType
	Code        types.Code
	Opponents   []types.UinType
	BattleField BattleField
}

type CheckFightRequest struct {
	Uin       types.UinType
	Opponent  types.UinType
	Direction types.Direction
}

type CheckFightResponse struct {
	Uin  types.UinType
	Code types.Code
}

type ReportFightRequest struct {
	Uin            types.UinType
	Opponent       types.UinType
	Loser          types.UinType
	Direction      types.Direction
	ResetSelf      bool
	ResetOpponent  bool
	Level          types.LevelType
	OpponentLevel  types.LevelType
}

type ReportFightResponse struct {
	Uin         types.UinType
	Code        types.Code
	BattleField BattleField
}
