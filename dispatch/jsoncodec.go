package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/jacobwpeng/sectbattled/wire"
)

// JSONCodec is the default Codec for tests and local runs: each
// payload is the JSON encoding of its request/response struct. The
// real transport's wire codec (protobuf, or whatever the datagram
// layer settles on) is an external collaborator and would implement
// the same Codec interface.
type JSONCodec struct{}

func (JSONCodec) DecodeJoin(payload []byte) (wire.JoinRequest, error) {
	var r wire.JoinRequest
	err := json.Unmarshal(payload, &r)
	return r, wrapErr(err)
}
func (JSONCodec) EncodeJoin(r wire.JoinResponse) ([]byte, error) { return json.Marshal(r) }

func (JSONCodec) DecodeQueryBattleField(payload []byte) (wire.QueryBattleFieldRequest, error) {
	var r wire.QueryBattleFieldRequest
	err := json.Unmarshal(payload, &r)
	return r, wrapErr(err)
}
func (JSONCodec) EncodeQueryBattleField(r wire.QueryBattleFieldResponse) ([]byte, error) {
	return json.Marshal(r)
}

func (JSONCodec) DecodeMove(payload []byte) (wire.MoveRequest, error) {
	var r wire.MoveRequest
	err := json.Unmarshal(payload, &r)
	return r, wrapErr(err)
}
func (JSONCodec) EncodeMove(r wire.MoveResponse) ([]byte, error) { return json.Marshal(r) }

func (JSONCodec) DecodeChangeSect(payload []byte) (wire.ChangeSectRequest, error) {
	var r wire.ChangeSectRequest
	err := json.Unmarshal(payload, &r)
	return r, wrapErr(err)
}
func (JSONCodec) EncodeChangeSect(r wire.ChangeSectResponse) ([]byte, error) {
	return json.Marshal(r)
}

func (JSONCodec) DecodeChangeOpponent(payload []byte) (wire.ChangeOpponentRequest, error) {
	var r wire.ChangeOpponentRequest
	err := json.Unmarshal(payload, &r)
	return r, wrapErr(err)
}
func (JSONCodec) EncodeChangeOpponent(r wire.ChangeOpponentResponse) ([]byte, error) {
	return json.Marshal(r)
}

func (JSONCodec) DecodeCheckFight(payload []byte) (wire.CheckFightRequest, error) {
	var r wire.CheckFightRequest
	err := json.Unmarshal(payload, &r)
	return r, wrapErr(err)
}
func (JSONCodec) EncodeCheckFight(r wire.CheckFightResponse) ([]byte, error) {
	return json.Marshal(r)
}

func (JSONCodec) DecodeReportFight(payload []byte) (wire.ReportFightRequest, error) {
	var r wire.ReportFightRequest
	err := json.Unmarshal(payload, &r)
	return r, wrapErr(err)
}
func (JSONCodec) EncodeReportFight(r wire.ReportFightResponse) ([]byte, error) {
	return json.Marshal(r)
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("dispatch: %w", err)
}
