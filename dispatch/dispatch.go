// Package dispatch decodes the wrapper record {name, payload} and
// routes it to one of the seven handlers. The byte-level Codec is the
// pluggable seam the real wire transport is expected to implement (the
// datagram transport and wire message codec are kept out of scope
// here); this package owns only the name -> handler lookup table.
package dispatch

import (
	"fmt"

	log "github.com/ledgerwatch/log/v3"

	"github.com/jacobwpeng/sectbattled/handlers"
	"github.com/jacobwpeng/sectbattled/wire"
)

// Request/response names, matching the wrapper record's name field
// exactly.
const (
	NameQueryBattleField = "QueryBattleFieldRequest"
	NameJoinBattle       = "JoinBattleRequest"
	NameMove             = "MoveRequest"
	NameChangeSect       = "ChangeSectRequest"
	NameChangeOpponent   = "ChangeOpponentRequest"
	NameCheckFight       = "CheckFightRequest"
	NameReportFight      = "ReportFightRequest"
)

// Codec decodes a wrapper record's payload into the request type named
// by name, and encodes a response back into wire bytes. Implementations
// live outside this repo's core - the wire message codec is an
// external collaborator; DecodeXxx/EncodeXxx return an error on
// malformed payloads, which the Dispatcher turns into a negative-length
// signal.
type Codec interface {
	DecodeJoin(payload []byte) (wire.JoinRequest, error)
	EncodeJoin(wire.JoinResponse) ([]byte, error)
	DecodeQueryBattleField(payload []byte) (wire.QueryBattleFieldRequest, error)
	EncodeQueryBattleField(wire.QueryBattleFieldResponse) ([]byte, error)
	DecodeMove(payload []byte) (wire.MoveRequest, error)
	EncodeMove(wire.MoveResponse) ([]byte, error)
	DecodeChangeSect(payload []byte) (wire.ChangeSectRequest, error)
	EncodeChangeSect(wire.ChangeSectResponse) ([]byte, error)
	DecodeChangeOpponent(payload []byte) (wire.ChangeOpponentRequest, error)
	EncodeChangeOpponent(wire.ChangeOpponentResponse) ([]byte, error)
	DecodeCheckFight(payload []byte) (wire.CheckFightRequest, error)
	EncodeCheckFight(wire.CheckFightResponse) ([]byte, error)
	DecodeReportFight(payload []byte) (wire.ReportFightRequest, error)
	EncodeReportFight(wire.ReportFightResponse) ([]byte, error)
}

// Wrapper is the {name, payload} envelope every datagram decodes to
// before dispatch.
type Wrapper struct {
	Name    string
	Payload []byte
}

// Dispatcher routes a decoded Wrapper to its handler and returns the
// encoded response. A decode failure (malformed wrapper, unknown name,
// payload parse failure) is logged and reported to the caller as
// ErrDecode; transports should treat that as drop-silently-and-log-warn,
// translating it into a negative-length reply.
type Dispatcher struct {
	Handlers *handlers.Handlers
	Codec    Codec
	Log      log.Logger
}

// ErrDecode signals a malformed wrapper or payload; the caller should
// reply with a negative length rather than any response bytes.
var ErrDecode = fmt.Errorf("dispatch: decode failed")

func New(h *handlers.Handlers, codec Codec, logger log.Logger) *Dispatcher {
	return &Dispatcher{Handlers: h, Codec: codec, Log: logger}
}

// Handle decodes w.Payload according to w.Name, calls the matching
// handler, and returns the encoded response bytes.
func (d *Dispatcher) Handle(w Wrapper) ([]byte, error) {
	switch w.Name {
	case NameJoinBattle:
		req, err := d.Codec.DecodeJoin(w.Payload)
		if err != nil {
			return nil, d.decodeErr(w.Name, err)
		}
		return d.Codec.EncodeJoin(d.Handlers.Join(req))
	case NameQueryBattleField:
		req, err := d.Codec.DecodeQueryBattleField(w.Payload)
		if err != nil {
			return nil, d.decodeErr(w.Name, err)
		}
		return d.Codec.EncodeQueryBattleField(d.Handlers.QueryBattleField(req))
	case NameMove:
		req, err := d.Codec.DecodeMove(w.Payload)
		if err != nil {
			return nil, d.decodeErr(w.Name, err)
		}
		return d.Codec.EncodeMove(d.Handlers.Move(req))
	case NameChangeSect:
		req, err := d.Codec.DecodeChangeSect(w.Payload)
		if err != nil {
			return nil, d.decodeErr(w.Name, err)
		}
		return d.Codec.EncodeChangeSect(d.Handlers.ChangeSect(req))
	case NameChangeOpponent:
		req, err := d.Codec.DecodeChangeOpponent(w.Payload)
		if err != nil {
			return nil, d.decodeErr(w.Name, err)
		}
		return d.Codec.EncodeChangeOpponent(d.Handlers.ChangeOpponent(req))
	case NameCheckFight:
		req, err := d.Codec.DecodeCheckFight(w.Payload)
		if err != nil {
			return nil, d.decodeErr(w.Name, err)
		}
		return d.Codec.EncodeCheckFight(d.Handlers.CheckFight(req))
	case NameReportFight:
		req, err := d.Codec.DecodeReportFight(w.Payload)
		if err != nil {
			return nil, d.decodeErr(w.Name, err)
		}
		return d.Codec.EncodeReportFight(d.Handlers.ReportFight(req))
	default:
		d.Log.Warn("dispatch: unknown message name", "name", w.Name)
		return nil, ErrDecode
	}
}

func (d *Dispatcher) decodeErr(name string, err error) error {
	d.Log.Warn("dispatch: payload decode failed", "name", name, "err", err)
	return ErrDecode
}
