package transaction

import (
	"encoding/json"
	"fmt"
)

type typeInfoEnvelope struct {
	Type Type            `json:"type"`
	Info json.RawMessage `json:"info"`
}

func marshalTypeInfo(info TypeInfo) (json.RawMessage, error) {
	if info == nil {
		return nil, nil
	}
	body, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	return json.Marshal(typeInfoEnvelope{Type: info.Type(), Info: body})
}

func unmarshalTypeInfo(data json.RawMessage) (TypeInfo, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var env typeInfoEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	var (
		info TypeInfo
		err  error
	)
	switch env.Type {
	case TypeApprove:
		var v ApproveInfo
		err = json.Unmarshal(env.Info, &v)
		info = v
	case TypeSwap:
		var v SwapInfo
		err = json.Unmarshal(env.Info, &v)
		info = v
	case TypeWrap:
		var v WrapInfo
		err = json.Unmarshal(env.Info, &v)
		info = v
	case TypeSend:
		var v SendInfo
		err = json.Unmarshal(env.Info, &v)
		info = v
	case TypeReceive:
		var v ReceiveInfo
		err = json.Unmarshal(env.Info, &v)
		info = v
	case TypeWCConfirm:
		var v WCConfirmInfo
		err = json.Unmarshal(env.Info, &v)
		info = v
	case TypeUnknown:
		var v UnknownInfo
		err = json.Unmarshal(env.Info, &v)
		info = v
	default:
		return nil, fmt.Errorf("unknown transaction type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s type info: %w", env.Type, err)
	}
	return info, nil
}

type recordAlias Record

type recordJSON struct {
	*recordAlias
	TypeInfo json.RawMessage `json:"typeInfo,omitempty"`
}

// MarshalJSON encodes TypeInfo as a tagged envelope
func (r Record) MarshalJSON() ([]byte, error) {
	info, err := marshalTypeInfo(r.TypeInfo)
	if err != nil {
		return nil, err
	}
	return json.Marshal(recordJSON{recordAlias: (*recordAlias)(&r), TypeInfo: info})
}

// UnmarshalJSON decodes the tagged TypeInfo envelope
func (r *Record) UnmarshalJSON(data []byte) error {
	aux := recordJSON{recordAlias: (*recordAlias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	info, err := unmarshalTypeInfo(aux.TypeInfo)
	if err != nil {
		return err
	}
	r.TypeInfo = info
	return nil
}
