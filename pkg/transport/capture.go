package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/softap-protocol/softap-go/pkg/callcontext"
	"github.com/softap-protocol/softap-go/pkg/log"
	"github.com/softap-protocol/softap-go/pkg/wire"
)

// sealedFields are body fields carrying ciphertext; they are redacted from
// captured payloads. The value of a claim-code set is redacted as well.
var sealedFields = []string{"pwd", "key", "ek"}

const redacted = "[sealed]"

// callLog emits the protocol events of one call.
type callLog struct {
	logger   log.Logger
	kind     Kind
	connID   string
	callID   string
	deviceID string
	remote   string
	start    time.Time
}

func newCallLog(ctx context.Context, logger log.Logger, kind Kind, remote string) *callLog {
	return &callLog{
		logger:   log.OrNoop(logger),
		kind:     kind,
		connID:   uuid.New().String(),
		callID:   callcontext.CallIDFromContext(ctx),
		deviceID: callcontext.DeviceIDFromContext(ctx),
		remote:   remote,
		start:    time.Now(),
	}
}

func (c *callLog) event(dir log.Direction, layer log.Layer, cat log.Category) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    dir,
		Layer:        layer,
		Category:     cat,
		Transport:    string(c.kind),
		RemoteAddr:   c.remote,
		DeviceID:     c.deviceID,
		CallID:       c.callID,
	}
}

func (c *callLog) frame(dir log.Direction, data []byte) {
	e := c.event(dir, log.LayerTransport, log.CategoryMessage)
	e.Frame = log.NewFrameEvent(data)
	c.logger.Log(e)
}

func (c *callLog) state(entity log.StateEntity, oldState, newState, reason string) {
	e := c.event(log.DirectionOut, log.LayerTransport, log.CategoryState)
	if entity == log.StateEntitySession {
		e.Layer = log.LayerSession
	}
	e.StateChange = &log.StateChangeEvent{
		Entity:   entity,
		OldState: oldState,
		NewState: newState,
		Reason:   reason,
	}
	c.logger.Log(e)
}

func (c *callLog) request(cmd wire.Command) {
	e := c.event(log.DirectionOut, log.LayerWire, log.CategoryMessage)
	e.Message = &log.MessageEvent{
		Type:     log.MessageTypeRequest,
		Command:  cmd.Name(),
		BodySize: cmd.BodyLen(),
		Payload:  redactedPayload(cmd.Body()),
	}
	c.logger.Log(e)
}

func (c *callLog) response(cmd wire.Command, resp *wire.Response) {
	dur := time.Since(c.start)
	e := c.event(log.DirectionIn, log.LayerWire, log.CategoryMessage)
	msg := &log.MessageEvent{
		Type:     log.MessageTypeResponse,
		Command:  cmd.Name(),
		BodySize: len(resp.Raw()),
		Payload:  redactedPayload(resp.Raw()),
		Duration: &dur,
	}
	if code, ok := resp.Code(); ok {
		msg.ResultCode = &code
	}
	e.Message = msg
	c.logger.Log(e)
}

func (c *callLog) failure(layer log.Layer, cmd wire.Command, err error) {
	e := c.event(log.DirectionIn, layer, log.CategoryError)
	e.Error = &log.ErrorEventData{
		Layer:   layer,
		Message: err.Error(),
		Context: cmd.Name(),
		Kind:    errorKind(err),
	}
	c.logger.Log(e)
}

// redactedPayload decodes a JSON body for capture, replacing sealed fields.
func redactedPayload(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return string(body)
	}
	for _, f := range sealedFields {
		if _, ok := m[f]; ok {
			m[f] = redacted
		}
	}
	if _, ok := m["v"]; ok && m["k"] == wire.ClaimCodeKey {
		m["v"] = redacted
	}
	return m
}
