package camera

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"imx662-go/drivers/imx662"
	"imx662-go/errcode"
	"imx662-go/types"
	"imx662-go/x/ramp"
)

// verb decodes a control payload into a job.
type verb struct {
	parse   func(payload any) (jobFunc, error)
	mutates bool
	prio    bool
	timeout time.Duration
}

var verbs = map[string]verb{
	"power":        {parse: parsePower, prio: true},
	"stream":       {parse: parseStream, prio: true},
	"suspend":      {parse: noArgs(func(ctx context.Context, d *imx662.Device) error { return d.Suspend(ctx) }), prio: true},
	"resume":       {parse: noArgs(func(ctx context.Context, d *imx662.Device) error { return d.Resume(ctx) }), prio: true},
	"set_format":   {parse: parseSetFormat, mutates: true},
	"get_format":   {parse: query(getFormat)},
	"enum_formats": {parse: query(func(d *imx662.Device) any { return formatsOf(d.Registry()) })},
	"set_ctrl":     {parse: parseSetCtrl, mutates: true},
	"get_ctrl":     {parse: parseGetCtrl},
	"query_ctrls":  {parse: query(func(d *imx662.Device) any { return controlsOf(d) })},
	"exposure":     {parse: parseExposureVerb, mutates: true},
	"gain":         {parse: parseGainVerb, mutates: true},
	"ramp":         {parse: parseRamp, mutates: true, timeout: maxRamp + time.Second},
}

func badPayload(op string, err error) error {
	return &errcode.E{C: errcode.InvalidPayload, Op: op, Msg: err.Error(), Err: err}
}

func decodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	case T:
		*dst = v
		return nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}

func noArgs(fn func(context.Context, *imx662.Device) error) func(any) (jobFunc, error) {
	return func(any) (jobFunc, error) {
		return func(ctx context.Context, d *imx662.Device) (any, error) {
			if err := fn(ctx, d); err != nil {
				return nil, err
			}
			return d.State().String(), nil
		}, nil
	}
}

func query(fn func(*imx662.Device) any) func(any) (jobFunc, error) {
	return func(any) (jobFunc, error) {
		return func(_ context.Context, d *imx662.Device) (any, error) { return fn(d), nil }, nil
	}
}

func parsePower(p any) (jobFunc, error) {
	var in types.PowerSet
	if err := decodeJSON(p, &in); err != nil {
		return nil, badPayload("power", err)
	}
	return func(ctx context.Context, d *imx662.Device) (any, error) {
		var err error
		if in.On {
			err = d.PowerOn(ctx)
		} else {
			err = d.PowerOff(ctx)
		}
		return d.State().String(), err
	}, nil
}

func parseStream(p any) (jobFunc, error) {
	var in types.StreamSet
	if err := decodeJSON(p, &in); err != nil {
		return nil, badPayload("stream", err)
	}
	return func(ctx context.Context, d *imx662.Device) (any, error) {
		err := d.SetStream(ctx, in.On)
		return d.State().String(), err
	}, nil
}

type formatReply struct {
	Format   string         `json:"format"`
	Transfer string         `json:"transfer"`
	Mode     types.ModeInfo `json:"mode"`
}

func getFormat(d *imx662.Device) any {
	m := d.Format()
	return formatReply{Format: m.Format.String(), Transfer: m.Transfer().String(), Mode: modeInfo(m)}
}

func parseSetFormat(p any) (jobFunc, error) {
	var in types.FormatSet
	if err := decodeJSON(p, &in); err != nil {
		return nil, badPayload("set_format", err)
	}
	f, err := imx662.ParseFormat(in.Format)
	if err != nil {
		return nil, err
	}
	tr, err := parseTransfer(in.Transfer)
	if err != nil {
		return nil, badPayload("set_format", err)
	}
	return func(_ context.Context, d *imx662.Device) (any, error) {
		if _, err := d.SetFormat(f, tr, in.Width, in.Height); err != nil {
			return nil, err
		}
		return getFormat(d), nil
	}, nil
}

func parseSetCtrl(p any) (jobFunc, error) {
	var in types.CtrlSet
	if err := decodeJSON(p, &in); err != nil {
		return nil, badPayload("set_ctrl", err)
	}
	id, err := imx662.ParseControl(in.Name)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, d *imx662.Device) (any, error) {
		if err := d.SetControl(id, in.Value); err != nil {
			return nil, err
		}
		return ctrlValue(d, id)
	}, nil
}

func parseGetCtrl(p any) (jobFunc, error) {
	var in types.CtrlGet
	if err := decodeJSON(p, &in); err != nil {
		return nil, badPayload("get_ctrl", err)
	}
	id, err := imx662.ParseControl(in.Name)
	if err != nil {
		return nil, err
	}
	return func(_ context.Context, d *imx662.Device) (any, error) { return ctrlValue(d, id) }, nil
}

func ctrlValue(d *imx662.Device, id imx662.ControlID) (any, error) {
	v, err := d.Control(id)
	if err != nil {
		return nil, err
	}
	return types.CtrlValue{Name: id.String(), Value: v}, nil
}

func parseExposureVerb(p any) (jobFunc, error) {
	var in types.ExposureSet
	if err := decodeJSON(p, &in); err != nil {
		return nil, badPayload("exposure", err)
	}
	req, err := parseExposure(in)
	if err != nil {
		return nil, badPayload("exposure", err)
	}
	id := imx662.CtrlExposure
	if req.Channel == imx662.ChannelVS {
		id = imx662.CtrlVSExposure
	}
	return func(_ context.Context, d *imx662.Device) (any, error) {
		if err := d.SetExposure(req); err != nil {
			return nil, err
		}
		return ctrlValue(d, id)
	}, nil
}

func parseGainVerb(p any) (jobFunc, error) {
	var in types.GainSet
	if err := decodeJSON(p, &in); err != nil {
		return nil, badPayload("gain", err)
	}
	req, err := parseGain(in)
	if err != nil {
		return nil, badPayload("gain", err)
	}
	id := imx662.CtrlGain
	if req.Channel == imx662.ChannelVS {
		id = imx662.CtrlVSGain
	}
	return func(_ context.Context, d *imx662.Device) (any, error) {
		if err := d.SetGain(req); err != nil {
			return nil, err
		}
		return ctrlValue(d, id)
	}, nil
}

const (
	maxRamp      = 10 * time.Second
	rampStepTime = 33 * time.Millisecond
)

// parseRamp steps a writable control to its target on the worker, so
// requests behind it wait for the ramp to land.
func parseRamp(p any) (jobFunc, error) {
	var in types.CtrlRamp
	if err := decodeJSON(p, &in); err != nil {
		return nil, badPayload("ramp", err)
	}
	id, err := imx662.ParseControl(in.Name)
	if err != nil {
		return nil, err
	}
	d := time.Duration(in.DurationMS) * time.Millisecond
	if d > maxRamp {
		return nil, badPayload("ramp", errors.New("duration above 10 s"))
	}
	steps := in.Steps
	if steps <= 0 {
		steps = int(d / rampStepTime)
	}
	return func(ctx context.Context, dev *imx662.Device) (any, error) {
		cur, err := dev.Control(id)
		if err != nil {
			return nil, err
		}
		set := func(v int64) error { return dev.SetControl(id, v) }
		err = ramp.Linear(cur, in.To, steps, d, ramp.Sleep(ctx.Done()), set)
		if errors.Is(err, ramp.ErrCancelled) && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			return nil, err
		}
		return ctrlValue(dev, id)
	}, nil
}
